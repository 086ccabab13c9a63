// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package database provides a bucketed key/value metadata store for the node.

Block entries live in the flat files of the block store.  Everything that is
not an entry of the main chain and still has to survive a restart, such as
checkpoints added at runtime and blocks of alternative branches, goes here.

Access goes through transactions: View runs a read-only one, Update a
read-write one that is committed atomically when the closure returns nil.
Backends register themselves as drivers, the leveldb backend lives in the ldb
sub-package.
*/
package database
