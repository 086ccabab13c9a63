// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

// Bucket is a named key space inside the database.
type Bucket interface {
	// Get returns a copy of the value for key, or nil if absent.
	Get(key []byte) []byte

	// Has reports whether key is present.
	Has(key []byte) bool

	// Put stores value under key.  Requires a writable transaction.
	Put(key, value []byte) error

	// Delete removes key.  Deleting an absent key is not an error.
	Delete(key []byte) error

	// ForEach calls fn for every key in ascending key order.  The slices
	// are only valid during the call.  Returning an error stops the walk.
	ForEach(fn func(k, v []byte) error) error
}

// Tx represents a database transaction.
type Tx interface {
	// Bucket returns the named bucket.  Buckets need not be created.
	Bucket(name []byte) Bucket

	// Writable reports whether the transaction may modify data.
	Writable() bool

	// Commit applies all changes of a writable transaction.
	Commit() error

	// Rollback discards the transaction.
	Rollback() error
}

// DB provides a generic interface that is used to store metadata.
type DB interface {
	// Type returns the database driver type the current database instance
	// was created with.
	Type() string

	// Begin starts a transaction which is either read-only or read-write
	// depending on the specified flag.
	//
	// NOTE: The transaction must be closed by calling Rollback or Commit on
	// it when it is no longer needed.  Failure to do so will result in
	// unclaimed memory.
	Begin(writable bool) (Tx, error)

	// View invokes the passed function in the context of a managed
	// read-only transaction.  Any errors returned from the user-supplied
	// function are returned from this function.
	View(fn func(tx Tx) error) error

	// Update invokes the passed function in the context of a managed
	// read-write transaction.  Any errors returned from the user-supplied
	// function will cause the transaction to be rolled back and are
	// returned from this function.  Otherwise, the transaction is committed
	// when the user-supplied function returns a nil error.
	Update(fn func(tx Tx) error) error

	// Close cleanly shuts down the database and syncs all data.
	Close() error
}
