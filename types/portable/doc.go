// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package portable implements the self-describing key/value binary format that
carries p2p command payloads.

A document starts with two little-endian signature words and a format version,
followed by the root section.  A section is a size-class varint entry count and
a list of named entries.  Each entry is a one-byte name length, the name, a
type byte and the value.  Arrays set the high bit of the type byte and are
followed by an element count and the untagged elements.

Size-class varints keep the byte width in the two low bits of the first byte:

	00  1 byte   value < 2^6
	01  2 bytes  value < 2^14
	10  4 bytes  value < 2^30
	11  8 bytes  value < 2^62
*/
package portable
