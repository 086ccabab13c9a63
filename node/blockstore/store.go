// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockstore keeps committed block entries in two append-only files:
// a data file with the serialized entries back to back, and an index file
// with the byte length of every entry as a little-endian uint64.
package blockstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
)

const indexRecordSize = 8

// Store is the block store.  Popped entries are only forgotten by the index;
// their bytes stay in the data file until the next push overwrites them.
type Store struct {
	mtx sync.RWMutex

	data  *os.File
	index *os.File

	// offsets[i] is where entry i starts; the last element is the end of
	// the last entry, so len(offsets) == height+1.
	offsets []uint64
}

// Open opens or creates the store files inside dir.
func Open(dir, dataName, indexName string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "can't create block store directory")
	}

	data, err := os.OpenFile(filepath.Join(dir, dataName), os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %s", dataName)
	}
	index, err := os.OpenFile(filepath.Join(dir, indexName), os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		data.Close()
		return nil, errors.Wrapf(err, "can't open %s", indexName)
	}

	s := &Store{data: data, index: index}
	if err := s.load(); err != nil {
		s.Close()
		return nil, err
	}

	log.Info().Uint32("height", s.Height()).Str("dir", dir).Msg("block store opened")
	return s, nil
}

// load reads the length records and rebuilds the offsets.  A partially
// written trailing record or entry, left by a crash, is cut off.
func (s *Store) load() error {
	raw, err := io.ReadAll(io.NewSectionReader(s.index, 0, 1<<62))
	if err != nil {
		return errors.Wrap(err, "can't read block index")
	}

	dataInfo, err := s.data.Stat()
	if err != nil {
		return errors.Wrap(err, "can't stat block data")
	}
	dataSize := uint64(dataInfo.Size())

	count := len(raw) / indexRecordSize
	s.offsets = make([]uint64, 1, count+1)
	for i := 0; i < count; i++ {
		length := binary.LittleEndian.Uint64(raw[i*indexRecordSize:])
		end := s.offsets[i] + length
		if end > dataSize || end < s.offsets[i] {
			log.Warn().Int("height", i).Uint64("end", end).Uint64("dataSize", dataSize).
				Msg("block index points past the data file, truncating")
			count = i
			break
		}
		s.offsets = append(s.offsets, end)
	}

	if int64(count*indexRecordSize) != int64(len(raw)) {
		if err := s.index.Truncate(int64(count * indexRecordSize)); err != nil {
			return errors.Wrap(err, "can't truncate block index")
		}
	}
	return nil
}

// Height is the number of stored entries.
func (s *Store) Height() uint32 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return uint32(len(s.offsets) - 1)
}

// Get returns entry i.  Asking for an entry at or above the height is a
// caller bug and reported as an AssertError.
func (s *Store) Get(i uint32) (*chaindata.BlockEntry, error) {
	raw, err := s.GetRaw(i)
	if err != nil {
		return nil, err
	}
	entry, err := chaindata.NewBlockEntryFromBytes(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "can't decode block entry %d", i)
	}
	return entry, nil
}

// GetRaw returns the serialized entry i.
func (s *Store) GetRaw(i uint32) ([]byte, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if int(i) >= len(s.offsets)-1 {
		return nil, chaindata.AssertError(fmt.Sprintf(
			"block store get %d out of range, height %d", i, len(s.offsets)-1))
	}

	start, end := s.offsets[i], s.offsets[i+1]
	buf := make([]byte, end-start)
	if _, err := s.data.ReadAt(buf, int64(start)); err != nil {
		return nil, errors.Wrapf(err, "can't read block entry %d", i)
	}
	return buf, nil
}

// Push appends an entry.  The data is written before the index record, so a
// crash in between leaves an index that simply does not see the entry.
func (s *Store) Push(entry *chaindata.BlockEntry) error {
	var buf bytes.Buffer
	if err := entry.Serialize(&buf); err != nil {
		return errors.Wrap(err, "can't serialize block entry")
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	height := len(s.offsets) - 1
	start := s.offsets[height]
	if _, err := s.data.WriteAt(buf.Bytes(), int64(start)); err != nil {
		return errors.Wrapf(err, "can't write block entry %d", height)
	}

	var rec [indexRecordSize]byte
	binary.LittleEndian.PutUint64(rec[:], uint64(buf.Len()))
	if _, err := s.index.WriteAt(rec[:], int64(height*indexRecordSize)); err != nil {
		return errors.Wrapf(err, "can't write block index %d", height)
	}

	s.offsets = append(s.offsets, start+uint64(buf.Len()))
	return nil
}

// Pop forgets the last entry.
func (s *Store) Pop() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	height := len(s.offsets) - 1
	if height == 0 {
		return chaindata.AssertError("block store pop on empty store")
	}
	if err := s.index.Truncate(int64((height - 1) * indexRecordSize)); err != nil {
		return errors.Wrapf(err, "can't truncate block index to %d", height-1)
	}
	s.offsets = s.offsets[:height]
	return nil
}

// Sync flushes both files to disk.
func (s *Store) Sync() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.data.Sync(); err != nil {
		return errors.Wrap(err, "can't sync block data")
	}
	return errors.Wrap(s.index.Sync(), "can't sync block index")
}

// Close closes both files.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var firstErr error
	for _, f := range []*os.File{s.data, s.index} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
