// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ldb

import (
	"bytes"
	"os"
	"sort"
	"sync"

	"github.com/btcsuite/goleveldb/leveldb"
	ldberrors "github.com/btcsuite/goleveldb/leveldb/errors"
	"github.com/btcsuite/goleveldb/leveldb/filter"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/btcsuite/goleveldb/leveldb/util"

	"gitlab.com/jaxnet/cnoted/database"
)

// db wraps a leveldb instance.  Bucket keys are prefixed with the length of
// the bucket name and the name itself.
type db struct {
	// writeLock serializes read-write transactions.
	writeLock sync.Mutex

	closeLock sync.RWMutex
	closed    bool

	ldb *leveldb.DB
}

var _ database.DB = (*db)(nil)

// openDB opens the database at dbPath, creating it when create is set.
func openDB(dbPath string, create bool) (database.DB, error) {
	if !create {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, database.MakeError(database.ErrDBDoesNotExist,
				"database does not exist", err)
		}
	}

	opts := opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.NoCompression,
		Filter:      filter.NewBloomFilter(10),
	}
	ldb, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, convertErr("can't open metadata db", err)
	}

	log.Debug().Str("path", dbPath).Msg("metadata db opened")
	return &db{ldb: ldb}, nil
}

// convertErr converts the passed leveldb error into a database error with an
// equivalent error code and the passed description.
func convertErr(desc string, ldbErr error) database.Error {
	code := database.ErrDriverSpecific
	switch {
	case ldberrors.IsCorrupted(ldbErr):
		code = database.ErrCorruption
	case ldbErr == leveldb.ErrClosed:
		code = database.ErrDBNotOpen
	}
	return database.MakeError(code, desc, ldbErr)
}

func (d *db) Type() string {
	return dbType
}

func (d *db) Begin(writable bool) (database.Tx, error) {
	d.closeLock.RLock()
	if d.closed {
		d.closeLock.RUnlock()
		return nil, database.MakeError(database.ErrDBNotOpen, "database is not open", nil)
	}

	if writable {
		d.writeLock.Lock()
	}

	snap, err := d.ldb.GetSnapshot()
	if err != nil {
		if writable {
			d.writeLock.Unlock()
		}
		d.closeLock.RUnlock()
		return nil, convertErr("can't take snapshot", err)
	}

	return &transaction{
		db:       d,
		snapshot: snap,
		writable: writable,
		pending:  make(map[string][]byte),
	}, nil
}

func (d *db) View(fn func(tx database.Tx) error) error {
	tx, err := d.Begin(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

func (d *db) Update(fn func(tx database.Tx) error) error {
	tx, err := d.Begin(true)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *db) Close() error {
	d.closeLock.Lock()
	defer d.closeLock.Unlock()
	if d.closed {
		return database.MakeError(database.ErrDBNotOpen, "database is not open", nil)
	}
	d.closed = true
	if err := d.ldb.Close(); err != nil {
		return convertErr("can't close metadata db", err)
	}
	return nil
}

// transaction reads from a snapshot and buffers its writes until commit.  A
// nil value in pending marks a deletion.
type transaction struct {
	db       *db
	snapshot *leveldb.Snapshot
	writable bool
	closed   bool
	pending  map[string][]byte
}

func (tx *transaction) Writable() bool {
	return tx.writable
}

func (tx *transaction) Bucket(name []byte) database.Bucket {
	prefix := make([]byte, 0, len(name)+1)
	prefix = append(prefix, byte(len(name)))
	prefix = append(prefix, name...)
	return &bucket{tx: tx, prefix: prefix}
}

func (tx *transaction) close() {
	tx.closed = true
	tx.snapshot.Release()
	tx.pending = nil
	if tx.writable {
		tx.db.writeLock.Unlock()
	}
	tx.db.closeLock.RUnlock()
}

func (tx *transaction) Commit() error {
	if tx.closed {
		return database.MakeError(database.ErrTxClosed, "transaction is closed", nil)
	}
	if !tx.writable {
		tx.close()
		return database.MakeError(database.ErrTxNotWritable, "transaction is not writable", nil)
	}

	batch := new(leveldb.Batch)
	for k, v := range tx.pending {
		if v == nil {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), v)
		}
	}
	err := tx.db.ldb.Write(batch, nil)
	tx.close()
	if err != nil {
		return convertErr("can't commit transaction", err)
	}
	return nil
}

func (tx *transaction) Rollback() error {
	if tx.closed {
		return database.MakeError(database.ErrTxClosed, "transaction is closed", nil)
	}
	tx.close()
	return nil
}

type bucket struct {
	tx     *transaction
	prefix []byte
}

func (b *bucket) key(k []byte) []byte {
	full := make([]byte, 0, len(b.prefix)+len(k))
	full = append(full, b.prefix...)
	return append(full, k...)
}

func (b *bucket) Get(key []byte) []byte {
	if b.tx.closed {
		return nil
	}
	full := b.key(key)
	if v, ok := b.tx.pending[string(full)]; ok {
		if v == nil {
			return nil
		}
		return append([]byte(nil), v...)
	}
	v, err := b.tx.snapshot.Get(full, nil)
	if err != nil {
		return nil
	}
	return v
}

func (b *bucket) Has(key []byte) bool {
	if b.tx.closed {
		return false
	}
	full := b.key(key)
	if v, ok := b.tx.pending[string(full)]; ok {
		return v != nil
	}
	ok, err := b.tx.snapshot.Has(full, nil)
	return err == nil && ok
}

func (b *bucket) Put(key, value []byte) error {
	if err := b.checkWritable(key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	b.tx.pending[string(b.key(key))] = append([]byte(nil), value...)
	return nil
}

func (b *bucket) Delete(key []byte) error {
	if err := b.checkWritable(key); err != nil {
		return err
	}
	b.tx.pending[string(b.key(key))] = nil
	return nil
}

func (b *bucket) checkWritable(key []byte) error {
	if b.tx.closed {
		return database.MakeError(database.ErrTxClosed, "transaction is closed", nil)
	}
	if !b.tx.writable {
		return database.MakeError(database.ErrTxNotWritable, "transaction is not writable", nil)
	}
	if len(key) == 0 {
		return database.MakeError(database.ErrKeyRequired, "key is required", nil)
	}
	return nil
}

func (b *bucket) ForEach(fn func(k, v []byte) error) error {
	if b.tx.closed {
		return database.MakeError(database.ErrTxClosed, "transaction is closed", nil)
	}

	merged := make(map[string][]byte)
	iter := b.tx.snapshot.NewIterator(util.BytesPrefix(b.prefix), nil)
	for iter.Next() {
		merged[string(iter.Key())] = append([]byte(nil), iter.Value()...)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return convertErr("can't iterate bucket", err)
	}

	for k, v := range b.tx.pending {
		if !bytes.HasPrefix([]byte(k), b.prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn([]byte(k)[len(b.prefix):], merged[k]); err != nil {
			return err
		}
	}
	return nil
}
