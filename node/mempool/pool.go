// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
	"gitlab.com/jaxnet/cnoted/types/wire"
)

// AddFlags tell the pool where a transaction comes from.
type AddFlags uint8

const (
	// KeptByBlock marks transactions that arrived as part of a block.
	// They skip chain validation since the block push validates them.
	KeptByBlock AddFlags = 1 << iota
)

// TxValidator checks a loose transaction against the chain and returns its
// fee.
type TxValidator interface {
	ValidateTransaction(tx *wire.MsgTx) (uint64, error)
}

// TxDesc is a pooled transaction with the values computed when it was added.
type TxDesc struct {
	Tx          *wire.MsgTx
	Hash        chainhash.Hash
	BlobSize    uint64
	Fee         uint64
	KeptByBlock bool
	Added       time.Time
}

// Config holds the pool dependencies.
type Config struct {
	// Validator checks relayed transactions.  Nil accepts all of them.
	Validator TxValidator

	// MaxTxSize rejects larger transactions.
	MaxTxSize uint64

	// Now returns the current time.
	Now func() time.Time
}

// TxPool holds unconfirmed transactions.  Key images spent by pooled
// transactions are tracked so two pooled transactions can never spend the
// same output.
type TxPool struct {
	mtx       sync.RWMutex
	cfg       Config
	pool      map[chainhash.Hash]*TxDesc
	keyImages map[wire.KeyImage]chainhash.Hash
}

// New returns an empty pool.
func New(cfg *Config) *TxPool {
	c := *cfg
	if c.Now == nil {
		c.Now = time.Now
	}
	return &TxPool{
		cfg:       c,
		pool:      make(map[chainhash.Hash]*TxDesc),
		keyImages: make(map[wire.KeyImage]chainhash.Hash),
	}
}

// SetValidator installs the chain validator.  The pool and the chain refer
// to each other, so the validator is wired after both exist.
func (mp *TxPool) SetValidator(v TxValidator) {
	mp.mtx.Lock()
	mp.cfg.Validator = v
	mp.mtx.Unlock()
}

// AddTx adds tx to the pool and fills ctx.  It returns whether the
// transaction is in the pool afterwards.
//
// The validator runs without the pool lock held: the chain calls back into
// the pool while holding its own lock.
func (mp *TxPool) AddTx(tx *wire.MsgTx, flags AddFlags, ctx *chaindata.TxVerificationContext) bool {
	blob, err := tx.Bytes()
	if err != nil {
		ctx.Failed, ctx.Err = true, err
		return false
	}
	hash := chainhash.HashH(blob)
	keptByBlock := flags&KeptByBlock != 0

	if mp.HaveTx(hash) {
		ctx.AddedToPool = false
		return true
	}

	if tx.IsCoinBase() || len(tx.TxIn) == 0 {
		ctx.Failed = true
		ctx.Err = chaindata.NewRuleError(chaindata.ErrBadTx, "miner or inputless transaction in pool")
		return false
	}
	if mp.cfg.MaxTxSize > 0 && uint64(len(blob)) > mp.cfg.MaxTxSize {
		ctx.Failed = true
		ctx.Err = chaindata.NewRuleError(chaindata.ErrBadTx,
			fmt.Sprintf("transaction %s size %d exceeds %d", hash, len(blob), mp.cfg.MaxTxSize))
		return false
	}

	mp.mtx.RLock()
	validator := mp.cfg.Validator
	mp.mtx.RUnlock()

	var fee uint64
	if !keptByBlock && validator != nil {
		fee, err = validator.ValidateTransaction(tx)
		if err != nil {
			ctx.Failed = true
			ctx.Err = err
			log.Debug().Stringer("tx", hash).Err(err).Msg("transaction rejected")
			return false
		}
	} else {
		fee, err = tx.Fee()
		if err != nil {
			ctx.Failed = true
			ctx.Err = err
			return false
		}
	}

	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	if _, ok := mp.pool[hash]; ok {
		ctx.AddedToPool = false
		return true
	}

	for _, ki := range tx.KeyImages() {
		other, ok := mp.keyImages[ki]
		if !ok {
			continue
		}
		// A block always wins over a loose transaction.
		if keptByBlock {
			mp.removeLocked(mp.pool[other])
			continue
		}
		ctx.Failed = true
		ctx.Err = chaindata.NewRuleError(chaindata.ErrDoubleSpend,
			fmt.Sprintf("key image %s of %s already spent by pooled %s", ki, hash, other))
		return false
	}

	mp.pool[hash] = &TxDesc{
		Tx:          tx,
		Hash:        hash,
		BlobSize:    uint64(len(blob)),
		Fee:         fee,
		KeptByBlock: keptByBlock,
		Added:       mp.cfg.Now(),
	}
	for _, ki := range tx.KeyImages() {
		mp.keyImages[ki] = hash
	}

	ctx.AddedToPool = true
	ctx.ShouldBeRelayed = !keptByBlock
	log.Trace().Stringer("tx", hash).Uint64("fee", fee).Bool("keptByBlock", keptByBlock).
		Msg("transaction added to pool")
	return true
}

// TakeTx removes and returns the pooled transaction.
func (mp *TxPool) TakeTx(hash chainhash.Hash) (*TxDesc, bool) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	desc, ok := mp.pool[hash]
	if !ok {
		return nil, false
	}
	mp.removeLocked(desc)
	return desc, true
}

func (mp *TxPool) removeLocked(desc *TxDesc) {
	delete(mp.pool, desc.Hash)
	for _, ki := range desc.Tx.KeyImages() {
		if mp.keyImages[ki] == desc.Hash {
			delete(mp.keyImages, ki)
		}
	}
}

// HaveTx reports whether the transaction is pooled.
func (mp *TxPool) HaveTx(hash chainhash.Hash) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()
	_, ok := mp.pool[hash]
	return ok
}

// FetchTx returns the pooled transaction without removing it.
func (mp *TxPool) FetchTx(hash chainhash.Hash) (*wire.MsgTx, bool) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()
	desc, ok := mp.pool[hash]
	if !ok {
		return nil, false
	}
	return desc.Tx, true
}

// HaveKeyImage reports whether a pooled transaction spends ki.
func (mp *TxPool) HaveKeyImage(ki wire.KeyImage) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()
	_, ok := mp.keyImages[ki]
	return ok
}

// Count is the number of pooled transactions.
func (mp *TxPool) Count() int {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()
	return len(mp.pool)
}

// Transactions returns the pooled transactions, oldest first.
func (mp *TxPool) Transactions() []*TxDesc {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	res := make([]*TxDesc, 0, len(mp.pool))
	for _, d := range mp.pool {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Added.Equal(res[j].Added) {
			return res[i].Hash.String() < res[j].Hash.String()
		}
		return res[i].Added.Before(res[j].Added)
	})
	return res
}

// RemoveExpired drops relayed transactions older than ttl and returns how
// many went.
func (mp *TxPool) RemoveExpired(ttl time.Duration) int {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	deadline := mp.cfg.Now().Add(-ttl)
	var n int
	for _, d := range mp.pool {
		if d.Added.Before(deadline) {
			mp.removeLocked(d)
			n++
		}
	}
	if n > 0 {
		log.Debug().Int("count", n).Msg("expired transactions removed")
	}
	return n
}
