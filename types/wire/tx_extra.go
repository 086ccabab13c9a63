// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

// Extra field tags.
const (
	TxExtraTagPadding     uint8 = 0x00
	TxExtraTagPubKey      uint8 = 0x01
	TxExtraTagNonce       uint8 = 0x02
	TxExtraTagMergeMining uint8 = 0x03
	TxExtraNoncePaymentID uint8 = 0x00
)

const (
	TxExtraMaxPaddingCount = 255
	TxExtraNonceMaxCount   = 255
)

// TxExtra holds the recognised fields of a transaction's extra blob.
type TxExtra struct {
	PublicKey   *PublicKey
	Nonce       []byte
	MergeMining []byte
}

// PaymentID returns the payment id carried in the extra nonce, if any.
func (e *TxExtra) PaymentID() (chainhash.Hash, bool) {
	var id chainhash.Hash
	if len(e.Nonce) != chainhash.HashSize+1 || e.Nonce[0] != TxExtraNoncePaymentID {
		return id, false
	}
	copy(id[:], e.Nonce[1:])
	return id, true
}

// ParseTxExtra decodes the tagged fields of extra.  Parsing stops at the
// first malformed field; whatever was recognised up to that point is returned
// together with the error.
func ParseTxExtra(extra []byte) (*TxExtra, error) {
	res := new(TxExtra)
	r := bytes.NewReader(extra)

	for r.Len() > 0 {
		tag, _ := r.ReadByte()
		switch tag {
		case TxExtraTagPadding:
			// Padding runs to the end of extra and must be all zeroes.
			n := 1
			for r.Len() > 0 {
				b, _ := r.ReadByte()
				n++
				if b != 0 || n > TxExtraMaxPaddingCount {
					return res, Error("ParseTxExtra", ErrBadValue, "bad padding")
				}
			}

		case TxExtraTagPubKey:
			var key PublicKey
			if _, err := io.ReadFull(r, key[:]); err != nil {
				return res, asTruncated("ParseTxExtra", err)
			}
			res.PublicKey = &key

		case TxExtraTagNonce:
			nonce, err := ReadVarBytes(r, TxExtraNonceMaxCount, "extra nonce")
			if err != nil {
				return res, err
			}
			res.Nonce = nonce

		case TxExtraTagMergeMining:
			mm, err := ReadVarBytes(r, MaxTxExtraSize, "merge mining tag")
			if err != nil {
				return res, err
			}
			res.MergeMining = mm

		default:
			return res, Error("ParseTxExtra", ErrUnknownTag,
				fmt.Sprintf("extra tag 0x%02x", tag))
		}
	}
	return res, nil
}

// BuildTxExtra encodes a public key and an optional payment id.
func BuildTxExtra(key *PublicKey, paymentID *chainhash.Hash) []byte {
	var buf bytes.Buffer
	if key != nil {
		buf.WriteByte(TxExtraTagPubKey)
		buf.Write(key[:])
	}
	if paymentID != nil {
		buf.WriteByte(TxExtraTagNonce)
		nonce := append([]byte{TxExtraNoncePaymentID}, paymentID[:]...)
		_ = WriteVarBytes(&buf, nonce)
	}
	return buf.Bytes()
}

// PaymentID extracts the payment id from a transaction's extra field.
func (msg *MsgTx) PaymentID() (chainhash.Hash, bool) {
	extra, _ := ParseTxExtra(msg.Extra)
	return extra.PaymentID()
}
