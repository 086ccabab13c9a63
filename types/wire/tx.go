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

// Input and output variant tags.
const (
	TxInGenTag       uint8 = 0xff
	TxInToKeyTag     uint8 = 0x02
	TxInMultisigTag  uint8 = 0x03
	TxOutToKeyTag    uint8 = 0x02
	TxOutMultisigTag uint8 = 0x03
)

const (
	// CurrentTxVersion is the transaction version produced by this node.
	CurrentTxVersion = 1

	// MaxTxExtraSize caps the extra field.
	MaxTxExtraSize = 1 << 16
)

// TxIn is a closed variant over the input kinds.
type TxIn interface {
	// Tag returns the variant tag written on the wire.
	Tag() uint8

	// SignatureCount is the number of signatures the input carries.
	SignatureCount() int

	// InAmount is the value spent by the input (zero for coinbase).
	InAmount() uint64

	serialize(w io.Writer) error
}

// TxInGen is the coinbase input referencing the height it mints at.
type TxInGen struct {
	Height uint32
}

func (in *TxInGen) Tag() uint8          { return TxInGenTag }
func (in *TxInGen) SignatureCount() int { return 0 }
func (in *TxInGen) InAmount() uint64    { return 0 }

func (in *TxInGen) serialize(w io.Writer) error {
	return WriteVarInt(w, uint64(in.Height))
}

// TxInToKey spends one output out of a ring of same-amount outputs.
// KeyOffsets are relative: the first is an absolute global index and each
// following one is a delta from the previous.
type TxInToKey struct {
	Amount     uint64
	KeyOffsets []uint32
	KeyImage   KeyImage
}

func (in *TxInToKey) Tag() uint8          { return TxInToKeyTag }
func (in *TxInToKey) SignatureCount() int { return len(in.KeyOffsets) }
func (in *TxInToKey) InAmount() uint64    { return in.Amount }

func (in *TxInToKey) serialize(w io.Writer) error {
	if err := WriteVarInt(w, in.Amount); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(in.KeyOffsets))); err != nil {
		return err
	}
	for _, off := range in.KeyOffsets {
		if err := WriteVarInt(w, uint64(off)); err != nil {
			return err
		}
	}
	return WriteElement(w, in.KeyImage)
}

// AbsoluteOffsets converts the relative ring offsets into global indexes.
func (in *TxInToKey) AbsoluteOffsets() []uint32 {
	res := make([]uint32, len(in.KeyOffsets))
	var acc uint32
	for i, off := range in.KeyOffsets {
		acc += off
		res[i] = acc
	}
	return res
}

// TxInMultisig spends a multisignature output by its global index.
type TxInMultisig struct {
	Amount      uint64
	Signatures  uint32
	OutputIndex uint32
}

func (in *TxInMultisig) Tag() uint8          { return TxInMultisigTag }
func (in *TxInMultisig) SignatureCount() int { return int(in.Signatures) }
func (in *TxInMultisig) InAmount() uint64    { return in.Amount }

func (in *TxInMultisig) serialize(w io.Writer) error {
	if err := WriteVarInt(w, in.Amount); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(in.Signatures)); err != nil {
		return err
	}
	return WriteVarInt(w, uint64(in.OutputIndex))
}

// TxOutTarget is a closed variant over the output kinds.
type TxOutTarget interface {
	Tag() uint8
	serialize(w io.Writer) error
}

// TxOutToKey pays to a single one-time key.
type TxOutToKey struct {
	Key PublicKey
}

func (t *TxOutToKey) Tag() uint8 { return TxOutToKeyTag }

func (t *TxOutToKey) serialize(w io.Writer) error {
	return WriteElement(w, t.Key)
}

// TxOutMultisig pays to RequiredSignatures out of Keys.
type TxOutMultisig struct {
	Keys               []PublicKey
	RequiredSignatures uint32
}

func (t *TxOutMultisig) Tag() uint8 { return TxOutMultisigTag }

func (t *TxOutMultisig) serialize(w io.Writer) error {
	if err := WriteVarInt(w, uint64(len(t.Keys))); err != nil {
		return err
	}
	for _, k := range t.Keys {
		if err := WriteElement(w, k); err != nil {
			return err
		}
	}
	return WriteVarInt(w, uint64(t.RequiredSignatures))
}

// TxOut is an amount paired with its target.
type TxOut struct {
	Amount uint64
	Target TxOutTarget
}

// MsgTx is a transaction: prefix plus per-input signatures.
type MsgTx struct {
	Version    uint64
	UnlockTime uint64
	TxIn       []TxIn
	TxOut      []TxOut
	Extra      []byte

	// Signatures holds one slice per input, each sized by the input's
	// SignatureCount.
	Signatures [][]Signature
}

// SerializePrefix writes the signature-less part of the transaction.
func (msg *MsgTx) SerializePrefix(w io.Writer) error {
	if err := WriteVarInt(w, msg.Version); err != nil {
		return err
	}
	if err := WriteVarInt(w, msg.UnlockTime); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, in := range msg.TxIn {
		if err := WriteElement(w, in.Tag()); err != nil {
			return err
		}
		if err := in.serialize(w); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, out := range msg.TxOut {
		if err := WriteVarInt(w, out.Amount); err != nil {
			return err
		}
		if err := WriteElement(w, out.Target.Tag()); err != nil {
			return err
		}
		if err := out.Target.serialize(w); err != nil {
			return err
		}
	}

	return WriteVarBytes(w, msg.Extra)
}

// Serialize writes the whole transaction.  The signature layout is implied by
// the inputs, so a mismatch between the two is refused here rather than
// producing an undecodable blob.
func (msg *MsgTx) Serialize(w io.Writer) error {
	if err := msg.checkSignatureLayout(); err != nil {
		return err
	}
	if err := msg.SerializePrefix(w); err != nil {
		return err
	}
	for _, sigs := range msg.Signatures {
		for _, sig := range sigs {
			if err := WriteElement(w, sig); err != nil {
				return err
			}
		}
	}
	return nil
}

func (msg *MsgTx) checkSignatureLayout() error {
	// A transaction without any signatures is a prefix-only form.
	if len(msg.Signatures) == 0 {
		for _, in := range msg.TxIn {
			if in.SignatureCount() != 0 {
				return Error("MsgTx.Serialize", ErrBadValue,
					"signatures missing for signed inputs")
			}
		}
		return nil
	}

	if len(msg.Signatures) != len(msg.TxIn) {
		return Error("MsgTx.Serialize", ErrBadValue, fmt.Sprintf(
			"%d signature sets for %d inputs", len(msg.Signatures), len(msg.TxIn)))
	}
	for i, in := range msg.TxIn {
		if len(msg.Signatures[i]) != in.SignatureCount() {
			return Error("MsgTx.Serialize", ErrBadValue, fmt.Sprintf(
				"input %d has %d signatures, expected %d", i,
				len(msg.Signatures[i]), in.SignatureCount()))
		}
	}
	return nil
}

// Deserialize decodes a transaction from r.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	var err error
	if msg.Version, err = ReadVarInt(r); err != nil {
		return err
	}
	if msg.UnlockTime, err = ReadVarInt(r); err != nil {
		return err
	}

	inCount, err := ReadCount(r, MaxElementsCount, "inputs")
	if err != nil {
		return err
	}
	msg.TxIn = make([]TxIn, 0, inCount)
	for i := 0; i < inCount; i++ {
		in, err := readTxIn(r)
		if err != nil {
			return err
		}
		msg.TxIn = append(msg.TxIn, in)
	}

	outCount, err := ReadCount(r, MaxElementsCount, "outputs")
	if err != nil {
		return err
	}
	msg.TxOut = make([]TxOut, 0, outCount)
	for i := 0; i < outCount; i++ {
		out, err := readTxOut(r)
		if err != nil {
			return err
		}
		msg.TxOut = append(msg.TxOut, out)
	}

	if msg.Extra, err = ReadVarBytes(r, MaxTxExtraSize, "extra"); err != nil {
		return err
	}

	msg.Signatures = nil
	signed := false
	for _, in := range msg.TxIn {
		if in.SignatureCount() > 0 {
			signed = true
			break
		}
	}
	if !signed {
		return nil
	}

	msg.Signatures = make([][]Signature, len(msg.TxIn))
	for i, in := range msg.TxIn {
		sigs := make([]Signature, in.SignatureCount())
		for j := range sigs {
			if err := ReadElement(r, &sigs[j]); err != nil {
				return err
			}
		}
		msg.Signatures[i] = sigs
	}
	return nil
}

func readTxIn(r io.Reader) (TxIn, error) {
	var tag uint8
	if err := ReadElement(r, &tag); err != nil {
		return nil, err
	}

	switch tag {
	case TxInGenTag:
		h, err := ReadVarIntUint32(r, "height")
		if err != nil {
			return nil, err
		}
		return &TxInGen{Height: h}, nil

	case TxInToKeyTag:
		in := new(TxInToKey)
		var err error
		if in.Amount, err = ReadVarInt(r); err != nil {
			return nil, err
		}
		count, err := ReadCount(r, MaxElementsCount, "key offsets")
		if err != nil {
			return nil, err
		}
		in.KeyOffsets = make([]uint32, count)
		for i := range in.KeyOffsets {
			if in.KeyOffsets[i], err = ReadVarIntUint32(r, "key offset"); err != nil {
				return nil, err
			}
		}
		if err := ReadElement(r, &in.KeyImage); err != nil {
			return nil, err
		}
		return in, nil

	case TxInMultisigTag:
		in := new(TxInMultisig)
		var err error
		if in.Amount, err = ReadVarInt(r); err != nil {
			return nil, err
		}
		if in.Signatures, err = ReadVarIntUint32(r, "signature count"); err != nil {
			return nil, err
		}
		if in.Signatures > MaxElementsCount {
			return nil, Error("readTxIn", ErrOversize, "too many multisig signatures")
		}
		if in.OutputIndex, err = ReadVarIntUint32(r, "output index"); err != nil {
			return nil, err
		}
		return in, nil
	}

	return nil, Error("readTxIn", ErrUnknownTag, fmt.Sprintf("input tag 0x%02x", tag))
}

func readTxOut(r io.Reader) (TxOut, error) {
	var out TxOut
	var err error
	if out.Amount, err = ReadVarInt(r); err != nil {
		return out, err
	}

	var tag uint8
	if err := ReadElement(r, &tag); err != nil {
		return out, err
	}

	switch tag {
	case TxOutToKeyTag:
		t := new(TxOutToKey)
		if err := ReadElement(r, &t.Key); err != nil {
			return out, err
		}
		out.Target = t

	case TxOutMultisigTag:
		t := new(TxOutMultisig)
		count, err := ReadCount(r, MaxElementsCount, "multisig keys")
		if err != nil {
			return out, err
		}
		t.Keys = make([]PublicKey, count)
		for i := range t.Keys {
			if err := ReadElement(r, &t.Keys[i]); err != nil {
				return out, err
			}
		}
		if t.RequiredSignatures, err = ReadVarIntUint32(r, "required signatures"); err != nil {
			return out, err
		}
		out.Target = t

	default:
		return out, Error("readTxOut", ErrUnknownTag, fmt.Sprintf("output tag 0x%02x", tag))
	}
	return out, nil
}

// Bytes returns the serialized transaction.
func (msg *MsgTx) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewTxFromBytes decodes a transaction and refuses trailing data.
func NewTxFromBytes(b []byte) (*MsgTx, error) {
	r := bytes.NewReader(b)
	tx := new(MsgTx)
	if err := tx.Deserialize(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, Error("NewTxFromBytes", ErrTrailingBytes,
			fmt.Sprintf("%d bytes left after transaction", r.Len()))
	}
	return tx, nil
}

// PrefixBytes returns the serialized prefix.
func (msg *MsgTx) PrefixBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.SerializePrefix(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TxHash returns the fast hash of the full transaction blob.  A transaction
// that fails to serialize hashes to the zero hash.
func (msg *MsgTx) TxHash() chainhash.Hash {
	b, err := msg.Bytes()
	if err != nil {
		return chainhash.ZeroHash
	}
	return chainhash.HashH(b)
}

// PrefixHash returns the fast hash of the transaction prefix, the message
// ring signatures commit to.
func (msg *MsgTx) PrefixHash() chainhash.Hash {
	b, err := msg.PrefixBytes()
	if err != nil {
		return chainhash.ZeroHash
	}
	return chainhash.HashH(b)
}

// SerializeSize returns the number of bytes the serialized transaction takes.
func (msg *MsgTx) SerializeSize() int {
	b, err := msg.Bytes()
	if err != nil {
		return 0
	}
	return len(b)
}

// IsCoinBase reports whether the transaction is a miner transaction.
func (msg *MsgTx) IsCoinBase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	_, ok := msg.TxIn[0].(*TxInGen)
	return ok
}

// InputsAmount sums all input amounts, reporting false on overflow.
func (msg *MsgTx) InputsAmount() (uint64, bool) {
	var total uint64
	for _, in := range msg.TxIn {
		a := in.InAmount()
		if total+a < total {
			return 0, false
		}
		total += a
	}
	return total, true
}

// OutputsAmount sums all output amounts, reporting false on overflow.
func (msg *MsgTx) OutputsAmount() (uint64, bool) {
	var total uint64
	for _, out := range msg.TxOut {
		if total+out.Amount < total {
			return 0, false
		}
		total += out.Amount
	}
	return total, true
}

// Fee returns inputs minus outputs.  Miner transactions have no fee.
func (msg *MsgTx) Fee() (uint64, error) {
	if msg.IsCoinBase() {
		return 0, nil
	}
	in, ok := msg.InputsAmount()
	if !ok {
		return 0, Error("MsgTx.Fee", ErrBadValue, "inputs amount overflow")
	}
	out, ok := msg.OutputsAmount()
	if !ok {
		return 0, Error("MsgTx.Fee", ErrBadValue, "outputs amount overflow")
	}
	if out > in {
		return 0, Error("MsgTx.Fee", ErrBadValue,
			fmt.Sprintf("outputs %d exceed inputs %d", out, in))
	}
	return in - out, nil
}

// KeyImages lists the key images of all key inputs in order.
func (msg *MsgTx) KeyImages() []KeyImage {
	var images []KeyImage
	for _, in := range msg.TxIn {
		if k, ok := in.(*TxInToKey); ok {
			images = append(images, k.KeyImage)
		}
	}
	return images
}
