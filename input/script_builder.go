package input

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

var (
	// ErrPushTooLarge is returned when a data push exceeds the 520 byte
	// script element limit.
	ErrPushTooLarge = errors.New("data push exceeds the script element " +
		"size limit")

	// ErrInvalidPubKey is returned when a public key push is not a valid
	// 33 byte compressed key.
	ErrInvalidPubKey = errors.New("public key must be a valid 33 byte " +
		"compressed key")

	// ErrInvalidSignature is returned when a signature push is not strict
	// DER.
	ErrInvalidSignature = errors.New("signature is not strict DER")

	// ErrScriptTooLarge is returned when a script grows past the 10,000
	// byte consensus limit.
	ErrScriptTooLarge = errors.New("script exceeds the maximum script " +
		"size")
)

// ScriptBuilder assembles a script from opcodes and pushes. It validates each
// push before handing it to the underlying txscript builder. The first error
// encountered sticks: every later call is a no-op and Script returns it.
type ScriptBuilder struct {
	builder *txscript.ScriptBuilder
	err     error
}

// NewScriptBuilder returns an empty ScriptBuilder.
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{
		builder: txscript.NewScriptBuilder(),
	}
}

// AddOp appends a single opcode.
func (b *ScriptBuilder) AddOp(opcode byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	b.builder.AddOp(opcode)

	return b
}

// AddInt64 pushes v using the minimal encoding: a small integer opcode where
// one exists, a script number otherwise.
func (b *ScriptBuilder) AddInt64(v int64) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	b.builder.AddInt64(v)

	return b
}

// AddData pushes data with the smallest push opcode able to hold it.
func (b *ScriptBuilder) AddData(data []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	if len(data) > txscript.MaxScriptElementSize {
		b.err = fmt.Errorf("%w: %d bytes", ErrPushTooLarge, len(data))
		return b
	}

	b.builder.AddData(data)

	return b
}

// AddPubKey pushes a serialized compressed public key.
func (b *ScriptBuilder) AddPubKey(pubKey []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	if len(pubKey) != btcec.PubKeyBytesLenCompressed {
		b.err = fmt.Errorf("%w: got %d bytes", ErrInvalidPubKey,
			len(pubKey))
		return b
	}
	if _, err := btcec.ParsePubKey(pubKey); err != nil {
		b.err = fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
		return b
	}

	return b.AddData(pubKey)
}

// AddPubKeyHash pushes the HASH160 of the compressed encoding of pubKey.
func (b *ScriptBuilder) AddPubKeyHash(pubKey *btcec.PublicKey) *ScriptBuilder {
	return b.AddData(btcutil.Hash160(pubKey.SerializeCompressed()))
}

// AddSignature pushes a DER encoded signature followed by its sighash type.
func (b *ScriptBuilder) AddSignature(sig []byte,
	hashType txscript.SigHashType) *ScriptBuilder {

	if b.err != nil {
		return b
	}

	if _, err := ecdsa.ParseDERSignature(sig); err != nil {
		b.err = fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		return b
	}

	sigWithHash := make([]byte, 0, len(sig)+1)
	sigWithHash = append(sigWithHash, sig...)
	sigWithHash = append(sigWithHash, byte(hashType))

	return b.AddData(sigWithHash)
}

// AddScript splices the raw bytes of another script.
func (b *ScriptBuilder) AddScript(script []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	b.builder.AddOps(script)

	return b
}

// Script returns the assembled script, or the first error hit while building
// it.
func (b *ScriptBuilder) Script() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	// Pushes are validated up front, so the only failure left in the
	// underlying builder is the script outgrowing the size limit.
	script, err := b.builder.Script()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptTooLarge, err)
	}
	if len(script) > txscript.MaxScriptSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrScriptTooLarge,
			len(script))
	}

	return script, nil
}
