package keychain

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SingleKeyMessageSigner is an abstraction interface that hides the
// implementation of the low-level ECDSA signing operations by wrapping a
// single, specific private key.
type SingleKeyMessageSigner interface {
	// PubKey returns the public key of the wrapped private key.
	PubKey() *btcec.PublicKey

	// KeyLocator returns the locator that describes the wrapped private
	// key.
	KeyLocator() KeyLocator

	// SignMessage signs the given message, single or double SHA256 hashing
	// it first, with the wrapped private key.
	SignMessage(message []byte, doubleHash bool) (*ecdsa.Signature, error)
}

// NewPrivKeyMessageSigner creates a new PrivKeyMessageSigner instance.
func NewPrivKeyMessageSigner(privKey *btcec.PrivateKey,
	keyLoc KeyLocator) *PrivKeyMessageSigner {

	return &PrivKeyMessageSigner{
		privKey: privKey,
		keyLoc:  keyLoc,
	}
}

// PrivKeyMessageSigner is an implementation of the SingleKeyMessageSigner
// interface that wraps an in-memory private key.
type PrivKeyMessageSigner struct {
	privKey *btcec.PrivateKey
	keyLoc  KeyLocator
}

// PubKey returns the public key of the wrapped private key.
func (p *PrivKeyMessageSigner) PubKey() *btcec.PublicKey {
	return p.privKey.PubKey()
}

// KeyLocator returns the locator that describes the wrapped private key.
func (p *PrivKeyMessageSigner) KeyLocator() KeyLocator {
	return p.keyLoc
}

// SignMessage signs the given message, single or double SHA256 hashing it
// first, with the wrapped private key.
func (p *PrivKeyMessageSigner) SignMessage(msg []byte,
	doubleHash bool) (*ecdsa.Signature, error) {

	var digest []byte
	if doubleHash {
		digest = chainhash.DoubleHashB(msg)
	} else {
		digest = chainhash.HashB(msg)
	}

	return ecdsa.Sign(p.privKey, digest), nil
}

var _ SingleKeyMessageSigner = (*PrivKeyMessageSigner)(nil)
