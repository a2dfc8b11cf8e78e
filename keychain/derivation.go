package keychain

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

var (
	// ErrCannotDerivePrivKey is returned when DerivePrivKey is unable to
	// derive a private key given only the public key and target key
	// family.
	ErrCannotDerivePrivKey = errors.New("unable to derive private key")

	// ErrUnknownKeyFamily is returned for a family that has no branch
	// under the node master key.
	ErrUnknownKeyFamily = errors.New("unknown key family")
)

// KeyFamily represents a "family" of keys derived from the node master key.
// Each family is the hardened child of the master key at the family's value:
//
//   - m/keyFamily'
//
// The channel master family is the only one with children of its own, one
// hardened child per channel:
//
//   - m/3'/channelIndex'
type KeyFamily uint32

const (
	// KeyFamilyNodeKey is the family of the key that represents our
	// identity within the network.
	KeyFamilyNodeKey KeyFamily = 0

	// KeyFamilyUnilateralClose is the family of the key that receives our
	// funds when we force close a channel.
	KeyFamilyUnilateralClose KeyFamily = 1

	// KeyFamilyCoopClose is the family of the key that receives our funds
	// when a channel is closed cooperatively.
	KeyFamilyCoopClose KeyFamily = 2

	// KeyFamilyChannelMaster is the family every channel's base keys are
	// derived beneath.
	KeyFamilyChannelMaster KeyFamily = 3

	// KeyFamilyInboundPayment is the family of the key used to derive
	// inbound payment secrets.
	KeyFamilyInboundPayment KeyFamily = 5
)

// NodeKeyFamilies is a slice of all the key families known to NodeKeys.
var NodeKeyFamilies = []KeyFamily{
	KeyFamilyNodeKey,
	KeyFamilyUnilateralClose,
	KeyFamilyCoopClose,
	KeyFamilyChannelMaster,
	KeyFamilyInboundPayment,
}

// String returns a human readable name of the key family.
func (k KeyFamily) String() string {
	switch k {
	case KeyFamilyNodeKey:
		return "node"
	case KeyFamilyUnilateralClose:
		return "unilateral_close"
	case KeyFamilyCoopClose:
		return "coop_close"
	case KeyFamilyChannelMaster:
		return "channel_master"
	case KeyFamilyInboundPayment:
		return "inbound_payment"
	default:
		return "unknown"
	}
}

// KeyLocator is a two-tuple that can be used to derive *any* key that has ever
// been used under the key derivation mechanisms described in this file. The
// Index is only meaningful for the channel master family where it selects
// the channel.
type KeyLocator struct {
	// Family is the family of key being identified.
	Family KeyFamily

	// Index is the precise index of the key being identified.
	Index uint32
}

// IsEmpty returns true if a KeyLocator is "empty". This may be the case where
// we learn of a key from a remote party for a contract, but don't know the
// precise details of its derivation (as we don't know the private key!).
func (k KeyLocator) IsEmpty() bool {
	return k.Family == 0 && k.Index == 0
}

// KeyDescriptor wraps a KeyLocator and also optionally includes a public key.
// Either the KeyLocator must be non-empty, or the public key pointer be
// non-nil. This will be used by the KeyRing interface to lookup arbitrary
// private keys, and also within the SignDescriptor struct to locate precisely
// which keys should be used for signing.
type KeyDescriptor struct {
	// KeyLocator is the internal KeyLocator of the descriptor.
	KeyLocator

	// PubKey is an optional public key that fully describes a target key.
	// If this is nil, the KeyLocator MUST NOT be empty.
	PubKey *btcec.PublicKey
}

// KeyRing is the primary interface that will be used to derive the public
// keys of the node.
type KeyRing interface {
	// DeriveKey attempts to derive an arbitrary key specified by the
	// passed KeyLocator.
	DeriveKey(keyLoc KeyLocator) (KeyDescriptor, error)
}

// SecretKeyRing is a ring similar to the regular KeyRing interface, but it is
// also able to derive *private keys*.
type SecretKeyRing interface {
	KeyRing

	ECDHRing

	MessageSignerRing

	// DerivePrivKey attempts to derive the private key that corresponds to
	// the passed key descriptor. If only the public key is set, the key
	// families are scanned for a match.
	DerivePrivKey(keyDesc KeyDescriptor) (*btcec.PrivateKey, error)
}

// MessageSignerRing is an interface that abstracts away basic low-level ECDSA
// signing on keys within a key ring.
type MessageSignerRing interface {
	// SignMessage signs the given message, single or double SHA256 hashing
	// it first, with the private key described in the key locator.
	SignMessage(keyLoc KeyLocator, msg []byte,
		doubleHash bool) (*ecdsa.Signature, error)
}

// ECDHRing is an interface that abstracts away basic low-level ECDH shared key
// generation on keys within a key ring.
type ECDHRing interface {
	// ECDH performs a scalar multiplication (ECDH-like operation) between
	// the target key descriptor and remote public key. The output
	// returned will be the sha256 of the resulting shared point serialized
	// in compressed format. If k is our private key, and P is the public
	// key, we perform the following operation:
	//
	//  sx := k*P
	//  s := sha256(sx.SerializeCompressed())
	ECDH(keyDesc KeyDescriptor, pubKey *btcec.PublicKey) ([32]byte, error)
}
