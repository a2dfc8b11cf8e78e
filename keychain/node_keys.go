package keychain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// NodeKeys is an in-memory SecretKeyRing holding the keys of a node derived
// from its 32 byte seed. The keys are fixed at construction so a NodeKeys can
// be shared between goroutines.
type NodeKeys struct {
	seed [32]byte

	nodeSecret      *btcec.PrivateKey
	unilateralClose *btcec.PrivateKey
	coopClose       *btcec.PrivateKey
	inboundPayment  *btcec.PrivateKey

	// channelMaster stays extended since every channel derives a
	// hardened child from it.
	channelMaster *hdkeychain.ExtendedKey
}

// A compile time check to ensure NodeKeys implements the SecretKeyRing
// interface.
var _ SecretKeyRing = (*NodeKeys)(nil)

// NewNodeKeys derives the BIP32 master key of seed and the hardened children
// of every known key family.
func NewNodeKeys(seed [32]byte) (*NodeKeys, error) {
	master, err := hdkeychain.NewMaster(
		seed[:], &chaincfg.RegressionNetParams,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create master key: %w", err)
	}

	deriveFamily := func(fam KeyFamily) (*hdkeychain.ExtendedKey, error) {
		child, err := master.Derive(
			hdkeychain.HardenedKeyStart + uint32(fam),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to derive %v key: %w",
				fam, err)
		}

		return child, nil
	}

	derivePriv := func(fam KeyFamily) (*btcec.PrivateKey, error) {
		child, err := deriveFamily(fam)
		if err != nil {
			return nil, err
		}

		return child.ECPrivKey()
	}

	keys := &NodeKeys{
		seed: seed,
	}
	if keys.nodeSecret, err = derivePriv(KeyFamilyNodeKey); err != nil {
		return nil, err
	}
	keys.unilateralClose, err = derivePriv(KeyFamilyUnilateralClose)
	if err != nil {
		return nil, err
	}
	if keys.coopClose, err = derivePriv(KeyFamilyCoopClose); err != nil {
		return nil, err
	}
	keys.inboundPayment, err = derivePriv(KeyFamilyInboundPayment)
	if err != nil {
		return nil, err
	}
	keys.channelMaster, err = deriveFamily(KeyFamilyChannelMaster)
	if err != nil {
		return nil, err
	}

	log.Debugf("Derived node keys, node_id=%x",
		keys.nodeSecret.PubKey().SerializeCompressed())

	return keys, nil
}

// NodeID returns the public key that identifies the node on the network.
func (n *NodeKeys) NodeID() *btcec.PublicKey {
	return n.nodeSecret.PubKey()
}

// NodeSecret returns the private key of the node identity.
func (n *NodeKeys) NodeSecret() *btcec.PrivateKey {
	return n.nodeSecret
}

// channelChild returns the private key of the hardened channel child at
// index.
func (n *NodeKeys) channelChild(index uint32) (*btcec.PrivateKey, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannelIndex, index)
	}

	child, err := n.channelMaster.Derive(
		hdkeychain.HardenedKeyStart + index,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to derive channel child %d: %w",
			index, err)
	}

	return child.ECPrivKey()
}

// privKeyForLocator returns the private key at the passed locator.
func (n *NodeKeys) privKeyForLocator(loc KeyLocator) (*btcec.PrivateKey,
	error) {

	if loc.Family == KeyFamilyChannelMaster {
		return n.channelChild(loc.Index)
	}

	if loc.Index != 0 {
		return nil, fmt.Errorf("%w: family %v has no index %d",
			ErrCannotDerivePrivKey, loc.Family, loc.Index)
	}

	switch loc.Family {
	case KeyFamilyNodeKey:
		return n.nodeSecret, nil
	case KeyFamilyUnilateralClose:
		return n.unilateralClose, nil
	case KeyFamilyCoopClose:
		return n.coopClose, nil
	case KeyFamilyInboundPayment:
		return n.inboundPayment, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKeyFamily,
			uint32(loc.Family))
	}
}

// DeriveKey returns the public key found at the passed locator.
//
// NOTE: This is part of the keychain.KeyRing interface.
func (n *NodeKeys) DeriveKey(keyLoc KeyLocator) (KeyDescriptor, error) {
	priv, err := n.privKeyForLocator(keyLoc)
	if err != nil {
		return KeyDescriptor{}, err
	}

	return KeyDescriptor{
		KeyLocator: keyLoc,
		PubKey:     priv.PubKey(),
	}, nil
}

// DerivePrivKey returns the private key described by keyDesc. When only the
// public key is known, the families without children are searched for it.
//
// NOTE: This is part of the keychain.SecretKeyRing interface.
func (n *NodeKeys) DerivePrivKey(keyDesc KeyDescriptor) (*btcec.PrivateKey,
	error) {

	if keyDesc.PubKey != nil && keyDesc.KeyLocator.IsEmpty() {
		for _, fam := range NodeKeyFamilies {
			if fam == KeyFamilyChannelMaster {
				continue
			}

			priv, err := n.privKeyForLocator(KeyLocator{Family: fam})
			if err != nil {
				return nil, err
			}
			if priv.PubKey().IsEqual(keyDesc.PubKey) {
				return priv, nil
			}
		}

		return nil, ErrCannotDerivePrivKey
	}

	priv, err := n.privKeyForLocator(keyDesc.KeyLocator)
	if err != nil {
		return nil, err
	}

	if keyDesc.PubKey != nil && !priv.PubKey().IsEqual(keyDesc.PubKey) {
		return nil, ErrCannotDerivePrivKey
	}

	return priv, nil
}

// ECDH performs a scalar multiplication between the key found at keyDesc and
// pubKey, returning the sha256 of the compressed shared point.
//
// NOTE: This is part of the keychain.ECDHRing interface.
func (n *NodeKeys) ECDH(keyDesc KeyDescriptor,
	pubKey *btcec.PublicKey) ([32]byte, error) {

	priv, err := n.DerivePrivKey(keyDesc)
	if err != nil {
		return [32]byte{}, err
	}

	ecdh := &PrivKeyECDH{PrivKey: priv}

	return ecdh.ECDH(pubKey)
}

// SignMessage signs msg with the key found at keyLoc.
//
// NOTE: This is part of the keychain.MessageSignerRing interface.
func (n *NodeKeys) SignMessage(keyLoc KeyLocator, msg []byte,
	doubleHash bool) (*ecdsa.Signature, error) {

	priv, err := n.privKeyForLocator(keyLoc)
	if err != nil {
		return nil, err
	}

	return NewPrivKeyMessageSigner(priv, keyLoc).SignMessage(
		msg, doubleHash,
	)
}
