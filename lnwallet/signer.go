package lnwallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lncommit/input"
	"github.com/lightningnetwork/lncommit/keychain"
)

// ErrUnknownSigningKey is returned when the signer holds no private key for
// the public key of a sign descriptor.
var ErrUnknownSigningKey = errors.New("no private key for signing key")

// ChannelSigner is an input.Signer over the in-memory base keys of one
// channel, falling back to the node's key ring for keys outside the channel.
type ChannelSigner struct {
	chanKeys *keychain.ChannelBaseKeys
	keyRing  keychain.SecretKeyRing
}

// A compile time check to ensure that ChannelSigner implements the Signer
// interface.
var _ input.Signer = (*ChannelSigner)(nil)

// NewChannelSigner returns a signer for the channel keys. keyRing may be nil.
func NewChannelSigner(chanKeys *keychain.ChannelBaseKeys,
	keyRing keychain.SecretKeyRing) *ChannelSigner {

	return &ChannelSigner{
		chanKeys: chanKeys,
		keyRing:  keyRing,
	}
}

// fetchPrivKey returns the untweaked private key behind keyDesc.
func (c *ChannelSigner) fetchPrivKey(
	keyDesc *keychain.KeyDescriptor) (*btcec.PrivateKey, error) {

	if keyDesc.PubKey != nil && c.chanKeys != nil {
		for _, priv := range []*btcec.PrivateKey{
			c.chanKeys.FundingKey,
			c.chanKeys.RevocationBaseKey,
			c.chanKeys.PaymentKey,
			c.chanKeys.DelayedPaymentBaseKey,
			c.chanKeys.HtlcBaseKey,
		} {
			if priv.PubKey().IsEqual(keyDesc.PubKey) {
				return priv, nil
			}
		}
	}

	if c.keyRing == nil {
		return nil, ErrUnknownSigningKey
	}

	priv, err := c.keyRing.DerivePrivKey(*keyDesc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSigningKey, err)
	}

	return priv, nil
}

// SignOutputRaw generates a signature for the passed transaction according to
// the data within the passed SignDescriptor.
//
// NOTE: This is part of the input.Signer interface.
func (c *ChannelSigner) SignOutputRaw(tx *wire.MsgTx,
	signDesc *input.SignDescriptor) (input.Signature, error) {

	if err := signDesc.Validate(); err != nil {
		return nil, err
	}

	// First attempt to fetch the private key which corresponds to the
	// specified public key.
	privKey, err := c.fetchPrivKey(&signDesc.KeyDesc)
	if err != nil {
		return nil, err
	}

	// If a tweak (single or double) is specified, then we'll need to use
	// this tweak to derive the final private key to be used for signing
	// this output.
	privKey, err = input.MaybeTweakPrivKey(signDesc, privKey)
	if err != nil {
		return nil, err
	}

	sig, err := txscript.RawTxInWitnessSignature(
		tx, signDesc.TxSigHashes(tx), signDesc.InputIndex,
		signDesc.Output.Value, signDesc.WitnessScript,
		signDesc.HashType, privKey,
	)
	if err != nil {
		return nil, err
	}

	// Chop off the sighash flag at the end of the signature.
	return ecdsa.ParseDERSignature(sig[:len(sig)-1])
}

// ComputeInputScript generates the witness spending a p2wkh output paying to
// the descriptor's key.
//
// NOTE: This is part of the input.Signer interface.
func (c *ChannelSigner) ComputeInputScript(tx *wire.MsgTx,
	signDesc *input.SignDescriptor) (*input.Script, error) {

	if err := signDesc.Validate(); err != nil {
		return nil, err
	}

	if !txscript.IsPayToWitnessPubKeyHash(signDesc.Output.PkScript) {
		return nil, fmt.Errorf("unsupported output script %x",
			signDesc.Output.PkScript)
	}

	privKey, err := c.fetchPrivKey(&signDesc.KeyDesc)
	if err != nil {
		return nil, err
	}
	privKey, err = input.MaybeTweakPrivKey(signDesc, privKey)
	if err != nil {
		return nil, err
	}

	witness, err := txscript.WitnessSignature(
		tx, signDesc.TxSigHashes(tx), signDesc.InputIndex,
		signDesc.Output.Value, signDesc.Output.PkScript,
		signDesc.HashType, privKey, true,
	)
	if err != nil {
		return nil, err
	}

	return &input.Script{
		Witness: witness,
	}, nil
}
