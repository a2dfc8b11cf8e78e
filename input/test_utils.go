package input

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lncommit/keychain"
)

// MockSigner is a simple implementation of the Signer interface. Each one has
// a set of private keys in a slice and can sign messages using the appropriate
// one. When none of them matches, the KeyRing, if set, is asked to derive the
// key described by the sign descriptor.
type MockSigner struct {
	Privkeys  []*btcec.PrivateKey
	KeyRing   keychain.SecretKeyRing
	NetParams *chaincfg.Params
}

// NewMockSigner returns a MockSigner holding the given private keys.
func NewMockSigner(privKeys ...*btcec.PrivateKey) *MockSigner {
	return &MockSigner{
		Privkeys:  privKeys,
		NetParams: &chaincfg.RegressionNetParams,
	}
}

// A compile time check to ensure that MockSigner meets the Signer interface.
var _ Signer = (*MockSigner)(nil)

// SignOutputRaw generates a signature for the passed transaction according to
// the data within the passed SignDescriptor.
func (m *MockSigner) SignOutputRaw(tx *wire.MsgTx,
	signDesc *SignDescriptor) (Signature, error) {

	pubkey, err := signDesc.TweakedPubKey()
	if err != nil {
		return nil, err
	}

	hash160 := btcutil.Hash160(pubkey.SerializeCompressed())
	privKey := m.findKey(hash160, signDesc.SingleTweak, signDesc.DoubleTweak)
	if privKey == nil {
		privKey, err = m.deriveKey(signDesc)
		if err != nil {
			return nil, err
		}
	}

	return signRaw(tx, signDesc, privKey)
}

// deriveKey asks the key ring for the private key of the descriptor and
// applies its tweak.
func (m *MockSigner) deriveKey(
	signDesc *SignDescriptor) (*btcec.PrivateKey, error) {

	if m.KeyRing == nil {
		return nil, fmt.Errorf("mock signer does not have key")
	}

	basePriv, err := m.KeyRing.DerivePrivKey(signDesc.KeyDesc)
	if err != nil {
		return nil, fmt.Errorf("mock signer does not have key: %w", err)
	}

	return MaybeTweakPrivKey(signDesc, basePriv)
}

// ComputeInputScript generates a complete InputIndex for the passed transaction
// with the signature as defined within the passed SignDescriptor. This method
// should be capable of generating the proper input script for both regular
// p2wkh output and p2wkh outputs nested within a regular p2sh output.
func (m *MockSigner) ComputeInputScript(tx *wire.MsgTx,
	signDesc *SignDescriptor) (*Script, error) {

	if err := signDesc.Validate(); err != nil {
		return nil, err
	}

	scriptType, addresses, _, err := txscript.ExtractPkScriptAddrs(
		signDesc.Output.PkScript, m.NetParams)
	if err != nil {
		return nil, err
	}

	switch scriptType {
	case txscript.PubKeyHashTy:
		privKey := m.findKey(addresses[0].ScriptAddress(), signDesc.SingleTweak,
			signDesc.DoubleTweak)
		if privKey == nil {
			return nil, fmt.Errorf("mock signer does not have key for "+
				"address %v", addresses[0])
		}

		sigScript, err := txscript.SignatureScript(
			tx, signDesc.InputIndex, signDesc.Output.PkScript,
			txscript.SigHashAll, privKey, true,
		)
		if err != nil {
			return nil, err
		}

		return &Script{SigScript: sigScript}, nil

	case txscript.WitnessV0PubKeyHashTy:
		privKey := m.findKey(addresses[0].ScriptAddress(), signDesc.SingleTweak,
			signDesc.DoubleTweak)
		if privKey == nil {
			return nil, fmt.Errorf("mock signer does not have key for "+
				"address %v", addresses[0])
		}

		witnessScript, err := txscript.WitnessSignature(tx,
			signDesc.TxSigHashes(tx), signDesc.InputIndex,
			signDesc.Output.Value, signDesc.Output.PkScript,
			txscript.SigHashAll, privKey, true)
		if err != nil {
			return nil, err
		}

		return &Script{Witness: witnessScript}, nil

	default:
		return nil, fmt.Errorf("unexpected script type: %v", scriptType)
	}
}

// findKey searches through all stored private keys and returns one
// corresponding to the hashed pubkey if it can be found. The public key may
// either correspond directly to the private key or to the private key with a
// tweak applied.
func (m *MockSigner) findKey(needleHash160 []byte, singleTweak []byte,
	doubleTweak *btcec.PrivateKey) *btcec.PrivateKey {

	for _, privkey := range m.Privkeys {
		// First check whether public key is directly derived from private key.
		hash160 := btcutil.Hash160(privkey.PubKey().SerializeCompressed())
		if bytes.Equal(hash160, needleHash160) {
			return privkey
		}

		// Otherwise check if public key is derived from tweaked private key.
		signDesc := &SignDescriptor{
			SingleTweak: singleTweak,
			DoubleTweak: doubleTweak,
		}
		if singleTweak == nil && doubleTweak == nil {
			continue
		}
		tweaked, err := MaybeTweakPrivKey(signDesc, privkey)
		if err != nil {
			continue
		}
		hash160 = btcutil.Hash160(tweaked.PubKey().SerializeCompressed())
		if bytes.Equal(hash160, needleHash160) {
			return tweaked
		}
	}
	return nil
}
