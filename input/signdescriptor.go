package input

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lncommit/input/tweaks"
	"github.com/lightningnetwork/lncommit/keychain"
)

var (
	// ErrTweakOverdose signals a SignDescriptor is invalid because both of its
	// SingleTweak and DoubleTweak are non-nil.
	ErrTweakOverdose = errors.New("sign descriptor should only have one tweak")

	// ErrNilPubKey is returned when a sign descriptor carries no public
	// key where one is required.
	ErrNilPubKey = errors.New("sign descriptor has no public key")
)

// SignDescriptor houses the necessary information required to successfully
// sign a given segwit output. This struct is used by the Signer interface in
// order to gain access to critical data needed to generate a valid signature.
type SignDescriptor struct {
	// KeyDesc is a descriptor that precisely describes *which* key to use
	// for signing. This may provide the raw public key directly, or
	// require the Signer to re-derive the key according to the populated
	// derivation path.
	KeyDesc keychain.KeyDescriptor

	// SingleTweak is a scalar value that will be added to the private key
	// corresponding to the above public key to obtain the private key to
	// be used to sign this input. This value is typically derived via the
	// following computation:
	//
	//  * derivedKey = privkey + sha256(perCommitmentPoint || pubKey) mod N
	//
	// NOTE: If this value is nil, then the input can be signed using only
	// the above public key. Either a SingleTweak should be set or a
	// DoubleTweak, not both.
	SingleTweak []byte

	// DoubleTweak is a private key that will be used in combination with
	// its corresponding private key to derive the private key that is to
	// be used to sign the target input. Within the Lightning protocol,
	// this value is typically the commitment secret from a previously
	// revoked commitment transaction. This value is in combination with
	// two hash values, and the original private key to derive the private
	// key to be used when signing.
	//
	//  * k = (privKey*sha256(pubKey || tweakPub) +
	//        tweakPriv*sha256(tweakPub || pubKey)) mod N
	//
	// NOTE: If this value is nil, then the input can be signed using only
	// the above public key. Either a SingleTweak should be set or a
	// DoubleTweak, not both.
	DoubleTweak *btcec.PrivateKey

	// WitnessScript is the full script required to properly redeem the
	// output. This field should be set to the full script if a p2wsh
	// output is being signed. For p2wkh it should be set to the hashed
	// script (PkScript).
	WitnessScript []byte

	// Output is the target output which should be signed. The PkScript and
	// Value fields within the output should be properly populated,
	// otherwise an invalid signature may be generated.
	Output *wire.TxOut

	// HashType is the target sighash type that should be used when
	// generating the final sighash, and signature.
	HashType txscript.SigHashType

	// SigHashes is the pre-computed sighash midstate to be used when
	// generating the final sighash for signing. If nil it is computed
	// from Output.
	SigHashes *txscript.TxSigHashes

	// InputIndex is the target input within the transaction that should be
	// signed.
	InputIndex int
}

// Validate checks that the descriptor can be signed with.
func (s *SignDescriptor) Validate() error {
	if s.SingleTweak != nil && s.DoubleTweak != nil {
		return ErrTweakOverdose
	}
	if s.Output == nil {
		return errors.New("sign descriptor has no output")
	}

	return nil
}

// TweakedPubKey returns the public key the descriptor actually signs for,
// with the single or double tweak applied to KeyDesc.PubKey.
func (s *SignDescriptor) TweakedPubKey() (*btcec.PublicKey, error) {
	pub := s.KeyDesc.PubKey
	if pub == nil {
		return nil, ErrNilPubKey
	}

	switch {
	case s.SingleTweak != nil && s.DoubleTweak != nil:
		return nil, ErrTweakOverdose

	case s.SingleTweak != nil:
		return tweaks.TweakPubKeyWithTweak(pub, s.SingleTweak)

	case s.DoubleTweak != nil:
		return tweaks.DeriveRevocationPubkey(
			pub, s.DoubleTweak.PubKey(),
		)

	default:
		return pub, nil
	}
}

// TxSigHashes returns the descriptor's sighash midstate, computing it from the
// output being spent when none was provided.
func (s *SignDescriptor) TxSigHashes(tx *wire.MsgTx) *txscript.TxSigHashes {
	if s.SigHashes != nil {
		return s.SigHashes
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(
		s.Output.PkScript, s.Output.Value,
	)

	return txscript.NewTxSigHashes(tx, fetcher)
}

// MaybeTweakPrivKey examines the single and double tweak parameters on the
// passed sign descriptor and may perform a mapping on the passed private key
// in order to utilize the tweaks, if populated.
func MaybeTweakPrivKey(signDesc *SignDescriptor,
	privKey *btcec.PrivateKey) (*btcec.PrivateKey, error) {

	var retPriv *btcec.PrivateKey
	switch {
	case signDesc.SingleTweak != nil && signDesc.DoubleTweak != nil:
		return nil, ErrTweakOverdose

	case signDesc.SingleTweak != nil:
		tweaked, err := tweaks.TweakPrivKey(
			privKey, signDesc.SingleTweak,
		)
		if err != nil {
			return nil, err
		}
		retPriv = tweaked

	case signDesc.DoubleTweak != nil:
		revPriv, err := tweaks.DeriveRevocationPrivKey(
			privKey, signDesc.DoubleTweak,
		)
		if err != nil {
			return nil, err
		}
		retPriv = revPriv

	default:
		retPriv = privKey
	}

	return retPriv, nil
}
