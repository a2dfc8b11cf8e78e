package lnwallet

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lncommit/input/tweaks"
	"github.com/lightningnetwork/lncommit/keychain"
	"github.com/lightningnetwork/lncommit/lnutils"
)

// CommitmentKeyRing holds all derived keys needed to construct commitment and
// HTLC transactions. The keys are derived differently depending whether the
// commitment transaction is ours or the remote peer's. Private keys associated
// with each key may belong to the commitment owner or the "other party" which
// is referred to in the field comments, regardless of which is local and which
// is remote.
type CommitmentKeyRing struct {
	// CommitPoint is the "per commitment point" used to derive the tweak
	// for each base point.
	CommitPoint *btcec.PublicKey

	// LocalCommitKeyTweak is the tweak used to derive the local public key
	// from the local payment base point or the local private key from the
	// base point secret. This may be included in a SignDescriptor to
	// generate signatures for the local payment key.
	LocalCommitKeyTweak []byte

	// LocalHtlcKeyTweak is the tweak used to derive the local HTLC key
	// from the local HTLC base point.
	LocalHtlcKeyTweak []byte

	// LocalHtlcKey is the key that will be used in any clause paying to
	// our node of any HTLC scripts within the commitment transaction for
	// this key ring set.
	LocalHtlcKey *btcec.PublicKey

	// RemoteHtlcKey is the key that will be used in clauses within the
	// HTLC script that send money to the remote party.
	RemoteHtlcKey *btcec.PublicKey

	// ToLocalKey is the commitment transaction owner's key which is
	// included in HTLC success and timeout transaction scripts. This is
	// the public key used for the to_local output of the commitment
	// transaction.
	//
	// NOTE: Who's key this is depends on the current perspective. If this
	// is our commitment this will be our key.
	ToLocalKey *btcec.PublicKey

	// ToRemoteKey is the non-owner's payment key in the commitment tx.
	// This is the key used to generate the to_remote output within the
	// commitment transaction.
	ToRemoteKey *btcec.PublicKey

	// RevocationKey is the key that can be used by the other party to
	// redeem outputs from a revoked commitment transaction if it were to
	// be published.
	RevocationKey *btcec.PublicKey
}

// DeriveCommitmentKeys generates a new commitment key set using the base
// points and commitment point. The keys are derived differently depending on
// whether the commitment transaction is ours or the remote peer's.
func DeriveCommitmentKeys(commitPoint *btcec.PublicKey, isOurCommit bool,
	local, remote *keychain.ChannelBasepoints) (*CommitmentKeyRing, error) {

	// Depending on if this is our commit or not, we'll choose the correct
	// base point.
	localBasePoint := local.Payment
	if isOurCommit {
		localBasePoint = local.DelayedPayment
	}

	keyRing := &CommitmentKeyRing{
		CommitPoint: commitPoint,
		LocalCommitKeyTweak: tweaks.SingleTweakBytes(
			commitPoint, localBasePoint,
		),
		LocalHtlcKeyTweak: tweaks.SingleTweakBytes(
			commitPoint, local.Htlc,
		),
	}

	var err error
	keyRing.LocalHtlcKey, err = tweaks.TweakPubKey(local.Htlc, commitPoint)
	if err != nil {
		return nil, fmt.Errorf("local htlc key: %w", err)
	}
	keyRing.RemoteHtlcKey, err = tweaks.TweakPubKey(remote.Htlc, commitPoint)
	if err != nil {
		return nil, fmt.Errorf("remote htlc key: %w", err)
	}

	// We'll now compute the to_local, to_remote, and revocation key based
	// on the current commitment point. All keys are tweaked each state in
	// order to ensure the keys from each state are unlinkable. To create
	// the revocation key, we take the opposite party's revocation base
	// point and combine that with the current commitment point.
	var (
		toLocalBasePoint    *btcec.PublicKey
		toRemoteBasePoint   *btcec.PublicKey
		revocationBasePoint *btcec.PublicKey
	)
	if isOurCommit {
		toLocalBasePoint = local.DelayedPayment
		toRemoteBasePoint = remote.Payment
		revocationBasePoint = remote.Revocation
	} else {
		toLocalBasePoint = remote.DelayedPayment
		toRemoteBasePoint = local.Payment
		revocationBasePoint = local.Revocation
	}

	keyRing.ToLocalKey, err = tweaks.TweakPubKey(
		toLocalBasePoint, commitPoint,
	)
	if err != nil {
		return nil, fmt.Errorf("to_local key: %w", err)
	}
	keyRing.ToRemoteKey, err = tweaks.TweakPubKey(
		toRemoteBasePoint, commitPoint,
	)
	if err != nil {
		return nil, fmt.Errorf("to_remote key: %w", err)
	}
	keyRing.RevocationKey, err = tweaks.DeriveRevocationPubkey(
		revocationBasePoint, commitPoint,
	)
	if err != nil {
		return nil, fmt.Errorf("revocation key: %w", err)
	}

	walletLog.Debugf("Derived commitment keys (our_commit=%v): "+
		"revocation=%x to_local=%x", isOurCommit,
		keyRing.RevocationKey.SerializeCompressed(),
		keyRing.ToLocalKey.SerializeCompressed())
	walletLog.Tracef("Commitment key ring: %v",
		lnutils.SpewLogClosure(keyRing))

	return keyRing, nil
}

// DeriveStateHintObfuscator derives the bytes to be used for obfuscating the
// state hints from the root to be used for a new channel. The obfuscator is
// generated via the following computation:
//
//   - sha256(initiatorKey || responderKey)[26:]
//   - where both keys are the payment basepoints of the respective parties
//
// The last 6 bytes of the resulting hash are used as the state hint.
func DeriveStateHintObfuscator(key1,
	key2 *btcec.PublicKey) [StateHintSize]byte {

	h := sha256.New()
	h.Write(key1.SerializeCompressed())
	h.Write(key2.SerializeCompressed())

	sha := h.Sum(nil)

	var obfuscator [StateHintSize]byte
	copy(obfuscator[:], sha[26:])

	return obfuscator
}
