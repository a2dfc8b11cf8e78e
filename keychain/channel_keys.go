package keychain

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lncommit/input/tweaks"
	"github.com/lightningnetwork/lncommit/shachain"
)

var (
	// ErrInvalidChannelIndex is returned for channel indexes that do not
	// fit below the hardened derivation offset.
	ErrInvalidChannelIndex = errors.New("channel index must be below 2^31")

	// ErrUnknownBasepoint is returned for a Basepoint value outside the
	// known set.
	ErrUnknownBasepoint = errors.New("unknown basepoint")
)

// Labels mixed into each step of the channel key derivation.
const (
	commitmentSeedLabel = "commitment seed"
	revocationLabel     = "revocation base key"
	paymentLabel        = "payment key"
	delayedLabel        = "delayed payment key"
	htlcLabel           = "HTLC base key"
	fundingLabel        = "funding key"
)

// Basepoint identifies one of the per channel base keys that are tweaked
// with the per commitment point for every new state.
type Basepoint uint8

const (
	// BasepointRevocation is the base of the revocation keys the remote
	// party builds against our per commitment points.
	BasepointRevocation Basepoint = iota

	// BasepointPayment is the base of keys paid without delay.
	BasepointPayment

	// BasepointDelayedPayment is the base of keys paid after a CSV delay.
	BasepointDelayedPayment

	// BasepointHtlc is the base of keys used within HTLC scripts.
	BasepointHtlc
)

// String returns a human readable name of the basepoint.
func (b Basepoint) String() string {
	switch b {
	case BasepointRevocation:
		return "revocation"
	case BasepointPayment:
		return "payment"
	case BasepointDelayedPayment:
		return "delayed_payment"
	case BasepointHtlc:
		return "htlc"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(b))
	}
}

// ChannelBasepoints is the public half of ChannelBaseKeys, the set of points
// handed to the counterparty when the channel is opened.
type ChannelBasepoints struct {
	// Funding is the key used within the 2-of-2 funding output.
	Funding *btcec.PublicKey

	// Revocation is the revocation basepoint.
	Revocation *btcec.PublicKey

	// Payment is the payment basepoint.
	Payment *btcec.PublicKey

	// DelayedPayment is the delayed payment basepoint.
	DelayedPayment *btcec.PublicKey

	// Htlc is the HTLC basepoint.
	Htlc *btcec.PublicKey
}

// ChannelBaseKeys holds the private base keys of one side of a channel
// together with the seed of its per commitment secret chain. A value never
// changes after DeriveChannelKeys returns it.
type ChannelBaseKeys struct {
	// Index is the channel child index the keys were derived under.
	Index uint32

	// FundingKey signs for the 2-of-2 funding output.
	FundingKey *btcec.PrivateKey

	// RevocationBaseKey is the secret behind the revocation basepoint.
	RevocationBaseKey *btcec.PrivateKey

	// PaymentKey is the secret behind the payment basepoint.
	PaymentKey *btcec.PrivateKey

	// DelayedPaymentBaseKey is the secret behind the delayed payment
	// basepoint.
	DelayedPaymentBaseKey *btcec.PrivateKey

	// HtlcBaseKey is the secret behind the HTLC basepoint.
	HtlcBaseKey *btcec.PrivateKey

	commitmentSeed [32]byte
}

// keyStep hashes the running secret, the previous key and a label into the
// next key of the chain:
//
//	next := sha256(secret || previous || label)
func keyStep(secret [32]byte, label string, previous []byte) [32]byte {
	h := sha256.New()
	h.Write(secret[:])
	h.Write(previous)
	h.Write([]byte(label))

	var out [32]byte
	copy(out[:], h.Sum(nil))

	return out
}

// privKeyFromHash interprets a hash as a private key, rejecting the
// negligible cases of zero and values above the group order.
func privKeyFromHash(h [32]byte, label string) (*btcec.PrivateKey, error) {
	s, err := tweaks.ParseScalar(h[:])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", label, err)
	}
	if s.IsZero() {
		return nil, fmt.Errorf("invalid %s: %w", label,
			tweaks.ErrZeroScalar)
	}

	priv, _ := btcec.PrivKeyFromBytes(h[:])

	return priv, nil
}

// DeriveChannelKeys derives the base keys of the channel identified by params
// from the hardened channel child at index. The derivation is a pure function
// of the node seed, params and index:
//
//	unique     := sha256(params || seed || m/3'/index')
//	commitSeed := sha256(unique || "commitment seed")
//	revocation := sha256(unique || commitSeed || "revocation base key")
//	payment    := sha256(unique || revocation || "payment key")
//	delayed    := sha256(unique || payment || "delayed payment key")
//	htlc       := sha256(unique || delayed || "HTLC base key")
//	funding    := sha256(unique || htlc || "funding key")
func (n *NodeKeys) DeriveChannelKeys(params [32]byte,
	index uint32) (*ChannelBaseKeys, error) {

	child, err := n.channelChild(index)
	if err != nil {
		return nil, err
	}

	h := sha256.New()
	h.Write(params[:])
	h.Write(n.seed[:])
	h.Write(child.Serialize())

	var unique [32]byte
	copy(unique[:], h.Sum(nil))

	commitSeed := sha256.Sum256(append(unique[:], commitmentSeedLabel...))

	revocation := keyStep(unique, revocationLabel, commitSeed[:])
	payment := keyStep(unique, paymentLabel, revocation[:])
	delayed := keyStep(unique, delayedLabel, payment[:])
	htlc := keyStep(unique, htlcLabel, delayed[:])

	fh := sha256.New()
	fh.Write(unique[:])
	fh.Write(htlc[:])
	fh.Write([]byte(fundingLabel))

	var funding [32]byte
	copy(funding[:], fh.Sum(nil))

	keys := &ChannelBaseKeys{
		Index:          index,
		commitmentSeed: commitSeed,
	}
	steps := []struct {
		dst   **btcec.PrivateKey
		hash  [32]byte
		label string
	}{
		{&keys.FundingKey, funding, fundingLabel},
		{&keys.RevocationBaseKey, revocation, revocationLabel},
		{&keys.PaymentKey, payment, paymentLabel},
		{&keys.DelayedPaymentBaseKey, delayed, delayedLabel},
		{&keys.HtlcBaseKey, htlc, htlcLabel},
	}
	for _, step := range steps {
		*step.dst, err = privKeyFromHash(step.hash, step.label)
		if err != nil {
			return nil, err
		}
	}

	log.Debugf("Derived channel keys for index=%d, funding_key=%x",
		index, keys.FundingKey.PubKey().SerializeCompressed())

	return keys, nil
}

// Basepoints returns the public basepoints of the channel.
func (c *ChannelBaseKeys) Basepoints() *ChannelBasepoints {
	return &ChannelBasepoints{
		Funding:        c.FundingKey.PubKey(),
		Revocation:     c.RevocationBaseKey.PubKey(),
		Payment:        c.PaymentKey.PubKey(),
		DelayedPayment: c.DelayedPaymentBaseKey.PubKey(),
		Htlc:           c.HtlcBaseKey.PubKey(),
	}
}

// CommitmentSeed returns the seed of the channel's per commitment secret
// chain.
func (c *ChannelBaseKeys) CommitmentSeed() [32]byte {
	return c.commitmentSeed
}

// RevocationProducer returns a producer over the channel's secret chain.
func (c *ChannelBaseKeys) RevocationProducer() *shachain.Producer {
	return shachain.NewProducer(c.commitmentSeed)
}

// CommitmentSecret returns the per commitment secret of commitment number
// idx. Commitment numbers count up from zero while the chain index counts
// down from shachain.MaxIndex, so the secret of one commitment never derives
// the secret of a later one.
func (c *ChannelBaseKeys) CommitmentSecret(idx uint64) ([32]byte, error) {
	if idx > shachain.MaxIndex {
		return [32]byte{}, shachain.ErrIndexOutOfRange
	}

	return shachain.BuildCommitmentSecret(
		c.commitmentSeed, shachain.MaxIndex-idx,
	)
}

// PerCommitmentPoint returns the point of the per commitment secret of
// commitment number idx.
func (c *ChannelBaseKeys) PerCommitmentPoint(idx uint64) (*btcec.PublicKey,
	error) {

	secret, err := c.CommitmentSecret(idx)
	if err != nil {
		return nil, err
	}

	return tweaks.ComputeCommitmentPoint(secret[:])
}

// baseKey returns the private key behind the given basepoint.
func (c *ChannelBaseKeys) baseKey(bp Basepoint) (*btcec.PrivateKey, error) {
	switch bp {
	case BasepointRevocation:
		return c.RevocationBaseKey, nil
	case BasepointPayment:
		return c.PaymentKey, nil
	case BasepointDelayedPayment:
		return c.DelayedPaymentBaseKey, nil
	case BasepointHtlc:
		return c.HtlcBaseKey, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownBasepoint, bp)
	}
}

// DerivePrivateKey returns the private key of the given basepoint tweaked
// for commitment idx:
//
//	key := basepointSecret + sha256(perCommitmentPoint || basepoint)
func (c *ChannelBaseKeys) DerivePrivateKey(bp Basepoint,
	idx uint64) (*btcec.PrivateKey, error) {

	base, err := c.baseKey(bp)
	if err != nil {
		return nil, err
	}

	commitPoint, err := c.PerCommitmentPoint(idx)
	if err != nil {
		return nil, err
	}

	tweak := tweaks.SingleTweakBytes(commitPoint, base.PubKey())

	return tweaks.TweakPrivKey(base, tweak)
}

// DerivePublicKey returns the public key matching DerivePrivateKey.
func (c *ChannelBaseKeys) DerivePublicKey(bp Basepoint,
	idx uint64) (*btcec.PublicKey, error) {

	base, err := c.baseKey(bp)
	if err != nil {
		return nil, err
	}

	commitPoint, err := c.PerCommitmentPoint(idx)
	if err != nil {
		return nil, err
	}

	return tweaks.TweakPubKey(base.PubKey(), commitPoint)
}

// DeriveRevocationPubKey returns the revocation key of our commitment idx,
// built against the countersignatory's revocation basepoint. The
// countersignatory learns its private key once we reveal the commitment
// secret of idx.
func (c *ChannelBaseKeys) DeriveRevocationPubKey(
	countersignatoryBasepoint *btcec.PublicKey,
	idx uint64) (*btcec.PublicKey, error) {

	commitPoint, err := c.PerCommitmentPoint(idx)
	if err != nil {
		return nil, err
	}

	return tweaks.DeriveRevocationPubkey(
		countersignatoryBasepoint, commitPoint,
	)
}

// RevocationPrivKey reconstructs the revocation private key of a revoked
// counterparty commitment from the commitment secret it revealed.
func (c *ChannelBaseKeys) RevocationPrivKey(
	commitSecret [32]byte) (*btcec.PrivateKey, error) {

	secret, err := privKeyFromHash(commitSecret, "commitment secret")
	if err != nil {
		return nil, err
	}

	return tweaks.DeriveRevocationPrivKey(c.RevocationBaseKey, secret)
}
