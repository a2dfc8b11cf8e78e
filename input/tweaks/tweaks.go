package tweaks

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// TweakSize is the length of a serialized scalar tweak.
const TweakSize = 32

var (
	// ErrPointAtInfinity is returned when a point operation lands on the
	// identity element, which has no public key encoding.
	ErrPointAtInfinity = errors.New("result is the point at infinity")

	// ErrZeroScalar is returned when a scalar operation produces zero, or
	// when a zero scalar is used where only [1, N-1] is meaningful.
	ErrZeroScalar = errors.New("result is the zero scalar")

	// ErrScalarOverflow is returned when a tweak is not strictly less than
	// the group order.
	ErrScalarOverflow = errors.New("tweak is not less than the group order")

	// ErrInvalidTweakLength is returned when a tweak is not 32 bytes.
	ErrInvalidTweakLength = errors.New("tweak must be 32 bytes")
)

// ParseScalar interprets b as a big-endian scalar. Only 32 byte values below
// the group order are accepted.
func ParseScalar(b []byte) (*btcec.ModNScalar, error) {
	if len(b) != TweakSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTweakLength,
			len(b))
	}

	var s btcec.ModNScalar
	if overflow := s.SetByteSlice(b); overflow {
		return nil, ErrScalarOverflow
	}

	return &s, nil
}

// toPubKey converts a jacobian point into an affine public key.
func toPubKey(p *btcec.JacobianPoint) (*btcec.PublicKey, error) {
	p.X.Normalize()
	p.Y.Normalize()
	p.Z.Normalize()
	if (p.X.IsZero() && p.Y.IsZero()) || p.Z.IsZero() {
		return nil, ErrPointAtInfinity
	}

	p.ToAffine()

	return btcec.NewPublicKey(&p.X, &p.Y), nil
}

// toPrivKey wraps a scalar as a private key, rejecting zero.
func toPrivKey(s *btcec.ModNScalar) (*btcec.PrivateKey, error) {
	if s.IsZero() {
		return nil, ErrZeroScalar
	}

	return secp.NewPrivateKey(s), nil
}

// SingleTweakBytes computes set of bytes we call the single tweak. The purpose
// of the single tweak is to randomize all regular delay and payment base
// points. To do this, we generate a hash that binds the commitment point to
// the pay/delay base point:
//
//   - key = basePoint + sha256(commitPoint || basePoint)*G
//
// The revocation derivation uses the same hash with both argument orders.
func SingleTweakBytes(commitPoint, basePoint *btcec.PublicKey) []byte {
	h := sha256.New()
	h.Write(commitPoint.SerializeCompressed())
	h.Write(basePoint.SerializeCompressed())

	return h.Sum(nil)
}

// TweakPubKey tweaks a public base point given a per commitment point:
//
//	tweakPub := basePoint + sha256(commitPoint || basePoint) * G
//	         := G*(k + sha256(commitPoint || basePoint))
//
// A party that knows k, the private key of the base point, can then sign for
// tweakPub with TweakPrivKey.
func TweakPubKey(basePoint,
	commitPoint *btcec.PublicKey) (*btcec.PublicKey, error) {

	tweakBytes := SingleTweakBytes(commitPoint, basePoint)

	return TweakPubKeyWithTweak(basePoint, tweakBytes)
}

// TweakPubKeyWithTweak is the exact same as the TweakPubKey function, however
// it accepts the raw tweak bytes directly rather than the commitment point.
// It computes pubKey + tweak*G.
func TweakPubKeyWithTweak(pubKey *btcec.PublicKey,
	tweakBytes []byte) (*btcec.PublicKey, error) {

	tweak, err := ParseScalar(tweakBytes)
	if err != nil {
		return nil, err
	}

	var (
		pubKeyJacobian btcec.JacobianPoint
		tweakJacobian  btcec.JacobianPoint
		resultJacobian btcec.JacobianPoint
	)
	btcec.ScalarBaseMultNonConst(tweak, &tweakJacobian)

	pubKey.AsJacobian(&pubKeyJacobian)
	btcec.AddNonConst(&pubKeyJacobian, &tweakJacobian, &resultJacobian)

	return toPubKey(&resultJacobian)
}

// MulPubKey multiplies an existing point by the scalar tweak. A zero tweak is
// rejected since the product would be the point at infinity.
func MulPubKey(pubKey *btcec.PublicKey,
	tweakBytes []byte) (*btcec.PublicKey, error) {

	tweak, err := ParseScalar(tweakBytes)
	if err != nil {
		return nil, err
	}
	if tweak.IsZero() {
		return nil, ErrZeroScalar
	}

	var (
		pubKeyJacobian btcec.JacobianPoint
		resultJacobian btcec.JacobianPoint
	)
	pubKey.AsJacobian(&pubKeyJacobian)
	btcec.ScalarMultNonConst(tweak, &pubKeyJacobian, &resultJacobian)

	return toPubKey(&resultJacobian)
}

// CombinePubKeys returns the point sum a + b.
func CombinePubKeys(a, b *btcec.PublicKey) (*btcec.PublicKey, error) {
	var aJacobian, bJacobian, resultJacobian btcec.JacobianPoint
	a.AsJacobian(&aJacobian)
	b.AsJacobian(&bJacobian)
	btcec.AddNonConst(&aJacobian, &bJacobian, &resultJacobian)

	return toPubKey(&resultJacobian)
}

// TweakPrivKeyAdd returns priv + tweak mod N.
func TweakPrivKeyAdd(priv *btcec.PrivateKey,
	tweakBytes []byte) (*btcec.PrivateKey, error) {

	tweak, err := ParseScalar(tweakBytes)
	if err != nil {
		return nil, err
	}

	var result btcec.ModNScalar
	result.Add2(&priv.Key, tweak)

	return toPrivKey(&result)
}

// TweakPrivKeyMul returns priv * tweak mod N.
func TweakPrivKeyMul(priv *btcec.PrivateKey,
	tweakBytes []byte) (*btcec.PrivateKey, error) {

	tweak, err := ParseScalar(tweakBytes)
	if err != nil {
		return nil, err
	}

	var result btcec.ModNScalar
	result.Mul2(&priv.Key, tweak)

	return toPrivKey(&result)
}

// TweakPrivKey tweaks the private key of a public base point given the single
// tweak computed against a per commitment point:
//
//   - tweakPriv := basePriv + sha256(commitment || basePub) mod N
func TweakPrivKey(basePriv *btcec.PrivateKey,
	commitTweak []byte) (*btcec.PrivateKey, error) {

	return TweakPrivKeyAdd(basePriv, commitTweak)
}

// DeriveRevocationPubkey derives the revocation public key given the
// counterparty's revocation base point and the per commitment point of the
// state being revoked:
//
//	revokeKey := revokeBase * sha256(revocationBase || commitPoint) +
//	             commitPoint * sha256(commitPoint || revocationBase)
//
// Once the per commitment secret is revealed the owner of the revocation base
// point can compute the matching private key with DeriveRevocationPrivKey.
// Neither party can do so alone.
func DeriveRevocationPubkey(revokeBase,
	commitPoint *btcec.PublicKey) (*btcec.PublicKey, error) {

	// R = revokeBase * sha256(revocationBase || commitPoint)
	revokeTweak := SingleTweakBytes(revokeBase, commitPoint)
	r, err := MulPubKey(revokeBase, revokeTweak)
	if err != nil {
		return nil, fmt.Errorf("revocation base contribution: %w", err)
	}

	// C = commitPoint * sha256(commitPoint || revocationBase)
	commitTweak := SingleTweakBytes(commitPoint, revokeBase)
	c, err := MulPubKey(commitPoint, commitTweak)
	if err != nil {
		return nil, fmt.Errorf("commitment point contribution: %w", err)
	}

	// P = R + C
	return CombinePubKeys(r, c)
}

// DeriveRevocationPrivKey derives the revocation private key given the
// revocation base secret and the revealed per commitment secret:
//
//	revokePriv := (revokeBasePriv * sha256(revocationBase || commitPoint)) +
//	              (commitSecret * sha256(commitPoint || revocationBase)) mod N
func DeriveRevocationPrivKey(revokeBasePriv *btcec.PrivateKey,
	commitSecret *btcec.PrivateKey) (*btcec.PrivateKey, error) {

	revokeBase := revokeBasePriv.PubKey()
	commitPoint := commitSecret.PubKey()

	// r = sha256(revokeBasePub || commitPoint)
	revokeTweak, err := ParseScalar(SingleTweakBytes(revokeBase, commitPoint))
	if err != nil {
		return nil, err
	}

	// c = sha256(commitPoint || revokeBasePub)
	commitTweak, err := ParseScalar(SingleTweakBytes(commitPoint, revokeBase))
	if err != nil {
		return nil, err
	}

	//  k = (revocationPriv * r) + (commitSecret * c) mod N
	var revokeHalf, commitHalf btcec.ModNScalar
	revokeHalf.Mul2(&revokeBasePriv.Key, revokeTweak)
	commitHalf.Mul2(&commitSecret.Key, commitTweak)

	return toPrivKey(revokeHalf.Add(&commitHalf))
}

// ComputeCommitmentPoint generates a commitment point given a commitment
// secret. The secret must be a valid non-zero scalar.
func ComputeCommitmentPoint(commitSecret []byte) (*btcec.PublicKey, error) {
	s, err := ParseScalar(commitSecret)
	if err != nil {
		return nil, err
	}

	priv, err := toPrivKey(s)
	if err != nil {
		return nil, err
	}

	return priv.PubKey(), nil
}
