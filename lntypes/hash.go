package lntypes

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

const (
	// HashSize of array used to store hashes.
	HashSize = 32

	// Hash160Size is the size of a RIPEMD160 digest.
	Hash160Size = 20
)

// ZeroHash is a predefined hash containing all zeroes.
var ZeroHash Hash

// Hash typically represents a payment hash, the SHA256 of a payment preimage.
type Hash [HashSize]byte

// String returns the Hash as a hexadecimal string.
func (hash Hash) String() string {
	return hex.EncodeToString(hash[:])
}

// Hash160 returns RIPEMD160 of the hash. HTLC scripts commit to this value
// rather than to the full payment hash.
func (hash Hash) Hash160() Hash160 {
	h := ripemd160.New()
	_, _ = h.Write(hash[:])

	var out Hash160
	copy(out[:], h.Sum(nil))

	return out
}

// MakeHash returns a new Hash from a byte slice.  An error is returned if
// the number of bytes passed in is not HashSize.
func MakeHash(newHash []byte) (Hash, error) {
	nhlen := len(newHash)
	if nhlen != HashSize {
		return Hash{}, fmt.Errorf("invalid hash length of %v, want %v",
			nhlen, HashSize)
	}

	var hash Hash
	copy(hash[:], newHash)

	return hash, nil
}

// MakeHashFromStr creates a Hash from a hex hash string.
func MakeHashFromStr(newHash string) (Hash, error) {
	if len(newHash) != HashSize*2 {
		return Hash{}, fmt.Errorf("invalid hash string length of %v, "+
			"want %v", len(newHash), HashSize*2)
	}

	hash, err := hex.DecodeString(newHash)
	if err != nil {
		return Hash{}, err
	}

	return MakeHash(hash)
}

// Hash160 is a 20 byte HASH160 or RIPEMD160 digest as pushed into scripts.
type Hash160 [Hash160Size]byte

// String returns the Hash160 as a hexadecimal string.
func (h Hash160) String() string {
	return hex.EncodeToString(h[:])
}

// MakeHash160 returns a Hash160 from a byte slice, failing on any length
// other than Hash160Size.
func MakeHash160(b []byte) (Hash160, error) {
	if len(b) != Hash160Size {
		return Hash160{}, fmt.Errorf("invalid hash160 length of %v, "+
			"want %v", len(b), Hash160Size)
	}

	var h Hash160
	copy(h[:], b)

	return h, nil
}

// MakeHash160FromStr creates a Hash160 from its hex encoding.
func MakeHash160FromStr(s string) (Hash160, error) {
	if len(s) != Hash160Size*2 {
		return Hash160{}, fmt.Errorf("invalid hash160 string length "+
			"of %v, want %v", len(s), Hash160Size*2)
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash160{}, err
	}

	return MakeHash160(b)
}
