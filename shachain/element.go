package shachain

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// maxHeight is the number of bits in a commitment index. It is also
	// the number of buckets a RevocationStore needs to derive every
	// previously received secret.
	maxHeight uint8 = 48

	// rootIndex is the index whose secret is the seed itself.
	rootIndex index = 0
)

// startIndex is the index of the first secret handed to the counterparty.
// Indexes count down from here as commitments are revoked.
const startIndex index = (1 << maxHeight) - 1

// errNotDerivable is returned when the target index does not share the
// source index's bit prefix.
var errNotDerivable = errors.New("prefixes are different - indexes " +
	"aren't derivable")

// index identifies a secret in the chain and determines the bit flips needed
// to derive one secret from another.
type index uint64

// newIndex maps a commitment number, counting up from zero, onto the
// descending chain index.
func newIndex(v uint64) index {
	return startIndex - index(v)
}

// element pairs a chain secret with its index.
type element struct {
	index index
	hash  chainhash.Hash
}

// derive computes one chain element from another by applying a series of
// bit flips and hashing operations based on the starting and ending index.
func (e *element) derive(toIndex index) (*element, error) {
	positions, err := e.index.deriveBitTransformations(toIndex)
	if err != nil {
		return nil, err
	}

	buf := e.hash
	for _, position := range positions {
		// Flip the bit and then hash the current state.
		buf[position/8] ^= 1 << (position % 8)
		buf = sha256.Sum256(buf[:])
	}

	return &element{
		index: toIndex,
		hash:  buf,
	}, nil
}

// isEqual returns true if two elements are identical and false otherwise.
func (e *element) isEqual(e2 *element) bool {
	return e.index == e2.index && e.hash.IsEqual(&e2.hash)
}

// deriveBitTransformations checks that the 'to' index is derivable from the
// 'from' index and returns, highest first, the bit positions that have to be
// flipped on the way.
//
// NOTE: The index 'to' is derivable from index 'from' iff every bit above the
// lowest set bit of 'from' matches in 'to'. For a 3 bit chain:
// 1. 7(0b111) -> 7
// 2. 6(0b110) -> 6,7
// 3. 5(0b101) -> 5
// 4. 4(0b100) -> 4,5,6,7
// 5. 3(0b011) -> 3
// 6. 2(0b010) -> 2,3
// 7. 1(0b001) -> 1
// 8. 0(0b000) -> 0..7
func (from index) deriveBitTransformations(to index) ([]uint8, error) {
	var positions []uint8

	if from == to {
		return positions, nil
	}

	zeros := countTrailingZeros(from)
	if uint64(from) != getPrefix(to, zeros) {
		return nil, errNotDerivable
	}

	// The remaining part of the 'to' index gives the positions to flip.
	for position := zeros - 1; ; position-- {
		if getBit(to, position) == 1 {
			positions = append(positions, position)
		}

		if position == 0 {
			break
		}
	}

	return positions, nil
}

// getBit return bit on index at position.
func getBit(index index, position uint8) uint8 {
	return uint8((uint64(index) >> position) & 1)
}

// getPrefix clears every bit of the index below position.
func getPrefix(index index, position uint8) uint64 {
	mask := ^uint64(0) << position
	return uint64(index) & mask
}

// countTrailingZeros counts the trailing zero bits of the index, capped at
// maxHeight. The result is the bucket an element belongs to.
func countTrailingZeros(index index) uint8 {
	var zeros uint8
	for ; zeros < maxHeight; zeros++ {
		if getBit(index, zeros) != 0 {
			break
		}
	}

	return zeros
}
