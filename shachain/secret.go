package shachain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxIndex is the largest 48 bit commitment index.
const MaxIndex = uint64(startIndex)

var (
	// ErrIndexOutOfRange is returned for indexes that do not fit in 48
	// bits.
	ErrIndexOutOfRange = errors.New("commitment index exceeds 48 bits")

	// ErrCannotDerive is returned when a secret is asked to derive an
	// index outside of the subtree it covers.
	ErrCannotDerive = errors.New("secret cannot derive the target index")
)

// BuildCommitmentSecret returns the per commitment secret for the given
// index. Starting from the seed, each set bit of the index from bit 47 down
// to bit 0 flips the matching bit of the running buffer, which is then
// hashed with SHA256. The result depends only on the seed and the index.
func BuildCommitmentSecret(seed [32]byte, idx uint64) ([32]byte, error) {
	return DeriveFrom(uint64(rootIndex), seed, idx)
}

// DeriveFrom derives the secret of toIndex from the secret of fromIndex.
// This succeeds only when every bit of fromIndex above its lowest set bit
// matches toIndex, so a revealed secret never yields the secret of a smaller
// index.
func DeriveFrom(fromIndex uint64, fromSecret [32]byte,
	toIndex uint64) ([32]byte, error) {

	if fromIndex > MaxIndex || toIndex > MaxIndex {
		return [32]byte{}, ErrIndexOutOfRange
	}

	from := &element{
		index: index(fromIndex),
		hash:  fromSecret,
	}
	to, err := from.derive(index(toIndex))
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %d from %d", ErrCannotDerive,
			toIndex, fromIndex)
	}

	return to.hash, nil
}

// Producer hands out the secrets of a single chain in commitment order. The
// first commitment uses chain index MaxIndex and each later commitment the
// next lower index, which is the order a RevocationStore accepts them in.
type Producer struct {
	root *element
}

// NewProducer creates a producer for the chain rooted at seed.
func NewProducer(seed chainhash.Hash) *Producer {
	return &Producer{
		root: &element{
			index: rootIndex,
			hash:  seed,
		},
	}
}

// AtIndex returns the secret of the given commitment number.
func (p *Producer) AtIndex(v uint64) (*chainhash.Hash, error) {
	if v > MaxIndex {
		return nil, ErrIndexOutOfRange
	}

	e, err := p.root.derive(newIndex(v))
	if err != nil {
		return nil, err
	}

	return &e.hash, nil
}
