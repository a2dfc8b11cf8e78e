package shachain

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func seedFromByte(b byte) [32]byte {
	var seed [32]byte
	copy(seed[:], bytes.Repeat([]byte{b}, 32))

	return seed
}

// TestBuildCommitmentSecretVectors checks the BOLT #3 appendix D generation
// vectors.
func TestBuildCommitmentSecretVectors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		seed   [32]byte
		index  uint64
		secret string
	}{
		{
			name:   "generate_from_seed 0 final node",
			seed:   seedFromByte(0x00),
			index:  281474976710655,
			secret: "02a40c85b6f28da08dfdbe0926c53fab2de6d28c10301f8f7c4073d5e42e3148",
		},
		{
			name:   "generate_from_seed FF final node",
			seed:   seedFromByte(0xff),
			index:  281474976710655,
			secret: "7cc854b54e3e0dcdb010d7a3fee464a9687be6e8db3be6854c475621e007a5dc",
		},
		{
			name:   "generate_from_seed FF alternate bits 1",
			seed:   seedFromByte(0xff),
			index:  0xaaaaaaaaaaa,
			secret: "56f4008fb007ca9acf0e15b054d5c9fd12ee06cea347914ddbaed70d1c13a528",
		},
		{
			name:   "generate_from_seed FF alternate bits 2",
			seed:   seedFromByte(0xff),
			index:  0x555555555555,
			secret: "9015daaeb06dba4ccc05b91b2f73bd54405f2be9f217fbacd3c5ac2e62327d31",
		},
		{
			name:   "generate_from_seed 01 last nontrivial node",
			seed:   seedFromByte(0x01),
			index:  1,
			secret: "915c75942a26bb3a433a8ce2cb0427c29ec6c1775cfc78328b57f6ba7bfeaa9c",
		},
		{
			name:   "index zero is the seed",
			seed:   seedFromByte(0x42),
			index:  0,
			secret: hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32)),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			secret, err := BuildCommitmentSecret(tc.seed, tc.index)
			require.NoError(t, err)
			require.Equal(t, tc.secret, hex.EncodeToString(secret[:]))
		})
	}
}

// TestBuildCommitmentSecretRange makes sure indexes wider than 48 bits are
// refused instead of being truncated.
func TestBuildCommitmentSecretRange(t *testing.T) {
	t.Parallel()

	_, err := BuildCommitmentSecret(seedFromByte(0x01), MaxIndex+1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = NewProducer(chainhash.Hash{}).AtIndex(MaxIndex + 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

// TestProducerMatchesChain checks that the producer walks the chain from
// MaxIndex downwards.
func TestProducerMatchesChain(t *testing.T) {
	t.Parallel()

	seed := seedFromByte(0xff)
	producer := NewProducer(seed)

	for n := uint64(0); n < 8; n++ {
		got, err := producer.AtIndex(n)
		require.NoError(t, err)

		want, err := BuildCommitmentSecret(seed, MaxIndex-n)
		require.NoError(t, err)
		require.Equal(t, want[:], got[:])
	}
}

// TestSecretChainProperties checks determinism and that a revealed secret
// derives exactly the indexes in its subtree, never a lower index.
func TestSecretChainProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		var seed [32]byte
		copy(seed[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "seed"))

		from := rapid.Uint64Range(0, MaxIndex).Draw(t, "from")
		to := rapid.Uint64Range(0, MaxIndex).Draw(t, "to")

		fromSecret, err := BuildCommitmentSecret(seed, from)
		require.NoError(t, err)

		again, err := BuildCommitmentSecret(seed, from)
		require.NoError(t, err)
		require.Equal(t, fromSecret, again)

		toSecret, err := BuildCommitmentSecret(seed, to)
		require.NoError(t, err)

		derived, err := DeriveFrom(from, fromSecret, to)
		if to < from {
			require.ErrorIs(t, err, ErrCannotDerive)
			return
		}

		// Derivable iff the bits above the lowest set bit of from
		// match.
		zeros := countTrailingZeros(index(from))
		if getPrefix(index(to), zeros) != from {
			require.ErrorIs(t, err, ErrCannotDerive)
			return
		}

		require.NoError(t, err)
		require.Equal(t, toSecret, derived)
	})
}

// TestRevealedSecretHidesEarlierOnes reveals one secret and checks that none
// of the lower indexes can be reached from it.
func TestRevealedSecretHidesEarlierOnes(t *testing.T) {
	t.Parallel()

	seed := seedFromByte(0x07)
	const revealed = uint64(0b1011000)

	secret, err := BuildCommitmentSecret(seed, revealed)
	require.NoError(t, err)

	for j := uint64(0); j < revealed; j++ {
		want, err := BuildCommitmentSecret(seed, j)
		require.NoError(t, err)

		_, err = DeriveFrom(revealed, secret, j)
		require.ErrorIs(t, err, ErrCannotDerive)

		// Walking the chain forward from the revealed secret as if it
		// were a seed never lands on an earlier secret either.
		forward, err := BuildCommitmentSecret(secret, j)
		require.NoError(t, err)
		require.NotEqual(t, want, forward)
	}

	for j := revealed; j < revealed+8; j++ {
		want, err := BuildCommitmentSecret(seed, j)
		require.NoError(t, err)

		got, err := DeriveFrom(revealed, secret, j)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
