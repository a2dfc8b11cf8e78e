package input

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

// TestScriptBuilderPushes checks the encoding chosen for each kind of push.
func TestScriptBuilderPushes(t *testing.T) {
	t.Parallel()

	_, pub1 := testKeys(0x01)

	testCases := []struct {
		name  string
		build func(*ScriptBuilder)
		want  []byte
	}{
		{
			name: "small int",
			build: func(b *ScriptBuilder) {
				b.AddInt64(2)
			},
			want: []byte{txscript.OP_2},
		},
		{
			name: "script num",
			build: func(b *ScriptBuilder) {
				b.AddInt64(144)
			},
			want: []byte{0x02, 0x90, 0x00},
		},
		{
			name: "opcode",
			build: func(b *ScriptBuilder) {
				b.AddOp(txscript.OP_CHECKSIG)
			},
			want: []byte{txscript.OP_CHECKSIG},
		},
		{
			name: "pubkey",
			build: func(b *ScriptBuilder) {
				b.AddPubKey(pub1.SerializeCompressed())
			},
			want: append(
				[]byte{txscript.OP_DATA_33},
				pub1.SerializeCompressed()...,
			),
		},
		{
			name: "pushdata1",
			build: func(b *ScriptBuilder) {
				b.AddData(bytes.Repeat([]byte{0xaa}, 80))
			},
			want: append(
				[]byte{txscript.OP_PUSHDATA1, 80},
				bytes.Repeat([]byte{0xaa}, 80)...,
			),
		},
		{
			name: "splice",
			build: func(b *ScriptBuilder) {
				b.AddOp(txscript.OP_IF)
				b.AddScript([]byte{0x51, 0x52})
				b.AddOp(txscript.OP_ENDIF)
			},
			want: []byte{
				txscript.OP_IF, 0x51, 0x52, txscript.OP_ENDIF,
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := NewScriptBuilder()
			tc.build(b)

			script, err := b.Script()
			require.NoError(t, err)
			require.Equal(t, tc.want, script)
		})
	}
}

// TestScriptBuilderSignature checks that a signature push carries the sighash
// byte after the DER encoding.
func TestScriptBuilderSignature(t *testing.T) {
	t.Parallel()

	priv, _ := testKeys(0x01)
	hash := chainhash.HashB([]byte("sig"))
	sig := ecdsa.Sign(priv, hash).Serialize()

	script, err := NewScriptBuilder().
		AddSignature(sig, txscript.SigHashAll).
		Script()
	require.NoError(t, err)

	require.Equal(t, byte(len(sig)+1), script[0])
	require.Equal(t, sig, script[1:len(sig)+1])
	require.Equal(t, byte(txscript.SigHashAll), script[len(script)-1])
}

// TestScriptBuilderErrors checks that every invalid push is reported and that
// the first error sticks.
func TestScriptBuilderErrors(t *testing.T) {
	t.Parallel()

	_, pub1 := testKeys(0x01)
	uncompressed := pub1.SerializeUncompressed()

	testCases := []struct {
		name  string
		build func(*ScriptBuilder)
		err   error
	}{
		{
			name: "oversized push",
			build: func(b *ScriptBuilder) {
				b.AddData(make([]byte, txscript.MaxScriptElementSize+1))
			},
			err: ErrPushTooLarge,
		},
		{
			name: "uncompressed pubkey",
			build: func(b *ScriptBuilder) {
				b.AddPubKey(uncompressed)
			},
			err: ErrInvalidPubKey,
		},
		{
			name: "pubkey off the curve",
			build: func(b *ScriptBuilder) {
				bad := bytes.Repeat([]byte{0xff}, 33)
				bad[0] = 0x02
				b.AddPubKey(bad)
			},
			err: ErrInvalidPubKey,
		},
		{
			name: "non der signature",
			build: func(b *ScriptBuilder) {
				b.AddSignature([]byte{0x30, 0x01}, txscript.SigHashAll)
			},
			err: ErrInvalidSignature,
		},
		{
			name: "script too large",
			build: func(b *ScriptBuilder) {
				push := make([]byte, txscript.MaxScriptElementSize)
				for i := 0; i < 20; i++ {
					b.AddData(push)
				}
			},
			err: ErrScriptTooLarge,
		},
		{
			name: "first error sticks",
			build: func(b *ScriptBuilder) {
				b.AddPubKey(uncompressed)
				b.AddData(make([]byte, txscript.MaxScriptElementSize+1))
				b.AddOp(txscript.OP_CHECKSIG)
			},
			err: ErrInvalidPubKey,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := NewScriptBuilder()
			tc.build(b)

			script, err := b.Script()
			require.ErrorIs(t, err, tc.err)
			require.Nil(t, script)
		})
	}
}
