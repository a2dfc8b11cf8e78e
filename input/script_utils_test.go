package input

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lncommit/input/tweaks"
	"github.com/lightningnetwork/lncommit/keychain"
	"github.com/stretchr/testify/require"
)

// testKeys returns the key pair whose secret is b repeated 32 times.
func testKeys(b byte) (*btcec.PrivateKey, *btcec.PublicKey) {
	return btcec.PrivKeyFromBytes(bytes.Repeat([]byte{b}, 32))
}

// assertEngineExecution executes the VM returned by the newEngine closure,
// asserting the result matches the validity expectation. In the case where it
// doesn't match the expectation, it executes the script step-by-step and
// prints debug information to stdout.
func assertEngineExecution(t *testing.T, testNum int, valid bool,
	newEngine func() (*txscript.Engine, error)) {
	t.Helper()

	// Get a new VM to execute.
	vm, err := newEngine()
	require.NoError(t, err, "unable to create engine")

	// Execute the VM, only go on to the step-by-step execution if
	// it doesn't validate as expected.
	vmErr := vm.Execute()
	if valid == (vmErr == nil) {
		return
	}

	// Now that the execution didn't match what we expected, fetch a new VM
	// to step through.
	vm, err = newEngine()
	require.NoError(t, err, "unable to create engine")

	// This buffer will trace execution of the Script, dumping out
	// to stdout.
	var debugBuf bytes.Buffer

	done := false
	for !done {
		dis, err := vm.DisasmPC()
		if err != nil {
			t.Fatalf("stepping (%v)\n", err)
		}
		debugBuf.WriteString(fmt.Sprintf("stepping %v\n", dis))

		done, err = vm.Step()
		if err != nil && valid {
			fmt.Println(debugBuf.String())
			t.Fatalf("spend test case #%v failed, spend "+
				"should be valid: %v", testNum, err)
		} else if err == nil && !valid && done {
			fmt.Println(debugBuf.String())
			t.Fatalf("spend test case #%v succeed, spend "+
				"should be invalid: %v", testNum, err)
		}

		debugBuf.WriteString(fmt.Sprintf("Stack: %v", vm.GetStack()))
		debugBuf.WriteString(fmt.Sprintf("AltStack: %v", vm.GetAltStack()))
	}

	// If we get to this point the unexpected case was not reached
	// during step execution, which happens for some checks, like
	// the clean-stack rule.
	validity := "invalid"
	if valid {
		validity = "valid"
	}

	fmt.Println(debugBuf.String())
	t.Fatalf("%v spend test case #%v execution ended with: %v", validity,
		testNum, vmErr)
}

// spendEngine returns a constructor for a VM validating input 0 of tx
// against prevOut.
func spendEngine(tx *wire.MsgTx,
	prevOut *wire.TxOut) func() (*txscript.Engine, error) {

	return func() (*txscript.Engine, error) {
		fetcher := txscript.NewCannedPrevOutputFetcher(
			prevOut.PkScript, prevOut.Value,
		)

		return txscript.NewEngine(
			prevOut.PkScript, tx, 0, txscript.StandardVerifyFlags,
			nil, txscript.NewTxSigHashes(tx, fetcher),
			prevOut.Value, fetcher,
		)
	}
}

// makeWitnessTestCase is a helper function used within test cases involving
// the validity of a crafted witness. This function is a wrapper function which
// allows constructing table-driven tests. In the case of an error while
// constructing the witness, the test fails fatally.
func makeWitnessTestCase(t *testing.T,
	f func() (wire.TxWitness, error)) func() wire.TxWitness {

	return func() wire.TxWitness {
		witness, err := f()
		require.NoError(t, err, "unable to create witness test case")

		return witness
	}
}

// fakeOutPoint is the outpoint every test commitment spends.
func fakeOutPoint(t *testing.T) *wire.OutPoint {
	t.Helper()

	txid, err := chainhash.NewHashFromStr("d9334caed6503ebc710d13a5f663f0" +
		"3bec531026d2bc786befdfdb8ef5aad721")
	require.NoError(t, err)

	return wire.NewOutPoint(txid, 1)
}

// sweepOf returns a version 2 transaction spending output 0 of prev.
func sweepOf(prev *wire.MsgTx) *wire.MsgTx {
	prevHash := prev.TxHash()

	sweepTx := wire.NewMsgTx(2)
	sweepTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	sweepTx.AddTxOut(&wire.TxOut{
		PkScript: []byte("doesn't matter"),
		Value:    1 * 10e7,
	})

	return sweepTx
}

// TestScriptTemplateVectors pins the templates to fixed encodings.
func TestScriptTemplateVectors(t *testing.T) {
	t.Parallel()

	_, pk1 := testKeys(0x01)
	_, pk2 := testKeys(0x02)
	pk1Bytes := pk1.SerializeCompressed()
	pk2Bytes := pk2.SerializeCompressed()

	paymentHash160, err := hex.DecodeString(
		"b472a266d0bd89c13706a4132ccfb16f7c3b9fcb",
	)
	require.NoError(t, err)

	hashOf := func(script []byte, err error) string {
		require.NoError(t, err)
		return hex.EncodeToString(btcutil.Hash160(script))
	}
	hexOf := func(script []byte, err error) string {
		require.NoError(t, err)
		return hex.EncodeToString(script)
	}

	require.Equal(t, "d8fecda80c30e89a9e7f0964ee79ce055288bc1c",
		hashOf(MultiSigScript(pk1Bytes, pk2Bytes)))
	require.Equal(t, "9c727802a2cd91beb1f1a0a5fd8b391f61c76343",
		hashOf(CsvP2PKHScript(pk1, 1000000000)))
	require.Equal(t, "0ab02ee78c2adeca048d6c19287a84e171fee58d",
		hashOf(CltvP2PKHScript(pk1, 1000000)))
	require.Equal(t, "4a6a4f1fd56fd8684acce69eb49f7ae2b469b077",
		hashOf(FundingRefundScript(pk1, pk2, 1000000)))
	require.Equal(t, "9709cd205e7cb119089de97e0e206f13fde3d342",
		hashOf(FundingRefundScript(pk1, pk2, 144)))
	require.Equal(t, "8bef95533bbe782c3ad32343aeae56006b2096a6",
		hashOf(SenderHTLCScript(pk2, pk1, pk2, paymentHash160)))
	require.Equal(t, "6c61fd62fe96fc6aa5485a820ce87d662329f4ab",
		hashOf(CommitScriptToSelf(144, pk2, pk1)))
	require.Equal(t, "18bfd22c470fa05af3adb6102ace919a307a0147",
		hashOf(ReceiverHTLCScript(
			1000000000, pk1, pk2, pk2, paymentHash160,
		)))

	require.Equal(t,
		"76a91479b000887626b294a914501a4cd226b58b23598388ac",
		hexOf(P2PKHScript(pk1)))
	require.Equal(t,
		"029000b27576a91479b000887626b294a914501a4cd226b58b23598388ac",
		hexOf(CsvP2PKHScript(pk1, 144)))
	require.Equal(t, "001479b000887626b294a914501a4cd226b58b235983",
		hexOf(CommitScriptUnencumbered(pk1)))
	require.Equal(t,
		"6321024d4b6cd1361032ca9bd2aeb9d900aa4d45d9ead80ac9423374c451"+
			"a7254d076667029000b27521031b84c5567b126440995d3ed5aaba"+
			"0565d71e1834604819ff9c17f5e9d5dd078f68ac",
		hexOf(CommitScriptToSelf(144, pk1, pk2)))

	multiSig, err := MultiSigScript(pk1Bytes, pk2Bytes)
	require.NoError(t, err)
	require.Equal(t,
		"0020657760ca015175e42ff5b4470563b23adcf0d2973a0506a176a55696"+
			"90d64437",
		hexOf(WitnessScriptHash(multiSig)))
	require.Equal(t, "a914d8fecda80c30e89a9e7f0964ee79ce055288bc1c87",
		hexOf(P2SHScript(multiSig)))
}

// TestGenMultiSigScriptSorts checks that the funding script is independent of
// the order the keys are passed in, while the raw template is not.
func TestGenMultiSigScriptSorts(t *testing.T) {
	t.Parallel()

	_, pk1 := testKeys(0x01)
	_, pk2 := testKeys(0x02)
	a, b := pk1.SerializeCompressed(), pk2.SerializeCompressed()

	ab, err := GenMultiSigScript(a, b)
	require.NoError(t, err)
	ba, err := GenMultiSigScript(b, a)
	require.NoError(t, err)
	require.Equal(t, ab, ba)

	// 024d4b... sorts before 031b84...
	sorted, err := MultiSigScript(b, a)
	require.NoError(t, err)
	require.Equal(t, sorted, ab)

	raw, err := MultiSigScript(a, b)
	require.NoError(t, err)
	require.NotEqual(t, raw, ab)

	witnessScript, out, err := GenFundingPkScript(a, b, 100000)
	require.NoError(t, err)
	require.Equal(t, ab, witnessScript)
	require.EqualValues(t, 100000, out.Value)

	_, _, err = GenFundingPkScript(a, b, 0)
	require.ErrorIs(t, err, ErrNonPositiveAmount)
}

// TestHTLCScriptHashLength checks that only 20 byte payment hashes are
// accepted.
func TestHTLCScriptHashLength(t *testing.T) {
	t.Parallel()

	_, pk1 := testKeys(0x01)
	_, pk2 := testKeys(0x02)
	full := sha256.Sum256([]byte("preimage"))

	_, err := SenderHTLCScript(pk1, pk2, pk1, full[:])
	require.ErrorIs(t, err, ErrInvalidHash160)

	_, err = ReceiverHTLCScript(10, pk1, pk2, pk1, full[:19])
	require.ErrorIs(t, err, ErrInvalidHash160)
}

// TestFindScriptOutputIndex checks the lookup of an output by script.
func TestFindScriptOutputIndex(t *testing.T) {
	t.Parallel()

	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(1, []byte{0x51}))
	tx.AddTxOut(wire.NewTxOut(2, []byte{0x52}))

	found, idx := FindScriptOutputIndex(tx, []byte{0x52})
	require.True(t, found)
	require.EqualValues(t, 1, idx)

	found, _ = FindScriptOutputIndex(tx, []byte{0x53})
	require.False(t, found)
}

// TestLockTimeToSequence checks the BIP-68 sequence encoding.
func TestLockTimeToSequence(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 144, LockTimeToSequence(false, 144))
	require.Equal(t, SequenceLockTimeSeconds|2,
		LockTimeToSequence(true, 1024))
}

// htlcTestContext holds the keys shared by the HTLC script tests. Alice offers
// the HTLC and Bob receives it.
type htlcTestContext struct {
	alicePriv, bobPriv         *btcec.PrivateKey
	alicePub, bobPub           *btcec.PublicKey
	commitSecret               *btcec.PrivateKey
	commitPoint                *btcec.PublicKey
	aliceLocalKey, bobLocalKey *btcec.PublicKey
	aliceTweak, bobTweak       []byte
	paymentPreimage            []byte
	paymentHash160             []byte
	aliceSigner, bobSigner     *MockSigner
}

func newHTLCTestContext(t *testing.T) *htlcTestContext {
	t.Helper()

	c := &htlcTestContext{}
	c.alicePriv, c.alicePub = testKeys(0x11)
	c.bobPriv, c.bobPub = testKeys(0x22)
	c.commitSecret, c.commitPoint = testKeys(0x33)

	var err error
	c.aliceLocalKey, err = tweaks.TweakPubKey(c.alicePub, c.commitPoint)
	require.NoError(t, err)
	c.bobLocalKey, err = tweaks.TweakPubKey(c.bobPub, c.commitPoint)
	require.NoError(t, err)

	c.aliceTweak = tweaks.SingleTweakBytes(c.commitPoint, c.alicePub)
	c.bobTweak = tweaks.SingleTweakBytes(c.commitPoint, c.bobPub)

	c.paymentPreimage = bytes.Repeat([]byte{0x44}, 32)
	preimageHash := sha256.Sum256(c.paymentPreimage)
	c.paymentHash160 = Ripemd160H(preimageHash[:])

	c.aliceSigner = NewMockSigner(c.alicePriv)
	c.bobSigner = NewMockSigner(c.bobPriv)

	return c
}

// signDesc returns a sign descriptor for input 0 spending output.
func (c *htlcTestContext) signDesc(pub *btcec.PublicKey, witnessScript []byte,
	output *wire.TxOut) *SignDescriptor {

	return &SignDescriptor{
		KeyDesc: keychain.KeyDescriptor{
			PubKey: pub,
		},
		WitnessScript: witnessScript,
		Output:        output,
		HashType:      txscript.SigHashAll,
		InputIndex:    0,
	}
}

// TestHTLCSenderSpendValidation tests all possible valid+invalid redemption
// paths in the script used within the sender's commitment transaction for an
// outgoing HTLC.
//
// The following cases are exercised by this test:
// sender script:
//   - receiver spends
//   - revoke w/ sig
//   - HTLC with invalid preimage size
//   - HTLC with valid preimage size + sig
//   - sender spends
//   - timeout with both signatures
//   - timeout with a signature from the wrong key
func TestHTLCSenderSpendValidation(t *testing.T) {
	t.Parallel()

	c := newHTLCTestContext(t)

	// As we'll be modeling spends from Alice's commitment transaction,
	// we'll be using Bob's base point for the revocation key.
	revocationKey, err := tweaks.DeriveRevocationPubkey(
		c.bobPub, c.commitPoint,
	)
	require.NoError(t, err)

	htlcWitnessScript, err := SenderHTLCScript(
		c.aliceLocalKey, c.bobLocalKey, revocationKey,
		c.paymentHash160,
	)
	require.NoError(t, err)
	htlcPkScript, err := WitnessScriptHash(htlcWitnessScript)
	require.NoError(t, err)

	htlcOutput := &wire.TxOut{
		Value:    int64(btcutil.SatoshiPerBitcoin),
		PkScript: htlcPkScript,
	}
	senderCommitTx := wire.NewMsgTx(2)
	senderCommitTx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))
	senderCommitTx.AddTxOut(htlcOutput)

	sweepTx := sweepOf(senderCommitTx)

	// Bob's signature for the second level HTLC timeout transaction.
	bobDesc := c.signDesc(c.bobPub, htlcWitnessScript, htlcOutput)
	bobDesc.SingleTweak = c.bobTweak
	bobSig, err := c.bobSigner.SignOutputRaw(sweepTx, bobDesc)
	require.NoError(t, err)
	bobRecvrSig := append(bobSig.Serialize(), byte(txscript.SigHashAll))

	testCases := []struct {
		witness func() wire.TxWitness
		valid   bool
	}{
		{
			// revoke w/ sig
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, htlcWitnessScript, htlcOutput,
				)
				desc.DoubleTweak = c.commitSecret

				return SenderHtlcSpendRevoke(
					c.bobSigner, desc, sweepTx,
				)
			}),
			true,
		},
		{
			// revoke with a key that isn't the revocation key
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, htlcWitnessScript, htlcOutput,
				)
				desc.SingleTweak = c.bobTweak

				return SenderHtlcSpendRevokeWithKey(
					c.bobSigner, desc, c.bobLocalKey,
					sweepTx,
				)
			}),
			false,
		},
		{
			// HTLC with invalid preimage size
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, htlcWitnessScript, htlcOutput,
				)
				desc.SingleTweak = c.bobTweak

				return SenderHtlcSpendRedeem(
					c.bobSigner, desc, sweepTx,
					bytes.Repeat([]byte{1}, 45),
				)
			}),
			false,
		},
		{
			// HTLC with valid preimage size + sig
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, htlcWitnessScript, htlcOutput,
				)
				desc.SingleTweak = c.bobTweak

				return SenderHtlcSpendRedeem(
					c.bobSigner, desc, sweepTx,
					c.paymentPreimage,
				)
			}),
			true,
		},
		{
			// HTLC with the wrong preimage
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, htlcWitnessScript, htlcOutput,
				)
				desc.SingleTweak = c.bobTweak

				return SenderHtlcSpendRedeem(
					c.bobSigner, desc, sweepTx,
					bytes.Repeat([]byte{0x45}, 32),
				)
			}),
			false,
		},
		{
			// valid spend to the transition the state of the HTLC
			// output with the second level HTLC timeout
			// transaction.
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.alicePub, htlcWitnessScript,
					htlcOutput,
				)
				desc.SingleTweak = c.aliceTweak

				return SenderHtlcSpendTimeout(
					bobRecvrSig, c.aliceSigner, desc,
					sweepTx,
				)
			}),
			true,
		},
		{
			// timeout where Alice signs in place of Bob
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.alicePub, htlcWitnessScript,
					htlcOutput,
				)
				desc.SingleTweak = c.aliceTweak

				aliceSig, err := c.aliceSigner.SignOutputRaw(
					sweepTx, desc,
				)
				if err != nil {
					return nil, err
				}
				forged := append(
					aliceSig.Serialize(),
					byte(txscript.SigHashAll),
				)

				return SenderHtlcSpendTimeout(
					forged, c.aliceSigner, desc, sweepTx,
				)
			}),
			false,
		},
	}

	for i, testCase := range testCases {
		sweepTx.TxIn[0].Witness = testCase.witness()

		assertEngineExecution(
			t, i, testCase.valid, spendEngine(sweepTx, htlcOutput),
		)
	}
}

// TestHTLCReceiverSpendValidation tests all possible valid+invalid redemption
// paths in the script used within the receiver's commitment transaction for an
// incoming HTLC.
//
// The following cases are exercised by this test:
//   - receiver spends
//   - HTLC redemption w/ invalid preimage size
//   - HTLC redemption w/ valid preimage size
//   - sender spends
//   - revoke w/ sig
//   - refund w/ invalid lock time
//   - refund w/ valid lock time
func TestHTLCReceiverSpendValidation(t *testing.T) {
	t.Parallel()

	c := newHTLCTestContext(t)
	const cltvTimeout = 500

	// This is Bob's commitment, so the revocation key is built from
	// Alice's base point.
	revocationKey, err := tweaks.DeriveRevocationPubkey(
		c.alicePub, c.commitPoint,
	)
	require.NoError(t, err)

	htlcWitnessScript, err := ReceiverHTLCScript(
		cltvTimeout, c.aliceLocalKey, c.bobLocalKey, revocationKey,
		c.paymentHash160,
	)
	require.NoError(t, err)
	htlcPkScript, err := WitnessScriptHash(htlcWitnessScript)
	require.NoError(t, err)

	htlcOutput := &wire.TxOut{
		Value:    int64(btcutil.SatoshiPerBitcoin),
		PkScript: htlcPkScript,
	}
	receiverCommitTx := wire.NewMsgTx(2)
	receiverCommitTx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))
	receiverCommitTx.AddTxOut(htlcOutput)

	sweepTx := sweepOf(receiverCommitTx)
	sweepTx.TxIn[0].Sequence = 0

	// Alice's signature for the second level HTLC success transaction.
	aliceDesc := c.signDesc(c.alicePub, htlcWitnessScript, htlcOutput)
	aliceDesc.SingleTweak = c.aliceTweak
	aliceSig, err := c.aliceSigner.SignOutputRaw(sweepTx, aliceDesc)
	require.NoError(t, err)
	aliceSenderSig := append(aliceSig.Serialize(), byte(txscript.SigHashAll))

	testCases := []struct {
		lockTime uint32
		witness  func() wire.TxWitness
		valid    bool
	}{
		{
			// HTLC redemption w/ invalid preimage size
			0,
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, htlcWitnessScript, htlcOutput,
				)
				desc.SingleTweak = c.bobTweak

				return ReceiverHtlcSpendRedeem(
					aliceSenderSig,
					bytes.Repeat([]byte{1}, 45),
					c.bobSigner, desc, sweepTx,
				)
			}),
			false,
		},
		{
			// HTLC redemption w/ valid preimage size
			0,
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, htlcWitnessScript, htlcOutput,
				)
				desc.SingleTweak = c.bobTweak

				return ReceiverHtlcSpendRedeem(
					aliceSenderSig, c.paymentPreimage,
					c.bobSigner, desc, sweepTx,
				)
			}),
			true,
		},
		{
			// revoke w/ sig
			0,
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.alicePub, htlcWitnessScript,
					htlcOutput,
				)
				desc.DoubleTweak = c.commitSecret

				return ReceiverHtlcSpendRevoke(
					c.aliceSigner, desc, sweepTx,
				)
			}),
			true,
		},
		{
			// refund w/ invalid lock time
			cltvTimeout - 2,
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.alicePub, htlcWitnessScript,
					htlcOutput,
				)
				desc.SingleTweak = c.aliceTweak

				return ReceiverHtlcSpendTimeout(
					c.aliceSigner, desc, sweepTx, -1,
				)
			}),
			false,
		},
		{
			// refund w/ valid lock time
			cltvTimeout,
			makeWitnessTestCase(t, func() (wire.TxWitness, error) {
				desc := c.signDesc(
					c.alicePub, htlcWitnessScript,
					htlcOutput,
				)
				desc.SingleTweak = c.aliceTweak

				return ReceiverHtlcSpendTimeout(
					c.aliceSigner, desc, sweepTx, -1,
				)
			}),
			true,
		},
	}

	for i, testCase := range testCases {
		sweepTx.LockTime = testCase.lockTime
		sweepTx.TxIn[0].Witness = testCase.witness()

		assertEngineExecution(
			t, i, testCase.valid, spendEngine(sweepTx, htlcOutput),
		)
	}
}

// TestCommitSpendValidation checks the spend paths of the to_local and
// to_remote commitment outputs.
func TestCommitSpendValidation(t *testing.T) {
	t.Parallel()

	c := newHTLCTestContext(t)
	const csvTimeout = 5

	// Alice's to_local output, revocable by Bob.
	revocationKey, err := tweaks.DeriveRevocationPubkey(
		c.bobPub, c.commitPoint,
	)
	require.NoError(t, err)

	delayScript, err := CommitScriptToSelf(
		csvTimeout, c.aliceLocalKey, revocationKey,
	)
	require.NoError(t, err)
	delayPkScript, err := WitnessScriptHash(delayScript)
	require.NoError(t, err)
	delayOutput := wire.NewTxOut(5*10e7, delayPkScript)

	// Bob's to_remote output.
	remotePkScript, err := CommitScriptUnencumbered(c.bobLocalKey)
	require.NoError(t, err)
	remoteOutput := wire.NewTxOut(4*10e7, remotePkScript)

	commitTx := wire.NewMsgTx(2)
	commitTx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))
	commitTx.AddTxOut(delayOutput)

	testCases := []struct {
		name     string
		sequence uint32
		output   *wire.TxOut
		witness  func(*wire.MsgTx) (wire.TxWitness, error)
		valid    bool
	}{
		{
			name:     "timeout before delay",
			sequence: csvTimeout - 1,
			output:   delayOutput,
			witness: func(tx *wire.MsgTx) (wire.TxWitness, error) {
				desc := c.signDesc(
					c.alicePub, delayScript, delayOutput,
				)
				desc.SingleTweak = c.aliceTweak

				return CommitSpendTimeout(c.aliceSigner, desc, tx)
			},
			valid: false,
		},
		{
			name:     "timeout after delay",
			sequence: csvTimeout,
			output:   delayOutput,
			witness: func(tx *wire.MsgTx) (wire.TxWitness, error) {
				desc := c.signDesc(
					c.alicePub, delayScript, delayOutput,
				)
				desc.SingleTweak = c.aliceTweak

				return CommitSpendTimeout(c.aliceSigner, desc, tx)
			},
			valid: true,
		},
		{
			name:     "revoke",
			sequence: wire.MaxTxInSequenceNum,
			output:   delayOutput,
			witness: func(tx *wire.MsgTx) (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, delayScript, delayOutput,
				)
				desc.DoubleTweak = c.commitSecret

				return CommitSpendRevoke(c.bobSigner, desc, tx)
			},
			valid: true,
		},
		{
			name:     "revoke with the delayed key",
			sequence: wire.MaxTxInSequenceNum,
			output:   delayOutput,
			witness: func(tx *wire.MsgTx) (wire.TxWitness, error) {
				desc := c.signDesc(
					c.alicePub, delayScript, delayOutput,
				)
				desc.SingleTweak = c.aliceTweak

				return CommitSpendRevoke(c.aliceSigner, desc, tx)
			},
			valid: false,
		},
		{
			name:     "to_remote",
			sequence: wire.MaxTxInSequenceNum,
			output:   remoteOutput,
			witness: func(tx *wire.MsgTx) (wire.TxWitness, error) {
				desc := c.signDesc(
					c.bobPub, remotePkScript, remoteOutput,
				)
				desc.SingleTweak = c.bobTweak

				return CommitSpendNoDelay(c.bobSigner, desc, tx)
			},
			valid: true,
		},
	}

	for i, tc := range testCases {
		sweepTx := sweepOf(commitTx)
		sweepTx.TxIn[0].Sequence = tc.sequence

		witness, err := tc.witness(sweepTx)
		require.NoError(t, err, tc.name)
		sweepTx.TxIn[0].Witness = witness

		assertEngineExecution(
			t, i, tc.valid, spendEngine(sweepTx, tc.output),
		)
	}
}

// TestCommitSpendTimeoutVersion checks that CSV spends refuse version 1
// transactions.
func TestCommitSpendTimeoutVersion(t *testing.T) {
	t.Parallel()

	priv, pub := testKeys(0x01)
	script, err := CsvP2PKHScript(pub, 10)
	require.NoError(t, err)

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))

	desc := &SignDescriptor{
		KeyDesc:       keychain.KeyDescriptor{PubKey: pub},
		WitnessScript: script,
		Output:        wire.NewTxOut(1000, script),
		HashType:      txscript.SigHashAll,
	}

	_, err = CommitSpendTimeout(NewMockSigner(priv), desc, tx)
	require.Error(t, err)

	_, err = CsvP2PKHSpend(NewMockSigner(priv), desc, tx)
	require.Error(t, err)
}

// TestTimelockedP2PKHSpends checks the CSV and CLTV pay-to-pubkey-hash
// templates when wrapped in p2wsh.
func TestTimelockedP2PKHSpends(t *testing.T) {
	t.Parallel()

	priv, pub := testKeys(0x01)
	const (
		delay    = 10
		lockTime = 700000
		amt      = 50000
	)

	csvScript, err := CsvP2PKHScript(pub, delay)
	require.NoError(t, err)
	csvPkScript, err := WitnessScriptHash(csvScript)
	require.NoError(t, err)
	csvOutput := wire.NewTxOut(amt, csvPkScript)

	cltvScript, err := CltvP2PKHScript(pub, lockTime)
	require.NoError(t, err)
	cltvPkScript, err := WitnessScriptHash(cltvScript)
	require.NoError(t, err)
	cltvOutput := wire.NewTxOut(amt, cltvPkScript)

	signer := NewMockSigner(priv)

	csvSpend := func(sequence uint32) *wire.MsgTx {
		tx := wire.NewMsgTx(2)
		tx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))
		tx.TxIn[0].Sequence = sequence
		tx.AddTxOut(wire.NewTxOut(amt-1000, []byte{0x51}))

		desc := &SignDescriptor{
			KeyDesc:       keychain.KeyDescriptor{PubKey: pub},
			WitnessScript: csvScript,
			Output:        csvOutput,
			HashType:      txscript.SigHashAll,
		}
		witness, err := CsvP2PKHSpend(signer, desc, tx)
		require.NoError(t, err)
		tx.TxIn[0].Witness = witness

		return tx
	}

	cltvSpend := func(txLockTime uint32) *wire.MsgTx {
		tx := wire.NewMsgTx(2)
		tx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))
		tx.TxIn[0].Sequence = 0
		tx.LockTime = txLockTime
		tx.AddTxOut(wire.NewTxOut(amt-1000, []byte{0x51}))

		sig, err := GenerateP2WSHSignature(
			tx, 0, cltvScript, amt, txscript.SigHashAll, priv,
		)
		require.NoError(t, err)
		tx.TxIn[0].Witness = wire.TxWitness{
			sig, pub.SerializeCompressed(), cltvScript,
		}

		return tx
	}

	assertEngineExecution(
		t, 0, true, spendEngine(csvSpend(delay), csvOutput),
	)
	assertEngineExecution(
		t, 1, false, spendEngine(csvSpend(delay-1), csvOutput),
	)
	assertEngineExecution(
		t, 2, true, spendEngine(cltvSpend(lockTime), cltvOutput),
	)
	assertEngineExecution(
		t, 3, false, spendEngine(cltvSpend(lockTime-1), cltvOutput),
	)
}

// TestFundingRefundSpends checks both branches of the refundable funding
// script.
func TestFundingRefundSpends(t *testing.T) {
	t.Parallel()

	fundingPriv, fundingPub := testKeys(0x01)
	otherPriv, otherPub := testKeys(0x02)
	const (
		delay = 144
		amt   = 100000
	)

	script, err := FundingRefundScript(fundingPub, otherPub, delay)
	require.NoError(t, err)
	pkScript, err := WitnessScriptHash(script)
	require.NoError(t, err)
	output := wire.NewTxOut(amt, pkScript)

	spend := func(sequence uint32) *wire.MsgTx {
		tx := wire.NewMsgTx(2)
		tx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))
		tx.TxIn[0].Sequence = sequence
		tx.AddTxOut(wire.NewTxOut(amt-1000, []byte{0x51}))

		return tx
	}

	sign := func(tx *wire.MsgTx, priv *btcec.PrivateKey) []byte {
		sig, err := GenerateP2WSHSignature(
			tx, 0, script, amt, txscript.SigHashAll, priv,
		)
		require.NoError(t, err)

		return sig
	}

	// Both parties sign, in script key order.
	coopTx := spend(wire.MaxTxInSequenceNum)
	coopTx.TxIn[0].Witness = FundingRefundSpendMultiSig(
		script, sign(coopTx, fundingPriv), sign(coopTx, otherPriv),
	)
	assertEngineExecution(t, 0, true, spendEngine(coopTx, output))

	// Signatures out of order fail.
	swappedTx := spend(wire.MaxTxInSequenceNum)
	swappedTx.TxIn[0].Witness = FundingRefundSpendMultiSig(
		script, sign(swappedTx, otherPriv), sign(swappedTx, fundingPriv),
	)
	assertEngineExecution(t, 1, false, spendEngine(swappedTx, output))

	// The funder alone after the delay.
	refund := func(sequence uint32, priv *btcec.PrivateKey,
		pub *btcec.PublicKey) *wire.MsgTx {

		tx := spend(sequence)
		desc := &SignDescriptor{
			KeyDesc:       keychain.KeyDescriptor{PubKey: pub},
			WitnessScript: script,
			Output:        output,
			HashType:      txscript.SigHashAll,
		}
		witness, err := FundingRefundSpendTimeout(
			NewMockSigner(priv), desc, tx,
		)
		require.NoError(t, err)
		tx.TxIn[0].Witness = witness

		return tx
	}

	assertEngineExecution(
		t, 2, true,
		spendEngine(refund(delay, fundingPriv, fundingPub), output),
	)
	assertEngineExecution(
		t, 3, false,
		spendEngine(refund(delay-1, fundingPriv, fundingPub), output),
	)
	assertEngineExecution(
		t, 4, false,
		spendEngine(refund(delay, otherPriv, otherPub), output),
	)
}

// TestSpendMultiSig checks that the 2-of-2 witness is valid no matter which
// order the signatures are handed over in.
func TestSpendMultiSig(t *testing.T) {
	t.Parallel()

	privA, pubA := testKeys(0x01)
	privB, pubB := testKeys(0x02)
	a, b := pubA.SerializeCompressed(), pubB.SerializeCompressed()
	const amt = 100000

	witnessScript, fundingOutput, err := GenFundingPkScript(a, b, amt)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))
	tx.AddTxOut(wire.NewTxOut(amt-1000, []byte{0x51}))

	sigA, err := GenerateP2WSHSignature(
		tx, 0, witnessScript, amt, txscript.SigHashAll, privA,
	)
	require.NoError(t, err)
	sigB, err := GenerateP2WSHSignature(
		tx, 0, witnessScript, amt, txscript.SigHashAll, privB,
	)
	require.NoError(t, err)

	forward := SpendMultiSig(witnessScript, a, sigA, b, sigB)
	backward := SpendMultiSig(witnessScript, b, sigB, a, sigA)
	require.Equal(t, forward, backward)
	require.Len(t, forward, 4)
	require.Nil(t, forward[0])

	// pubB sorts first, so its signature is the lower stack element.
	require.Equal(t, sigB, forward[1])

	tx.TxIn[0].Witness = forward
	assertEngineExecution(t, 0, true, spendEngine(tx, fundingOutput))

	// Signing is deterministic.
	again, err := GenerateP2WSHSignature(
		tx, 0, witnessScript, amt, txscript.SigHashAll, privA,
	)
	require.NoError(t, err)
	require.Equal(t, sigA, again)

	_, err = GenerateP2WSHSignature(
		tx, 1, witnessScript, amt, txscript.SigHashAll, privA,
	)
	require.Error(t, err)
}

// TestMockSignerKeyRing checks that a signer without a matching in-memory key
// falls back to the key ring.
func TestMockSignerKeyRing(t *testing.T) {
	t.Parallel()

	nodeKeys, err := keychain.NewNodeKeys([32]byte{0x07})
	require.NoError(t, err)

	keyDesc, err := nodeKeys.DeriveKey(keychain.KeyLocator{
		Family: keychain.KeyFamilyCoopClose,
	})
	require.NoError(t, err)

	pkScript, err := CommitScriptUnencumbered(keyDesc.PubKey)
	require.NoError(t, err)
	output := wire.NewTxOut(20000, pkScript)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(fakeOutPoint(t), nil, nil))
	tx.AddTxOut(wire.NewTxOut(19000, []byte{0x51}))

	desc := &SignDescriptor{
		KeyDesc:       keyDesc,
		WitnessScript: pkScript,
		Output:        output,
		HashType:      txscript.SigHashAll,
	}

	signer := NewMockSigner()
	_, err = CommitSpendNoDelay(signer, desc, tx)
	require.Error(t, err)

	signer.KeyRing = nodeKeys
	witness, err := CommitSpendNoDelay(signer, desc, tx)
	require.NoError(t, err)
	tx.TxIn[0].Witness = witness

	assertEngineExecution(t, 0, true, spendEngine(tx, output))

	desc.DoubleTweak, _ = testKeys(0x33)
	desc.SingleTweak = []byte{0x01}
	_, err = signer.SignOutputRaw(tx, desc)
	require.ErrorIs(t, err, ErrTweakOverdose)
}
