package lnwallet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lncommit/input"
	"github.com/lightningnetwork/lncommit/lnutils"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// StateHintSize is the total number of bytes used between the sequence
	// number and locktime of the commitment transaction use to encode a hint
	// to the state number of a particular commitment transaction.
	StateHintSize = 6

	// MaxStateHint is the maximum state number we're able to encode using
	// StateHintSize bytes amongst the sequence number and locktime fields
	// of the commitment transaction.
	maxStateHint uint64 = (1 << 48) - 1
)

var (
	// TimelockShift is used to make sure the commitment transaction is
	// spendable by setting the locktime with it so that it is larger than
	// 500,000,000, thus interpreting it as Unix epoch timestamp and not
	// a block height. It is also smaller than the current timestamp which
	// has bit (1 << 30) set, so there is no risk of having the commitment
	// transaction be rejected. This way we can safely use the lower 24 bits
	// of the locktime field for part of the obscured commitment transaction
	// number.
	TimelockShift = uint32(1 << 29)

	// ErrNoInputs is returned when a transaction would be built without
	// any input.
	ErrNoInputs = errors.New("transaction has no inputs")

	// ErrNoOutputs is returned when a transaction would be built without
	// any output.
	ErrNoOutputs = errors.New("transaction has no outputs")

	// ErrInvalidAmount is returned for an output of zero or negative value.
	ErrInvalidAmount = errors.New("output amount must be positive")

	// ErrInvalidTxid is returned when a txid string is not 64 hex
	// characters.
	ErrInvalidTxid = errors.New("txid must be 64 hex characters")
)

// NewTxIn returns an input spending vout of the transaction with the given
// txid. The txid is in the usual byte reversed display order. The input's
// sequence is final.
func NewTxIn(txid string, vout uint32) (*wire.TxIn, error) {
	if len(txid) != chainhash.MaxHashStringSize {
		return nil, fmt.Errorf("%w: got %d characters", ErrInvalidTxid,
			len(txid))
	}

	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTxid, err)
	}

	return wire.NewTxIn(wire.NewOutPoint(hash, vout), nil, nil), nil
}

// NewCsvTxIn returns an input like NewTxIn whose sequence enforces a relative
// lock time of csvDelay blocks.
func NewCsvTxIn(txid string, vout uint32, csvDelay uint32) (*wire.TxIn,
	error) {

	txIn, err := NewTxIn(txid, vout)
	if err != nil {
		return nil, err
	}
	txIn.Sequence = input.LockTimeToSequence(false, csvDelay)

	return txIn, nil
}

// buildTx assembles a transaction once its inputs and outputs are known to be
// well formed.
func buildTx(version int32, lockTime uint32, txIns []*wire.TxIn,
	txOuts []*wire.TxOut) (*wire.MsgTx, error) {

	if len(txIns) == 0 {
		return nil, ErrNoInputs
	}
	if len(txOuts) == 0 {
		return nil, ErrNoOutputs
	}
	for i, txIn := range txIns {
		if txIn == nil {
			return nil, fmt.Errorf("input %d is nil", i)
		}
	}
	for i, txOut := range txOuts {
		if txOut == nil || txOut.Value <= 0 {
			return nil, fmt.Errorf("%w: output %d", ErrInvalidAmount,
				i)
		}
	}

	tx := wire.NewMsgTx(version)
	tx.LockTime = lockTime
	for _, txIn := range txIns {
		tx.AddTxIn(txIn)
	}
	for _, txOut := range txOuts {
		tx.AddTxOut(txOut)
	}

	walletLog.Tracef("Built tx %v: %v", tx.TxHash(),
		lnutils.SpewLogClosure(tx))

	return tx, nil
}

// p2wshOutput returns an output of amt paying to the p2wsh of witnessScript.
func p2wshOutput(amt btcutil.Amount, witnessScript []byte) (*wire.TxOut,
	error) {

	pkScript, err := input.WitnessScriptHash(witnessScript)
	if err != nil {
		return nil, err
	}

	return wire.NewTxOut(int64(amt), pkScript), nil
}

// p2wpkhOutput returns an output of amt paying to the p2wkh of key.
func p2wpkhOutput(amt btcutil.Amount, key *btcec.PublicKey) (*wire.TxOut,
	error) {

	pkScript, err := input.CommitScriptUnencumbered(key)
	if err != nil {
		return nil, err
	}

	return wire.NewTxOut(int64(amt), pkScript), nil
}

// CreateFundingTx creates the transaction that opens a channel between
// localKey and remoteKey. Its first output pays amt to the p2wsh of the
// sorted 2-of-2 multisig script, which is returned alongside the
// transaction. If a change output is given it is appended after the funding
// output.
func CreateFundingTx(txIns []*wire.TxIn, localKey, remoteKey *btcec.PublicKey,
	amt btcutil.Amount, change fn.Option[*wire.TxOut]) (*wire.MsgTx, []byte,
	error) {

	if amt <= 0 {
		return nil, nil, fmt.Errorf("%w: funding amount %v",
			ErrInvalidAmount, amt)
	}

	witnessScript, fundingOutput, err := input.GenFundingPkScript(
		localKey.SerializeCompressed(), remoteKey.SerializeCompressed(),
		int64(amt),
	)
	if err != nil {
		return nil, nil, err
	}

	txOuts := []*wire.TxOut{fundingOutput}
	change.WhenSome(func(changeOut *wire.TxOut) {
		txOuts = append(txOuts, changeOut)
	})

	fundingTx, err := buildTx(2, 0, txIns, txOuts)
	if err != nil {
		return nil, nil, err
	}

	return fundingTx, witnessScript, nil
}

// CreateRefundTx creates a transaction spending the funding output back to
// both parties, each paid to a p2wkh output.
func CreateRefundTx(fundingTxIn *wire.TxIn, aliceKey, bobKey *btcec.PublicKey,
	aliceAmt, bobAmt btcutil.Amount) (*wire.MsgTx, error) {

	aliceOutput, err := p2wpkhOutput(aliceAmt, aliceKey)
	if err != nil {
		return nil, err
	}
	bobOutput, err := p2wpkhOutput(bobAmt, bobKey)
	if err != nil {
		return nil, err
	}

	return buildTx(
		2, 0, []*wire.TxIn{fundingTxIn},
		[]*wire.TxOut{aliceOutput, bobOutput},
	)
}

// CreateCommitTx creates a commitment transaction, spending from specified
// funding output. The commitment transaction contains two outputs: one local
// output paying to the "owner" of the commitment transaction which can be
// spent after a relative block delay or revocation event, and a remote output
// paying the counterparty within the channel, which can be spent immediately.
func CreateCommitTx(fundingOutput *wire.TxIn, keyRing *CommitmentKeyRing,
	csvTimeout uint32, amountToSelf,
	amountToThem btcutil.Amount) (*wire.MsgTx, error) {

	txOuts, err := commitOutputs(
		keyRing, csvTimeout, amountToSelf, amountToThem,
	)
	if err != nil {
		return nil, err
	}

	return buildTx(2, 0, []*wire.TxIn{fundingOutput}, txOuts)
}

// commitOutputs returns the to_local and to_remote outputs of a commitment.
func commitOutputs(keyRing *CommitmentKeyRing, csvTimeout uint32,
	amountToSelf, amountToThem btcutil.Amount) ([]*wire.TxOut, error) {

	// First, we create the script for the delayed "pay-to-self" output.
	// This output has 2 main redemption clauses: either we can redeem the
	// output after a relative block delay, or the remote node can claim
	// the funds with the revocation key if we broadcast a revoked
	// commitment transaction.
	toLocalScript, err := input.CommitScriptToSelf(
		csvTimeout, keyRing.ToLocalKey, keyRing.RevocationKey,
	)
	if err != nil {
		return nil, err
	}
	localOutput, err := p2wshOutput(amountToSelf, toLocalScript)
	if err != nil {
		return nil, err
	}

	// Next, we create the script paying to them. This is just a regular
	// P2WPKH output, without any added CSV delay.
	remoteOutput, err := p2wpkhOutput(amountToThem, keyRing.ToRemoteKey)
	if err != nil {
		return nil, err
	}

	return []*wire.TxOut{localOutput, remoteOutput}, nil
}

// CreateHtlcCommitTx creates a commitment transaction that, in addition to
// the to_local and to_remote outputs of CreateCommitTx, carries one offered
// HTLC of htlcAmt locked to paymentHash160. The outputs are ordered
// to_local, to_remote, HTLC.
func CreateHtlcCommitTx(fundingOutput *wire.TxIn, keyRing *CommitmentKeyRing,
	csvTimeout uint32, paymentHash160 []byte, htlcAmt, amountToSelf,
	amountToThem btcutil.Amount) (*wire.MsgTx, error) {

	txOuts, err := commitOutputs(
		keyRing, csvTimeout, amountToSelf, amountToThem,
	)
	if err != nil {
		return nil, err
	}

	htlcScript, err := input.SenderHTLCScript(
		keyRing.LocalHtlcKey, keyRing.RemoteHtlcKey,
		keyRing.RevocationKey, paymentHash160,
	)
	if err != nil {
		return nil, err
	}
	htlcOutput, err := p2wshOutput(htlcAmt, htlcScript)
	if err != nil {
		return nil, err
	}

	return buildTx(
		2, 0, []*wire.TxIn{fundingOutput}, append(txOuts, htlcOutput),
	)
}

// CreateHtlcTimeoutTx creates a transaction that spends the HTLC output on the
// commitment transaction of the peer that created an HTLC (the sender). This
// transaction essentially acts as an off-chain covenant as it spends a 2-of-2
// multi-sig output. This output requires a signature from both the sender and
// receiver of the HTLC. By using a distinct transaction, we're able to
// uncouple the timeout and delay clauses of the HTLC contract. This
// transaction is locked with an absolute lock-time so the sender can only
// attempt to claim the output using it after the lock time has passed.
//
// In order to spend the HTLC output, the witness for the passed transaction
// should be:
//   - <0> <receiver sig> <sender sig> <0>
//
// NOTE: The passed amount for the HTLC should take into account the required
// fee rate at the time the HTLC was created. The fee should be able to
// entirely pay for this (tiny: 1-in 1-out) transaction.
func CreateHtlcTimeoutTx(htlcOutput *wire.TxIn, revocationKey,
	delayKey *btcec.PublicKey, csvDelay, cltvExpiry uint32,
	htlcAmt btcutil.Amount) (*wire.MsgTx, error) {

	// Next, we'll generate the script used as the output for all second
	// level HTLC which forces a covenant w.r.t what can be done with all
	// HTLC outputs.
	witnessScript, err := input.CommitScriptToSelf(
		csvDelay, delayKey, revocationKey,
	)
	if err != nil {
		return nil, err
	}
	txOut, err := p2wshOutput(htlcAmt, witnessScript)
	if err != nil {
		return nil, err
	}

	// Create a version two transaction (as the success version of this
	// spends an output with a CSV timeout), and set the lock-time to the
	// specified absolute lock-time in blocks.
	return buildTx(
		2, cltvExpiry, []*wire.TxIn{htlcOutput}, []*wire.TxOut{txOut},
	)
}

// CreateTimelockedTx creates a version 1 transaction with an absolute lock
// time of lockHeight. Its single output pays to the p2wsh of the CSV
// pay-to-pubkey-hash script of pubKey, which is returned alongside the
// transaction.
func CreateTimelockedTx(txIns []*wire.TxIn, pubKey *btcec.PublicKey,
	lockHeight, csvDelay uint32, amt btcutil.Amount) (*wire.MsgTx, []byte,
	error) {

	witnessScript, err := input.CsvP2PKHScript(pubKey, int64(csvDelay))
	if err != nil {
		return nil, nil, err
	}
	txOut, err := p2wshOutput(amt, witnessScript)
	if err != nil {
		return nil, nil, err
	}

	tx, err := buildTx(1, lockHeight, txIns, []*wire.TxOut{txOut})
	if err != nil {
		return nil, nil, err
	}

	return tx, witnessScript, nil
}

// CreateP2WPKHTx creates a transaction sending amt from txIn to the p2wkh of
// pubKey.
func CreateP2WPKHTx(txIn *wire.TxIn, pubKey *btcec.PublicKey,
	amt btcutil.Amount) (*wire.MsgTx, error) {

	txOut, err := p2wpkhOutput(amt, pubKey)
	if err != nil {
		return nil, err
	}

	return buildTx(2, 0, []*wire.TxIn{txIn}, []*wire.TxOut{txOut})
}

// FindSpend returns the transaction in block that spends outPoint, if any.
// A funding outpoint being spent means the channel was closed.
func FindSpend(block *wire.MsgBlock,
	outPoint wire.OutPoint) fn.Option[*wire.MsgTx] {

	for _, tx := range block.Transactions {
		for _, txIn := range tx.TxIn {
			if txIn.PreviousOutPoint == outPoint {
				return fn.Some(tx)
			}
		}
	}

	return fn.None[*wire.MsgTx]()
}

// SetStateNumHint encodes the current state number within the passed
// commitment transaction by re-purposing the locktime and sequence fields in
// the commitment transaction to encode the obfuscated state number.  The state
// number is encoded using 48 bits. The lower 24 bits of the lock time are the
// lower 24 bits of the obfuscated state number and the lower 24 bits of the
// sequence field are the higher 24 bits. Finally before encoding, the
// obfuscator is XOR'd against the state number in order to hide the exact
// state number from the PoV of outside parties.
func SetStateNumHint(commitTx *wire.MsgTx, stateNum uint64,
	obfuscator [StateHintSize]byte) error {

	// With the current schema we are only able to encode state num
	// hints up to 2^48. Therefore if the passed height is greater than our
	// state hint ceiling, then exit early.
	if stateNum > maxStateHint {
		return fmt.Errorf("unable to encode state, %v is greater "+
			"state num that max of %v", stateNum, maxStateHint)
	}

	if len(commitTx.TxIn) != 1 {
		return fmt.Errorf("commitment tx must have exactly 1 input, "+
			"instead has %v", len(commitTx.TxIn))
	}

	// Convert the obfuscator into a uint64, then XOR that against the
	// targeted height in order to obfuscate the state number of the
	// commitment transaction in the case that either commitment
	// transaction is broadcast directly on chain.
	var obfs [8]byte
	copy(obfs[2:], obfuscator[:])
	xorInt := binary.BigEndian.Uint64(obfs[:])

	stateNum = stateNum ^ xorInt

	// Set the height bit of the sequence number in order to disable any
	// sequence locks semantics.
	commitTx.TxIn[0].Sequence = uint32(stateNum>>24) |
		wire.SequenceLockTimeDisabled
	commitTx.LockTime = uint32(stateNum&0xFFFFFF) | TimelockShift

	return nil
}

// GetStateNumHint recovers the current state number given a commitment
// transaction which has previously had the state number encoded within it via
// setStateNumHint and a shared obfuscator.
//
// See setStateNumHint for further details w.r.t exactly how the state-hints
// are encoded. A transaction without inputs carries no hint and yields zero.
func GetStateNumHint(commitTx *wire.MsgTx,
	obfuscator [StateHintSize]byte) uint64 {

	if len(commitTx.TxIn) == 0 {
		return 0
	}

	// Convert the obfuscator into a uint64, this will be used to
	// de-obfuscate the final recovered state number.
	var obfs [8]byte
	copy(obfs[2:], obfuscator[:])
	xorInt := binary.BigEndian.Uint64(obfs[:])

	// Retrieve the state hint from the sequence number and locktime
	// of the transaction.
	stateNumXor := uint64(commitTx.TxIn[0].Sequence&0xFFFFFF) << 24
	stateNumXor |= uint64(commitTx.LockTime & 0xFFFFFF)

	// Finally, to obtain the final state number, we XOR by the obfuscator
	// value to de-obfuscate the final recovered state number.
	return stateNumXor ^ xorInt
}
