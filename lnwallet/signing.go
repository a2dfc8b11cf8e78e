package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lncommit/input"
)

// SignFundingTx signs input idx of tx, which spends a funding output of amt
// locked to the 2-of-2 multisig of keyA and keyB, with both keys and attaches
// the resulting witness. The keys may be given in either order.
func SignFundingTx(tx *wire.MsgTx, idx int, amt btcutil.Amount, keyA,
	keyB *btcec.PrivateKey) error {

	pubA := keyA.PubKey().SerializeCompressed()
	pubB := keyB.PubKey().SerializeCompressed()

	witnessScript, err := input.GenMultiSigScript(pubA, pubB)
	if err != nil {
		return err
	}

	sigA, err := input.GenerateP2WSHSignature(
		tx, idx, witnessScript, int64(amt), txscript.SigHashAll, keyA,
	)
	if err != nil {
		return err
	}
	sigB, err := input.GenerateP2WSHSignature(
		tx, idx, witnessScript, int64(amt), txscript.SigHashAll, keyB,
	)
	if err != nil {
		return err
	}

	tx.TxIn[idx].Witness = input.SpendMultiSig(
		witnessScript, pubA, sigA, pubB, sigB,
	)

	walletLog.Debugf("Signed funding input %d of tx %v", idx, tx.TxHash())

	return nil
}

// ValidateSpend runs the script engine over input idx of tx against the
// output it claims to spend.
func ValidateSpend(tx *wire.MsgTx, idx int, prevOut *wire.TxOut) error {
	fetcher := txscript.NewCannedPrevOutputFetcher(
		prevOut.PkScript, prevOut.Value,
	)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	vm, err := txscript.NewEngine(
		prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags, nil,
		sigHashes, prevOut.Value, fetcher,
	)
	if err != nil {
		return fmt.Errorf("unable to create engine: %w", err)
	}

	if err := vm.Execute(); err != nil {
		return fmt.Errorf("input %d of tx %v is invalid: %w", idx,
			tx.TxHash(), err)
	}

	return nil
}
