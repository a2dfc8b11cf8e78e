package input

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Signature is an interface for objects that can populate signatures during
// witness construction.
type Signature interface {
	// Serialize returns a DER-encoded ECDSA signature.
	Serialize() []byte

	// Verify return true if the ECDSA signature is valid for the passed
	// message digest under the provided public key.
	Verify([]byte, *btcec.PublicKey) bool
}

// Signer represents an abstract object capable of generating raw signatures as
// well as full complete input scripts given a valid SignDescriptor and
// transaction. This interface fully abstracts away signing paving the way for
// Signer implementations such as hardware wallets, hardware tokens, HSM's, or
// simply a regular wallet.
type Signer interface {
	// SignOutputRaw generates a signature for the passed transaction
	// according to the data within the passed SignDescriptor.
	//
	// NOTE: The resulting signature should be void of a sighash byte.
	SignOutputRaw(tx *wire.MsgTx, signDesc *SignDescriptor) (Signature,
		error)

	// ComputeInputScript generates a complete InputIndex for the passed
	// transaction with the signature as defined within the passed
	// SignDescriptor. This method should be capable of generating the
	// proper input script for both regular p2wkh outputs and p2wkh
	// outputs nested within a regular p2sh output.
	//
	// NOTE: This method will ignore any tweak parameters set within the
	// passed SignDescriptor as it assumes a set of typical script
	// templates (p2wkh, np2wkh, etc).
	ComputeInputScript(tx *wire.MsgTx, signDesc *SignDescriptor) (*Script,
		error)
}

// Script represents any script inputs required to redeem a previous
// output. This struct is used rather than just a witness, or scripSig in order
// to accommodate nested p2sh which utilizes both types of input scripts.
type Script struct {
	// Witness is the full witness stack required to unlock this output.
	Witness wire.TxWitness

	// SigScript will only be populated if this is an input script sweeping
	// a nested p2sh output.
	SigScript []byte
}

// GenerateP2WSHSignature signs input idx of tx, which spends a p2wsh output of
// amt satoshis locked to witnessScript. The returned signature is DER encoded
// and ends with the sighash byte, ready to be placed on a witness stack. The
// signature is deterministic (RFC6979).
func GenerateP2WSHSignature(tx *wire.MsgTx, idx int, witnessScript []byte,
	amt int64, hashType txscript.SigHashType,
	privKey *btcec.PrivateKey) ([]byte, error) {

	if idx < 0 || idx >= len(tx.TxIn) {
		return nil, fmt.Errorf("input index %d out of range, tx has "+
			"%d inputs", idx, len(tx.TxIn))
	}

	pkScript, err := WitnessScriptHash(witnessScript)
	if err != nil {
		return nil, err
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, amt)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	sig, err := txscript.RawTxInWitnessSignature(
		tx, sigHashes, idx, amt, witnessScript, hashType, privKey,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to sign input %d: %w", idx, err)
	}

	log.Tracef("Signed p2wsh input %d of tx %v", idx, tx.TxHash())

	return sig, nil
}

// signRaw produces a bare ECDSA signature over the BIP143 sighash of the
// descriptor's input using privKey, which must already carry any tweak.
func signRaw(tx *wire.MsgTx, signDesc *SignDescriptor,
	privKey *btcec.PrivateKey) (Signature, error) {

	if err := signDesc.Validate(); err != nil {
		return nil, err
	}

	sig, err := txscript.RawTxInWitnessSignature(
		tx, signDesc.TxSigHashes(tx), signDesc.InputIndex,
		signDesc.Output.Value, signDesc.WitnessScript,
		signDesc.HashType, privKey,
	)
	if err != nil {
		return nil, err
	}

	// Chop off the sighash flag at the end of the signature.
	return ecdsa.ParseDERSignature(sig[:len(sig)-1])
}
