package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lncommit/chainreg"
	"github.com/lightningnetwork/lncommit/input"
	"github.com/lightningnetwork/lncommit/input/tweaks"
	"github.com/lightningnetwork/lncommit/keychain"
	"github.com/lightningnetwork/lncommit/lntypes"
	"github.com/lightningnetwork/lncommit/lnwallet"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/urfave/cli"
)

var (
	localAmtFlag = cli.Int64Flag{
		Name:  "local_amt",
		Usage: "the amount in satoshis paid to the local node",
	}

	remoteAmtFlag = cli.Int64Flag{
		Name:  "remote_amt",
		Usage: "the amount in satoshis paid to the remote node",
	}

	preimageFlag = cli.StringFlag{
		Name:  "preimage",
		Usage: "the hex encoded 32 byte payment preimage of the HTLC",
	}

	htlcAmtFlag = cli.Int64Flag{
		Name:  "htlc_amt",
		Usage: "the amount in satoshis of the HTLC output",
	}
)

// withFlags returns the funding flags followed by extra.
func withFlags(base []cli.Flag, extra ...cli.Flag) []cli.Flag {
	flags := make([]cli.Flag, 0, len(base)+len(extra))
	flags = append(flags, base...)

	return append(flags, extra...)
}

// signFunding signs input 0 of tx, which spends the channel's funding output
// of fundingAmt, with both funding keys and checks the result against the
// script engine.
func signFunding(c *channel, tx *wire.MsgTx,
	fundingAmt btcutil.Amount) error {

	_, fundingOut, err := input.GenFundingPkScript(
		c.local.FundingKey.PubKey().SerializeCompressed(),
		c.remote.FundingKey.PubKey().SerializeCompressed(),
		int64(fundingAmt),
	)
	if err != nil {
		return err
	}

	err = lnwallet.SignFundingTx(
		tx, 0, fundingAmt, c.local.FundingKey, c.remote.FundingKey,
	)
	if err != nil {
		return err
	}

	if err := lnwallet.ValidateSpend(tx, 0, fundingOut); err != nil {
		return fmt.Errorf("funding spend does not validate: %w", err)
	}

	return nil
}

// p2wpkhTxOut returns an output paying amt to the witness key hash of the
// given node key.
func p2wpkhTxOut(keyRing keychain.KeyRing, fam keychain.KeyFamily,
	amt btcutil.Amount) (*wire.TxOut, error) {

	desc, err := keyRing.DeriveKey(keychain.KeyLocator{Family: fam})
	if err != nil {
		return nil, err
	}

	// The address is only used to build the script so the network does
	// not matter.
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(desc.PubKey.SerializeCompressed()),
		chainreg.BitcoinRegTestNetParams.Params,
	)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	return wire.NewTxOut(int64(amt), pkScript), nil
}

var fundingCommand = cli.Command{
	Name:      "funding",
	Category:  "Transactions",
	Usage:     "Build an unsigned channel funding transaction.",
	ArgsUsage: "amt",
	Description: `
	Build the transaction that locks amt satoshis into the 2-of-2 funding
	output of the local and remote funding keys.

	The input is given with --utxo_txid, --utxo_vout and --utxo_amt. When
	none is given a confirmed output of at least amt plus --fee satoshis
	is taken from the bitcoind wallet. Anything above amt plus the fee is
	returned to the local node's coop close key.

	The funding input belongs to the wallet and is left unsigned.
	`,
	Flags: []cli.Flag{
		paramsFlag,
		remoteSeedFlag,
		feeFlag,
		cli.StringFlag{
			Name:  "utxo_txid",
			Usage: "the txid of the output to spend",
		},
		cli.UintFlag{
			Name:  "utxo_vout",
			Usage: "the index of the output to spend",
		},
		cli.Int64Flag{
			Name:  "utxo_amt",
			Usage: "the value in satoshis of the output to spend",
		},
	},
	Action: funding,
}

type fundingResponse struct {
	txResponse

	OutputIndex uint32 `json:"output_index"`
	Amount      int64  `json:"amount"`
}

// fundingUtxo returns the outpoint and value of the output to fund from.
func fundingUtxo(ctx *cli.Context, minAmt btcutil.Amount) (*wire.OutPoint,
	btcutil.Amount, error) {

	if ctx.IsSet("utxo_txid") {
		txIn, err := lnwallet.NewTxIn(
			ctx.String("utxo_txid"), uint32(ctx.Uint("utxo_vout")),
		)
		if err != nil {
			return nil, 0, err
		}

		return &txIn.PreviousOutPoint,
			btcutil.Amount(ctx.Int64("utxo_amt")), nil
	}

	var utxo *chainreg.SpendableOutput
	err := withBridge(ctx, func(ctxc context.Context,
		bridge chainreg.ChainBridge) error {

		var err error
		utxo, err = bridge.FetchSpendableOutpoint(ctxc, minAmt)

		return err
	})
	if err != nil {
		return nil, 0, err
	}

	return &utxo.OutPoint, utxo.Amount, nil
}

func funding(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "funding")
	}

	amtSat, err := strconv.ParseInt(ctx.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("unable to decode amt: %w", err)
	}
	amt := btcutil.Amount(amtSat)

	c, err := loadChannel(ctx, true)
	if err != nil {
		return err
	}

	fee := btcutil.Amount(ctx.Int64(feeFlag.Name))
	outPoint, utxoAmt, err := fundingUtxo(ctx, amt+fee)
	if err != nil {
		return err
	}
	if utxoAmt < amt+fee {
		return fmt.Errorf("output %v of %v cannot pay %v plus fee %v",
			outPoint, utxoAmt, amt, fee)
	}

	change := fn.None[*wire.TxOut]()
	if changeAmt := utxoAmt - amt - fee; changeAmt > 0 {
		changeOut, err := p2wpkhTxOut(
			c.localNode, keychain.KeyFamilyCoopClose, changeAmt,
		)
		if err != nil {
			return err
		}
		change = fn.Some(changeOut)
	}

	fundingTx, witnessScript, err := lnwallet.CreateFundingTx(
		[]*wire.TxIn{wire.NewTxIn(outPoint, nil, nil)},
		c.local.FundingKey.PubKey(), c.remote.FundingKey.PubKey(), amt,
		change,
	)
	if err != nil {
		return err
	}

	pkScript, err := input.WitnessScriptHash(witnessScript)
	if err != nil {
		return err
	}
	_, idx := input.FindScriptOutputIndex(fundingTx, pkScript)

	resp, err := newTxResponse(fundingTx)
	if err != nil {
		return err
	}
	resp.WitnessScript = hex.EncodeToString(witnessScript)

	return printJSON(ctx, &fundingResponse{
		txResponse:  *resp,
		OutputIndex: idx,
		Amount:      int64(amt),
	})
}

var refundCommand = cli.Command{
	Name:     "refund",
	Category: "Transactions",
	Usage:    "Build and sign a refund of the funding output.",
	Description: `
	Spend the funding output back to the payment basepoints of both
	parties. The transaction is signed with both funding keys.
	`,
	Flags: withFlags(
		fundingFlags, paramsFlag, remoteSeedFlag, localAmtFlag,
		remoteAmtFlag, broadcastFlag,
	),
	Action: refund,
}

func refund(ctx *cli.Context) error {
	c, err := loadChannel(ctx, true)
	if err != nil {
		return err
	}

	fundingIn, fundingAmt, err := fundingInput(ctx)
	if err != nil {
		return err
	}

	tx, err := lnwallet.CreateRefundTx(
		fundingIn, c.local.PaymentKey.PubKey(),
		c.remote.PaymentKey.PubKey(),
		btcutil.Amount(ctx.Int64(localAmtFlag.Name)),
		btcutil.Amount(ctx.Int64(remoteAmtFlag.Name)),
	)
	if err != nil {
		return err
	}

	if err := signFunding(c, tx, fundingAmt); err != nil {
		return err
	}

	resp, err := newTxResponse(tx)
	if err != nil {
		return err
	}

	return finishTx(ctx, tx, resp)
}

var commitCommand = cli.Command{
	Name:     "commit",
	Category: "Transactions",
	Usage:    "Build and sign a local commitment transaction.",
	Description: `
	Build local commitment --commitnum spending the funding output. The
	to_local output pays the local node after the configured toselfdelay
	or the remote node with the revocation key. The to_remote output pays
	the remote node at once.

	The commitment number is hidden in the locktime and sequence of the
	transaction. The transaction is signed with both funding keys.
	`,
	Flags: withFlags(
		fundingFlags, paramsFlag, remoteSeedFlag, commitNumFlag,
		localAmtFlag, remoteAmtFlag, broadcastFlag,
	),
	Action: commit,
}

// setStateHint encodes commitNum into tx using the channel's obfuscator.
func setStateHint(c *channel, tx *wire.MsgTx, commitNum uint64) error {
	obfuscator := lnwallet.DeriveStateHintObfuscator(
		c.local.PaymentKey.PubKey(), c.remote.PaymentKey.PubKey(),
	)

	return lnwallet.SetStateNumHint(tx, commitNum, obfuscator)
}

func commit(ctx *cli.Context) error {
	c, err := loadChannel(ctx, true)
	if err != nil {
		return err
	}

	fundingIn, fundingAmt, err := fundingInput(ctx)
	if err != nil {
		return err
	}

	commitNum := ctx.Uint64(commitNumFlag.Name)
	keyRing, err := c.keyRing(commitNum)
	if err != nil {
		return err
	}

	csvDelay := getConfig(ctx).ToSelfDelay
	tx, err := lnwallet.CreateCommitTx(
		fundingIn, keyRing, csvDelay,
		btcutil.Amount(ctx.Int64(localAmtFlag.Name)),
		btcutil.Amount(ctx.Int64(remoteAmtFlag.Name)),
	)
	if err != nil {
		return err
	}

	if err := setStateHint(c, tx, commitNum); err != nil {
		return err
	}
	if err := signFunding(c, tx, fundingAmt); err != nil {
		return err
	}

	toLocalScript, err := input.CommitScriptToSelf(
		csvDelay, keyRing.ToLocalKey, keyRing.RevocationKey,
	)
	if err != nil {
		return err
	}

	resp, err := newTxResponse(tx)
	if err != nil {
		return err
	}
	resp.WitnessScript = hex.EncodeToString(toLocalScript)
	resp.StateHint = &commitNum

	return finishTx(ctx, tx, resp)
}

var htlcCommitCommand = cli.Command{
	Name:     "htlccommit",
	Category: "Transactions",
	Usage:    "Build and sign a local commitment with an offered HTLC.",
	Description: `
	Build local commitment --commitnum like the commit command with a
	third output offering an HTLC of --htlc_amt to the remote node. The
	remote node claims it with the payment preimage, the local node
	reclaims it through an HTLC timeout transaction.
	`,
	Flags: withFlags(
		fundingFlags, paramsFlag, remoteSeedFlag, commitNumFlag,
		localAmtFlag, remoteAmtFlag, preimageFlag, htlcAmtFlag,
		broadcastFlag,
	),
	Action: htlcCommit,
}

// htlcScript returns the offered HTLC script of the key ring for the
// preimage given by --preimage.
func htlcScript(ctx *cli.Context,
	keyRing *lnwallet.CommitmentKeyRing) ([]byte, []byte, error) {

	preimage, err := lntypes.MakePreimageFromStr(
		ctx.String(preimageFlag.Name),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid preimage: %w", err)
	}
	paymentHash := preimage.Hash160()

	script, err := input.SenderHTLCScript(
		keyRing.LocalHtlcKey, keyRing.RemoteHtlcKey,
		keyRing.RevocationKey, paymentHash[:],
	)
	if err != nil {
		return nil, nil, err
	}

	return script, paymentHash[:], nil
}

func htlcCommit(ctx *cli.Context) error {
	c, err := loadChannel(ctx, true)
	if err != nil {
		return err
	}

	fundingIn, fundingAmt, err := fundingInput(ctx)
	if err != nil {
		return err
	}

	commitNum := ctx.Uint64(commitNumFlag.Name)
	keyRing, err := c.keyRing(commitNum)
	if err != nil {
		return err
	}

	witnessScript, paymentHash, err := htlcScript(ctx, keyRing)
	if err != nil {
		return err
	}

	tx, err := lnwallet.CreateHtlcCommitTx(
		fundingIn, keyRing, getConfig(ctx).ToSelfDelay, paymentHash,
		btcutil.Amount(ctx.Int64(htlcAmtFlag.Name)),
		btcutil.Amount(ctx.Int64(localAmtFlag.Name)),
		btcutil.Amount(ctx.Int64(remoteAmtFlag.Name)),
	)
	if err != nil {
		return err
	}

	if err := setStateHint(c, tx, commitNum); err != nil {
		return err
	}
	if err := signFunding(c, tx, fundingAmt); err != nil {
		return err
	}

	resp, err := newTxResponse(tx)
	if err != nil {
		return err
	}
	resp.WitnessScript = hex.EncodeToString(witnessScript)
	resp.StateHint = &commitNum

	return finishTx(ctx, tx, resp)
}

var htlcTimeoutCommand = cli.Command{
	Name:     "htlctimeout",
	Category: "Transactions",
	Usage:    "Build and sign the HTLC timeout transaction of a commitment.",
	Description: `
	Spend the offered HTLC output of local commitment --commitnum through
	its timeout path. The transaction can only confirm after
	--cltv_expiry and pays the HTLC back to the local node behind the
	configured toselfdelay, or to the remote node with the revocation key.
	Both HTLC keys sign the spend.
	`,
	Flags: []cli.Flag{
		paramsFlag,
		remoteSeedFlag,
		commitNumFlag,
		preimageFlag,
		htlcAmtFlag,
		feeFlag,
		broadcastFlag,
		cli.StringFlag{
			Name:  "commit_txid",
			Usage: "the txid of the commitment transaction",
		},
		cli.UintFlag{
			Name:  "htlc_vout",
			Usage: "the index of the HTLC output",
			Value: 2,
		},
		cli.UintFlag{
			Name:  "cltv_expiry",
			Usage: "the absolute expiry height of the HTLC",
		},
	},
	Action: htlcTimeout,
}

func htlcTimeout(ctx *cli.Context) error {
	c, err := loadChannel(ctx, true)
	if err != nil {
		return err
	}

	htlcIn, err := lnwallet.NewTxIn(
		ctx.String("commit_txid"), uint32(ctx.Uint("htlc_vout")),
	)
	if err != nil {
		return err
	}

	commitNum := ctx.Uint64(commitNumFlag.Name)
	keyRing, err := c.keyRing(commitNum)
	if err != nil {
		return err
	}

	witnessScript, _, err := htlcScript(ctx, keyRing)
	if err != nil {
		return err
	}
	htlcAmt := btcutil.Amount(ctx.Int64(htlcAmtFlag.Name))
	pkScript, err := input.WitnessScriptHash(witnessScript)
	if err != nil {
		return err
	}
	htlcOut := wire.NewTxOut(int64(htlcAmt), pkScript)

	cfg := getConfig(ctx)
	tx, err := lnwallet.CreateHtlcTimeoutTx(
		htlcIn, keyRing.RevocationKey, keyRing.ToLocalKey,
		cfg.ToSelfDelay, uint32(ctx.Uint("cltv_expiry")),
		htlcAmt-btcutil.Amount(ctx.Int64(feeFlag.Name)),
	)
	if err != nil {
		return err
	}

	// The remote node signs with its HTLC key tweaked by our commitment
	// point.
	remoteBase := c.remote.HtlcBaseKey
	remotePriv, err := tweaks.TweakPrivKey(
		remoteBase, tweaks.SingleTweakBytes(
			keyRing.CommitPoint, remoteBase.PubKey(),
		),
	)
	if err != nil {
		return err
	}
	remoteSig, err := input.GenerateP2WSHSignature(
		tx, 0, witnessScript, htlcOut.Value, txscript.SigHashAll,
		remotePriv,
	)
	if err != nil {
		return err
	}

	signDesc := &input.SignDescriptor{
		KeyDesc: keychain.KeyDescriptor{
			PubKey: c.local.HtlcBaseKey.PubKey(),
		},
		SingleTweak:   keyRing.LocalHtlcKeyTweak,
		WitnessScript: witnessScript,
		Output:        htlcOut,
		HashType:      txscript.SigHashAll,
	}
	signer := lnwallet.NewChannelSigner(c.local, c.localNode)

	witness, err := input.SenderHtlcSpendTimeout(
		remoteSig, signer, signDesc, tx,
	)
	if err != nil {
		return err
	}
	tx.TxIn[0].Witness = witness

	if err := lnwallet.ValidateSpend(tx, 0, htlcOut); err != nil {
		return fmt.Errorf("htlc timeout spend does not validate: %w",
			err)
	}

	resp, err := newTxResponse(tx)
	if err != nil {
		return err
	}
	resp.WitnessScript = hex.EncodeToString(witnessScript)

	return finishTx(ctx, tx, resp)
}

var spendFundingCommand = cli.Command{
	Name:     "spendfunding",
	Category: "Transactions",
	Usage:    "Spend the whole funding output to the local node.",
	Description: `
	Spend the funding output, less --fee, to the local payment basepoint.
	The transaction is signed with both funding keys.
	`,
	Flags: withFlags(
		fundingFlags, paramsFlag, remoteSeedFlag, feeFlag, broadcastFlag,
	),
	Action: spendFunding,
}

func spendFunding(ctx *cli.Context) error {
	c, err := loadChannel(ctx, true)
	if err != nil {
		return err
	}

	fundingIn, fundingAmt, err := fundingInput(ctx)
	if err != nil {
		return err
	}

	tx, err := lnwallet.CreateP2WPKHTx(
		fundingIn, c.local.PaymentKey.PubKey(),
		fundingAmt-btcutil.Amount(ctx.Int64(feeFlag.Name)),
	)
	if err != nil {
		return err
	}

	if err := signFunding(c, tx, fundingAmt); err != nil {
		return err
	}

	resp, err := newTxResponse(tx)
	if err != nil {
		return err
	}

	return finishTx(ctx, tx, resp)
}

var timelockedCommand = cli.Command{
	Name:     "timelocked",
	Category: "Transactions",
	Usage:    "Build an unsigned transaction to a time locked output.",
	Description: `
	Spend an output to a P2WSH wrapped P2PKH output of the local unilateral
	close key that can only be spent the configured toselfdelay blocks
	after it confirms. The transaction itself is final from --locktime on.
	`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "utxo_txid",
			Usage: "the txid of the output to spend",
		},
		cli.UintFlag{
			Name:  "utxo_vout",
			Usage: "the index of the output to spend",
		},
		cli.Int64Flag{
			Name:  "amt",
			Usage: "the amount in satoshis of the time locked output",
		},
		cli.UintFlag{
			Name:  "locktime",
			Usage: "the absolute lock time of the transaction",
		},
	},
	Action: timelocked,
}

func timelocked(ctx *cli.Context) error {
	if !ctx.IsSet("utxo_txid") {
		return errors.New("--utxo_txid must be set")
	}

	keyRing, err := loadNodeKeys(ctx)
	if err != nil {
		return err
	}
	desc, err := keyRing.DeriveKey(keychain.KeyLocator{
		Family: keychain.KeyFamilyUnilateralClose,
	})
	if err != nil {
		return err
	}

	txIn, err := lnwallet.NewTxIn(
		ctx.String("utxo_txid"), uint32(ctx.Uint("utxo_vout")),
	)
	if err != nil {
		return err
	}

	tx, witnessScript, err := lnwallet.CreateTimelockedTx(
		[]*wire.TxIn{txIn}, desc.PubKey, uint32(ctx.Uint("locktime")),
		getConfig(ctx).ToSelfDelay, btcutil.Amount(ctx.Int64("amt")),
	)
	if err != nil {
		return err
	}

	resp, err := newTxResponse(tx)
	if err != nil {
		return err
	}
	resp.WitnessScript = hex.EncodeToString(witnessScript)

	return printJSON(ctx, resp)
}
