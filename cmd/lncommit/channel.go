package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lncommit/chainreg"
	"github.com/lightningnetwork/lncommit/keychain"
	"github.com/lightningnetwork/lncommit/lnutils"
	"github.com/lightningnetwork/lncommit/lnwallet"
	"github.com/urfave/cli"
)

const (
	// rpcTimeout bounds every exchange with the bitcoind node.
	rpcTimeout = 30 * time.Second

	// defaultFee is the absolute fee, in satoshis, taken from the input
	// of transactions whose output value is derived from their input.
	defaultFee = 1000
)

var (
	errMissingSeed = errors.New("the local node seed must be set with " +
		"--seed or in the config file")

	errMissingRemoteSeed = errors.New("--remote_seed must be set")
)

var (
	remoteSeedFlag = cli.StringFlag{
		Name: "remote_seed",
		Usage: "the hex encoded 32 byte seed of the remote node, used " +
			"to play the counterparty's side of the channel",
	}

	paramsFlag = cli.StringFlag{
		Name: "params",
		Usage: "the hex encoded 32 byte channel parameters mixed into " +
			"the channel keys of both parties",
		Value: hex.EncodeToString(make([]byte, 32)),
	}

	commitNumFlag = cli.Uint64Flag{
		Name:  "commitnum",
		Usage: "the commitment number",
	}

	broadcastFlag = cli.BoolFlag{
		Name:  "broadcast",
		Usage: "publish the transaction through bitcoind",
	}

	feeFlag = cli.Int64Flag{
		Name:  "fee",
		Usage: "the absolute fee in satoshis",
		Value: defaultFee,
	}

	fundingFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "funding_txid",
			Usage: "the txid of the channel's funding transaction",
		},
		cli.UintFlag{
			Name:  "funding_vout",
			Usage: "the index of the funding output",
		},
		cli.Int64Flag{
			Name:  "funding_amt",
			Usage: "the value of the funding output in satoshis",
		},
	}
)

// channel holds both sides of a channel between the local node and a
// simulated remote node.
type channel struct {
	localNode *keychain.NodeKeys

	local  *keychain.ChannelBaseKeys
	remote *keychain.ChannelBaseKeys
}

// decodeHex32 decodes a hex encoded 32 byte value.
func decodeHex32(name, s string) ([32]byte, error) {
	var out [32]byte

	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(out) {
		return out, fmt.Errorf("%s must be 32 hex encoded bytes", name)
	}
	copy(out[:], b)

	return out, nil
}

// loadNodeKeys derives the local node's keys from the configured seed.
func loadNodeKeys(ctx *cli.Context) (*keychain.NodeKeys, error) {
	cfg := getConfig(ctx)
	if cfg.Seed == "" {
		return nil, errMissingSeed
	}

	seed, err := cfg.SeedBytes()
	if err != nil {
		return nil, err
	}

	return keychain.NewNodeKeys(seed)
}

// loadChannel derives the keys of the configured channel. The remote side is
// only derived when --remote_seed is set, unless needRemote demands it.
func loadChannel(ctx *cli.Context, needRemote bool) (*channel, error) {
	cfg := getConfig(ctx)

	params, err := decodeHex32("params", ctx.String(paramsFlag.Name))
	if err != nil {
		return nil, err
	}

	localNode, err := loadNodeKeys(ctx)
	if err != nil {
		return nil, err
	}

	local, err := localNode.DeriveChannelKeys(params, cfg.ChannelIndex)
	if err != nil {
		return nil, err
	}

	c := &channel{
		localNode: localNode,
		local:     local,
	}

	if !ctx.IsSet(remoteSeedFlag.Name) {
		if needRemote {
			return nil, errMissingRemoteSeed
		}

		return c, nil
	}

	remoteSeed, err := decodeHex32(
		remoteSeedFlag.Name, ctx.String(remoteSeedFlag.Name),
	)
	if err != nil {
		return nil, err
	}

	remoteNode, err := keychain.NewNodeKeys(remoteSeed)
	if err != nil {
		return nil, err
	}

	c.remote, err = remoteNode.DeriveChannelKeys(params, cfg.ChannelIndex)
	if err != nil {
		return nil, err
	}

	log.DebugS(context.Background(), "Loaded channel",
		"chan_index", cfg.ChannelIndex,
		lnutils.LogPubKey("local_funding", local.FundingKey.PubKey()),
		lnutils.LogPubKey("remote_funding", c.remote.FundingKey.PubKey()))

	return c, nil
}

// keyRing derives the key ring of commitment commitNum of the local node.
func (c *channel) keyRing(
	commitNum uint64) (*lnwallet.CommitmentKeyRing, error) {

	commitPoint, err := c.local.PerCommitmentPoint(commitNum)
	if err != nil {
		return nil, err
	}

	return lnwallet.DeriveCommitmentKeys(
		commitPoint, true, c.local.Basepoints(), c.remote.Basepoints(),
	)
}

// fundingInput returns an input spending the funding output named by the
// funding flags, together with the output's value.
func fundingInput(ctx *cli.Context) (*wire.TxIn, btcutil.Amount, error) {
	if !ctx.IsSet("funding_txid") || !ctx.IsSet("funding_amt") {
		return nil, 0, errors.New("--funding_txid and --funding_amt " +
			"must be set")
	}

	txIn, err := lnwallet.NewTxIn(
		ctx.String("funding_txid"), uint32(ctx.Uint("funding_vout")),
	)
	if err != nil {
		return nil, 0, err
	}

	amt := btcutil.Amount(ctx.Int64("funding_amt"))
	if amt <= 0 {
		return nil, 0, fmt.Errorf("%w: funding amount %v",
			lnwallet.ErrInvalidAmount, amt)
	}

	return txIn, amt, nil
}

// txResponse is the JSON form of a built transaction.
type txResponse struct {
	Txid          string  `json:"txid"`
	RawTx         string  `json:"raw_tx"`
	WitnessScript string  `json:"witness_script,omitempty"`
	StateHint     *uint64 `json:"state_hint,omitempty"`
	Broadcast     bool    `json:"broadcast"`
}

// newTxResponse serializes tx.
func newTxResponse(tx *wire.MsgTx) (*txResponse, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}

	return &txResponse{
		Txid:  tx.TxHash().String(),
		RawTx: hex.EncodeToString(buf.Bytes()),
	}, nil
}

// finishTx broadcasts tx if asked to and prints resp.
func finishTx(ctx *cli.Context, tx *wire.MsgTx, resp *txResponse) error {
	if ctx.Bool(broadcastFlag.Name) {
		err := withBridge(ctx, func(ctxc context.Context,
			bridge chainreg.ChainBridge) error {

			_, err := bridge.SubmitTransaction(ctxc, tx)
			return err
		})
		if err != nil {
			return err
		}

		resp.Broadcast = true
	}

	return printJSON(ctx, resp)
}

// withBridge connects to the configured bitcoind node and runs f against
// it.
func withBridge(ctx *cli.Context, f func(context.Context,
	chainreg.ChainBridge) error) error {

	cfg := getConfig(ctx)

	params, err := chainreg.NetParamsForName(cfg.Network)
	if err != nil {
		return err
	}

	bridge, err := chainreg.NewBitcoindBridge(&chainreg.Config{
		RPCHost:   cfg.Bitcoind.RPCHost,
		RPCUser:   cfg.Bitcoind.RPCUser,
		RPCPass:   cfg.Bitcoind.RPCPass,
		NetParams: params,
	})
	if err != nil {
		return err
	}
	defer bridge.Stop()

	ctxc, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	if err := bridge.Start(ctxc); err != nil {
		return err
	}

	return f(ctxc, bridge)
}
