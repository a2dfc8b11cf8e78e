package chainreg

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrNoSpendableOutput is returned when the node's wallet holds no
	// confirmed spendable output of at least the requested amount.
	ErrNoSpendableOutput = errors.New("no spendable output of the " +
		"requested amount")

	// ErrUnknownNetwork is returned for a network name with no known
	// parameters.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrInvalidTxid is returned for a wallet entry whose txid is not 64
	// hex characters.
	ErrInvalidTxid = errors.New("invalid txid")
)

// SpendableOutput is an unspent output of the node's wallet that can fund a
// transaction.
type SpendableOutput struct {
	// OutPoint locates the output.
	OutPoint wire.OutPoint

	// Amount is the value of the output.
	Amount btcutil.Amount

	// PkScript is the output script being spent.
	PkScript []byte

	// Address is the wallet address the output pays to.
	Address string

	// Confirmations is the depth of the output's transaction.
	Confirmations int64
}

// ChainBridge is the external node the transaction builders rely on to find
// funds and to publish what they built.
type ChainBridge interface {
	// FetchSpendableOutpoint returns a spendable wallet output worth at
	// least minAmount.
	FetchSpendableOutpoint(ctx context.Context,
		minAmount btcutil.Amount) (*SpendableOutput, error)

	// SubmitTransaction broadcasts tx and returns its txid.
	SubmitTransaction(ctx context.Context,
		tx *wire.MsgTx) (*chainhash.Hash, error)
}

// bitcoindClient is the subset of the bitcoind RPC API the bridge uses.
type bitcoindClient interface {
	ListUnspent() ([]btcjson.ListUnspentResult, error)

	SendRawTransaction(tx *wire.MsgTx,
		allowHighFees bool) (*chainhash.Hash, error)

	GetBlockChainInfo() (*btcjson.GetBlockChainInfoResult, error)

	RawRequest(method string, params []json.RawMessage) (json.RawMessage,
		error)

	Shutdown()
}

// Config houses the parameters needed to reach a bitcoind node.
type Config struct {
	// RPCHost is the host of the node. If it carries no port, the RPC port
	// of NetParams is used.
	RPCHost string

	// RPCUser is the RPC user name.
	RPCUser string

	// RPCPass is the RPC password.
	RPCPass string

	// NetParams is the network the node is expected to run on.
	NetParams *BitcoinNetParams
}

// BitcoindBridge is a ChainBridge backed by the JSON-RPC interface of a
// bitcoind node.
type BitcoindBridge struct {
	client    bitcoindClient
	netParams *BitcoinNetParams
}

// A compile time check to ensure BitcoindBridge meets the ChainBridge
// interface.
var _ ChainBridge = (*BitcoindBridge)(nil)

// rpcHost returns the host:port to dial, filling in the default RPC port of
// the network when the host has none.
func rpcHost(host string, params *BitcoinNetParams) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	return net.JoinHostPort(strings.Trim(host, "[]"), params.RPCPort)
}

// NewBitcoindBridge creates a bridge to the bitcoind node described by cfg.
// No connection is made until the first call.
func NewBitcoindBridge(cfg *Config) (*BitcoindBridge, error) {
	rpcConfig := &rpcclient.ConnConfig{
		Host:                 rpcHost(cfg.RPCHost, cfg.NetParams),
		User:                 cfg.RPCUser,
		Pass:                 cfg.RPCPass,
		DisableConnectOnNew:  true,
		DisableAutoReconnect: false,
		DisableTLS:           true,
		HTTPPostMode:         true,
	}

	client, err := rpcclient.New(rpcConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create bitcoind rpc "+
			"client: %w", err)
	}

	return newBitcoindBridge(client, cfg.NetParams), nil
}

// newBitcoindBridge wraps an existing client.
func newBitcoindBridge(client bitcoindClient,
	params *BitcoinNetParams) *BitcoindBridge {

	return &BitcoindBridge{
		client:    client,
		netParams: params,
	}
}

// callWithContext runs call, returning early with the context's error if ctx
// is done first. The call itself keeps running in the background and its
// result is dropped.
func callWithContext[T any](ctx context.Context,
	call func() (T, error)) (T, error) {

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	resultChan := make(chan result, 1)
	go func() {
		val, err := call()
		resultChan <- result{val: val, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.val, res.err

	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Start checks the node is reachable and running on the configured network.
func (b *BitcoindBridge) Start(ctx context.Context) error {
	info, err := callWithContext(ctx, b.client.GetBlockChainInfo)
	if err != nil {
		return fmt.Errorf("unable to query bitcoind: %w", err)
	}

	params, err := NetParamsForName(info.Chain)
	if err != nil {
		return err
	}
	if params.Net != b.netParams.Net {
		return fmt.Errorf("bitcoind is on %v, expected %v", info.Chain,
			b.netParams.Name)
	}

	version, err := callWithContext(ctx, b.nodeVersion)
	if err != nil {
		return fmt.Errorf("unable to query bitcoind version: %w", err)
	}

	log.InfoS(ctx, "Connected to bitcoind",
		"chain", info.Chain,
		"height", info.Blocks,
		btclog.Fmt("best_block", "%v", info.BestBlockHash),
		"version", version)

	return nil
}

// nodeVersion returns the version bitcoind reports in getnetworkinfo.
func (b *BitcoindBridge) nodeVersion() (int64, error) {
	resp, err := b.client.RawRequest("getnetworkinfo", nil)
	if err != nil {
		return 0, err
	}

	// Bitcoind returns a single value representing the semantic version:
	// 1000000 * CLIENT_VERSION_MAJOR + 10000 * CLIENT_VERSION_MINOR
	// + 100 * CLIENT_VERSION_REVISION + 1 * CLIENT_VERSION_BUILD
	info := struct {
		Version int64 `json:"version"`
	}{}
	if err := json.Unmarshal(resp, &info); err != nil {
		return 0, err
	}

	return info.Version, nil
}

// Stop shuts down the RPC client.
func (b *BitcoindBridge) Stop() {
	b.client.Shutdown()
}

// FetchSpendableOutpoint returns the first confirmed spendable output of the
// node's wallet that is worth at least minAmount.
//
// NOTE: This is part of the ChainBridge interface.
func (b *BitcoindBridge) FetchSpendableOutpoint(ctx context.Context,
	minAmount btcutil.Amount) (*SpendableOutput, error) {

	unspent, err := callWithContext(ctx, b.client.ListUnspent)
	if err != nil {
		return nil, fmt.Errorf("listunspent: %w", err)
	}

	utxo, err := selectOutput(unspent, minAmount)
	if err != nil {
		return nil, err
	}

	return utxo.UnwrapOrErr(fmt.Errorf("%w: need %v among %d outputs",
		ErrNoSpendableOutput, minAmount, len(unspent)))
}

// selectOutput picks the first spendable confirmed output worth at least
// minAmount.
func selectOutput(unspent []btcjson.ListUnspentResult,
	minAmount btcutil.Amount) (fn.Option[*SpendableOutput], error) {

	none := fn.None[*SpendableOutput]()

	for _, u := range unspent {
		if !u.Spendable || u.Confirmations < 1 {
			continue
		}

		amt, err := btcutil.NewAmount(u.Amount)
		if err != nil {
			return none, fmt.Errorf("invalid amount for %v:%d: %w",
				u.TxID, u.Vout, err)
		}
		if amt < minAmount {
			continue
		}

		// NewHashFromStr zero pads short strings.
		if len(u.TxID) != chainhash.MaxHashStringSize {
			return none, fmt.Errorf("%w %q: got %d characters",
				ErrInvalidTxid, u.TxID, len(u.TxID))
		}
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return none, fmt.Errorf("%w %q: %v", ErrInvalidTxid,
				u.TxID, err)
		}
		pkScript, err := hex.DecodeString(u.ScriptPubKey)
		if err != nil {
			return none, fmt.Errorf("invalid script for %v:%d: %w",
				u.TxID, u.Vout, err)
		}

		log.Debugf("Selected output %v:%d worth %v", u.TxID, u.Vout,
			amt)

		return fn.Some(&SpendableOutput{
			OutPoint:      *wire.NewOutPoint(hash, u.Vout),
			Amount:        amt,
			PkScript:      pkScript,
			Address:       u.Address,
			Confirmations: u.Confirmations,
		}), nil
	}

	return none, nil
}

// SubmitTransaction broadcasts tx through the node.
//
// NOTE: This is part of the ChainBridge interface.
func (b *BitcoindBridge) SubmitTransaction(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	txid, err := callWithContext(ctx, func() (*chainhash.Hash, error) {
		return b.client.SendRawTransaction(tx, false)
	})
	if err != nil {
		return nil, fmt.Errorf("unable to broadcast %v: %w",
			tx.TxHash(), err)
	}

	log.Infof("Broadcast transaction %v", txid)

	return txid, nil
}
