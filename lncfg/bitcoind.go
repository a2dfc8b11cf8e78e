package lncfg

import (
	"errors"
)

const (
	defaultRPCHost = "localhost"
)

// Bitcoind holds the configuration options for the connection to bitcoind.
//
//nolint:lll
type Bitcoind struct {
	RPCHost string `long:"rpchost" description:"The daemon's rpc listening address. If a port is omitted, then the default port for the selected chain parameters will be used."`
	RPCUser string `long:"rpcuser" description:"Username for RPC connections"`
	RPCPass string `long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
}

// DefaultBitcoind returns a default configuration for the bitcoind backend.
func DefaultBitcoind() *Bitcoind {
	return &Bitcoind{
		RPCHost: defaultRPCHost,
	}
}

// Validate checks the bitcoind options are complete.
func (b *Bitcoind) Validate() error {
	if b.RPCHost == "" {
		return errors.New("bitcoind.rpchost must be set")
	}

	if (b.RPCUser == "") != (b.RPCPass == "") {
		return errors.New("bitcoind.rpcuser and bitcoind.rpcpass " +
			"must be set together")
	}

	return nil
}
