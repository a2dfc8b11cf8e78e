package chainreg

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// BitcoinNetParams couples the p2p parameters of a network with the
// corresponding RPC port of a bitcoind node running on the particular
// network.
type BitcoinNetParams struct {
	*chaincfg.Params
	RPCPort string
}

// BitcoinMainNetParams contains parameters specific to the current Bitcoin
// mainnet.
var BitcoinMainNetParams = BitcoinNetParams{
	Params:  &chaincfg.MainNetParams,
	RPCPort: "8332",
}

// BitcoinTestNetParams contains parameters specific to the 3rd version of the
// test network.
var BitcoinTestNetParams = BitcoinNetParams{
	Params:  &chaincfg.TestNet3Params,
	RPCPort: "18332",
}

// BitcoinSigNetParams contains parameters specific to the default signet.
var BitcoinSigNetParams = BitcoinNetParams{
	Params:  &chaincfg.SigNetParams,
	RPCPort: "38332",
}

// BitcoinRegTestNetParams contains parameters specific to a local bitcoin
// regtest network.
var BitcoinRegTestNetParams = BitcoinNetParams{
	Params:  &chaincfg.RegressionNetParams,
	RPCPort: "18443",
}

// NetParamsForName returns the parameters of the named network. The names
// follow the ones bitcoind reports in getblockchaininfo, with "testnet" and
// "mainnet" accepted as aliases.
func NetParamsForName(name string) (*BitcoinNetParams, error) {
	switch name {
	case "main", "mainnet":
		return &BitcoinMainNetParams, nil

	case "test", "testnet", "testnet3":
		return &BitcoinTestNetParams, nil

	case "signet":
		return &BitcoinSigNetParams, nil

	case "regtest":
		return &BitcoinRegTestNetParams, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
}
