package types

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network identifies the Bitcoin network all wallet operations apply to.
type Network struct {
	Name string
	Addr string
}

var (
	Bitcoin = Network{
		Name: "bitcoin",
		Addr: chaincfg.MainNetParams.Bech32HRPSegwit,
	}
	BitcoinTestNet = Network{
		Name: "testnet",
		Addr: chaincfg.TestNet3Params.Bech32HRPSegwit,
	}
	BitcoinSigNet = Network{
		Name: "signet",
		Addr: chaincfg.SigNetParams.Bech32HRPSegwit,
	}
	BitcoinRegTest = Network{
		Name: "regtest",
		Addr: chaincfg.RegressionNetParams.Bech32HRPSegwit,
	}
)

var defaultExplorerUrls = map[string]string{
	Bitcoin.Name:        "https://mempool.space/api",
	BitcoinTestNet.Name: "https://mempool.space/testnet/api",
	BitcoinSigNet.Name:  "https://mempool.space/signet/api",
	BitcoinRegTest.Name: "http://localhost:3000",
}

func NetworkFromString(net string) Network {
	switch net {
	case BitcoinTestNet.Name:
		return BitcoinTestNet
	case BitcoinSigNet.Name:
		return BitcoinSigNet
	case BitcoinRegTest.Name:
		return BitcoinRegTest
	case Bitcoin.Name:
		fallthrough
	default:
		return Bitcoin
	}
}

// ChainParams maps the network to the btcd chain parameters.
func (n Network) ChainParams() *chaincfg.Params {
	switch n.Name {
	case BitcoinTestNet.Name:
		return &chaincfg.TestNet3Params
	case BitcoinSigNet.Name:
		return &chaincfg.SigNetParams
	case BitcoinRegTest.Name:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// DefaultExplorerURL returns the default esplora endpoint for the network.
func (n Network) DefaultExplorerURL() (string, error) {
	url, ok := defaultExplorerUrls[n.Name]
	if !ok {
		return "", fmt.Errorf(
			"cannot find default explorer url associated with network %s", n.Name,
		)
	}
	return url, nil
}
