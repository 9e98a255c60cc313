package network

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Descriptor is the static description of a chain, as handed to a wallet's
// wallet_addEthereumChain.
type Descriptor struct {
	ChainID        uint64
	Name           string
	NativeCurrency Currency
	RPCURL         string
	ExplorerURL    string
}

var Primordial = Descriptor{
	ChainID: 1043,
	Name:    "BlockDAG Primordial Testnet",
	NativeCurrency: Currency{
		Name:     "BlockDAG",
		Symbol:   "BDAG",
		Decimals: 18,
	},
	RPCURL:      "https://rpc.primordial.bdagscan.com",
	ExplorerURL: "https://primordial.bdagscan.com",
}

// Localhost is a dev node (hardhat / anvil) for running the CLI locally.
var Localhost = Descriptor{
	ChainID: 31337,
	Name:    "Localhost",
	NativeCurrency: Currency{
		Name:     "BlockDAG",
		Symbol:   "BDAG",
		Decimals: 18,
	},
	RPCURL: "http://127.0.0.1:8545",
}

// Known lists every descriptor the policy can add to a wallet.
var Known = []Descriptor{Primordial, Localhost}

func Lookup(chainID uint64) (Descriptor, bool) {
	for _, d := range Known {
		if d.ChainID == chainID {
			return d, true
		}
	}
	return Descriptor{}, false
}

func (d Descriptor) HexChainID() string {
	return hexutil.EncodeUint64(d.ChainID)
}

// AddChainParams is the EIP-3085 parameter object for d.
func (d Descriptor) AddChainParams() map[string]any {
	params := map[string]any{
		"chainId":        d.HexChainID(),
		"chainName":      d.Name,
		"nativeCurrency": d.NativeCurrency,
		"rpcUrls":        []string{d.RPCURL},
	}
	if d.ExplorerURL != "" {
		params["blockExplorerUrls"] = []string{d.ExplorerURL}
	}
	return params
}

// TxURL links a transaction hash on the explorer, or "" without one.
func (d Descriptor) TxURL(hash string) string {
	if d.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", d.ExplorerURL, hash)
}
