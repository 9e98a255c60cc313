package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/susu3304/dagsplit/internal/contracts"
	"github.com/susu3304/dagsplit/internal/mirror"
	"github.com/susu3304/dagsplit/internal/network"
	"github.com/susu3304/dagsplit/internal/split"
	"github.com/susu3304/dagsplit/internal/wallet"
)

// client bundles everything a command needs to talk to the wallet, the
// contracts and the ledger mirror.
type client struct {
	session *wallet.Session
	policy  *network.Policy
	gateway *contracts.Gateway
	mirror  *mirror.Client
	service *split.Service
}

// getClient dials the wallet endpoint and restores the session from the
// accounts it already exposes. Commands that must prompt call Connect on
// the returned session themselves.
func getClient(ctx *cli.Context) (*client, func(), error) {
	target, ok := network.Lookup(ctx.Uint64("chain-id"))
	if !ok {
		return nil, nil, fmt.Errorf("unsupported chain id %d", ctx.Uint64("chain-id"))
	}

	registry, err := contracts.LoadManifest(ctx.String("manifest"))
	if err != nil {
		return nil, nil, err
	}
	if registry.ChainID != 0 && registry.ChainID != target.ChainID {
		return nil, nil, fmt.Errorf(
			"deployment manifest is for chain %d, not %d", registry.ChainID, target.ChainID,
		)
	}

	provider, err := wallet.DialRPCProvider(ctx.Context, ctx.String("rpc"), wallet.Capabilities{})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { provider.Close() }

	session := wallet.NewSession(&wallet.Injected{Primary: provider})
	policy := network.NewPolicy(target)
	gateway := contracts.NewGateway(registry, session, policy, contracts.WithPollInterval(ctx.Duration("poll")))

	mirrorClient := getMirrorClient(ctx)
	var m split.Mirror
	if !ctx.Bool("no-mirror") {
		m = mirrorClient
	}

	if err := session.RestoreIfAuthorized(ctx.Context); err != nil {
		cleanup()
		return nil, nil, err
	}

	return &client{
		session: session,
		policy:  policy,
		gateway: gateway,
		mirror:  mirrorClient,
		service: split.New(session, policy, gateway, m),
	}, cleanup, nil
}

// getMirrorClient is all that read-only commands need: they never touch
// the wallet or the contracts.
func getMirrorClient(ctx *cli.Context) *mirror.Client {
	return mirror.New(ctx.String("mirror"), mirror.WithToken(ctx.String("token")))
}

func parseGroupID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid group id %q", s)
	}
	return id, nil
}

func parseAddress(flag, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s must be an address, got %q", flag, s)
	}
	return common.HexToAddress(s), nil
}

// parseToken treats an empty value as the native currency.
func parseToken(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return parseAddress("token", s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, split.ErrInvalidAmount
	}
	return amount, nil
}

// parseCallArg converts a command line argument into the Go value the ABI
// encoder expects: addresses, integers, booleans, anything else a string.
func parseCallArg(s string) any {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s)
	}
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
