package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/susu3304/dagsplit/internal/wallet"
)

var status = cli.Command{
	Name:   "status",
	Usage:  "show the wallet session, network and token balance",
	Action: statusAction,
}

var connect = cli.Command{
	Name:  "connect",
	Usage: "request account access from the wallet",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "wallet",
			Usage: "wallet to use: metamask, coinbase, brave, trust, rabby or default",
			Value: string(wallet.KindDefault),
		},
	},
	Action: connectAction,
}

var switchNetwork = cli.Command{
	Name:   "switch-network",
	Usage:  "switch the wallet to the target chain, adding it if needed",
	Action: switchNetworkAction,
}

var fee = cli.Command{
	Name:   "fee",
	Usage:  "show the platform fee in basis points",
	Action: feeAction,
}

var call = cli.Command{
	Name:      "call",
	Usage:     "run a read-only contract method",
	ArgsUsage: "<contract> <method> [args...]",
	Action:    callAction,
}

func statusAction(ctx *cli.Context) error {
	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return printJSON(c.service.Status(ctx.Context))
}

func connectAction(ctx *cli.Context) error {
	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := c.session.Connect(ctx.Context, wallet.ParseKind(ctx.String("wallet"))); err != nil {
		return err
	}
	return printJSON(c.service.Status(ctx.Context))
}

func switchNetworkAction(ctx *cli.Context) error {
	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := c.service.EnsureNetwork(ctx.Context); err != nil {
		return err
	}
	target := c.policy.Target()
	fmt.Printf("wallet is on %s (chain %d)\n", target.Name, target.ChainID)
	return nil
}

func feeAction(ctx *cli.Context) error {
	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	bp, err := c.gateway.PlatformFeeBP(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"platformFeeBP": bp.String()})
}

func callAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return fmt.Errorf("usage: call %s", ctx.Command.ArgsUsage)
	}
	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	args := make([]any, 0, ctx.NArg()-2)
	for _, a := range ctx.Args().Slice()[2:] {
		args = append(args, parseCallArg(a))
	}
	out, err := c.gateway.Call(ctx.Context, ctx.Args().Get(0), ctx.Args().Get(1), args...)
	if err != nil {
		return err
	}

	values := make([]string, 0, len(out))
	for _, v := range out {
		values = append(values, fmt.Sprint(v))
	}
	return printJSON(values)
}
