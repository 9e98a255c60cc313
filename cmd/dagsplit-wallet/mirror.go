package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/susu3304/dagsplit/internal/wallet"
)

var login = cli.Command{
	Name:   "login",
	Usage:  "sign in to the ledger mirror with the connected wallet",
	Action: loginAction,
}

var groups = cli.Command{
	Name:  "groups",
	Usage: "list the groups of the connected account from the ledger mirror",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "address",
			Usage: "list groups of this address instead",
		},
	},
	Action: groupsAction,
}

var plan = cli.Command{
	Name:  "plan",
	Usage: "show the transfers that would settle a group",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "group",
			Usage:    "group id",
			Required: true,
		},
	},
	Action: planAction,
}

func loginAction(ctx *cli.Context) error {
	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	info := c.session.Snapshot()
	if !info.IsConnected {
		return wallet.ErrNotConnected
	}
	token, err := c.mirror.SignIn(ctx.Context, info.Address, c.session)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func groupsAction(ctx *cli.Context) error {
	m := getMirrorClient(ctx)

	if addr := ctx.String("address"); addr != "" {
		if _, err := parseAddress("address", addr); err != nil {
			return err
		}
		list, err := m.ListGroups(ctx.Context, addr)
		if err != nil {
			return err
		}
		return printJSON(list)
	}

	if m.Token() != "" {
		list, err := m.MyGroups(ctx.Context)
		if err != nil {
			return err
		}
		return printJSON(list)
	}

	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	info := c.session.Snapshot()
	if !info.IsConnected {
		return wallet.ErrNotConnected
	}
	list, err := c.mirror.ListGroups(ctx.Context, info.Address)
	if err != nil {
		return err
	}
	return printJSON(list)
}

func planAction(ctx *cli.Context) error {
	transfers, err := getMirrorClient(ctx).Plan(ctx.Context, ctx.String("group"))
	if err != nil {
		return err
	}
	return printJSON(transfers)
}
