package main

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/susu3304/dagsplit/internal/split"
)

var createGroup = cli.Command{
	Name:  "create-group",
	Usage: "create an expense group on chain",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "name",
			Usage:    "group name",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "member",
			Usage: "member address, repeatable; the sender is always a member",
		},
	},
	Action: createGroupAction,
}

var addExpense = cli.Command{
	Name:  "add-expense",
	Usage: "record an expense paid by the connected account",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "group",
			Usage:    "on-chain group id",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "amount",
			Usage:    "amount in whole units, e.g. 1.5",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "ERC-20 token address; empty for the native currency",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "what the expense was for",
		},
	},
	Action: addExpenseAction,
}

var settle = cli.Command{
	Name:  "settle",
	Usage: "pay back a group member",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "group",
			Usage:    "on-chain group id",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "creditor",
			Usage:    "address being paid",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "amount",
			Usage:    "amount in whole units",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "ERC-20 token address; empty for the native currency",
		},
	},
	Action: settleAction,
}

// writeResult is what the write commands print.
type writeResult struct {
	GroupID     string `json:"groupId,omitempty"`
	TxHash      string `json:"txHash"`
	Mirrored    bool   `json:"mirrored"`
	MirrorError string `json:"mirrorError,omitempty"`
}

func newWriteResult(txHash common.Hash, mirrored bool, mirrorErr error) writeResult {
	res := writeResult{TxHash: txHash.Hex(), Mirrored: mirrored && mirrorErr == nil}
	if mirrorErr != nil {
		res.MirrorError = mirrorErr.Error()
	}
	return res
}

func createGroupAction(ctx *cli.Context) error {
	members := make([]common.Address, 0, len(ctx.StringSlice("member")))
	for _, m := range ctx.StringSlice("member") {
		addr, err := parseAddress("member", m)
		if err != nil {
			return err
		}
		members = append(members, addr)
	}

	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := c.service.CreateGroup(ctx.Context, ctx.String("name"), members)
	if err != nil {
		return err
	}
	out := newWriteResult(res.Receipt.TxHash, res.Group != nil, res.MirrorErr)
	if res.GroupID != nil {
		out.GroupID = res.GroupID.String()
	}
	return printJSON(out)
}

func addExpenseAction(ctx *cli.Context) error {
	groupID, err := parseGroupID(ctx.String("group"))
	if err != nil {
		return err
	}
	amount, err := parseAmount(ctx.String("amount"))
	if err != nil {
		return err
	}
	token, err := parseToken(ctx.String("token"))
	if err != nil {
		return err
	}

	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := c.service.AddExpense(ctx.Context, split.ExpenseInput{
		GroupID:     groupID,
		Amount:      amount,
		Token:       token,
		Description: ctx.String("description"),
	})
	if err != nil {
		return err
	}
	out := newWriteResult(res.Receipt.TxHash, res.Expense != nil, res.MirrorErr)
	out.GroupID = groupID.String()
	return printJSON(out)
}

func settleAction(ctx *cli.Context) error {
	groupID, err := parseGroupID(ctx.String("group"))
	if err != nil {
		return err
	}
	creditor, err := parseAddress("creditor", ctx.String("creditor"))
	if err != nil {
		return err
	}
	amount, err := parseAmount(ctx.String("amount"))
	if err != nil {
		return err
	}
	token, err := parseToken(ctx.String("token"))
	if err != nil {
		return err
	}

	c, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := c.service.SettleDebt(ctx.Context, split.SettleInput{
		GroupID:  groupID,
		Creditor: creditor,
		Amount:   amount,
		Token:    token,
	})
	if err != nil {
		return err
	}
	out := newWriteResult(res.Receipt.TxHash, res.Settlement != nil, res.MirrorErr)
	out.GroupID = groupID.String()
	return printJSON(out)
}
