package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/susu3304/dagsplit/internal/config"
	"github.com/susu3304/dagsplit/internal/split"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	log.SetLevel(cfg.LogLevel)

	app := cli.NewApp()
	app.Name = "dagsplit-wallet"
	app.Usage = "Split group expenses on BlockDAG from the command line"
	app.Flags = globalFlags(cfg)
	app.Commands = append(
		app.Commands,
		&status,
		&connect,
		&switchNetwork,
		&fee,
		&call,
		&createGroup,
		&addExpense,
		&settle,
		&login,
		&groups,
		&plan,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func globalFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "rpc",
			Usage: "JSON-RPC endpoint of the wallet or signer",
			Value: cfg.RPCURL,
		},
		&cli.Uint64Flag{
			Name:  "chain-id",
			Usage: "chain the contracts are deployed on",
			Value: cfg.TargetChainID,
		},
		&cli.StringFlag{
			Name:  "manifest",
			Usage: "deployment manifest with the contract addresses",
			Value: cfg.DeploymentManifest,
		},
		&cli.DurationFlag{
			Name:  "poll",
			Usage: "receipt polling interval",
			Value: cfg.TxPollInterval,
		},
		&cli.StringFlag{
			Name:  "mirror",
			Usage: "base URL of the ledger mirror API",
			Value: cfg.MirrorURL,
		},
		&cli.BoolFlag{
			Name:  "no-mirror",
			Usage: "do not record writes in the ledger mirror",
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "mirror access token from `login`",
			EnvVars: []string{"DAGSPLIT_TOKEN"},
		},
	}
}

func fatal(err error) {
	msg, remediate := split.Message(err)
	fmt.Fprintf(os.Stderr, "[dagsplit-wallet] %s\n", msg)
	if remediate {
		fmt.Fprintln(os.Stderr, "[dagsplit-wallet] run `dagsplit-wallet switch-network` and try again")
	}
	os.Exit(1)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
