package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-chain-ops/devkeys"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-localnet/flags"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-localnet/localnet"
	hlservice "github.com/hyperlane-xyz/hyperlane-localnet/hl-service"
	hllog "github.com/hyperlane-xyz/hyperlane-localnet/hl-service/log"
)

var (
	Version   = "v0.0.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	hllog.SetupDefaults()

	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Version = hlservice.FormatVersion(Version, GitCommit, GitDate, "")
	app.Name = "hl-localnet"
	app.Usage = "Local hyperlane test network"
	app.Description = "Runs injective chains with the cw-hyperlane contracts and the hyperlane agents, " +
		"sends a message between every pair of chains and waits for their delivery"
	app.Action = localnet.Main(Version)
	app.Commands = []*cli.Command{
		{
			Name:  "keys",
			Usage: "Print the built-in dev keyring",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "Output format: toml or yaml",
					Value: string(devkeys.FormatTOML),
				},
				&cli.BoolFlag{
					Name:  "addresses",
					Usage: "Print the derived addresses instead of the keyring",
				},
			},
			Action: printKeys,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func printKeys(ctx *cli.Context) error {
	keys := devkeys.TestKeyring()
	if !ctx.Bool("addresses") {
		return keys.Encode(ctx.App.Writer, devkeys.Format(ctx.String("format")))
	}
	roles := map[string]string{
		keys.Deployer:  "deployer",
		keys.Validator: "validator",
		keys.Relayer:   "relayer",
	}
	if keys.Linker != keys.Deployer {
		roles[keys.Linker] = "linker"
	} else {
		roles[keys.Linker] = "deployer, linker"
	}
	table := tablewriter.NewWriter(ctx.App.Writer)
	table.SetHeader([]string{"Key", "Role", "Account", "Address"})
	for _, k := range keys.Keys {
		addr, err := keys.Address(k.Name)
		if err != nil {
			return fmt.Errorf("key %s: %w", k.Name, err)
		}
		table.Append([]string{k.Name, roles[k.Name], devkeys.AccountAddress(addr), addr.Hex()})
	}
	table.Render()
	return nil
}
