package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lightningnetwork/lncommit/build"
	"github.com/lightningnetwork/lncommit/lncfg"
	"github.com/lightningnetwork/lncommit/lnutils"
	"github.com/urfave/cli"
)

// configFlags are the global flags that are handed to lncfg.LoadConfig. Their
// names match the long option names of lncfg.Config so a set flag can be
// passed through verbatim.
var configFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "lncommitdir",
		Usage: "The path to lncommit's base directory.",
	},
	cli.StringFlag{
		Name:  "configfile",
		Usage: "The path to lncommit's configuration file.",
	},
	cli.StringFlag{
		Name:  "datadir",
		Usage: "The directory to store lncommit's data within.",
	},
	cli.StringFlag{
		Name:  "logdir",
		Usage: "The directory to write log files to.",
	},
	cli.StringFlag{
		Name: "network, n",
		Usage: "The network lncommit operates on " +
			"(mainnet, testnet, signet, regtest).",
	},
	cli.StringFlag{
		Name:  "debuglevel",
		Usage: "Logging level for all subsystems.",
	},
	cli.StringFlag{
		Name:  "seed",
		Usage: "The hex encoded 32 byte seed of the local node.",
	},
	cli.StringFlag{
		Name:  "chanindex",
		Usage: "The index of the channel whose keys are used.",
	},
	cli.StringFlag{
		Name:  "toselfdelay",
		Usage: "The relative delay in blocks of to_local outputs.",
	},
	cli.StringFlag{
		Name:  "bitcoind.rpchost",
		Usage: "The host:port of bitcoind's RPC server.",
	},
	cli.StringFlag{
		Name:  "bitcoind.rpcuser",
		Usage: "The username of bitcoind's RPC server.",
	},
	cli.StringFlag{
		Name:  "bitcoind.rpcpass",
		Usage: "The password of bitcoind's RPC server.",
	},
}

// appState is the per invocation state built in the Before hook.
type appState struct {
	cfg     *lncfg.Config
	rotator *build.RotatingLogWriter
}

const stateKey = "state"

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lncommit] %v\n", err)
	os.Exit(1)
}

// configArgs converts the set global flags into go-flags style arguments.
func configArgs(ctx *cli.Context) []string {
	var args []string
	for _, f := range configFlags {
		name := flagName(f)
		if !ctx.IsSet(name) {
			continue
		}

		args = append(
			args, fmt.Sprintf("--%s=%s", name, ctx.String(name)),
		)
	}

	return args
}

// flagName returns the long name of a flag, dropping any short alias.
func flagName(f cli.Flag) string {
	name, _, _ := strings.Cut(f.GetName(), ",")

	return strings.TrimSpace(name)
}

// loadState loads the configuration and sets up logging. It is the app's
// Before hook.
func loadState(ctx *cli.Context) error {
	cfg, err := lncfg.LoadConfig(configArgs(ctx))
	if err != nil {
		return err
	}

	rotator, err := setupLoggers(cfg)
	if err != nil {
		return err
	}

	ctx.App.Metadata[stateKey] = &appState{
		cfg:     cfg,
		rotator: rotator,
	}

	log.Debugf("lncommit version %v, %v deployment", build.Version(),
		build.Deployment)
	log.Debugf("Loaded config from %v: %v", cfg.ConfigFile,
		lnutils.NewLogClosure(func() string {
			return fmt.Sprintf("network=%v chanindex=%d "+
				"toselfdelay=%d", cfg.Network, cfg.ChannelIndex,
				cfg.ToSelfDelay)
		}))

	return nil
}

// closeState releases the log rotator. It is the app's After hook.
func closeState(ctx *cli.Context) error {
	state, ok := ctx.App.Metadata[stateKey].(*appState)
	if !ok {
		return nil
	}

	return state.rotator.Close()
}

// getConfig returns the configuration loaded by the Before hook.
func getConfig(ctx *cli.Context) *lncfg.Config {
	state, ok := ctx.App.Metadata[stateKey].(*appState)
	if !ok {
		fatal(fmt.Errorf("configuration not loaded"))
	}

	return state.cfg
}

// printJSON writes resp as indented JSON to the app's writer.
func printJSON(ctx *cli.Context, resp any) error {
	b, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return fmt.Errorf("unable to encode response: %w", err)
	}

	_, err = fmt.Fprintf(ctx.App.Writer, "%s\n", b)

	return err
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "lncommit"
	app.Version = build.Version()
	app.Usage = "build and sign lightning commitment transactions"
	app.Flags = configFlags
	app.Metadata = make(map[string]any)
	app.Before = loadState
	app.After = closeState
	app.Commands = []cli.Command{
		nodeKeysCommand,
		chanKeysCommand,
		secretCommand,
		revocationCommand,
		fundingCommand,
		refundCommand,
		commitCommand,
		htlcCommitCommand,
		htlcTimeoutCommand,
		spendFundingCommand,
		timelockedCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
