package main

import (
	"os"

	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lncommit/build"
	"github.com/lightningnetwork/lncommit/chainreg"
	"github.com/lightningnetwork/lncommit/input"
	"github.com/lightningnetwork/lncommit/keychain"
	"github.com/lightningnetwork/lncommit/lncfg"
	"github.com/lightningnetwork/lncommit/lnwallet"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "LCMT"

// log is the logger of the command line tool. It is disabled until
// setupLoggers runs.
var log = btclog.Disabled

// setupLoggers creates the root handler described by cfg, hands a subsystem
// logger to every package and applies the configured debug levels. The
// returned rotator must be closed on exit.
func setupLoggers(cfg *lncfg.Config) (*build.RotatingLogWriter, error) {
	rotator := build.NewRotatingLogWriter()
	if !cfg.LogConfig.File.Disable {
		err := rotator.InitLogRotator(cfg.LogConfig.File, cfg.LogFile())
		if err != nil {
			return nil, err
		}
	}

	handler := build.NewDefaultLogHandler(
		cfg.LogConfig, os.Stderr, rotator,
	)
	mgr := build.NewSubLoggerManager(handler)

	log = build.NewSubLogger(Subsystem, mgr.GenSubLogger)
	addSubLogger(mgr, keychain.Subsystem, keychain.UseLogger)
	addSubLogger(mgr, input.Subsystem, input.UseLogger)
	addSubLogger(mgr, lnwallet.Subsystem, lnwallet.UseLogger)
	addSubLogger(mgr, chainreg.Subsystem, chainreg.UseLogger)

	err := build.ParseAndSetDebugLevels(cfg.DebugLevel, mgr)
	if err != nil {
		_ = rotator.Close()
		return nil, err
	}

	return rotator, nil
}

// addSubLogger creates a logger for the subsystem and hands it to the
// package's UseLogger.
func addSubLogger(mgr *build.SubLoggerManager, subsystem string,
	useLogger func(btclog.Logger)) {

	useLogger(build.NewSubLogger(subsystem, mgr.GenSubLogger))
}
