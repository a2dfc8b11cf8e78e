package lncfg

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lncommit/build"
)

const (
	// DefaultConfigFilename is the default configuration file name
	// lncommit tries to load.
	DefaultConfigFilename = "lncommit.conf"

	defaultDataDirname = "data"
	defaultLogDirname  = "logs"
	defaultLogFilename = "lncommit.log"
	defaultLogLevel    = "info"
	defaultNetwork     = "regtest"

	// DefaultToSelfDelay is the relative delay, in blocks, used for
	// to_local outputs when none is configured.
	DefaultToSelfDelay = 144

	// MaxToSelfDelay is the largest relative delay we accept. It mirrors
	// the limit lnd places on the remote's csv delay.
	MaxToSelfDelay = 2016
)

var (
	// DefaultLncommitDir is the default directory where lncommit keeps its
	// data and logs.
	DefaultLncommitDir = btcutil.AppDataDir("lncommit", false)

	// DefaultConfigFile is the default full path of lncommit's
	// configuration file.
	DefaultConfigFile = filepath.Join(
		DefaultLncommitDir, DefaultConfigFilename,
	)

	// ErrInvalidSeed is returned when the node seed is not 32 hex encoded
	// bytes.
	ErrInvalidSeed = errors.New("seed must be 32 hex encoded bytes")
)

// Config holds the options of the lncommit command line tool.
//
//nolint:lll
type Config struct {
	LncommitDir string `long:"lncommitdir" description:"The base directory that contains lncommit's data, logs, configuration file, etc."`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"The directory to store lncommit's data within"`
	LogDir      string `long:"logdir" description:"Directory to log output."`

	Network    string `long:"network" description:"The bitcoin network to operate on" choice:"mainnet" choice:"testnet" choice:"signet" choice:"regtest"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	Seed         string `long:"seed" description:"Hex encoded 32 byte seed the node keys are derived from"`
	ChannelIndex uint32 `long:"chanindex" description:"Index of the channel whose keys are used"`
	ToSelfDelay  uint32 `long:"toselfdelay" description:"Relative delay in blocks of to_local outputs"`

	Bitcoind *Bitcoind `group:"bitcoind" namespace:"bitcoind"`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		LncommitDir: DefaultLncommitDir,
		ConfigFile:  DefaultConfigFile,
		DataDir:     filepath.Join(DefaultLncommitDir, defaultDataDirname),
		LogDir:      filepath.Join(DefaultLncommitDir, defaultLogDirname),
		Network:     defaultNetwork,
		DebugLevel:  defaultLogLevel,
		ToSelfDelay: DefaultToSelfDelay,
		Bitcoind:    DefaultBitcoind(),
		LogConfig:   build.DefaultLogConfig(),
	}
}

// LoadConfig initializes and parses the config using a config file and the
// passed command line style arguments. The configuration proceeds as
// follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the arguments to special handle a specified config file
//  3. Load the configuration file, overwriting defaults with any specified
//     options
//  4. Parse the arguments again, overwriting the file options
//
// A missing configuration file is not an error.
func LoadConfig(args []string) (*Config, error) {
	// Pre-parse the arguments to pick up an alternative config file.
	preCfg := DefaultConfig()
	if _, err := newParser(&preCfg).ParseArgs(args); err != nil {
		return nil, err
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their lncommit dir, then we should assume they intend to
	// use the config file within it.
	configFileDir := CleanAndExpandPath(preCfg.LncommitDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultLncommitDir &&
		configFilePath == DefaultConfigFile {

		configFilePath = filepath.Join(
			configFileDir, DefaultConfigFilename,
		)
	}

	// Next, load any additional configuration options from the file.
	cfg := preCfg
	err := flags.NewIniParser(newParser(&cfg)).ParseFile(configFilePath)
	switch {
	case err == nil:

	// If it's a parsing related error, then we'll return immediately,
	// otherwise the config file likely doesn't exist which is OK.
	case errors.As(err, new(*flags.IniError)):
		return nil, err

	default:
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// Finally, parse the arguments again to ensure they take precedence.
	if _, err := newParser(&cfg).ParseArgs(args); err != nil {
		return nil, err
	}

	return ValidateConfig(cfg)
}

// newParser returns a go-flags parser over cfg that does not print or exit
// on its own.
func newParser(cfg *Config) *flags.Parser {
	return flags.NewParser(cfg, flags.PassDoubleDash)
}

// ValidateConfig checks the given configuration to be sane. All file system
// paths are normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config) (*Config, error) {
	// If the provided lncommit directory is not the default, we'll modify
	// the path to all of the files and directories that will live within
	// it, unless they were set explicitly.
	lncommitDir := CleanAndExpandPath(cfg.LncommitDir)
	if lncommitDir != DefaultLncommitDir {
		defaults := DefaultConfig()
		if cfg.DataDir == defaults.DataDir {
			cfg.DataDir = filepath.Join(
				lncommitDir, defaultDataDirname,
			)
		}
		if cfg.LogDir == defaults.LogDir {
			cfg.LogDir = filepath.Join(
				lncommitDir, defaultLogDirname,
			)
		}
	}

	cfg.LncommitDir = lncommitDir
	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = filepath.Join(
		CleanAndExpandPath(cfg.LogDir), NormalizeNetwork(cfg.Network),
	)

	if cfg.ToSelfDelay == 0 || cfg.ToSelfDelay > MaxToSelfDelay {
		return nil, fmt.Errorf("toselfdelay must be between 1 and "+
			"%d, got %d", MaxToSelfDelay, cfg.ToSelfDelay)
	}

	if cfg.ChannelIndex >= 1<<31 {
		return nil, fmt.Errorf("chanindex must be below 2^31, got %d",
			cfg.ChannelIndex)
	}

	if cfg.Seed != "" {
		if _, err := cfg.SeedBytes(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Bitcoind.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.LogConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return &cfg, nil
}

// SeedBytes decodes the configured node seed.
func (c *Config) SeedBytes() ([32]byte, error) {
	var seed [32]byte

	b, err := hex.DecodeString(c.Seed)
	if err != nil || len(b) != len(seed) {
		return seed, ErrInvalidSeed
	}
	copy(seed[:], b)

	return seed, nil
}

// LogFile returns the path of the log file within the log directory.
func (c *Config) LogFile() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// NormalizeNetwork returns the common name of a network type used to create
// file paths. This allows differently versioned networks to use the same path.
func NormalizeNetwork(network string) string {
	if strings.HasPrefix(network, "testnet") {
		return "testnet"
	}

	return network
}
