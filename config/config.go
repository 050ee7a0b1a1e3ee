// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2017-2023 The Spacemesh developers

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/powsim/nodesim/logging"
	"github.com/powsim/nodesim/node"
	"github.com/powsim/nodesim/round"
)

// Commands.
const (
	CommandRun    = "run"
	CommandKeygen = "keygen"
)

const (
	defaultDbDirName      = "db"
	defaultLogDirname     = "logs"
	defaultKeysFilename   = "nodes.keys"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	defaultProxy = "http://127.0.0.1:4202/api"
	defaultNodes = 10
)

var ErrInvalidConfig = errors.New("invalid config")

// Config defines the configuration options of the simulator.
//
// Values are loaded from defaults, then the command line, then the ini
// config file and finally the command line again.
type Config struct {
	SimDir         string  `long:"simdir"         description:"The base directory that contains the simulator's data, logs and keys"`
	ConfigFile     string  `long:"configfile"     description:"Path to configuration file"                                      short:"c"`
	DbDir          string  `long:"dbdir"          description:"The directory to store the block counter DB within"`
	LogDir         string  `long:"logdir"         description:"Directory to log output."`
	DebugLog       bool    `long:"debuglog"       description:"Enable debug logs"`
	JSONLog        bool    `long:"jsonlog"        description:"Whether to log in JSON format"`
	MaxLogFiles    int     `long:"maxlogfiles"    description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int     `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	MetricsPort    *uint16 `long:"metrics-port"   description:"The port to expose metrics"`

	Proxy    string `long:"proxy" description:"JSON-RPC endpoint of the proxy" ini-name:"proxy_server" short:"p"`
	Nodes    int    `long:"nodes" description:"Number of nodes to run"         ini-name:"nodes"        short:"n"`
	KeysFile string `long:"keys"  description:"File with the node keys"       ini-name:"keys_file"    short:"k"`

	Round RoundConfig `group:"Round"`
	Node  NodeConfig  `group:"Node"`
	RPC   RPCConfig   `group:"RPC"`

	// Command is the command selected on the command line.
	Command string `no-flag:"true"`
}

type RoundConfig struct {
	PowWindow    Seconds `long:"pow"         description:"Seconds of the PoW window"                     ini-name:"pow_window"`
	EpochTime    Seconds `long:"epoch"       description:"Seconds between two rounds"                    ini-name:"epoch_time"`
	StartBlock   uint64  `long:"start-block" description:"Block to start from when none was persisted"   ini-name:"start_block"`
	Block        int64   `long:"block"       description:"Block to start from, -1 resumes from the DB"   short:"B"`
	ResumeGap    uint64  `long:"resume-gap"  description:"Blocks skipped when resuming from the DB"`
	JitterMin    Seconds `long:"jitter-min"  description:"Minimum delay before a node starts its round"`
	JitterMax    Seconds `long:"jitter-max"  description:"Maximum delay before a node starts its round"`
	Difficulty   uint8   `long:"diff"        description:"Shard difficulty"                              ini-name:"difficulty"    short:"d"`
	DSDifficulty uint8   `long:"ds-diff"     description:"DS difficulty"                                 ini-name:"ds_difficulty"`
}

type NodeConfig struct {
	RequestRetries  uint    `long:"request-retries" description:"Attempts to submit a work"`
	RequestDelay    Seconds `long:"request-delay"   description:"Delay between work submissions"`
	WaitBeforeCheck Seconds `long:"check-wait"      description:"Pause before polling for the result"`
	CheckRetries    uint    `long:"check-retries"   description:"Attempts to poll for the result, spread over the PoW window"`
	VerifyRetries   uint    `long:"verify-retries"  description:"Attempts to submit the verification"`
	VerifyDelay     Seconds `long:"verify-delay"    description:"Delay between verification submissions"`

	DividedDifficulty bool `long:"divided-difficulty" description:"Use the divided difficulty boundaries of the proxy" ini-name:"divided_difficulty"`

	MethodSubmitWork         string `long:"method-submit-work"         description:"RPC method to submit a work"`
	MethodPollStatus         string `long:"method-poll-status"         description:"RPC method to poll for the result"`
	MethodSubmitVerification string `long:"method-submit-verification" description:"RPC method to submit the verification"`
}

type RPCConfig struct {
	Timeout          Seconds `long:"rpc-timeout"  description:"Timeout of a single HTTP request"`
	TransportRetries int     `long:"rpc-retries"  description:"HTTP level retries on connection errors and 5xx responses"`
}

// Seconds is a duration given either as a number of seconds or as a
// duration string such as "1m30s".
type Seconds time.Duration

// UnmarshalFlag implements flags.Unmarshaler.
func (s *Seconds) UnmarshalFlag(value string) error {
	if n, err := strconv.ParseUint(value, 10, 32); err == nil {
		*s = Seconds(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*s = Seconds(d)
	return nil
}

// MarshalFlag implements flags.Marshaler.
func (s Seconds) MarshalFlag() (string, error) {
	return time.Duration(s).String(), nil
}

func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	simDir := "./nodesim"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		simDir = filepath.Join(cacheDir, "nodesim")
	}

	roundCfg := round.DefaultConfig()
	nodeCfg := node.DefaultConfig()
	return &Config{
		SimDir:         simDir,
		DbDir:          filepath.Join(simDir, defaultDbDirName),
		LogDir:         filepath.Join(simDir, defaultLogDirname),
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		Proxy:          defaultProxy,
		Nodes:          defaultNodes,
		KeysFile:       filepath.Join(simDir, defaultKeysFilename),
		Round: RoundConfig{
			PowWindow:    Seconds(roundCfg.PowWindow),
			EpochTime:    Seconds(roundCfg.EpochTime),
			StartBlock:   roundCfg.StartBlock,
			Block:        roundCfg.Block,
			ResumeGap:    roundCfg.ResumeGap,
			JitterMin:    Seconds(roundCfg.JitterMin),
			JitterMax:    Seconds(roundCfg.JitterMax),
			Difficulty:   roundCfg.ShardDifficulty,
			DSDifficulty: roundCfg.DSDifficulty,
		},
		Node: NodeConfig{
			RequestRetries:           nodeCfg.Request.MaxRetries,
			RequestDelay:             Seconds(2 * time.Second),
			WaitBeforeCheck:          Seconds(nodeCfg.WaitBeforeCheck),
			CheckRetries:             nodeCfg.Check.MaxRetries,
			VerifyRetries:            nodeCfg.Verify.MaxRetries,
			VerifyDelay:              Seconds(2 * time.Second),
			MethodSubmitWork:         nodeCfg.Methods.SubmitWork,
			MethodPollStatus:         nodeCfg.Methods.PollStatus,
			MethodSubmitVerification: nodeCfg.Methods.SubmitVerification,
		},
		RPC: RPCConfig{
			Timeout:          Seconds(10 * time.Second),
			TransportRetries: 2,
		},
		Command: CommandRun,
	}
}

func newParser(cfg *Config) *flags.Parser {
	parser := flags.NewParser(cfg, flags.Default)
	parser.SubcommandsOptional = true
	_, _ = parser.AddCommand(CommandRun, "Run the nodes", "Run the nodes, sending PoW works to the proxy every round", &struct{}{})
	_, _ = parser.AddCommand(CommandKeygen, "Generate keys for the nodes", "Generate --nodes key pairs and write them to the keys file", &struct{}{})
	return parser
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	return parseArgs(preCfg, os.Args[1:])
}

func parseArgs(preCfg *Config, args []string) (*Config, error) {
	parser := newParser(preCfg)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unknown command %q", rest[0])
	}
	if parser.Active != nil {
		preCfg.Command = parser.Active.Name
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig validates the config, expands paths and initializes filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Files that were left at their defaults live within a custom sim dir.
	defaultCfg := DefaultConfig()
	if cfg.SimDir != defaultCfg.SimDir {
		if cfg.DbDir == defaultCfg.DbDir {
			cfg.DbDir = filepath.Join(cfg.SimDir, defaultDbDirName)
		}
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.SimDir, defaultLogDirname)
		}
		if cfg.KeysFile == defaultCfg.KeysFile {
			cfg.KeysFile = filepath.Join(cfg.SimDir, defaultKeysFilename)
		}
	}

	cfg.SimDir = cleanAndExpandPath(cfg.SimDir)
	if err := os.MkdirAll(cfg.SimDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.SimDir, err)
	}

	cfg.DbDir = cleanAndExpandPath(cfg.DbDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.KeysFile = cleanAndExpandPath(cfg.KeysFile)

	return cfg, nil
}

// Validate checks the values a round cannot run without.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Nodes < 1:
		return fmt.Errorf("%w: nodes must be at least 1, got %d", ErrInvalidConfig, cfg.Nodes)
	case cfg.Round.PowWindow <= 0:
		return fmt.Errorf("%w: pow window must be positive, got %v", ErrInvalidConfig, cfg.Round.PowWindow.Duration())
	case cfg.Round.EpochTime < 0:
		return fmt.Errorf("%w: epoch time must not be negative", ErrInvalidConfig)
	case cfg.Round.JitterMin < 0 || cfg.Round.JitterMax < cfg.Round.JitterMin:
		return fmt.Errorf("%w: jitter max %v is lower than jitter min %v",
			ErrInvalidConfig, cfg.Round.JitterMax.Duration(), cfg.Round.JitterMin.Duration())
	case cfg.Command == CommandRun && cfg.Proxy == "":
		return fmt.Errorf("%w: proxy server is not set", ErrInvalidConfig)
	}
	return nil
}

// RoundConfig returns the orchestrator settings.
func (cfg *Config) RoundConfig() round.Config {
	return round.Config{
		PowWindow:       cfg.Round.PowWindow.Duration(),
		EpochTime:       cfg.Round.EpochTime.Duration(),
		StartBlock:      cfg.Round.StartBlock,
		Block:           cfg.Round.Block,
		ResumeGap:       cfg.Round.ResumeGap,
		JitterMin:       cfg.Round.JitterMin.Duration(),
		JitterMax:       cfg.Round.JitterMax.Duration(),
		ShardDifficulty: cfg.Round.Difficulty,
		DSDifficulty:    cfg.Round.DSDifficulty,
	}
}

// NodeConfig returns the protocol settings shared by all nodes.
func (cfg *Config) NodeConfig() node.Config {
	return node.Config{
		Methods: node.Methods{
			SubmitWork:         cfg.Node.MethodSubmitWork,
			PollStatus:         cfg.Node.MethodPollStatus,
			SubmitVerification: cfg.Node.MethodSubmitVerification,
		},
		Request:           node.RetryPolicy{MaxRetries: cfg.Node.RequestRetries, Delay: node.FixedDelay(cfg.Node.RequestDelay)},
		Check:             node.RetryPolicy{MaxRetries: cfg.Node.CheckRetries, Delay: node.SpreadDelay{}},
		Verify:            node.RetryPolicy{MaxRetries: cfg.Node.VerifyRetries, Delay: node.FixedDelay(cfg.Node.VerifyDelay)},
		WaitBeforeCheck:   cfg.Node.WaitBeforeCheck.Duration(),
		DividedDifficulty: cfg.Node.DividedDifficulty,
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
