// Package commands provides the CLI commands for the go-bytecode-flow tool.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-bytecode-flow/internal/config"
	"github.com/l3aro/go-bytecode-flow/internal/log"
	"github.com/l3aro/go-bytecode-flow/pkg/dfg"
	"github.com/l3aro/go-bytecode-flow/pkg/hierarchy"
)

var (
	configFile string
	logLevel   string
	jsonLogs   bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gbf",
	Short: "go-bytecode-flow - JVM method control and data flow analysis",
	Long: `go-bytecode-flow builds control flow graphs of JVM method bodies and
computes the stack and local variable types before every instruction.

Commands:
  analyze     Print the frames of one method file
  cfg         Print the control flow graph of one method file
  check       Analyze every method file under a directory
  init        Create a configuration file interactively

Use "gbf [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: ~/.gbf/config.yaml layered with ./.gbf/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	RootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON lines")
}

// env is what every command needs to run an analysis.
type env struct {
	cfg      *config.Config
	logger   log.Logger
	classes  *hierarchy.Hierarchy
	oracle   *hierarchy.Cached
	analyzer *dfg.Analyzer
}

// loadEnv reads configuration for dir, applies the global flags and builds
// the class hierarchy oracle and analyzer.
func loadEnv(dir string) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.LoadDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if jsonLogs {
		cfg.JSONLogs = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return newEnv(cfg, log.New(log.LoggerConfig{Level: cfg.Level(), JSONOutput: cfg.JSONLogs}))
}

// newEnv wires the hierarchy, its cache and the analyzer from cfg.
func newEnv(cfg *config.Config, logger log.Logger) (*env, error) {
	classes, err := hierarchy.Load(cfg.BuiltinHierarchy, cfg.HierarchyFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading class hierarchy: %w", err)
	}
	oracle := hierarchy.NewCached(classes, cfg.OracleCacheSize)
	logger.Debug("loaded class hierarchy", "classes", classes.Len(), "files", len(cfg.HierarchyFiles))

	return &env{
		cfg:     cfg,
		logger:  logger,
		classes: classes,
		oracle:  oracle,
		analyzer: dfg.NewAnalyzer(
			dfg.WithOracle(oracle),
			dfg.WithLogger(logger),
			dfg.WithMaxVisits(cfg.MaxVisitsPerBlock),
		),
	}, nil
}
