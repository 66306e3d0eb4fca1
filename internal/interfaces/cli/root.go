// Package cli implements the diagnovera command-line interface: offline
// diagnosis against a local reference library, library inspection, and
// database migrations.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diagnovera/diagnovera/internal/config"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	logLevel   string
	output     string // "json" | "text"
}

// runtime carries the initialized dependencies through the command tree.
type runtime struct {
	cfg    *config.Config
	logger logging.Logger
	opts   *rootOptions
}

// NewRootCommand builds the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rt := &runtime{opts: opts}

	cmd := &cobra.Command{
		Use:     "diagnovera",
		Short:   "Complex-plane diagnostic matching engine",
		Long:    "diagnovera maps clinical observations onto a six-sector complex plane and\nranks candidate diseases with a Bayesian / Kuramoto / Markov ensemble.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: environment + built-in defaults)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.output, "output", "o", "json", "output format (json, text)")

	cmd.AddCommand(
		newDiagnoseCommand(rt),
		newLibraryCommand(rt),
		newMigrateCommand(rt),
	)
	return cmd
}

func (rt *runtime) init() error {
	var cfg *config.Config
	var err error
	if rt.opts.configPath != "" {
		cfg, err = config.Load(rt.opts.configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	rt.cfg = cfg

	logger, err := logging.NewLogger(logging.Config{
		Level:            rt.opts.logLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	rt.logger = logger
	return nil
}

// printResult renders data in the selected output format.
func (rt *runtime) printResult(cmd *cobra.Command, data interface{}) error {
	if strings.EqualFold(rt.opts.output, "text") {
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", data)
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Execute runs the CLI and reports failures on stderr.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}
