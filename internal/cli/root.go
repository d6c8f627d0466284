// Package cli implements the ddpsim command tree: offline allocation and
// exchange quotes computed with the same engines the server uses.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmx/ddp-sim/internal/config"
	"github.com/atmx/ddp-sim/internal/logging"
)

// Version is reported by `ddpsim version` and `ddpsim --version`.
var Version = "0.1.0-dev"

// globalOptions holds the persistent flags and the configuration they load.
type globalOptions struct {
	configFile string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd builds the ddpsim command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "ddpsim",
		Short: "DDP token-economy and AMM simulator",
		Long: `ddpsim computes the initial DDP allocation of a token economy and quotes
swaps and liquidity operations against its constant-product pool.

Settings come from defaults, an optional config file, and DDPSIM_*
environment variables, in that order.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: g.load,
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "configuration file path")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	root.AddCommand(newAllocateCmd(g), newQuoteCmd(g), newVersionCmd())
	return root
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (g *globalOptions) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	// Logs go to stderr so stdout stays machine-readable.
	slog.SetDefault(logging.NewTo(cmd.ErrOrStderr(), level, "text"))
	g.cfg = cfg
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
