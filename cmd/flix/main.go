// Command flix runs the login demo, serves it to remote widgets, watches a
// served list and compares recorded snapshots.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/flix/internal/config"
	flixerrors "github.com/vango-dev/flix/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds what every command shares once flags are parsed.
type app struct {
	configFile string
	configDir  string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		flixerrors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "flix",
		Short: "Declarative sectioned lists with keyed reconciliation",
		Long: `Flix turns provider streams into sectioned list snapshots and applies
the difference between consecutive snapshots to a widget as one batch.

Commands:
  demo      run the login screen against a logging widget
  serve     serve the login screen to remote widgets over websocket
  watch     mirror a served list as a headless widget
  diff      compare two recorded snapshots
  version   print version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: flix.yaml in --dir)")
	root.PersistentFlags().StringVar(&a.configDir, "dir", ".", "directory searched for flix.yaml and .env")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		demoCmd(a),
		serveCmd(a),
		watchCmd(a),
		diffCmd(a),
		versionCmd(),
	)
	return root
}

func (a *app) load(stderr io.Writer) error {
	opts := []config.Option{config.WithDir(a.configDir)}
	if a.configFile != "" {
		opts = append(opts, config.WithFile(a.configFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return flixerrors.New("F040").Wrap(err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return flixerrors.New("F040").Wrap(err)
		}
	}
	a.cfg = cfg
	a.logger = cfg.Logger(stderr)
	if f := cfg.File(); f != "" {
		a.logger.Debug("config loaded", "file", f)
	}
	return nil
}

// printf writes to the command's output.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
