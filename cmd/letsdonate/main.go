// Package main is the letsdonate command: it drives the offline-first sync
// core from a terminal and can serve its status to a local UI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/app"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/config"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
)

// Version is set at build time
var Version = "0.1.0"

type rootOptions struct {
	configFile string
	logLevel   string
	jsonOut    bool

	cfg     *config.Config
	logFile io.WriteCloser
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "letsdonate",
		Short:         "Offline-first sync core of the Let's Donate app",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			opts.cfg = cfg
			opts.setupLogging(cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logFile != nil {
				opts.logFile.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./letsdonate.yaml if present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newSyncCmd(opts),
		newQueueCmd(opts),
		newDonationsCmd(opts),
		newCartCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// setupLogging sends logs to the rotated file when log.file is set and to
// stderr otherwise, keeping stdout for command output.
func (o *rootOptions) setupLogging(stderr io.Writer) {
	out := stderr
	if o.cfg.Log.File != "" {
		o.logFile = logging.FileWriter(logging.FileConfig{Path: o.cfg.Log.File})
		out = o.logFile
	}
	logging.Init(out, logging.ParseLevel(o.cfg.Log.Level))
}

// withApp builds the app, runs fn and closes the app.
func (o *rootOptions) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.New(o.cfg, app.WithLogger(logging.Get()))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
