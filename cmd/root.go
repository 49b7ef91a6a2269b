// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the duners CLI.
// It implements subcommands for fetching and executing Dune queries, managing
// the API key, inspecting the local result cache and exporting rows to
// Postgres, using the Cobra CLI framework.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"duners/cli/internal/cache"
	"duners/cli/internal/config"
	"duners/cli/internal/credential"
	"duners/cli/internal/dune"
	"duners/cli/internal/httperrors"
	"duners/cli/internal/keychain"
	"duners/cli/internal/logging"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	verbose     bool
	outputFlag  string

	// cfg is loaded once per process by the root PersistentPreRunE.
	cfg = config.Defaults()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "duners",
	Short: "Query the Dune API from the command line",
	Long: `duners fetches the latest results of saved Dune queries, triggers new
executions and keeps a verbatim copy of every completed result under
~/.duners/cache.

The API key is read from DUNE_API_KEY, then from a .env file in the current
directory, then from the OS keychain (see 'duners login').`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Fprintf(cmd.OutOrStdout(), "duners %s\n", Version)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application. Ctrl-C cancels in-flight requests.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var r reportedError
		if !errors.As(err, &r) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "Output format: table, json, yaml or csv")
}

// setup loads configuration and installs the process logger.
func setup() error {
	c, err := config.Load()
	if err != nil {
		// A broken config file should not lock the user out of every command.
		logging.Default().Warn("using default settings", logging.Default().Args("error", err.Error()))
	}
	cfg = c
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logging.SetDefault(logging.New(level, os.Stderr))
	return nil
}

// openKeychain returns the secret store used by login, logout, connect and
// the export DSN lookup.
var openKeychain = keychain.GetManager

// resultStore returns the cache rooted at the configured directory.
func resultStore() (*cache.Store, error) {
	if cfg.CacheDir != "" {
		return cache.NewStore(cfg.CacheDir), nil
	}
	root, err := cache.DefaultRoot()
	if err != nil {
		return nil, err
	}
	return cache.NewStore(root), nil
}

// newClient resolves the credential and builds an API client from cfg.
func newClient() (*dune.Client, error) {
	store, err := resultStore()
	if err != nil {
		return nil, err
	}
	opts := []dune.Option{
		dune.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		dune.WithCache(store),
		dune.WithLogger(logging.Default()),
		dune.WithUserAgent("duners-cli/" + Version),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, dune.WithBaseURL(cfg.BaseURL))
	}
	return dune.NewFromEnvironment(credential.DefaultOptions(), opts...)
}

// reportedError marks an error that has already been explained to the user.
type reportedError struct{ err error }

func (r reportedError) Error() string { return r.err.Error() }
func (r reportedError) Unwrap() error { return r.err }

// report prints err with hints on the command's stderr and marks it reported.
func report(cmd *cobra.Command, err error, action string) error {
	if err == nil {
		return nil
	}
	return reportedError{httperrors.Present(cmd.ErrOrStderr(), err, action)}
}
