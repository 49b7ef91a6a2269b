// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"

	"duners/cli/internal/cache"
	"duners/cli/internal/credential"
	"duners/cli/internal/dune"
	"duners/cli/internal/render"

	"github.com/spf13/cobra"
)

var cacheShowRows bool

// cacheCmd groups operator commands over the local result cache. The cache
// is keyed by the identity of the API key currently resolved.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect cached query results",
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache directory of the current API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, identity, err := cacheScope()
		if err != nil {
			return report(cmd, err, "locating the cache")
		}
		fmt.Fprintln(cmd.OutOrStdout(), store.Path(identity, ""))
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached query ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, identity, err := cacheScope()
		if err != nil {
			return report(cmd, err, "locating the cache")
		}
		keys, err := store.List(identity)
		if err != nil {
			return report(cmd, err, "listing the cache")
		}
		for _, k := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <query-id>",
	Short: "Print a cached response",
	Long: `The show command prints the cached response for a query exactly as it was
received. With --rows the response is decoded and its rows are rendered in the
--output format instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, identity, err := cacheScope()
		if err != nil {
			return report(cmd, err, "locating the cache")
		}
		data, err := store.Load(identity, args[0])
		if errors.Is(err, cache.ErrNotFound) {
			return fmt.Errorf("no cached result for query %s; run 'duners query %s' first", args[0], args[0])
		}
		if err != nil {
			return report(cmd, err, "reading the cache")
		}
		if !cacheShowRows {
			_, err := cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		env, err := dune.DecodeEnvelope(data)
		if err != nil {
			return report(cmd, err, "decoding the cached result")
		}
		format, err := outputFormat()
		if err != nil {
			return err
		}
		return render.Result(cmd.OutOrStdout(), format, env.Result)
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePathCmd, cacheListCmd, cacheShowCmd)
	cacheShowCmd.Flags().BoolVar(&cacheShowRows, "rows", false, "Decode the response and render its rows")
}

// cacheScope returns the configured store and the identity of the resolved
// API key.
func cacheScope() (*cache.Store, string, error) {
	res, err := credential.Resolve(credential.DefaultOptions())
	if err != nil {
		return nil, "", err
	}
	store, err := resultStore()
	if err != nil {
		return nil, "", err
	}
	return store, credential.Identity(res.Credential), nil
}
