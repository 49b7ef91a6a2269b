// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"


	"github.com/spf13/cobra"
)

// logoutCmd removes everything duners stored in the OS keychain.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved API key and export DSN",
	Long: `The logout command removes the Dune API key and the export database DSN
from the OS keychain. Cached results under ~/.duners/cache are kept.

DUNE_API_KEY and .env files are not touched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := openKeychain()
		if err != nil {
			return err
		}
		if err := km.ClearAll(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Saved API key and export DSN have been removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
