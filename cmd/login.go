// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"

	"duners/cli/internal/credential"
	"duners/cli/internal/logging"
	"duners/cli/internal/terminal"

	"github.com/spf13/cobra"
)

// loginCmd stores a Dune API key in the OS keychain.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Save a Dune API key in the OS keychain",
	Long: `The login command prompts for a Dune API key and stores it in the OS keychain,
where it is used when neither DUNE_API_KEY nor a .env file provides one.

The key is read without echo when stdin is a terminal, so it can also be piped:

  echo "$KEY" | duners login`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := terminal.ReadSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Enter Dune API key: ")
		if err != nil {
			return fmt.Errorf("read API key: %w", err)
		}
		if key == "" {
			return errors.New("API key is required")
		}

		km, err := openKeychain()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "❌ Secure storage is not available on this system.")
			fmt.Fprintf(cmd.ErrOrStderr(), "   Export %s or add it to %s instead.\n", credential.EnvVar, credential.DefaultDotfile)
			return err
		}
		if err := km.SaveAPIKey(key); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "❌ Failed to save the API key securely.")
			return err
		}

		if _, ok := os.LookupEnv(credential.EnvVar); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %s is set and takes precedence over the saved key.\n", credential.EnvVar)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ API key %s saved\n", logging.MaskSecret(key))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
