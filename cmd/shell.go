// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"duners/cli/internal/dune"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

// shellPrompt is printed before every line read by the shell.
const shellPrompt = ":) "

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

// shellCmd runs an interactive loop over the query command.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive prompt for running queries",
	Long: `The shell command reads one command per line:

  query <query-id>...   fetch and print the latest results
  quit | exit           leave the shell

Errors are printed and the shell keeps running. End of input also exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), newClient)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// runShell reads lines from in until quit or end of input. Each line is
// dispatched through a fresh command tree so flag state never leaks between
// lines. newClient is called per query so a credential saved mid-session is
// picked up.
func runShell(ctx context.Context, in io.Reader, out, errOut io.Writer, newClient func() (*dune.Client, error)) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, shellPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(errOut, "error: invalid quoting: %v\n", err)
			continue
		}

		tree := newShellTree(newClient)
		tree.SetArgs(args)
		tree.SetIn(in)
		tree.SetOut(out)
		tree.SetErr(errOut)
		err = tree.ExecuteContext(ctx)
		switch {
		case errors.Is(err, errQuit):
			fmt.Fprintln(out, "Exiting ...")
			return nil
		case err != nil:
			var r reportedError
			if !errors.As(err, &r) {
				fmt.Fprintf(errOut, "error: %v\n", err)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// newShellTree builds the command set available inside the shell.
func newShellTree(newClient func() (*dune.Client, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	var table string
	query := &cobra.Command{
		Use:   "query <query-id>...",
		Short: "Fetch the latest result of saved queries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return report(cmd, err, "preparing the client")
			}
			return runQuery(cmd, client, args, table)
		},
	}
	query.Flags().StringVar(&table, "export-table", "", "Also copy the rows into this Postgres table")

	quit := &cobra.Command{
		Use:     "quit",
		Aliases: []string{"exit"},
		Short:   "Leave the shell",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errQuit
		},
	}

	root.AddCommand(query, quit)
	return root
}
