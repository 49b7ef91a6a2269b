// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"

	"duners/cli/internal/dune"
	"duners/cli/internal/render"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var executeRaw bool

// executeCmd triggers a new execution of a saved query.
var executeCmd = &cobra.Command{
	Use:   "execute <query-id>",
	Short: "Start a new execution of a saved query",
	Long: `The execute command asks Dune to run a saved query. Executions usually
take a while: when the response is not yet COMPLETED the command prints the
execution id and state and exits with an error, and the result can be fetched
later with 'duners query'.

With --raw the response body is printed exactly as received.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return report(cmd, err, "preparing the client")
		}

		id := args[0]
		stop := startInlineSpinner(cmd.ErrOrStderr(), "executing "+id)
		run, err := client.Execute(cmd.Context(), id)
		stop()

		var nr *dune.NotReadyError
		if errors.As(err, &nr) && nr.ExecutionID != "" {
			pterm.Fprintln(cmd.ErrOrStderr(), fmt.Sprintf("Execution %s is %s", nr.ExecutionID, nr.State.Short()))
		}
		if err != nil {
			return report(cmd, err, "executing query "+id)
		}
		if executeRaw {
			_, err := cmd.OutOrStdout().Write(append(run.Raw(), '\n'))
			return err
		}
		return render.Result(cmd.OutOrStdout(), format, run.Envelope.Result)
	},
}

func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().BoolVar(&executeRaw, "raw", false, "Print the response body as received")
}
