// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"duners/cli/internal/dsn"
	"duners/cli/internal/dune"
	"duners/cli/internal/export"
	"duners/cli/internal/keychain"
	"duners/cli/internal/render"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// EnvExportDSN overrides the DSN saved by 'duners connect'.
const EnvExportDSN = "DUNERS_EXPORT_DSN"

// maxParallelQueries bounds concurrent requests for a multi-id query.
const maxParallelQueries = 4

var exportTable string

// queryCmd fetches the latest completed result of each given query id.
var queryCmd = &cobra.Command{
	Use:   "query <query-id>...",
	Short: "Fetch the latest result of one or more saved queries",
	Long: `The query command fetches the most recent result of each saved query
without starting a new execution, prints the rows and saves the full response
under ~/.duners/cache/<identity>/<query-id>.

With --export-table the rows of a single query are also copied into a
Postgres table, using the DSN saved by 'duners connect' or DUNERS_EXPORT_DSN.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return report(cmd, err, "preparing the client")
		}
		return runQuery(cmd, client, args, exportTable)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&exportTable, "export-table", "", "Also copy the rows into this Postgres table")
}

// outputFormat returns the --output value, falling back to the config file.
func outputFormat() (render.Format, error) {
	if outputFlag != "" {
		return render.ParseFormat(outputFlag)
	}
	return render.ParseFormat(cfg.Output)
}

// runQuery fetches ids concurrently and renders them in argument order. A
// failing id is reported and does not stop the others.
func runQuery(cmd *cobra.Command, client *dune.Client, ids []string, table string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	if table != "" && len(ids) != 1 {
		return errors.New("--export-table takes exactly one query id")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]*dune.Execution, len(ids))
	errs := make([]error, len(ids))

	stop := startInlineSpinner(cmd.ErrOrStderr(), "fetching "+strings.Join(ids, ", "))
	var g errgroup.Group
	g.SetLimit(maxParallelQueries)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i], errs[i] = client.LatestResult(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	stop()

	out := cmd.OutOrStdout()
	var failed error
	for i, id := range ids {
		if errs[i] != nil {
			failed = report(cmd, errs[i], "fetching query "+id)
			continue
		}
		if len(ids) > 1 && format == render.Table {
			pterm.Fprintln(out, pterm.Bold.Sprintf("Query %s", id))
		}
		if err := render.Result(out, format, results[i].Envelope.Result); err != nil {
			return err
		}
	}
	if failed != nil {
		return failed
	}
	if table != "" {
		return exportResult(cmd, table, results[0].Envelope.Result)
	}
	return nil
}

// exportDSN returns the export target from the environment or the keychain.
func exportDSN() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvExportDSN)); v != "" {
		return dsn.Normalize(v)
	}
	km, err := openKeychain()
	if err != nil {
		return "", fmt.Errorf("no export database: set %s or run 'duners connect' (%w)", EnvExportDSN, err)
	}
	v, err := km.LoadExportDSN()
	if err != nil {
		if errors.Is(err, keychain.ErrNotFound) {
			return "", fmt.Errorf("no export database: set %s or run 'duners connect'", EnvExportDSN)
		}
		return "", err
	}
	return v, nil
}

// exportResult copies res into table in the export database.
func exportResult(cmd *cobra.Command, table string, res *dune.Result) error {
	target, err := exportDSN()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()
	pool, err := pgxpool.New(ctx, target)
	if err != nil {
		return fmt.Errorf("open export database: %w", err)
	}
	defer pool.Close()

	n, err := export.New(pool).Write(ctx, table, res)
	if err != nil {
		return err
	}
	pterm.Fprintln(cmd.ErrOrStderr(), pterm.Green(fmt.Sprintf("✅ Copied %d rows into %s", n, table)))
	return nil
}
