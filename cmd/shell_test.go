// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"duners/cli/internal/cache"
	"duners/cli/internal/dune"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completedBody = `{
  "execution_id": "01HKZJ2683PHF9Q9PHHQ8FW4Q1",
  "query_id": 42,
  "is_execution_finished": true,
  "state": "QUERY_STATE_COMPLETED",
  "submitted_at": "2024-03-21T09:03:58.114206Z",
  "expires_at": "2024-06-19T09:04:03.627064Z",
  "execution_started_at": "2024-03-21T09:03:58.136291Z",
  "execution_ended_at": "2024-03-21T09:04:03.627063Z",
  "result": {
    "rows": [{"txs": 12, "chain": "ethereum"}],
    "metadata": {"column_names": ["chain", "txs"], "column_types": ["varchar", "bigint"], "row_count": 1}
  }
}`

const pendingBody = `{
  "execution_id": "01HKZJ2683PHF9Q9PHHQ8FW4Q2",
  "query_id": 7,
  "is_execution_finished": false,
  "state": "QUERY_STATE_PENDING",
  "submitted_at": "2024-03-21T09:03:58.114206Z",
  "expires_at": "2024-06-19T09:03:58.114206Z",
  "execution_started_at": "",
  "execution_ended_at": ""
}`

// fakeDune answers every results request with pendingBody for query 7 and
// completedBody otherwise.
func fakeDune(t *testing.T, calls *atomic.Int32) (func() (*dune.Client, error), *cache.Store) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/query/7/") {
			_, _ = w.Write([]byte(pendingBody))
			return
		}
		_, _ = w.Write([]byte(completedBody))
	}))
	t.Cleanup(srv.Close)
	store := cache.NewStore(t.TempDir())
	return func() (*dune.Client, error) {
		return dune.New("test-key", dune.WithBaseURL(srv.URL), dune.WithCache(store))
	}, store
}

func withOutput(t *testing.T, format string) {
	t.Helper()
	prev := outputFlag
	outputFlag = format
	t.Cleanup(func() { outputFlag = prev })
}

func TestShell_QueryThenQuit(t *testing.T) {
	withOutput(t, "csv")
	var calls atomic.Int32
	newClient, store := fakeDune(t, &calls)

	var out, errOut bytes.Buffer
	in := strings.NewReader("\n  \nquery 42\nquit\nquery 43\n")
	err := runShell(context.Background(), in, &out, &errOut, newClient)
	require.NoError(t, err)

	assert.Contains(t, out.String(), shellPrompt)
	assert.Contains(t, out.String(), "chain,txs\nethereum,12\n")
	assert.Contains(t, out.String(), "Exiting ...")
	assert.Equal(t, int32(1), calls.Load(), "nothing runs after quit")
	assert.Empty(t, errOut.String())

	client, err := newClient()
	require.NoError(t, err)
	cached, err := store.Load(client.Identity(), "42")
	require.NoError(t, err)
	assert.Equal(t, completedBody, string(cached))
}

func TestShell_ErrorsDoNotEndTheLoop(t *testing.T) {
	withOutput(t, "csv")
	var calls atomic.Int32
	newClient, _ := fakeDune(t, &calls)

	var out, errOut bytes.Buffer
	in := strings.NewReader(strings.Join([]string{
		`query "unterminated`,
		`bogus`,
		`query`,
		`query 7`,
		`query ../etc`,
		`query 42`,
		`exit`,
	}, "\n"))
	err := runShell(context.Background(), in, &out, &errOut, newClient)
	require.NoError(t, err)

	errs := errOut.String()
	assert.Contains(t, errs, "invalid quoting")
	assert.Contains(t, errs, `unknown command "bogus"`)
	assert.Contains(t, errs, "requires at least 1 arg")
	assert.Contains(t, errs, "not ready")
	assert.Contains(t, errs, "../etc")

	assert.Contains(t, out.String(), "ethereum,12")
	assert.Contains(t, out.String(), "Exiting ...")
	assert.Equal(t, int32(2), calls.Load(), "invalid ids never reach the API")
}

func TestShell_EndOfInputExits(t *testing.T) {
	var calls atomic.Int32
	newClient, _ := fakeDune(t, &calls)

	var out bytes.Buffer
	err := runShell(context.Background(), strings.NewReader(""), &out, &bytes.Buffer{}, newClient)
	require.NoError(t, err)
	assert.Equal(t, shellPrompt+"\n", out.String())
}

func TestShell_MultipleIDsRenderInOrder(t *testing.T) {
	withOutput(t, "json")
	var calls atomic.Int32
	newClient, _ := fakeDune(t, &calls)

	var out, errOut bytes.Buffer
	err := runShell(context.Background(), strings.NewReader("query 1 2 3\n"), &out, &errOut, newClient)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, strings.Count(out.String(), `"chain": "ethereum"`))
	assert.Empty(t, errOut.String())
}
