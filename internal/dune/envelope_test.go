// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dune

import (
	"encoding/json"
	"testing"

	"duners/cli/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completedBody = `{
  "execution_id": "01HKZJ2683PHF9Q9PHHQ8FW4Q1",
  "query_id": 3557348,
  "is_execution_finished": true,
  "state": "QUERY_STATE_COMPLETED",
  "submitted_at": "2024-03-21T09:03:58.114206Z",
  "expires_at": "2024-06-19T09:04:03.627064Z",
  "execution_started_at": "2024-03-21T09:03:58.136291Z",
  "execution_ended_at": "2024-03-21T09:04:03.627063Z",
  "result": {
    "rows": [
      {"txs": 0.07152323, "unique_senders_addresses": 1.167168},
      {"txs": 12, "unique_senders_addresses": 340282366920938463463374607431768211455}
    ],
    "metadata": {
      "column_names": ["txs", "unique_senders_addresses"],
      "column_types": ["double", "double"],
      "row_count": 2,
      "result_set_bytes": 58,
      "total_row_count": 2,
      "total_result_set_bytes": 58,
      "datapoint_count": 4,
      "pending_time_millis": 22,
      "execution_time_millis": 5490
    }
  }
}`

// envelopeHead is every required top-level field except state, left open for
// the caller to finish.
const envelopeHead = `{"execution_id":"e1","query_id":1,"is_execution_finished":false,` +
	`"submitted_at":"2024-03-21T09:03:58Z","expires_at":"","execution_started_at":"","execution_ended_at":"",`

func TestDecodeEnvelope_NullResultIsAbsent(t *testing.T) {
	env, err := DecodeEnvelope([]byte(envelopeHead + `"state":"QUERY_STATE_FAILED","result":null}`))
	require.NoError(t, err)
	assert.Nil(t, env.Result)
}

func TestDecodeEnvelope_MetadataCountersOptional(t *testing.T) {
	env, err := DecodeEnvelope([]byte(envelopeHead + `"state":"QUERY_STATE_COMPLETED",` +
		`"result":{"rows":[],"metadata":{"column_names":["a"],"column_types":["varchar"]}}}`))
	require.NoError(t, err)
	require.NotNil(t, env.Result)
	assert.Empty(t, env.Result.Rows)
	assert.Zero(t, env.Result.Metadata.RowCount)
}

func TestDecodeEnvelope_Completed(t *testing.T) {
	env, err := DecodeEnvelope([]byte(completedBody))
	require.NoError(t, err)

	assert.Equal(t, "01HKZJ2683PHF9Q9PHHQ8FW4Q1", env.ExecutionID)
	assert.Equal(t, int64(3557348), env.QueryID)
	assert.Equal(t, StateCompleted, env.State)
	assert.True(t, env.IsExecutionFinished)
	assert.Equal(t, "2024-03-21T09:03:58.114206Z", env.SubmittedAt)

	require.NotNil(t, env.Result)
	md := env.Result.Metadata
	assert.Equal(t, len(md.ColumnNames), len(md.ColumnTypes))
	assert.Equal(t, int64(2), md.RowCount)
	assert.Equal(t, int64(5490), md.ExecutionTimeMillis)
	assert.Equal(t, "double", md.ColumnType("txs"))
	assert.Equal(t, "", md.ColumnType("nope"))

	require.Len(t, env.Result.Rows, 2)
	assert.Equal(t, json.Number("0.07152323"), env.Result.Rows[0]["txs"])
	assert.Equal(t, json.Number("340282366920938463463374607431768211455"), env.Result.Rows[1]["unique_senders_addresses"])
}

func TestDecodeEnvelope_PendingWithoutResult(t *testing.T) {
	env, err := DecodeEnvelope([]byte(envelopeHead + `"state":"QUERY_STATE_PENDING"}`))
	require.NoError(t, err)
	assert.Equal(t, StatePending, env.State)
	assert.Nil(t, env.Result)
	assert.False(t, env.State.IsTerminal())
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	completed := `"state":"QUERY_STATE_COMPLETED"`
	cases := map[string]string{
		"not json":                `<html>bad gateway</html>`,
		"empty":                   ``,
		"array":                   `[]`,
		"null":                    `null`,
		"missing state":           `{"execution_id":"e1","query_id":1}`,
		"missing execution_id":    `{"query_id":1,"state":"QUERY_STATE_COMPLETED"}`,
		"missing query_id":        `{"execution_id":"e1","state":"QUERY_STATE_COMPLETED"}`,
		"null state":              envelopeHead + `"state":null}`,
		"query_id wrong type":     `{"execution_id":"e1","query_id":"1","state":"QUERY_STATE_COMPLETED","is_execution_finished":true,"submitted_at":"","expires_at":"","execution_started_at":"","execution_ended_at":""}`,
		"missing timestamps":      `{"execution_id":"e1","query_id":1,"state":"QUERY_STATE_COMPLETED","is_execution_finished":true}`,
		"missing finished flag":   `{"execution_id":"e1","query_id":1,"state":"QUERY_STATE_COMPLETED","submitted_at":"","expires_at":"","execution_started_at":"","execution_ended_at":""}`,
		"empty result":            envelopeHead + completed + `,"result":{}}`,
		"result without rows":     envelopeHead + completed + `,"result":{"metadata":{"column_names":[],"column_types":[]}}}`,
		"result without metadata": envelopeHead + completed + `,"result":{"rows":[{"a":1}]}}`,
		"metadata without types":  envelopeHead + completed + `,"result":{"rows":[],"metadata":{"column_names":["a"]}}}`,
		"metadata null":           envelopeHead + completed + `,"result":{"rows":[],"metadata":null}}`,
		"rows wrong type":         envelopeHead + completed + `,"result":{"rows":{},"metadata":{"column_names":[],"column_types":[]}}}`,
		"result wrong type":       envelopeHead + completed + `,"result":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(body))
			require.Error(t, err)
			assert.Equal(t, errors.DecodeError, errors.KindOf(err))
		})
	}
}

func TestState(t *testing.T) {
	assert.True(t, StateCompleted.IsCompleted())
	assert.False(t, StateExecuting.IsCompleted())
	for _, s := range []State{StateCompleted, StateFailed, StateCancelled, StateExpired} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, State("QUERY_STATE_SOMETHING_NEW").IsTerminal())
	assert.Equal(t, "EXECUTING", StateExecuting.Short())
}
