// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dune

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"duners/cli/internal/errors"
)

// State is the execution state tag reported by the service.
type State string

const (
	StatePending   State = "QUERY_STATE_PENDING"
	StateExecuting State = "QUERY_STATE_EXECUTING"
	StateCompleted State = "QUERY_STATE_COMPLETED"
	StateFailed    State = "QUERY_STATE_FAILED"
	StateCancelled State = "QUERY_STATE_CANCELLED"
	StateExpired   State = "QUERY_STATE_EXPIRED"
)

// IsCompleted reports whether the execution finished successfully.
func (s State) IsCompleted() bool { return s == StateCompleted }

// IsTerminal reports whether the execution will not change state any more.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateExpired:
		return true
	}
	return false
}

// Short drops the QUERY_STATE_ prefix for display.
func (s State) Short() string {
	return strings.TrimPrefix(string(s), "QUERY_STATE_")
}

// Row is one result record keyed by column name.
type Row map[string]any

// Metadata describes the columns and size of a result.
type Metadata struct {
	ColumnNames         []string `json:"column_names"`
	ColumnTypes         []string `json:"column_types"`
	RowCount            int64    `json:"row_count"`
	ResultSetBytes      int64    `json:"result_set_bytes"`
	TotalRowCount       int64    `json:"total_row_count"`
	TotalResultSetBytes int64    `json:"total_result_set_bytes"`
	DatapointCount      int64    `json:"datapoint_count"`
	PendingTimeMillis   int64    `json:"pending_time_millis"`
	ExecutionTimeMillis int64    `json:"execution_time_millis"`
}

// ColumnType returns the declared type of the named column, or "".
func (m Metadata) ColumnType(name string) string {
	for i, n := range m.ColumnNames {
		if n == name && i < len(m.ColumnTypes) {
			return m.ColumnTypes[i]
		}
	}
	return ""
}

// Result is the payload of a completed execution.
type Result struct {
	Rows     []Row    `json:"rows"`
	Metadata Metadata `json:"metadata"`
}

// Envelope is the service's view of one execution.
type Envelope struct {
	ExecutionID         string  `json:"execution_id"`
	QueryID             int64   `json:"query_id"`
	State               State   `json:"state"`
	IsExecutionFinished bool    `json:"is_execution_finished"`
	SubmittedAt         string  `json:"submitted_at"`
	ExpiresAt           string  `json:"expires_at"`
	ExecutionStartedAt  string  `json:"execution_started_at"`
	ExecutionEndedAt    string  `json:"execution_ended_at"`
	Result              *Result `json:"result,omitempty"`
}

// Fields every envelope, result and metadata object must carry. A field that
// is present but null counts as missing.
var (
	envelopeFields = []string{
		"execution_id", "query_id", "state", "is_execution_finished",
		"submitted_at", "expires_at", "execution_started_at", "execution_ended_at",
	}
	resultFields   = []string{"rows", "metadata"}
	metadataFields = []string{"column_names", "column_types"}
)

// DecodeEnvelope parses a response body. Type mismatches and missing required
// fields fail with a DecodeError. result is optional, but when present it must
// carry rows and metadata with column names and types; the metadata counters
// default to zero. Timestamps are kept as the service formats them; numeric
// row values decode as json.Number so large integers survive intact.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	top, err := requireFields(body, "execution envelope", envelopeFields)
	if err != nil {
		return nil, err
	}
	if raw, ok := top["result"]; ok && !isNull(raw) {
		res, err := requireFields(raw, "result", resultFields)
		if err != nil {
			return nil, err
		}
		if _, err := requireFields(res["metadata"], "result metadata", metadataFields); err != nil {
			return nil, err
		}
	}

	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, errors.Wrap(errors.DecodeError, "parse execution envelope", err)
	}
	return &env, nil
}

// requireFields decodes data as a JSON object and checks that each name is
// present and not null.
func requireFields(data json.RawMessage, what string, names []string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, errors.Wrap(errors.DecodeError, "parse "+what, err)
	}
	if obj == nil {
		return nil, errors.New(errors.DecodeError, what+" is null")
	}
	var missing []string
	for _, name := range names {
		if raw, ok := obj[name]; !ok || isNull(raw) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.DecodeError, fmt.Sprintf("%s missing %s", what, strings.Join(missing, ", ")))
	}
	return obj, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// apiError is the body the service sends with non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}
