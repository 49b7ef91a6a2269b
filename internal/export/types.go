// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"duners/cli/internal/render"

	"github.com/jackc/pgx/v5/pgtype"
)

// Postgres column types the sink creates.
const (
	pgText        = "text"
	pgDouble      = "double precision"
	pgBigint      = "bigint"
	pgNumeric     = "numeric"
	pgBoolean     = "boolean"
	pgDate        = "date"
	pgTimestamptz = "timestamptz"
	pgJSONB       = "jsonb"
)

// timestampLayouts are the formats the API uses for timestamp columns.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// PostgresType maps a result column type to the Postgres type used to store it.
func PostgresType(duneType string) string {
	t := strings.ToLower(strings.TrimSpace(duneType))
	switch {
	case t == "varchar" || t == "string" || t == "varbinary" || strings.HasPrefix(t, "char") || strings.HasPrefix(t, "varchar("):
		return pgText
	case t == "double" || t == "real" || t == "float":
		return pgDouble
	case t == "bigint" || t == "integer" || t == "int" || t == "smallint" || t == "tinyint":
		return pgBigint
	case strings.HasPrefix(t, "decimal") || strings.HasPrefix(t, "numeric") ||
		t == "uint256" || t == "int256":
		return pgNumeric
	case t == "boolean":
		return pgBoolean
	case t == "date":
		return pgDate
	case strings.HasPrefix(t, "timestamp"):
		return pgTimestamptz
	default:
		// array(...), map(...), row(...), json and anything new
		return pgJSONB
	}
}

// convert turns a decoded JSON value into something pgx can encode for pgType.
func convert(pgType string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch pgType {
	case pgText:
		return render.Cell(v), nil
	case pgDouble:
		switch n := v.(type) {
		case json.Number:
			return n.Float64()
		case float64:
			return n, nil
		case string:
			return strconv.ParseFloat(n, 64)
		}
	case pgBigint:
		switch n := v.(type) {
		case json.Number:
			return n.Int64()
		case float64:
			return int64(n), nil
		case string:
			return strconv.ParseInt(n, 10, 64)
		}
	case pgNumeric:
		var num pgtype.Numeric
		if err := num.Scan(render.Cell(v)); err != nil {
			return nil, err
		}
		return num, nil
	case pgBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
	case pgDate:
		if s, ok := v.(string); ok {
			return time.Parse(time.DateOnly, s)
		}
	case pgTimestamptz:
		if s, ok := v.(string); ok {
			return parseTimestamp(s)
		}
	case pgJSONB:
		return json.Marshal(v)
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, pgType)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
