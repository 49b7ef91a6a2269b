// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package render prints query results in the formats the CLI supports.
// Columns follow the order in the result metadata, not map iteration order.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"duners/cli/internal/dune"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
	CSV   Format = "csv"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Table, JSON, YAML, CSV:
		return f, nil
	case "":
		return Table, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, yaml or csv)", s)
	}
}

// Rows writes rows to w. columns fixes the column order; when empty the
// sorted union of row keys is used.
func Rows(w io.Writer, f Format, columns []string, rows []dune.Row) error {
	if len(columns) == 0 {
		columns = columnsOf(rows)
	}
	switch f {
	case JSON:
		return writeJSON(w, rows)
	case YAML:
		return writeYAML(w, columns, rows)
	case CSV:
		return writeCSV(w, columns, rows)
	default:
		return writeTable(w, columns, rows)
	}
}

// Result writes a result payload using its metadata for column order.
func Result(w io.Writer, f Format, res *dune.Result) error {
	if res == nil {
		return Rows(w, f, nil, nil)
	}
	return Rows(w, f, res.Metadata.ColumnNames, res.Rows)
}

func columnsOf(rows []dune.Row) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func writeTable(w io.Writer, columns []string, rows []dune.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	data := pterm.TableData{columns}
	for _, r := range rows {
		line := make([]string, len(columns))
		for i, c := range columns {
			line[i] = Cell(r[c])
		}
		data = append(data, line)
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func writeJSON(w io.Writer, rows []dune.Row) error {
	if rows == nil {
		rows = []dune.Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeCSV(w io.Writer, columns []string, rows []dune.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range rows {
		line := make([]string, len(columns))
		for i, c := range columns {
			line[i] = Cell(r[c])
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeYAML(w io.Writer, columns []string, rows []dune.Row) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range columns {
			v, ok := r[c]
			if !ok {
				continue
			}
			val, err := yamlValue(v)
			if err != nil {
				return err
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c}, val)
		}
		doc.Content = append(doc.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// yamlValue keeps json.Number values numeric instead of quoting them.
func yamlValue(v any) (*yaml.Node, error) {
	if n, ok := v.(json.Number); ok {
		tag := "!!int"
		if strings.ContainsAny(string(n), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(n)}, nil
	}
	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	return node, nil
}

// Cell renders one value for table and CSV output.
func Cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
