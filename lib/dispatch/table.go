// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
)

// Table is a tabular query result. Every row has one value per column.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ParseTable reads a query payload. Two shapes are accepted: one JSON
// object per line (interpreter sessions), and a single
// {"schema": {"fields": [...]}, "data": [[...], ...]} document (sql
// sessions). An empty payload is an empty table.
func ParseTable(payload string) (*Table, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return &Table{}, nil
	}
	if table, ok, err := parseDocument(trimmed); ok || err != nil {
		return table, err
	}
	return parseLines(trimmed)
}

type schemaDocument struct {
	Schema *struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	} `json:"schema"`
	Data [][]any `json:"data"`
}

// parseDocument reports ok=false when payload is not a schema document,
// so the caller can try the line format.
func parseDocument(payload string) (*Table, bool, error) {
	if !strings.HasPrefix(payload, "{") {
		return nil, false, nil
	}
	var document schemaDocument
	decoder := json.NewDecoder(strings.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil || document.Schema == nil || decoder.More() {
		return nil, false, nil
	}
	table := &Table{Columns: make([]string, 0, len(document.Schema.Fields))}
	for _, field := range document.Schema.Fields {
		table.Columns = append(table.Columns, field.Name)
	}
	for index, row := range document.Data {
		if len(row) != len(table.Columns) {
			return nil, true, fmt.Errorf("row %d has %d values for %d columns", index, len(row), len(table.Columns))
		}
		table.Rows = append(table.Rows, row)
	}
	return table, true, nil
}

// parseLines reads one JSON object per line. Columns are the first
// row's keys in sorted order; keys first seen in later rows are
// appended, and rows without a key read it as null.
func parseLines(payload string) (*Table, error) {
	var records []map[string]any
	columns := make(map[string]bool)
	var order []string

	scanner := bufio.NewScanner(strings.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		decoder := json.NewDecoder(bytes.NewReader([]byte(text)))
		decoder.UseNumber()
		var record map[string]any
		if err := decoder.Decode(&record); err != nil {
			return nil, fmt.Errorf("line %d is not a JSON object: %w", line, err)
		}
		keys := make([]string, 0, len(record))
		for key := range record {
			if !columns[key] {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			columns[key] = true
			order = append(order, key)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	table := &Table{Columns: order}
	for _, record := range records {
		row := make([]any, len(order))
		for index, column := range order {
			row[index] = record[column]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// String renders the table as aligned plain text.
func (t *Table) String() string {
	var buffer bytes.Buffer
	writer := tabwriter.NewWriter(&buffer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for index, value := range row {
			cells[index] = formatCell(value)
		}
		fmt.Fprintln(writer, strings.Join(cells, "\t"))
	}
	writer.Flush()
	return buffer.String()
}

func formatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case json.Number:
		return typed.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
	return fmt.Sprint(value)
}
