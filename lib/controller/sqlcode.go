// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/livyctl/lib/fault"
	"github.com/bureau-foundation/livyctl/lib/livy"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// queryContext is the interpreter object a query runs through.
type queryContext int

const (
	contextSQL queryContext = iota
	contextHive
)

// queryStatement renders query as a statement for a session of kind.
// Interpreter sessions print one JSON object per row; sql sessions run
// the query as-is and answer with a schema-and-data document.
func queryStatement(kind session.Kind, via queryContext, query string, sampling session.Sampling) (livy.StatementRequest, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return livy.StatementRequest{}, fault.Usage("query is empty")
	}
	if err := sampling.Validate(); err != nil {
		return livy.StatementRequest{}, err
	}

	literal, err := stringLiteral(query)
	if err != nil {
		return livy.StatementRequest{}, err
	}

	var code string
	switch kind {
	case session.KindPySpark:
		code = pysparkQuery(via, literal, sampling)
	case session.KindSpark:
		code = scalaQuery(via, literal, sampling)
	case session.KindSparkR:
		code = sparkRQuery(literal, sampling)
	case session.KindSQL:
		code = query
	default:
		return livy.StatementRequest{}, fault.Usage("cannot run a query in a session of kind %q", kind)
	}
	return livy.StatementRequest{Code: code}, nil
}

// stringLiteral quotes text as a double-quoted literal that Python,
// Scala and R all read back unchanged.
func stringLiteral(text string) (string, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(text); err != nil {
		return "", fmt.Errorf("quoting query: %w", err)
	}
	return strings.TrimSuffix(buffer.String(), "\n"), nil
}

func pysparkQuery(via queryContext, literal string, sampling session.Sampling) string {
	source := "spark"
	if via == contextHive {
		source = "sqlContext"
	}
	rows := fmt.Sprintf("%s.sql(%s).toJSON()", source, literal)
	if sampling.Method == session.SampleRandom {
		rows += fmt.Sprintf(".sample(False, %s)", formatFraction(sampling.Fraction))
	}
	if sampling.MaxRows >= 0 {
		rows += fmt.Sprintf(".take(%d)", sampling.MaxRows)
	} else {
		rows += ".collect()"
	}
	return fmt.Sprintf("for _livyctl_row in %s:\n    print(_livyctl_row)", rows)
}

func scalaQuery(via queryContext, literal string, sampling session.Sampling) string {
	source := "spark"
	if via == contextHive {
		source = "sqlContext"
	}
	rows := fmt.Sprintf("%s.sql(%s).toJSON", source, literal)
	if sampling.Method == session.SampleRandom {
		rows += fmt.Sprintf(".sample(false, %s)", formatFraction(sampling.Fraction))
	}
	if sampling.MaxRows >= 0 {
		rows += fmt.Sprintf(".take(%d)", sampling.MaxRows)
	} else {
		rows += ".collect()"
	}
	return rows + ".foreach(println)"
}

func sparkRQuery(literal string, sampling session.Sampling) string {
	frame := fmt.Sprintf("sql(%s)", literal)
	if sampling.Method == session.SampleRandom {
		frame = fmt.Sprintf("sample(%s, FALSE, %s)", frame, formatFraction(sampling.Fraction))
	}
	if sampling.MaxRows >= 0 {
		frame = fmt.Sprintf("limit(%s, %d)", frame, sampling.MaxRows)
	}
	return fmt.Sprintf("for (livyctl_row in collect(toJSON(%s))$value) { cat(livyctl_row, \"\\n\", sep = \"\") }", frame)
}

func formatFraction(fraction float64) string {
	return strconv.FormatFloat(fraction, 'g', -1, 64)
}
