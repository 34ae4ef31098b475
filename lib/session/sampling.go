// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "github.com/bureau-foundation/livyctl/lib/fault"

// SamplingMethod selects how rows are drawn from a query result before
// they are shipped back.
type SamplingMethod string

const (
	// SampleTake returns the first MaxRows rows.
	SampleTake SamplingMethod = "take"
	// SampleRandom draws a Bernoulli sample of Fraction, then applies
	// MaxRows.
	SampleRandom SamplingMethod = "sample"
)

// Sampling bounds the rows a SQL or Hive query returns. A negative
// MaxRows returns every row.
type Sampling struct {
	Method   SamplingMethod `yaml:"method" json:"method"`
	MaxRows  int            `yaml:"max_rows" json:"max_rows"`
	Fraction float64        `yaml:"fraction" json:"fraction"`
}

// DefaultSampling takes the first 2500 rows.
func DefaultSampling() Sampling {
	return Sampling{Method: SampleTake, MaxRows: 2500, Fraction: 0.1}
}

// Validate checks the method and the fraction range.
func (s Sampling) Validate() error {
	switch s.Method {
	case SampleTake:
	case SampleRandom:
		if s.Fraction <= 0 || s.Fraction > 1 {
			return fault.Usage("sampling fraction must be in (0, 1], got %v", s.Fraction)
		}
	default:
		return fault.Usage("unknown sampling method %q (accepted: %s, %s)", s.Method, SampleTake, SampleRandom)
	}
	return nil
}
