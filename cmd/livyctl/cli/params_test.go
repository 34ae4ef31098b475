// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

type connectionParams struct {
	Endpoint string `flag:"endpoint,e" desc:"endpoint"`
}

type allTypesParams struct {
	connectionParams
	Name     string        `flag:"name,n" desc:"session name" default:"main"`
	Force    bool          `flag:"force,f" desc:"confirm"`
	MaxRows  int           `flag:"max-rows" desc:"row limit" default:"-1"`
	Fraction float64       `flag:"fraction" desc:"sample fraction" default:"0.1"`
	Timeout  time.Duration `flag:"timeout" desc:"timeout" default:"30s"`
	Files    []string      `flag:"file" desc:"files"`
	Ignored  string
}

func TestBindFlags_Defaults(t *testing.T) {
	var params allTypesParams
	flagSet := FlagsFromParams("test", &params)
	if err := flagSet.Parse(nil); err != nil {
		t.Fatal(err)
	}

	if params.Name != "main" {
		t.Errorf("Name = %q, want main", params.Name)
	}
	if params.MaxRows != -1 {
		t.Errorf("MaxRows = %d, want -1", params.MaxRows)
	}
	if params.Fraction != 0.1 {
		t.Errorf("Fraction = %v, want 0.1", params.Fraction)
	}
	if params.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", params.Timeout)
	}
	if flagSet.Lookup("ignored") != nil {
		t.Error("untagged field was bound")
	}
}

func TestBindFlags_Parse(t *testing.T) {
	var params allTypesParams
	flagSet := FlagsFromParams("test", &params)
	err := flagSet.Parse([]string{
		"-e", "url=http://livy:8998",
		"-n", "analysis",
		"-f",
		"--max-rows", "10",
		"--fraction", "0.5",
		"--timeout", "2m",
		"--file", "a.py", "--file", "b.py",
	})
	if err != nil {
		t.Fatal(err)
	}

	if params.Endpoint != "url=http://livy:8998" {
		t.Errorf("Endpoint (embedded) = %q", params.Endpoint)
	}
	if params.Name != "analysis" || !params.Force || params.MaxRows != 10 {
		t.Errorf("params = %+v", params)
	}
	if params.Fraction != 0.5 || params.Timeout != 2*time.Minute {
		t.Errorf("params = %+v", params)
	}
	if strings.Join(params.Files, ",") != "a.py,b.py" {
		t.Errorf("Files = %v", params.Files)
	}
}

type selfBinding struct {
	level string
}

func (s *selfBinding) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&s.level, "log-level", "info", "log level")
}

func TestBindFlags_FlagBinder(t *testing.T) {
	var params struct {
		Logging selfBinding
	}
	flagSet := FlagsFromParams("test", &params)
	if err := flagSet.Parse([]string{"--log-level", "debug"}); err != nil {
		t.Fatal(err)
	}
	if params.Logging.level != "debug" {
		t.Errorf("level = %q, want debug", params.Logging.level)
	}
}

func TestBindFlags_Errors(t *testing.T) {
	if err := BindFlags(allTypesParams{}, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("non-pointer params accepted")
	}

	var unsupported struct {
		Values map[string]string `flag:"values"`
	}
	if err := BindFlags(&unsupported, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("unsupported field type accepted")
	}

	var badDefault struct {
		Count int `flag:"count" default:"many"`
	}
	if err := BindFlags(&badDefault, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("unparseable default accepted")
	}
}
