// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livyctl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Defaults.Language != "python" {
		t.Errorf("expected language=python, got %s", cfg.Defaults.Language)
	}
	if cfg.Polling.StartTimeout != 60*time.Second {
		t.Errorf("expected start_timeout=60s, got %s", cfg.Polling.StartTimeout)
	}
	if cfg.Sampling != session.DefaultSampling() {
		t.Errorf("expected default sampling, got %+v", cfg.Sampling)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when LIVYCTL_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "LIVYCTL_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err)
	}
}

func TestLoad_WithEnvVar(t *testing.T) {
	path := writeConfig(t, `
state_dir: /test/state
endpoints:
  prod:
    url: http://livy.example.com:8998
defaults:
  endpoint: prod
  language: scala
  session_config:
    driverMemory: 2g
    numExecutors: 4
    conf:
      spark.sql.shuffle.partitions: 64
polling:
  start_timeout: 2m
sampling:
  method: sample
  max_rows: 100
  fraction: 0.25
`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	if cfg.StateDir != "/test/state" {
		t.Errorf("expected state_dir=/test/state, got %s", cfg.StateDir)
	}
	if cfg.Polling.StartTimeout != 2*time.Minute {
		t.Errorf("expected start_timeout=2m, got %s", cfg.Polling.StartTimeout)
	}
	// Unset fields keep their defaults.
	if cfg.Polling.MaxInterval != 5*time.Second {
		t.Errorf("expected max_interval default, got %s", cfg.Polling.MaxInterval)
	}
	if cfg.Sampling.Method != session.SampleRandom || cfg.Sampling.MaxRows != 100 {
		t.Errorf("unexpected sampling %+v", cfg.Sampling)
	}

	sessionConfig, err := cfg.SessionConfig()
	if err != nil {
		t.Fatalf("SessionConfig() failed: %v", err)
	}
	if sessionConfig.DriverMemory != "2g" || sessionConfig.NumExecutors != 4 {
		t.Errorf("unexpected session config %+v", sessionConfig)
	}
	if sessionConfig.Conf["spark.sql.shuffle.partitions"] != "64" {
		t.Errorf("unexpected conf %v", sessionConfig.Conf)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("LIVYCTL_TEST_HOST", "livy.internal")

	tests := []struct {
		input string
		vars  map[string]string
		want  string
	}{
		{"${HOME}/state", map[string]string{"HOME": "/home/a"}, "/home/a/state"},
		{"http://${LIVYCTL_TEST_HOST}:8998", nil, "http://livy.internal:8998"},
		{"${LIVYCTL_TEST_UNSET:-fallback}", nil, "fallback"},
		{"${LIVYCTL_TEST_UNSET}", nil, ""},
		{"plain", nil, "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, test.vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestLoadFile_ExpandsStateInEndpoints(t *testing.T) {
	path := writeConfig(t, `
state_dir: /srv/livyctl
endpoints:
  main:
    url: http://livy:8998
    username: analyst
    password_file: ${LIVYCTL_STATE}/password
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Endpoints["main"].PasswordFile; got != "/srv/livyctl/password" {
		t.Errorf("password_file = %q", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.StateDir = ""
	cfg.LogLevel = "loud"
	cfg.Endpoints["broken"] = EndpointConfig{Auth: "kerberos"}
	cfg.Defaults.Endpoint = "missing"
	cfg.Defaults.Language = "cobol"
	cfg.Defaults.SessionConfig = map[string]any{"numExecutors": "many"}
	cfg.Retry.MaxAttempts = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		"state_dir is required",
		"log_level",
		"endpoints.broken.url is required",
		"endpoints.broken.auth",
		"defaults.endpoint",
		"defaults.language",
		"defaults.session_config",
		"retry.max_attempts",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error missing %q:\n%v", want, err)
		}
	}
}

func TestEndpoint(t *testing.T) {
	passwordPath := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(passwordPath, []byte("hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Endpoints["prod"] = EndpointConfig{URL: "http://livy.example.com:8998/", Username: "analyst", PasswordFile: passwordPath}
	cfg.Endpoints["dev"] = EndpointConfig{URL: "http://localhost:8998"}
	cfg.Defaults.Endpoint = "prod"

	ep, err := cfg.Endpoint("")
	if err != nil {
		t.Fatalf("Endpoint(\"\"): %v", err)
	}
	defer ep.Close()
	if ep.URL() != "http://livy.example.com:8998" || ep.Auth() != endpoint.AuthBasic {
		t.Errorf("endpoint = %s (auth %s)", ep.URL(), ep.Auth())
	}

	dev, err := cfg.Endpoint("dev")
	if err != nil {
		t.Fatalf("Endpoint(dev): %v", err)
	}
	if dev.Auth() != endpoint.AuthNone {
		t.Errorf("dev auth = %s, want none", dev.Auth())
	}

	if _, err := cfg.Endpoint("staging"); err == nil {
		t.Error("unknown endpoint name accepted")
	}

	cfg.Defaults.Endpoint = ""
	if _, err := cfg.Endpoint(""); err == nil {
		t.Error("ambiguous default endpoint accepted")
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		if _, err := ParseLogLevel(level); err != nil {
			t.Errorf("ParseLogLevel(%q): %v", level, err)
		}
	}
	if _, err := ParseLogLevel("trace"); err == nil {
		t.Error("ParseLogLevel(trace) succeeded")
	}
}
