// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statefile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/livyctl/lib/codec"
	"github.com/bureau-foundation/livyctl/lib/secret"
	"github.com/bureau-foundation/livyctl/lib/session"
)

func testKey(t *testing.T, fill byte) *Key {
	t.Helper()
	master, err := secret.NewFromBytes(bytes.Repeat([]byte{fill}, KeySize))
	if err != nil {
		t.Fatal(err)
	}
	key, err := NewKey(master)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

func sampleState() State {
	id := 7
	return State{
		EndpointIdentity: "3f2a9c",
		SessionName:      "analysis",
		Language:         session.LanguageScala,
		Config: session.Config{
			Kind:         session.KindSpark,
			DriverMemory: "2g",
			Conf:         map[string]string{"spark.sql.shuffle.partitions": "64"},
			Extra:        map[string]any{"ttl": "1h"},
		},
		Started: true,
		Sessions: []session.View{{
			Name:             "analysis",
			EndpointURL:      "http://livy:8998",
			EndpointIdentity: "3f2a9c",
			RemoteID:         &id,
			Kind:             session.KindSpark,
			State:            session.StateIdle,
			AppID:            "application_1_0007",
		}},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	key := testKey(t, 1)
	state := sampleState()

	if err := Write(path, key, state); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.Version != Version {
		t.Errorf("Version = %d, want %d", got.Version, Version)
	}
	if got.SessionName != "analysis" || got.Language != session.LanguageScala || !got.Started {
		t.Errorf("header = %+v", got)
	}
	if got.Config.DriverMemory != "2g" || got.Config.Conf["spark.sql.shuffle.partitions"] != "64" {
		t.Errorf("Config = %+v", got.Config)
	}
	if got.Config.Extra["ttl"] != "1h" {
		t.Errorf("Config.Extra = %v", got.Config.Extra)
	}
	if len(got.Sessions) != 1 {
		t.Fatalf("Sessions = %+v", got.Sessions)
	}
	if id, ok := got.Sessions[0].ID(); !ok || id != 7 {
		t.Errorf("Sessions[0].ID() = %d, %v", id, ok)
	}
	if got.Sessions[0].State != session.StateIdle {
		t.Errorf("Sessions[0].State = %s", got.Sessions[0].State)
	}
	if !got.UpdatedAt.Equal(state.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, state.UpdatedAt)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteEncodingIsDeterministic(t *testing.T) {
	directory := t.TempDir()
	key := testKey(t, 1)
	first := filepath.Join(directory, "a.cbor")
	second := filepath.Join(directory, "b.cbor")
	if err := Write(first, key, sampleState()); err != nil {
		t.Fatal(err)
	}
	if err := Write(second, key, sampleState()); err != nil {
		t.Fatal(err)
	}
	a, err := ReadRaw(first, key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ReadRaw(second, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical states encoded differently")
	}
}

func TestWriteSealsState(t *testing.T) {
	directory := t.TempDir()
	key := testKey(t, 1)
	path := filepath.Join(directory, "state.cbor")
	if err := Write(path, key, sampleState()); err != nil {
		t.Fatal(err)
	}
	sealed, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, plain := range []string{"analysis", "application_1_0007", "spark.sql.shuffle.partitions"} {
		if bytes.Contains(sealed, []byte(plain)) {
			t.Errorf("sealed file contains %q in the clear", plain)
		}
	}

	t.Run("rewrite uses a fresh nonce", func(t *testing.T) {
		if err := Write(path, key, sampleState()); err != nil {
			t.Fatal(err)
		}
		again, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Equal(sealed, again) {
			t.Error("two writes of the same state produced identical ciphertext")
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		if _, err := Read(path, testKey(t, 2)); err == nil {
			t.Error("Read with another key succeeded")
		}
	})

	t.Run("file moved to another session's path", func(t *testing.T) {
		moved := filepath.Join(directory, "other.cbor")
		if err := os.WriteFile(moved, sealed, 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Read(moved, key); err == nil {
			t.Error("Read of a file sealed for another name succeeded")
		}
	})

	t.Run("modified byte", func(t *testing.T) {
		tampered := bytes.Clone(sealed)
		tampered[len(tampered)-1] ^= 0x01
		if err := os.WriteFile(path, tampered, 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Read(path, key); err == nil {
			t.Error("Read of a modified file succeeded")
		}
	})
}

func TestLoadKey(t *testing.T) {
	directory := filepath.Join(t.TempDir(), "state")
	first, err := LoadKey(directory)
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	defer first.Close()

	info, err := os.Stat(filepath.Join(directory, KeyFileName))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 || info.Size() != KeySize {
		t.Errorf("key file mode %v size %d, want 0600 and %d", info.Mode().Perm(), info.Size(), KeySize)
	}

	path := filepath.Join(directory, "state.cbor")
	if err := Write(path, first, sampleState()); err != nil {
		t.Fatal(err)
	}
	second, err := LoadKey(directory)
	if err != nil {
		t.Fatalf("second LoadKey: %v", err)
	}
	defer second.Close()
	if _, err := Read(path, second); err != nil {
		t.Errorf("reloaded key cannot open the file: %v", err)
	}

	if err := os.WriteFile(filepath.Join(directory, KeyFileName), []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKey(directory); err == nil {
		t.Error("LoadKey accepted a short key file")
	}
}

func TestNewKeyRejectsWrongSize(t *testing.T) {
	master, err := secret.NewFromString("too short")
	if err != nil {
		t.Fatal(err)
	}
	defer master.Close()
	if _, err := NewKey(master); err == nil {
		t.Error("NewKey accepted a short master key")
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.cbor"), testKey(t, 1))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read(missing) error = %v, want os.ErrNotExist", err)
	}
}

func TestReadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	key := testKey(t, 1)
	data, err := codec.Marshal(map[string]any{"version": Version + 1})
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := key.seal(fileName(path), data)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path, key); err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("Read(newer) error = %v", err)
	}
}

func TestReadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	if err := os.WriteFile(path, []byte("not a sealed state file at all"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path, testKey(t, 1)); err == nil {
		t.Error("Read(corrupt) succeeded")
	}
}

func TestLoad(t *testing.T) {
	directory := t.TempDir()
	key := testKey(t, 1)

	t.Run("missing file is empty state", func(t *testing.T) {
		state, err := Load(directory, key, "3f2a9c", "fresh")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if state.SessionName != "fresh" || state.EndpointIdentity != "3f2a9c" || state.Started {
			t.Errorf("empty state = %+v", state)
		}
	})

	t.Run("round trip through Path", func(t *testing.T) {
		state := sampleState()
		if err := Write(Path(directory, state.EndpointIdentity, state.SessionName), key, state); err != nil {
			t.Fatal(err)
		}
		got, err := Load(directory, key, state.EndpointIdentity, state.SessionName)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !got.Started || len(got.Sessions) != 1 {
			t.Errorf("loaded state = %+v", got)
		}
	})

	t.Run("mismatched owner rejected", func(t *testing.T) {
		state := sampleState()
		state.SessionName = "other"
		if err := Write(Path(directory, "3f2a9c", "victim"), key, state); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(directory, key, "3f2a9c", "victim"); err == nil {
			t.Error("Load accepted a file written for another session")
		}
	})
}

func TestPath(t *testing.T) {
	a := Path("/state", "endpoint-a", "main")
	b := Path("/state", "endpoint-b", "main")
	c := Path("/state", "endpoint-a", "other")
	if a == b || a == c {
		t.Errorf("paths collide: %s %s %s", a, b, c)
	}
	if a != Path("/state", "endpoint-a", "main") {
		t.Error("Path is not stable")
	}
	if filepath.Dir(a) != "/state" || !strings.HasSuffix(a, ".cbor") {
		t.Errorf("Path = %s", a)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	if err := Clear(path); err != nil {
		t.Errorf("Clear(missing) = %v", err)
	}
	if err := Write(path, testKey(t, 1), sampleState()); err != nil {
		t.Fatal(err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
}

func TestList(t *testing.T) {
	directory := t.TempDir()
	key := testKey(t, 1)
	for _, name := range []string{"one", "two"} {
		state := sampleState()
		state.SessionName = name
		if err := Write(Path(directory, state.EndpointIdentity, name), key, state); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(directory, "junk.cbor"), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}

	states, err := List(directory, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Errorf("List returned %d states, want 2", len(states))
	}

	empty, err := List(filepath.Join(directory, "absent"), key)
	if err != nil || len(empty) != 0 {
		t.Errorf("List(missing) = %v, %v", empty, err)
	}
}
