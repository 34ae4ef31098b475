// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statefile

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/livyctl/lib/codec"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// Version is the current state file format. Files with a newer version
// are rejected rather than misread.
const Version = 1

// State is what one livyctl invocation leaves for the next.
type State struct {
	Version int `cbor:"version"`

	// EndpointIdentity is the fingerprint of the endpoint the state
	// belongs to. Load rejects a file whose identity does not match.
	EndpointIdentity string `cbor:"endpoint_identity"`

	SessionName string           `cbor:"session_name"`
	Language    session.Language `cbor:"language,omitempty"`
	Config      session.Config   `cbor:"config"`

	// Started mirrors the kernel's started flag.
	Started bool `cbor:"started"`

	// Sessions is the controller snapshot for this endpoint.
	Sessions []session.View `cbor:"sessions,omitempty"`

	UpdatedAt time.Time `cbor:"updated_at"`
}

// Path returns the state file for (endpointIdentity, sessionName) under
// dir. The file name is a hash of both, so session names need no
// escaping.
func Path(dir, endpointIdentity, sessionName string) string {
	sum := blake3.Sum256([]byte(endpointIdentity + "\x00" + sessionName))
	return filepath.Join(dir, hex.EncodeToString(sum[:12])+".cbor")
}

// fileName is what a state file's key and authentication are bound
// to: its base name without the extension.
func fileName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Write atomically replaces the state file at path, sealed under key.
// The parent directory must already exist. The file is created with
// mode 0600.
func Write(path string, key *Key, state State) error {
	state.Version = Version
	plaintext, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	data, err := key.seal(fileName(path), plaintext)
	if err != nil {
		return fmt.Errorf("sealing state: %w", err)
	}

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// ReadRaw opens the state file at path and returns its CBOR encoding.
// When the file does not exist the returned error wraps os.ErrNotExist.
func ReadRaw(path string, key *Key) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := key.open(fileName(path), blob)
	if err != nil {
		return nil, fmt.Errorf("opening state file %s: %w", path, err)
	}
	return data, nil
}

// Read decodes the state file at path. When the file does not exist the
// returned error wraps os.ErrNotExist.
func Read(path string, key *Key) (State, error) {
	data, err := ReadRaw(path, key)
	if err != nil {
		return State{}, err
	}

	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	if state.Version > Version {
		return State{}, fmt.Errorf("state file %s has version %d, this build reads up to %d", path, state.Version, Version)
	}
	return state, nil
}

// Load reads the state for (endpointIdentity, sessionName) under dir.
// A missing file yields an empty State for that pair.
func Load(dir string, key *Key, endpointIdentity, sessionName string) (State, error) {
	empty := State{Version: Version, EndpointIdentity: endpointIdentity, SessionName: sessionName}

	path := Path(dir, endpointIdentity, sessionName)
	state, err := Read(path, key)
	if errors.Is(err, os.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return State{}, err
	}
	if state.EndpointIdentity != endpointIdentity || state.SessionName != sessionName {
		return State{}, fmt.Errorf("state file %s belongs to session %q on endpoint %s", path, state.SessionName, state.EndpointIdentity)
	}
	return state, nil
}

// Clear removes a state file. Returns nil when it does not exist.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// List returns every state file under dir that opens with key.
// Unreadable files are skipped; a missing dir yields nothing.
func List(dir string, key *Key) ([]State, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.cbor"))
	if err != nil {
		return nil, err
	}
	var states []State
	for _, match := range matches {
		state, err := Read(match, key)
		if err != nil {
			continue
		}
		states = append(states, state)
	}
	return states, nil
}
