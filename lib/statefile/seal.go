// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statefile

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/livyctl/lib/secret"
)

// KeySize is the size in bytes of the master key and of every derived
// per-file key.
const KeySize = 32

// KeyFileName is the master key file under the state directory.
const KeyFileName = "state.key"

// sealedVersion prefixes every sealed file and is authenticated with
// it, so a tampered version byte fails to open.
const sealedVersion byte = 0x01

// sealedOverhead is 1 (version) + 24 (XChaCha20 nonce) + 16 (tag).
const sealedOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfo separates state file keys from any other use of the master
// key. Changing it invalidates every existing state file.
var hkdfInfo = []byte("livyctl.statefile.v1")

// Key seals and opens state files. Each file is encrypted under its
// own key, derived with HKDF-SHA256 from the master key and the file's
// name, and the name is authenticated, so a file copied over another
// session's path does not open.
type Key struct {
	master *secret.Buffer
}

// NewKey wraps master, which must be KeySize bytes. The Key takes
// ownership of master and closes it in Close.
func NewKey(master *secret.Buffer) (*Key, error) {
	if master == nil || master.Len() != KeySize {
		return nil, fmt.Errorf("state key must be %d bytes", KeySize)
	}
	return &Key{master: master}, nil
}

// LoadKey reads the master key from dir, creating dir and a fresh
// random key on first use. The key file has mode 0600.
func LoadKey(dir string) (*Key, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, KeyFileName)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = createKeyFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading state key: %w", err)
	}
	if len(data) != KeySize {
		secret.Zero(data)
		return nil, fmt.Errorf("state key %s is %d bytes, want %d", path, len(data), KeySize)
	}
	master, err := secret.NewFromBytes(data)
	if err != nil {
		return nil, err
	}
	return NewKey(master)
}

// createKeyFile writes a random key with O_EXCL. When another process
// won the race, its key is read instead.
func createKeyFile(path string) ([]byte, error) {
	data := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		return nil, fmt.Errorf("generating state key: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		secret.Zero(data)
		return os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return data, nil
}

// Close zeroes the master key.
func (k *Key) Close() error {
	return k.master.Close()
}

// derive returns the per-file key for the file named name.
func (k *Key) derive(name string) (*secret.Buffer, error) {
	info := make([]byte, 0, len(hkdfInfo)+len(name))
	info = append(info, hkdfInfo...)
	info = append(info, name...)

	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, k.master.Bytes(), nil, info), derived); err != nil {
		return nil, fmt.Errorf("deriving state file key: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// seal encrypts plaintext for the file named name:
//
//	[version: 1 byte] [nonce: 24 bytes] [ciphertext+tag]
func (k *Key) seal(name string, plaintext []byte) ([]byte, error) {
	fileKey, err := k.derive(name)
	if err != nil {
		return nil, err
	}
	defer fileKey.Close()

	aead, err := chacha20poly1305.NewX(fileKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	blob := make([]byte, 1+chacha20poly1305.NonceSizeX, sealedOverhead+len(plaintext))
	blob[0] = sealedVersion
	if _, err := io.ReadFull(rand.Reader, blob[1:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(blob, blob[1:], plaintext, additionalData(name)), nil
}

// open reverses seal. Any tampering, a wrong key, or a file sealed for
// another name is an error.
func (k *Key) open(name string, blob []byte) ([]byte, error) {
	if len(blob) < sealedOverhead {
		return nil, fmt.Errorf("sealed state is %d bytes, shorter than the %d byte envelope", len(blob), sealedOverhead)
	}
	if blob[0] != sealedVersion {
		return nil, fmt.Errorf("sealed state has version %d, want %d", blob[0], sealedVersion)
	}
	fileKey, err := k.derive(name)
	if err != nil {
		return nil, err
	}
	defer fileKey.Close()

	aead, err := chacha20poly1305.NewX(fileKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], additionalData(name))
	if err != nil {
		return nil, errors.New("state file failed authentication: wrong key or modified file")
	}
	return plaintext, nil
}

func additionalData(name string) []byte {
	aad := make([]byte, 0, 1+len(name))
	aad = append(aad, sealedVersion)
	return append(aad, name...)
}
