// Package filestore persists session state in a single JSON file, optionally
// sealed with NaCl secretbox.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/storage"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var _ storage.Store = (*FileStore)(nil)

// FileStore keeps every key in one file. The file is re-read on every call so
// separate processes observe each other's writes; within a process calls are
// serialised.
type FileStore struct {
	path string
	key  *[keySize]byte
	lock sync.Mutex
}

// Option configures a FileStore
type Option func(*FileStore) error

// WithKey seals the file with the given 32 byte key
func WithKey(key []byte) Option {
	return func(fs *FileStore) error {
		if len(key) != keySize {
			return fmt.Errorf("[filestore WithKey] key must be %d bytes, got %d", keySize, len(key))
		}
		var k [keySize]byte
		copy(k[:], key)
		fs.key = &k
		return nil
	}
}

// WithHexKey is WithKey for a hex encoded key. An empty string leaves the file unsealed.
func WithHexKey(hexKey string) Option {
	return func(fs *FileStore) error {
		if hexKey == "" {
			return nil
		}
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return fmt.Errorf("[filestore WithHexKey] %w", err)
		}
		return WithKey(key)(fs)
	}
}

func New(path string, options ...Option) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("[filestore New] path is required")
	}
	fs := &FileStore{path: path}
	for _, opt := range options {
		if err := opt(fs); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func (fs *FileStore) Get(_ context.Context, key string) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (fs *FileStore) Set(_ context.Context, key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return err
	}
	values[key] = value
	return fs.save(values)
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return fs.save(values)
}

func (fs *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStorageUnavailable, "read %s: %v", fs.path, err)
	}
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	if fs.key != nil {
		if data, err = fs.open(data); err != nil {
			return nil, err
		}
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(errors.ErrStorageUnavailable, "decode %s: %v", fs.path, err)
	}
	return values, nil
}

func (fs *FileStore) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("[filestore save] encode: %w", err)
	}
	if fs.key != nil {
		if data, err = fs.seal(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(errors.ErrStorageUnavailable, "create %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrapf(errors.ErrStorageUnavailable, "create temp file: %v", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(errors.ErrStorageUnavailable, "write temp file: %v", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(errors.ErrStorageUnavailable, "chmod temp file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(errors.ErrStorageUnavailable, "close temp file: %v", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		return errors.Wrapf(errors.ErrStorageUnavailable, "replace %s: %v", fs.path, err)
	}
	return nil
}

func (fs *FileStore) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("[filestore seal] nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, fs.key), nil
}

func (fs *FileStore) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, errors.Wrapf(errors.ErrStorageUnavailable, "%s is not a sealed store", fs.path)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, fs.key)
	if !ok {
		return nil, errors.Wrapf(errors.ErrStorageUnavailable, "%s could not be unsealed", fs.path)
	}
	return plain, nil
}
