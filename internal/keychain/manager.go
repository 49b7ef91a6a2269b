// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for duners.
// It stores the Dune API key saved by `duners login` and the Postgres DSN saved
// by `duners connect`. Nothing stored here is ever written to the result cache.
//
// macOS uses the native `security` command when available; other platforms go
// through github.com/99designs/keyring with native backends only.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("keychain: key not found")

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "duners"

// Keys used for storing secrets in the OS keychain.
const (
	KeyAPIKey    = "dune_api_key"
	KeyExportDSN = "export_dsn"
)

// store is the minimal string key/value contract both backends implement.
type store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu    sync.RWMutex
	store store
}

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		if backend, err := newSecurityBackend(); err == nil {
			return &Manager{store: backend}, nil
		}
		// Fall through to keyring library if security command fails
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithKeyring(ring), nil
}

// NewWithKeyring wraps an already opened keyring, e.g. keyring.NewArrayKeyring in tests.
func NewWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{store: ringStore{ring: ring}}
}

// GetManager returns the global keychain manager instance.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}
	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// pass is the fallback when the login keychain is locked down (macOS 26+)
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on this OS")
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

// SaveAPIKey stores the Dune API key.
func (m *Manager) SaveAPIKey(key string) error {
	if key == "" {
		return errors.New("empty API key")
	}
	return m.set(KeyAPIKey, key)
}

// LoadAPIKey retrieves the Dune API key; ErrNotFound when none is stored.
func (m *Manager) LoadAPIKey() (string, error) {
	return m.get(KeyAPIKey)
}

// ClearAPIKey removes the stored API key.
func (m *Manager) ClearAPIKey() error {
	return m.del(KeyAPIKey)
}

// SaveExportDSN stores the Postgres DSN used by the export sink.
func (m *Manager) SaveExportDSN(dsn string) error {
	return m.set(KeyExportDSN, dsn)
}

// LoadExportDSN retrieves the export DSN; ErrNotFound when none is stored.
func (m *Manager) LoadExportDSN() (string, error) {
	return m.get(KeyExportDSN)
}

// ClearExportDSN removes the stored export DSN.
func (m *Manager) ClearExportDSN() error {
	return m.del(KeyExportDSN)
}

// ClearAll removes every secret duners stores.
func (m *Manager) ClearAll() error {
	return errors.Join(m.ClearAPIKey(), m.ClearExportDSN())
}

func (m *Manager) set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(key, value)
}

func (m *Manager) get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, err := m.store.Get(key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Manager) del(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(key)
}

// ringStore adapts keyring.Keyring to store.
type ringStore struct {
	ring keyring.Keyring
}

func (r ringStore) Set(key, value string) error {
	return r.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (r ringStore) Get(key string) (string, error) {
	it, err := r.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (r ringStore) Delete(key string) error {
	err := r.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
