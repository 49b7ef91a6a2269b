// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cache persists completed execution envelopes on disk.
//
// Layout: <root>/<identity>/<query id>, one file per query holding the raw
// response body exactly as the service sent it. The query client only writes;
// Load and List exist for operators inspecting the cache from the CLI.
// Entries are never expired or evicted.
package cache

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"duners/cli/internal/errors"
	"duners/cli/internal/xdg"
)

// ErrNotFound is returned by Load when no entry exists.
var ErrNotFound = stderrors.New("cache: entry not found")

// Store is a file-backed result cache rooted at a directory.
// It is safe for concurrent use; writes to one entry are last-write-wins.
type Store struct {
	root string
}

// NewStore returns a store rooted at root. Nothing is created until Save.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// DefaultRoot returns ~/.duners/cache.
func DefaultRoot() (string, error) {
	return xdg.CacheDir()
}

// Root returns the directory the store writes under.
func (s *Store) Root() string { return s.root }

// Path returns where the entry for (identity, key) lives.
func (s *Store) Path(identity, key string) string {
	return filepath.Join(s.root, identity, key)
}

// Save writes data as the entry for (identity, key), replacing any previous
// content. The per-identity directory is created on demand.
func (s *Store) Save(identity, key string, data []byte) error {
	if err := validName("identity", identity); err != nil {
		return err
	}
	if err := validName("key", key); err != nil {
		return err
	}

	dir := filepath.Join(s.root, identity)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(errors.StorageError, "create cache directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+key+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.StorageError, "create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(errors.StorageError, fmt.Sprintf("write %s", key), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(errors.StorageError, fmt.Sprintf("close %s", key), err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, key)); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(errors.StorageError, fmt.Sprintf("replace %s", key), err)
	}
	return nil
}

// Load returns the stored bytes for (identity, key).
func (s *Store) Load(identity, key string) ([]byte, error) {
	if err := validName("identity", identity); err != nil {
		return nil, err
	}
	if err := validName("key", key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(identity, key))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(errors.StorageError, fmt.Sprintf("read %s", key), err)
	}
	return data, nil
}

// List returns the cached keys for identity in lexical order.
func (s *Store) List(identity string) ([]string, error) {
	if err := validName("identity", identity); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, identity))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.StorageError, "list cache", err)
	}
	var keys []string
	for _, e := range entries {
		// skip directories and in-flight temp files
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// validName rejects anything that would escape the store's directory.
func validName(what, name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return errors.New(errors.StorageError, fmt.Sprintf("invalid cache %s %q", what, name))
	}
	return nil
}
