// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package credential resolves the caller's Dune API key and derives the
// identity used to namespace the result cache.
//
// Resolution is a pure function of its Options: the environment lookup, the
// dotfile location and the keychain are passed in, so the query client never
// reads process globals itself.
package credential

import (
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"os"

	"duners/cli/internal/errors"
	"duners/cli/internal/keychain"
	"duners/cli/internal/logging"

	"github.com/joho/godotenv"
)

// EnvVar is the environment variable holding the API key.
const EnvVar = "DUNE_API_KEY"

// DefaultDotfile is read from the working directory when present.
const DefaultDotfile = ".env"

// Credential is an opaque API key. String masks it so it is safe in %v.
type Credential string

func (c Credential) String() string { return logging.MaskSecret(string(c)) }

// Identity returns the cache namespace for c: the lowercase hex encoding of
// its raw bytes. Equal credentials always yield equal identities.
func Identity(c Credential) string {
	return hex.EncodeToString([]byte(c))
}

// Source says where a credential came from.
type Source string

const (
	SourceEnv      Source = "environment"
	SourceDotfile  Source = "dotfile"
	SourceKeychain Source = "keychain"
)

// KeySource is satisfied by *keychain.Manager.
type KeySource interface {
	LoadAPIKey() (string, error)
}

// Options controls where Resolve looks.
type Options struct {
	// LookupEnv reads the process environment; nil means no environment.
	LookupEnv func(string) (string, bool)
	// Dotfile is a KEY=VALUE file consulted when the variable is unset. Empty skips it.
	Dotfile string
	// Keychain is consulted last; nil skips it.
	Keychain KeySource
}

// DefaultOptions binds Options to the real process environment, ./.env and
// the OS keychain (when one is available).
func DefaultOptions() Options {
	opts := Options{
		LookupEnv: os.LookupEnv,
		Dotfile:   DefaultDotfile,
	}
	if km, err := keychain.GetManager(); err == nil {
		opts.Keychain = km
	}
	return opts
}

// Resolved is a credential plus its origin.
type Resolved struct {
	Credential Credential
	Source     Source
}

// Resolve returns the first non-empty API key from the environment, the
// dotfile and the keychain, in that order. A real environment variable always
// wins over the dotfile. Values are used exactly as found, since the cache
// identity is derived from the raw bytes. An unreadable or malformed dotfile
// is skipped.
func Resolve(opts Options) (Resolved, error) {
	if opts.LookupEnv != nil {
		if v, ok := opts.LookupEnv(EnvVar); ok && v != "" {
			return Resolved{Credential: Credential(v), Source: SourceEnv}, nil
		}
	}

	if opts.Dotfile != "" {
		vals, err := godotenv.Read(opts.Dotfile)
		switch {
		case err == nil:
			if v := vals[EnvVar]; v != "" {
				return Resolved{Credential: Credential(v), Source: SourceDotfile}, nil
			}
		case stderrors.Is(err, os.ErrNotExist):
			// optional
		default:
			log := logging.Default()
			log.Debug("ignoring dotfile", log.Args("path", opts.Dotfile, "error", err.Error()))
		}
	}

	if opts.Keychain != nil {
		v, err := opts.Keychain.LoadAPIKey()
		if err == nil && v != "" {
			return Resolved{Credential: Credential(v), Source: SourceKeychain}, nil
		}
		if err != nil && !stderrors.Is(err, keychain.ErrNotFound) {
			logging.Default().Debug("keychain lookup failed", logging.Default().Args("error", err.Error()))
		}
	}

	return Resolved{}, errors.New(errors.MissingCredential, fmt.Sprintf("%s is not set; export it, add it to %s, or run 'duners login'", EnvVar, DefaultDotfile))
}
