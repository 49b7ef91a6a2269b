// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package credential

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"duners/cli/internal/errors"
	"duners/cli/internal/keychain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeys struct {
	key string
	err error
}

func (f fakeKeys) LoadAPIKey() (string, error) { return f.key, f.err }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeDotfile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "616263313233", Identity("abc123"))
	assert.Equal(t, Identity("same-key"), Identity("same-key"))
	assert.NotEqual(t, Identity("key-a"), Identity("key-b"))
	assert.Equal(t, "", Identity(""))
}

func TestCredential_StringMasks(t *testing.T) {
	c := Credential("supersecretkey")
	assert.NotContains(t, fmt.Sprint(c), "supersecret")
	assert.NotContains(t, fmt.Sprintf("%v", c), "secretkey")
}

func TestResolve(t *testing.T) {
	dotfile := writeDotfile(t, "DUNE_API_KEY=from-dotfile\nOTHER=x\n")
	emptyDotfile := writeDotfile(t, "OTHER=x\n")

	tests := []struct {
		name       string
		opts       Options
		wantKey    Credential
		wantSource Source
	}{
		{
			name:       "environment wins over dotfile",
			opts:       Options{LookupEnv: envOf(map[string]string{EnvVar: "from-env"}), Dotfile: dotfile},
			wantKey:    "from-env",
			wantSource: SourceEnv,
		},
		{
			name:       "dotfile when env unset",
			opts:       Options{LookupEnv: envOf(nil), Dotfile: dotfile},
			wantKey:    "from-dotfile",
			wantSource: SourceDotfile,
		},
		{
			name:       "empty env falls through",
			opts:       Options{LookupEnv: envOf(map[string]string{EnvVar: ""}), Dotfile: dotfile},
			wantKey:    "from-dotfile",
			wantSource: SourceDotfile,
		},
		{
			name:       "env value is used verbatim",
			opts:       Options{LookupEnv: envOf(map[string]string{EnvVar: " k "})},
			wantKey:    " k ",
			wantSource: SourceEnv,
		},
		{
			name:       "keychain value is used verbatim",
			opts:       Options{Keychain: fakeKeys{key: "k\n"}},
			wantKey:    "k\n",
			wantSource: SourceKeychain,
		},
		{
			name:       "unreadable dotfile falls through to keychain",
			opts:       Options{LookupEnv: envOf(nil), Dotfile: t.TempDir(), Keychain: fakeKeys{key: "from-keychain"}},
			wantKey:    "from-keychain",
			wantSource: SourceKeychain,
		},
		{
			name:       "missing dotfile is not fatal",
			opts:       Options{LookupEnv: envOf(nil), Dotfile: filepath.Join(t.TempDir(), "absent"), Keychain: fakeKeys{key: "from-keychain"}},
			wantKey:    "from-keychain",
			wantSource: SourceKeychain,
		},
		{
			name:       "keychain after dotfile without the key",
			opts:       Options{Dotfile: emptyDotfile, Keychain: fakeKeys{key: "from-keychain"}},
			wantKey:    "from-keychain",
			wantSource: SourceKeychain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, got.Credential)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestResolve_IdentityOfRawValue(t *testing.T) {
	got, err := Resolve(Options{LookupEnv: envOf(map[string]string{EnvVar: " k "})})
	require.NoError(t, err)
	assert.Equal(t, Identity(" k "), Identity(got.Credential))
	assert.NotEqual(t, Identity("k"), Identity(got.Credential))
}

func TestResolve_Missing(t *testing.T) {
	cases := map[string]Options{
		"nothing configured": {},
		"keychain empty":     {LookupEnv: envOf(nil), Keychain: fakeKeys{err: keychain.ErrNotFound}},
		"keychain broken":    {Keychain: fakeKeys{err: stderrors.New("locked")}},
		"unreadable dotfile": {Dotfile: t.TempDir()},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(opts)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.MissingCredential))
		})
	}
}
