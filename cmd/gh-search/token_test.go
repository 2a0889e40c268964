package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHelper struct {
	token string
	err   error
	calls int
	user  string
}

func (f *fakeHelper) fetch(_ context.Context, user string) (string, error) {
	f.calls++
	f.user = user
	return f.token, f.err
}

func envOf(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestResolveToken(t *testing.T) {
	tests := []struct {
		name       string
		flag       string
		env        map[string]string
		helper     fakeHelper
		want       string
		wantErr    bool
		wantHelper bool
	}{
		{
			name: "flag wins",
			flag: "from-flag",
			env:  map[string]string{"GITHUB_TOKEN": "from-env"},
			want: "from-flag",
		},
		{
			name: "environment before helper",
			env:  map[string]string{"GITHUB_TOKEN": "from-env"},
			want: "from-env",
		},
		{
			name:       "empty environment falls through",
			env:        map[string]string{"GITHUB_TOKEN": ""},
			helper:     fakeHelper{token: "from-gh"},
			want:       "from-gh",
			wantHelper: true,
		},
		{
			name:       "helper",
			helper:     fakeHelper{token: "from-gh"},
			want:       "from-gh",
			wantHelper: true,
		},
		{
			name:       "helper failure",
			helper:     fakeHelper{err: errors.New("not logged in")},
			wantErr:    true,
			wantHelper: true,
		},
		{
			name:       "helper returns nothing",
			helper:     fakeHelper{},
			wantErr:    true,
			wantHelper: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			opts.GitHubToken = tt.flag
			opts.User = "octocat"
			helper := tt.helper

			token, err := resolveToken(context.Background(), opts, envOf(tt.env), helper.fetch, zerolog.Nop())

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, token)
			}
			if tt.wantHelper {
				assert.Equal(t, 1, helper.calls)
				assert.Equal(t, "octocat", helper.user)
			} else {
				assert.Zero(t, helper.calls)
			}
		})
	}
}

// installFakeGH puts a gh script that echoes its arguments on PATH.
func installFakeGH(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script helper")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gh"), []byte(script), 0o755))
	t.Setenv("PATH", dir)
}

func TestGHAuthToken(t *testing.T) {
	installFakeGH(t, "#!/bin/sh\necho \"token-for:$*\"\n")

	token, err := ghAuthToken(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "token-for:auth token", token)

	token, err = ghAuthToken(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Equal(t, "token-for:auth token --user octocat", token)
}

func TestGHAuthToken_Failure(t *testing.T) {
	installFakeGH(t, "#!/bin/sh\necho 'not logged in' >&2\nexit 1\n")

	_, err := ghAuthToken(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}
