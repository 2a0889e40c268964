package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

const tokenEnvVar = "GITHUB_TOKEN"

// tokenFunc obtains a token from an external credential helper.
type tokenFunc func(ctx context.Context, user string) (string, error)

// resolveToken picks the token from the flag, then the environment, then
// the credential helper.
func resolveToken(
	ctx context.Context,
	opts options,
	lookupEnv func(string) (string, bool),
	helper tokenFunc,
	logger zerolog.Logger,
) (string, error) {
	if opts.GitHubToken != "" {
		logger.Info().Msg("Using provided GitHub token")
		return opts.GitHubToken, nil
	}
	if token, ok := lookupEnv(tokenEnvVar); ok && token != "" {
		logger.Info().Str("env", tokenEnvVar).Msg("Using GitHub token from environment")
		return token, nil
	}

	logger.Info().Msg(`Using "gh" CLI to get GitHub token`)
	token, err := helper(ctx, opts.User)
	if err != nil {
		return "", fmt.Errorf("get token from gh: %w", err)
	}
	if token == "" {
		return "", errors.New("gh returned an empty token")
	}
	return token, nil
}

// ghAuthToken runs `gh auth token [--user USER]`.
func ghAuthToken(ctx context.Context, user string) (string, error) {
	args := []string{"auth", "token"}
	if user != "" {
		args = append(args, "--user", user)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
