// Package auth resolves the GitHub and Jira credentials used by the sync.
// Each credential is looked up through a chain of providers; the first one
// that yields a token wins.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoToken is returned when no provider of a chain yields a token.
var ErrNoToken = errors.New("no token available")

// Environment variables read by the default chains.
const (
	GitHubTokenEnv = "GITHUB_TOKEN"
	JiraTokenEnv   = "JIRA_TOKEN"
)

// TokenProvider defines the interface for obtaining an authentication token.
// Implementations may use different sources (CLI tools, environment variables, etc).
type TokenProvider interface {
	GetToken() (string, error)
}

// StaticProvider returns a token given explicitly, e.g. on the command line.
type StaticProvider struct {
	Token string
}

// GetToken returns the configured token, or an error when it is empty.
func (s *StaticProvider) GetToken() (string, error) {
	if s.Token == "" {
		return "", errors.New("no token given")
	}
	return s.Token, nil
}

// GhCliProvider obtains tokens by shelling out to the GitHub CLI (`gh auth token`).
type GhCliProvider struct{}

// GetToken shells out to `gh auth token` to retrieve the current token.
// Returns an error if gh CLI is not installed, not authenticated, or the command fails.
func (g *GhCliProvider) GetToken() (string, error) {
	cmd := exec.Command("gh", "auth", "token", "--hostname", "github.com")
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", errors.New("gh CLI not found in PATH")
		}
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", errors.New("gh auth token returned empty token")
	}

	return token, nil
}

// EnvProvider obtains tokens from an environment variable.
type EnvProvider struct {
	Var string
}

// GetToken reads the environment variable.
// Returns an error if the variable is not set or is empty.
func (e *EnvProvider) GetToken() (string, error) {
	token := strings.TrimSpace(os.Getenv(e.Var))
	if token == "" {
		return "", fmt.Errorf("%s environment variable not set or empty", e.Var)
	}
	return token, nil
}

// Chain tries each provider in order and returns the first token found.
// When all fail, the error wraps ErrNoToken and every provider error.
func Chain(providers ...TokenProvider) (string, error) {
	errs := []error{ErrNoToken}
	for _, p := range providers {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// GitHubToken resolves the GitHub token: the explicit value first, then
// GITHUB_TOKEN, then the GitHub CLI.
func GitHubToken(explicit string) (string, error) {
	token, err := Chain(
		&StaticProvider{Token: explicit},
		&EnvProvider{Var: GitHubTokenEnv},
		&GhCliProvider{},
	)
	if err != nil {
		return "", fmt.Errorf(
			"failed to obtain GitHub token: %w\n"+
				"Please either:\n"+
				"  1. Pass --gh-token or set the GITHUB_TOKEN environment variable, or\n"+
				"  2. Run 'gh auth login' to authenticate with GitHub CLI",
			err,
		)
	}
	return token, nil
}

// JiraToken resolves the Jira API token: the explicit value first, then
// JIRA_TOKEN.
func JiraToken(explicit string) (string, error) {
	token, err := Chain(
		&StaticProvider{Token: explicit},
		&EnvProvider{Var: JiraTokenEnv},
	)
	if err != nil {
		return "", fmt.Errorf("failed to obtain Jira token: %w\n"+
			"Pass --jira-token or set the JIRA_TOKEN environment variable", err)
	}
	return token, nil
}
