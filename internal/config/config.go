// Package config assembles the run configuration from command-line flags,
// GHPSYNC_* environment variables and an optional YAML file, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GHPSYNC"

// ErrMissingOption is returned when a required option has no value.
var ErrMissingOption = errors.New("missing required option")

// ErrInvalidOption is returned when an option holds an unusable value.
var ErrInvalidOption = errors.New("invalid option")

// Config is the full run configuration.
type Config struct {
	Verbose     bool   `yaml:"verbose" mapstructure:"verbose"`
	ConfigFile  string `yaml:"-" mapstructure:"config"`
	GitHubToken string `yaml:"gh-token" mapstructure:"gh-token"`
	JiraToken   string `yaml:"jira-token" mapstructure:"jira-token"`
	JiraEmail   string `yaml:"jira-email" mapstructure:"jira-email"`
	DataDir     string `yaml:"data-dir" mapstructure:"data-dir"`
	LogFile     string `yaml:"log-file" mapstructure:"log-file"`

	Sync Sync `yaml:",inline" mapstructure:",squash"`
}

// Sync holds the options of the sync command.
type Sync struct {
	GitHubProjectID string `yaml:"gh-project-id" mapstructure:"gh-project-id"`
	JiraProjectKey  string `yaml:"jira-project-key" mapstructure:"jira-project-key"`
	JiraSubdomain   string `yaml:"jira-subdomain" mapstructure:"jira-subdomain"`

	// AssigneesMap maps GitHub logins to Jira account emails.
	AssigneesMap      map[string]string `yaml:"gh-assignees-map" mapstructure:"gh-assignees-map"`
	TransitionsToWIP  []int             `yaml:"transitions-to-wip" mapstructure:"transitions-to-wip"`
	TransitionsToDone []int             `yaml:"transitions-to-done" mapstructure:"transitions-to-done"`

	// SleepTime is the poll interval; zero runs a single pass.
	SleepTime     time.Duration `yaml:"sleep-time" mapstructure:"sleep-time"`
	IssuePrefix   string        `yaml:"jira-issue-prefix" mapstructure:"jira-issue-prefix"`
	EstimateField string        `yaml:"jira-estimate-field" mapstructure:"jira-estimate-field"`
}

// Load resolves every flag of fs against the environment and the YAML file
// named by the config flag (or GHPSYNC_CONFIG).
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	return &cfg, nil
}

// RequireProject checks the GitHub project id is set.
func (c *Config) RequireProject() error {
	if c.Sync.GitHubProjectID == "" {
		return fmt.Errorf("%w: --%s", ErrMissingOption, KeyGitHubProjectID)
	}
	return nil
}

// Validate checks the options the sync command cannot run without.
func (s Sync) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeyGitHubProjectID, s.GitHubProjectID},
		{KeyJiraProjectKey, s.JiraProjectKey},
		{KeyJiraSubdomain, s.JiraSubdomain},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: --%s", ErrMissingOption, r.key)
		}
	}

	if s.SleepTime < 0 {
		return fmt.Errorf("%w: --%s must not be negative", ErrInvalidOption, KeySleepTime)
	}
	for _, ids := range [][]int{s.TransitionsToWIP, s.TransitionsToDone} {
		for _, id := range ids {
			if id <= 0 {
				return fmt.Errorf("%w: transition id %d", ErrInvalidOption, id)
			}
		}
	}
	for login, email := range s.AssigneesMap {
		if login == "" || !strings.Contains(email, "@") {
			return fmt.Errorf("%w: --%s entry %q=%q", ErrInvalidOption, KeyAssigneesMap, login, email)
		}
	}
	return nil
}
