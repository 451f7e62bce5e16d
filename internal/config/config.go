// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultTeam is used when no team is configured.
	DefaultTeam = "Engineering"
	// DefaultModel is the completion model used when none is configured.
	DefaultModel = "claude-3-7-sonnet-20250219"
	// ProviderLinear and ProviderJira name the supported tracker backends.
	ProviderLinear = "linear"
	ProviderJira   = "jira"

	// DefaultProvider selects the tracker backend when none is configured.
	DefaultProvider = ProviderLinear

	configDirName = ".linear-agent"
	envFileName   = ".env"
)

// DefaultStates are the workflow states analyzed when none are configured.
var DefaultStates = []string{"Open", "In Progress"}

// Config holds all configuration parameters for the application. It is built
// once at startup and read-only afterwards: CLI flags are applied on top of
// it by the command layer before any component sees it.
type Config struct {
	// Provider selects the tracker backend: "linear" or "jira"
	Provider string

	// LinearAPIKey authenticates against the Linear GraphQL API
	LinearAPIKey string

	// AnthropicAPIKey authenticates against the Anthropic messages API.
	// Optional: only required when plan generation is requested.
	AnthropicAPIKey string

	// Team is the tracker team (Linear) or project (Jira) to query
	Team string

	// User is the display name whose assigned tickets are listed
	User string

	// States are the workflow states to include when listing tickets
	States []string

	// Model is the Anthropic model used for plan generation
	Model string

	// Jira holds the Jira backend credentials
	Jira JiraConfig

	// GitHubToken optionally authenticates the update check
	GitHubToken string
}

// JiraConfig holds Jira specific configuration.
type JiraConfig struct {
	URL      string
	Username string
	Token    string
}

// Load resolves configuration from an optional env-format file plus
// environment variables. Environment variables take precedence over the
// file; flag overrides are applied later by the caller. When envFile is
// empty the default locations are probed in order and the first existing
// file is used.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("tracker_provider", DefaultProvider)
	v.SetDefault("linear_team_name", DefaultTeam)
	v.SetDefault("linear_agent_states", strings.Join(DefaultStates, ","))
	v.SetDefault("anthropic_model", DefaultModel)

	for _, key := range []string{
		"tracker_provider",
		"linear_api_key",
		"anthropic_api_key",
		"linear_team_name",
		"linear_agent_user",
		"linear_agent_states",
		"anthropic_model",
		"jira_url",
		"jira_username",
		"jira_token",
		"github_token",
	} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", key, err)
		}
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
	} else {
		for _, location := range DefaultEnvLocations() {
			if _, err := os.Stat(location); err != nil {
				continue
			}
			v.SetConfigFile(location)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read env file %s: %w", location, err)
			}
			break
		}
	}

	config := &Config{
		Provider:        strings.ToLower(v.GetString("tracker_provider")),
		LinearAPIKey:    v.GetString("linear_api_key"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		Team:            v.GetString("linear_team_name"),
		User:            v.GetString("linear_agent_user"),
		States:          SplitStates(v.GetString("linear_agent_states")),
		Model:           v.GetString("anthropic_model"),
		Jira: JiraConfig{
			URL:      v.GetString("jira_url"),
			Username: v.GetString("jira_username"),
			Token:    v.GetString("jira_token"),
		},
		GitHubToken: v.GetString("github_token"),
	}

	return config, nil
}

// SplitStates parses a comma-separated state list, trimming whitespace and
// dropping empty entries.
func SplitStates(states string) []string {
	var result []string
	for _, state := range strings.Split(states, ",") {
		state = strings.TrimSpace(state)
		if state != "" {
			result = append(result, state)
		}
	}
	return result
}

// ValidateTracker ensures the credentials for the selected tracker backend
// are present.
func ValidateTracker(config *Config) error {
	switch config.Provider {
	case ProviderLinear:
		if config.LinearAPIKey == "" {
			return fmt.Errorf("missing required environment variable: LINEAR_API_KEY")
		}
	case ProviderJira:
		var missingVars []string
		if config.Jira.URL == "" {
			missingVars = append(missingVars, "JIRA_URL")
		}
		if config.Jira.Username == "" {
			missingVars = append(missingVars, "JIRA_USERNAME")
		}
		if config.Jira.Token == "" {
			missingVars = append(missingVars, "JIRA_TOKEN")
		}
		if len(missingVars) > 0 {
			return fmt.Errorf("missing required environment variables: %v", missingVars)
		}
	default:
		return fmt.Errorf("unknown tracker provider: %q (expected 'linear' or 'jira')", config.Provider)
	}
	return nil
}

// ValidatePlan ensures the credentials for plan generation are present.
func ValidatePlan(config *Config) error {
	if config.AnthropicAPIKey == "" {
		return fmt.Errorf("missing required environment variable: ANTHROPIC_API_KEY")
	}
	return nil
}

// DefaultEnvLocations returns the standard locations probed for a .env file,
// in precedence order: the working directory, then the user config directory.
func DefaultEnvLocations() []string {
	locations := []string{envFileName}

	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, configDirName, envFileName))
	}

	return locations
}

// DefaultSavePath returns the path the setup wizard offers for saving the
// configuration file.
func DefaultSavePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, configDirName, envFileName), nil
}

// Save writes the configuration as an env-format file at path, creating the
// parent directory if needed. The written file round-trips through Load.
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	writeVar := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s=%s\n", key, value)
		}
	}
	writeVar("TRACKER_PROVIDER", config.Provider)
	writeVar("LINEAR_API_KEY", config.LinearAPIKey)
	writeVar("ANTHROPIC_API_KEY", config.AnthropicAPIKey)
	writeVar("LINEAR_TEAM_NAME", config.Team)
	writeVar("LINEAR_AGENT_USER", config.User)
	writeVar("LINEAR_AGENT_STATES", strings.Join(config.States, ","))
	writeVar("ANTHROPIC_MODEL", config.Model)
	writeVar("JIRA_URL", config.Jira.URL)
	writeVar("JIRA_USERNAME", config.Jira.Username)
	writeVar("JIRA_TOKEN", config.Jira.Token)

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
