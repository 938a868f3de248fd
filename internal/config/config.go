package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Names of the files written into the SSH directory before a clone. The key
// file is dedicated to the setting repository so an operator-managed identity
// at the default path is never overwritten.
const (
	sshKeyFileName     = "id_rsa_falco_setting_repo"
	knownHostsFileName = "known_hosts"
)

// Config represents the complete falco-agent configuration
type Config struct {
	Falco       FalcoConfig       `yaml:"falco"`
	SettingRepo SettingRepoConfig `yaml:"setting_repo"`
	Paths       PathsConfig       `yaml:"paths"`
	Watch       WatchConfig       `yaml:"watch"`
}

// FalcoConfig locates the Falco installation managed by the agent
type FalcoConfig struct {
	BaseDir string `yaml:"base_dir"`
}

// SettingRepoConfig configures the remote override repository
type SettingRepoConfig struct {
	// URL is a git+ssh URI selecting the override source; empty means no
	// custom repository is configured and previously synced overrides are
	// cleared on the next reconciliation.
	URL string `yaml:"url"`
	// SSHKeyID names the secret holding the private key used for clone
	// authentication. Empty is allowed for repositories that accept
	// host-based trust only.
	SSHKeyID string `yaml:"ssh_key_id"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	SSHDir     string `yaml:"ssh_dir"`
	WorkingDir string `yaml:"working_dir"`
	SecretsDir string `yaml:"secrets_dir"`
}

// WatchConfig configures the long-running watch mode
type WatchConfig struct {
	Interval          Duration `yaml:"interval"`
	ListenAddr        string   `yaml:"listen_addr"`
	TriggerSecretFile string   `yaml:"trigger_secret_file"`
}

// Duration wraps time.Duration so YAML values like "5m" parse naturally.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Falco.BaseDir = os.ExpandEnv(c.Falco.BaseDir)
	c.SettingRepo.URL = os.ExpandEnv(c.SettingRepo.URL)
	c.SettingRepo.SSHKeyID = os.ExpandEnv(c.SettingRepo.SSHKeyID)
	c.Paths.SSHDir = os.ExpandEnv(c.Paths.SSHDir)
	c.Paths.WorkingDir = os.ExpandEnv(c.Paths.WorkingDir)
	c.Paths.SecretsDir = os.ExpandEnv(c.Paths.SecretsDir)
	c.Watch.ListenAddr = os.ExpandEnv(c.Watch.ListenAddr)
	c.Watch.TriggerSecretFile = os.ExpandEnv(c.Watch.TriggerSecretFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() error {
	if c.Paths.SSHDir == "" || c.Paths.WorkingDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		if c.Paths.SSHDir == "" {
			c.Paths.SSHDir = filepath.Join(home, ".ssh")
		}
		if c.Paths.WorkingDir == "" {
			c.Paths.WorkingDir = filepath.Join(home, "falco_setting_repo")
		}
	}
	if c.Paths.SecretsDir == "" {
		c.Paths.SecretsDir = "/etc/falco-agent/secrets"
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = Duration(5 * time.Minute)
	}
	return nil
}

// Validate checks the configuration for errors.
//
// The setting repository URL is deliberately not validated here: a malformed
// URL must surface as a blocked reconciliation status, not as a config load
// failure, so parsing is deferred to the reconciler.
func (c *Config) Validate() error {
	if c.Falco.BaseDir == "" {
		return fmt.Errorf("falco.base_dir is required")
	}
	if !filepath.IsAbs(c.Falco.BaseDir) {
		return fmt.Errorf("falco.base_dir must be an absolute path: %s", c.Falco.BaseDir)
	}

	if !filepath.IsAbs(c.Paths.SSHDir) {
		return fmt.Errorf("paths.ssh_dir must be an absolute path: %s", c.Paths.SSHDir)
	}
	if !filepath.IsAbs(c.Paths.WorkingDir) {
		return fmt.Errorf("paths.working_dir must be an absolute path: %s", c.Paths.WorkingDir)
	}
	if !filepath.IsAbs(c.Paths.SecretsDir) {
		return fmt.Errorf("paths.secrets_dir must be an absolute path: %s", c.Paths.SecretsDir)
	}

	if c.Watch.Interval < 0 {
		return fmt.Errorf("watch.interval must be positive: %s", c.Watch.Interval.Std())
	}
	if c.Watch.ListenAddr != "" && c.Watch.TriggerSecretFile == "" {
		return fmt.Errorf("watch.trigger_secret_file is required when watch.listen_addr is set")
	}

	return nil
}

// SSHKeyFile returns the path of the private key written before a clone
func (c *Config) SSHKeyFile() string {
	return filepath.Join(c.Paths.SSHDir, sshKeyFileName)
}

// KnownHostsFile returns the path of the known_hosts file written before a clone
func (c *Config) KnownHostsFile() string {
	return filepath.Join(c.Paths.SSHDir, knownHostsFileName)
}
