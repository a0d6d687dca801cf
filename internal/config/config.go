package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/revsearch/config.yaml"

// Config holds all revsearch configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source" toml:"source"`
	Git     GitConfig     `yaml:"git" toml:"git"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Diff    DiffConfig    `yaml:"diff" toml:"diff"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

type SourceConfig struct {
	Default  string `yaml:"default" toml:"default"`
	Location string `yaml:"location" toml:"location"`
}

type GitConfig struct {
	Binary        string `yaml:"binary" toml:"binary"`
	TimeoutMs     int    `yaml:"timeout_ms" toml:"timeout_ms"`
	FollowRenames bool   `yaml:"follow_renames" toml:"follow_renames"`
}

type StorageConfig struct {
	Path       string `yaml:"path" toml:"path"`
	SQLiteFile string `yaml:"sqlite_file" toml:"sqlite_file"`
}

type DiffConfig struct {
	Tool    string   `yaml:"tool" toml:"tool"`
	Command []string `yaml:"command" toml:"command"`
	Wait    bool     `yaml:"wait" toml:"wait"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	File   string `yaml:"file" toml:"file"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a config file at path and merges it with defaults. Files ending
// in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Source.Default {
	case SourceGit, SourceStore:
	default:
		return fmt.Errorf("invalid source.default %q (use %q or %q)", c.Source.Default, SourceGit, SourceStore)
	}
	if c.Git.TimeoutMs < 0 {
		return fmt.Errorf("invalid git.timeout_ms %d", c.Git.TimeoutMs)
	}
	if len(c.Diff.Command) == 0 {
		if _, ok := LookupDiffTool(c.Diff.Tool); !ok {
			return fmt.Errorf("unknown diff tool %q and no diff.command given", c.Diff.Tool)
		}
	}
	return nil
}

// DiffCommand returns the argument template of the configured diff tool.
// An explicit command takes precedence over the named tool.
func (c *Config) DiffCommand() ([]string, error) {
	if len(c.Diff.Command) > 0 {
		return c.Diff.Command, nil
	}
	tool, ok := LookupDiffTool(c.Diff.Tool)
	if !ok {
		return nil, fmt.Errorf("unknown diff tool %q", c.Diff.Tool)
	}
	return tool.Args, nil
}

// DBPath returns the expanded path of the SQLite mirror database.
func (c *Config) DBPath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
