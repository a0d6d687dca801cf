package config

// Source backends.
const (
	SourceGit   = "git"
	SourceStore = "store"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Default:  SourceGit,
			Location: ".",
		},
		Git: GitConfig{
			Binary:        "git",
			TimeoutMs:     30000,
			FollowRenames: true,
		},
		Storage: StorageConfig{
			Path:       "~/.config/revsearch",
			SQLiteFile: "revsearch.db",
		},
		Diff: DiffConfig{
			Tool:    "git-diff",
			Command: []string{},
			Wait:    true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			File:   "",
			Format: "text",
		},
	}
}
