// Package config resolves security-managerd's runtime configuration from,
// in order of increasing priority: built-in defaults, a TOML config file,
// environment variables, then CLI flags (SPEC_FULL.md "Configuration").
// The teacher pack has no config-file reader of its own; BurntSushi/toml is
// the decoder containerdUtils already pulls in for its own settings, so it
// is reused here rather than hand-rolling an INI/flag-only scheme.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

// Config holds every setting the daemon can source from a file,
// environment, or flag. An empty RulesDir or PolicyDir leaves the choice of
// directory to the SMACK or SELinux backend's own environment override and
// compiled-in default.
type Config struct {
	User         string `toml:"user"`
	Group        string `toml:"group"`
	SocketPath   string `toml:"socket"`
	LogPath      string `toml:"log"`
	MakeSockDir  bool   `toml:"make_socket_dir"`
	OwnSockDir   bool   `toml:"own_socket_dir"`
	RulesDir     string `toml:"rules_dir"`
	PolicyDir    string `toml:"policy_dir"`
}

// Defaults mirrors the original daemon's compiled-in constants
// (main-security-managerd.c: SOCK_PATH, DEFAULT_USER, DEFAULT_GROUP).
func Defaults() Config {
	return Config{
		User:       "security-manager",
		Group:      "security-manager",
		SocketPath: "/run/security-manager/security-manager.sock",
		LogPath:    "",
	}
}

// Load reads path (if non-empty) over Defaults(), then applies the
// SEC_LSM_MANAGER_* environment overrides. CLI flags are applied by the
// caller afterwards, since cobra/pflag already know which flags the user
// actually set.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, apperr.Wrap(apperr.IO, "decode config "+path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("SEC_LSM_MANAGER_USER"); ok {
		cfg.User = v
	}
	if v, ok := os.LookupEnv("SEC_LSM_MANAGER_GROUP"); ok {
		cfg.Group = v
	}
	if v, ok := os.LookupEnv("SEC_LSM_MANAGER_SOCKET"); ok {
		cfg.SocketPath = v
	}
	if v, ok := os.LookupEnv("SEC_LSM_MANAGER_LOG"); ok {
		cfg.LogPath = v
	}
	if v, ok := os.LookupEnv("SEC_LSM_MANAGER_MAKE_SOCKET_DIR"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MakeSockDir = b
		}
	}
	if v, ok := os.LookupEnv("SEC_LSM_MANAGER_OWN_SOCKET_DIR"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.OwnSockDir = b
		}
	}
}
