package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/modengine-overrides/internal/logging"
	"github.com/example/modengine-overrides/internal/util"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	defaultOpenAttempts          = 10
	defaultRemoteSyncParallelism = 2
	defaultSFTPPort              = 22
	defaultRemoteRootsDir        = "mods"
)

type Config struct {
	Version       int                `json:"version" yaml:"version"`
	GameDir       string             `json:"game_dir,omitempty" yaml:"game_dir,omitempty"` // empty means the process working directory.
	OverrideRoots []string           `json:"override_roots" yaml:"override_roots"`
	LogLevel      string             `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	OpenAttempts  int                `json:"open_attempts,omitempty" yaml:"open_attempts,omitempty"`
	StatePath     string             `json:"state_path,omitempty" yaml:"state_path,omitempty"`
	RemoteRoots   []RemoteRootConfig `json:"remote_roots,omitempty" yaml:"remote_roots,omitempty"`
	Concurrency   ConcurrencyConfig  `json:"concurrency" yaml:"concurrency"`
}

type ConcurrencyConfig struct {
	RemoteSyncParallelism int `json:"remote_sync_parallelism" yaml:"remote_sync_parallelism"`
}

// RemoteRootConfig describes an SFTP directory mirrored into LocalRoot before
// overrides are resolved.
type RemoteRootConfig struct {
	Name       string         `json:"name" yaml:"name"`
	Host       string         `json:"host" yaml:"host"`
	Port       int            `json:"port" yaml:"port"`
	User       string         `json:"user" yaml:"user"`
	Auth       SFTPAuthConfig `json:"auth" yaml:"auth"`
	RemotePath string         `json:"remote_path" yaml:"remote_path"`
	LocalRoot  string         `json:"local_root,omitempty" yaml:"local_root,omitempty"`

	// KnownHostsPath pins host keys. When empty any host key is accepted.
	KnownHostsPath string `json:"known_hosts_path,omitempty" yaml:"known_hosts_path,omitempty"`
}

type SFTPAuthConfig struct {
	Type           string `json:"type" yaml:"type"`
	Password       string `json:"password,omitempty" yaml:"password,omitempty"`
	PrivateKeyPath string `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`
	Passphrase     string `json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
}

// Load reads a JSON, JSONC or YAML config file, chosen by extension.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b, filepath.Ext(path))
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Parse(b []byte, ext string) (Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OpenAttempts <= 0 {
		c.OpenAttempts = defaultOpenAttempts
	}
	if c.StatePath == "" {
		c.StatePath = "modengine-state.json"
	}
	if c.Concurrency.RemoteSyncParallelism <= 0 {
		c.Concurrency.RemoteSyncParallelism = defaultRemoteSyncParallelism
	}
	for i := range c.RemoteRoots {
		if c.RemoteRoots[i].Port == 0 {
			c.RemoteRoots[i].Port = defaultSFTPPort
		}
		if c.RemoteRoots[i].LocalRoot == "" {
			c.RemoteRoots[i].LocalRoot = filepath.ToSlash(filepath.Join(defaultRemoteRootsDir, util.DirSlug(c.RemoteRoots[i].Name)))
		}
	}
}

func (c Config) Validate() error {
	if len(c.SearchRoots()) == 0 {
		return fmt.Errorf("override_roots must list at least one directory")
	}
	for i, r := range c.OverrideRoots {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("override_roots[%d] is empty", i)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	seen := make(map[string]struct{}, len(c.RemoteRoots))
	for i, rr := range c.RemoteRoots {
		if rr.Name == "" {
			return fmt.Errorf("remote_roots[%d].name is required", i)
		}
		if _, ok := seen[rr.Name]; ok {
			return fmt.Errorf("remote_roots[%d].name %q is duplicated", i, rr.Name)
		}
		seen[rr.Name] = struct{}{}
		if rr.Host == "" || rr.Port <= 0 || rr.User == "" || rr.RemotePath == "" {
			return fmt.Errorf("remote_roots[%d] host/port/user/remote_path are required", i)
		}
		if err := validateSFTPAuth(i, rr.Auth); err != nil {
			return err
		}
	}
	return nil
}

func validateSFTPAuth(i int, auth SFTPAuthConfig) error {
	switch auth.Type {
	case "password":
		if auth.Password == "" {
			return fmt.Errorf("remote_roots[%d].auth.password is required when auth.type=password", i)
		}
	case "private_key":
		if auth.PrivateKeyPath == "" {
			return fmt.Errorf("remote_roots[%d].auth.private_key_path is required when auth.type=private_key", i)
		}
	default:
		return fmt.Errorf("remote_roots[%d].auth.type must be one of: password, private_key", i)
	}
	return nil
}

// SearchRoots is the ordered override search path: the configured roots,
// then the local mirror of every remote root not already listed.
func (c Config) SearchRoots() []string {
	roots := make([]string, 0, len(c.OverrideRoots)+len(c.RemoteRoots))
	listed := make(map[string]struct{}, len(c.OverrideRoots))
	for _, r := range c.OverrideRoots {
		roots = append(roots, r)
		listed[filepath.Clean(r)] = struct{}{}
	}
	for _, rr := range c.RemoteRoots {
		if rr.LocalRoot == "" {
			continue
		}
		if _, ok := listed[filepath.Clean(rr.LocalRoot)]; ok {
			continue
		}
		listed[filepath.Clean(rr.LocalRoot)] = struct{}{}
		roots = append(roots, rr.LocalRoot)
	}
	return roots
}

func (c Config) Level() logging.Level {
	lvl, _ := logging.ParseLevel(c.LogLevel)
	return lvl
}

// WorkingDir returns GameDir made absolute, or the process working directory.
func (c Config) WorkingDir() (string, error) {
	if c.GameDir != "" {
		abs, err := filepath.Abs(c.GameDir)
		if err != nil {
			return "", fmt.Errorf("resolve game_dir: %w", err)
		}
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return wd, nil
}
