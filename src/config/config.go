// Package config loads the backup definition the rest of the tool runs
// against. Sources are layered the usual way: built-in defaults, then a
// YAML or JSON file, then BACKUP_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"resource-backup/src/errs"
)

// Backup types.
const (
	TypeLocal  = "local"
	TypeRemote = "remote"
)

// Resource types.
const (
	ResourceFile      = "file"
	ResourceDirectory = "directory"
)

// DefaultSSHPort is used when a remote config leaves port unset.
const DefaultSSHPort = 22

// EnvPrefix marks environment variables that override file settings,
// e.g. BACKUP_STORAGE_PATH overrides storage_path.
const EnvPrefix = "BACKUP_"

// ConfigPathEnvVar can point at the config file.
const ConfigPathEnvVar = "BACKUP_CONFIG"

// DefaultConfigPaths lists the paths searched, in order, when no path is given.
var DefaultConfigPaths = []string{
	"backup.yaml",
	"backup.yml",
	"backup.json",
	"/etc/resource-backup/config.yaml",
}

// Config describes one backup target. It is loaded once and then passed by
// value; nothing mutates it afterwards.
type Config struct {
	Type         string `koanf:"type" validate:"required,oneof=local remote"`
	Name         string `koanf:"name" validate:"required,excludesall=/"`
	Description  string `koanf:"description"`
	ACL          bool   `koanf:"acl"`
	ResourceType string `koanf:"resource_type" validate:"required,oneof=file directory"`
	ResourcePath string `koanf:"resource_path" validate:"required"`
	StoragePath  string `koanf:"storage_path" validate:"required"`

	// Remote connection, used when Type is remote.
	Host            string `koanf:"host" validate:"required_if=Type remote"`
	Port            int    `koanf:"port" validate:"omitempty,min=1,max=65535"`
	Username        string `koanf:"username"`
	PrivateKey      string `koanf:"private_key"`
	PasswordFile    string `koanf:"password_file"`
	KnownHosts      string `koanf:"known_hosts"`
	InsecureHostKey bool   `koanf:"insecure_host_key"`
}

// IsRemote reports whether snapshots live behind SSH.
func (c Config) IsRemote() bool { return c.Type == TypeRemote }

// IsDirectory reports whether the resource is a directory.
func (c Config) IsDirectory() bool { return c.ResourceType == ResourceDirectory }

// SSHPort returns the configured port or the SSH default.
func (c Config) SSHPort() int {
	if c.Port == 0 {
		return DefaultSSHPort
	}
	return c.Port
}

func defaultConfig() Config {
	return Config{
		Type:         TypeLocal,
		ResourceType: ResourceDirectory,
	}
}

// Load reads the config from path, or from the first default location that
// exists when path is empty, and validates it.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	defaults := defaultConfig()

	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := findConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	if configPath != "" {
		// JSON documents are valid YAML, so one parser covers both formats.
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return Config{}, errs.Validation("failed to load config file %s: %v", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errs.Validation("failed to unmarshal configuration: %v", err)
	}
	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// findConfigFile resolves the config location. An explicit path must exist;
// the defaults are optional.
func findConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", errs.Validation("config file %s: %v", path, err)
		}
		return path, nil
	}
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", errs.Validation("config file %s (from %s): %v", envPath, ConfigPathEnvVar, err)
		}
		return envPath, nil
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// envTransformFunc maps BACKUP_STORAGE_PATH to storage_path. The config
// file location variable is not a setting and is dropped.
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
}

func (c Config) normalize() Config {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	c.ResourceType = strings.ToLower(strings.TrimSpace(c.ResourceType))
	c.Name = strings.TrimSpace(c.Name)
	c.ResourcePath = cleanPath(expandHome(c.ResourcePath))
	if !c.IsRemote() {
		c.StoragePath = expandHome(c.StoragePath)
	}
	c.StoragePath = cleanPath(c.StoragePath)
	c.PrivateKey = expandHome(c.PrivateKey)
	c.PasswordFile = expandHome(c.PasswordFile)
	c.KnownHosts = expandHome(c.KnownHosts)
	return c
}

func cleanPath(p string) string {
	if p == "" {
		return p
	}
	return filepath.Clean(p)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.IsRemote() && c.PrivateKey == "" && c.PasswordFile == "" {
		if _, ok := os.LookupEnv("SSH_AUTH_SOCK"); !ok {
			return errs.Validation("remote backup %q needs private_key, password_file or a running ssh-agent", c.Name)
		}
	}
	return nil
}
