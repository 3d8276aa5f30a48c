package ftpsh

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	defaults "github.com/Paranoid-AF/ftpsh/default"
)

// Output formats accepted by Config.Format.
var Formats = []string{"text", "json", "yaml", "toml"}

// Config represents the user's ftpsh configuration.
type Config struct {
	Socket  string     `toml:"socket"`
	Timeout Duration   `toml:"timeout"`
	Prompt  string     `toml:"prompt"`
	Format  string     `toml:"format"`
	HintTTL Duration   `toml:"hint_ttl"`
	Host    HostConfig `toml:"host"`
}

// HostConfig holds the settings of the simulated host served by ftphostd.
type HostConfig struct {
	Address         string   `toml:"address"`
	SimpleModules   []string `toml:"simple_modules"`
	ExtendedModules []string `toml:"extended_modules"`
}

// Duration is a time.Duration written as a string ("10s") in config files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ConfigDir returns the config directory path.
// Resolution order: $FTPSH_CONFIG_DIR > $XDG_CONFIG_HOME/ftpsh > ~/.config/ftpsh
func ConfigDir() string {
	if dir := os.Getenv("FTPSH_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "ftpsh")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "ftpsh-config")
	}
	return filepath.Join(home, ".config", "ftpsh")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(string(defaults.DefaultConfigTOML), &cfg); err != nil {
		panic("ftpsh: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from the default path or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path. A missing file yields the defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Timeout.Duration == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaults.Prompt
	}
	if cfg.Format == "" {
		cfg.Format = defaults.Format
	}
	if cfg.HintTTL.Duration == 0 {
		cfg.HintTTL = defaults.HintTTL
	}
	if cfg.Host.Address == "" {
		cfg.Host.Address = defaults.Host.Address
	}
	if cfg.Host.SimpleModules == nil {
		cfg.Host.SimpleModules = defaults.Host.SimpleModules
	}
	if cfg.Host.ExtendedModules == nil {
		cfg.Host.ExtendedModules = defaults.Host.ExtendedModules
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if !slices.Contains(Formats, ResolveFormat(cfg)) {
		warnings = append(warnings, fmt.Sprintf("unknown format %q; falling back to text", ResolveFormat(cfg)))
	}
	if envTimeout, set := timeoutFromEnv(); set && envTimeout <= 0 {
		warnings = append(warnings, fmt.Sprintf("FTPSH_TIMEOUT %q must be a positive duration; ignoring it", os.Getenv("FTPSH_TIMEOUT")))
	}
	if cfg.Timeout.Duration <= 0 {
		warnings = append(warnings, fmt.Sprintf("timeout %s must be positive; using %s", cfg.Timeout.Duration, DefaultConfig().Timeout.Duration))
	}
	for _, name := range cfg.Host.SimpleModules {
		if slices.Contains(cfg.Host.ExtendedModules, name) {
			warnings = append(warnings, fmt.Sprintf("module %q is listed in both tiers; the shell treats it as simple", name))
		}
	}
	return warnings
}

// ResolveSocketPath returns the host socket path.
// Priority: $FTPSH_SOCKET env > config value > $XDG_RUNTIME_DIR/ftpsh.sock > /tmp/ftpsh-<uid>.sock.
func ResolveSocketPath(cfg *Config) string {
	if path := os.Getenv("FTPSH_SOCKET"); path != "" {
		return path
	}
	if cfg != nil && cfg.Socket != "" {
		return cfg.Socket
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/ftpsh.sock"
	}
	return fmt.Sprintf("/tmp/ftpsh-%d.sock", os.Getuid())
}

// ResolveTimeout returns the per-call timeout, which is always positive.
// Priority: $FTPSH_TIMEOUT env > config value > default. Unparsable or
// non-positive values are ignored.
func ResolveTimeout(cfg *Config) time.Duration {
	if d, set := timeoutFromEnv(); set && d > 0 {
		return d
	}
	if cfg != nil && cfg.Timeout.Duration > 0 {
		return cfg.Timeout.Duration
	}
	return DefaultConfig().Timeout.Duration
}

// timeoutFromEnv reports whether $FTPSH_TIMEOUT holds a parsable duration.
func timeoutFromEnv() (time.Duration, bool) {
	s := os.Getenv("FTPSH_TIMEOUT")
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

// ResolveFormat returns the output format.
// Priority: $FTPSH_FORMAT env > config value.
func ResolveFormat(cfg *Config) string {
	if f := os.Getenv("FTPSH_FORMAT"); f != "" {
		return f
	}
	if cfg != nil {
		return cfg.Format
	}
	return ""
}
