package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so passwords and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	if cfg.Plugins.IRC != nil {
		cfg.Plugins.IRC.Password = expandEnvVars(cfg.Plugins.IRC.Password)
	}
	if cfg.Plugins.Mail != nil {
		cfg.Plugins.Mail.Password = expandEnvVars(cfg.Plugins.Mail.Password)
		if o := cfg.Plugins.Mail.OAuth; o != nil {
			o.ClientSecret = expandEnvVars(o.ClientSecret)
			o.RefreshToken = expandEnvVars(o.RefreshToken)
		}
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file, creating its
// directory if needed.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Core.TiePolicy == "" {
		cfg.Core.TiePolicy = d.Core.TiePolicy
	}
	if cfg.Core.LoopQueue == 0 {
		cfg.Core.LoopQueue = d.Core.LoopQueue
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = d.Gateway.Auth.Mode
	}
	if cfg.History.Store == "" {
		cfg.History.Store = d.History.Store
	}
	if cfg.Network.Timeout == 0 {
		cfg.Network.Timeout = d.Network.Timeout
	}
	if cfg.Network.UserAgent == "" {
		cfg.Network.UserAgent = d.Network.UserAgent
	}
	if cfg.Plugins.IRC != nil && cfg.Plugins.IRC.Port == 0 {
		cfg.Plugins.IRC.Port = 6667
		if cfg.Plugins.IRC.UseTLS {
			cfg.Plugins.IRC.Port = 6697
		}
	}
	if m := cfg.Plugins.Mail; m != nil {
		if m.Mailbox == "" {
			m.Mailbox = "INBOX"
		}
		if m.PollInterval == 0 {
			m.PollInterval = 5 * time.Minute
		}
	}
}

// applyEnvOverrides reads LEECHCORE_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEECHCORE_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("LEECHCORE_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("LEECHCORE_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("LEECHCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LEECHCORE_TIE_POLICY"); v != "" {
		cfg.Core.TiePolicy = strings.ToLower(v)
	}
	if v := os.Getenv("LEECHCORE_HISTORY_STORE"); v != "" {
		cfg.History.Store = strings.ToLower(v)
	}
	if v := os.Getenv("LEECHCORE_NETWORK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Network.Timeout = d
		}
	}
	if v := os.Getenv("LEECHCORE_PLUGINS"); v != "" {
		var names []string
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		cfg.Plugins.Enabled = names
	}
}
