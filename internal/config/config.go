package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fwagent/internal/logger"
	"fwagent/internal/validation"
)

const (
	BackendFirewalld = "firewalld"
	BackendUFW       = "ufw"
)

var (
	systemConfigPath = "/etc/fwagent/config.yaml"
	systemEnvPath    = "/etc/fwagent/fwagent.env"
)

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Agent    AgentConfig    `yaml:"agent"`
	Advanced AdvancedConfig `yaml:"advanced"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type BackendConfig struct {
	Type           string `yaml:"type"`
	Zone           string `yaml:"zone"`
	UseDBus        bool   `yaml:"use_dbus"`
	NumberedStatus bool   `yaml:"numbered_status"`
}

type TimeoutConfig struct {
	Query  time.Duration `yaml:"query"`
	Mutate time.Duration `yaml:"mutate"`
	Reload time.Duration `yaml:"reload"`
}

type AgentConfig struct {
	IdentityPath      string `yaml:"identity_path"`
	ConvertOnStart    bool   `yaml:"convert_on_start"`
	BackupBeforeApply bool   `yaml:"backup_before_apply"`
	BackupDir         string `yaml:"backup_dir"`
	BackupKeep        int    `yaml:"backup_keep"`
}

type AdvancedConfig struct {
	LogLevel string `yaml:"log_level"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

func Default() Config {
	return Config{
		Backend: BackendConfig{
			Type:           BackendFirewalld,
			UseDBus:        true,
			NumberedStatus: true,
		},
		Timeouts: TimeoutConfig{
			Query:  10 * time.Second,
			Mutate: 30 * time.Second,
			Reload: 30 * time.Second,
		},
		Agent: AgentConfig{
			IdentityPath:      "/var/lib/fwagent/agent-id",
			BackupBeforeApply: true,
			BackupDir:         "/var/lib/fwagent/backups",
			BackupKeep:        10,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9470",
		},
	}
}

func ResolvePath() (string, error) {
	if env := os.Getenv("FWAGENT_CONFIG"); env != "" {
		return env, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fwagent", "config.yaml"), nil
}

// Load reads the env file, then the first config file that exists, then
// applies FWAGENT_* overrides. It returns the config, non-fatal warnings,
// the path read and whether a file was found.
func Load() (Config, []string, string, bool, error) {
	var warnings []string
	if w, err := loadEnvFile(); err != nil {
		return Default(), nil, "", false, err
	} else if w != "" {
		warnings = append(warnings, w)
	}

	paths, err := candidatePaths()
	if err != nil {
		return Default(), nil, "", false, err
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Default(), nil, "", false, err
		}
		cfg := Default()
		parseWarnings, err := parse(data, &cfg)
		if err != nil {
			return Default(), nil, "", false, fmt.Errorf("parse %s: %w", path, err)
		}
		warnings = append(warnings, parseWarnings...)
		applyEnv(&cfg)
		warnings = append(warnings, normalizeConfig(&cfg)...)
		return cfg, warnings, path, true, nil
	}

	cfg := Default()
	applyEnv(&cfg)
	warnings = append(warnings, normalizeConfig(&cfg)...)
	return cfg, warnings, "", false, nil
}

func parse(data []byte, cfg *Config) ([]string, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return unknownKeys(data)
}

var knownKeys = map[string]map[string]struct{}{
	"backend":  {"type": {}, "zone": {}, "use_dbus": {}, "numbered_status": {}},
	"timeouts": {"query": {}, "mutate": {}, "reload": {}},
	"agent":    {"identity_path": {}, "convert_on_start": {}, "backup_before_apply": {}, "backup_dir": {}, "backup_keep": {}},
	"advanced": {"log_level": {}},
	"metrics":  {"listen": {}},
}

func unknownKeys(data []byte) ([]string, error) {
	var raw map[string]map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var warnings []string
	sections := make([]string, 0, len(raw))
	for section := range raw {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	for _, section := range sections {
		known, ok := knownKeys[section]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown section %q", section))
			continue
		}
		keys := make([]string, 0, len(raw[section]))
		for key := range raw[section] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, ok := known[key]; !ok {
				warnings = append(warnings, fmt.Sprintf("unknown %s key %q", section, key))
			}
		}
	}
	return warnings, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FWAGENT_BACKEND"); v != "" {
		cfg.Backend.Type = v
	}
	if v := os.Getenv("FWAGENT_ZONE"); v != "" {
		cfg.Backend.Zone = v
	}
	if v := os.Getenv("FWAGENT_LOG_LEVEL"); v != "" {
		cfg.Advanced.LogLevel = v
	}
	if v := os.Getenv("FWAGENT_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
}

func normalizeConfig(cfg *Config) []string {
	warnings := make([]string, 0)
	cfg.Backend.Type = strings.ToLower(strings.TrimSpace(cfg.Backend.Type))
	switch cfg.Backend.Type {
	case BackendFirewalld, BackendUFW:
	default:
		warnings = append(warnings, fmt.Sprintf("backend.type %q is not supported; using %s", cfg.Backend.Type, BackendFirewalld))
		cfg.Backend.Type = BackendFirewalld
	}
	if cfg.Backend.Zone != "" {
		if err := validation.IsValidZoneName(cfg.Backend.Zone); err != nil {
			warnings = append(warnings, fmt.Sprintf("backend.zone %q: %v; using the default zone", cfg.Backend.Zone, err))
			cfg.Backend.Zone = ""
		}
	}

	def := Default().Timeouts
	for _, t := range []struct {
		name string
		val  *time.Duration
		def  time.Duration
	}{
		{"timeouts.query", &cfg.Timeouts.Query, def.Query},
		{"timeouts.mutate", &cfg.Timeouts.Mutate, def.Mutate},
		{"timeouts.reload", &cfg.Timeouts.Reload, def.Reload},
	} {
		if *t.val <= 0 {
			warnings = append(warnings, fmt.Sprintf("%s must be positive; using %s", t.name, t.def))
			*t.val = t.def
		}
	}

	if cfg.Agent.BackupKeep <= 0 {
		warnings = append(warnings, "agent.backup_keep must be positive; using 10")
		cfg.Agent.BackupKeep = 10
	}
	if cfg.Advanced.LogLevel != "" {
		if _, err := logger.ParseLevel(cfg.Advanced.LogLevel); err != nil {
			warnings = append(warnings, err.Error()+"; using info")
			cfg.Advanced.LogLevel = ""
		}
	}
	return warnings
}

// loadEnvFile loads FWAGENT_ENV_FILE, or the system env file when present.
// Variables already set in the environment win.
func loadEnvFile() (string, error) {
	path := os.Getenv("FWAGENT_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = systemEnvPath
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if explicit {
				return fmt.Sprintf("env file %s not found", path), nil
			}
			return "", nil
		}
		return "", err
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("load env file %s: %w", path, err)
	}
	return "", nil
}

func candidatePaths() ([]string, error) {
	if env := os.Getenv("FWAGENT_CONFIG"); env != "" {
		return []string{env}, nil
	}
	paths := []string{systemConfigPath}
	primary, err := ResolvePath()
	if err != nil {
		return paths, nil
	}
	paths = append(paths, primary)
	if sudoPath, ok := sudoConfigPath(primary); ok {
		paths = append(paths, sudoPath)
	}
	return paths, nil
}

func sudoConfigPath(primary string) (string, bool) {
	sudoUser := os.Getenv("SUDO_USER")
	if sudoUser == "" {
		return "", false
	}
	current := os.Getenv("USER")
	if current == sudoUser {
		return "", false
	}
	u, err := user.Lookup(sudoUser)
	if err != nil || u.HomeDir == "" {
		return "", false
	}
	path := filepath.Join(u.HomeDir, ".config", "fwagent", "config.yaml")
	if path == primary {
		return "", false
	}
	return path, true
}
