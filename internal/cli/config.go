package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codigos/codigos/internal/session"
	"github.com/codigos/codigos/internal/storage"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// DefaultStateFile holds the persisted session next to the config file.
const DefaultStateFile = "state.yaml"

// ConfigFormatVersion is the version written into new config files. Files
// with the same major and minor version are accepted.
const ConfigFormatVersion = "0.1.0"

// Defaults applied to settings left empty.
const (
	DefaultLoginPath = "/auth/login"
	DefaultLogLevel  = "warn"
	DefaultTimeout   = "30s"
)

// Environment variables overriding the config file. They may also be set in
// a .env file in the working directory.
const (
	EnvServerURL    = "CODIGOS_SERVER_URL"
	EnvLogLevel     = "CODIGOS_LOG_LEVEL"
	EnvStorage      = "CODIGOS_STORAGE"
	EnvStatePath    = "CODIGOS_STATE_PATH"
	EnvRedisAddr    = "CODIGOS_REDIS_ADDR"
	EnvSafetyMargin = "CODIGOS_SAFETY_MARGIN"
	EnvInsecure     = "CODIGOS_INSECURE"
)

// StorageConfig selects where the session is kept between runs.
type StorageConfig struct {
	Backend string               `yaml:"backend" validate:"omitempty,oneof=file memory redis"`
	Path    string               `yaml:"path,omitempty"`
	Redis   storage.RedisOptions `yaml:"redis,omitempty"`
}

// Config represents the configuration for the Codigos CLI
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version" validate:"required"`
	// ServerURL is the base URL of the REST backend
	ServerURL string `yaml:"server_url" validate:"required,url"`
	// LoginPath is the endpoint exchanging credentials for a token
	LoginPath string `yaml:"login_path,omitempty"`
	// SafetyMargin is how long before the token expiry the session ends
	SafetyMargin string `yaml:"safety_margin,omitempty"`
	// RequestTimeout bounds each request attempt
	RequestTimeout string `yaml:"request_timeout,omitempty"`
	// Retries of idempotent requests on transport failures
	Retries  uint   `yaml:"retries,omitempty" validate:"lte=10"`
	Insecure bool   `yaml:"insecure,omitempty"`
	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error disabled"`

	Storage StorageConfig `yaml:"storage,omitempty"`

	path string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var formatConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint("~" + ConfigFormatVersion)
	if err != nil {
		panic(err)
	}
	return c
}()

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/codigos on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "codigos", DefaultConfigFile), nil
}

// NewConfig returns a config for server with every default filled in.
func NewConfig(server string) *Config {
	c := &Config{
		Version:   ConfigFormatVersion,
		ServerURL: MorphServer(server),
	}
	c.applyDefaults()
	return c
}

// LoadConfig reads file, applies .env and environment overrides and
// validates the result. A missing file is reported with os.ErrNotExist.
func LoadConfig(file string) (*Config, error) {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}
	c.path = file

	env, err := godotenv.Read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to read .env file: %w", err)
	}
	c.ApplyOverrides(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	})
	c.applyDefaults()

	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyOverrides replaces settings with the values lookup finds.
func (cfg *Config) ApplyOverrides(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvServerURL); ok && v != "" {
		cfg.ServerURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(EnvStorage); ok && v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v, ok := lookup(EnvStatePath); ok && v != "" {
		cfg.Storage.Path = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v, ok := lookup(EnvSafetyMargin); ok && v != "" {
		cfg.SafetyMargin = v
	}
	if v, ok := lookup(EnvInsecure); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Insecure = b
		}
	}
}

func (cfg *Config) applyDefaults() {
	cfg.ServerURL = MorphServer(cfg.ServerURL)
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.SafetyMargin == "" {
		cfg.SafetyMargin = session.DefaultSafetyMargin.String()
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = DefaultTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = storage.BackendFile
	}
}

// ValidateConfig validates the configuration
// Checks for required fields, durations and the format version
func (cfg *Config) ValidateConfig() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed on %s", strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	v, err := semver.NewVersion(cfg.Version)
	if err != nil {
		return fmt.Errorf("invalid config version %q", cfg.Version)
	}
	if !formatConstraint.Check(v) {
		return fmt.Errorf("unsupported config version %s, expected %s", cfg.Version, ConfigFormatVersion)
	}
	if !strings.HasPrefix(cfg.ServerURL, "http://") && !strings.HasPrefix(cfg.ServerURL, "https://") {
		return errors.New("server_url must start with http:// or https://")
	}
	if _, err := cfg.GetSafetyMargin(); err != nil {
		return fmt.Errorf("invalid safety_margin: %w", err)
	}
	if _, err := cfg.GetRequestTimeout(); err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	if cfg.Storage.Backend == storage.BackendRedis && cfg.Storage.Redis.Addr == "" {
		return errors.New("storage.redis.addr is required for the redis backend")
	}
	return nil
}

// WriteConfig writes the current configuration to the specified file
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0o700)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, yamlStr, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	cfg.path = file
	return nil
}

// MorphServer ensures the server URL is properly formatted
// Adds http:// prefix if missing and removes trailing slashes
func MorphServer(server string) string {
	server = strings.TrimSpace(server)
	if server == "" {
		return server
	}
	server = strings.TrimRight(server, "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return server
}

// GetServerURL returns the properly formatted server URL
func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

// GetLoginPath returns the login endpoint.
func (cfg *Config) GetLoginPath() string {
	if cfg.LoginPath == "" {
		return DefaultLoginPath
	}
	return cfg.LoginPath
}

// GetSafetyMargin returns the session safety margin.
func (cfg *Config) GetSafetyMargin() (time.Duration, error) {
	d, err := time.ParseDuration(cfg.SafetyMargin)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return d, nil
}

// GetRequestTimeout returns the per-attempt request timeout.
func (cfg *Config) GetRequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

// StorageOptions resolves the storage backend. The file backend defaults to
// a state file next to the config file.
func (cfg *Config) StorageOptions() storage.Options {
	opts := storage.Options{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		Redis:   cfg.Storage.Redis,
	}
	if opts.Path == "" {
		dir := filepath.Dir(cfg.path)
		if cfg.path == "" {
			if p, err := GetDefaultConfigPath(); err == nil {
				dir = filepath.Dir(p)
			}
		}
		opts.Path = filepath.Join(dir, DefaultStateFile)
	}
	return opts
}

// Summary returns the effective settings keyed as in the config file.
func (cfg *Config) Summary() map[string]any {
	return map[string]any{
		"config_file":     cfg.path,
		"version":         cfg.Version,
		"server_url":      cfg.GetServerURL(),
		"login_path":      cfg.GetLoginPath(),
		"safety_margin":   cfg.SafetyMargin,
		"request_timeout": cfg.RequestTimeout,
		"retries":         cfg.Retries,
		"storage":         cfg.Storage.Backend,
		"log_level":       cfg.LogLevel,
	}
}

// Path returns the file the config was loaded from or written to.
func (cfg *Config) Path() string {
	return cfg.path
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `Manage CLI configuration settings like the server location and where the session is stored.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configSetServerCmd = &cobra.Command{
	Use:   "set-server URL",
	Short: "Set the backend URL, creating the config file if needed",
	Long: `Set the backend URL. The config file is created with defaults when it does not exist.

Examples:
  codigos config set-server http://localhost:8790`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setServerConfig(cmd, configFile, args[0])
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configFile)
		if err != nil {
			return err
		}
		return printValue(cmd.OutOrStdout(), cfg.Summary(), func() {
			cmd.Printf("Config file: %s\n", cfg.Path())
			cmd.Printf("Server: %s\n", cfg.GetServerURL())
			cmd.Printf("Login path: %s\n", cfg.GetLoginPath())
			cmd.Printf("Safety margin: %s\n", cfg.SafetyMargin)
			cmd.Printf("Request timeout: %s\n", cfg.RequestTimeout)
			cmd.Printf("Storage: %s\n", cfg.Storage.Backend)
			cmd.Printf("Log level: %s\n", cfg.LogLevel)
		})
	},
}

func setServerConfig(cmd *cobra.Command, file, server string) error {
	cfg, err := LoadConfig(file)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = NewConfig(server)
	}
	cfg.ServerURL = MorphServer(server)
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}
	if cfg.path == "" {
		cfg.path = file
	}
	if err := cfg.WriteConfig(cfg.path); err != nil {
		return err
	}
	return printValue(cmd.OutOrStdout(), map[string]string{"server_url": cfg.ServerURL}, func() {
		okLabel.Fprintf(cmd.OutOrStdout(), "Server set to %s\n", cfg.ServerURL)
	})
}

func init() {
	configCmd.AddCommand(configSetServerCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
