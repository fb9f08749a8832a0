package mockapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/bcrypt"
)

// ConfigFormatVersion is the current version of the configuration file format
const ConfigFormatVersion = "0.1.0"

// UserSeed describes a user loaded at startup. Password is plain text in the
// file and hashed on load.
type UserSeed struct {
	ID          int64    `toml:"id"`
	Email       string   `toml:"email"`
	Password    string   `toml:"password"`
	Nombre      string   `toml:"nombre"`
	Phone       string   `toml:"phone"`
	Role        string   `toml:"role"`
	Status      string   `toml:"status"`
	Permissions []string `toml:"permissions"`
}

// CompanySeed describes a company loaded at startup.
type CompanySeed struct {
	ID          int64   `toml:"id"`
	Name        string  `toml:"name"`
	Phone       string  `toml:"phone"`
	Status      string  `toml:"status"`
	OwnerUserID int64   `toml:"owner_user_id"`
	Members     []int64 `toml:"members"`
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	TokenExpiry string `toml:"token_expiry"` // Token lifetime, e.g. "15m" or "1h"
	JWTSecret   string `toml:"jwt_secret"`   // HS256 signing secret
	BcryptCost  int    `toml:"bcrypt_cost"`
}

// GetTokenExpiry returns the token expiry as time.Duration
func (a *AuthConfig) GetTokenExpiry() (time.Duration, error) {
	return ParseDuration(a.TokenExpiry)
}

// GetTokenExpiryOrDefault returns the token expiry as time.Duration
// or panics if the value is invalid
func (a *AuthConfig) GetTokenExpiryOrDefault() time.Duration {
	duration, err := a.GetTokenExpiry()
	if err != nil {
		panic(fmt.Sprintf("invalid token expiry: %v", err))
	}
	return duration
}

// ConfigParam holds all configuration parameters for the mock backend
type ConfigParam struct {
	FormatVersion  string `toml:"format_version"`  // Version of this configuration file format
	ServerPort     string `toml:"server_port"`     // Port for the server
	HandleCORS     bool   `toml:"handle_cors"`     // Whether to handle CORS
	RequestTimeout string `toml:"request_timeout"` // Per request budget

	Auth        AuthConfig    `toml:"auth"`
	Permissions []string      `toml:"permissions"` // Catalogue of permission keys, RESOURCE:ACTION
	Users       []UserSeed    `toml:"users"`
	Companies   []CompanySeed `toml:"companies"`
}

// ParseDuration accepts Go durations ("90s", "1h30m") and the "<n>d" and
// "<n>y" shorthands.
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if d, err := time.ParseDuration(input); err == nil {
		return d, nil
	}
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}
	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	switch unit {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "y":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}

// GetRequestTimeout returns the request timeout, defaulting to 30s.
func (c *ConfigParam) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == "" {
		return 30 * time.Second
	}
	d, err := ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ValidateConfig checks if all required configuration values are present and valid
func ValidateConfig(cfg *ConfigParam) error {
	if cfg.FormatVersion != ConfigFormatVersion {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.Auth.TokenExpiry == "" {
		return fmt.Errorf("auth.token_expiry is required")
	}
	if d, err := ParseDuration(cfg.Auth.TokenExpiry); err != nil || d <= 0 {
		return fmt.Errorf("invalid auth.token_expiry: %q", cfg.Auth.TokenExpiry)
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("invalid auth.bcrypt_cost: %d", cfg.Auth.BcryptCost)
	}

	seen := map[int64]bool{}
	for i, u := range cfg.Users {
		if u.ID <= 0 || seen[u.ID] {
			return fmt.Errorf("users[%d]: id must be positive and unique", i)
		}
		seen[u.ID] = true
		if u.Email == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: email and password are required", i)
		}
		if !validRole(u.Role) {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
	}
	return nil
}

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(filename string) (*ConfigParam, error) {
	if filename == "" {
		return nil, fmt.Errorf("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	return ParseConfig(string(content))
}

// ParseConfig decodes and validates a TOML document.
func ParseConfig(content string) (*ConfigParam, error) {
	cfg := &ConfigParam{}
	if _, err := toml.Decode(content, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}

// DefaultConfig returns a ready to use configuration with a small seed: one
// user per role and two companies.
func DefaultConfig() *ConfigParam {
	return &ConfigParam{
		FormatVersion: ConfigFormatVersion,
		ServerPort:    "8790",
		HandleCORS:    true,
		Auth: AuthConfig{
			TokenExpiry: "15m",
			JWTSecret:   "codigos-mock-backend-secret",
			BcryptCost:  bcrypt.MinCost,
		},
		Permissions: []string{
			"USERS:CREATE", "USERS:READ", "USERS:UPDATE", "USERS:DELETE",
			"COMPANIES:CREATE", "COMPANIES:READ", "COMPANIES:UPDATE", "COMPANIES:DELETE",
			"COMPANIES-USERS:READ", "COMPANIES-USERS:UPDATE",
			"CUSTOMERS:CREATE", "CUSTOMERS:READ", "CUSTOMERS:UPDATE", "CUSTOMERS:DELETE",
			"SUPPLIERS:CREATE", "SUPPLIERS:READ", "SUPPLIERS:UPDATE", "SUPPLIERS:DELETE",
		},
		Users: []UserSeed{
			{ID: 1, Email: "root@codigos.test", Password: "root-pass", Nombre: "Root", Role: RoleSuperAdmin, Status: StatusActive},
			{ID: 2, Email: "admin@codigos.test", Password: "admin-pass", Nombre: "Ana Admin", Role: RoleAdmin, Status: StatusActive,
				Permissions: []string{"USERS:READ", "USERS:CREATE", "USERS:UPDATE", "COMPANIES:READ", "CUSTOMERS:READ"}},
			{ID: 3, Email: "empleado@codigos.test", Password: "empleado-pass", Nombre: "Elena", Role: RoleEmployee, Status: StatusActive,
				Permissions: []string{"COMPANIES:READ", "CUSTOMERS:READ"}},
		},
		Companies: []CompanySeed{
			{ID: 1, Name: "Streaming Norte", Phone: "555-0101", Status: StatusActive, OwnerUserID: 2, Members: []int64{3}},
			{ID: 2, Name: "Cuentas Sur", Phone: "555-0202", Status: StatusActive, OwnerUserID: 2},
		},
	}
}
