package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/fairlie/keel/internal/scanner"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Workspaces WorkspacesConfig  `yaml:"workspaces"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Scanner    ScannerConfig     `yaml:"scanner"`
	Jobs       JobsConfig        `yaml:"jobs"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspaces.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Scanner.Validate(); err != nil {
		return err
	}
	return c.Jobs.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// WorkspacesConfig holds the path to the per-job workspace root.
type WorkspacesConfig struct {
	Root string `yaml:"root"`
}

// Validate validates the workspaces configuration.
func (c *WorkspacesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ScannerConfig tunes the source tree walker. Zero values fall back to
// the scanner defaults.
type ScannerConfig struct {
	MaxFileSizeKiB int      `yaml:"max_file_size_kib"`
	IgnoreDirs     []string `yaml:"ignore_dirs"`
}

// Validate validates the scanner configuration.
func (c *ScannerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxFileSizeKiB, validation.Min(0)),
	)
}

// WalkerConfig converts the YAML shape into the scanner's own config.
func (c *ScannerConfig) WalkerConfig() scanner.WalkerConfig {
	return scanner.WalkerConfig{
		MaxFileSize: int64(c.MaxFileSizeKiB) << 10,
		IgnoreDirs:  c.IgnoreDirs,
	}
}

// JobsConfig sizes the background job runner. Zero values fall back to
// the runner defaults.
type JobsConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// Validate validates the jobs configuration.
func (c *JobsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.QueueSize, validation.Min(0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workspaces: WorkspacesConfig{
			Root: "./workspaces",
		},
		SQLite: SQLiteConfig{
			Path: "./keel.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Jobs: JobsConfig{
			Workers:   2,
			QueueSize: 64,
		},
	}
}
