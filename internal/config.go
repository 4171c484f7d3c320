package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chancery/internal/dispatch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Record store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Scribe modes.
const (
	ScribeDisabled = "disabled"
	ScribeStatic   = "static"
	ScribeGemini   = "gemini"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Store    StoreConfig       `yaml:"store"`
	Auth     AuthConfig        `yaml:"auth"`
	Dispatch DispatchConfig    `yaml:"dispatch"`
	Scribe   ScribeConfig      `yaml:"scribe"`
	Intake   IntakeConfig      `yaml:"intake"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if err := c.Scribe.Validate(); err != nil {
		return fmt.Errorf("scribe: %w", err)
	}
	return nil
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

// StoreConfig selects and configures the record store backend.
//
// Backend is one of:
//   - "memory": records live only as long as the process.
//   - "file" (default): one JSON file per record under Path, watched for external edits.
//   - "sqlite": one row per record in the database at SQLite.Path.
//   - "redis": one key per record, namespaced by Redis.Prefix.
type StoreConfig struct {
	Backend string       `yaml:"backend"`
	Path    string       `yaml:"path"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(BackendMemory, BackendFile, BackendSQLite, BackendRedis)),
		validation.Field(&c.Path, validation.When(c.Backend == BackendFile, validation.Required)),
	); err != nil {
		return err
	}
	switch c.Backend {
	case BackendSQLite:
		return c.SQLite.Validate()
	case BackendRedis:
		return c.Redis.Validate()
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Validate validates the Redis configuration.
func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Address, validation.Required),
		validation.Field(&c.DB, validation.Min(0), validation.Max(15)),
	)
}

// AuthConfig holds the shared administrator credential.
//
// Mode controls how the admin console is protected:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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

// DispatchConfig holds the notification dispatch pacing.
type DispatchConfig struct {
	CheckDelay      time.Duration `yaml:"check_delay"`
	EncryptDelay    time.Duration `yaml:"encrypt_delay"`
	RelayDelay      time.Duration `yaml:"relay_delay"`
	BulkCheckDelay  time.Duration `yaml:"bulk_check_delay"`
	BulkSettleDelay time.Duration `yaml:"bulk_settle_delay"`
	RecipientDelay  time.Duration `yaml:"recipient_delay"`
	Grace           time.Duration `yaml:"grace"`
	BulkGrace       time.Duration `yaml:"bulk_grace"`
	FailureGrace    time.Duration `yaml:"failure_grace"`
	BatchSize       int           `yaml:"batch_size"`
	LogLines        int           `yaml:"log_lines"`
}

// Validate validates the dispatch configuration.
func (c *DispatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CheckDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.EncryptDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.RelayDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.BulkCheckDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.BulkSettleDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.RecipientDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.Grace, validation.Min(time.Duration(0))),
		validation.Field(&c.BulkGrace, validation.Min(time.Duration(0))),
		validation.Field(&c.FailureGrace, validation.Min(time.Duration(0))),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.LogLines, validation.Required, validation.Min(1)),
	)
}

// Timing converts the configuration into pipeline pacing.
func (c DispatchConfig) Timing() dispatch.Timing {
	return dispatch.Timing{
		CheckDelay:      c.CheckDelay,
		EncryptDelay:    c.EncryptDelay,
		RelayDelay:      c.RelayDelay,
		BulkCheckDelay:  c.BulkCheckDelay,
		BulkSettleDelay: c.BulkSettleDelay,
		RecipientDelay:  c.RecipientDelay,
		Grace:           c.Grace,
		BulkGrace:       c.BulkGrace,
		FailureGrace:    c.FailureGrace,
		BatchSize:       c.BatchSize,
		LogLines:        c.LogLines,
	}
}

// ScribeConfig selects the text-generation collaborator.
//
// Mode is one of:
//   - "disabled" (default): every draft uses its fixed fallback text.
//   - "static": every draft is StaticText.
//   - "gemini": drafts come from the Gemini generateContent API.
type ScribeConfig struct {
	Mode       string        `yaml:"mode"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	StaticText string        `yaml:"static_text"`
}

// Validate validates the scribe configuration.
func (c *ScribeConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = ScribeDisabled
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(ScribeDisabled, ScribeStatic, ScribeGemini)),
		validation.Field(&c.APIKey, validation.When(c.Mode == ScribeGemini, validation.Required)),
		validation.Field(&c.Model, validation.When(c.Mode == ScribeGemini, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.StaticText, validation.When(c.Mode == ScribeStatic, validation.Required)),
	)
}

// IntakeConfig holds submission behaviour.
type IntakeConfig struct {
	GenerateAcknowledgment bool `yaml:"generate_acknowledgment"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	timing := dispatch.DefaultTiming()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    "./records",
			SQLite:  SQLiteConfig{Path: "./chancery.db"},
			Redis:   RedisConfig{Address: "localhost:6379", Prefix: "chancery:"},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Dispatch: DispatchConfig{
			CheckDelay:      timing.CheckDelay,
			EncryptDelay:    timing.EncryptDelay,
			RelayDelay:      timing.RelayDelay,
			BulkCheckDelay:  timing.BulkCheckDelay,
			BulkSettleDelay: timing.BulkSettleDelay,
			RecipientDelay:  timing.RecipientDelay,
			Grace:           timing.Grace,
			BulkGrace:       timing.BulkGrace,
			FailureGrace:    timing.FailureGrace,
			BatchSize:       timing.BatchSize,
			LogLines:        timing.LogLines,
		},
		Scribe: ScribeConfig{
			Mode:    ScribeDisabled,
			Model:   "gemini-2.5-flash",
			Timeout: 20 * time.Second,
		},
		Intake: IntakeConfig{
			GenerateAcknowledgment: true,
		},
	}
}
