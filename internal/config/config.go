package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	ToolHost      ToolHostConfig
	AI            AIConfig
	Pipeline      PipelineConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig describes the connection the tool host owns. DSN takes
// precedence when set; otherwise the engine builds one from the discrete
// fields for the configured driver.
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	DSN             string
	TrustServerCert bool
	IntegratedAuth  bool
	MaxOpenConns    int
	StatementWait   time.Duration
}

// ToolHostConfig tells the session channel how to spawn the tool host
// process and how persistently to handshake with it.
type ToolHostConfig struct {
	Command           string
	Args              string
	HandshakeAttempts int
	CallTimeout       time.Duration
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type PipelineConfig struct {
	AllowWrites    bool
	RetryBudget    int
	MaxSummaryRows int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLBRIDGE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLBRIDGE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SQLBRIDGE_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_HOST", &cfg.Database.Host); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_DB_PORT", &cfg.Database.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_USER", &cfg.Database.User); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_PASSWORD", &cfg.Database.Password); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_NAME", &cfg.Database.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_DSN", &cfg.Database.DSN); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLBRIDGE_DB_TRUST_SERVER_CERT", &cfg.Database.TrustServerCert); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLBRIDGE_DB_INTEGRATED_AUTH", &cfg.Database.IntegratedAuth); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_DB_STATEMENT_WAIT", &cfg.Database.StatementWait); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_TOOLHOST_COMMAND", &cfg.ToolHost.Command); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_TOOLHOST_ARGS", &cfg.ToolHost.Args); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_TOOLHOST_HANDSHAKE_ATTEMPTS", &cfg.ToolHost.HandshakeAttempts); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_TOOLHOST_CALL_TIMEOUT", &cfg.ToolHost.CallTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_AI_PROVIDER", &cfg.AI.Provider); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLBRIDGE_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLBRIDGE_PIPELINE_ALLOW_WRITES", &cfg.Pipeline.AllowWrites); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_PIPELINE_RETRY_BUDGET", &cfg.Pipeline.RetryBudget); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_PIPELINE_MAX_SUMMARY_ROWS", &cfg.Pipeline.MaxSummaryRows); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLBRIDGE_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLBRIDGE_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLBRIDGE_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.Database.Driver == "" {
		return Config{}, fmt.Errorf("database driver is required")
	}
	if cfg.Pipeline.RetryBudget < 0 {
		return Config{}, fmt.Errorf("retry budget must not be negative")
	}
	return cfg, nil
}

// ToolHostArgs splits the configured args string on whitespace.
func (c ToolHostConfig) ToolHostArgs() []string {
	return strings.Fields(c.Args)
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlbridge-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:        "sqlserver",
			Host:          "localhost",
			Port:          1433,
			MaxOpenConns:  4,
			StatementWait: 30 * time.Second,
		},
		ToolHost: ToolHostConfig{
			Command:           "sqlbridge-toolhost",
			HandshakeAttempts: 3,
			CallTimeout:       30 * time.Second,
		},
		AI: AIConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		},
		Pipeline: PipelineConfig{
			AllowWrites:    false,
			RetryBudget:    1,
			MaxSummaryRows: 10,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
