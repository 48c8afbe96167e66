package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// JWTSecretEnv overrides auth.jwt_secret when set.
const JWTSecretEnv = "LENDINGD_JWT_SECRET"

const (
	defaultListen      = ":8080"
	defaultGRPCListen  = ":9090"
	defaultIssuer      = "lendingd"
	defaultRPM         = 600
	defaultBurst       = 60
	defaultClockSkew   = 30 * time.Second
	defaultJournalFile = "journal.db"
)

// Config captures the runtime settings for the lending service daemon.
type Config struct {
	ListenAddress     string          `yaml:"listen"`
	GRPCListenAddress string          `yaml:"grpc_listen"`
	ProtocolConfig    string          `yaml:"protocol_config"`
	TLS               TLSConfig       `yaml:"tls"`
	Auth              AuthConfig      `yaml:"auth"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	Journal           JournalConfig   `yaml:"journal"`
	Telemetry         TelemetryConfig `yaml:"telemetry"`
	Log               LogConfig       `yaml:"log"`
}

// TLSConfig describes the TLS material for the HTTP listener.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig holds the HMAC secret used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	Audience  string        `yaml:"audience"`
	ClockSkew time.Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds requests per client.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// JournalConfig selects the event journal database.
type JournalConfig struct {
	DSN        string `yaml:"dsn"`
	SQLitePath string `yaml:"sqlite_path"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	Traces   bool   `yaml:"traces"`
	Metrics  bool   `yaml:"metrics"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads the YAML configuration from disk and validates the result.
// Relative paths are resolved against the directory holding the file.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize(filepath.Dir(path))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize(baseDir string) {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.GRPCListenAddress = strings.TrimSpace(cfg.GRPCListenAddress)
	if cfg.GRPCListenAddress == "" {
		cfg.GRPCListenAddress = defaultGRPCListen
	}
	cfg.ProtocolConfig = resolve(baseDir, cfg.ProtocolConfig)
	cfg.TLS.normalize(baseDir)
	cfg.Auth.normalize()
	cfg.RateLimit.normalize()
	cfg.Journal.normalize(baseDir)
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.File = resolve(baseDir, cfg.Log.File)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.ProtocolConfig == "" {
		return fmt.Errorf("protocol_config is required")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if (cfg.Telemetry.Traces || cfg.Telemetry.Metrics) && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint required when traces or metrics are enabled")
	}
	return nil
}

func resolve(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

func (cfg *TLSConfig) normalize(baseDir string) {
	if cfg == nil {
		return
	}
	cfg.CertPath = resolve(baseDir, cfg.CertPath)
	cfg.KeyPath = resolve(baseDir, cfg.KeyPath)
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	return nil
}

// Enabled reports whether the listener serves TLS.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	if env := strings.TrimSpace(os.Getenv(JWTSecretEnv)); env != "" {
		cfg.JWTSecret = env
	}
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = defaultClockSkew
	}
}

func (cfg AuthConfig) validate() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required (or set %s)", JWTSecretEnv)
	}
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 bytes")
	}
	if cfg.ClockSkew < 0 {
		return fmt.Errorf("clock_skew must not be negative")
	}
	return nil
}

func (cfg *RateLimitConfig) normalize() {
	if cfg == nil {
		return
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = defaultRPM
	}
	if cfg.Burst == 0 {
		cfg.Burst = defaultBurst
	}
}

func (cfg *JournalConfig) normalize(baseDir string) {
	if cfg == nil {
		return
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.SQLitePath = resolve(baseDir, cfg.SQLitePath)
	if cfg.DSN == "" && cfg.SQLitePath == "" {
		cfg.SQLitePath = resolve(baseDir, defaultJournalFile)
	}
}
