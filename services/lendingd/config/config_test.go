package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :6000 "
protocol_config: "lendingpool.toml"
tls:
  allow_insecure: true
auth:
  jwt_secret: " `+testSecret+` "
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	dir := filepath.Dir(path)
	if cfg.ListenAddress != ":6000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.GRPCListenAddress != defaultGRPCListen {
		t.Fatalf("unexpected grpc listen address: %q", cfg.GRPCListenAddress)
	}
	if cfg.ProtocolConfig != filepath.Join(dir, "lendingpool.toml") {
		t.Fatalf("protocol config not resolved: %q", cfg.ProtocolConfig)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Fatalf("expected trimmed secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.Issuer != defaultIssuer || cfg.Auth.ClockSkew != defaultClockSkew {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.RateLimit.RequestsPerMinute != defaultRPM || cfg.RateLimit.Burst != defaultBurst {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Journal.SQLitePath != filepath.Join(dir, defaultJournalFile) {
		t.Fatalf("unexpected journal path: %q", cfg.Journal.SQLitePath)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
protocol_config: "/etc/lendingpool/protocol.toml"
tls:
  allow_insecure: true
auth:
  jwt_secret: "`+testSecret+`"
  issuer: "ops"
  audience: "lending"
  clock_skew: 5s
rate_limit:
  requests_per_minute: 30
  burst: 3
journal:
  dsn: "postgres://lending:secret@db/lending"
log:
  level: " DEBUG "
  file: "logs/lendingd.log"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ProtocolConfig != "/etc/lendingpool/protocol.toml" {
		t.Fatalf("absolute path rewritten: %q", cfg.ProtocolConfig)
	}
	if cfg.Auth.ClockSkew != 5*time.Second || cfg.Auth.Audience != "lending" {
		t.Fatalf("unexpected auth: %+v", cfg.Auth)
	}
	if cfg.RateLimit.Burst != 3 {
		t.Fatalf("unexpected burst: %d", cfg.RateLimit.Burst)
	}
	if cfg.Journal.SQLitePath != "" {
		t.Fatalf("dsn should suppress the sqlite default, got %q", cfg.Journal.SQLitePath)
	}
	if cfg.Log.Level != "debug" || !strings.HasSuffix(cfg.Log.File, filepath.Join("logs", "lendingd.log")) {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadConfigSecretFromEnv(t *testing.T) {
	t.Setenv(JWTSecretEnv, testSecret)
	path := writeConfig(t, `
protocol_config: "p.toml"
tls:
  allow_insecure: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Fatalf("expected secret from environment")
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing secret": `
protocol_config: "p.toml"
tls:
  allow_insecure: true
`,
		"short secret": `
protocol_config: "p.toml"
tls:
  allow_insecure: true
auth:
  jwt_secret: "short"
`,
		"tls pairing": `
protocol_config: "p.toml"
tls:
  cert: "server.crt"
auth:
  jwt_secret: "` + testSecret + `"
`,
		"tls required": `
protocol_config: "p.toml"
auth:
  jwt_secret: "` + testSecret + `"
`,
		"missing protocol": `
tls:
  allow_insecure: true
auth:
  jwt_secret: "` + testSecret + `"
`,
		"telemetry endpoint": `
protocol_config: "p.toml"
tls:
  allow_insecure: true
auth:
  jwt_secret: "` + testSecret + `"
telemetry:
  traces: true
`,
		"unknown field": `
protocol_config: "p.toml"
tls:
  allow_insecure: true
auth:
  jwt_secret: "` + testSecret + `"
  api_tokens: ["x"]
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(JWTSecretEnv, "")
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected %s to fail", name)
			}
		})
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
