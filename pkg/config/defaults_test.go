package config

import (
	"strings"
	"testing"
	"time"

	"github.com/marmos91/zcore/internal/bytesize"
	"github.com/marmos91/zcore/pkg/journal"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Engine(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Engine.Type != "sim" {
		t.Errorf("Expected default engine type 'sim', got %q", cfg.Engine.Type)
	}
	if cfg.Engine.OutputSize != 128*bytesize.KiB {
		t.Errorf("Expected default output size 128Ki, got %v", cfg.Engine.OutputSize)
	}
	if cfg.Engine.Dir != "" {
		t.Errorf("Expected no default persistence dir, got %q", cfg.Engine.Dir)
	}
}

func TestApplyDefaults_Journal(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Journal.Type != journal.DatabaseTypeSQLite {
		t.Errorf("Expected default journal type sqlite, got %q", cfg.Journal.Type)
	}
	if !strings.HasSuffix(cfg.Journal.SQLite.Path, "journal.db") {
		t.Errorf("Expected default sqlite path ending in journal.db, got %q", cfg.Journal.SQLite.Path)
	}
	// Journaling is opt-in
	if cfg.Journal.Enabled {
		t.Error("Expected journal to be disabled by default")
	}
}

func TestApplyDefaults_JournalPostgres(t *testing.T) {
	cfg := &Config{
		Journal: journal.Config{
			Type: journal.DatabaseTypePostgres,
		},
	}
	ApplyDefaults(cfg)

	if cfg.Journal.Postgres.Port != 5432 {
		t.Errorf("Expected default postgres port 5432, got %d", cfg.Journal.Postgres.Port)
	}
	if cfg.Journal.Postgres.SSLMode != "disable" {
		t.Errorf("Expected default ssl_mode 'disable', got %q", cfg.Journal.Postgres.SSLMode)
	}
	if cfg.Journal.Postgres.MaxOpenConns != 25 {
		t.Errorf("Expected default max open conns 25, got %d", cfg.Journal.Postgres.MaxOpenConns)
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	// Disabled metrics get no port
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metrics.Enabled {
		t.Error("Expected metrics to be disabled by default")
	}
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected no metrics port while disabled, got %d", cfg.Metrics.Port)
	}

	// Enabled metrics default to port 9090
	cfg = &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)

	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout != 10*time.Second {
		t.Errorf("Expected default write timeout 10s, got %v", cfg.API.WriteTimeout)
	}
	if cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.API.IdleTimeout)
	}
	if cfg.API.JWT.AccessTokenDuration != 15*time.Minute {
		t.Errorf("Expected default access token duration 15m, got %v", cfg.API.JWT.AccessTokenDuration)
	}
	if cfg.API.JWT.RefreshTokenDuration != 7*24*time.Hour {
		t.Errorf("Expected default refresh token duration 168h, got %v", cfg.API.JWT.RefreshTokenDuration)
	}
}

func TestApplyDefaults_Stream(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Stream.S3.Region != "us-east-1" {
		t.Errorf("Expected default S3 region 'us-east-1', got %q", cfg.Stream.S3.Region)
	}
	if cfg.Stream.S3.PartSize != 8*bytesize.MiB {
		t.Errorf("Expected default part size 8Mi, got %v", cfg.Stream.S3.PartSize)
	}
	// Spool mode is opt-in
	if cfg.Stream.Spool.Dir != "" {
		t.Errorf("Expected no default spool dir, got %q", cfg.Stream.Spool.Dir)
	}
}

func TestApplyDefaults_Telemetry(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Telemetry.Enabled {
		t.Error("Expected telemetry to be disabled by default")
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default OTLP endpoint 'localhost:4317', got %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
	if cfg.Telemetry.Profiling.Endpoint != "http://localhost:4040" {
		t.Errorf("Expected default Pyroscope endpoint, got %q", cfg.Telemetry.Profiling.Endpoint)
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		t.Error("Expected default profile types to be set")
	}
}

func TestApplyDefaults_Admin(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Admin.Username != "admin" {
		t.Errorf("Expected default admin username 'admin', got %q", cfg.Admin.Username)
	}
	if cfg.Admin.PasswordHash != "" {
		t.Errorf("Expected no default password hash, got %q", cfg.Admin.PasswordHash)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/zcore.log",
		},
		ShutdownTimeout: 60 * time.Second,
		Engine: EngineConfig{
			Type:       "ioctl",
			OutputSize: 1 * bytesize.MiB,
		},
		Admin: AdminConfig{
			Username: "customadmin",
		},
	}

	ApplyDefaults(cfg)

	// Verify explicit values were preserved
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/zcore.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Engine.Type != "ioctl" {
		t.Errorf("Expected explicit engine type 'ioctl' to be preserved, got %q", cfg.Engine.Type)
	}
	if cfg.Engine.OutputSize != 1*bytesize.MiB {
		t.Errorf("Expected explicit output size 1Mi to be preserved, got %v", cfg.Engine.OutputSize)
	}
	if cfg.Admin.Username != "customadmin" {
		t.Errorf("Expected explicit admin username to be preserved, got %q", cfg.Admin.Username)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	// The default config should pass validation
	err := Validate(cfg)
	if err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	// Check all required sections are present
	if cfg.Logging.Level == "" {
		t.Error("Default config missing logging level")
	}
	if cfg.API.Port == 0 {
		t.Error("Default config missing API port")
	}
	if cfg.Engine.Type == "" {
		t.Error("Default config missing engine type")
	}
	if cfg.Admin.Username == "" {
		t.Error("Default config missing admin username")
	}
}
