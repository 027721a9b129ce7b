package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyDefaults_SQLitePath(t *testing.T) {
	t.Run("UsesXDGConfigHome", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tmpDir)

		cfg := &Config{Type: DatabaseTypeSQLite}
		cfg.ApplyDefaults()

		expected := filepath.Join(tmpDir, "zcore", "journal.db")
		if cfg.SQLite.Path != expected {
			t.Errorf("SQLite.Path = %q, expected %q", cfg.SQLite.Path, expected)
		}
	})

	t.Run("FallbackWithoutXDG", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		cfg := &Config{Type: DatabaseTypeSQLite}
		cfg.ApplyDefaults()

		if filepath.Base(cfg.SQLite.Path) != "journal.db" {
			t.Errorf("SQLite.Path = %q, expected filename 'journal.db'", cfg.SQLite.Path)
		}
		dir := filepath.Dir(cfg.SQLite.Path)
		if filepath.Base(dir) != "zcore" {
			t.Errorf("parent dir = %q, expected 'zcore'", filepath.Base(dir))
		}
		home, _ := os.UserHomeDir()
		expectedDir := filepath.Join(home, ".config", "zcore")
		if dir != expectedDir {
			t.Errorf("dir = %q, expected %q", dir, expectedDir)
		}
	})
}

func TestApplyDefaults_PreservesExplicitPath(t *testing.T) {
	customPath := "/custom/path/to/journal.sqlite"
	cfg := &Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: customPath},
	}
	cfg.ApplyDefaults()

	if cfg.SQLite.Path != customPath {
		t.Errorf("SQLite.Path = %q, expected %q (explicit path should be preserved)", cfg.SQLite.Path, customPath)
	}
}

func TestApplyDefaults_EmptyTypeUsesSQLite(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Type != DatabaseTypeSQLite {
		t.Errorf("Type = %q, expected sqlite", cfg.Type)
	}
}

func TestApplyDefaults_Postgres(t *testing.T) {
	cfg := &Config{Type: DatabaseTypePostgres}
	cfg.ApplyDefaults()

	if cfg.Postgres.Port != 5432 {
		t.Errorf("Port = %d, expected 5432", cfg.Postgres.Port)
	}
	if cfg.Postgres.SSLMode != "disable" {
		t.Errorf("SSLMode = %q, expected 'disable'", cfg.Postgres.SSLMode)
	}
	if cfg.Postgres.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, expected 25", cfg.Postgres.MaxOpenConns)
	}
	if cfg.Postgres.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, expected 5", cfg.Postgres.MaxIdleConns)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid sqlite",
			cfg: Config{
				Type:   DatabaseTypeSQLite,
				SQLite: SQLiteConfig{Path: "/tmp/journal.db"},
			},
		},
		{
			name:    "sqlite without path",
			cfg:     Config{Type: DatabaseTypeSQLite},
			wantErr: "sqlite path is required",
		},
		{
			name: "valid postgres",
			cfg: Config{
				Type: DatabaseTypePostgres,
				Postgres: PostgresConfig{
					Host:     "localhost",
					Database: "zcore",
					User:     "zcore",
				},
			},
		},
		{
			name: "postgres without host",
			cfg: Config{
				Type:     DatabaseTypePostgres,
				Postgres: PostgresConfig{Database: "zcore", User: "zcore"},
			},
			wantErr: "postgres host is required",
		},
		{
			name: "postgres without database",
			cfg: Config{
				Type:     DatabaseTypePostgres,
				Postgres: PostgresConfig{Host: "localhost", User: "zcore"},
			},
			wantErr: "postgres database is required",
		},
		{
			name: "postgres without user",
			cfg: Config{
				Type:     DatabaseTypePostgres,
				Postgres: PostgresConfig{Host: "localhost", Database: "zcore"},
			},
			wantErr: "postgres user is required",
		},
		{
			name:    "unsupported type",
			cfg:     Config{Type: "oracle"},
			wantErr: "unsupported database type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, expected nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, expected error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.example.com",
		Port:     5433,
		Database: "zcore",
		User:     "journal",
		Password: "secret",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	for _, part := range []string{
		"host=db.example.com",
		"port=5433",
		"user=journal",
		"password=secret",
		"dbname=zcore",
		"sslmode=require",
	} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN %q missing %q", dsn, part)
		}
	}

	if strings.Contains(dsn, "sslrootcert") {
		t.Errorf("DSN %q contains sslrootcert despite empty config", dsn)
	}
}
