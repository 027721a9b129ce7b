package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfigTemplate is the commented starter configuration written by
// 'zcore init'. %s is replaced with a freshly generated JWT secret.
const sampleConfigTemplate = `# zcore Configuration File
#
# This file configures the zcore CLI and the REST server.
# All values can be overridden with ZCORE_* environment variables,
# e.g. ZCORE_LOGGING_LEVEL=DEBUG or ZCORE_ENGINE_TYPE=ioctl.

logging:
  # Minimum log level: DEBUG, INFO, WARN, ERROR
  level: "INFO"
  # Output format: text or json
  format: "text"
  # Destination: stdout, stderr, or a file path
  output: "stdout"

engine:
  # Engine backend: sim (in-process) or ioctl (/dev/zfs, linux only)
  type: "sim"
  # Persistence directory for the sim engine. Empty keeps state in memory.
  # dir: "/var/lib/zcore/sim"

journal:
  # Record every management operation in the journal database.
  enabled: true
  # Database backend: sqlite (single node) or postgres
  type: "sqlite"
  # sqlite:
  #   path: "~/.config/zcore/journal.db"
  # postgres:
  #   host: "localhost"
  #   port: 5432
  #   database: "zcore"
  #   user: "zcore"
  #   password: ""
  #   ssl_mode: "disable"

metrics:
  # Prometheus metrics (also served on the API's /metrics route)
  enabled: false
  # port: 9090

api:
  # REST API server for 'zcore serve'
  port: 8080
  jwt:
    # HMAC signing key for JWT tokens; at least 32 characters.
    # Can be overridden with the ZCORE_API_SECRET environment variable.
    secret: "%s"

stream:
  # Spool directory for 'zcore receive --spool'
  # spool:
  #   dir: "/var/spool/zcore"
  #   archive: "/var/spool/zcore/done"
  # S3 settings for s3://bucket/key stream targets
  # s3:
  #   region: "us-east-1"
  #   endpoint: ""            # set for MinIO, e.g. "http://localhost:9000"
  #   access_key_id: ""
  #   secret_access_key: ""
  #   force_path_style: false

admin:
  # Admin user for the REST API. Set the bcrypt password hash with
  # 'zcore init' or: htpasswd -nbB "" "password" | cut -d: -f2
  username: "admin"
  # password_hash: ""
`

// InitConfig creates a starter configuration file at the default location.
//
// Returns the path of the created file. Fails if the file already exists
// unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a starter configuration file at the given path.
//
// The generated file contains a fresh random JWT secret and commented
// examples for every section. Fails if the file already exists unless
// force is true.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	secret, err := generateJWTSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	content := fmt.Sprintf(sampleConfigTemplate, secret)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file carries the JWT secret
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateJWTSecret returns 32 random bytes hex-encoded (64 characters).
func generateJWTSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
