package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/zcore/internal/logger"
	"github.com/marmos91/zcore/internal/metrics"
	"github.com/marmos91/zcore/pkg/api/auth"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/engine/ioctl"
	"github.com/marmos91/zcore/pkg/engine/sim"
	"github.com/marmos91/zcore/pkg/journal"
	"github.com/marmos91/zcore/pkg/zfs"
)

// NewEngine creates the configured engine backend.
//
// "sim" builds the in-process engine, persisted under cfg.Dir when set.
// "ioctl" opens the /dev/zfs control device (linux only; other platforms
// report NotSupported).
func NewEngine(cfg EngineConfig) (engine.Engine, error) {
	switch cfg.Type {
	case "sim", "":
		eng, err := sim.New(sim.Config{Dir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("failed to create sim engine: %w", err)
		}
		return eng, nil
	case "ioctl":
		eng, err := ioctl.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open control device: %w", err)
		}
		return eng, nil
	default:
		return nil, fmt.Errorf("unknown engine type: %q", cfg.Type)
	}
}

// NewJournal creates the journal store when journaling is enabled.
// Returns nil, nil when the journal is disabled.
func NewJournal(cfg journal.Config) (*journal.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := journal.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return store, nil
}

// Runtime bundles the objects a command or the server needs to issue
// management operations: the engine handle, the client over it, and the
// journal store (nil when disabled).
type Runtime struct {
	Engine  engine.Engine
	Client  *zfs.Client
	Journal *journal.Store

	// Registry carries the operation metrics when metrics are enabled,
	// for exposing through an HTTP handler. Nil otherwise.
	Registry *prometheus.Registry

	// Metrics is the operation collector registered on Registry. Nil
	// when metrics are disabled; a nil collector is a no-op.
	Metrics *metrics.Operations
}

// NewRuntime builds the full object graph from the configuration.
//
// The engine, journal, and metrics are wired into a single client:
//   - the journal store becomes the client's Recorder
//   - metrics are registered on a fresh prometheus registry when enabled
//   - the configured output buffer size seeds reply allocation
//
// The caller must Close the returned runtime when done.
func NewRuntime(cfg *Config) (*Runtime, error) {
	logger.Debug("Initializing runtime from configuration", "engine", cfg.Engine.Type)

	eng, err := NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	jnl, err := NewJournal(cfg.Journal)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	opts := []zfs.Option{
		zfs.WithOutputSize(int(cfg.Engine.OutputSize)),
	}
	if jnl != nil {
		opts = append(opts, zfs.WithRecorder(jnl))
		logger.Debug("Journal enabled", "type", cfg.Journal.Type)
	}

	var (
		reg *prometheus.Registry
		ops *metrics.Operations
	)
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		ops = metrics.NewOperations(reg)
		opts = append(opts, zfs.WithMetrics(ops))
		logger.Debug("Metrics enabled")
	}

	rt := &Runtime{
		Engine:   eng,
		Client:   zfs.New(eng, opts...),
		Journal:  jnl,
		Registry: reg,
		Metrics:  ops,
	}

	logger.Info("Runtime initialized",
		"engine", cfg.Engine.Type,
		"journal", jnl != nil,
		"metrics", cfg.Metrics.Enabled)

	return rt, nil
}

// Close releases the runtime's engine handle and journal store.
func (rt *Runtime) Close() error {
	var firstErr error
	if rt.Journal != nil {
		if err := rt.Journal.Close(); err != nil {
			firstErr = err
		}
	}
	if rt.Engine != nil {
		if err := rt.Engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// APICredentials returns the admin credentials in the API server's format.
func (c *Config) APICredentials() auth.Credentials {
	return auth.Credentials{
		Username:     c.Admin.Username,
		PasswordHash: c.Admin.PasswordHash,
	}
}
