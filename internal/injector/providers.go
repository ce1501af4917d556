package injector

import (
	"context"

	"github.com/zeusync/gamecore/internal/core/config"
	"github.com/zeusync/gamecore/internal/core/observability/log"
	"github.com/zeusync/gamecore/internal/core/observability/metrics"
	"github.com/zeusync/gamecore/internal/engine"
	"github.com/zeusync/gamecore/internal/server"
)

// ConfigPath is the optional YAML file read by ProvideConfig.
type ConfigPath string

func ProvideConfig(path ConfigPath) (config.Config, error) {
	return config.Load(string(path))
}

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg config.Config) *log.Logger {
	level, ok := log.ParseLevel(cfg.Log.Level)
	if !ok {
		level = log.LevelInfo
	}
	return log.NewWithOptions(log.Options{Level: level, Encoding: cfg.Log.Encoding})
}

func ProvideMetrics() *metrics.Collector {
	return metrics.New()
}

func ProvideEngineOptions(logger *log.Logger, m *metrics.Collector) []engine.Option {
	return []engine.Option{engine.WithLogger(logger), engine.WithMetrics(m)}
}

func ProvideEngine(ctx context.Context, cfg config.Config, opts []engine.Option) (*engine.Engine, error) {
	return engine.New(ctx, cfg, opts...)
}

// ProvideServer returns nil when the inspector is disabled.
func ProvideServer(eng *engine.Engine, cfg config.Config, logger *log.Logger) *server.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	sc := server.DefaultConfig()
	sc.Addr = cfg.Server.Addr
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithAuthenticator(server.TokenAuth{Token: cfg.Server.Token}),
	}
	if m := eng.Metrics(); m != nil {
		opts = append(opts, server.WithMetrics(m.Handler()))
	}
	return server.New(eng, eng.Bus(), sc, opts...)
}

// App is everything cmd/engine runs.
type App struct {
	Config    config.Config
	Logger    *log.Logger
	Engine    *engine.Engine
	Inspector *server.Server
}

func ProvideApp(cfg config.Config, logger *log.Logger, eng *engine.Engine, srv *server.Server) *App {
	return &App{Config: cfg, Logger: logger, Engine: eng, Inspector: srv}
}

// NewApp wires an App by hand in the same order as the injector.
func NewApp(ctx context.Context, path ConfigPath) (*App, error) {
	cfg, err := ProvideConfig(path)
	if err != nil {
		return nil, err
	}
	logger := ProvideLogger(cfg)
	eng, err := ProvideEngine(ctx, cfg, ProvideEngineOptions(logger, ProvideMetrics()))
	if err != nil {
		return nil, err
	}
	return ProvideApp(cfg, logger, eng, ProvideServer(eng, cfg, logger)), nil
}
