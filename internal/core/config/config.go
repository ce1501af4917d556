// Package config loads engine settings from YAML with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	jlconfig "github.com/JeremyLoy/config"
	"gopkg.in/yaml.v3"
)

const (
	PhysicsMemory   = "memory"
	PhysicsChipmunk = "chipmunk"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Tick    Tick    `json:"tick" yaml:"tick"`
	Physics Physics `json:"physics" yaml:"physics"`
	Storage Storage `json:"storage" yaml:"storage"`
	Server  Server  `json:"server" yaml:"server"`
	Log     Log     `json:"log" yaml:"log"`
}

type Tick struct {
	// Rate is ticks per second; out of range values fall back to 30.
	Rate int `json:"rate" yaml:"rate"`
}

type Physics struct {
	Backend    string     `json:"backend" yaml:"backend"`
	Gravity    [3]float64 `json:"gravity" yaml:"gravity"`
	Scale      float64    `json:"scale" yaml:"scale"`
	SleepAfter float64    `json:"sleep_after" yaml:"sleep_after"`
	Sync       Sync       `json:"sync" yaml:"sync"`
}

// Sync holds the physics change thresholds in world units.
type Sync struct {
	PositionSq  float64 `json:"position_sq" yaml:"position_sq"`
	Orientation float64 `json:"orientation" yaml:"orientation"`
}

type Storage struct {
	Backend string `json:"backend" yaml:"backend"`
	Shards  int    `json:"shards" yaml:"shards"`
	Redis   Redis  `json:"redis" yaml:"redis"`
}

type Redis struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"-" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

type Server struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	// Token, when set, is required by every inspector request.
	Token string `json:"-" yaml:"token"`
}

type Log struct {
	Level    string `json:"level" yaml:"level"`
	Encoding string `json:"encoding" yaml:"encoding"`
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		Tick: Tick{Rate: 30},
		Physics: Physics{
			Backend:    PhysicsMemory,
			Gravity:    [3]float64{0, -9.81, 0},
			Scale:      1,
			SleepAfter: 0.5,
			Sync:       Sync{PositionSq: 1e-4, Orientation: 1e-2},
		},
		Storage: Storage{
			Backend: StorageMemory,
			Shards:  16,
			Redis:   Redis{Addr: "localhost:6379", Namespace: "gamecore"},
		},
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info", Encoding: "json"},
	}
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// Load reads path, applies environment overrides and validates. An empty
// path starts from the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if cfg, err = Parse(bytes.NewReader(data)); err != nil {
			return Config{}, err
		}
	}
	cfg, err := cfg.ApplyEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// env lists the variables that override file settings.
type env struct {
	TickRate          int     `config:"GAMECORE_TICK_RATE"`
	PhysicsBackend    string  `config:"GAMECORE_PHYSICS_BACKEND"`
	PhysicsScale      float64 `config:"GAMECORE_PHYSICS_SCALE"`
	StorageBackend    string  `config:"GAMECORE_STORAGE_BACKEND"`
	RedisAddr         string  `config:"GAMECORE_REDIS_ADDR"`
	RedisPassword     string  `config:"GAMECORE_REDIS_PASSWORD"`
	RedisDB           int     `config:"GAMECORE_REDIS_DB"`
	RedisNamespace    string  `config:"GAMECORE_REDIS_NAMESPACE"`
	ServerEnabled     bool    `config:"GAMECORE_SERVER_ENABLED"`
	ServerAddr        string  `config:"GAMECORE_SERVER_ADDR"`
	ServerToken       string  `config:"GAMECORE_SERVER_TOKEN"`
	LogLevel          string  `config:"GAMECORE_LOG_LEVEL"`
	LogEncoding       string  `config:"GAMECORE_LOG_ENCODING"`
	SyncPositionSq    float64 `config:"GAMECORE_SYNC_POSITION_SQ"`
	SyncOrientation   float64 `config:"GAMECORE_SYNC_ORIENTATION"`
	PhysicsSleepAfter float64 `config:"GAMECORE_PHYSICS_SLEEP_AFTER"`
}

// ApplyEnv returns c with every GAMECORE_* variable present in the
// environment applied on top.
func (c Config) ApplyEnv() (Config, error) {
	e := env{
		TickRate:          c.Tick.Rate,
		PhysicsBackend:    c.Physics.Backend,
		PhysicsScale:      c.Physics.Scale,
		StorageBackend:    c.Storage.Backend,
		RedisAddr:         c.Storage.Redis.Addr,
		RedisPassword:     c.Storage.Redis.Password,
		RedisDB:           c.Storage.Redis.DB,
		RedisNamespace:    c.Storage.Redis.Namespace,
		ServerEnabled:     c.Server.Enabled,
		ServerAddr:        c.Server.Addr,
		ServerToken:       c.Server.Token,
		LogLevel:          c.Log.Level,
		LogEncoding:       c.Log.Encoding,
		SyncPositionSq:    c.Physics.Sync.PositionSq,
		SyncOrientation:   c.Physics.Sync.Orientation,
		PhysicsSleepAfter: c.Physics.SleepAfter,
	}
	if err := jlconfig.FromEnv().To(&e); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	c.Tick.Rate = e.TickRate
	c.Physics.Backend = e.PhysicsBackend
	c.Physics.Scale = e.PhysicsScale
	c.Physics.SleepAfter = e.PhysicsSleepAfter
	c.Physics.Sync = Sync{PositionSq: e.SyncPositionSq, Orientation: e.SyncOrientation}
	c.Storage.Backend = e.StorageBackend
	c.Storage.Redis = Redis{Addr: e.RedisAddr, Password: e.RedisPassword, DB: e.RedisDB, Namespace: e.RedisNamespace}
	c.Server = Server{Enabled: e.ServerEnabled, Addr: e.ServerAddr, Token: e.ServerToken}
	c.Log = Log{Level: e.LogLevel, Encoding: e.LogEncoding}
	return c, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Physics.Backend {
	case PhysicsMemory, PhysicsChipmunk:
	default:
		errs = append(errs, fmt.Errorf("%w: physics.backend %q", ErrInvalid, c.Physics.Backend))
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("%w: storage.redis.addr is required", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: storage.backend %q", ErrInvalid, c.Storage.Backend))
	}
	if c.Physics.Scale <= 0 {
		errs = append(errs, fmt.Errorf("%w: physics.scale must be positive", ErrInvalid))
	}
	if c.Physics.Sync.PositionSq < 0 || c.Physics.Sync.Orientation < 0 {
		errs = append(errs, fmt.Errorf("%w: physics.sync thresholds must not be negative", ErrInvalid))
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%w: log.encoding %q", ErrInvalid, c.Log.Encoding))
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr is required when enabled", ErrInvalid))
	}
	return errors.Join(errs...)
}
