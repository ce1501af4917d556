// Package engine wires the property core, a physics world, snapshot storage
// and the lifecycle bus behind a fixed-step tick loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zeusync/gamecore/internal/core/codec"
	"github.com/zeusync/gamecore/internal/core/config"
	"github.com/zeusync/gamecore/internal/core/entity"
	"github.com/zeusync/gamecore/internal/core/events/bus"
	"github.com/zeusync/gamecore/internal/core/observability/log"
	"github.com/zeusync/gamecore/internal/core/observability/metrics"
	"github.com/zeusync/gamecore/internal/core/physics"
	"github.com/zeusync/gamecore/internal/core/physics/chipmunk"
	physmem "github.com/zeusync/gamecore/internal/core/physics/memory"
	"github.com/zeusync/gamecore/internal/core/physicsprop"
	"github.com/zeusync/gamecore/internal/core/property"
	"github.com/zeusync/gamecore/internal/core/spatial"
	"github.com/zeusync/gamecore/internal/core/storage"
	storemem "github.com/zeusync/gamecore/internal/core/storage/memory"
	redisstore "github.com/zeusync/gamecore/internal/core/storage/redis"
	"github.com/zeusync/gamecore/internal/core/tick"
)

var ErrUnknownEntity = errors.New("engine: unknown entity")

const eventSource = "engine"

// Engine owns every entity. Entity state is only touched inside a tick or
// through Locked.
type Engine struct {
	cfg     config.Config
	logger  log.Log
	codecs  *codec.Registry
	types   *property.Types
	world   physics.World
	store   storage.Storage
	bus     bus.EventBus
	loop    *tick.Loop
	clock   tick.Clock
	metrics *metrics.Collector

	entities map[entity.ID]*entity.Entity
	order    []entity.ID
	nextID   entity.ID
}

type Option func(*Engine)

func WithLogger(l log.Log) Option {
	return func(e *Engine) { e.logger = l }
}

func WithCodecs(r *codec.Registry) Option {
	return func(e *Engine) { e.codecs = r }
}

// WithTypes sets the property registry. It must contain the physics property.
func WithTypes(t *property.Types) Option {
	return func(e *Engine) { e.types = t }
}

func WithWorld(w physics.World) Option {
	return func(e *Engine) { e.world = w }
}

func WithStorage(s storage.Storage) Option {
	return func(e *Engine) { e.store = s }
}

func WithBus(b bus.EventBus) Option {
	return func(e *Engine) { e.bus = b }
}

func WithClock(c tick.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMetrics records ticks, entity counts and bus deliveries in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// New builds an engine from cfg. Components not supplied through options are
// created from the configuration.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		entities: make(map[entity.ID]*entity.Entity),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Provide()
	}
	if e.codecs == nil {
		e.codecs = codec.Init()
	}
	if e.types == nil {
		e.types = property.DefaultTypes()
	}
	if e.bus == nil {
		e.bus = bus.New()
	}
	if e.world == nil {
		w, err := newWorld(cfg.Physics)
		if err != nil {
			return nil, err
		}
		e.world = w
	}
	if e.store == nil {
		s, err := newStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		e.store = s
	}

	if e.metrics != nil {
		e.bus.AddObserver(e.metrics)
	}

	loopOpts := []tick.Option{tick.WithRate(cfg.Tick.Rate), tick.WithLogger(e.logger.With(log.String("component", "tick")))}
	if e.clock != nil {
		loopOpts = append(loopOpts, tick.WithClock(e.clock))
	}
	e.loop = tick.New(e.Tick, loopOpts...)

	e.logger.Info("engine created",
		log.String("physics", cfg.Physics.Backend),
		log.String("storage", cfg.Storage.Backend),
		log.Int("rate", e.loop.Rate()),
	)
	return e, nil
}

func newWorld(cfg config.Physics) (physics.World, error) {
	gravity := spatial.V(cfg.Gravity[0], cfg.Gravity[1], cfg.Gravity[2])
	scale := physics.NewScale(cfg.Scale)
	switch cfg.Backend {
	case config.PhysicsMemory, "":
		return physmem.New(physmem.Config{Gravity: gravity, Scale: scale, SleepAfter: cfg.SleepAfter}), nil
	case config.PhysicsChipmunk:
		return chipmunk.New(chipmunk.Config{Gravity: gravity, Scale: scale, SleepTimeThreshold: cfg.SleepAfter}), nil
	default:
		return nil, fmt.Errorf("%w: physics backend %q", config.ErrInvalid, cfg.Backend)
	}
}

func newStorage(ctx context.Context, cfg config.Storage) (storage.Storage, error) {
	switch cfg.Backend {
	case config.StorageMemory, "":
		return storemem.New(cfg.Shards), nil
	case config.StorageRedis:
		return redisstore.New(ctx, redisstore.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		})
	default:
		return nil, fmt.Errorf("%w: storage backend %q", config.ErrInvalid, cfg.Backend)
	}
}

func (e *Engine) Bus() bus.EventBus { return e.bus }

func (e *Engine) World() physics.World { return e.world }

func (e *Engine) Storage() storage.Storage { return e.store }

func (e *Engine) Codecs() *codec.Registry { return e.codecs }

func (e *Engine) Types() *property.Types { return e.types }

func (e *Engine) Loop() *tick.Loop { return e.loop }

// Metrics returns nil unless WithMetrics was given.
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

// Locked runs fn between ticks.
func (e *Engine) Locked(fn func()) { e.loop.Locked(fn) }

// PhysicsProperty creates a physics property using the configured thresholds.
func (e *Engine) PhysicsProperty(opts ...physicsprop.Option) *physicsprop.Property {
	return physicsprop.New(append(e.physicsDefaults(), opts...)...)
}

// physicsDefaults are the options every physics property of this engine gets.
func (e *Engine) physicsDefaults() []physicsprop.Option {
	th := physicsprop.Thresholds{
		PositionSq:  e.cfg.Physics.Sync.PositionSq,
		Orientation: e.cfg.Physics.Sync.Orientation,
	}
	return []physicsprop.Option{physicsprop.WithThresholds(th)}
}

// prepareRestored configures properties built while loading a snapshot the
// same way PhysicsProperty does.
func (e *Engine) prepareRestored(p property.Property) {
	if pp, ok := p.(*physicsprop.Property); ok {
		pp.Apply(e.physicsDefaults()...)
	}
}

// Tick steps the world, reconciles physics properties and ticks every
// tickable property, entity by entity in creation order.
func (e *Engine) Tick(dt float64) (err error) {
	if e.metrics != nil {
		start := time.Now()
		defer func() { e.metrics.ObserveTick(time.Since(start), err) }()
	}
	e.world.Step(dt)

	ids := slices.Clone(e.order)
	for _, id := range ids {
		ent, ok := e.entities[id]
		if !ok {
			continue
		}
		_ = property.Each(ent.Holder, physicsprop.Synced, func(s physicsprop.Syncer) error {
			s.TickSync()
			return nil
		})
	}
	for _, id := range ids {
		ent, ok := e.entities[id]
		if !ok {
			continue
		}
		err = property.Each(ent.Holder, property.Tickable, func(t property.Ticker) error {
			return t.Tick(dt)
		})
		if err != nil {
			return fmt.Errorf("entity %d: %w", id, err)
		}
	}
	return nil
}

// Run drives the tick loop until ctx ends, Shutdown is called or a tick
// faults. A fault is published as tick.fault before it is returned.
func (e *Engine) Run(ctx context.Context) error {
	err := e.loop.Run(ctx)
	if err != nil {
		e.publish(bus.TickFault, 0, map[string]any{"error": err.Error()})
	}
	return err
}

// Shutdown stops the loop before its next tick.
func (e *Engine) Shutdown() { e.loop.Shutdown() }

// Close despawns every entity and releases storage. Call it after Run returned.
func (e *Engine) Close() error {
	var errs []error
	for _, id := range slices.Clone(e.order) {
		if ent := e.entities[id]; ent != nil && ent.Spawned() {
			if err := e.Despawn(id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	e.logger.Info("engine closed", log.Int("entities", len(e.order)))
	return errors.Join(errs...)
}

func (e *Engine) publish(typ string, id entity.ID, data map[string]any) {
	if err := e.bus.Publish(bus.NewEvent(typ, eventSource, uint64(id), data)); err != nil {
		e.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}
