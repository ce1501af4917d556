package engine

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/gamecore/internal/core/config"
	"github.com/zeusync/gamecore/internal/core/entity"
	"github.com/zeusync/gamecore/internal/core/events/bus"
	"github.com/zeusync/gamecore/internal/core/observability/log"
	"github.com/zeusync/gamecore/internal/core/observability/metrics"
	"github.com/zeusync/gamecore/internal/core/physics/chipmunk"
	"github.com/zeusync/gamecore/internal/core/physicsprop"
	"github.com/zeusync/gamecore/internal/core/property"
	"github.com/zeusync/gamecore/internal/core/spatial"
	"github.com/zeusync/gamecore/internal/core/storage"
	storemem "github.com/zeusync/gamecore/internal/core/storage/memory"
)

type counter struct {
	property.Base
	Count int64
	fail  error
}

func (c *counter) Tick(float64) error {
	c.Count++
	return c.fail
}

func testTypes(t *testing.T) *property.Types {
	t.Helper()
	types := property.NewTypes()
	require.NoError(t, physicsprop.Register(types))
	_, err := property.DefineIn(types, "counter", func() *counter { return &counter{} },
		property.WithMembers(property.Field("count", property.Debuggable|property.AutoSave,
			func(c *counter) int64 { return c.Count },
			func(c *counter, v int64) { c.Count = v })),
		property.Implements(property.Tickable),
	)
	require.NoError(t, err)
	return types
}

type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) handle(e bus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	cfg := config.Default()
	cfg.Physics.Gravity = [3]float64{0, -10, 0}
	e, err := New(context.Background(), cfg, append([]Option{WithTypes(testTypes(t)), WithLogger(log.Nop())}, opts...)...)
	require.NoError(t, err)
	rec := &recorder{}
	e.Bus().Subscribe(bus.Wildcard, rec.handle)
	return e, rec
}

func TestEntityLifecycle(t *testing.T) {
	e, rec := newEngine(t)
	ent := e.NewEntity(entity.WithName("crate"))
	assert.Equal(t, entity.ID(1), ent.ID())

	p := e.PhysicsProperty(physicsprop.WithPosition(spatial.V(0, 10, 0)))
	assert.Equal(t, physicsprop.Thresholds{PositionSq: 1e-4, Orientation: 1e-2}, p.Thresholds())
	require.NoError(t, ent.Add(p))
	require.NoError(t, ent.Add(&counter{}))

	require.NoError(t, e.Spawn(ent.ID()))
	assert.Equal(t, spatial.V(0, 10, 0), ent.Position())
	assert.Equal(t, 1, e.World().Len())

	require.NoError(t, e.Despawn(ent.ID()))
	assert.Zero(t, e.World().Len())

	require.NoError(t, e.RemoveEntity(ent.ID()))
	_, ok := e.Entity(ent.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, e.Spawn(ent.ID()), ErrUnknownEntity)

	assert.Equal(t, []string{
		bus.PropertyAdded, bus.PropertyAdded,
		bus.EntitySpawned, bus.EntityDespawned,
		bus.PropertyRemoved, bus.PropertyRemoved,
	}, rec.types())
}

func TestTick(t *testing.T) {
	e, _ := newEngine(t)
	ent := e.NewEntity()
	require.NoError(t, ent.Add(e.PhysicsProperty()))
	c := &counter{}
	require.NoError(t, ent.Add(c))
	require.NoError(t, e.Spawn(ent.ID()))

	require.NoError(t, e.Tick(0.5))
	assert.Equal(t, int64(1), c.Count)
	assert.InDelta(t, -2.5, ent.Position().Y, 1e-9, "world step reaches the entity in the same tick")

	c.fail = errors.New("broken")
	err := e.Tick(0.1)
	require.ErrorIs(t, err, c.fail)
	assert.Contains(t, err.Error(), "entity 1")
}

func TestSnapshots(t *testing.T) {
	store := storemem.New(4)
	e, _ := newEngine(t, WithStorage(store))
	ent := e.NewEntity()
	p := e.PhysicsProperty(physicsprop.WithMass(3), physicsprop.WithPosition(spatial.V(1, 2, 3)))
	require.NoError(t, ent.Add(p))
	require.NoError(t, ent.Add(&counter{Count: 41}))
	require.NoError(t, e.SaveEntity(context.Background(), ent.ID()))

	t.Run("restores into a fresh engine", func(t *testing.T) {
		other, _ := newEngine(t, WithStorage(store))
		restored, err := other.LoadEntity(context.Background(), ent.ID())
		require.NoError(t, err)

		rp, err := property.Get[*physicsprop.Property](restored.Holder)
		require.NoError(t, err)
		assert.Equal(t, 3.0, rp.Mass())
		assert.Equal(t, spatial.V(1, 2, 3), rp.Position())
		rc, err := property.Get[*counter](restored.Holder)
		require.NoError(t, err)
		assert.Equal(t, int64(41), rc.Count)

		next := other.NewEntity()
		assert.Equal(t, ent.ID()+1, next.ID(), "ids continue after loaded entities")
	})

	t.Run("updates held properties in place", func(t *testing.T) {
		c, _ := property.Get[*counter](ent.Holder)
		c.Count = 0
		_, err := e.LoadEntity(context.Background(), ent.ID())
		require.NoError(t, err)
		assert.Equal(t, int64(41), c.Count)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		_, err := e.LoadEntity(context.Background(), 99)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("save all and load all", func(t *testing.T) {
		second := e.NewEntity()
		require.NoError(t, second.Add(&counter{Count: 7}))
		require.NoError(t, e.SaveAll(context.Background()))
		require.NoError(t, store.Save(context.Background(), "foreign", []byte("x")))

		other, _ := newEngine(t, WithStorage(store))
		n, err := other.LoadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, other.Entities(), 2)
	})
}

func TestRestoredPhysicsUsesConfiguredThresholds(t *testing.T) {
	cfg := config.Default()
	cfg.Physics.Sync = config.Sync{PositionSq: 4, Orientation: 0.5}
	want := physicsprop.Thresholds{PositionSq: 4, Orientation: 0.5}
	store := storemem.New(1)
	newWith := func() *Engine {
		e, err := New(context.Background(), cfg, WithTypes(testTypes(t)), WithLogger(log.Nop()), WithStorage(store))
		require.NoError(t, err)
		return e
	}

	e := newWith()
	ent := e.NewEntity()
	p := e.PhysicsProperty()
	assert.Equal(t, want, p.Thresholds())
	require.NoError(t, ent.Add(p))
	require.NoError(t, e.SaveEntity(context.Background(), ent.ID()))

	restored, err := newWith().LoadEntity(context.Background(), ent.ID())
	require.NoError(t, err)
	rp, err := property.Get[*physicsprop.Property](restored.Holder)
	require.NoError(t, err)
	assert.Equal(t, want, rp.Thresholds())
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Storage.Backend = config.StorageRedis
	cfg.Storage.Redis.Addr = mr.Addr()

	e, err := New(context.Background(), cfg, WithTypes(testTypes(t)), WithLogger(log.Nop()))
	require.NoError(t, err)
	ent := e.NewEntity()
	require.NoError(t, ent.Add(&counter{Count: 5}))
	require.NoError(t, e.SaveAll(context.Background()))
	assert.True(t, mr.Exists("gamecore:snapshot:"+SnapshotKey(ent.ID())))
	require.NoError(t, e.Close())
}

func TestBackendsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Physics.Backend = config.PhysicsChipmunk
	e, err := New(context.Background(), cfg, WithTypes(testTypes(t)), WithLogger(log.Nop()))
	require.NoError(t, err)
	assert.IsType(t, &chipmunk.World{}, e.World())

	cfg.Physics.Backend = "bullet"
	_, err = New(context.Background(), cfg, WithLogger(log.Nop()))
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg = config.Default()
	cfg.Storage.Backend = "sqlite"
	_, err = New(context.Background(), cfg, WithLogger(log.Nop()))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRun(t *testing.T) {
	t.Run("shutdown", func(t *testing.T) {
		e, _ := newEngine(t)
		ent := e.NewEntity()
		c := &counter{}
		require.NoError(t, ent.Add(c))

		done := make(chan error, 1)
		go func() { done <- e.Run(context.Background()) }()
		require.Eventually(t, func() bool {
			var n int64
			e.Locked(func() { n = c.Count })
			return n > 0
		}, time.Second, 5*time.Millisecond)

		e.Shutdown()
		require.NoError(t, <-done)
		require.NoError(t, e.Close())
	})

	t.Run("fault is published", func(t *testing.T) {
		e, rec := newEngine(t)
		ent := e.NewEntity()
		require.NoError(t, ent.Add(&counter{fail: errors.New("broken")}))

		err := e.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, rec.types(), bus.TickFault)
	})
}

func TestViews(t *testing.T) {
	e, _ := newEngine(t)
	ent := e.NewEntity(entity.WithName("lamp"))
	require.NoError(t, ent.Add(&counter{Count: 2}))

	views := e.Views()
	require.Len(t, views, 1)
	assert.Equal(t, "lamp", views[0].Name)
	assert.Equal(t, []string{"counter"}, views[0].Properties)
	assert.Empty(t, views[0].Debug)

	v, ok := e.View(ent.ID())
	require.True(t, ok)
	require.Len(t, v.Debug, 1)
	assert.Equal(t, "counter(count)", v.Debug[0].Label)
	assert.Equal(t, "2", v.Debug[0].Value)

	_, ok = e.View(42)
	assert.False(t, ok)
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	e, _ := newEngine(t, WithMetrics(m))
	require.Same(t, m, e.Metrics())

	ent := e.NewEntity()
	c := &counter{}
	require.NoError(t, ent.Add(e.PhysicsProperty()))
	require.NoError(t, ent.Add(c))
	e.NewEntity()
	require.NoError(t, e.Spawn(ent.ID()))

	require.NoError(t, e.Tick(1.0/30))
	c.fail = errors.New("boom")
	require.Error(t, e.Tick(1.0/30))

	body := scrape(t, m)
	assert.Contains(t, body, "gamecore_tick_total 2")
	assert.Contains(t, body, "gamecore_tick_faults_total 1")
	assert.Contains(t, body, "gamecore_entities 2")
	assert.Contains(t, body, "gamecore_entities_spawned 1")
	assert.Contains(t, body, `gamecore_bus_events_total{type="entity.spawned"} 1`)

	require.NoError(t, e.RemoveEntity(ent.ID()))
	body = scrape(t, m)
	assert.Contains(t, body, "gamecore_entities 1")
	assert.Contains(t, body, "gamecore_entities_spawned 0")
}

func scrape(t *testing.T, m *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}
