package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/gamecore/internal/core/events/bus"
)

func TestCollectorTicks(t *testing.T) {
	c := New()
	c.ObserveTick(2*time.Millisecond, nil)
	c.ObserveTick(time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tickFaults))
	assert.Equal(t, 1, testutil.CollectAndCount(c.tickDuration))
}

func TestCollectorEntities(t *testing.T) {
	c := New()
	c.SetEntities(5, 2)
	assert.Equal(t, 5.0, testutil.ToFloat64(c.entities))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.spawned))
}

func TestCollectorObservesBus(t *testing.T) {
	c := New()
	b := bus.New()
	b.AddObserver(c)
	b.Subscribe(bus.EntitySpawned, func(bus.Event) error { return nil })
	b.Subscribe(bus.EntityDespawned, func(bus.Event) error { return errors.New("fail") })

	require.NoError(t, b.Publish(bus.NewEvent(bus.EntitySpawned, "test", 1, nil)))
	require.NoError(t, b.Publish(bus.NewEvent(bus.EntitySpawned, "test", 2, nil)))
	require.Error(t, b.Publish(bus.NewEvent(bus.EntityDespawned, "test", 1, nil)))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.events.WithLabelValues(bus.EntitySpawned)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues(bus.EntityDespawned)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventErrors.WithLabelValues(bus.EntityDespawned)))
}

func TestHandler(t *testing.T) {
	c := New()
	c.ObserveTick(time.Millisecond, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gamecore_tick_total 1")
	assert.Contains(t, string(body), "gamecore_tick_duration_seconds_bucket")
}
