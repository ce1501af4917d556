package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestPublishSubscribe(t *testing.T) {
	t.Run("delivers in subscription order", func(t *testing.T) {
		b := New()
		var got []string
		b.Subscribe(EntitySpawned, func(e Event) error { got = append(got, "a"); return nil })
		b.Subscribe(EntitySpawned, func(e Event) error { got = append(got, "b"); return nil })
		b.Subscribe(EntityDespawned, func(e Event) error { got = append(got, "other"); return nil })

		require.NoError(t, b.Publish(NewEvent(EntitySpawned, "test", 7, nil)))
		assert.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("wildcard receives every type", func(t *testing.T) {
		b := New()
		var types []string
		b.Subscribe(Wildcard, func(e Event) error { types = append(types, e.Type); return nil })

		require.NoError(t, b.Publish(NewEvent(PropertyAdded, "test", 1, nil)))
		require.NoError(t, b.Publish(NewEvent(TickFault, "test", 0, nil)))
		assert.Equal(t, []string{PropertyAdded, TickFault}, types)
	})

	t.Run("event carries payload", func(t *testing.T) {
		b := New()
		var got Event
		b.Subscribe(PropertyAdded, func(e Event) error { got = e; return nil })

		require.NoError(t, b.Publish(NewEvent(PropertyAdded, "holder", 42, map[string]any{"property": "Health"})))
		assert.Equal(t, uint64(42), got.EntityID)
		assert.Equal(t, "holder", got.Source)
		assert.Equal(t, "Health", got.Data["property"])
		assert.False(t, got.Timestamp.IsZero())
	})
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	b.Subscribe("x", func(Event) error { return errA })
	b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "src", 0, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	count := 0
	sub := b.Subscribe("x", func(Event) error { count++; return nil })
	assert.True(t, sub.IsActive())
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, "x", sub.EventType())

	require.NoError(t, b.Publish(NewEvent("x", "src", 0, nil)))
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)
	require.NoError(t, b.Publish(NewEvent("x", "src", 0, nil)))

	assert.False(t, sub.IsActive())
	assert.Equal(t, 1, count)
}

func TestCancelDuringPublish(t *testing.T) {
	b := New()
	var second Subscription
	calls := 0
	b.Subscribe("x", func(Event) error {
		second.Cancel()
		return nil
	})
	second = b.Subscribe("x", func(Event) error { calls++; return nil })

	require.NoError(t, b.Publish(NewEvent("x", "src", 0, nil)))
	assert.Zero(t, calls)
}

func TestObserverMetrics(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)
	b.Subscribe("x", func(Event) error { return nil })
	b.Subscribe("x", func(Event) error { return errors.New("boom") })

	err := b.Publish(NewEvent("x", "src", 0, nil))
	require.Error(t, err)
	assert.Equal(t, 2, obs.deliveredCount)
	assert.Error(t, obs.lastErr)

	m := b.Metrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(2), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.Errors)
	assert.Equal(t, uint64(2), m.SubscribersActive)

	b.RemoveObserver(obs)
	require.Error(t, b.Publish(NewEvent("x", "src", 0, nil)))
	assert.Equal(t, 2, obs.deliveredCount)
}
