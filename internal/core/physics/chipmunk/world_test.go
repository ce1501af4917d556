package chipmunk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/gamecore/internal/core/physics"
	"github.com/zeusync/gamecore/internal/core/spatial"
)

func circle(mass float64) physics.BodyDescriptor {
	return physics.BodyDescriptor{Shape: physics.Shape{Kind: physics.Sphere, Radius: 0.5}, Mass: mass}
}

func TestSpawnDespawn(t *testing.T) {
	w := New(Config{})
	b, err := w.NewBody(circle(1))
	require.NoError(t, err)

	require.NoError(t, w.Spawn(3, b))
	assert.Equal(t, 1, w.Len())
	assert.ErrorIs(t, w.Spawn(3, b), physics.ErrAlreadySpawned)
	assert.ErrorIs(t, w.Despawn(4, b), physics.ErrNotSpawned)

	require.NoError(t, w.Despawn(3, b))
	assert.Zero(t, w.Len())
}

func TestPerBodyGravity(t *testing.T) {
	w := New(Config{Gravity: spatial.V(0, -10, 0)})
	falling, _ := w.NewBody(circle(1))
	falling.SetGravity(w.DefaultGravity())
	floating, _ := w.NewBody(circle(1))
	floating.SetPosition(spatial.V(5, 0, 0))
	require.NoError(t, w.Spawn(1, falling))
	require.NoError(t, w.Spawn(2, floating))

	w.Step(0.1)

	assert.InDelta(t, -1, falling.LinearVelocity().Y, 1e-9)
	assert.Less(t, falling.Position().Y, 0.0)
	assert.Equal(t, spatial.V(5, 0, 0), floating.Position())
}

func TestPlanarMapping(t *testing.T) {
	w := New(Config{})
	b, _ := w.NewBody(circle(2))

	b.SetPosition(spatial.V(1, 2, 3))
	assert.Equal(t, spatial.V(1, 2, 0), b.Position())

	b.SetOrientation(spatial.AxisAngle(spatial.V(0, 0, 1), math.Pi/2))
	assert.InDelta(t, 0, b.Orientation().AngleTo(spatial.AxisAngle(spatial.V(0, 0, 1), math.Pi/2)), 1e-6)

	b.SetAngularVelocity(spatial.V(9, 9, 1.5))
	assert.Equal(t, spatial.V(0, 0, 1.5), b.AngularVelocity())

	b.SetFriction(0.7)
	b.SetRestitution(0.3)
	assert.Equal(t, 0.7, b.Friction())
	assert.Equal(t, 0.3, b.Restitution())

	b.SetMass(4)
	assert.Equal(t, 4.0, b.Mass())
	b.SetMass(-1)
	assert.Equal(t, 4.0, b.Mass())
}

func TestImpulse(t *testing.T) {
	w := New(Config{})
	b, _ := w.NewBody(circle(2))
	require.NoError(t, w.Spawn(1, b))

	b.ApplyImpulse(b.Position(), spatial.V(4, 0, 0))
	b.Activate()
	assert.InDelta(t, 2, b.LinearVelocity().X, 1e-9)
	assert.True(t, b.Active())
}

func TestCharacterKeepsRotation(t *testing.T) {
	w := New(Config{})
	c, err := w.NewCharacter(circle(1))
	require.NoError(t, err)
	c.Body().SetAngularVelocity(spatial.V(0, 0, 3))
	assert.Equal(t, spatial.Zero, c.Body().AngularVelocity())

	c.Body().SetLinearVelocity(spatial.V(0, -2, 0))
	c.Walk(spatial.V(1, 5, 0))
	assert.Equal(t, spatial.V(1, -2, 0), c.Body().LinearVelocity())
}

func TestShapes(t *testing.T) {
	w := New(Config{})
	_, err := w.NewBody(physics.BodyDescriptor{Shape: physics.Shape{Kind: physics.Box, HalfExtents: spatial.V(1, 1, 1)}, Mass: 1})
	require.NoError(t, err)
	_, err = w.NewBody(physics.BodyDescriptor{Shape: physics.Shape{Kind: physics.Capsule, Radius: 0.3, HalfExtents: spatial.V(0, 1, 0)}, Mass: 1})
	require.NoError(t, err)
	_, err = w.NewBody(physics.BodyDescriptor{Shape: physics.Shape{Kind: physics.ShapeKind(9)}, Mass: 1})
	require.Error(t, err)
}

func TestMass(t *testing.T) {
	w := New(Config{})

	t.Run("kinematic bodies report their descriptor mass", func(t *testing.T) {
		b, err := w.NewBody(circle(0))
		require.NoError(t, err)
		assert.Zero(t, b.Mass())
		b.SetMass(4)
		assert.Zero(t, b.Mass(), "kinematic bodies stay kinematic")
		assert.False(t, math.IsInf(b.Mass(), 1))
	})

	t.Run("dynamic bodies follow SetMass", func(t *testing.T) {
		b, err := w.NewBody(circle(1))
		require.NoError(t, err)
		b.SetMass(3)
		assert.Equal(t, 3.0, b.Mass())
		b.SetMass(-1)
		assert.Equal(t, 3.0, b.Mass())
	})
}
