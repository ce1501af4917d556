// Package physics defines the contract between entity properties and an
// external rigid-body simulation.
//
// Worlds work in their own internal scale. Scale converts between the public
// coordinate space of entities and that internal space.
package physics

import (
	"errors"

	"github.com/zeusync/gamecore/internal/core/spatial"
)

var (
	ErrNotSpawned     = errors.New("physics: body is not in the world")
	ErrAlreadySpawned = errors.New("physics: body is already in the world")
	ErrForeignBody    = errors.New("physics: body was created by another world")
)

// Handle identifies the owner of a spawned body, usually an entity id.
type Handle uint64

// ShapeKind selects the collision primitive.
type ShapeKind uint8

const (
	Sphere ShapeKind = iota
	Box
	Capsule
)

func (k ShapeKind) String() string {
	switch k {
	case Box:
		return "box"
	case Capsule:
		return "capsule"
	default:
		return "sphere"
	}
}

// Shape describes a body's collision volume in world-internal units.
type Shape struct {
	Kind ShapeKind
	// Radius applies to spheres and capsules.
	Radius float64
	// HalfExtents applies to boxes; Y is the half height of a capsule.
	HalfExtents spatial.Vec3
	// CenterOffset is the body center relative to the entity origin.
	CenterOffset spatial.Vec3
	// Character shapes are driven by a character controller.
	Character bool
}

// BodyDescriptor is everything a world needs to create a body.
type BodyDescriptor struct {
	Shape Shape
	Mass  float64
}

// Body is a live rigid body. Positions are body centers in world-internal units.
type Body interface {
	Position() spatial.Vec3
	SetPosition(p spatial.Vec3)
	Orientation() spatial.Quat
	SetOrientation(q spatial.Quat)
	LinearVelocity() spatial.Vec3
	SetLinearVelocity(v spatial.Vec3)
	AngularVelocity() spatial.Vec3
	SetAngularVelocity(w spatial.Vec3)

	Mass() float64
	SetMass(m float64)
	Gravity() spatial.Vec3
	SetGravity(g spatial.Vec3)
	Friction() float64
	SetFriction(f float64)
	Restitution() float64
	SetRestitution(r float64)

	// Activate wakes a sleeping body.
	Activate()
	Active() bool
	// ApplyImpulse applies impulse at the world-space point origin.
	ApplyImpulse(origin, impulse spatial.Vec3)
}

// Character is a controller that drives a body without rotating it.
type Character interface {
	Body() Body
	// Walk sets the horizontal velocity, keeping the vertical component.
	Walk(velocity spatial.Vec3)
}

// World is the simulation a physics property spawns into.
type World interface {
	NewBody(desc BodyDescriptor) (Body, error)
	NewCharacter(desc BodyDescriptor) (Character, error)
	Spawn(owner Handle, body Body) error
	Despawn(owner Handle, body Body) error
	DefaultGravity() spatial.Vec3
	Scale() Scale
	Step(dt float64)
	// Len returns the number of spawned bodies.
	Len() int
}

// Scale converts between entity space and world-internal space.
// Forward maps entity units to world units; Inverse maps back.
type Scale struct {
	Forward float64
	Inverse float64
}

// UnitScale is the 1:1 scale.
var UnitScale = Scale{Forward: 1, Inverse: 1}

// NewScale builds a scale pair from the forward factor. Non-positive
// factors yield UnitScale.
func NewScale(forward float64) Scale {
	if forward <= 0 {
		return UnitScale
	}
	return Scale{Forward: forward, Inverse: 1 / forward}
}

// ToWorld converts an entity position to a body center.
func (s Scale) ToWorld(p, centerOffset spatial.Vec3) spatial.Vec3 {
	return p.Scale(s.Forward).Add(centerOffset)
}

// ToEntity converts a body center to an entity position.
func (s Scale) ToEntity(p, centerOffset spatial.Vec3) spatial.Vec3 {
	return p.Sub(centerOffset).Scale(s.Inverse)
}
