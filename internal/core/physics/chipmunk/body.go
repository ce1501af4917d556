package chipmunk

import (
	"fmt"

	"github.com/jakecoffman/cp"

	"github.com/zeusync/gamecore/internal/core/physics"
	"github.com/zeusync/gamecore/internal/core/spatial"
)

var (
	_ physics.Body      = (*body)(nil)
	_ physics.Character = (*character)(nil)
)

var zAxis = spatial.V(0, 0, 1)

type body struct {
	body    *cp.Body
	shape   *cp.Shape
	desc    physics.BodyDescriptor
	mass    float64
	gravity spatial.Vec3
	fixed   bool
}

func newBody(desc physics.BodyDescriptor, fixedRotation bool) (*body, error) {
	b := &body{desc: desc, mass: desc.Mass, fixed: fixedRotation}

	switch {
	case desc.Mass <= 0:
		b.body = cp.NewKinematicBody()
	case fixedRotation:
		b.body = cp.NewBody(desc.Mass, cp.INFINITY)
	default:
		b.body = cp.NewBody(desc.Mass, b.moment(desc.Mass))
	}

	s := desc.Shape
	switch s.Kind {
	case physics.Sphere:
		b.shape = cp.NewCircle(b.body, s.Radius, cp.Vector{})
	case physics.Box:
		b.shape = cp.NewBox(b.body, 2*s.HalfExtents.X, 2*s.HalfExtents.Y, 0)
	case physics.Capsule:
		half := s.HalfExtents.Y
		b.shape = cp.NewSegment(b.body, cp.Vector{Y: -half}, cp.Vector{Y: half}, s.Radius)
	default:
		return nil, fmt.Errorf("chipmunk: unsupported shape %s", s.Kind)
	}

	// Per-body gravity replaces the space gravity in the velocity update.
	b.body.SetVelocityUpdateFunc(func(cb *cp.Body, _ cp.Vector, damping, dt float64) {
		cp.BodyUpdateVelocity(cb, vec(b.gravity), damping, dt)
	})
	return b, nil
}

func (b *body) moment(mass float64) float64 {
	s := b.desc.Shape
	switch s.Kind {
	case physics.Box:
		return cp.MomentForBox(mass, 2*s.HalfExtents.X, 2*s.HalfExtents.Y)
	case physics.Capsule:
		half := s.HalfExtents.Y
		return cp.MomentForSegment(mass, cp.Vector{Y: -half}, cp.Vector{Y: half}, s.Radius)
	default:
		return cp.MomentForCircle(mass, 0, s.Radius, cp.Vector{})
	}
}

func (b *body) Position() spatial.Vec3 { return unvec(b.body.Position()) }

func (b *body) SetPosition(p spatial.Vec3) { b.body.SetPosition(vec(p)) }

func (b *body) Orientation() spatial.Quat { return spatial.AxisAngle(zAxis, b.body.Angle()) }

func (b *body) SetOrientation(q spatial.Quat) { b.body.SetAngle(q.YawZ()) }

func (b *body) LinearVelocity() spatial.Vec3 { return unvec(b.body.Velocity()) }

func (b *body) SetLinearVelocity(v spatial.Vec3) { b.body.SetVelocityVector(vec(v)) }

func (b *body) AngularVelocity() spatial.Vec3 {
	return spatial.V(0, 0, b.body.AngularVelocity())
}

func (b *body) SetAngularVelocity(w spatial.Vec3) {
	if b.fixed {
		return
	}
	b.body.SetAngularVelocity(w.Z)
}

// Mass returns the mass the body was built or last set with. Kinematic bodies
// keep their non-positive descriptor mass; chipmunk reports them as infinite.
func (b *body) Mass() float64 { return b.mass }

// SetMass ignores non-positive masses; chipmunk rejects them on dynamic bodies.
func (b *body) SetMass(m float64) {
	if m <= 0 || b.desc.Mass <= 0 {
		return
	}
	b.mass = m
	b.body.SetMass(m)
	if !b.fixed {
		b.body.SetMoment(b.moment(m))
	}
}

func (b *body) Gravity() spatial.Vec3 { return b.gravity }

func (b *body) SetGravity(g spatial.Vec3) { b.gravity = g }

func (b *body) Friction() float64 { return b.shape.Friction() }

func (b *body) SetFriction(f float64) { b.shape.SetFriction(f) }

func (b *body) Restitution() float64 { return b.shape.Elasticity() }

func (b *body) SetRestitution(r float64) { b.shape.SetElasticity(r) }

func (b *body) Activate() { b.body.Activate() }

func (b *body) Active() bool { return !b.body.IsSleeping() }

func (b *body) ApplyImpulse(origin, impulse spatial.Vec3) {
	b.body.ApplyImpulseAtWorldPoint(vec(impulse), vec(origin))
}

type character struct {
	body *body
}

func (c *character) Body() physics.Body { return c.body }

func (c *character) Walk(velocity spatial.Vec3) {
	v := c.body.body.Velocity()
	c.body.body.SetVelocityVector(cp.Vector{X: velocity.X, Y: v.Y})
}
