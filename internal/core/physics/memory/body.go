package memory

import (
	"github.com/zeusync/gamecore/internal/core/physics"
	"github.com/zeusync/gamecore/internal/core/spatial"
)

var (
	_ physics.Body      = (*body)(nil)
	_ physics.Character = (*character)(nil)
)

type body struct {
	shape       physics.Shape
	mass        float64
	position    spatial.Vec3
	orientation spatial.Quat
	linear      spatial.Vec3
	angular     spatial.Vec3
	gravity     spatial.Vec3
	friction    float64
	restitution float64

	fixedRotation bool
	active        bool
	rest          float64
}

func newBody(desc physics.BodyDescriptor) *body {
	return &body{
		shape:       desc.Shape,
		mass:        desc.Mass,
		orientation: spatial.Identity,
		active:      true,
	}
}

func (b *body) Position() spatial.Vec3 { return b.position }

func (b *body) SetPosition(p spatial.Vec3) {
	b.position = p
	b.Activate()
}

func (b *body) Orientation() spatial.Quat { return b.orientation }

func (b *body) SetOrientation(q spatial.Quat) {
	b.orientation = q.Normalize()
	b.Activate()
}

func (b *body) LinearVelocity() spatial.Vec3 { return b.linear }

func (b *body) SetLinearVelocity(v spatial.Vec3) {
	b.linear = v
	b.Activate()
}

func (b *body) AngularVelocity() spatial.Vec3 { return b.angular }

func (b *body) SetAngularVelocity(w spatial.Vec3) {
	if b.fixedRotation {
		return
	}
	b.angular = w
	b.Activate()
}

func (b *body) Mass() float64 { return b.mass }

func (b *body) SetMass(m float64) { b.mass = m }

func (b *body) Gravity() spatial.Vec3 { return b.gravity }

func (b *body) SetGravity(g spatial.Vec3) { b.gravity = g }

func (b *body) Friction() float64 { return b.friction }

func (b *body) SetFriction(f float64) { b.friction = f }

func (b *body) Restitution() float64 { return b.restitution }

func (b *body) SetRestitution(r float64) { b.restitution = r }

func (b *body) Activate() {
	b.active = true
	b.rest = 0
}

func (b *body) Active() bool { return b.active }

// ApplyImpulse changes linear velocity by impulse/mass and angular velocity
// by the torque of the impulse about the center, using the moment of a solid
// sphere of the shape's radius.
func (b *body) ApplyImpulse(origin, impulse spatial.Vec3) {
	if b.mass <= 0 {
		return
	}
	b.linear = b.linear.Add(impulse.Scale(1 / b.mass))
	if b.fixedRotation {
		return
	}
	inertia := b.inertia()
	if inertia <= 0 {
		return
	}
	torque := origin.Sub(b.position).Cross(impulse)
	b.angular = b.angular.Add(torque.Scale(1 / inertia))
}

func (b *body) inertia() float64 {
	r := b.shape.Radius
	if b.shape.Kind == physics.Box {
		r = b.shape.HalfExtents.Length()
	}
	return 0.4 * b.mass * r * r
}

type character struct {
	body *body
}

func (c *character) Body() physics.Body { return c.body }

func (c *character) Walk(velocity spatial.Vec3) {
	v := c.body.linear
	c.body.SetLinearVelocity(spatial.V(velocity.X, v.Y, velocity.Z))
}
