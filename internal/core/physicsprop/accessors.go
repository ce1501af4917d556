package physicsprop

import "github.com/zeusync/gamecore/internal/core/spatial"

// Accessors read the body while spawned and the shadow field otherwise.
// Setters always update the shadow field as well.

func (p *Property) Mass() float64 {
	if p.body != nil {
		return p.body.Mass()
	}
	return p.mass
}

func (p *Property) SetMass(m float64) {
	p.mass = m
	if p.body != nil {
		p.body.SetMass(m)
	}
}

func (p *Property) Gravity() spatial.Vec3 {
	if p.body != nil {
		return p.body.Gravity()
	}
	return p.gravity
}

// SetGravity marks gravity as explicit so spawning keeps it.
func (p *Property) SetGravity(g spatial.Vec3) {
	p.gravity = g
	p.gravitySet = true
	if p.body != nil {
		p.body.SetGravity(g)
	}
}

func (p *Property) Friction() float64 {
	if p.body != nil {
		return p.body.Friction()
	}
	return p.friction
}

func (p *Property) SetFriction(f float64) {
	p.friction = f
	if p.body != nil {
		p.body.SetFriction(f)
	}
}

func (p *Property) Bounciness() float64 {
	if p.body != nil {
		return p.body.Restitution()
	}
	return p.bounciness
}

func (p *Property) SetBounciness(b float64) {
	p.bounciness = b
	if p.body != nil {
		p.body.SetRestitution(b)
	}
}

func (p *Property) LinearVelocity() spatial.Vec3 {
	if p.body != nil {
		return p.body.LinearVelocity()
	}
	return p.linear
}

func (p *Property) SetLinearVelocity(v spatial.Vec3) {
	p.linear = v
	if p.body != nil {
		p.body.SetLinearVelocity(v)
	}
}

func (p *Property) AngularVelocity() spatial.Vec3 {
	if p.body != nil {
		return p.body.AngularVelocity()
	}
	return p.angular
}

func (p *Property) SetAngularVelocity(w spatial.Vec3) {
	p.angular = w
	if p.body != nil {
		p.body.SetAngularVelocity(w)
	}
}

// Position is the body center in world units.
func (p *Property) Position() spatial.Vec3 {
	if p.body != nil {
		return p.body.Position()
	}
	return p.position
}

// SetPosition moves the body center. While spawned the entity transform
// follows immediately.
func (p *Property) SetPosition(pos spatial.Vec3) {
	p.position = pos
	if p.body == nil {
		return
	}
	p.body.SetPosition(pos)
	release := p.hold()
	defer release()
	p.owner.SetPosition(p.world.Scale().ToEntity(pos, p.shape.CenterOffset))
}

func (p *Property) Orientation() spatial.Quat {
	if p.body != nil {
		return p.body.Orientation()
	}
	return p.orientation
}

func (p *Property) SetOrientation(q spatial.Quat) {
	p.orientation = q
	if p.body == nil {
		return
	}
	p.body.SetOrientation(q)
	release := p.hold()
	defer release()
	p.owner.SetOrientation(q)
}

// ApplyForce applies force at the body center.
func (p *Property) ApplyForce(force spatial.Vec3) {
	p.ApplyForceAt(p.Position(), force)
}

// ApplyForceAt applies force as an impulse at the world point origin and
// wakes the body. While unspawned only linear velocity changes, by
// force/mass; the torque of an off-center origin is not modelled.
func (p *Property) ApplyForceAt(origin, force spatial.Vec3) {
	if p.body != nil {
		p.body.ApplyImpulse(origin, force)
		p.body.Activate()
		return
	}
	if p.mass <= 0 {
		return
	}
	p.linear = p.linear.Add(force.Scale(1 / p.mass))
}
