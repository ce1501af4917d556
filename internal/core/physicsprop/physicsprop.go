// Package physicsprop implements the property that binds an entity to a
// rigid body in its physics world.
//
// While unspawned the property's shadow fields are authoritative. Spawning
// creates a body from them and hands authority to the body; despawning copies
// the body state back. Each tick, TickSync pushes body movement out to the
// entity's transform while a sync guard keeps the property from reacting to
// its own notifications.
//
// Positions read and written through the property are body centers in the
// world's internal scale. The entity transform is in entity space.
package physicsprop

import (
	"errors"
	"fmt"

	"github.com/zeusync/gamecore/internal/core/entity"
	"github.com/zeusync/gamecore/internal/core/events/signal"
	"github.com/zeusync/gamecore/internal/core/observability/log"
	"github.com/zeusync/gamecore/internal/core/physics"
	"github.com/zeusync/gamecore/internal/core/property"
	"github.com/zeusync/gamecore/internal/core/spatial"
)

var (
	ErrNoEntity = errors.New("physicsprop: holder is not an entity")
	ErrNoWorld  = errors.New("physicsprop: entity has no physics world")
	ErrSpawned  = errors.New("physicsprop: not allowed while spawned")
)

// Syncer is implemented by properties that reconcile with the physics world
// after each world step.
type Syncer interface {
	TickSync()
}

// Synced properties get TickSync once per engine tick, after the world step.
var Synced = property.NewCapability[Syncer]("synced")

// Thresholds gate change detection between body and shadow state. They depend
// on the world's internal scale.
type Thresholds struct {
	// PositionSq is the squared distance a body must move to count as moved.
	PositionSq float64
	// Orientation is the relative rotation angle in radians.
	Orientation float64
}

var DefaultThresholds = Thresholds{PositionSq: 1e-4, Orientation: 1e-2}

var (
	_ property.Spawner     = (*Property)(nil)
	_ property.AddedHook   = (*Property)(nil)
	_ property.RemovedHook = (*Property)(nil)
	_ Syncer               = (*Property)(nil)
)

type Property struct {
	property.Base

	shape      physics.Shape
	thresholds Thresholds

	mass        float64
	friction    float64
	bounciness  float64
	gravity     spatial.Vec3
	gravitySet  bool
	position    spatial.Vec3
	orientation spatial.Quat
	linear      spatial.Vec3
	angular     spatial.Vec3

	owner      *entity.Entity
	world      physics.World
	body       physics.Body
	character  physics.Character
	posSub     signal.ID
	orientSub  signal.ID
	noCheck    bool
	despawned  bool
	despawnFns []func(*Property)
}

type Option func(*Property)

func WithShape(s physics.Shape) Option {
	return func(p *Property) { p.shape = s }
}

func WithMass(m float64) Option {
	return func(p *Property) { p.mass = m }
}

func WithFriction(f float64) Option {
	return func(p *Property) { p.friction = f }
}

func WithBounciness(b float64) Option {
	return func(p *Property) { p.bounciness = b }
}

// WithGravity sets an explicit gravity that spawning will not override.
func WithGravity(g spatial.Vec3) Option {
	return func(p *Property) {
		p.gravity = g
		p.gravitySet = true
	}
}

// WithPosition sets the initial body center in world units.
func WithPosition(pos spatial.Vec3) Option {
	return func(p *Property) { p.position = pos }
}

func WithOrientation(q spatial.Quat) Option {
	return func(p *Property) { p.orientation = q }
}

func WithThresholds(t Thresholds) Option {
	return func(p *Property) { p.thresholds = t }
}

// Apply sets options on an existing property.
func (p *Property) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(p)
	}
}

// WithDespawnHook registers fn to run when the body is about to leave the
// world, after the body state was copied back.
func WithDespawnHook(fn func(*Property)) Option {
	return func(p *Property) { p.despawnFns = append(p.despawnFns, fn) }
}

// New creates an unspawned property: a unit-mass sphere of radius 0.5 at the origin.
func New(opts ...Option) *Property {
	p := &Property{
		shape:       physics.Shape{Kind: physics.Sphere, Radius: 0.5},
		thresholds:  DefaultThresholds,
		mass:        1,
		friction:    0.5,
		orientation: spatial.Identity,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register defines the property type in t.
func Register(t *property.Types) error {
	const flags = property.Debuggable | property.AutoSave
	_, err := property.DefineIn(t, "physics", func() *Property { return New() },
		property.WithMembers(
			property.Field("mass", flags, (*Property).Mass, (*Property).SetMass),
			property.Field("friction", flags, (*Property).Friction, (*Property).SetFriction),
			property.Field("bounciness", flags, (*Property).Bounciness, (*Property).SetBounciness),
			property.Field("gravity", flags, (*Property).Gravity, (*Property).SetGravity),
			property.Field("position", flags, (*Property).Position, (*Property).SetPosition),
			property.Field("orientation", flags, (*Property).Orientation, (*Property).SetOrientation),
			property.Field("linear_velocity", flags, (*Property).LinearVelocity, (*Property).SetLinearVelocity),
			property.Field("angular_velocity", flags, (*Property).AngularVelocity, (*Property).SetAngularVelocity),
			property.Field("spawned", property.Debuggable, (*Property).Spawned, nil),
		),
		property.Implements(property.Spawnable, Synced),
	)
	return err
}

func init() {
	if err := Register(property.DefaultTypes()); err != nil {
		panic(err)
	}
}

// Spawned reports whether a body currently exists.
func (p *Property) Spawned() bool { return p.body != nil }

// Body returns the live body, nil while unspawned.
func (p *Property) Body() physics.Body { return p.body }

// Character returns the controller for character shapes, nil otherwise.
func (p *Property) Character() physics.Character { return p.character }

func (p *Property) Shape() physics.Shape { return p.shape }

// SetShape replaces the shape used by the next spawn.
func (p *Property) SetShape(s physics.Shape) error {
	if p.Spawned() {
		return ErrSpawned
	}
	p.shape = s
	return nil
}

func (p *Property) Thresholds() Thresholds { return p.thresholds }

// OnAdded spawns the property right away when its entity is already in the
// world. A failure here is only logged and leaves the property unspawned; use
// entity.Attach to get the error back.
func (p *Property) OnAdded() {
	e := entity.Of(p.Holder())
	if e == nil || !e.Spawned() {
		return
	}
	if err := p.OnSpawn(); err != nil {
		log.Provide().Error("physics property spawn on attach failed", log.Entity(uint64(e.ID())), log.Error(err))
	}
}

// OnRemoved despawns a property detached from a spawned entity.
func (p *Property) OnRemoved() {
	if !p.Spawned() {
		return
	}
	if err := p.OnDespawn(); err != nil {
		log.Provide().Error("physics property despawn on detach failed", log.Error(err))
	}
}

// OnSpawn creates the body from the shadow state and puts it into the owning
// entity's world. Calling it while spawned is a no-op.
func (p *Property) OnSpawn() error {
	if p.Spawned() {
		return nil
	}
	e := entity.Of(p.Holder())
	if e == nil {
		return ErrNoEntity
	}
	world := e.World()
	if world == nil {
		return fmt.Errorf("%w: entity %d", ErrNoWorld, e.ID())
	}

	if !p.gravitySet {
		p.gravity = world.DefaultGravity()
		p.gravitySet = true
	}

	desc := physics.BodyDescriptor{Shape: p.shape, Mass: p.mass}
	var (
		body      physics.Body
		character physics.Character
		err       error
	)
	if p.shape.Character {
		character, err = world.NewCharacter(desc)
		if err == nil {
			body = character.Body()
		}
	} else {
		body, err = world.NewBody(desc)
	}
	if err != nil {
		return fmt.Errorf("create body for entity %d: %w", e.ID(), err)
	}

	body.SetLinearVelocity(p.linear)
	body.SetAngularVelocity(p.angular)
	body.SetFriction(p.friction)
	body.SetRestitution(p.bounciness)
	body.SetPosition(p.position)
	body.SetOrientation(p.orientation)
	body.SetGravity(p.gravity)

	if err = world.Spawn(e.Handle(), body); err != nil {
		return fmt.Errorf("spawn body for entity %d: %w", e.ID(), err)
	}

	p.owner, p.world = e, world
	p.body, p.character = body, character
	p.despawned = false
	p.posSub = e.PositionChanged.Subscribe(p.onExternalPositionChanged)
	p.orientSub = e.OrientationChanged.Subscribe(p.onExternalOrientationChanged)

	// The body is authoritative now; the next sync pushes it outward.
	p.position = spatial.Zero
	p.orientation = spatial.Identity
	p.TickSync()
	return nil
}

// OnDespawn copies the body state back into the shadow fields and removes the
// body from the world. A second call is a no-op.
func (p *Property) OnDespawn() error {
	if p.despawned || p.body == nil {
		return nil
	}
	p.despawned = true

	b := p.body
	p.mass = b.Mass()
	p.friction = b.Friction()
	p.bounciness = b.Restitution()
	p.gravity = b.Gravity()
	p.position = b.Position()
	p.orientation = b.Orientation()
	p.linear = b.LinearVelocity()
	p.angular = b.AngularVelocity()

	p.owner.PositionChanged.Unsubscribe(p.posSub)
	p.owner.OrientationChanged.Unsubscribe(p.orientSub)

	for _, fn := range p.despawnFns {
		fn(p)
	}

	err := p.world.Despawn(p.owner.Handle(), b)
	owner := p.owner
	p.body, p.character = nil, nil
	p.owner, p.world = nil, nil
	if err != nil {
		return fmt.Errorf("despawn body for entity %d: %w", owner.ID(), err)
	}
	return nil
}

// hold sets the sync guard until the returned release runs.
func (p *Property) hold() (release func()) {
	prev := p.noCheck
	p.noCheck = true
	return func() { p.noCheck = prev }
}

// Guarded reports whether the property is currently pushing its own state
// outward and ignores external changes.
func (p *Property) Guarded() bool { return p.noCheck }

// TickSync publishes body movement beyond the thresholds to the entity.
func (p *Property) TickSync() {
	if p.body == nil {
		return
	}
	release := p.hold()
	defer release()

	pos := p.body.Position()
	if pos.DistanceSq(p.position) > p.thresholds.PositionSq {
		p.position = pos
		p.owner.SetPosition(p.world.Scale().ToEntity(pos, p.shape.CenterOffset))
	}

	q := p.body.Orientation()
	if q != p.orientation && q.AngleTo(p.orientation) > p.thresholds.Orientation {
		p.orientation = q
		p.owner.SetOrientation(q)
	}
}

func (p *Property) onExternalPositionChanged(pos spatial.Vec3) {
	if p.noCheck || p.body == nil {
		return
	}
	target := p.world.Scale().ToWorld(pos, p.shape.CenterOffset)
	if target.DistanceSq(p.position) <= p.thresholds.PositionSq {
		return
	}
	p.position = target
	p.body.SetPosition(target)
}

func (p *Property) onExternalOrientationChanged(q spatial.Quat) {
	if p.noCheck || p.body == nil {
		return
	}
	if q.AngleTo(p.orientation) <= p.thresholds.Orientation {
		return
	}
	p.orientation = q
	p.body.SetOrientation(q)
}
