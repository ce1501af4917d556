// Package entity provides the property holder that lives in the simulation:
// an id, a public transform and the change notifications physics properties
// listen to.
package entity

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/gamecore/internal/core/events/signal"
	"github.com/zeusync/gamecore/internal/core/physics"
	"github.com/zeusync/gamecore/internal/core/property"
	"github.com/zeusync/gamecore/internal/core/spatial"
)

var (
	ErrAlreadySpawned = errors.New("entity: already spawned")
	ErrNotSpawned     = errors.New("entity: not spawned")
	ErrNoWorld        = errors.New("entity: no physics world")
)

// ID identifies an entity within one engine.
type ID uint64

// Entity is a property holder with a transform. Position and orientation are
// in entity space; physics properties convert to world space themselves.
//
// Like its holder, an Entity is confined to the tick goroutine.
type Entity struct {
	*property.Holder

	id          ID
	name        string
	world       physics.World
	position    spatial.Vec3
	orientation spatial.Quat
	spawned     bool

	PositionChanged    signal.Signal[spatial.Vec3]
	OrientationChanged signal.Signal[spatial.Quat]
}

type Option func(*Entity)

func WithName(name string) Option {
	return func(e *Entity) { e.name = name }
}

func WithWorld(w physics.World) Option {
	return func(e *Entity) { e.world = w }
}

func WithTransform(position spatial.Vec3, orientation spatial.Quat) Option {
	return func(e *Entity) {
		e.position = position
		e.orientation = orientation
	}
}

// New creates an entity backed by a holder resolving metadata from types.
// A nil types uses the process-wide registry.
func New(id ID, types *property.Types, opts ...Option) *Entity {
	e := &Entity{id: id, orientation: spatial.Identity}
	for _, opt := range opts {
		opt(e)
	}
	holderOpts := []property.HolderOption{property.WithOwner(e)}
	if types != nil {
		holderOpts = append(holderOpts, property.WithTypes(types))
	}
	e.Holder = property.NewHolder(holderOpts...)
	if e.name == "" {
		e.name = fmt.Sprintf("entity-%d", id)
	}
	return e
}

// Of returns the entity owning h, or nil when h belongs to something else.
func Of(h *property.Holder) *Entity {
	if h == nil {
		return nil
	}
	e, _ := h.Owner().(*Entity)
	return e
}

func (e *Entity) ID() ID { return e.id }

// Handle is the id physics worlds key bodies by.
func (e *Entity) Handle() physics.Handle { return physics.Handle(e.id) }

func (e *Entity) Name() string { return e.name }

func (e *Entity) World() physics.World { return e.world }

func (e *Entity) Spawned() bool { return e.spawned }

func (e *Entity) Position() spatial.Vec3 { return e.position }

// SetPosition stores p and notifies PositionChanged subscribers.
func (e *Entity) SetPosition(p spatial.Vec3) {
	e.position = p
	e.PositionChanged.Emit(p)
}

func (e *Entity) Orientation() spatial.Quat { return e.orientation }

// SetOrientation stores q and notifies OrientationChanged subscribers.
func (e *Entity) SetOrientation(q spatial.Quat) {
	e.orientation = q
	e.OrientationChanged.Emit(q)
}

// Attach adds p and, when the entity is already spawned, spawns it if it is
// spawnable. A spawn error is returned with p left attached but unspawned.
func (e *Entity) Attach(p property.Property) error {
	if err := e.Add(p); err != nil {
		return err
	}
	if !e.spawned || !slices.Contains(e.AllWithCapability(property.Spawnable), p) {
		return nil
	}
	s, ok := p.(property.Spawner)
	if !ok {
		return nil
	}
	if err := s.OnSpawn(); err != nil {
		return fmt.Errorf("spawn %T on entity %d: %w", p, e.id, err)
	}
	return nil
}

// Spawn marks the entity as part of the world and spawns every spawnable
// property in insertion order. On failure the properties already spawned are
// despawned again.
func (e *Entity) Spawn() error {
	if e.spawned {
		return fmt.Errorf("%w: %d", ErrAlreadySpawned, e.id)
	}
	if e.world == nil {
		return fmt.Errorf("%w: %d", ErrNoWorld, e.id)
	}
	var done []property.Spawner
	err := property.Each(e.Holder, property.Spawnable, func(s property.Spawner) error {
		if err := s.OnSpawn(); err != nil {
			return err
		}
		done = append(done, s)
		return nil
	})
	if err != nil {
		for i := len(done) - 1; i >= 0; i-- {
			_ = done[i].OnDespawn()
		}
		return fmt.Errorf("spawn entity %d: %w", e.id, err)
	}
	e.spawned = true
	return nil
}

// Despawn removes every spawnable property from the world, most recently
// added first. Every property is visited; errors are joined.
func (e *Entity) Despawn() error {
	if !e.spawned {
		return fmt.Errorf("%w: %d", ErrNotSpawned, e.id)
	}
	e.spawned = false
	props := e.AllWithCapability(property.Spawnable)
	var errs []error
	for i := len(props) - 1; i >= 0; i-- {
		if err := props[i].(property.Spawner).OnDespawn(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("despawn entity %d: %w", e.id, err)
	}
	return nil
}
