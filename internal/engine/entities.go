package engine

import (
	"fmt"
	"slices"

	"github.com/zeusync/gamecore/internal/core/entity"
	"github.com/zeusync/gamecore/internal/core/events/bus"
	"github.com/zeusync/gamecore/internal/core/property"
	"github.com/zeusync/gamecore/internal/core/spatial"
)

// holderEvents republishes property lifecycle on the bus.
type holderEvents struct {
	eng *Engine
	id  entity.ID
}

func (h holderEvents) PropertyAdded(p property.Property) {
	h.eng.publish(bus.PropertyAdded, h.id, map[string]any{"property": p.Metadata().Name})
}

func (h holderEvents) PropertyRemoved(p property.Property) {
	h.eng.publish(bus.PropertyRemoved, h.id, map[string]any{"property": p.Metadata().Name})
}

// NewEntity creates an unspawned entity in the engine's world.
func (e *Engine) NewEntity(opts ...entity.Option) *entity.Entity {
	e.nextID++
	return e.adopt(e.nextID, opts...)
}

func (e *Engine) adopt(id entity.ID, opts ...entity.Option) *entity.Entity {
	ent := entity.New(id, e.types, append([]entity.Option{entity.WithWorld(e.world)}, opts...)...)
	ent.SetHooks(holderEvents{eng: e, id: id})
	e.entities[id] = ent
	e.order = append(e.order, id)
	if id > e.nextID {
		e.nextID = id
	}
	e.countEntities()
	return ent
}

func (e *Engine) countEntities() {
	if e.metrics == nil {
		return
	}
	spawned := 0
	for _, ent := range e.entities {
		if ent.Spawned() {
			spawned++
		}
	}
	e.metrics.SetEntities(len(e.entities), spawned)
}

func (e *Engine) Entity(id entity.ID) (*entity.Entity, bool) {
	ent, ok := e.entities[id]
	return ent, ok
}

// Entities returns every entity in creation order.
func (e *Engine) Entities() []*entity.Entity {
	out := make([]*entity.Entity, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.entities[id])
	}
	return out
}

func (e *Engine) lookup(id entity.ID) (*entity.Entity, error) {
	ent, ok := e.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	return ent, nil
}

func (e *Engine) Spawn(id entity.ID) error {
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}
	if err = ent.Spawn(); err != nil {
		return err
	}
	e.countEntities()
	e.publish(bus.EntitySpawned, id, map[string]any{"name": ent.Name()})
	return nil
}

func (e *Engine) Despawn(id entity.ID) error {
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}
	err = ent.Despawn()
	e.countEntities()
	e.publish(bus.EntityDespawned, id, map[string]any{"name": ent.Name()})
	return err
}

// RemoveEntity despawns the entity if needed and detaches all its properties.
func (e *Engine) RemoveEntity(id entity.ID) error {
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}
	if ent.Spawned() {
		if err = e.Despawn(id); err != nil {
			return err
		}
	}
	ent.Clear()
	delete(e.entities, id)
	e.order = slices.DeleteFunc(e.order, func(other entity.ID) bool { return other == id })
	e.countEntities()
	return nil
}

// EntityView is a read-only snapshot of an entity for inspection.
type EntityView struct {
	ID          uint64                `json:"id"`
	Name        string                `json:"name"`
	Spawned     bool                  `json:"spawned"`
	Position    spatial.Vec3          `json:"position"`
	Orientation spatial.Quat          `json:"orientation"`
	Properties  []string              `json:"properties"`
	Debug       []property.DebugEntry `json:"debug,omitempty"`
}

func view(ent *entity.Entity, debug bool) EntityView {
	props := ent.Properties()
	names := make([]string, 0, len(props))
	for _, p := range props {
		names = append(names, p.Metadata().Name)
	}
	v := EntityView{
		ID:          uint64(ent.ID()),
		Name:        ent.Name(),
		Spawned:     ent.Spawned(),
		Position:    ent.Position(),
		Orientation: ent.Orientation(),
		Properties:  names,
	}
	if debug {
		v.Debug = property.DebugDumpHolder(ent.Holder)
	}
	return v
}

// Views snapshots every entity between ticks.
func (e *Engine) Views() []EntityView {
	var out []EntityView
	e.Locked(func() {
		out = make([]EntityView, 0, len(e.order))
		for _, id := range e.order {
			out = append(out, view(e.entities[id], false))
		}
	})
	return out
}

// View snapshots one entity with its debug dump between ticks.
func (e *Engine) View(id entity.ID) (EntityView, bool) {
	var (
		v  EntityView
		ok bool
	)
	e.Locked(func() {
		var ent *entity.Entity
		if ent, ok = e.entities[id]; ok {
			v = view(ent, true)
		}
	})
	return v, ok
}
