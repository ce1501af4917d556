// Package memory is a dependency-free reference physics world. It integrates
// free bodies with semi-implicit Euler and puts slow bodies to sleep; it does
// not detect collisions.
package memory

import (
	"fmt"
	"sync"

	"github.com/zeusync/gamecore/internal/core/physics"
	"github.com/zeusync/gamecore/internal/core/spatial"
)

var _ physics.World = (*World)(nil)

// Config tunes the world. Zero values select defaults.
type Config struct {
	Gravity spatial.Vec3
	Scale   physics.Scale
	// SleepSpeedSq is the squared speed under which a body starts resting.
	SleepSpeedSq float64
	// SleepAfter is the rest time in seconds before a body sleeps.
	SleepAfter float64
}

// DefaultGravity points down the Y axis.
var DefaultGravity = spatial.V(0, -9.81, 0)

type World struct {
	mu     sync.Mutex
	cfg    Config
	bodies []*body
	owners map[*body]physics.Handle
}

func New(cfg Config) *World {
	if cfg.Scale.Forward <= 0 || cfg.Scale.Inverse <= 0 {
		cfg.Scale = physics.UnitScale
	}
	if cfg.SleepSpeedSq <= 0 {
		cfg.SleepSpeedSq = 1e-6
	}
	if cfg.SleepAfter <= 0 {
		cfg.SleepAfter = 0.5
	}
	return &World{cfg: cfg, owners: make(map[*body]physics.Handle)}
}

func (w *World) NewBody(desc physics.BodyDescriptor) (physics.Body, error) {
	return newBody(desc), nil
}

func (w *World) NewCharacter(desc physics.BodyDescriptor) (physics.Character, error) {
	b := newBody(desc)
	b.fixedRotation = true
	return &character{body: b}, nil
}

func (w *World) Spawn(owner physics.Handle, pb physics.Body) error {
	b, err := unwrap(pb)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.owners[b]; ok {
		return fmt.Errorf("%w: owner %d", physics.ErrAlreadySpawned, owner)
	}
	w.owners[b] = owner
	w.bodies = append(w.bodies, b)
	b.active = true
	return nil
}

func (w *World) Despawn(owner physics.Handle, pb physics.Body) error {
	b, err := unwrap(pb)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if got, ok := w.owners[b]; !ok || got != owner {
		return fmt.Errorf("%w: owner %d", physics.ErrNotSpawned, owner)
	}
	delete(w.owners, b)
	for i, other := range w.bodies {
		if other == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
	return nil
}

func (w *World) DefaultGravity() spatial.Vec3 { return w.cfg.Gravity }

func (w *World) Scale() physics.Scale { return w.cfg.Scale }

func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bodies)
}

// Step advances every awake dynamic body by dt seconds.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range w.bodies {
		if !b.active || b.mass <= 0 {
			continue
		}
		b.linear = b.linear.Add(b.gravity.Scale(dt))
		b.position = b.position.Add(b.linear.Scale(dt))
		if !b.fixedRotation {
			b.orientation = b.orientation.Integrate(b.angular, dt)
		}

		if b.linear.LengthSq() < w.cfg.SleepSpeedSq && b.angular.LengthSq() < w.cfg.SleepSpeedSq {
			b.rest += dt
			if b.rest >= w.cfg.SleepAfter {
				b.active = false
				b.linear, b.angular = spatial.Zero, spatial.Zero
			}
		} else {
			b.rest = 0
		}
	}
}

func unwrap(pb physics.Body) (*body, error) {
	switch b := pb.(type) {
	case *body:
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %T", physics.ErrForeignBody, pb)
	}
}
