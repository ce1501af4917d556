// Package chipmunk adapts github.com/jakecoffman/cp to the physics contract.
//
// Chipmunk is a 2D engine: bodies live in the XY plane, Z components are
// dropped on the way in and zero on the way out, and orientation is a
// rotation about the Z axis.
package chipmunk

import (
	"fmt"

	"github.com/jakecoffman/cp"

	"github.com/zeusync/gamecore/internal/core/physics"
	"github.com/zeusync/gamecore/internal/core/spatial"
)

var _ physics.World = (*World)(nil)

type Config struct {
	Gravity    spatial.Vec3
	Scale      physics.Scale
	Iterations uint
	// SleepTimeThreshold enables body sleeping when positive.
	SleepTimeThreshold float64
}

type World struct {
	space  *cp.Space
	cfg    Config
	owners map[*body]physics.Handle
}

func New(cfg Config) *World {
	if cfg.Scale.Forward <= 0 || cfg.Scale.Inverse <= 0 {
		cfg.Scale = physics.UnitScale
	}
	space := cp.NewSpace()
	space.SetGravity(vec(cfg.Gravity))
	if cfg.Iterations > 0 {
		space.Iterations = cfg.Iterations
	}
	if cfg.SleepTimeThreshold > 0 {
		space.SleepTimeThreshold = cfg.SleepTimeThreshold
	}
	return &World{space: space, cfg: cfg, owners: make(map[*body]physics.Handle)}
}

func (w *World) NewBody(desc physics.BodyDescriptor) (physics.Body, error) {
	return newBody(desc, false)
}

func (w *World) NewCharacter(desc physics.BodyDescriptor) (physics.Character, error) {
	b, err := newBody(desc, true)
	if err != nil {
		return nil, err
	}
	return &character{body: b}, nil
}

func (w *World) Spawn(owner physics.Handle, pb physics.Body) error {
	b, ok := pb.(*body)
	if !ok {
		return fmt.Errorf("%w: %T", physics.ErrForeignBody, pb)
	}
	if _, ok = w.owners[b]; ok {
		return fmt.Errorf("%w: owner %d", physics.ErrAlreadySpawned, owner)
	}
	w.space.AddBody(b.body)
	w.space.AddShape(b.shape)
	b.body.UserData = owner
	w.owners[b] = owner
	return nil
}

func (w *World) Despawn(owner physics.Handle, pb physics.Body) error {
	b, ok := pb.(*body)
	if !ok {
		return fmt.Errorf("%w: %T", physics.ErrForeignBody, pb)
	}
	if got, ok := w.owners[b]; !ok || got != owner {
		return fmt.Errorf("%w: owner %d", physics.ErrNotSpawned, owner)
	}
	w.space.RemoveShape(b.shape)
	w.space.RemoveBody(b.body)
	b.body.UserData = nil
	delete(w.owners, b)
	return nil
}

func (w *World) DefaultGravity() spatial.Vec3 { return w.cfg.Gravity }

func (w *World) Scale() physics.Scale { return w.cfg.Scale }

func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.space.Step(dt)
}

func (w *World) Len() int { return len(w.owners) }

func vec(v spatial.Vec3) cp.Vector { return cp.Vector{X: v.X, Y: v.Y} }

func unvec(v cp.Vector) spatial.Vec3 { return spatial.V(v.X, v.Y, 0) }
