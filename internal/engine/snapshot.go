package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/gamecore/internal/core/codec"
	"github.com/zeusync/gamecore/internal/core/entity"
	"github.com/zeusync/gamecore/internal/core/observability/log"
	"github.com/zeusync/gamecore/internal/core/property"
	"github.com/zeusync/gamecore/internal/core/storage"
	"github.com/zeusync/gamecore/pkg/concurrent"
)

// saveWorkers bounds concurrent writes for stores without batching.
const saveWorkers = 8

const keyPrefix = "entity/"

// SnapshotKey is the storage key of an entity snapshot.
func SnapshotKey(id entity.ID) string {
	return keyPrefix + strconv.FormatUint(uint64(id), 10)
}

func parseKey(key string) (entity.ID, bool) {
	s, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return entity.ID(id), err == nil
}

func (e *Engine) encode(ent *entity.Entity) ([]byte, error) {
	sections, err := property.SaveHolder(e.codecs, ent.Holder)
	if err != nil {
		return nil, fmt.Errorf("snapshot entity %d: %w", ent.ID(), err)
	}
	return codec.Frame(sections), nil
}

// SaveEntity writes the serializable properties of the entity to storage.
func (e *Engine) SaveEntity(ctx context.Context, id entity.ID) error {
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}
	data, err := e.encode(ent)
	if err != nil {
		return err
	}
	return e.store.Save(ctx, SnapshotKey(id), data)
}

// SaveAll encodes every entity and writes the snapshots concurrently.
// Encoding happens on the calling goroutine.
func (e *Engine) SaveAll(ctx context.Context) error {
	blobs := make(map[string][]byte, len(e.order))
	for _, id := range e.order {
		data, err := e.encode(e.entities[id])
		if err != nil {
			return err
		}
		blobs[SnapshotKey(id)] = data
	}

	if b, ok := e.store.(storage.BatchedStorage); ok {
		return b.BatchSave(ctx, blobs)
	}

	return concurrent.EachEntry(ctx, blobs, saveWorkers, func(ctx context.Context, key string, data []byte) error {
		return e.store.Save(ctx, key, data)
	})
}

// LoadEntity restores a snapshot. The entity is created when the engine does
// not know it yet; held properties are updated in place.
func (e *Engine) LoadEntity(ctx context.Context, id entity.ID) (*entity.Entity, error) {
	data, err := e.store.Load(ctx, SnapshotKey(id))
	if err != nil {
		return nil, err
	}
	sections, err := codec.Unframe(data)
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", id, err)
	}
	ent, ok := e.entities[id]
	if !ok {
		ent = e.adopt(id)
	}
	if err = property.LoadHolder(e.codecs, ent.Holder, sections, property.WithPrepare(e.prepareRestored)); err != nil {
		return nil, fmt.Errorf("load entity %d: %w", id, err)
	}
	return ent, nil
}

// LoadAll restores every snapshot in storage and returns how many were loaded.
func (e *Engine) LoadAll(ctx context.Context) (int, error) {
	keys, err := e.store.Keys(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, key := range keys {
		id, ok := parseKey(key)
		if !ok {
			e.logger.Warn("skipping foreign storage key", log.String("key", key))
			continue
		}
		if _, err = e.LoadEntity(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
