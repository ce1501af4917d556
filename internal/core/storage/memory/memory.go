// Package memory is an in-process Storage sharded by key hash.
package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/gamecore/internal/core/storage"
)

var _ storage.BatchedStorage = (*Store)(nil)

const defaultShards = 16

type shard struct {
	mu     sync.RWMutex
	values map[string][]byte
}

type Store struct {
	shards []shard

	reads, writes, deletes, misses atomic.Uint64
}

// New creates a store with shardCount shards; non-positive counts use 16.
func New(shardCount int) *Store {
	if shardCount <= 0 {
		shardCount = defaultShards
	}
	s := &Store{shards: make([]shard, shardCount)}
	for i := range s.shards {
		s.shards[i].values = make(map[string][]byte)
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.values[key] = slices.Clone(value)
	sh.mu.Unlock()
	s.writes.Add(1)
	return nil
}

func (s *Store) BatchSave(ctx context.Context, values map[string][]byte) error {
	for k, v := range values {
		if err := s.Save(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh := s.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.values[key]
	sh.mu.RUnlock()
	s.reads.Add(1)
	if !ok {
		s.misses.Add(1)
		return nil, storage.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.values, key)
	sh.mu.Unlock()
	s.deletes.Add(1)
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k := range sh.values {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Store) Statistics() storage.Statistics {
	return storage.Statistics{
		Reads:   s.reads.Load(),
		Writes:  s.writes.Load(),
		Deletes: s.deletes.Load(),
		Misses:  s.misses.Load(),
	}
}

func (s *Store) Close() error { return nil }
