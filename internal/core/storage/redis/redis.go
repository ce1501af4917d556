// Package redis stores snapshots in Redis under a namespace, with a sorted
// set indexing the keys.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/zeusync/gamecore/internal/core/storage"
)

var _ storage.BatchedStorage = (*Store)(nil)

type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

type Store struct {
	client    *goredis.Client
	namespace string
	owned     bool

	reads, writes, deletes, misses atomic.Uint64
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis storage: ping %s: %w", opts.Addr, err)
	}
	s := NewWithClient(client, opts.Namespace)
	s.owned = true
	return s, nil
}

// NewWithClient wraps an existing client. Close leaves the client open.
func NewWithClient(client *goredis.Client, namespace string) *Store {
	if namespace == "" {
		namespace = "gamecore"
	}
	return &Store{client: client, namespace: namespace}
}

func (s *Store) valueKey(key string) string { return s.namespace + ":snapshot:" + key }

func (s *Store) indexKey() string { return s.namespace + ":snapshots" }

func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.valueKey(key), value, 0)
	pipe.ZAdd(ctx, s.indexKey(), goredis.Z{Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis storage: save %q: %w", key, err)
	}
	s.writes.Add(1)
	return nil
}

func (s *Store) BatchSave(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for k, v := range values {
		pipe.Set(ctx, s.valueKey(k), v, 0)
		pipe.ZAdd(ctx, s.indexKey(), goredis.Z{Member: k})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis storage: batch save: %w", err)
	}
	s.writes.Add(uint64(len(values)))
	return nil
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	s.reads.Add(1)
	v, err := s.client.Get(ctx, s.valueKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		s.misses.Add(1)
		return nil, fmt.Errorf("%w: %q", storage.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis storage: load %q: %w", key, err)
	}
	return v, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.valueKey(key))
	pipe.ZRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis storage: delete %q: %w", key, err)
	}
	s.deletes.Add(1)
	return nil
}

// Keys lists keys in lexical order; all index members share score 0.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis storage: keys: %w", err)
	}
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

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
