// Package codec maps value types to stable binary encoders used to persist
// property fields.
package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrUnsupportedType = errors.New("codec: unsupported type")
	ErrDuplicateType   = errors.New("codec: type already registered")
	ErrDuplicateTag    = errors.New("codec: tag already registered")
	ErrInvalidTag      = errors.New("codec: empty tag")
	ErrTypeMismatch    = errors.New("codec: value does not match codec type")
)

// Codec is the type-erased encoder/decoder pair registered for one value type.
// Tag is written next to encoded data and must never change once released.
type Codec struct {
	Tag    string
	Type   reflect.Type
	Encode func(value any) ([]byte, error)
	Decode func(data []byte) (any, error)
}

// Registry is safe for concurrent use. It is expected to be filled at startup
// and read afterwards.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Codec
	byTag  map[string]*Codec
}

func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*Codec),
		byTag:  make(map[string]*Codec),
	}
}

// NewDefaultRegistry returns a registry with the builtin codecs installed.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		panic(err)
	}
	return r
}

// Register installs a typed encoder/decoder pair for V under tag.
func Register[V any](r *Registry, tag string, encode func(V) []byte, decode func([]byte) (V, error)) error {
	return RegisterChecked(r, tag, func(v V) ([]byte, error) { return encode(v), nil }, decode)
}

// RegisterChecked is Register for encoders that can reject a value.
func RegisterChecked[V any](r *Registry, tag string, encode func(V) ([]byte, error), decode func([]byte) (V, error)) error {
	t := reflect.TypeFor[V]()
	c := &Codec{
		Tag:  tag,
		Type: t,
		Encode: func(value any) ([]byte, error) {
			v, ok := value.(V)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects %s, got %T", ErrTypeMismatch, tag, t, value)
			}
			data, err := encode(v)
			if err != nil {
				return nil, fmt.Errorf("codec %s: %w", tag, err)
			}
			return data, nil
		},
		Decode: func(data []byte) (any, error) {
			v, err := decode(data)
			if err != nil {
				return nil, fmt.Errorf("codec %s: %w", tag, err)
			}
			return v, nil
		},
	}
	return r.add(c)
}

func (r *Registry) add(c *Codec) error {
	if c.Tag == "" {
		return ErrInvalidTag
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[c.Type]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, c.Type)
	}
	if _, ok := r.byTag[c.Tag]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, c.Tag)
	}
	r.byType[c.Type] = c
	r.byTag[c.Tag] = c
	return nil
}

// Lookup returns the codec registered for t or ErrUnsupportedType.
func (r *Registry) Lookup(t reflect.Type) (*Codec, error) {
	r.mu.RLock()
	c, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, t)
	}
	return c, nil
}

// LookupTag resolves a codec by its persisted tag.
func (r *Registry) LookupTag(tag string) (*Codec, error) {
	r.mu.RLock()
	c, ok := r.byTag[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tag %q", ErrUnsupportedType, tag)
	}
	return c, nil
}

// Tags lists registered tags in no particular order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		out = append(out, tag)
	}
	return out
}

var (
	defaultMu       sync.Mutex
	defaultOnce     = new(sync.Once)
	defaultRegistry *Registry
)

// Init builds the process-wide registry once. Later calls return the same
// instance until Shutdown.
func Init() *Registry {
	defaultMu.Lock()
	once := defaultOnce
	defaultMu.Unlock()

	once.Do(func() {
		r := NewDefaultRegistry()
		defaultMu.Lock()
		defaultRegistry = r
		defaultMu.Unlock()
	})
	return Provide()
}

// Provide returns the process-wide registry, or nil before Init.
func Provide() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

// Shutdown drops the process-wide registry; the next Init rebuilds it.
func Shutdown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = nil
	defaultOnce = new(sync.Once)
}
