package property

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// Flag marks how a member is exposed.
type Flag uint8

const (
	// Debuggable members appear in DebugDump.
	Debuggable Flag = 1 << iota
	// AutoSave members are persisted by Save and restored by Load.
	AutoSave
)

// Member is one explicitly registered field or getter of a property type.
type Member struct {
	Name  string
	Type  reflect.Type
	Flags Flag

	get func(Property) any
	set func(Property, any) error
}

// Get reads the member from p.
func (m Member) Get(p Property) any { return m.get(p) }

// Settable reports whether the member has a setter.
func (m Member) Settable() bool { return m.set != nil }

// Set writes v into p. v must hold the member's declared type.
func (m Member) Set(p Property, v any) error {
	if m.set == nil {
		return fmt.Errorf("property: member %s is read-only", m.Name)
	}
	return m.set(p, v)
}

// Field declares a member of P with value type V. set may be nil for
// read-only members, which cannot be AutoSave.
func Field[P Property, V any](name string, flags Flag, get func(P) V, set func(P, V)) Member {
	m := Member{
		Name:  name,
		Type:  reflect.TypeFor[V](),
		Flags: flags,
		get:   func(p Property) any { return get(p.(P)) },
	}
	if set != nil {
		m.set = func(p Property, v any) error {
			tv, ok := v.(V)
			if !ok {
				return fmt.Errorf("property: member %s expects %s, got %T", name, m.Type, v)
			}
			set(p.(P), tv)
			return nil
		}
	}
	return m
}

// Definition is the static registration of a concrete property type.
type Definition struct {
	name    string
	typ     reflect.Type
	newFn   func() Property
	members []Member
	caps    []*Capability
}

// Option configures a Definition.
type Option func(*Definition)

// WithMembers appends members in declaration order.
func WithMembers(members ...Member) Option {
	return func(d *Definition) { d.members = append(d.members, members...) }
}

// Implements declares capabilities of the type.
func Implements(caps ...*Capability) Option {
	return func(d *Definition) { d.caps = append(d.caps, caps...) }
}

// Metadata is the per-type member and capability table. It is computed once
// per concrete type and shared by every instance.
type Metadata struct {
	Name         string
	Type         reflect.Type
	Debuggable   []Member
	AutoSave     []Member
	Capabilities []*Capability

	newFn func() Property
}

// Has reports whether the type declares capability c.
func (m *Metadata) Has(c *Capability) bool { return slices.Contains(m.Capabilities, c) }

// New constructs a detached instance when the type was defined with a constructor.
func (m *Metadata) New() (Property, error) {
	if m.newFn == nil {
		return nil, fmt.Errorf("%w: %s", ErrUndefined, m.Name)
	}
	return m.newFn(), nil
}

// member returns the auto-saved member called name.
func (m *Metadata) member(name string) (Member, bool) {
	for _, mem := range m.AutoSave {
		if mem.Name == name {
			return mem, true
		}
	}
	return Member{}, false
}

type entry struct {
	def  *Definition
	once sync.Once
	meta *Metadata
}

// Types is a registry of property definitions and the lazily built metadata
// cache keyed by concrete type.
type Types struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*entry
	byName  map[string]*entry

	computed atomic.Int64
}

func NewTypes() *Types {
	return &Types{
		entries: make(map[reflect.Type]*entry),
		byName:  make(map[string]*entry),
	}
}

var defaultTypes = NewTypes()

// DefaultTypes returns the process-wide registry used by Define and by
// holders created without WithTypes.
func DefaultTypes() *Types { return defaultTypes }

// Define registers P in the process-wide registry. It panics on invalid or
// duplicate registrations, which are programming errors caught at init.
func Define[P Property](name string, ctor func() P, opts ...Option) *Definition {
	d, err := DefineIn(defaultTypes, name, ctor, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// DefineIn registers P in t.
func DefineIn[P Property](t *Types, name string, ctor func() P, opts ...Option) (*Definition, error) {
	d := &Definition{
		name: name,
		typ:  reflect.TypeFor[P](),
	}
	if ctor != nil {
		d.newFn = func() Property { return ctor() }
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[d.typ]; ok {
		if e.def != nil {
			return nil, fmt.Errorf("%w: %s already defined as %q", ErrInvalidDefinition, d.typ, e.def.name)
		}
		// Holders may already carry the empty table built for the undefined type.
		return nil, fmt.Errorf("%w: %s used before its definition", ErrInvalidDefinition, d.typ)
	}
	if _, ok := t.byName[name]; ok {
		return nil, fmt.Errorf("%w: name %q already used", ErrInvalidDefinition, name)
	}
	e := &entry{def: d}
	t.entries[d.typ] = e
	t.byName[name] = e
	return d, nil
}

func (d *Definition) validate() error {
	if d.name == "" {
		return fmt.Errorf("%w: empty name for %s", ErrInvalidDefinition, d.typ)
	}
	seen := make(map[string]struct{}, len(d.members))
	for _, m := range d.members {
		if _, ok := seen[m.Name]; ok {
			return fmt.Errorf("%w: %s declares member %q twice", ErrInvalidDefinition, d.name, m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.Flags&AutoSave != 0 && m.set == nil {
			return fmt.Errorf("%w: %s.%s is auto-saved but has no setter", ErrInvalidDefinition, d.name, m.Name)
		}
	}
	probe, _ := reflect.Zero(d.typ).Interface().(Property)
	for _, c := range d.caps {
		if !c.ImplementedBy(probe) {
			return fmt.Errorf("%w: %s declares %s without implementing it", ErrInvalidDefinition, d.name, c)
		}
	}
	return nil
}

// MetadataFor returns the metadata of concrete type rt, computing it on the
// first request. Types without a definition get an empty table named after
// the Go type.
func (t *Types) MetadataFor(rt reflect.Type) *Metadata {
	t.mu.RLock()
	e, ok := t.entries[rt]
	t.mu.RUnlock()
	if !ok {
		t.mu.Lock()
		if e, ok = t.entries[rt]; !ok {
			e = &entry{}
			t.entries[rt] = e
		}
		t.mu.Unlock()
	}
	e.once.Do(func() {
		e.meta = buildMetadata(rt, e.def)
		t.computed.Add(1)
	})
	return e.meta
}

// MetadataOf is MetadataFor keyed by P.
func MetadataOf[P Property](t *Types) *Metadata {
	return t.MetadataFor(reflect.TypeFor[P]())
}

// ByName resolves a defined type by its registered name.
func (t *Types) ByName(name string) (*Metadata, error) {
	t.mu.RLock()
	e, ok := t.byName[name]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUndefined, name)
	}
	return t.MetadataFor(e.def.typ), nil
}

// Names lists defined type names sorted alphabetically.
func (t *Types) Names() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.byName))
	for name := range t.byName {
		out = append(out, name)
	}
	t.mu.RUnlock()
	slices.Sort(out)
	return out
}

func buildMetadata(rt reflect.Type, d *Definition) *Metadata {
	if d == nil {
		return &Metadata{Name: rt.String(), Type: rt, Debuggable: []Member{}, AutoSave: []Member{}}
	}
	meta := &Metadata{
		Name:       d.name,
		Type:       rt,
		Debuggable: make([]Member, 0, len(d.members)),
		AutoSave:   make([]Member, 0, len(d.members)),
		newFn:      d.newFn,
	}
	for _, m := range d.members {
		if m.Flags&Debuggable != 0 {
			meta.Debuggable = append(meta.Debuggable, m)
		}
		if m.Flags&AutoSave != 0 {
			meta.AutoSave = append(meta.AutoSave, m)
		}
	}
	for _, c := range d.caps {
		if !slices.Contains(meta.Capabilities, c) {
			meta.Capabilities = append(meta.Capabilities, c)
		}
	}
	if len(meta.AutoSave) > 0 && !slices.Contains(meta.Capabilities, Serializable) {
		meta.Capabilities = append(meta.Capabilities, Serializable)
	}
	return meta
}
