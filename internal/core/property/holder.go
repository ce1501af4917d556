package property

import (
	"fmt"
	"reflect"
	"slices"
)

// Holder owns at most one property per concrete type and keeps a capability
// index consistent with its primary map.
//
// A Holder is not safe for concurrent use; callers serialize access, usually
// by touching holders only from the tick goroutine.
type Holder struct {
	types *Types
	owner any
	hooks HolderHooks

	props map[reflect.Type]Property
	order []Property
	byCap map[*Capability][]Property
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithTypes sets the registry used to resolve metadata. Defaults to DefaultTypes.
func WithTypes(t *Types) HolderOption {
	return func(h *Holder) { h.types = t }
}

// WithOwner attaches an opaque owner value, typically the entity embedding
// the holder, so properties can reach it through Holder().Owner().
func WithOwner(owner any) HolderOption {
	return func(h *Holder) { h.owner = owner }
}

// WithHooks registers holder-level lifecycle hooks.
func WithHooks(hooks HolderHooks) HolderOption {
	return func(h *Holder) { h.hooks = hooks }
}

func NewHolder(opts ...HolderOption) *Holder {
	h := &Holder{
		types: defaultTypes,
		props: make(map[reflect.Type]Property),
		byCap: make(map[*Capability][]Property),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Holder) Owner() any { return h.owner }

func (h *Holder) Types() *Types { return h.types }

// SetHooks replaces the holder-level hooks.
func (h *Holder) SetHooks(hooks HolderHooks) { h.hooks = hooks }

// Len returns the number of attached properties.
func (h *Holder) Len() int { return len(h.order) }

// Properties returns the attached properties in insertion order.
func (h *Holder) Properties() []Property { return slices.Clone(h.order) }

// Add attaches p, indexes it under every capability of its type and runs the
// property hook followed by the holder hook.
func (h *Holder) Add(p Property) error {
	if p == nil {
		return ErrNilProperty
	}
	b := p.base()
	if b.holder != nil {
		return fmt.Errorf("%w: %T", ErrAlreadyAttached, p)
	}
	if b.removed {
		return fmt.Errorf("%w: %T", ErrRemoved, p)
	}
	rt := reflect.TypeOf(p)
	if _, ok := h.props[rt]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, rt)
	}

	meta := h.types.MetadataFor(rt)
	h.props[rt] = p
	h.order = append(h.order, p)
	b.holder = h
	b.meta = meta
	for _, c := range meta.Capabilities {
		h.byCap[c] = append(h.byCap[c], p)
	}

	if hook, ok := p.(AddedHook); ok {
		hook.OnAdded()
	}
	if h.hooks != nil {
		h.hooks.PropertyAdded(p)
	}
	return nil
}

// Remove detaches the property of concrete type rt. It reports false when
// the holder has none.
func (h *Holder) Remove(rt reflect.Type) bool {
	p, ok := h.props[rt]
	if !ok {
		return false
	}
	b := p.base()
	b.holder = nil
	b.removed = true
	delete(h.props, rt)
	h.order = slices.DeleteFunc(h.order, func(q Property) bool { return q == p })
	for _, c := range b.meta.Capabilities {
		list := slices.DeleteFunc(h.byCap[c], func(q Property) bool { return q == p })
		if len(list) == 0 {
			delete(h.byCap, c)
		} else {
			h.byCap[c] = list
		}
	}

	if hook, ok := p.(RemovedHook); ok {
		hook.OnRemoved()
	}
	if h.hooks != nil {
		h.hooks.PropertyRemoved(p)
	}
	return true
}

// Clear removes every property, most recently added first.
func (h *Holder) Clear() {
	for i := len(h.order) - 1; i >= 0; i-- {
		if i < len(h.order) {
			h.Remove(reflect.TypeOf(h.order[i]))
		}
	}
}

// Lookup returns the property of exactly type rt.
func (h *Holder) Lookup(rt reflect.Type) (Property, bool) {
	p, ok := h.props[rt]
	return p, ok
}

// AllWithCapability returns the properties indexed under c in insertion
// order. The result is a copy and never nil.
func (h *Holder) AllWithCapability(c *Capability) []Property {
	list := h.byCap[c]
	if len(list) == 0 {
		return []Property{}
	}
	return slices.Clone(list)
}

// SignalAll calls action on every property indexed under c, in index order.
// It iterates a snapshot taken before the first call, so properties removed
// by an action are still visited. The first error aborts the fan-out and is
// returned; later properties are skipped.
func (h *Holder) SignalAll(c *Capability, action func(Property) error) error {
	for _, p := range h.AllWithCapability(c) {
		if err := action(p); err != nil {
			return err
		}
	}
	return nil
}

// Each is the typed form of SignalAll for capabilities backed by interface I.
func Each[I any](h *Holder, c *Capability, action func(I) error) error {
	return h.SignalAll(c, func(p Property) error {
		v, ok := p.(I)
		if !ok {
			return fmt.Errorf("property: %T indexed as %s does not implement %s", p, c, reflect.TypeFor[I]())
		}
		return action(v)
	})
}

// Get returns the property of exactly type P or ErrNotFound.
func Get[P Property](h *Holder) (P, error) {
	p, ok := TryGet[P](h)
	if !ok {
		return p, fmt.Errorf("%w: %s", ErrNotFound, reflect.TypeFor[P]())
	}
	return p, nil
}

// TryGet returns the property of exactly type P.
func TryGet[P Property](h *Holder) (P, bool) {
	p, ok := h.props[reflect.TypeFor[P]()]
	if !ok {
		var zero P
		return zero, false
	}
	return p.(P), true
}

// Has reports whether h holds a property of type P.
func Has[P Property](h *Holder) bool {
	_, ok := h.props[reflect.TypeFor[P]()]
	return ok
}

// GetOrAdd returns the held P, or constructs one with ctor and attaches it.
func GetOrAdd[P Property](h *Holder, ctor func() P) (P, error) {
	if p, ok := TryGet[P](h); ok {
		return p, nil
	}
	p := ctor()
	if err := h.Add(p); err != nil {
		var zero P
		return zero, err
	}
	return p, nil
}

// Remove detaches the property of type P.
func Remove[P Property](h *Holder) bool {
	return h.Remove(reflect.TypeFor[P]())
}
