// Package property implements typed, detachable units of entity state and the
// holders that own them.
//
// Each concrete property type is registered once with Define, listing the
// members it exposes for debugging and persistence and the capabilities it
// implements. Holders index attached properties both by concrete type and by
// capability so that cross-cutting operations can fan out without reflection.
package property

// Property is implemented by every concrete property type through an embedded
// Base.
type Property interface {
	// Holder returns the owning holder, or nil while detached.
	Holder() *Holder
	// Metadata returns the cached metadata assigned on attach.
	Metadata() *Metadata

	base() *Base
}

// Base carries the attachment state shared by all properties. Embed it by value
// and use pointer receivers on the concrete type.
type Base struct {
	holder  *Holder
	meta    *Metadata
	removed bool
}

func (b *Base) Holder() *Holder { return b.holder }

func (b *Base) Metadata() *Metadata { return b.meta }

// Attached reports whether the property currently belongs to a holder.
func (b *Base) Attached() bool { return b.holder != nil }

func (b *Base) base() *Base { return b }

// AddedHook is invoked right after the property is attached and indexed.
type AddedHook interface {
	OnAdded()
}

// RemovedHook is invoked after the property has been detached, before the
// holder is notified.
type RemovedHook interface {
	OnRemoved()
}

// HolderHooks receives holder-level lifecycle notifications.
type HolderHooks interface {
	PropertyAdded(p Property)
	PropertyRemoved(p Property)
}
