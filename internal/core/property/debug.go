package property

import (
	"fmt"
	"reflect"
)

// DebugEntry is one line of a debug dump.
type DebugEntry struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DebugDump renders every debuggable member of p as "Type(member)" -> value,
// in declaration order. Nil values render as "null".
func DebugDump(p Property) []DebugEntry {
	meta := metadataOf(p)
	out := make([]DebugEntry, 0, len(meta.Debuggable))
	for _, m := range meta.Debuggable {
		out = append(out, DebugEntry{
			Label: meta.Name + "(" + m.Name + ")",
			Value: render(m.Get(p)),
		})
	}
	return out
}

// DebugDumpHolder concatenates the dumps of every property in h.
func DebugDumpHolder(h *Holder) []DebugEntry {
	var out []DebugEntry
	for _, p := range h.order {
		out = append(out, DebugDump(p)...)
	}
	return out
}

func render(v any) string {
	if v == nil {
		return "null"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return "null"
		}
	default:
	}
	return fmt.Sprint(v)
}

// metadataOf returns the attached metadata, falling back to the holder's or
// the default registry for detached instances.
func metadataOf(p Property) *Metadata {
	b := p.base()
	if b.meta != nil {
		return b.meta
	}
	return defaultTypes.MetadataFor(reflect.TypeOf(p))
}
