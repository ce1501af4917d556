package property

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/gamecore/internal/core/codec"
)

var hookLog []string

type health struct {
	Base
	Current int32
	Max     int32
	Label   string
	Note    *string
	ticks   int
	fail    error
}

func (h *health) Tick(float64) error {
	h.ticks++
	return h.fail
}

func (h *health) OnAdded()   { hookLog = append(hookLog, "health.added") }
func (h *health) OnRemoved() { hookLog = append(hookLog, "health.removed") }

type stamina struct {
	Base
	Value float64
	ticks int
	onTick func()
}

func (s *stamina) Tick(float64) error {
	s.ticks++
	if s.onTick != nil {
		s.onTick()
	}
	return nil
}

type inventory struct {
	Base
	Slots []string
}

type marker struct {
	Base
}

type recordingHooks struct{}

func (recordingHooks) PropertyAdded(p Property) {
	hookLog = append(hookLog, "holder.added:"+p.Metadata().Name)
}

func (recordingHooks) PropertyRemoved(p Property) {
	hookLog = append(hookLog, "holder.removed:"+p.Metadata().Name)
}

func testTypes(t *testing.T) *Types {
	t.Helper()
	types := NewTypes()

	_, err := DefineIn(types, "health", func() *health { return &health{Max: 100} },
		WithMembers(
			Field("current", Debuggable|AutoSave,
				func(h *health) int32 { return h.Current },
				func(h *health, v int32) { h.Current = v }),
			Field("max", Debuggable|AutoSave,
				func(h *health) int32 { return h.Max },
				func(h *health, v int32) { h.Max = v }),
			Field("label", AutoSave,
				func(h *health) string { return h.Label },
				func(h *health, v string) { h.Label = v }),
			Field[*health, *string]("note", Debuggable,
				func(h *health) *string { return h.Note }, nil),
		),
		Implements(Tickable),
	)
	require.NoError(t, err)

	_, err = DefineIn(types, "stamina", func() *stamina { return &stamina{} },
		WithMembers(Field("value", Debuggable|AutoSave,
			func(s *stamina) float64 { return s.Value },
			func(s *stamina, v float64) { s.Value = v })),
		Implements(Tickable),
	)
	require.NoError(t, err)

	_, err = DefineIn(types, "inventory", func() *inventory { return &inventory{} },
		WithMembers(Field("slots", AutoSave,
			func(i *inventory) []string { return i.Slots },
			func(i *inventory, v []string) { i.Slots = v })),
	)
	require.NoError(t, err)

	return types
}

func capSnapshot(h *Holder) map[*Capability][]Property {
	out := make(map[*Capability][]Property, len(h.byCap))
	for c, list := range h.byCap {
		out[c] = append([]Property(nil), list...)
	}
	return out
}

func TestHolderAddRemove(t *testing.T) {
	types := testTypes(t)

	t.Run("remove restores capability index", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		require.NoError(t, h.Add(&stamina{}))
		before := capSnapshot(h)

		hp := &health{}
		require.NoError(t, h.Add(hp))
		require.Len(t, h.AllWithCapability(Tickable), 2)
		require.Len(t, h.AllWithCapability(Serializable), 2)

		require.True(t, Remove[*health](h))
		require.Equal(t, before, capSnapshot(h))
		require.Nil(t, hp.Holder())
		require.False(t, Remove[*health](h))
	})

	t.Run("empty capability list is not nil", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		list := h.AllWithCapability(Spawnable)
		require.NotNil(t, list)
		require.Empty(t, list)
	})

	t.Run("attached elsewhere", func(t *testing.T) {
		a := NewHolder(WithTypes(types))
		b := NewHolder(WithTypes(types))
		require.NoError(t, b.Add(&stamina{}))
		before := capSnapshot(b)

		hp := &health{}
		require.NoError(t, a.Add(hp))
		require.ErrorIs(t, b.Add(hp), ErrAlreadyAttached)
		require.ErrorIs(t, a.Add(hp), ErrAlreadyAttached)

		require.Equal(t, 1, b.Len())
		require.False(t, Has[*health](b))
		require.Equal(t, before, capSnapshot(b))
		require.Same(t, a, hp.Holder())

		_, err := GetOrAdd(b, func() *health { return hp })
		require.ErrorIs(t, err, ErrAlreadyAttached)
		require.False(t, Has[*health](b))
	})

	t.Run("duplicate type", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		require.NoError(t, h.Add(&health{}))
		second := &health{}
		require.ErrorIs(t, h.Add(second), ErrDuplicateType)
		require.Nil(t, second.Holder())
	})

	t.Run("removed instance cannot be reattached", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		hp := &health{}
		require.NoError(t, h.Add(hp))
		require.True(t, Remove[*health](h))
		require.ErrorIs(t, h.Add(hp), ErrRemoved)
	})

	t.Run("nil", func(t *testing.T) {
		require.ErrorIs(t, NewHolder().Add(nil), ErrNilProperty)
	})
}

func TestHolderLookup(t *testing.T) {
	types := testTypes(t)
	h := NewHolder(WithTypes(types))

	_, err := Get[*health](h)
	require.ErrorIs(t, err, ErrNotFound)
	_, ok := TryGet[*health](h)
	require.False(t, ok)

	created, err := GetOrAdd(h, func() *health { return &health{Current: 7} })
	require.NoError(t, err)
	again, err := GetOrAdd(h, func() *health { t.Fatal("constructor called twice"); return nil })
	require.NoError(t, err)
	require.Same(t, created, again)

	got, err := Get[*health](h)
	require.NoError(t, err)
	require.Same(t, created, got)

	p, ok := h.Lookup(reflect.TypeFor[*health]())
	require.True(t, ok)
	require.Same(t, created, p.(*health))

	require.False(t, Has[*stamina](h))
	require.Equal(t, []Property{created}, h.Properties())
}

func TestHooksOrder(t *testing.T) {
	types := testTypes(t)
	hookLog = nil
	h := NewHolder(WithTypes(types), WithHooks(recordingHooks{}))

	require.NoError(t, h.Add(&health{}))
	require.True(t, Remove[*health](h))

	require.Equal(t, []string{
		"health.added",
		"holder.added:health",
		"health.removed",
		"holder.removed:health",
	}, hookLog)
}

func TestSignalAll(t *testing.T) {
	types := testTypes(t)

	t.Run("insertion order", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		st := &stamina{}
		hp := &health{}
		require.NoError(t, h.Add(st))
		require.NoError(t, h.Add(hp))

		var visited []string
		err := h.SignalAll(Tickable, func(p Property) error {
			visited = append(visited, p.Metadata().Name)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"stamina", "health"}, visited)
	})

	t.Run("snapshot survives removal", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		st := &stamina{}
		hp := &health{}
		require.NoError(t, h.Add(st))
		require.NoError(t, h.Add(hp))
		st.onTick = func() { Remove[*health](h) }

		err := Each(h, Tickable, func(tk Ticker) error { return tk.Tick(0.1) })
		require.NoError(t, err)
		require.Equal(t, 1, st.ticks)
		require.Equal(t, 1, hp.ticks)
		require.Len(t, h.AllWithCapability(Tickable), 1)
	})

	t.Run("error aborts remaining", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		boom := errors.New("boom")
		hp := &health{fail: boom}
		st := &stamina{}
		require.NoError(t, h.Add(hp))
		require.NoError(t, h.Add(st))

		err := Each(h, Tickable, func(tk Ticker) error { return tk.Tick(0.1) })
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, hp.ticks)
		require.Equal(t, 0, st.ticks)
	})
}

func TestMetadataCache(t *testing.T) {
	types := testTypes(t)

	t.Run("computed once", func(t *testing.T) {
		rt := reflect.TypeFor[*health]()
		first := types.MetadataFor(rt)
		for range 10 {
			require.Same(t, first, types.MetadataFor(rt))
		}
		require.Same(t, first, MetadataOf[*health](types))

		require.Equal(t, "health", first.Name)
		require.Equal(t, []string{"current", "max", "note"}, memberNames(first.Debuggable))
		require.Equal(t, []string{"current", "max", "label"}, memberNames(first.AutoSave))
		require.True(t, first.Has(Tickable))
		require.True(t, first.Has(Serializable))
	})

	t.Run("concurrent first request", func(t *testing.T) {
		fresh := testTypes(t)
		rt := reflect.TypeFor[*stamina]()
		results := make([]*Metadata, 32)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = fresh.MetadataFor(rt)
			}(i)
		}
		wg.Wait()
		for _, m := range results {
			require.Same(t, results[0], m)
		}
		require.EqualValues(t, 1, fresh.computed.Load())
	})

	t.Run("undefined type", func(t *testing.T) {
		m := types.MetadataFor(reflect.TypeFor[*marker]())
		require.Empty(t, m.Debuggable)
		require.Empty(t, m.AutoSave)
		require.Same(t, m, types.MetadataFor(reflect.TypeFor[*marker]()))
		_, err := m.New()
		require.ErrorIs(t, err, ErrUndefined)
	})

	t.Run("defining after first use is rejected", func(t *testing.T) {
		m := types.MetadataFor(reflect.TypeFor[*marker]())
		_, err := DefineIn(types, "marker", func() *marker { return &marker{} })
		require.ErrorIs(t, err, ErrInvalidDefinition)
		require.Same(t, m, MetadataOf[*marker](types))
		_, err = types.ByName("marker")
		require.ErrorIs(t, err, ErrUndefined)
	})

	t.Run("by name", func(t *testing.T) {
		m, err := types.ByName("stamina")
		require.NoError(t, err)
		require.Same(t, MetadataOf[*stamina](types), m)
		_, err = types.ByName("missing")
		require.ErrorIs(t, err, ErrUndefined)
		require.Equal(t, []string{"health", "inventory", "stamina"}, types.Names())
	})
}

func TestDefineValidation(t *testing.T) {
	types := NewTypes()
	get := func(m *marker) int { return 0 }
	set := func(m *marker, v int) {}

	_, err := DefineIn(types, "", func() *marker { return &marker{} })
	require.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = DefineIn(types, "marker", func() *marker { return &marker{} },
		WithMembers(Field("a", Debuggable, get, set), Field("a", Debuggable, get, set)))
	require.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = DefineIn(types, "marker", func() *marker { return &marker{} },
		WithMembers(Field[*marker, int]("a", AutoSave, get, nil)))
	require.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = DefineIn(types, "marker", func() *marker { return &marker{} }, Implements(Tickable))
	require.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = DefineIn(types, "marker", func() *marker { return &marker{} })
	require.NoError(t, err)
	_, err = DefineIn(types, "marker", func() *marker { return &marker{} })
	require.ErrorIs(t, err, ErrInvalidDefinition)
	_, err = DefineIn(types, "other", func() *marker { return &marker{} })
	require.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestDebugDump(t *testing.T) {
	types := testTypes(t)
	h := NewHolder(WithTypes(types))
	hp := &health{Current: 40, Max: 100}
	require.NoError(t, h.Add(hp))

	require.Equal(t, []DebugEntry{
		{Label: "health(current)", Value: "40"},
		{Label: "health(max)", Value: "100"},
		{Label: "health(note)", Value: "null"},
	}, DebugDump(hp))

	note := "bleeding"
	hp.Note = &note
	dump := DebugDumpHolder(h)
	require.Len(t, dump, 3)
	require.NotEqual(t, "null", dump[2].Value)
}

func TestPersistence(t *testing.T) {
	types := testTypes(t)
	codecs := codec.NewDefaultRegistry()

	t.Run("save and load", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		require.NoError(t, h.Add(&health{Current: 12, Max: 50, Label: "boss"}))
		require.NoError(t, h.Add(&stamina{Value: 0.75}))

		sections, err := SaveHolder(codecs, h)
		require.NoError(t, err)
		require.Len(t, sections, 2)
		require.Equal(t, "health", sections[0].Name)
		require.Equal(t, []string{"current", "max", "label"}, []string{
			sections[0].Records[0].Field, sections[0].Records[1].Field, sections[0].Records[2].Field,
		})
		require.Equal(t, "i32", sections[0].Records[0].Tag)

		blob := codec.Frame(sections)
		decoded, err := codec.Unframe(blob)
		require.NoError(t, err)

		hookLog = nil
		restored := NewHolder(WithTypes(types))
		require.NoError(t, LoadHolder(codecs, restored, decoded))
		hp, err := Get[*health](restored)
		require.NoError(t, err)
		require.Equal(t, int32(12), hp.Current)
		require.Equal(t, int32(50), hp.Max)
		require.Equal(t, "boss", hp.Label)
		st, err := Get[*stamina](restored)
		require.NoError(t, err)
		require.Equal(t, 0.75, st.Value)
		require.Equal(t, []string{"health.added"}, hookLog)
	})

	t.Run("load into held property", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		hp := &health{}
		require.NoError(t, h.Add(hp))
		src := &health{Current: 3, Max: 9}
		require.NoError(t, NewHolder(WithTypes(types)).Add(src))
		records, err := Save(codecs, src)
		require.NoError(t, err)
		require.NoError(t, LoadHolder(codecs, h, []codec.Section{{Name: "health", Records: records}}))
		require.Equal(t, int32(3), hp.Current)
	})

	t.Run("unsupported field type fails whole property", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		require.NoError(t, h.Add(&inventory{Slots: []string{"sword"}}))
		_, err := SaveHolder(codecs, h)
		require.ErrorIs(t, err, codec.ErrUnsupportedType)
	})

	t.Run("invalid utf-8 label fails the save", func(t *testing.T) {
		h := NewHolder(WithTypes(types))
		require.NoError(t, h.Add(&health{Label: "\xff\xfe"}))
		_, err := SaveHolder(codecs, h)
		require.ErrorContains(t, err, "invalid utf-8")
	})

	t.Run("tag mismatch", func(t *testing.T) {
		hp := &health{}
		require.NoError(t, NewHolder(WithTypes(types)).Add(hp))
		err := Load(codecs, hp, []codec.Record{{Field: "current", Tag: "f64", Data: make([]byte, 8)}})
		require.ErrorIs(t, err, ErrTagMismatch)
	})

	t.Run("unknown fields skipped", func(t *testing.T) {
		hp := &health{}
		require.NoError(t, NewHolder(WithTypes(types)).Add(hp))
		require.NoError(t, Load(codecs, hp, []codec.Record{{Field: "legacy", Tag: "nope"}}))
	})

	t.Run("prepare runs before load and attach", func(t *testing.T) {
		src := &health{Current: 12, Max: 50}
		require.NoError(t, NewHolder(WithTypes(types)).Add(src))
		records, err := Save(codecs, src)
		require.NoError(t, err)

		h := NewHolder(WithTypes(types))
		var prepared []string
		err = LoadHolder(codecs, h, []codec.Section{{Name: "health", Records: records}}, WithPrepare(func(p Property) {
			require.Nil(t, p.Holder())
			hp := p.(*health)
			hp.Current = -1
			hp.Note = &hp.Label
			prepared = append(prepared, p.Metadata().Name)
		}))
		require.NoError(t, err)
		require.Equal(t, []string{"health"}, prepared)
		hp, err := Get[*health](h)
		require.NoError(t, err)
		require.Equal(t, int32(12), hp.Current)
		require.NotNil(t, hp.Note)
	})

	t.Run("unknown section", func(t *testing.T) {
		err := LoadHolder(codecs, NewHolder(WithTypes(types)), []codec.Section{{Name: "ghost"}})
		require.ErrorIs(t, err, ErrUndefined)
	})
}

func TestCleanDuplicate(t *testing.T) {
	types := testTypes(t)
	h := NewHolder(WithTypes(types))
	hp := &health{Current: 5, Max: 8, Label: "x"}
	require.NoError(t, h.Add(hp))

	dup, err := CleanDuplicate(hp)
	require.NoError(t, err)
	clone := dup.(*health)
	require.Nil(t, clone.Holder())
	require.Equal(t, int32(5), clone.Current)
	require.Equal(t, "x", clone.Label)

	other := NewHolder(WithTypes(types))
	require.NoError(t, other.Add(clone))
	require.Same(t, other, clone.Holder())
}

func memberNames(ms []Member) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}
