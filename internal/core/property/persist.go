package property

import (
	"fmt"

	"github.com/zeusync/gamecore/internal/core/codec"
)

// Save encodes every auto-saved member of p in declaration order. A member
// whose type has no codec fails the whole property.
func Save(codecs *codec.Registry, p Property) ([]codec.Record, error) {
	meta := metadataOf(p)
	records := make([]codec.Record, 0, len(meta.AutoSave))
	for _, m := range meta.AutoSave {
		c, err := codecs.Lookup(m.Type)
		if err != nil {
			return nil, fmt.Errorf("save %s.%s: %w", meta.Name, m.Name, err)
		}
		data, err := c.Encode(m.Get(p))
		if err != nil {
			return nil, fmt.Errorf("save %s.%s: %w", meta.Name, m.Name, err)
		}
		records = append(records, codec.Record{Field: m.Name, Tag: c.Tag, Data: data})
	}
	return records, nil
}

// Load decodes records into p. Records for members the type no longer
// declares are skipped; a tag that does not match the member type fails.
func Load(codecs *codec.Registry, p Property, records []codec.Record) error {
	meta := metadataOf(p)
	for _, r := range records {
		m, ok := meta.member(r.Field)
		if !ok {
			continue
		}
		c, err := codecs.LookupTag(r.Tag)
		if err != nil {
			return fmt.Errorf("load %s.%s: %w", meta.Name, r.Field, err)
		}
		if c.Type != m.Type {
			return fmt.Errorf("load %s.%s: %w: %s is %s, member is %s", meta.Name, r.Field, ErrTagMismatch, r.Tag, c.Type, m.Type)
		}
		v, err := c.Decode(r.Data)
		if err != nil {
			return fmt.Errorf("load %s.%s: %w", meta.Name, r.Field, err)
		}
		if err = m.Set(p, v); err != nil {
			return fmt.Errorf("load %s.%s: %w", meta.Name, r.Field, err)
		}
	}
	return nil
}

// SaveHolder saves every serializable property of h in insertion order.
func SaveHolder(codecs *codec.Registry, h *Holder) ([]codec.Section, error) {
	props := h.AllWithCapability(Serializable)
	sections := make([]codec.Section, 0, len(props))
	for _, p := range props {
		records, err := Save(codecs, p)
		if err != nil {
			return nil, err
		}
		sections = append(sections, codec.Section{Name: p.Metadata().Name, Records: records})
	}
	return sections, nil
}

type loadOptions struct {
	prepare []func(Property)
}

type LoadOption func(*loadOptions)

// WithPrepare runs fn on every property LoadHolder constructs, before its
// records are loaded and before it is attached.
func WithPrepare(fn func(Property)) LoadOption {
	return func(o *loadOptions) { o.prepare = append(o.prepare, fn) }
}

// LoadHolder restores sections into h. Properties already held are updated in
// place; missing ones are constructed from their definition, prepared, loaded,
// then attached so that OnAdded observes the restored state.
func LoadHolder(codecs *codec.Registry, h *Holder, sections []codec.Section, opts ...LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	for _, s := range sections {
		meta, err := h.types.ByName(s.Name)
		if err != nil {
			return err
		}
		if p, ok := h.props[meta.Type]; ok {
			if err = Load(codecs, p, s.Records); err != nil {
				return err
			}
			continue
		}
		p, err := meta.New()
		if err != nil {
			return err
		}
		p.base().meta = meta
		for _, fn := range o.prepare {
			fn(p)
		}
		if err = Load(codecs, p, s.Records); err != nil {
			return err
		}
		if err = h.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// CleanDuplicate returns a detached copy of p built from its definition with
// every auto-saved member copied over.
func CleanDuplicate(p Property) (Property, error) {
	meta := metadataOf(p)
	q, err := meta.New()
	if err != nil {
		return nil, err
	}
	q.base().meta = meta
	for _, m := range meta.AutoSave {
		if err = m.Set(q, m.Get(p)); err != nil {
			return nil, err
		}
	}
	return q, nil
}
