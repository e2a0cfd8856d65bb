package core

import (
	"context"
	"slices"
	"sync"

	"github.com/JonMunkholm/clodoo/internal/logging"
	"github.com/JonMunkholm/clodoo/internal/store"
)

// FieldInfo describes one field of an entity.
type FieldInfo struct {
	Name     string
	Type     string
	Relation string
	Required bool
	ReadOnly bool
}

// Schema reads field metadata from the store's ir.model.fields and caches
// it per entity.
type Schema struct {
	store store.Store

	mu     sync.Mutex
	models map[string]map[string]FieldInfo
}

// NewSchema returns a schema reader over st.
func NewSchema(st store.Store) *Schema {
	return &Schema{store: st, models: make(map[string]map[string]FieldInfo)}
}

// Fields returns the fields of entity. A failed read is logged and yields
// an empty, uncached result.
func (s *Schema) Fields(ctx context.Context, entity string) map[string]FieldInfo {
	s.mu.Lock()
	fields, ok := s.models[entity]
	s.mu.Unlock()
	if ok {
		return fields
	}

	fields, err := s.load(ctx, entity)
	if err != nil {
		logging.FromContext(ctx).Warn("schema unavailable", "entity", entity, "error", err)
		return map[string]FieldInfo{}
	}

	s.mu.Lock()
	s.models[entity] = fields
	s.mu.Unlock()
	return fields
}

func (s *Schema) load(ctx context.Context, entity string) (map[string]FieldInfo, error) {
	ids, err := s.store.Search(ctx, store.FieldsModel, store.Domain{store.Eq("model", entity)}, "")
	if err != nil {
		return nil, err
	}
	fields := make(map[string]FieldInfo, len(ids))
	if len(ids) == 0 {
		return fields, nil
	}
	recs, err := s.store.Read(ctx, store.FieldsModel, ids, "name", "ttype", "relation", "required", "readonly")
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		name, _ := rec["name"].(string)
		if name == "" {
			continue
		}
		typ, _ := rec["ttype"].(string)
		rel, _ := rec["relation"].(string)
		fields[name] = FieldInfo{
			Name:     name,
			Type:     typ,
			Relation: rel,
			Required: rec["required"] == true,
			ReadOnly: rec["readonly"] == true,
		}
	}
	return fields, nil
}

// Field returns one field of entity.
func (s *Schema) Field(ctx context.Context, entity, name string) (FieldInfo, bool) {
	f, ok := s.Fields(ctx, entity)[name]
	return f, ok
}

// HasField reports whether entity declares name. The id field always
// exists.
func (s *Schema) HasField(ctx context.Context, entity, name string) bool {
	if name == "id" {
		return true
	}
	_, ok := s.Field(ctx, entity, name)
	return ok
}

// MandatoryFields returns the required fields of entity plus code and
// name when the entity has them, sorted by name.
func (s *Schema) MandatoryFields(ctx context.Context, entity string) []string {
	var out []string
	for name, f := range s.Fields(ctx, entity) {
		if f.Required || name == "code" || name == "name" {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
