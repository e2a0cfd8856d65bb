package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Call records one operation received by a Memory store.
type Call struct {
	Op     string
	Model  string
	Domain Domain
	IDs    []int64
	Vals   map[string]any
	Method string
}

// Method implements a model method for Memory.Execute.
type Method func(ctx context.Context, args ...any) (any, error)

// FieldDef describes a field for DefineModel.
type FieldDef struct {
	Name     string
	Type     string
	Required bool
	ReadOnly bool
	Relation string
}

// Memory is a Store kept in process memory. It records every call it
// receives so tests can assert on the exact traffic an import produced.
type Memory struct {
	mu      sync.Mutex
	models  map[string]map[int64]Record
	nextID  map[string]int64
	calls   []Call
	methods map[string]Method
	hook    func(Call) error
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		models:  make(map[string]map[int64]Record),
		nextID:  make(map[string]int64),
		methods: make(map[string]Method),
	}
}

// SetHook installs fn to run before every operation. A non-nil error from
// fn fails the operation.
func (m *Memory) SetHook(fn func(Call) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// HandleMethod registers the implementation of model.method for Execute.
func (m *Memory) HandleMethod(model, method string, fn Method) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[model+"/"+method] = fn
}

// DefineModel seeds field metadata for model so schema introspection works
// against this store.
func (m *Memory) DefineModel(model string, fields ...FieldDef) {
	for _, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = "char"
		}
		m.Put(FieldsModel, 0, map[string]any{
			"model":    model,
			"name":     f.Name,
			"ttype":    typ,
			"required": f.Required,
			"readonly": f.ReadOnly,
			"relation": f.Relation,
		})
	}
}

// Put stores a record without logging a call. An id of 0 allocates the
// next free id. It returns the id used.
func (m *Memory) Put(model string, id int64, vals map[string]any) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 {
		id = m.allocate(model)
	} else if id >= m.nextID[model] {
		m.nextID[model] = id + 1
	}
	m.table(model)[id] = m.copyVals(id, vals)
	return id
}

// Get returns a copy of a stored record.
func (m *Memory) Get(model string, id int64) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.models[model][id]
	if !ok {
		return nil, false
	}
	return maps.Clone(rec), true
}

// All returns copies of every record of model ordered by id.
func (m *Memory) All(model string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := slices.Sorted(maps.Keys(m.models[model]))
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, maps.Clone(m.models[model][id]))
	}
	return out
}

// Calls returns the logged calls, limited to ops when any are given.
func (m *Memory) Calls(ops ...string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if len(ops) == 0 || slices.Contains(ops, c.Op) {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Search implements Store. Supported orders are "" and "<field> [asc|desc]".
func (m *Memory) Search(ctx context.Context, model string, domain Domain, order string) ([]int64, error) {
	if err := m.record(Call{Op: "search", Model: model, Domain: domain}); err != nil {
		return nil, err
	}
	if err := domain.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var hits []Record
	for _, rec := range m.models[model] {
		ok, err := domain.Match(func(t Term) bool { return MatchTerm(t, rec[t.Field]) })
		if err != nil {
			return nil, err
		}
		if ok {
			hits = append(hits, rec)
		}
	}

	field, desc := parseOrder(order)
	slices.SortFunc(hits, func(a, b Record) int {
		c := Compare(a[field], b[field])
		if c == 0 {
			c = Compare(a.ID(), b.ID())
		}
		if desc {
			return -c
		}
		return c
	})

	ids := make([]int64, len(hits))
	for i, rec := range hits {
		ids[i] = rec.ID()
	}
	return ids, nil
}

// Read implements Store.
func (m *Memory) Read(ctx context.Context, model string, ids []int64, fields ...string) ([]Record, error) {
	if err := m.record(Call{Op: "read", Model: model, IDs: slices.Clone(ids)}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, ok := m.models[model][id]
		if !ok {
			return nil, fmt.Errorf("%s(%d): %w", model, id, ErrNotFound)
		}
		if len(fields) == 0 {
			out = append(out, maps.Clone(rec))
			continue
		}
		sub := Record{"id": id}
		for _, f := range fields {
			sub[f] = rec[f]
		}
		out = append(out, sub)
	}
	return out, nil
}

// Create implements Store.
func (m *Memory) Create(ctx context.Context, model string, vals map[string]any) (int64, error) {
	if err := m.record(Call{Op: "create", Model: model, Vals: maps.Clone(vals)}); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.allocate(model)
	m.table(model)[id] = m.copyVals(id, vals)
	return id, nil
}

// Write implements Store.
func (m *Memory) Write(ctx context.Context, model string, ids []int64, vals map[string]any) error {
	if err := m.record(Call{Op: "write", Model: model, IDs: slices.Clone(ids), Vals: maps.Clone(vals)}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		rec, ok := m.models[model][id]
		if !ok {
			return fmt.Errorf("%s(%d): %w", model, id, ErrNotFound)
		}
		for k, v := range vals {
			if k != "id" {
				rec[k] = v
			}
		}
	}
	return nil
}

// Unlink implements Store.
func (m *Memory) Unlink(ctx context.Context, model string, ids []int64) error {
	if err := m.record(Call{Op: "unlink", Model: model, IDs: slices.Clone(ids)}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.models[model], id)
	}
	return nil
}

// Execute implements Store by dispatching to a handler registered with
// HandleMethod.
func (m *Memory) Execute(ctx context.Context, model, method string, args ...any) (any, error) {
	if err := m.record(Call{Op: "execute", Model: model, Method: method}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	fn, ok := m.methods[model+"/"+method]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", model, method, ErrUnsupported)
	}
	return fn(ctx, args...)
}

func (m *Memory) record(c Call) error {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		return hook(c)
	}
	return nil
}

func (m *Memory) table(model string) map[int64]Record {
	t, ok := m.models[model]
	if !ok {
		t = make(map[int64]Record)
		m.models[model] = t
	}
	return t
}

func (m *Memory) allocate(model string) int64 {
	if m.nextID[model] == 0 {
		m.nextID[model] = 1
	}
	id := m.nextID[model]
	m.nextID[model]++
	return id
}

func (m *Memory) copyVals(id int64, vals map[string]any) Record {
	rec := make(Record, len(vals)+1)
	maps.Copy(rec, vals)
	rec["id"] = id
	return rec
}

func parseOrder(order string) (field string, desc bool) {
	parts := strings.Fields(order)
	if len(parts) == 0 {
		return "id", false
	}
	return parts[0], len(parts) > 1 && strings.EqualFold(parts[1], "desc")
}
