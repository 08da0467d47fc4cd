package tool

import (
	"fmt"
	"sync"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/registry"
)

// Registry is the authoritative set of callable tools plus their return
// schemas. Registration is append-only for a given name.
type Registry struct {
	records *registry.BaseRegistry[*Record]
	schemas *SchemaRegistry

	mu      sync.RWMutex
	aliases map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		records: registry.NewBaseRegistry[*Record](),
		schemas: NewSchemaRegistry(),
		aliases: make(map[string]string),
	}
}

// Register adds a record, seeds its declared return schema, and indexes its
// aliases. Duplicate names and duplicate aliases are rejected.
func (r *Registry) Register(rec *Record) error {
	if rec == nil || rec.Definition == nil {
		return fmt.Errorf("tool record cannot be nil")
	}
	if rec.Call == nil {
		return fmt.Errorf("tool '%s' has no handler", rec.Definition.Name)
	}
	if err := rec.Definition.Validate(); err != nil {
		return err
	}

	name := rec.Definition.Name

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, alias := range rec.Definition.Aliases {
		if alias == "" {
			return fmt.Errorf("tool '%s' has an empty alias", name)
		}
		if owner, ok := r.aliases[alias]; ok {
			return fmt.Errorf("alias '%s' of tool '%s' already taken by '%s'", alias, name, owner)
		}
		if _, ok := r.records.Get(alias); ok {
			return fmt.Errorf("alias '%s' of tool '%s' collides with a tool name", alias, name)
		}
	}

	if err := r.records.Register(name, rec); err != nil {
		return err
	}
	for _, alias := range rec.Definition.Aliases {
		r.aliases[alias] = name
	}

	if rec.Definition.Returns != nil {
		if err := r.schemas.RegisterDeclared(name, rec.Definition.Returns); err != nil {
			return err
		}
	}
	return nil
}

// Tool returns the record registered under name.
func (r *Registry) Tool(name string) (*Record, error) {
	rec, ok := r.records.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return rec, nil
}

// ToolByAlias resolves name directly, then through the alias index.
func (r *Registry) ToolByAlias(name string) (*Record, error) {
	if rec, ok := r.records.Get(name); ok {
		return rec, nil
	}
	r.mu.RLock()
	canonical, ok := r.aliases[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	rec, ok := r.records.Get(canonical)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return rec, nil
}

// All returns every record in registration order.
func (r *Registry) All() []*Record {
	return r.records.List()
}

// Names returns every tool name in registration order.
func (r *Registry) Names() []string {
	recs := r.records.List()
	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		names = append(names, rec.Definition.Name)
	}
	return names
}

// ForLanguage returns the records available to a stub target, in
// registration order.
func (r *Registry) ForLanguage(lang Language) []*Record {
	var out []*Record
	for _, rec := range r.records.List() {
		if rec.Definition.SupportsLanguage(lang) {
			out = append(out, rec)
		}
	}
	return out
}

// ByCategory returns the records tagged with cat, in registration order.
func (r *Registry) ByCategory(cat Category) []*Record {
	var out []*Record
	for _, rec := range r.records.List() {
		if rec.Definition.Category == cat {
			out = append(out, rec)
		}
	}
	return out
}

// Definition returns the definition registered under name.
func (r *Registry) Definition(name string) (*Definition, error) {
	rec, err := r.Tool(name)
	if err != nil {
		return nil, err
	}
	return rec.Definition, nil
}

// Schemas exposes the return-schema registry for observation wiring.
func (r *Registry) Schemas() *SchemaRegistry {
	return r.schemas
}

// ReturnSchema returns the effective return schema for name, falling back
// to the declared one when nothing has been observed.
func (r *Registry) ReturnSchema(name string) (*ReturnSchema, bool) {
	return r.schemas.Effective(name)
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return r.records.Count()
}
