package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/atlekbai/querykit/internal/builder"
	"github.com/atlekbai/querykit/internal/config"
	"github.com/atlekbai/querykit/internal/executor"
	"github.com/atlekbai/querykit/internal/model"
)

const keyColumnUsage = "information_schema.KEY_COLUMN_USAGE"

// ErrNotFound is returned for names with no registered definition.
var ErrNotFound = errors.New("model not found")

// Registry holds the table definitions models are built from.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*TableDef
	byID   map[uuid.UUID]*TableDef
}

func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]*TableDef),
		byID:   make(map[uuid.UUID]*TableDef),
	}
}

// Register adds a definition. Table defaults to the name.
func (r *Registry) Register(def TableDef) (*TableDef, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("schema register: name is required")
	}
	if def.Table == "" {
		def.Table = def.Name
	}
	def.ID = tableID(def.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[def.Name]; exists {
		return nil, fmt.Errorf("schema register: %q already registered", def.Name)
	}
	r.tables[def.Name] = &def
	r.byID[def.ID] = &def
	return &def, nil
}

// LoadModels replaces the registry contents with the configured models.
// On error the registry is left unchanged.
func (r *Registry) LoadModels(models []config.ModelConfig) error {
	next := NewRegistry()
	for _, m := range models {
		if _, err := next.Register(TableDef{Name: m.Name, Table: m.Table, PrimaryKey: m.PrimaryKey}); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = next.tables
	r.byID = next.byID
	return nil
}

// Get returns the definition registered under name, or nil.
func (r *Registry) Get(name string) *TableDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[name]
}

// Lookup returns a copy of the definition registered under name.
func (r *Registry) Lookup(name string) (TableDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tables[name]
	if !ok {
		return TableDef{}, false
	}
	return *def, true
}

// List returns copies of every definition, sorted by name.
func (r *Registry) List() []TableDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]TableDef, 0, len(r.tables))
	for _, def := range r.tables {
		defs = append(defs, *def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *Registry) GetByID(id uuid.UUID) *TableDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model builds a model for the named definition.
func (r *Registry) Model(name string, exec executor.Executor) (*model.Model, error) {
	r.mu.RLock()
	def, ok := r.tables[name]
	var table, pk string
	if ok {
		table, pk = def.Table, def.primaryKey()
	}
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no model registered with name %q", ErrNotFound, name)
	}
	return model.New(table, exec, model.WithPrimaryKey(pk))
}

// Discover fills in missing primary keys from the PRIMARY constraint of
// each table in database. Tables without one keep the default key. It
// returns the number of definitions updated.
func (r *Registry) Discover(ctx context.Context, exec executor.Executor, database string) (int, error) {
	r.mu.RLock()
	pending := make(map[string][]*TableDef)
	for _, def := range r.tables {
		if def.PrimaryKey == "" {
			pending[def.Table] = append(pending[def.Table], def)
		}
	}
	r.mu.RUnlock()
	if len(pending) == 0 {
		return 0, nil
	}

	tables := make([]string, 0, len(pending))
	for t := range pending {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	res, err := builder.BindSelect(builder.NewSelect().From(keyColumnUsage), exec).
		Select("TABLE_NAME AS tbl, COLUMN_NAME AS col").
		Where("TABLE_SCHEMA", builder.OpEq).
		Where("CONSTRAINT_NAME", builder.OpEq, "PRIMARY").
		Where("TABLE_NAME", builder.OpIn, tables).
		OrderBy("ORDINAL_POSITION").
		Call(ctx, database)
	if err != nil {
		return 0, fmt.Errorf("schema discover: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	updated := 0
	for _, row := range res.Rows {
		table, _ := row["tbl"].(string)
		col, _ := row["col"].(string)
		// Composite keys keep their first column.
		for _, def := range pending[table] {
			if def.PrimaryKey == "" && col != "" {
				def.PrimaryKey = col
				updated++
			}
		}
	}
	return updated, nil
}
