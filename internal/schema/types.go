package schema

import (
	"github.com/google/uuid"

	"github.com/atlekbai/querykit/internal/model"
)

// namespace seeds the name-derived table IDs.
var namespace = uuid.MustParse("5b0f7c1e-2d47-4a8e-9c3b-6f1d2e8a9b40")

// TableDef is a named table a model can be built for.
type TableDef struct {
	ID         uuid.UUID
	Name       string
	Table      string
	PrimaryKey string
}

// tableID derives a stable ID from the definition name.
func tableID(name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(name))
}

// primaryKey returns the primary key column, falling back to the model
// default.
func (d *TableDef) primaryKey() string {
	if d.PrimaryKey == "" {
		return model.DefaultPrimaryKey
	}
	return d.PrimaryKey
}
