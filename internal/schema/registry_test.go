package schema

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/querykit/internal/config"
	"github.com/atlekbai/querykit/internal/executor"
)

func TestRegister(t *testing.T) {
	r := NewRegistry()

	def, err := r.Register(TableDef{Name: "users"})
	require.NoError(t, err)
	assert.Equal(t, "users", def.Table)
	assert.Equal(t, tableID("users"), def.ID)

	assert.Same(t, r.Get("users"), r.GetByID(def.ID))
	assert.Nil(t, r.Get("orders"))
	assert.Equal(t, 1, r.Count())

	_, err = r.Register(TableDef{Name: "users", Table: "other"})
	assert.Error(t, err)
	_, err = r.Register(TableDef{Table: "users"})
	assert.Error(t, err)
}

func TestTableIDStable(t *testing.T) {
	assert.Equal(t, tableID("users"), tableID("users"))
	assert.NotEqual(t, tableID("users"), tableID("orders"))
}

func TestLoadModels(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(TableDef{Name: "stale"})
	require.NoError(t, err)

	require.NoError(t, r.LoadModels([]config.ModelConfig{
		{Name: "users", Table: "users"},
		{Name: "orders", Table: "shop_orders", PrimaryKey: "order_id"},
	}))
	assert.Equal(t, []string{"orders", "users"}, r.Names())

	defs := r.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "shop_orders", defs[0].Table)
	assert.Equal(t, "order_id", defs[0].PrimaryKey)

	def, ok := r.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, tableID("users"), def.ID)
	_, ok = r.Lookup("stale")
	assert.False(t, ok)

	err = r.LoadModels([]config.ModelConfig{{Name: "a", Table: "a"}, {Name: "a", Table: "b"}})
	require.Error(t, err)
	assert.Equal(t, []string{"orders", "users"}, r.Names())
}

func TestRegistryModel(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadModels([]config.ModelConfig{
		{Name: "users", Table: "users"},
		{Name: "orders", Table: "shop_orders", PrimaryKey: "order_id"},
	}))

	m, err := r.Model("orders", nil)
	require.NoError(t, err)
	sql, err := m.GetByID(4).Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `shop_orders` WHERE `order_id` = 4", sql)

	m, err = r.Model("users", nil)
	require.NoError(t, err)
	assert.Equal(t, "id", m.PrimaryKey())

	_, err = r.Model("missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiscover(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	r := NewRegistry()
	require.NoError(t, r.LoadModels([]config.ModelConfig{
		{Name: "users", Table: "users"},
		{Name: "accounts", Table: "accounts"},
		{Name: "orders", Table: "shop_orders", PrimaryKey: "order_id"},
	}))

	rows := mock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("tbl").OfType("VARCHAR", ""),
		sqlmock.NewColumn("col").OfType("VARCHAR", ""),
	).AddRow("users", "uid").AddRow("users", "tenant").AddRow("accounts", "account_id")
	mock.ExpectQuery("SELECT `TABLE_NAME` AS `tbl`, `COLUMN_NAME` AS `col` " +
		"FROM `information_schema`.`KEY_COLUMN_USAGE` " +
		"WHERE `TABLE_SCHEMA` = ? AND `CONSTRAINT_NAME` = 'PRIMARY' AND `TABLE_NAME` IN ('accounts', 'users') " +
		"ORDER BY `ORDINAL_POSITION` ASC").
		WithArgs("shop").
		WillReturnRows(rows)

	n, err := r.Discover(context.Background(), executor.New(db), "shop")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "uid", r.Get("users").PrimaryKey)
	assert.Equal(t, "account_id", r.Get("accounts").PrimaryKey)
	assert.Equal(t, "order_id", r.Get("orders").PrimaryKey)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Nothing left to discover.
	n, err = r.Discover(context.Background(), executor.Unavailable{}, "shop")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiscoverError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(TableDef{Name: "users"})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = r.Discover(context.Background(), executor.Func(func(context.Context, string, []any) (*executor.Result, error) {
		return nil, boom
	}), "shop")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.Get("users").PrimaryKey)
}

func TestRegistryConcurrentReads(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(TableDef{Name: "users"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Model("users", nil)
			_ = r.Names()
		}()
	}
	wg.Wait()
}
