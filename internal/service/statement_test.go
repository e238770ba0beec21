package service

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	_ "modernc.org/sqlite"

	"github.com/atlekbai/querykit/internal/builder"
	"github.com/atlekbai/querykit/internal/config"
	"github.com/atlekbai/querykit/internal/executor"
	"github.com/atlekbai/querykit/internal/schema"
	"github.com/atlekbai/querykit/internal/server"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.LoadModels([]config.ModelConfig{
		{Name: "users", Table: "users"},
		{Name: "orders", Table: "shop_orders", PrimaryKey: "order_id"},
	}))
	return r
}

func request(t *testing.T, m map[string]any) *connect.Request[structpb.Struct] {
	t.Helper()
	st, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return connect.NewRequest(st)
}

func renderSQL(t *testing.T, svc *StatementService, m map[string]any) string {
	t.Helper()
	resp, err := svc.Render(context.Background(), request(t, m))
	require.NoError(t, err)
	return resp.Msg.Fields["sql"].GetStringValue()
}

func TestRender(t *testing.T) {
	svc := NewStatementService(newRegistry(t), nil, "")

	tests := []struct {
		name string
		req  map[string]any
		want string
	}{
		{
			"select with join",
			map[string]any{
				"statement": "select", "table": "users", "alias": "u",
				"columns": []any{"name", "r.title"},
				"joins": []any{map[string]any{
					"type": "left", "table": "roles", "alias": "r",
					"on": []any{map[string]any{"column": "r.id", "ref": "u.role_id"}},
				}},
				"where": []any{
					map[string]any{"column": "age", "op": ">", "value": 18},
					map[string]any{"column": "name", "op": "like", "or": true},
				},
				"orderBy": []any{map[string]any{"expr": "id", "desc": true}},
				"limit":   10,
				"offset":  20,
			},
			"SELECT `u`.`name`, `r`.`title` FROM `users` AS `u` LEFT JOIN `roles` AS `r` ON `r`.`id` = `u`.`role_id` " +
				"WHERE `u`.`age` > 18 OR `u`.`name` LIKE ? ORDER BY `u`.`id` DESC LIMIT 10 OFFSET 20",
		},
		{
			"joined select",
			map[string]any{
				"statement": "select", "table": "users", "alias": "u",
				"joins": []any{map[string]any{
					"select": map[string]any{
						"table": "orders", "as": "o",
						"columns": []any{"user_id", "COUNT(*) AS cnt"},
						"groupBy": []any{"user_id"},
					},
					"columns": "cnt",
					"on":      []any{map[string]any{"column": "o.user_id", "ref": "u.id"}},
				}},
			},
			"SELECT `o`.`cnt` FROM `users` AS `u` JOIN " +
				"(SELECT `user_id`, COUNT(*) AS `cnt` FROM `orders` GROUP BY `user_id` ASC) AS `o` " +
				"ON `o`.`user_id` = `u`.`id`",
		},
		{
			"having",
			map[string]any{
				"statement": "select", "table": "items",
				"groupBy": []any{map[string]any{"expr": "sku", "desc": true}},
				"having":  []any{map[string]any{"column": "COUNT(*)", "op": ">", "value": 1}},
			},
			"SELECT * FROM `items` GROUP BY `sku` DESC HAVING COUNT(*) > 1",
		},
		{
			"unbound and null",
			map[string]any{
				"statement": "select", "table": "t",
				"where": []any{
					map[string]any{"column": "a"},
					map[string]any{"column": "b", "value": nil},
					map[string]any{"column": "c", "op": "in", "value": []any{1, 2}},
				},
			},
			"SELECT * FROM `t` WHERE `a` = ? AND `b` = NULL AND `c` IN (1, 2)",
		},
		{
			"insert",
			map[string]any{
				"statement": "insert", "table": "users",
				"values": map[string]any{"name": "ann", "age": 30},
				"set":    []any{"role"},
			},
			"INSERT INTO `users` (`age`, `name`, `role`) VALUES (30, 'ann', ?)",
		},
		{
			"update",
			map[string]any{
				"statement": "update", "table": "users",
				"values": map[string]any{"role": "owner"},
				"where":  []any{map[string]any{"column": "id", "value": 3}},
			},
			"UPDATE `users` SET `role` = 'owner' WHERE `id` = 3",
		},
		{
			"delete with group",
			map[string]any{
				"statement": "DELETE", "table": "logs",
				"where": []any{
					map[string]any{"column": "level", "op": "=", "value": "debug"},
					map[string]any{"group": []any{
						map[string]any{"column": "a", "op": "IS NULL"},
						map[string]any{"column": "b", "op": "IS NULL", "or": true},
					}},
				},
				"limit": 100,
			},
			"DELETE FROM `logs` WHERE `level` = 'debug' AND (`a` IS NULL OR `b` IS NULL) LIMIT 100",
		},
		{
			"model get by id",
			map[string]any{"model": "orders", "op": "getById", "id": 4, "columns": "total"},
			"SELECT `total` FROM `shop_orders` WHERE `order_id` = 4",
		},
		{
			"model get",
			map[string]any{
				"model": "users", "op": "get", "columns": []any{"name"},
				"where":   []any{map[string]any{"column": "role", "value": "admin"}},
				"orderBy": []any{"name"},
				"limit":   5,
			},
			"SELECT `name` FROM `users` WHERE `role` = 'admin' ORDER BY `name` ASC LIMIT 5",
		},
		{
			"model get last",
			map[string]any{"model": "users", "op": "getLast"},
			"SELECT * FROM `users` ORDER BY `id` DESC LIMIT 1",
		},
		{
			"model create",
			map[string]any{"model": "users", "op": "create", "values": map[string]any{"name": "ann"}},
			"INSERT INTO `users` (`name`) VALUES ('ann')",
		},
		{
			"model update by id",
			map[string]any{"model": "orders", "op": "updateById", "id": 9, "values": map[string]any{"paid": true}},
			"UPDATE `shop_orders` SET `paid` = true WHERE `order_id` = 9",
		},
		{
			"model delete where",
			map[string]any{"model": "users", "op": "delete", "where": map[string]any{"=": []any{"name", "role"}}},
			"DELETE FROM `users` WHERE `name` = ? AND `role` = ?",
		},
		{
			"model delete by id",
			map[string]any{"model": "users", "op": "deleteById", "id": "x"},
			"DELETE FROM `users` WHERE `id` = 'x'",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, renderSQL(t, svc, tt.req), tt.name)
	}
}

func TestRenderErrors(t *testing.T) {
	svc := NewStatementService(newRegistry(t), nil, "")

	tests := []struct {
		name string
		req  map[string]any
		code connect.Code
	}{
		{"no statement", map[string]any{"table": "t"}, connect.CodeInvalidArgument},
		{"unknown statement", map[string]any{"statement": "merge", "table": "t"}, connect.CodeInvalidArgument},
		{"where not a list", map[string]any{"statement": "select", "table": "t", "where": "a = 1"}, connect.CodeInvalidArgument},
		{"fractional limit", map[string]any{"statement": "select", "table": "t", "limit": 1.5}, connect.CodeInvalidArgument},
		{"unknown model", map[string]any{"model": "ghosts", "op": "get"}, connect.CodeNotFound},
		{"unknown op", map[string]any{"model": "users", "op": "truncate"}, connect.CodeInvalidArgument},
		{"missing id", map[string]any{"model": "users", "op": "getById"}, connect.CodeInvalidArgument},
		{"insert with where", map[string]any{
			"statement": "insert", "table": "t", "values": map[string]any{"a": 1},
			"where": []any{map[string]any{"column": "a"}},
		}, connect.CodeInvalidArgument},
		{"typed join select", map[string]any{
			"statement": "select", "table": "t",
			"joins": []any{map[string]any{"type": "left", "select": map[string]any{"table": "x", "as": "y"}}},
		}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		_, err := svc.Render(context.Background(), request(t, tt.req))
		require.Error(t, err, tt.name)
		assert.Equal(t, tt.code, connect.CodeOf(err), tt.name)
	}
}

func TestRenderBuilderErrors(t *testing.T) {
	svc := NewStatementService(nil, nil, "")

	_, err := svc.Render(context.Background(), request(t, map[string]any{
		"statement": "select", "table": "t", "columns": "a +",
	}))
	assert.True(t, builder.IsSyntax(err))

	_, err = svc.Render(context.Background(), request(t, map[string]any{
		"statement": "select", "table": "t", "offset": 5,
	}))
	assert.True(t, builder.IsState(err))

	_, err = svc.Render(context.Background(), request(t, map[string]any{
		"statement": "select", "table": "t",
		"where": []any{map[string]any{"column": "a", "op": "IS NULL", "value": 1}},
	}))
	assert.True(t, builder.IsValidation(err))
}

func TestRenderBatch(t *testing.T) {
	svc := NewStatementService(newRegistry(t), nil, "")

	var stmts []any
	for _, table := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		stmts = append(stmts, map[string]any{"statement": "select", "table": table})
	}
	resp, err := svc.RenderBatch(context.Background(), request(t, map[string]any{"statements": stmts}))
	require.NoError(t, err)

	got := resp.Msg.AsMap()["sql"].([]any)
	require.Len(t, got, 10)
	assert.Equal(t, "SELECT * FROM `a`", got[0])
	assert.Equal(t, "SELECT * FROM `j`", got[9])
}

func TestRenderBatchFailure(t *testing.T) {
	svc := NewStatementService(newRegistry(t), nil, "")

	_, err := svc.RenderBatch(context.Background(), request(t, map[string]any{"statements": []any{
		map[string]any{"statement": "select", "table": "a"},
		map[string]any{"model": "ghosts", "op": "get"},
	}}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "statements[1]")
}

func TestFormat(t *testing.T) {
	svc := NewStatementService(nil, nil, "Z")

	resp, err := svc.Format(context.Background(), request(t, map[string]any{
		"sql":    "SELECT * FROM ?? WHERE a = ? AND b = ?",
		"values": []any{"t", "o'k", nil},
	}))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE a = 'o\\'k' AND b = NULL", resp.Msg.Fields["sql"].GetStringValue())

	resp, err = svc.Format(context.Background(), request(t, map[string]any{
		"sql":              "SET ?",
		"values":           []any{map[string]any{"a": 1}},
		"stringifyObjects": false,
	}))
	require.NoError(t, err)
	assert.Equal(t, "SET `a` = 1", resp.Msg.Fields["sql"].GetStringValue())
}

func TestExecuteUnavailable(t *testing.T) {
	svc := NewStatementService(nil, nil, "")

	_, err := svc.Execute(context.Background(), request(t, map[string]any{"statement": "select", "table": "t"}))
	assert.ErrorIs(t, err, executor.ErrUnavailable)
}

func TestExecuteSQLite(t *testing.T) {
	pool, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	pool.SetMaxOpenConns(1)
	t.Cleanup(func() { pool.Close() })

	db := executor.New(pool)
	ctx := context.Background()
	_, err = db.Execute(ctx, "CREATE TABLE `users` (`id` INTEGER PRIMARY KEY, `name` TEXT, `age` INTEGER)", nil)
	require.NoError(t, err)

	svc := NewStatementService(newRegistry(t), db, "")

	resp, err := svc.Execute(ctx, request(t, map[string]any{
		"model": "users", "op": "create", "values": map[string]any{"name": "ann", "age": 34},
	}))
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Msg.AsMap()["rowsAffected"])

	resp, err = svc.Execute(ctx, request(t, map[string]any{
		"statement": "insert", "table": "users", "set": "name, age",
		"params": []any{"bob", 17},
	}))
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Msg.AsMap()["lastInsertId"])

	resp, err = svc.Execute(ctx, request(t, map[string]any{
		"statement": "select", "table": "users", "columns": []any{"name", "age"},
		"where":   []any{map[string]any{"column": "age", "op": ">"}},
		"orderBy": []any{"name"},
		"params":  []any{10},
	}))
	require.NoError(t, err)

	out := resp.Msg.AsMap()
	assert.Equal(t, "SELECT `name`, `age` FROM `users` WHERE `age` > ? ORDER BY `name` ASC", out["sql"])
	rows := out["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"name": "ann", "age": float64(34)}, rows[0])
	assert.Equal(t, map[string]any{"name": "bob", "age": float64(17)}, rows[1])
	fields := out["fields"].([]any)
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].(map[string]any)["name"])
}

func TestServeOverConnect(t *testing.T) {
	svc := NewStatementService(newRegistry(t), nil, "")
	srv := httptest.NewServer(server.Mux(svc))
	t.Cleanup(srv.Close)

	render := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+RenderProcedure)
	resp, err := render.CallUnary(context.Background(), request(t, map[string]any{"model": "users", "op": "getOne"}))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` LIMIT 1", resp.Msg.Fields["sql"].GetStringValue())

	_, err = render.CallUnary(context.Background(), request(t, map[string]any{
		"statement": "select", "table": "t", "columns": "a +",
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = render.CallUnary(context.Background(), request(t, map[string]any{
		"statement": "delete", "table": "t", "offset": 1,
	}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	execute := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+ExecuteProcedure)
	_, err = execute.CallUnary(context.Background(), request(t, map[string]any{"statement": "select", "table": "t"}))
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}
