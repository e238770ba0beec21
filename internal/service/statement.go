package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/atlekbai/querykit/internal/executor"
	"github.com/atlekbai/querykit/internal/schema"
	"github.com/atlekbai/querykit/internal/sqlfmt"
)

const (
	// StatementServiceName is the fully-qualified name of the service.
	StatementServiceName = "querykit.v1.StatementService"

	RenderProcedure      = "/" + StatementServiceName + "/Render"
	RenderBatchProcedure = "/" + StatementServiceName + "/RenderBatch"
	ExecuteProcedure     = "/" + StatementServiceName + "/Execute"
	FormatProcedure      = "/" + StatementServiceName + "/Format"
)

// maxBatch bounds the number of statements rendered concurrently.
const maxBatch = 8

type StatementService struct {
	registry *schema.Registry
	exec     executor.Executor
	timeZone string
}

// NewStatementService returns a service building models from registry and
// running statements on exec. A nil exec makes Execute fail with
// Unavailable.
func NewStatementService(registry *schema.Registry, exec executor.Executor, timeZone string) *StatementService {
	if registry == nil {
		registry = schema.NewRegistry()
	}
	if timeZone == "" {
		timeZone = sqlfmt.LocalTimeZone
	}
	return &StatementService{registry: registry, exec: exec, timeZone: timeZone}
}

func (s *StatementService) RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler) {
	opts := connect.WithInterceptors(interceptors...)
	mux := http.NewServeMux()
	mux.Handle(RenderProcedure, connect.NewUnaryHandler(RenderProcedure, s.Render, opts))
	mux.Handle(RenderBatchProcedure, connect.NewUnaryHandler(RenderBatchProcedure, s.RenderBatch, opts))
	mux.Handle(ExecuteProcedure, connect.NewUnaryHandler(ExecuteProcedure, s.Execute, opts))
	mux.Handle(FormatProcedure, connect.NewUnaryHandler(FormatProcedure, s.Format, opts))
	return "/" + StatementServiceName + "/", mux
}

// Render renders one statement description to SQL.
func (s *StatementService) Render(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	sql, err := s.render(req.Msg.AsMap())
	if err != nil {
		return nil, toConnect(err)
	}
	return newResponse(map[string]any{"sql": sql})
}

// RenderBatch renders the "statements" list concurrently, keeping order.
// The first failure fails the batch.
func (s *StatementService) RenderBatch(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	list, err := getList(req.Msg.AsMap(), "statements")
	if err != nil {
		return nil, toConnect(err)
	}

	out := make([]any, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatch)
	for i, item := range list {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			spec, ok := item.(map[string]any)
			if !ok {
				return invalidf("statements[%d] must be an object", i)
			}
			sql, err := s.render(spec)
			if err != nil {
				return fmt.Errorf("statements[%d]: %w", i, err)
			}
			out[i] = sql
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, toConnect(err)
	}
	return newResponse(map[string]any{"sql": out})
}

// Execute renders a statement and runs it with the request "params".
func (s *StatementService) Execute(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	msg := req.Msg.AsMap()
	stmt, err := s.decoder().decode(msg)
	if err != nil {
		return nil, toConnect(err)
	}
	params, err := getList(msg, "params")
	if err != nil {
		return nil, toConnect(err)
	}
	sql, err := stmt.Build()
	if err != nil {
		return nil, toConnect(err)
	}

	res, err := stmt.Call(ctx, params...)
	if err != nil {
		return nil, toConnect(err)
	}

	rows := make([]any, len(res.Rows))
	for i, row := range res.Rows {
		r := make(map[string]any, len(row))
		for k, v := range row {
			r[k] = toValue(v)
		}
		rows[i] = r
	}
	fields := make([]any, len(res.Fields))
	for i, f := range res.Fields {
		fields[i] = map[string]any{"name": f.Name, "type": f.Type}
	}
	return newResponse(map[string]any{
		"sql":          sql,
		"rows":         rows,
		"fields":       fields,
		"rowsAffected": res.RowsAffected,
		"lastInsertId": res.LastInsertID,
	})
}

// Format substitutes "values" into the placeholders of "sql".
func (s *StatementService) Format(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	msg := req.Msg.AsMap()
	sql, err := getString(msg, "sql")
	if err != nil {
		return nil, toConnect(err)
	}
	values, err := getList(msg, "values")
	if err != nil {
		return nil, toConnect(err)
	}
	stringify, err := getBool(msg, "stringifyObjects")
	if err != nil {
		return nil, toConnect(err)
	}
	tz, err := getString(msg, "timeZone")
	if err != nil {
		return nil, toConnect(err)
	}
	if tz == "" {
		tz = s.timeZone
	}
	return newResponse(map[string]any{"sql": sqlfmt.Format(sql, values, stringify, tz)})
}

func (s *StatementService) decoder() *decoder {
	return &decoder{registry: s.registry, exec: s.exec}
}

func (s *StatementService) render(spec map[string]any) (string, error) {
	stmt, err := s.decoder().decode(spec)
	if err != nil {
		return "", err
	}
	return stmt.Build()
}

func newResponse(m map[string]any) (*connect.Response[structpb.Struct], error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("marshal result: %w", err))
	}
	return connect.NewResponse(st), nil
}

// toConnect assigns codes to request errors. Builder and executor errors
// are coded by the server error interceptor.
func toConnect(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, schema.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	}
	return err
}

// toValue converts a scanned column value to a type structpb accepts.
func toValue(v any) any {
	switch val := v.(type) {
	case nil, bool, string, int64, float64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
