package server

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"github.com/atlekbai/querykit/internal/builder"
	"github.com/atlekbai/querykit/internal/executor"
)

// ErrorInterceptor turns plain handler errors into connect errors with a
// code matching their kind. Errors that already carry a code pass through.
func ErrorInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return nil, ToConnectError(err)
			}
			return resp, nil
		}
	}
}

// ToConnectError wraps err with the connect code for its kind.
func ToConnectError(err error) error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return err
	}
	return connect.NewError(CodeOf(err), err)
}

// CodeOf reports the connect code for a builder or executor error.
func CodeOf(err error) connect.Code {
	var ce *connect.Error
	switch {
	case errors.As(err, &ce):
		return ce.Code()
	case builder.IsSyntax(err), builder.IsValidation(err):
		return connect.CodeInvalidArgument
	case builder.IsState(err):
		return connect.CodeFailedPrecondition
	case errors.Is(err, executor.ErrUnavailable):
		return connect.CodeUnavailable
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	}
	return connect.CodeInternal
}

// LoggingInterceptor logs each procedure call with its outcome.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			l := zerolog.Ctx(ctx)
			ev := l.Debug()
			if err != nil {
				ev = l.Warn().Str("code", CodeOf(err).String()).Err(err)
			}
			ev.Str("procedure", req.Spec().Procedure).
				Dur("duration", time.Since(start)).
				Msg("rpc")
			return resp, err
		}
	}
}
