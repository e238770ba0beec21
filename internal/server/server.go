package server

import (
	"net/http"

	"connectrpc.com/connect"
)

// ConnectService is implemented by each service to register its connect handler.
type ConnectService interface {
	RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler)
}

// Interceptors returns the interceptor chain every service is mounted with.
// Logging is outermost so it sees the mapped error codes.
func Interceptors() []connect.Interceptor {
	return []connect.Interceptor{
		LoggingInterceptor(),
		ErrorInterceptor(),
	}
}

// Mux mounts services on a new ServeMux.
func Mux(services ...ConnectService) *http.ServeMux {
	mux := http.NewServeMux()
	interceptors := Interceptors()
	for _, svc := range services {
		path, handler := svc.RegisterHandler(interceptors...)
		mux.Handle(path, handler)
	}
	return mux
}
