package server

import (
	"context"
	"net/http"
	"sync"
)

// Server binds the RPC bridge to an HTTP listener.
type Server struct {
	addr   string
	rpc    *RPCServer
	server *http.Server
	mu     sync.Mutex
}

// New builds an HTTP server that serves rpc at the root path, behind the
// bearer-token check.
func New(addr string, rpc *RPCServer) *Server {
	return &Server{addr: addr, rpc: rpc}
}

// Handler returns the authenticated HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return requireToken(s.rpc.secret, s.rpc.bridge)
}

// Start serves until Shutdown. A closed-server error is swallowed, anything
// else is returned.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	s.mu.Unlock()

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil // Expected during shutdown
	}
	return err
}

// Shutdown gracefully stops the HTTP server and closes the RPC bridge.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.rpc.Close()
	return err
}
