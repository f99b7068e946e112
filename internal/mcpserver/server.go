// Package mcpserver exposes the dispatch facade to agents over MCP, on
// stdio for local callers and on streamable HTTP for remote ones.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lydakis/ubridge/internal/authgate"
	"github.com/lydakis/ubridge/internal/dispatch"
	"github.com/lydakis/ubridge/internal/resolve"
)

// IdentityResolver maps a bearer credential to a caller name for dispatch
// attribution. Returning false leaves the caller anonymous.
type IdentityResolver func(credential string) (string, bool)

// Server is the agent-facing MCP surface.
type Server struct {
	mcp        *server.MCPServer
	dispatcher *dispatch.Dispatcher
	identity   IdentityResolver
}

// New builds the MCP server and registers the instance tools. A session's
// instance selection is dropped when the client session ends.
func New(d *dispatch.Dispatcher, version string) *Server {
	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		d.DropSession(resolve.SessionKey(session.SessionID()))
	})

	s := &Server{
		mcp:        server.NewMCPServer("ubridge", version, server.WithHooks(hooks)),
		dispatcher: d,
	}
	s.registerTools()
	return s
}

// SetIdentityResolver installs the credential-to-caller mapping used for
// attribution on the remote transport. Optional.
func (s *Server) SetIdentityResolver(resolver IdentityResolver) {
	s.identity = resolver
}

// ServeStdio serves MCP on stdin/stdout. The local transport is implicitly
// trusted and never passes through the auth gate.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler returns the remote transport handler: the streamable HTTP
// server wrapped in the auth gate, so both the POST request path and the
// persistent GET event stream are validated at handshake time.
func (s *Server) HTTPHandler(gate *authgate.Gate) http.Handler {
	httpServer := server.NewStreamableHTTPServer(s.mcp,
		server.WithHTTPContextFunc(s.attributeCaller),
	)
	return gate.Middleware(httpServer)
}

// attributeCaller stashes the resolved caller name in the request context
// before the MCP layer runs the tool handler.
func (s *Server) attributeCaller(ctx context.Context, r *http.Request) context.Context {
	if s.identity == nil {
		return ctx
	}
	credential := authgate.PresentedToken(r)
	if credential == "" {
		return ctx
	}
	if name, ok := s.identity(credential); ok {
		return dispatch.WithCredential(ctx, name)
	}
	return ctx
}
