// Package mcpserver exposes ticket generation and cost estimation as Model
// Context Protocol tools, over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/ticketvox/internal/session"
	"github.com/MrWong99/ticketvox/internal/ticket"
)

const instructions = `ticketvox turns a recorded or typed team conversation into development
tickets and prices them with a per-role hourly rate table. Call list_roles to
see the rates, generate_tickets with a transcript to get tickets and a cost
summary, or estimate_cost to price tickets you already have.`

// Estimator is what the tools need from the workflow. *session.Controller
// implements it.
type Estimator interface {
	Estimate(ctx context.Context, transcript string) (session.Preview, error)
	Price(tickets []ticket.Ticket, invalid int) session.Preview
	Roles() []ticket.Role
}

// Option configures the server.
type Option func(*options)

type options struct {
	version string
	logger  *slog.Logger
}

// WithVersion sets the advertised implementation version. Default: "dev".
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New returns an MCP server with the ticket tools registered.
func New(est Estimator, opts ...Option) *mcp.Server {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	s := mcp.NewServer(&mcp.Implementation{Name: "ticketvox", Version: o.version}, &mcp.ServerOptions{
		Instructions: instructions,
		Logger:       o.logger,
	})
	s.AddReceivingMiddleware(logging(o.logger))

	t := &tools{est: est}
	mcp.AddTool(s, &mcp.Tool{
		Name:        "generate_tickets",
		Description: "Generate development tickets from a conversation transcript and price them per role.",
	}, t.generate)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "estimate_cost",
		Description: "Aggregate work hours per role for the given tickets and compute the total cost.",
	}, t.estimate)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_roles",
		Description: "List the configured roles and their hourly rates.",
	}, t.listRoles)
	return s
}

// Run serves s over stdin/stdout until ctx is cancelled or the client
// disconnects.
func Run(ctx context.Context, s *mcp.Server) error {
	err := s.Run(ctx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handler serves s over streamable HTTP.
func Handler(s *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, nil)
}

func logging(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}
			start := time.Now()
			res, err := next(ctx, method, req)
			attrs := []any{"method", method, "duration_ms", time.Since(start).Milliseconds()}
			if err != nil {
				logger.WarnContext(ctx, "mcp request failed", append(attrs, "err", err)...)
				return res, err
			}
			logger.DebugContext(ctx, "mcp request", attrs...)
			return res, nil
		}
	}
}

// idString renders uuid.Nil as "".
func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
