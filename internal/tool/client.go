package tool

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
)

// Version is reported to tool servers as the client version.
var Version = "dev"

// terminateGrace is how long a server may take to exit before it is killed.
const terminateGrace = 5 * time.Second

// DialFunc opens a session to the named server.
type DialFunc func(ctx context.Context, name string, srv config.ToolServer) (*mcp.ClientSession, error)

// Client calls tools on lazily started servers. It is safe for concurrent use.
type Client struct {
	servers map[string]config.ToolServer
	vision  config.ToolRef
	ocr     config.ToolRef
	limiter *rate.Limiter
	logger  *slog.Logger
	dial    DialFunc

	mu       sync.Mutex
	sessions map[string]*mcp.ClientSession
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDial replaces how sessions are opened.
func WithDial(fn DialFunc) Option {
	return func(c *Client) {
		c.dial = fn
	}
}

// NewClient returns a Client for the configured servers. No process is
// started until the first call.
func NewClient(cfg config.ToolsConfig, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.CallsPerSecond > 0 {
		limit = rate.Limit(cfg.CallsPerSecond)
	}
	c := &Client{
		servers:  cfg.Servers,
		vision:   cfg.Vision,
		ocr:      cfg.OCR,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   slog.Default(),
		sessions: map[string]*mcp.ClientSession{},
	}
	c.dial = c.dialCommand
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// dialCommand launches srv as a child process speaking MCP over stdio.
func (c *Client) dialCommand(ctx context.Context, name string, srv config.ToolServer) (*mcp.ClientSession, error) {
	cmd := exec.Command(srv.Command, srv.Args...) //nolint:gosec // command comes from the user's configuration
	cmd.Env = srv.Environ()
	c.logger.Debug("starting tool server", "server", name, "command", srv.Command, "env", dmlog.MaskEnv(cmd.Env))

	client := mcp.NewClient(&mcp.Implementation{Name: config.AppName, Version: Version}, nil)
	return client.Connect(ctx, &mcp.CommandTransport{Command: cmd, TerminateDuration: terminateGrace}, nil)
}

// session returns the open session of server, starting it if needed.
func (c *Client) session(ctx context.Context, server string) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[server]; ok {
		return s, nil
	}
	srv, ok := c.servers[server]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, server)
	}
	s, err := c.dial(ctx, server, srv)
	if err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", ErrToolFailed, server, err)
	}
	c.sessions[server] = s
	c.logger.Debug("tool server started", "server", server)
	return s, nil
}

// Call invokes tool on server and returns the concatenated text content.
func (c *Client) Call(ctx context.Context, ref config.ToolRef, args map[string]any) (string, error) {
	s, err := c.session(ctx, ref.Server)
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	res, err := s.CallTool(ctx, &mcp.CallToolParams{Name: ref.Tool, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("%w: %s/%s: %w", ErrToolFailed, ref.Server, ref.Tool, err)
	}

	text := textOf(res)
	if res.IsError {
		return "", fmt.Errorf("%w: %s/%s: %s", ErrToolFailed, ref.Server, ref.Tool, text)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrEmptyResult, ref.Server, ref.Tool)
	}
	return text, nil
}

func textOf(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if t, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Started returns the names of running servers.
func (c *Client) Started() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.sessions))
	for name := range c.sessions {
		names = append(names, name)
	}
	return names
}

// Close shuts every started server down in parallel.
// Servers that ignore the close are killed after a grace period.
func (c *Client) Close() error {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = map[string]*mcp.ClientSession{}
	c.mu.Unlock()

	var g errgroup.Group
	for name, s := range sessions {
		g.Go(func() error {
			if err := s.Close(); err != nil {
				return fmt.Errorf("stop %s: %w", name, err)
			}
			c.logger.Debug("tool server stopped", "server", name)
			return nil
		})
	}
	return g.Wait()
}
