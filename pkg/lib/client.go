package lib

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/pkg/lib/log"
	"github.com/slok/sessionbox/internal/service"
	"github.com/slok/sessionbox/internal/transport/websocket"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} connects to the default local server.
type Config struct {
	// Address is the server address (host:port) or a full ws:// URL.
	// Default: 127.0.0.1:8765.
	Address string

	// DialTimeout is the max time to establish the connection.
	// Default: 10s.
	DialTimeout time.Duration

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Address == "" {
		c.Address = conventions.DefaultListenAddress
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for using sessions programmatically.
//
// Create a Client with [New] and release its connection with [Client.Close].
// A Client is safe for concurrent use, calls are multiplexed on one connection.
type Client struct {
	conn   *websocket.Client
	logger log.Logger
}

// New connects to a sessionbox server.
//
// The caller must call [Client.Close] when done.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	u, err := endpointURL(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	conn, err := websocket.Dial(dialCtx, websocket.ClientConfig{URL: u, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn, logger: cfg.Logger}, nil
}

// Close closes the connection with the server. Sessions are not destroyed.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CreateSession creates a new session.
func (c *Client) CreateSession(ctx context.Context, opts CreateSessionOpts) (*Session, error) {
	var created service.CreateSessionResponse
	err := c.conn.Call(ctx, service.OpCreateSession, service.CreateSessionRequest{TimeoutMS: opts.Timeout.Milliseconds()}, &created)
	if err != nil {
		return nil, mapError(err)
	}

	return c.GetSession(ctx, created.SessionID)
}

// GetSession returns a session.
//
// Returns [ErrNotFound] if the session does not exist or has been destroyed.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var res service.GetSessionResponse
	if err := c.conn.Call(ctx, service.OpGetSession, service.GetSessionRequest{SessionID: id}, &res); err != nil {
		return nil, mapError(err)
	}

	s := fromSessionInfo(res.Session)
	return &s, nil
}

// ListSessions lists the live sessions.
func (c *Client) ListSessions(ctx context.Context, opts *ListSessionsOpts) ([]Session, error) {
	req := service.ListSessionsRequest{}
	if opts != nil {
		req.ExpiringWithinMS = opts.ExpiringWithin.Milliseconds()
	}

	var res service.ListSessionsResponse
	if err := c.conn.Call(ctx, service.OpListSessions, req, &res); err != nil {
		return nil, mapError(err)
	}

	sessions := make([]Session, 0, len(res.Sessions))
	for _, s := range res.Sessions {
		sessions = append(sessions, fromSessionInfo(s))
	}
	return sessions, nil
}

// RunCommand runs a shell command line in a session. Arguments are appended to the
// line quoted, so they are not interpreted by the shell.
//
// Returns [ErrNotFound] if the session does not exist, or a [*LaunchError] if the
// command could not be started.
func (c *Client) RunCommand(ctx context.Context, id, command string, args []string, opts *RunCommandOpts) (*CommandResult, error) {
	req := service.RunCommandRequest{SessionID: id, Command: command, Args: args}
	if opts != nil {
		req.Cwd = opts.WorkingDir
	}

	return c.callCommand(ctx, service.OpRunCommand, req)
}

// InstallPip installs a python package in the session package directory.
func (c *Client) InstallPip(ctx context.Context, id, pkg string) (*CommandResult, error) {
	return c.callCommand(ctx, service.OpInstallPip, service.InstallPipRequest{SessionID: id, Package: pkg})
}

// InstallNpm installs a node package in the session directory.
func (c *Client) InstallNpm(ctx context.Context, id, pkg string) (*CommandResult, error) {
	return c.callCommand(ctx, service.OpInstallNpm, service.InstallNpmRequest{SessionID: id, Package: pkg})
}

// DestroySession destroys a session, its running commands are killed and its
// directory removed. Returns false if there was nothing to destroy.
func (c *Client) DestroySession(ctx context.Context, id string) (bool, error) {
	var res service.DestroySessionResponse
	if err := c.conn.Call(ctx, service.OpDestroySession, service.DestroySessionRequest{SessionID: id}, &res); err != nil {
		return false, mapError(err)
	}
	return res.Destroyed, nil
}

func (c *Client) callCommand(ctx context.Context, op string, req any) (*CommandResult, error) {
	var res service.CommandResponse
	if err := c.conn.Call(ctx, op, req, &res); err != nil {
		return nil, mapError(err)
	}
	return fromCommandResult(res), nil
}

func endpointURL(address string) (string, error) {
	u, err := url.Parse(address)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "ws://" + address + websocket.WSPath, nil
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = websocket.WSPath
	}

	return u.String(), nil
}
