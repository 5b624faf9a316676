// Package websocket exposes the session operations over websocket connections.
// Every text frame is a JSON request, replies may arrive out of order and are
// correlated by the request ID.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// WSPath is the websocket endpoint path.
	WSPath = "/ws"
	// HealthPath is the health check endpoint path.
	HealthPath = "/healthz"
)

// ServerConfig is the configuration of the websocket server.
type ServerConfig struct {
	Operations service.OperationTable
	// MaxMessageSize is the max size of a request frame, defaults to 1MiB.
	MaxMessageSize int64
	// CheckOrigin validates the upgrade request origin, by default all origins are allowed.
	CheckOrigin func(r *http.Request) bool
	Logger      log.Logger
}

func (c *ServerConfig) defaults() error {
	if len(c.Operations) == 0 {
		return fmt.Errorf("operations are required")
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1 << 20
	}

	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "transport.Websocket"})

	return nil
}

// Server serves the session operations over websockets.
type Server struct {
	ops            service.OperationTable
	maxMessageSize int64
	upgrader       websocket.Upgrader
	router         *httprouter.Router
	logger         log.Logger
}

// NewServer returns a new websocket server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		ops:            cfg.Operations,
		maxMessageSize: cfg.MaxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		router: httprouter.New(),
		logger: cfg.Logger,
	}

	s.router.GET(WSPath, s.handleWebSocket)
	s.router.GET(HealthPath, s.handleHealth)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warningf("Could not upgrade connection: %s", err)
		return
	}

	logger := s.logger.WithValues(log.Kv{"remote": conn.RemoteAddr().String()})
	logger.Debugf("Client connected")

	c := &serverConn{
		conn:   conn,
		ops:    s.ops,
		send:   make(chan Response, 64),
		logger: logger,
	}
	c.serve(r.Context(), s.maxMessageSize)

	logger.Debugf("Client disconnected")
}

type serverConn struct {
	conn   *websocket.Conn
	ops    service.OperationTable
	send   chan Response
	logger log.Logger
}

// serve blocks until the connection is closed. The in-flight requests of the
// connection are cancelled when it closes.
func (c *serverConn) serve(ctx context.Context, maxMessageSize int64) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(cancel)
	}()

	var handlers sync.WaitGroup
	c.readPump(ctx, maxMessageSize, &handlers)

	cancel()
	handlers.Wait()
	close(c.send)
	<-writerDone
	_ = c.conn.Close()
}

func (c *serverConn) readPump(ctx context.Context, maxMessageSize int64, handlers *sync.WaitGroup) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warningf("Websocket read error: %s", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(ctx, Response{Error: service.NewError(fmt.Errorf("malformed request: %s: %w", err, model.ErrNotValid))})
			continue
		}

		handlers.Add(1)
		go func() {
			defer handlers.Done()
			c.reply(ctx, c.handle(ctx, req))
		}()
	}
}

func (c *serverConn) handle(ctx context.Context, req Request) Response {
	logger := c.logger.WithValues(log.Kv{"method": req.Method, "request-id": req.ID})
	ctx = logger.SetValuesOnCtx(ctx, log.Kv{"request-id": req.ID})

	start := time.Now()
	result, err := c.ops.Call(ctx, req.Method, req.Params)
	if err != nil {
		svcErr := service.NewError(err)
		if svcErr.Code == service.ErrorCodeInternal {
			logger.Errorf("Operation failed: %s", err)
		} else {
			logger.Debugf("Operation failed: %s", err)
		}
		return Response{ID: req.ID, Error: svcErr}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		logger.Errorf("Could not marshal result: %s", err)
		return Response{ID: req.ID, Error: service.NewError(fmt.Errorf("could not marshal result: %w", err))}
	}

	logger.Debugf("Operation handled in %s", time.Since(start))
	return Response{ID: req.ID, Result: raw}
}

func (c *serverConn) reply(ctx context.Context, resp Response) {
	select {
	case c.send <- resp:
	case <-ctx.Done():
	}
}

// writePump is the only writer of the connection.
func (c *serverConn) writePump(closeConn func()) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case resp, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(resp); err != nil {
				c.logger.Warningf("Could not write response: %s", err)
				closeConn()
				_ = c.conn.Close()
				c.drain()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeConn()
				_ = c.conn.Close()
				c.drain()
				return
			}
		}
	}
}

func (c *serverConn) drain() {
	for range c.send {
	}
}
