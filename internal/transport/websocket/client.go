package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slok/sessionbox/internal/log"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("client closed")

// ClientConfig is the configuration of the websocket client.
type ClientConfig struct {
	// URL is the websocket endpoint, e.g. ws://127.0.0.1:8765/ws.
	URL    string
	Header http.Header
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "transport.WebsocketClient"})

	return nil
}

// Client calls operations on a websocket server. It's safe for concurrent use.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan Response
	err     error

	done   chan struct{}
	logger log.Logger
}

// Dial connects to a websocket server.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", cfg.URL, err)
	}

	c := &Client{
		conn:    conn,
		pending: map[string]chan Response{},
		done:    make(chan struct{}),
		logger:  cfg.Logger,
	}
	go c.readLoop()

	return c, nil
}

// Call calls an operation and decodes the result into out (if not nil). Operation
// errors are returned as *service.Error.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("could not marshal params: %w", err)
		}
		rawParams = b
	}

	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(Request{ID: id, Method: method, Params: rawParams}); err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("could not unmarshal result: %w", err)
			}
		}
		return nil
	case <-c.done:
		return c.closeErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection, pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.fail(ErrClosed)
	err := c.conn.Close()
	<-c.done

	return err
}

func (c *Client) write(req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(req)
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				c.logger.Warningf("Ignoring malformed response: %s", err)
				continue
			}
			c.fail(fmt.Errorf("connection lost: %w", err))
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debugf("Ignoring response for unknown request %q", resp.ID)
			continue
		}
		ch <- resp
	}
}

// fail marks the client as unusable, the first error wins.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}
