package websocket

import (
	"encoding/json"

	"github.com/slok/sessionbox/internal/service"
)

// Request is a call message sent by a client.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the reply to a request with the same ID. Only one of Result or
// Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *service.Error  `json:"error,omitempty"`
}
