package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/slok/sessionbox/internal/model"
)

// Operation names.
const (
	OpCreateSession  = "create_session"
	OpRunCommand     = "run_command"
	OpInstallPip     = "install_pip"
	OpInstallNpm     = "install_npm"
	OpDestroySession = "destroy_session"
	OpListSessions   = "list_sessions"
	OpGetSession     = "get_session"
)

// Handler handles an operation call with JSON encoded params.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// OperationTable maps operation names to their handlers.
type OperationTable map[string]Handler

// Operations returns the operation table of a service. This is the single place
// where operation names are bound to the service methods.
func Operations(svc Service) OperationTable {
	return OperationTable{
		OpCreateSession:  handler(svc.CreateSession),
		OpRunCommand:     handler(svc.RunCommand),
		OpInstallPip:     handler(svc.InstallPip),
		OpInstallNpm:     handler(svc.InstallNpm),
		OpDestroySession: handler(svc.DestroySession),
		OpListSessions:   handler(svc.ListSessions),
		OpGetSession:     handler(svc.GetSession),
	}
}

// Names returns the sorted operation names.
func (t OperationTable) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call calls an operation by name.
func (t OperationTable) Call(ctx context.Context, name string, params json.RawMessage) (any, error) {
	h, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q, expected one of %s: %w", name, strings.Join(t.Names(), ", "), model.ErrNotValid)
	}
	return h(ctx, params)
}

func handler[Req, Resp any](fn func(context.Context, Req) (Resp, error)) Handler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var req Req
		if len(bytes.TrimSpace(params)) > 0 && !bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
			dec := json.NewDecoder(bytes.NewReader(params))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				return nil, fmt.Errorf("invalid params: %s: %w", err, model.ErrNotValid)
			}
		}

		return fn(ctx, req)
	}
}
