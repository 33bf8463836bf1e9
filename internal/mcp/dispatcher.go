// CLAUDE:SUMMARY Protocol dispatcher — resolves JSON-RPC method names to built-ins or registered tools, validates arguments, wraps results
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Dispatcher translates a parsed envelope's method name into an action.
// It owns no session state; the transport layer routes envelopes to it.
type Dispatcher struct {
	name     string
	version  string
	registry *Registry
}

func NewDispatcher(name, version string, registry *Registry) *Dispatcher {
	return &Dispatcher{name: name, version: version, registry: registry}
}

// Dispatch handles a single envelope and returns the response, or nil when
// the envelope is a notification. Panics in handlers are converted into an
// internal-error envelope; they never escape to the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panic", "method", req.Method, "panic", r)
			resp = newError(req.ID, CodeInternalError, "internal error")
		}
	}()

	if req.JSONRPC != "2.0" {
		return newError(req.ID, CodeInvalidRequest, "invalid JSON-RPC version")
	}

	switch req.Method {
	case "initialize":
		return d.handleInitialize(req)
	case "notifications/initialized":
		// Notification, no response.
		return nil
	case "ping":
		return newResult(req.ID, struct{}{})
	case "tools/list":
		return newResult(req.ID, toolsListResult{Tools: d.registry.List()})
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	default:
		return newError(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (d *Dispatcher) handleInitialize(req *Request) *Response {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, CodeInvalidParams, "invalid initialize params")
		}
	}
	version := params.ProtocolVersion
	if version == "" {
		version = ProtocolVersion
	}
	slog.Info("session initialized", "client", params.ClientInfo.Name, "protocol", version)
	return newResult(req.ID, initializeResult{
		ProtocolVersion: version,
		Capabilities:    serverCapabilities{Tools: map[string]any{}},
		ServerInfo:      implementation{Name: d.name, Version: d.version},
	})
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newError(req.ID, CodeInvalidParams, "invalid tools/call params")
	}

	tool, ok := d.registry.Get(params.Name)
	if !ok {
		return newError(req.ID, CodeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := ValidateArgs(tool.InputSchema, args); err != nil {
		return newError(req.ID, CodeInvalidParams, err.Error())
	}

	payload, err := tool.Handler(withRequestID(ctx, string(req.ID)), args)
	if err != nil {
		slog.Error("tool failed", "tool", params.Name, "error", err)
		return newError(req.ID, CodeInternalError, fmt.Sprintf("%s: %v", params.Name, err))
	}

	text, err := json.Marshal(payload)
	if err != nil {
		return newError(req.ID, CodeInternalError, "serializing tool result")
	}
	return newResult(req.ID, NewToolResultText(string(text)))
}
