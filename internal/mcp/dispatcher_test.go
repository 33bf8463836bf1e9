package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatcher(t *testing.T, tools ...*Tool) *Dispatcher {
	t.Helper()
	reg := NewRegistry()
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	return NewDispatcher("dbbridge-test", "0.0.0", reg)
}

func request(method string, params any) *Request {
	var raw json.RawMessage
	if params != nil {
		raw, _ = json.Marshal(params)
	}
	return &Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: raw}
}

func TestDispatchInitialize(t *testing.T) {
	d := testDispatcher(t)
	resp := d.Dispatch(context.Background(), request("initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"clientInfo":      map[string]string{"name": "test-client", "version": "1.0"},
	}))

	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(initializeResult)
	require.True(t, ok)
	assert.Equal(t, "2025-03-26", result.ProtocolVersion)
	assert.Equal(t, "dbbridge-test", result.ServerInfo.Name)
}

func TestDispatchToolsList(t *testing.T) {
	d := testDispatcher(t, &Tool{Name: "a", Description: "first", InputSchema: map[string]any{}, Handler: noopHandler})
	resp := d.Dispatch(context.Background(), request("tools/list", nil))

	require.Nil(t, resp.Error)
	result := resp.Result.(toolsListResult)
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "a", result.Tools[0].Name)
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := testDispatcher(t)
	resp := d.Dispatch(context.Background(), request("resources/list", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestDispatchInvalidVersion(t *testing.T) {
	d := testDispatcher(t)
	resp := d.Dispatch(context.Background(), &Request{JSONRPC: "1.0", Method: "ping"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestDispatchNotificationHasNoResponse(t *testing.T) {
	d := testDispatcher(t)
	resp := d.Dispatch(context.Background(), request("notifications/initialized", nil))
	assert.Nil(t, resp)
}

func TestDispatchUnknownToolNeverReachesHandler(t *testing.T) {
	called := false
	d := testDispatcher(t, &Tool{
		Name:        "real",
		InputSchema: map[string]any{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			called = true
			return nil, nil
		},
	})

	resp := d.Dispatch(context.Background(), request("tools/call", map[string]any{
		"name": "bogus", "arguments": map[string]any{},
	}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unknown tool")
	assert.False(t, called)
}

func TestDispatchValidationBeforeHandler(t *testing.T) {
	called := false
	d := testDispatcher(t, &Tool{
		Name: "strict",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"q": map[string]any{"type": "string"}},
			"required":   []any{"q"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			called = true
			return nil, nil
		},
	})

	resp := d.Dispatch(context.Background(), request("tools/call", map[string]any{
		"name": "strict", "arguments": map[string]any{"q": 42},
	}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	assert.False(t, called, "handler must not run on validation failure")
}

func TestDispatchToolResultWrapping(t *testing.T) {
	d := testDispatcher(t, &Tool{
		Name:        "echo",
		InputSchema: map[string]any{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"success": true, "data": []any{map[string]any{"one": 1}}}, nil
		},
	})

	resp := d.Dispatch(context.Background(), request("tools/call", map[string]any{
		"name": "echo", "arguments": map[string]any{},
	}))
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(*CallToolResult)
	require.True(t, ok)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)

	var payload struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
	assert.True(t, payload.Success)
	require.Len(t, payload.Data, 1)
	assert.EqualValues(t, 1, payload.Data[0]["one"])
}

func TestDispatchHandlerPanicBecomesInternalError(t *testing.T) {
	d := testDispatcher(t, &Tool{
		Name:        "boom",
		InputSchema: map[string]any{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("kaboom")
		},
	})

	resp := d.Dispatch(context.Background(), request("tools/call", map[string]any{
		"name": "boom", "arguments": map[string]any{},
	}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
}

func TestDispatchPing(t *testing.T) {
	d := testDispatcher(t)
	resp := d.Dispatch(context.Background(), request("ping", nil))
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
}
