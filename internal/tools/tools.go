// Package tools registers the database tools on the protocol registry.
// Each tool is a pure function of validated parameters and the database
// handle; driver failures are folded into the success/error payload, never
// surfaced as protocol errors.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opaline/dbbridge/internal/audit"
	"github.com/opaline/dbbridge/internal/db"
	"github.com/opaline/dbbridge/internal/mcp"
)

// RegisterAll adds the three database tools to the registry.
func RegisterAll(reg *mcp.Registry, database *db.DB, auditLog audit.Logger) error {
	for _, t := range []*mcp.Tool{
		queryDatabaseTool(database),
		insertRecordTool(database),
		getRecordsTool(database),
	} {
		if auditLog != nil {
			t.Handler = withAudit(auditLog, t.Name, t.Handler)
		}
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// --- queryDatabase ---

func queryDatabaseTool(database *db.DB) *mcp.Tool {
	return &mcp.Tool{
		Name:        "queryDatabase",
		Description: "Execute a SQL statement with optional positional parameters and return the resulting rows",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":  map[string]string{"type": "string", "description": "SQL statement to execute"},
				"params": map[string]any{"type": "array", "description": "Positional parameter values"},
			},
			"required": []any{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query := stringArg(args, "query")
			params, _ := args["params"].([]any)
			return database.ExecuteQuery(ctx, query, params), nil
		},
	}
}

// --- insertRecord ---

func insertRecordTool(database *db.DB) *mcp.Tool {
	return &mcp.Tool{
		Name:        "insertRecord",
		Description: "Insert a record into a table and return the inserted row including generated columns",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"table": map[string]string{"type": "string", "description": "Target table name"},
				"data":  map[string]any{"type": "object", "description": "Column name to value mapping"},
			},
			"required": []any{"table", "data"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			table := stringArg(args, "table")
			data, _ := args["data"].(map[string]any)
			return database.InsertRecord(ctx, table, data), nil
		},
	}
}

// --- getRecords ---

func getRecordsTool(database *db.DB) *mcp.Tool {
	return &mcp.Tool{
		Name:        "getRecords",
		Description: "Select records from a table with equality filtering and an optional row cap",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"table": map[string]string{"type": "string", "description": "Table to read"},
				"where": map[string]any{"type": "object", "description": "Equality filters, ANDed together"},
				"limit": map[string]any{"type": "integer", "description": "Maximum rows to return"},
			},
			"required": []any{"table"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			table := stringArg(args, "table")
			where, _ := args["where"].(map[string]any)
			var limit *int
			if _, present := args["limit"]; present {
				n := intArg(args, "limit", 0)
				limit = &n
			}
			return database.GetRecords(ctx, table, where, limit), nil
		},
	}
}

// withAudit wraps a handler: measures duration, captures parameters and the
// payload's success flag, and logs asynchronously.
func withAudit(logger audit.Logger, action string, next mcp.ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		start := time.Now()
		payload, err := next(ctx, args)

		entry := &audit.Entry{
			Action:     action,
			SessionID:  mcp.SessionIDFromContext(ctx),
			RequestID:  mcp.RequestIDFromContext(ctx),
			DurationMs: time.Since(start).Milliseconds(),
		}
		if params, e := json.Marshal(args); e == nil {
			entry.Parameters = string(params)
		}
		switch {
		case err != nil:
			entry.Error = err.Error()
		default:
			if res, ok := payload.(db.Result); ok && !res.Success {
				entry.Error = res.Error
			}
		}
		logger.LogAsync(entry)
		return payload, err
	}
}

// --- helpers ---

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return def
	}
}
