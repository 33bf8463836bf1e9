// CLAUDE:SUMMARY Static tool registry — name → handler + raw JSON schema, with required-field and primitive type validation before dispatch
package mcp

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ToolHandler executes a tool with validated arguments. The returned value is
// serialized into the uniform text content wrapper by the dispatcher. An
// error return becomes a JSON-RPC error, so handlers that want execution
// failures reported in-band must encode them in the payload instead.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// Tool is a named, schema-described server-side operation. Immutable after
// registration.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     ToolHandler
}

// Registry holds the static tool set. Registration happens once at startup;
// the read lock exists only because lookups and registration share the map
// during tests.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Re-registering a name is a programming error.
func (r *Registry) Register(t *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools in name order.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateArgs checks args against the tool's declared input schema: every
// required field must be present, and declared primitive types must match.
// Validation runs before the tool body executes.
func ValidateArgs(schema map[string]any, args map[string]any) error {
	if required, ok := schema["required"].([]any); ok {
		for _, rf := range required {
			name, _ := rf.(string)
			if name == "" {
				continue
			}
			if _, exists := args[name]; !exists {
				return fmt.Errorf("missing required parameter: %s", name)
			}
		}
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	for name, raw := range args {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		declared, _ := prop["type"].(string)
		if declared == "" {
			continue
		}
		if err := checkType(declared, raw); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
	}
	return nil
}

func checkType(declared string, v any) error {
	if v == nil {
		return nil
	}
	switch declared {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case "integer":
		switch n := v.(type) {
		case int, int64:
		case float64:
			if n != math.Trunc(n) {
				return fmt.Errorf("expected integer, got %v", n)
			}
		default:
			return fmt.Errorf("expected integer, got %T", v)
		}
	case "number":
		switch v.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	case "object":
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", v)
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("expected array, got %T", v)
		}
	}
	return nil
}
