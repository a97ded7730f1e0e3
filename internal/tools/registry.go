package tools

import (
	"context"
	"encoding/json"
	"sync"
)

// Result is the JSON object returned by a tool. Every result carries
// "status" and "message"; the remaining keys depend on the tool.
type Result map[string]any

// HandlerFunc executes a tool against its raw JSON parameters.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (Result, error)

// Property describes one tool parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// Schema is the JSON-schema-like parameter description published by /mcp/tools.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Tool is a named operation exposed by the bridge.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  Schema      `json:"parameters"`
	Handler     HandlerFunc `json:"-"`
}

// Registry holds tools in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Parameters.Type == "" {
		t.Parameters.Type = "object"
	}
	if t.Parameters.Properties == nil {
		t.Parameters.Properties = map[string]Property{}
	}
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}
