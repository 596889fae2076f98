package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonwraymond/marketcache/observe"
)

// Registry holds tools by name.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Call wraps unknown names in ErrToolNotFound and returns handler
//   errors unchanged.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registered
	mw    *observe.Middleware
}

type registered struct {
	tool Tool
	exec observe.ExecuteFunc
}

// NewRegistry creates an empty registry instrumented with tel.
func NewRegistry(tel observe.Telemetry) *Registry {
	return &Registry{
		tools: make(map[string]registered),
		mw:    observe.NewMiddleware(tel),
	}
}

// Register adds t. Names must be unique and handlers non-nil.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("%w: tool needs a name and a handler", ErrInvalidArgs)
	}

	handler := t.Handler
	exec := r.mw.Wrap(func(ctx context.Context, _ observe.ToolMeta, args map[string]any) (any, error) {
		return handler(ctx, Args(args))
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = registered{tool: t, exec: exec}
	return nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, reg.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	return reg.tool, ok
}

// Call runs the named tool with args.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (*Output, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	meta := observe.ToolMeta{Name: reg.tool.Name, Resource: reg.tool.Resource, Category: reg.tool.Category}
	res, err := reg.exec(ctx, meta, args)
	if err != nil {
		return nil, err
	}
	out, _ := res.(*Output)
	return out, nil
}
