package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/radar/internal/providers"
)

// Registry holds the tools offered to the model.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProviderDefs returns the tool schemas in provider format.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	var defs []providers.ToolDefinition
	for _, name := range r.List() {
		t, _ := r.Get(name)
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the named tool with raw JSON arguments. It never returns nil:
// unknown tools, malformed arguments and panics become error results.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string) (res *Result) {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	args := map[string]interface{}{}
	if s := strings.TrimSpace(argsJSON); s != "" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return ErrorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err)).WithError(err)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("tool panic", "tool", name, "panic", p)
			res = ErrorResult(fmt.Sprintf("tool %s failed unexpectedly", name)).WithError(fmt.Errorf("panic: %v", p))
		}
	}()

	res = t.Execute(ctx, args)
	if res == nil {
		res = ErrorResult(fmt.Sprintf("tool %s returned no result", name))
	}
	return res
}
