package tools

import (
    "context"
    "fmt"

    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
)

// Tool is a named operation the model may invoke. Execute receives arguments
// that already passed Parameters validation; failures the model should react
// to are returned as the string result, err is reserved for infrastructure.
type Tool interface {
    Name() string
    Description() string
    Parameters() llm.Schema
    Execute(ctx context.Context, userID string, args map[string]any) (string, error)
}

// Registry is the fixed, ordered tool vocabulary. It is built once and only read afterwards.
type Registry struct {
    order []string
    tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
    r := &Registry{tools: map[string]Tool{}}
    for _, t := range tools { r.Register(t) }
    return r
}

func (r *Registry) Register(t Tool) {
    if _, dup := r.tools[t.Name()]; dup {
        panic(fmt.Sprintf("tools: duplicate tool %q", t.Name()))
    }
    r.order = append(r.order, t.Name())
    r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
    t, ok := r.tools[name]
    return t, ok
}

// Specs returns the model-facing declarations in registration order.
func (r *Registry) Specs() []llm.ToolSpec {
    out := make([]llm.ToolSpec, 0, len(r.order))
    for _, name := range r.order {
        t := r.tools[name]
        out = append(out, llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
    }
    return out
}

// NewTodoRegistry declares the fixed task vocabulary over s.
func NewTodoRegistry(s store.TaskStore) *Registry {
    return NewRegistry(
        &AddTodoTool{Tasks: s},
        &ListTodosTool{Tasks: s},
        &UpdateTodoTool{Tasks: s},
        &CompleteTodoTool{Tasks: s},
        &DeleteTodoTool{Tasks: s},
    )
}
