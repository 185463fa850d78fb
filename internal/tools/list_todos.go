package tools

import (
    "context"
    "fmt"
    "strings"

    "github.com/example/todo-agent/internal/models"
    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
)

type ListArgs struct {
    Filter models.Filter
}

func decodeListArgs(args map[string]any) (ListArgs, error) {
    f, err := models.ParseFilter(str(args, "filter"))
    if err != nil { return ListArgs{}, err }
    return ListArgs{Filter: f}, nil
}

type ListTodosTool struct{ Tasks store.TaskStore }

func (t *ListTodosTool) Name() string { return "list_todos" }

func (t *ListTodosTool) Description() string { return "List all tasks. Can filter by status." }

func (t *ListTodosTool) Parameters() llm.Schema {
    return llm.Schema{
        Type: "object",
        Properties: map[string]llm.Property{
            "filter": {
                Type:        "string",
                Description: "Filter tasks by status",
                Enum:        []string{string(models.FilterAll), string(models.FilterCompleted), string(models.FilterPending)},
            },
        },
        Required: []string{},
    }
}

func (t *ListTodosTool) Execute(ctx context.Context, userID string, args map[string]any) (string, error) {
    a, err := decodeListArgs(args)
    if err != nil { return "", &ArgumentError{Tool: t.Name(), Problem: err.Error()} }
    tasks, err := t.Tasks.List(ctx, userID, a.Filter)
    if err != nil { return "", err }
    if len(tasks) == 0 {
        return emptyList(a.Filter), nil
    }
    lines := make([]string, 0, len(tasks))
    for _, task := range tasks {
        lines = append(lines, renderTask(task))
    }
    return strings.Join(lines, "\n"), nil
}

// emptyList is said explicitly so the model never reads silence as content.
func emptyList(f models.Filter) string {
    switch f {
    case models.FilterCompleted:
        return "You have no completed tasks."
    case models.FilterPending:
        return "You have no pending tasks."
    default:
        return "You have no tasks currently."
    }
}

func renderTask(t *models.Task) string {
    box := " "
    if t.IsCompleted { box = "x" }
    line := fmt.Sprintf("- [%s] **%s**", box, t.Title)
    if t.Description != "" {
        line += fmt.Sprintf(" _(%s)_", t.Description)
    }
    return line + fmt.Sprintf(" `ID: %s`", t.ID)
}
