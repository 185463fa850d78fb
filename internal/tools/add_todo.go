package tools

import (
    "context"
    "fmt"

    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
)

type AddArgs struct {
    Title       string
    Description string
}

func decodeAddArgs(args map[string]any) AddArgs {
    return AddArgs{Title: str(args, "title"), Description: str(args, "description")}
}

// AddTodoTool creates a task. Title validation is left to the store behind it.
type AddTodoTool struct{ Tasks store.TaskStore }

func (t *AddTodoTool) Name() string { return "add_todo" }

func (t *AddTodoTool) Description() string { return "Add a new task to the todo list." }

func (t *AddTodoTool) Parameters() llm.Schema {
    return llm.Schema{
        Type: "object",
        Properties: map[string]llm.Property{
            "title":       {Type: "string", Description: "The title of the task"},
            "description": {Type: "string", Description: "Optional description of the task"},
        },
        Required: []string{"title"},
    }
}

func (t *AddTodoTool) Execute(ctx context.Context, userID string, args map[string]any) (string, error) {
    a := decodeAddArgs(args)
    task, err := t.Tasks.Create(ctx, userID, a.Title, a.Description)
    if err != nil { return "", err }
    return fmt.Sprintf("✅ Created task: **%s** (ID: %s)", task.Title, task.ID), nil
}
