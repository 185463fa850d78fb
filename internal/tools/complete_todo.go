package tools

import (
    "context"
    "errors"
    "fmt"

    "github.com/example/todo-agent/internal/models"
    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
)

// TargetArgs addresses a single task for complete_todo and delete_todo.
type TargetArgs struct {
    Ref Ref
}

func decodeTargetArgs(args map[string]any) TargetArgs {
    return TargetArgs{Ref: refFrom(args, "title")}
}

func targetSchema() llm.Schema {
    return llm.Schema{
        Type: "object",
        Properties: map[string]llm.Property{
            "id":    {Type: "string", Description: "The exact ID of the task"},
            "title": {Type: "string", Description: "The title of the task to find (fuzzy search)"},
        },
        Required: []string{},
    }
}

// applyToTarget resolves the target and runs one mutation on it.
func applyToTarget(ctx context.Context, s store.TaskStore, userID string, args map[string]any, verb string,
    mutate func(ctx context.Context, userID, id string) (*models.Task, error)) (*models.Task, string, error) {
    a := decodeTargetArgs(args)
    res, err := resolve(ctx, s, userID, a.Ref,
        fmt.Sprintf("⚠️ Please provide either a Task ID or Title to %s a task.", verb))
    if err != nil { return nil, "", err }
    if res.reply != "" { return nil, res.reply, nil }

    task, err := mutate(ctx, userID, res.id)
    if errors.Is(err, store.ErrNotFound) { return nil, taskNotFound, nil }
    if err != nil { return nil, "", err }
    return task, "", nil
}

type CompleteTodoTool struct{ Tasks store.TaskStore }

func (t *CompleteTodoTool) Name() string { return "complete_todo" }

func (t *CompleteTodoTool) Description() string { return "Mark a task as completed. Identify by ID or Title." }

func (t *CompleteTodoTool) Parameters() llm.Schema { return targetSchema() }

func (t *CompleteTodoTool) Execute(ctx context.Context, userID string, args map[string]any) (string, error) {
    task, reply, err := applyToTarget(ctx, t.Tasks, userID, args, "complete", t.Tasks.Complete)
    if err != nil || reply != "" { return reply, err }
    return fmt.Sprintf("🎉 Completed: **%s**", task.Title), nil
}
