package tools

import (
    "context"
    "fmt"

    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
)

type DeleteTodoTool struct{ Tasks store.TaskStore }

func (t *DeleteTodoTool) Name() string { return "delete_todo" }

func (t *DeleteTodoTool) Description() string { return "Delete a task. Identify by ID or Title." }

func (t *DeleteTodoTool) Parameters() llm.Schema { return targetSchema() }

func (t *DeleteTodoTool) Execute(ctx context.Context, userID string, args map[string]any) (string, error) {
    task, reply, err := applyToTarget(ctx, t.Tasks, userID, args, "delete", t.Tasks.Delete)
    if err != nil || reply != "" { return reply, err }
    return fmt.Sprintf("🗑️ Deleted: **%s**", task.Title), nil
}
