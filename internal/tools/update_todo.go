package tools

import (
    "context"
    "errors"
    "fmt"

    "github.com/example/todo-agent/internal/models"
    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
)

type UpdateArgs struct {
    Ref            Ref
    NewTitle       *string
    NewDescription *string
}

func decodeUpdateArgs(args map[string]any) UpdateArgs {
    return UpdateArgs{
        Ref:            refFrom(args, "current_title"),
        NewTitle:       optStr(args, "new_title"),
        NewDescription: optStr(args, "new_description"),
    }
}

type UpdateTodoTool struct{ Tasks store.TaskStore }

func (t *UpdateTodoTool) Name() string { return "update_todo" }

func (t *UpdateTodoTool) Description() string {
    return "Update a task. You can identify the task by its ID OR by providing its current title (fuzzy match)."
}

func (t *UpdateTodoTool) Parameters() llm.Schema {
    return llm.Schema{
        Type: "object",
        Properties: map[string]llm.Property{
            "id":              {Type: "string", Description: "The exact ID of the task (preferred)"},
            "current_title":   {Type: "string", Description: "The current title of the task to find (fuzzy search)"},
            "new_title":       {Type: "string", Description: "The new title for the task"},
            "new_description": {Type: "string", Description: "The new description for the task"},
        },
        Required: []string{},
    }
}

func (t *UpdateTodoTool) Execute(ctx context.Context, userID string, args map[string]any) (string, error) {
    a := decodeUpdateArgs(args)
    res, err := resolve(ctx, t.Tasks, userID, a.Ref,
        "⚠️ Please provide either a Task ID or the Current Title to update a task.")
    if err != nil { return "", err }
    if res.reply != "" { return res.reply, nil }

    task, err := t.Tasks.Update(ctx, userID, res.id, models.TaskUpdate{Title: a.NewTitle, Description: a.NewDescription})
    if errors.Is(err, store.ErrNotFound) { return taskNotFound, nil }
    if err != nil { return "", err }
    return fmt.Sprintf("✏️ Updated task: **%s**", task.Title), nil
}
