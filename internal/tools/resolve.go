package tools

import (
    "context"
    "fmt"
    "strings"

    "github.com/example/todo-agent/internal/models"
    "github.com/example/todo-agent/internal/store"
)

// Ref addresses a task by exact ID or by fuzzy text. ID always wins.
type Ref struct {
    ID    string
    Query string
}

func refFrom(args map[string]any, queryParam string) Ref {
    return Ref{ID: str(args, "id"), Query: str(args, queryParam)}
}

// resolution is the outcome of turning a Ref into a task ID. Exactly one of
// id or reply is set: reply is a complete sentence for the model explaining
// why nothing was targeted.
type resolution struct {
    id    string
    reply string
}

// resolve performs the read half of read-then-write. The later mutation is a
// separate store call, so a concurrent change can still make it miss.
func resolve(ctx context.Context, s store.TaskStore, userID string, ref Ref, missing string) (resolution, error) {
    if ref.ID != "" {
        return resolution{id: ref.ID}, nil
    }
    if ref.Query == "" {
        return resolution{reply: missing}, nil
    }
    matches, err := s.Search(ctx, userID, ref.Query)
    if err != nil {
        return resolution{}, fmt.Errorf("search %q: %w", ref.Query, err)
    }
    switch len(matches) {
    case 0:
        return resolution{reply: fmt.Sprintf("❌ Could not find any task matching %q.", ref.Query)}, nil
    case 1:
        return resolution{id: matches[0].ID}, nil
    default:
        return resolution{reply: ambiguous(ref.Query, matches)}, nil
    }
}

func ambiguous(query string, matches []*models.Task) string {
    var b strings.Builder
    fmt.Fprintf(&b, "⚠️ Found multiple tasks matching %q. Please specify which one:", query)
    for _, t := range matches {
        fmt.Fprintf(&b, "\n- **%s** (ID: %s)", t.Title, t.ID)
    }
    return b.String()
}

const taskNotFound = "❌ Task not found."
