// Package store persists tasks and chat conversations. Every call is scoped
// by the owning user's ID; a record owned by someone else is reported exactly
// like a missing one.
package store

import (
    "context"
    "errors"
    "sort"
    "strings"

    "github.com/example/todo-agent/internal/models"
)

// ErrNotFound is returned when the addressed record does not exist for the caller.
var ErrNotFound = errors.New("not found")

type TaskStore interface {
    Create(ctx context.Context, userID, title, description string) (*models.Task, error)
    List(ctx context.Context, userID string, filter models.Filter) ([]*models.Task, error)
    // Search matches query case-insensitively against title or description.
    Search(ctx context.Context, userID, query string) ([]*models.Task, error)
    Get(ctx context.Context, userID, id string) (*models.Task, error)
    Update(ctx context.Context, userID, id string, upd models.TaskUpdate) (*models.Task, error)
    Complete(ctx context.Context, userID, id string) (*models.Task, error)
    // Delete removes the task and returns the record as it was.
    Delete(ctx context.Context, userID, id string) (*models.Task, error)
}

type ConversationStore interface {
    CreateConversation(ctx context.Context, userID, title string) (*models.Conversation, error)
    ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error)
    RenameConversation(ctx context.Context, userID, id, title string) (*models.Conversation, error)
    // DeleteConversation removes the conversation together with its messages.
    DeleteConversation(ctx context.Context, userID, id string) error
    AddMessage(ctx context.Context, userID, conversationID string, role models.Role, content string) (*models.Message, error)
    History(ctx context.Context, userID, conversationID string) ([]*models.Message, error)
}

// Store is the full persistence surface owned by the hosting process.
type Store interface {
    TaskStore
    ConversationStore
    Close() error
}

const DefaultConversationTitle = "New Chat"

// matchesQuery is the fuzzy predicate shared by every backend.
func matchesQuery(t *models.Task, query string) bool {
    q := strings.ToLower(query)
    return strings.Contains(strings.ToLower(t.Title), q) ||
        (t.Description != "" && strings.Contains(strings.ToLower(t.Description), q))
}

func filterByQuery(tasks []*models.Task, query string) []*models.Task {
    out := make([]*models.Task, 0, len(tasks))
    for _, t := range tasks {
        if matchesQuery(t, query) { out = append(out, t) }
    }
    return out
}

// sortNewestFirst orders by CreatedAt descending; seq breaks ties so that
// repeated reads of unchanged state are identical.
func sortNewestFirst(tasks []*models.Task, seq func(*models.Task) int64) {
    sort.SliceStable(tasks, func(i, j int) bool {
        a, b := tasks[i], tasks[j]
        if !a.CreatedAt.Equal(b.CreatedAt) { return a.CreatedAt.After(b.CreatedAt) }
        return seq(a) > seq(b)
    })
}
