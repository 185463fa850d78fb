package models

import (
    "fmt"
    "strings"
    "time"
)

// Filter selects tasks by completion status.
type Filter string

const (
    FilterAll       Filter = "all"
    FilterCompleted Filter = "completed"
    FilterPending   Filter = "pending"
)

// ParseFilter maps a loose string to a Filter. Empty means all.
func ParseFilter(s string) (Filter, error) {
    switch Filter(strings.ToLower(strings.TrimSpace(s))) {
    case "", FilterAll:
        return FilterAll, nil
    case FilterCompleted:
        return FilterCompleted, nil
    case FilterPending:
        return FilterPending, nil
    }
    return "", fmt.Errorf("unknown filter %q (want all, completed or pending)", s)
}

// Matches reports whether a task passes the filter.
func (f Filter) Matches(t *Task) bool {
    switch f {
    case FilterCompleted:
        return t.IsCompleted
    case FilterPending:
        return !t.IsCompleted
    default:
        return true
    }
}

type Task struct {
    ID          string    `json:"id"`
    Title       string    `json:"title"`
    Description string    `json:"description,omitempty"`
    IsCompleted bool      `json:"isCompleted"`
    UserID      string    `json:"userId"`
    CreatedAt   time.Time `json:"createdAt"`
    UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskUpdate carries the optional fields of a partial update. Nil leaves the field untouched.
type TaskUpdate struct {
    Title       *string `json:"title,omitempty"`
    Description *string `json:"description,omitempty"`
    IsCompleted *bool   `json:"isCompleted,omitempty"`
}

func (u TaskUpdate) Empty() bool {
    return u.Title == nil && u.Description == nil && u.IsCompleted == nil
}

// Apply copies the set fields onto t and refreshes UpdatedAt.
func (u TaskUpdate) Apply(t *Task, now time.Time) {
    if u.Title != nil { t.Title = *u.Title }
    if u.Description != nil { t.Description = *u.Description }
    if u.IsCompleted != nil { t.IsCompleted = *u.IsCompleted }
    t.UpdatedAt = now
}

type Role string

const (
    RoleUser      Role = "user"
    RoleAssistant Role = "assistant"
)

type Conversation struct {
    ID        string    `json:"id"`
    Title     string    `json:"title"`
    UserID    string    `json:"userId"`
    CreatedAt time.Time `json:"createdAt"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a persisted chat turn shown in conversation history.
type Message struct {
    ID             string    `json:"id"`
    ConversationID string    `json:"conversationId"`
    Role           Role      `json:"role"`
    Content        string    `json:"content"`
    UserID         string    `json:"userId"`
    CreatedAt      time.Time `json:"createdAt"`
}
