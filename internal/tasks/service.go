// Package tasks is the task service shared by the REST handlers and the
// conversational agent: validation, sanitisation, logging and change
// notifications on top of a store.TaskStore.
package tasks

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "unicode/utf8"

    "go.uber.org/zap"

    "github.com/example/todo-agent/internal/models"
    "github.com/example/todo-agent/internal/store"
)

const (
    MaxTitleLength       = 255
    MaxDescriptionLength = 1000
)

// ErrValidation wraps every input rejection.
var ErrValidation = errors.New("validation failed")

// Change events published after successful mutations.
const (
    EventCreated   = "task_created"
    EventUpdated   = "task_updated"
    EventCompleted = "task_completed"
    EventDeleted   = "task_deleted"
)

// Notifier receives task change events for a user.
type Notifier interface {
    Notify(userID, event string, payload any)
}

type Service struct {
    store    store.TaskStore
    notifier Notifier
    log      *zap.Logger
}

var _ store.TaskStore = (*Service)(nil)

func NewService(s store.TaskStore, n Notifier, log *zap.Logger) *Service {
    if log == nil { log = zap.NewNop() }
    return &Service{store: s, notifier: n, log: log.Named("tasks")}
}

// Validate checks a title/description pair the way the REST API always has.
func Validate(title, description string) error {
    return rejected(append(titleProblems(title), descriptionProblems(description)...))
}

func titleProblems(title string) []string {
    var problems []string
    if strings.TrimSpace(title) == "" {
        problems = append(problems, "Title is required")
    }
    if utf8.RuneCountInString(title) > MaxTitleLength {
        problems = append(problems, fmt.Sprintf("Title must be less than %d characters", MaxTitleLength))
    }
    return problems
}

func descriptionProblems(description string) []string {
    if utf8.RuneCountInString(description) > MaxDescriptionLength {
        return []string{fmt.Sprintf("Description must be less than %d characters", MaxDescriptionLength)}
    }
    return nil
}

func rejected(problems []string) error {
    if len(problems) == 0 { return nil }
    return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, ", "))
}

func (s *Service) notify(userID, event string, t *models.Task) {
    if s.notifier != nil { s.notifier.Notify(userID, event, t) }
}

func (s *Service) Create(ctx context.Context, userID, title, description string) (*models.Task, error) {
    title = Sanitize(title, false)
    description = Sanitize(description, true)
    if err := Validate(title, description); err != nil {
        s.log.Info("rejected task", zap.String("user_id", userID), zap.Error(err))
        return nil, err
    }
    t, err := s.store.Create(ctx, userID, title, description)
    if err != nil {
        s.log.Error("create task failed", zap.String("user_id", userID), zap.Error(err))
        return nil, err
    }
    s.log.Info("created task", zap.String("user_id", userID), zap.String("task_id", t.ID))
    s.notify(userID, EventCreated, t)
    return t, nil
}

func (s *Service) List(ctx context.Context, userID string, filter models.Filter) ([]*models.Task, error) {
    return s.store.List(ctx, userID, filter)
}

func (s *Service) Search(ctx context.Context, userID, query string) ([]*models.Task, error) {
    return s.store.Search(ctx, userID, query)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*models.Task, error) {
    return s.store.Get(ctx, userID, id)
}

func (s *Service) Update(ctx context.Context, userID, id string, upd models.TaskUpdate) (*models.Task, error) {
    var problems []string
    if upd.Title != nil {
        v := Sanitize(*upd.Title, false)
        upd.Title = &v
        problems = append(problems, titleProblems(v)...)
    }
    if upd.Description != nil {
        v := Sanitize(*upd.Description, true)
        upd.Description = &v
        problems = append(problems, descriptionProblems(v)...)
    }
    if err := rejected(problems); err != nil { return nil, err }
    t, err := s.store.Update(ctx, userID, id, upd)
    if err != nil {
        if !errors.Is(err, store.ErrNotFound) {
            s.log.Error("update task failed", zap.String("user_id", userID), zap.String("task_id", id), zap.Error(err))
        }
        return nil, err
    }
    s.log.Info("updated task", zap.String("user_id", userID), zap.String("task_id", id))
    event := EventUpdated
    if upd.IsCompleted != nil && *upd.IsCompleted && upd.Title == nil && upd.Description == nil {
        event = EventCompleted
    }
    s.notify(userID, event, t)
    return t, nil
}

func (s *Service) Complete(ctx context.Context, userID, id string) (*models.Task, error) {
    t, err := s.store.Complete(ctx, userID, id)
    if err != nil { return nil, err }
    s.log.Info("completed task", zap.String("user_id", userID), zap.String("task_id", id))
    s.notify(userID, EventCompleted, t)
    return t, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) (*models.Task, error) {
    t, err := s.store.Delete(ctx, userID, id)
    if err != nil { return nil, err }
    s.log.Info("deleted task", zap.String("user_id", userID), zap.String("task_id", id))
    s.notify(userID, EventDeleted, t)
    return t, nil
}
