package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/example/todo-agent/internal/models"
)

type taskEntry struct {
    task models.Task
    seq  int64
}

// MemoryStore keeps everything in process memory. Used for development and tests.
type MemoryStore struct {
    // Now is the clock used for timestamps; defaults to time.Now.
    Now func() time.Time

    mu    sync.RWMutex
    seq   int64
    tasks map[string]*taskEntry
    convs map[string]*models.Conversation
    msgs  map[string][]models.Message // conversation ID -> turns, oldest first
}

func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        Now:   time.Now,
        tasks: map[string]*taskEntry{},
        convs: map[string]*models.Conversation{},
        msgs:  map[string][]models.Message{},
    }
}

func (s *MemoryStore) now() time.Time {
    if s.Now == nil { return time.Now().UTC() }
    return s.Now().UTC()
}

func (s *MemoryStore) Create(ctx context.Context, userID, title, description string) (*models.Task, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    s.seq++
    e := &taskEntry{seq: s.seq, task: models.Task{
        ID:          uuid.NewString(),
        Title:       title,
        Description: description,
        UserID:      userID,
        CreatedAt:   now,
        UpdatedAt:   now,
    }}
    s.tasks[e.task.ID] = e
    t := e.task
    return &t, nil
}

func (s *MemoryStore) List(ctx context.Context, userID string, filter models.Filter) ([]*models.Task, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    s.mu.RLock()
    out := make([]*models.Task, 0)
    seqs := map[string]int64{}
    for _, e := range s.tasks {
        if e.task.UserID != userID || !filter.Matches(&e.task) { continue }
        t := e.task
        out = append(out, &t)
        seqs[t.ID] = e.seq
    }
    s.mu.RUnlock()
    sortNewestFirst(out, func(t *models.Task) int64 { return seqs[t.ID] })
    return out, nil
}

func (s *MemoryStore) Search(ctx context.Context, userID, query string) ([]*models.Task, error) {
    all, err := s.List(ctx, userID, models.FilterAll)
    if err != nil { return nil, err }
    return filterByQuery(all, query), nil
}

func (s *MemoryStore) Get(ctx context.Context, userID, id string) (*models.Task, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    s.mu.RLock()
    defer s.mu.RUnlock()
    e, ok := s.tasks[id]
    if !ok || e.task.UserID != userID { return nil, ErrNotFound }
    t := e.task
    return &t, nil
}

func (s *MemoryStore) Update(ctx context.Context, userID, id string, upd models.TaskUpdate) (*models.Task, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.tasks[id]
    if !ok || e.task.UserID != userID { return nil, ErrNotFound }
    upd.Apply(&e.task, now)
    t := e.task
    return &t, nil
}

func (s *MemoryStore) Complete(ctx context.Context, userID, id string) (*models.Task, error) {
    done := true
    return s.Update(ctx, userID, id, models.TaskUpdate{IsCompleted: &done})
}

func (s *MemoryStore) Delete(ctx context.Context, userID, id string) (*models.Task, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.tasks[id]
    if !ok || e.task.UserID != userID { return nil, ErrNotFound }
    delete(s.tasks, id)
    t := e.task
    return &t, nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, userID, title string) (*models.Conversation, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    if title == "" { title = DefaultConversationTitle }
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    c := models.Conversation{ID: uuid.NewString(), Title: title, UserID: userID, CreatedAt: now, UpdatedAt: now}
    s.convs[c.ID] = &c
    out := c
    return &out, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    s.mu.RLock()
    out := make([]*models.Conversation, 0)
    for _, c := range s.convs {
        if c.UserID != userID { continue }
        cp := *c
        out = append(out, &cp)
    }
    s.mu.RUnlock()
    sort.SliceStable(out, func(i, j int) bool {
        if !out[i].CreatedAt.Equal(out[j].CreatedAt) { return out[i].CreatedAt.After(out[j].CreatedAt) }
        return out[i].ID < out[j].ID
    })
    return out, nil
}

func (s *MemoryStore) RenameConversation(ctx context.Context, userID, id, title string) (*models.Conversation, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    if title == "" { title = DefaultConversationTitle }
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    c, ok := s.convs[id]
    if !ok || c.UserID != userID { return nil, ErrNotFound }
    c.Title = title
    c.UpdatedAt = now
    out := *c
    return &out, nil
}

func (s *MemoryStore) DeleteConversation(ctx context.Context, userID, id string) error {
    if err := ctx.Err(); err != nil { return err }
    s.mu.Lock()
    defer s.mu.Unlock()
    c, ok := s.convs[id]
    if !ok || c.UserID != userID { return ErrNotFound }
    delete(s.convs, id)
    delete(s.msgs, id)
    return nil
}

// AddMessage records a turn. Messages for a conversation that was never
// created are still kept so history survives legacy clients.
func (s *MemoryStore) AddMessage(ctx context.Context, userID, conversationID string, role models.Role, content string) (*models.Message, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    now := s.now()
    s.mu.Lock()
    defer s.mu.Unlock()
    c, ok := s.convs[conversationID]
    if ok && c.UserID != userID { return nil, ErrNotFound }
    m := models.Message{
        ID:             uuid.NewString(),
        ConversationID: conversationID,
        Role:           role,
        Content:        content,
        UserID:         userID,
        CreatedAt:      now,
    }
    s.msgs[conversationID] = append(s.msgs[conversationID], m)
    if ok { c.UpdatedAt = now }
    return &m, nil
}

func (s *MemoryStore) History(ctx context.Context, userID, conversationID string) ([]*models.Message, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]*models.Message, 0)
    for _, m := range s.msgs[conversationID] {
        if m.UserID != userID { continue }
        out = append(out, &m)
    }
    return out, nil
}

func (s *MemoryStore) Close() error { return nil }
