package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "modernc.org/sqlite"

    "github.com/example/todo-agent/internal/models"
)

// SQLiteStore persists tasks and conversations in a single SQLite file.
type SQLiteStore struct {
    db  *sql.DB
    now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
    if strings.HasPrefix(path, "~") {
        home, err := os.UserHomeDir()
        if err != nil { return nil, err }
        path = filepath.Join(home, path[1:])
    }
    if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
        return nil, fmt.Errorf("failed to create data dir: %w", err)
    }
    conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
    if err != nil {
        return nil, fmt.Errorf("failed to open db: %w", err)
    }
    // one writer at a time keeps modernc from returning SQLITE_BUSY under load
    conn.SetMaxOpenConns(1)
    if err := conn.Ping(); err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("failed to ping db: %w", err)
    }
    s := &SQLiteStore{db: conn, now: time.Now}
    if err := s.migrate(); err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("failed to init schema: %w", err)
    }
    return s, nil
}

func (s *SQLiteStore) migrate() error {
    schema := `
        CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            is_completed INTEGER NOT NULL DEFAULT 0,
            created_at INTEGER NOT NULL,
            updated_at INTEGER NOT NULL
        );

        CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            title TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            updated_at INTEGER NOT NULL
        );

        CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            conversation_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
            content TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );

        CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
        CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, user_id);
    `
    _, err := s.db.Exec(schema)
    return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) stamp() int64 { return s.now().UTC().UnixNano() }

func fromStamp(n int64) time.Time { return time.Unix(0, n).UTC() }

type rowScanner interface{ Scan(dest ...any) error }

const taskColumns = `id, user_id, title, description, is_completed, created_at, updated_at`

func scanTask(r rowScanner) (*models.Task, error) {
    var (
        t                models.Task
        done             int
        created, updated int64
    )
    if err := r.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &done, &created, &updated); err != nil {
        return nil, err
    }
    t.IsCompleted = done != 0
    t.CreatedAt = fromStamp(created)
    t.UpdatedAt = fromStamp(updated)
    return &t, nil
}

func (s *SQLiteStore) Create(ctx context.Context, userID, title, description string) (*models.Task, error) {
    now := s.stamp()
    id := uuid.NewString()
    _, err := s.db.ExecContext(ctx, `
        INSERT INTO tasks (id, user_id, title, description, is_completed, created_at, updated_at)
        VALUES (?, ?, ?, ?, 0, ?, ?)
    `, id, userID, title, description, now, now)
    if err != nil { return nil, fmt.Errorf("insert task: %w", err) }
    return &models.Task{
        ID:          id,
        UserID:      userID,
        Title:       title,
        Description: description,
        CreatedAt:   fromStamp(now),
        UpdatedAt:   fromStamp(now),
    }, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string, filter models.Filter) ([]*models.Task, error) {
    q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
    switch filter {
    case models.FilterCompleted:
        q += ` AND is_completed = 1`
    case models.FilterPending:
        q += ` AND is_completed = 0`
    }
    q += ` ORDER BY created_at DESC, rowid DESC`
    rows, err := s.db.QueryContext(ctx, q, userID)
    if err != nil { return nil, fmt.Errorf("list tasks: %w", err) }
    defer rows.Close()
    out := make([]*models.Task, 0)
    for rows.Next() {
        t, err := scanTask(rows)
        if err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

// Search filters in Go rather than with LIKE so case folding matches the
// in-memory store for non-ASCII titles.
func (s *SQLiteStore) Search(ctx context.Context, userID, query string) ([]*models.Task, error) {
    all, err := s.List(ctx, userID, models.FilterAll)
    if err != nil { return nil, err }
    return filterByQuery(all, query), nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID, id string) (*models.Task, error) {
    return getTask(ctx, s.db, userID, id)
}

type querier interface {
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q querier, userID, id string) (*models.Task, error) {
    row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
    t, err := scanTask(row)
    if errors.Is(err, sql.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, fmt.Errorf("get task: %w", err) }
    return t, nil
}

func (s *SQLiteStore) Update(ctx context.Context, userID, id string, upd models.TaskUpdate) (*models.Task, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return nil, err }
    defer tx.Rollback()

    t, err := getTask(ctx, tx, userID, id)
    if err != nil { return nil, err }
    upd.Apply(t, fromStamp(s.stamp()))
    done := 0
    if t.IsCompleted { done = 1 }
    if _, err := tx.ExecContext(ctx, `
        UPDATE tasks SET title = ?, description = ?, is_completed = ?, updated_at = ?
        WHERE id = ? AND user_id = ?
    `, t.Title, t.Description, done, t.UpdatedAt.UnixNano(), id, userID); err != nil {
        return nil, fmt.Errorf("update task: %w", err)
    }
    if err := tx.Commit(); err != nil { return nil, err }
    return t, nil
}

func (s *SQLiteStore) Complete(ctx context.Context, userID, id string) (*models.Task, error) {
    done := true
    return s.Update(ctx, userID, id, models.TaskUpdate{IsCompleted: &done})
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) (*models.Task, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return nil, err }
    defer tx.Rollback()

    t, err := getTask(ctx, tx, userID, id)
    if err != nil { return nil, err }
    if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID); err != nil {
        return nil, fmt.Errorf("delete task: %w", err)
    }
    if err := tx.Commit(); err != nil { return nil, err }
    return t, nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, userID, title string) (*models.Conversation, error) {
    if title == "" { title = DefaultConversationTitle }
    now := s.stamp()
    c := &models.Conversation{ID: uuid.NewString(), Title: title, UserID: userID, CreatedAt: fromStamp(now), UpdatedAt: fromStamp(now)}
    _, err := s.db.ExecContext(ctx, `
        INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
    `, c.ID, userID, title, now, now)
    if err != nil { return nil, fmt.Errorf("insert conversation: %w", err) }
    return c, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
    rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, title, created_at, updated_at FROM conversations
        WHERE user_id = ? ORDER BY created_at DESC, id ASC
    `, userID)
    if err != nil { return nil, fmt.Errorf("list conversations: %w", err) }
    defer rows.Close()
    out := make([]*models.Conversation, 0)
    for rows.Next() {
        var c models.Conversation
        var created, updated int64
        if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &created, &updated); err != nil { return nil, err }
        c.CreatedAt, c.UpdatedAt = fromStamp(created), fromStamp(updated)
        out = append(out, &c)
    }
    return out, rows.Err()
}

func (s *SQLiteStore) RenameConversation(ctx context.Context, userID, id, title string) (*models.Conversation, error) {
    if title == "" { title = DefaultConversationTitle }
    now := s.stamp()
    res, err := s.db.ExecContext(ctx, `
        UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?
    `, title, now, id, userID)
    if err != nil { return nil, fmt.Errorf("rename conversation: %w", err) }
    if n, _ := res.RowsAffected(); n == 0 { return nil, ErrNotFound }

    var c models.Conversation
    var created, updated int64
    err = s.db.QueryRowContext(ctx, `
        SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ?
    `, id).Scan(&c.ID, &c.UserID, &c.Title, &created, &updated)
    if err != nil { return nil, fmt.Errorf("reload conversation: %w", err) }
    c.CreatedAt, c.UpdatedAt = fromStamp(created), fromStamp(updated)
    return &c, nil
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, userID, id string) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer tx.Rollback()

    res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
    if err != nil { return fmt.Errorf("delete conversation: %w", err) }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ? AND user_id = ?`, id, userID); err != nil {
        return fmt.Errorf("delete messages: %w", err)
    }
    return tx.Commit()
}

func (s *SQLiteStore) AddMessage(ctx context.Context, userID, conversationID string, role models.Role, content string) (*models.Message, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return nil, err }
    defer tx.Rollback()

    var owner string
    err = tx.QueryRowContext(ctx, `SELECT user_id FROM conversations WHERE id = ?`, conversationID).Scan(&owner)
    switch {
    case errors.Is(err, sql.ErrNoRows):
        // legacy clients send messages for conversations that were never created
    case err != nil:
        return nil, fmt.Errorf("lookup conversation: %w", err)
    case owner != userID:
        return nil, ErrNotFound
    }

    now := s.stamp()
    m := &models.Message{
        ID:             uuid.NewString(),
        ConversationID: conversationID,
        Role:           role,
        Content:        content,
        UserID:         userID,
        CreatedAt:      fromStamp(now),
    }
    if _, err := tx.ExecContext(ctx, `
        INSERT INTO messages (id, conversation_id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)
    `, m.ID, conversationID, userID, string(role), content, now); err != nil {
        return nil, fmt.Errorf("insert message: %w", err)
    }
    if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID); err != nil {
        return nil, fmt.Errorf("touch conversation: %w", err)
    }
    if err := tx.Commit(); err != nil { return nil, err }
    return m, nil
}

func (s *SQLiteStore) History(ctx context.Context, userID, conversationID string) ([]*models.Message, error) {
    rows, err := s.db.QueryContext(ctx, `
        SELECT id, conversation_id, user_id, role, content, created_at FROM messages
        WHERE conversation_id = ? AND user_id = ?
        ORDER BY created_at ASC, rowid ASC
    `, conversationID, userID)
    if err != nil { return nil, fmt.Errorf("load history: %w", err) }
    defer rows.Close()
    out := make([]*models.Message, 0)
    for rows.Next() {
        var m models.Message
        var role string
        var created int64
        if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &role, &m.Content, &created); err != nil { return nil, err }
        m.Role = models.Role(role)
        m.CreatedAt = fromStamp(created)
        out = append(out, &m)
    }
    return out, rows.Err()
}
