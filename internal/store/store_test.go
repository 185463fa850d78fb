package store

import (
    "context"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/example/todo-agent/internal/models"
)

// backends runs the same contract against every Store implementation.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
    t.Helper()
    return map[string]func(t *testing.T) Store{
        "memory": func(t *testing.T) Store { return NewMemoryStore() },
        "sqlite": func(t *testing.T) Store {
            s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "todo.db"))
            require.NoError(t, err)
            t.Cleanup(func() { _ = s.Close() })
            return s
        },
    }
}

func titles(tasks []*models.Task) []string {
    out := make([]string, 0, len(tasks))
    for _, t := range tasks { out = append(out, t.Title) }
    return out
}

func TestTaskStoreContract(t *testing.T) {
    ctx := context.Background()
    for name, open := range backends(t) {
        t.Run(name, func(t *testing.T) {
            t.Run("create then list newest first", func(t *testing.T) {
                s := open(t)
                _, err := s.Create(ctx, "u1", "Buy Milk", "")
                require.NoError(t, err)
                _, err = s.Create(ctx, "u1", "Walk dog", "around the park")
                require.NoError(t, err)

                got, err := s.List(ctx, "u1", models.FilterAll)
                require.NoError(t, err)
                assert.Equal(t, []string{"Walk dog", "Buy Milk"}, titles(got))
                assert.False(t, got[0].IsCompleted)
                assert.Equal(t, "around the park", got[0].Description)
            })

            t.Run("filters by completion", func(t *testing.T) {
                s := open(t)
                a, _ := s.Create(ctx, "u1", "A", "")
                _, _ = s.Create(ctx, "u1", "B", "")
                _, err := s.Complete(ctx, "u1", a.ID)
                require.NoError(t, err)

                done, err := s.List(ctx, "u1", models.FilterCompleted)
                require.NoError(t, err)
                assert.Equal(t, []string{"A"}, titles(done))

                pending, err := s.List(ctx, "u1", models.FilterPending)
                require.NoError(t, err)
                assert.Equal(t, []string{"B"}, titles(pending))
            })

            t.Run("repeated list is identical", func(t *testing.T) {
                s := open(t)
                for _, title := range []string{"one", "two", "three", "four"} {
                    _, err := s.Create(ctx, "u1", title, "")
                    require.NoError(t, err)
                }
                first, err := s.List(ctx, "u1", models.FilterAll)
                require.NoError(t, err)
                second, err := s.List(ctx, "u1", models.FilterAll)
                require.NoError(t, err)
                assert.Equal(t, first, second)
            })

            t.Run("search is case-insensitive over title and description", func(t *testing.T) {
                s := open(t)
                _, _ = s.Create(ctx, "u1", "Buy Milk", "")
                _, _ = s.Create(ctx, "u1", "Groceries", "eggs and MILK")
                _, _ = s.Create(ctx, "u1", "Call mom", "")
                _, _ = s.Create(ctx, "u2", "milk for u2", "")

                got, err := s.Search(ctx, "u1", "milk")
                require.NoError(t, err)
                assert.ElementsMatch(t, []string{"Buy Milk", "Groceries"}, titles(got))

                none, err := s.Search(ctx, "u1", "nomatch")
                require.NoError(t, err)
                assert.Empty(t, none)
            })

            t.Run("update refreshes updatedAt", func(t *testing.T) {
                s := open(t)
                task, _ := s.Create(ctx, "u1", "Old", "d")
                time.Sleep(2 * time.Millisecond)
                title := "New"
                got, err := s.Update(ctx, "u1", task.ID, models.TaskUpdate{Title: &title})
                require.NoError(t, err)
                assert.Equal(t, "New", got.Title)
                assert.Equal(t, "d", got.Description)
                assert.True(t, got.UpdatedAt.After(task.UpdatedAt))

                reread, err := s.Get(ctx, "u1", task.ID)
                require.NoError(t, err)
                assert.Equal(t, "New", reread.Title)
            })

            t.Run("delete returns the removed record", func(t *testing.T) {
                s := open(t)
                task, _ := s.Create(ctx, "u1", "Trash", "")
                got, err := s.Delete(ctx, "u1", task.ID)
                require.NoError(t, err)
                assert.Equal(t, "Trash", got.Title)

                _, err = s.Delete(ctx, "u1", task.ID)
                assert.ErrorIs(t, err, ErrNotFound)
            })

            t.Run("other users cannot address a task by id", func(t *testing.T) {
                s := open(t)
                task, _ := s.Create(ctx, "owner", "Private", "")
                title := "hijacked"

                _, err := s.Get(ctx, "intruder", task.ID)
                assert.ErrorIs(t, err, ErrNotFound)
                _, err = s.Update(ctx, "intruder", task.ID, models.TaskUpdate{Title: &title})
                assert.ErrorIs(t, err, ErrNotFound)
                _, err = s.Complete(ctx, "intruder", task.ID)
                assert.ErrorIs(t, err, ErrNotFound)
                _, err = s.Delete(ctx, "intruder", task.ID)
                assert.ErrorIs(t, err, ErrNotFound)

                list, err := s.List(ctx, "intruder", models.FilterAll)
                require.NoError(t, err)
                assert.Empty(t, list)

                still, err := s.Get(ctx, "owner", task.ID)
                require.NoError(t, err)
                assert.Equal(t, "Private", still.Title)
                assert.False(t, still.IsCompleted)
            })
        })
    }
}

func TestConversationStoreContract(t *testing.T) {
    ctx := context.Background()
    for name, open := range backends(t) {
        t.Run(name, func(t *testing.T) {
            s := open(t)
            c, err := s.CreateConversation(ctx, "u1", "")
            require.NoError(t, err)
            assert.Equal(t, DefaultConversationTitle, c.Title)

            _, err = s.AddMessage(ctx, "u1", c.ID, models.RoleUser, "hi")
            require.NoError(t, err)
            _, err = s.AddMessage(ctx, "u1", c.ID, models.RoleAssistant, "hello")
            require.NoError(t, err)

            hist, err := s.History(ctx, "u1", c.ID)
            require.NoError(t, err)
            require.Len(t, hist, 2)
            assert.Equal(t, models.RoleUser, hist[0].Role)
            assert.Equal(t, "hello", hist[1].Content)

            other, err := s.History(ctx, "u2", c.ID)
            require.NoError(t, err)
            assert.Empty(t, other)

            _, err = s.AddMessage(ctx, "u2", c.ID, models.RoleUser, "sneaky")
            assert.ErrorIs(t, err, ErrNotFound)

            // messages for an unknown conversation are still recorded
            _, err = s.AddMessage(ctx, "u1", "legacy", models.RoleUser, "old")
            require.NoError(t, err)
            legacy, err := s.History(ctx, "u1", "legacy")
            require.NoError(t, err)
            assert.Len(t, legacy, 1)

            convs, err := s.ListConversations(ctx, "u1")
            require.NoError(t, err)
            require.Len(t, convs, 1)
            assert.Equal(t, c.ID, convs[0].ID)
        })
    }
}

func TestConversationRenameAndDelete(t *testing.T) {
    ctx := context.Background()
    for name, open := range backends(t) {
        t.Run(name, func(t *testing.T) {
            s := open(t)
            c, err := s.CreateConversation(ctx, "u1", "Groceries")
            require.NoError(t, err)
            _, err = s.AddMessage(ctx, "u1", c.ID, models.RoleUser, "add milk")
            require.NoError(t, err)

            renamed, err := s.RenameConversation(ctx, "u1", c.ID, "Weekly shop")
            require.NoError(t, err)
            assert.Equal(t, "Weekly shop", renamed.Title)
            assert.Equal(t, c.CreatedAt, renamed.CreatedAt)

            _, err = s.RenameConversation(ctx, "u2", c.ID, "mine")
            assert.ErrorIs(t, err, ErrNotFound)
            assert.ErrorIs(t, s.DeleteConversation(ctx, "u2", c.ID), ErrNotFound)

            require.NoError(t, s.DeleteConversation(ctx, "u1", c.ID))
            convs, err := s.ListConversations(ctx, "u1")
            require.NoError(t, err)
            assert.Empty(t, convs)
            hist, err := s.History(ctx, "u1", c.ID)
            require.NoError(t, err)
            assert.Empty(t, hist)
            assert.ErrorIs(t, s.DeleteConversation(ctx, "u1", c.ID), ErrNotFound)
        })
    }
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
    s := NewMemoryStore()
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, err := s.Create(ctx, "u1", "x", "")
    assert.ErrorIs(t, err, context.Canceled)
}
