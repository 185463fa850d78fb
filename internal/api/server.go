package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "go.uber.org/zap"

    "github.com/example/todo-agent/internal/models"
    "github.com/example/todo-agent/internal/orchestrator"
    "github.com/example/todo-agent/internal/store"
    "github.com/example/todo-agent/internal/tasks"
)

const maxBodyBytes = 1 << 20

var (
    errUnauthorized = errors.New("unauthorized")
    errForbidden    = errors.New("forbidden")
    errBadRequest   = errors.New("bad request")
)

type Options struct {
    // AuthHeader names the request header carrying the caller's user ID.
    AuthHeader  string
    AllowOrigin string
    // Heartbeat is the comment interval on idle event streams.
    Heartbeat time.Duration
}

// Server serves the REST task API, conversations, chat and the event stream.
type Server struct {
    Tasks         store.TaskStore
    Conversations store.ConversationStore
    Chat          *orchestrator.Orchestrator

    opts Options
    log  *zap.Logger
}

func NewServer(taskStore store.TaskStore, convs store.ConversationStore, chat *orchestrator.Orchestrator, opts Options, log *zap.Logger) *Server {
    if opts.AuthHeader == "" { opts.AuthHeader = "X-User-ID" }
    if opts.AllowOrigin == "" { opts.AllowOrigin = "*" }
    if opts.Heartbeat <= 0 { opts.Heartbeat = 25 * time.Second }
    if log == nil { log = zap.NewNop() }
    return &Server{Tasks: taskStore, Conversations: convs, Chat: chat, opts: opts, log: log.Named("api")}
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
    mux := http.NewServeMux()
    s.RegisterRoutes(mux)
    return cors(s.opts.AllowOrigin, s.opts.AuthHeader, accessLog(s.log, mux))
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        w.Write([]byte("ok"))
    })

    mux.HandleFunc("GET /api/{user_id}/tasks", s.withOwner(s.listTasks))
    mux.HandleFunc("POST /api/{user_id}/tasks", s.withOwner(s.createTask))
    mux.HandleFunc("GET /api/{user_id}/tasks/{id}", s.withOwner(s.getTask))
    mux.HandleFunc("PUT /api/{user_id}/tasks/{id}", s.withOwner(s.updateTask))
    mux.HandleFunc("DELETE /api/{user_id}/tasks/{id}", s.withOwner(s.deleteTask))
    mux.HandleFunc("PATCH /api/{user_id}/tasks/{id}/complete", s.withOwner(s.completeTask))

    mux.HandleFunc("GET /api/conversations", s.withCaller(s.listConversations))
    mux.HandleFunc("POST /api/conversations", s.withCaller(s.createConversation))
    mux.HandleFunc("PATCH /api/conversations/{id}", s.withCaller(s.renameConversation))
    mux.HandleFunc("DELETE /api/conversations/{id}", s.withCaller(s.deleteConversation))

    mux.HandleFunc("GET /api/chat", s.withCaller(s.chatHistory))
    mux.HandleFunc("POST /api/chat", s.withCaller(s.chat))
    mux.HandleFunc("GET /api/events", s.withCaller(s.events))
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withCaller resolves the caller from the trusted identity header.
func (s *Server) withCaller(h userHandler) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        user := strings.TrimSpace(r.Header.Get(s.opts.AuthHeader))
        if user == "" {
            s.respondError(w, errUnauthorized)
            return
        }
        h(w, r, user)
    }
}

// withOwner additionally requires the {user_id} path segment to be the caller.
func (s *Server) withOwner(h userHandler) http.HandlerFunc {
    return s.withCaller(func(w http.ResponseWriter, r *http.Request, user string) {
        if r.PathValue("user_id") != user {
            s.respondError(w, errForbidden)
            return
        }
        h(w, r, user)
    })
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request, user string) {
    filter := models.FilterAll
    if v := r.URL.Query().Get("completed"); v != "" {
        filter = models.FilterPending
        if v == "true" { filter = models.FilterCompleted }
    }
    list, err := s.Tasks.List(r.Context(), user, filter)
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, map[string]any{"tasks": list, "total": len(list)})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request, user string) {
    var req struct {
        Title       string `json:"title"`
        Description string `json:"description"`
    }
    if err := decodeJSON(w, r, &req); err != nil { s.respondError(w, err); return }
    t, err := s.Tasks.Create(r.Context(), user, req.Title, req.Description)
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusCreated, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, user string) {
    t, err := s.Tasks.Get(r.Context(), user, r.PathValue("id"))
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request, user string) {
    var upd models.TaskUpdate
    if err := decodeJSON(w, r, &upd); err != nil { s.respondError(w, err); return }
    t, err := s.Tasks.Update(r.Context(), user, r.PathValue("id"), upd)
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request, user string) {
    if _, err := s.Tasks.Delete(r.Context(), user, r.PathValue("id")); err != nil {
        s.respondError(w, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request, user string) {
    var req struct {
        IsCompleted *bool `json:"isCompleted"`
    }
    if err := decodeJSON(w, r, &req); err != nil { s.respondError(w, err); return }
    if req.IsCompleted == nil {
        s.respondError(w, fmt.Errorf("%w: isCompleted must be a boolean", errBadRequest))
        return
    }
    t, err := s.Tasks.Update(r.Context(), user, r.PathValue("id"), models.TaskUpdate{IsCompleted: req.IsCompleted})
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, t)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request, user string) {
    convs, err := s.Conversations.ListConversations(r.Context(), user)
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

type titleRequest struct {
    Title string `json:"title"`
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request, user string) {
    var req titleRequest
    if err := decodeJSON(w, r, &req); err != nil { s.respondError(w, err); return }
    c, err := s.Conversations.CreateConversation(r.Context(), user, strings.TrimSpace(req.Title))
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, c)
}

func (s *Server) renameConversation(w http.ResponseWriter, r *http.Request, user string) {
    var req titleRequest
    if err := decodeJSON(w, r, &req); err != nil { s.respondError(w, err); return }
    c, err := s.Conversations.RenameConversation(r.Context(), user, r.PathValue("id"), strings.TrimSpace(req.Title))
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, c)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request, user string) {
    if err := s.Conversations.DeleteConversation(r.Context(), user, r.PathValue("id")); err != nil {
        s.respondError(w, err)
        return
    }
    respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request, user string) {
    conv := r.URL.Query().Get("conversationId")
    if conv == "" {
        s.respondError(w, fmt.Errorf("%w: Missing conversationId", errBadRequest))
        return
    }
    msgs, err := s.Conversations.History(r.Context(), user, conv)
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request, user string) {
    var req struct {
        Messages []struct {
            Role    string `json:"role"`
            Content string `json:"content"`
        } `json:"messages"`
        ConversationID string `json:"conversationId"`
    }
    if err := decodeJSON(w, r, &req); err != nil { s.respondError(w, err); return }
    if len(req.Messages) == 0 {
        s.respondError(w, fmt.Errorf("%w: Invalid request", errBadRequest))
        return
    }
    last := req.Messages[len(req.Messages)-1]
    reply, err := s.Chat.Chat(r.Context(), user, req.ConversationID, last.Content)
    if err != nil { s.respondError(w, err); return }
    respondJSON(w, http.StatusOK, map[string]any{"role": "assistant", "content": reply.Message.Content})
}

// events streams the caller's task and chat events as server-sent events.
func (s *Server) events(w http.ResponseWriter, r *http.Request, user string) {
    ch, unsubscribe := s.Chat.Subscribe(user)
    defer unsubscribe()

    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    rc := http.NewResponseController(w)
    fmt.Fprint(w, ": connected\n\n")
    if err := rc.Flush(); err != nil {
        s.log.Warn("event stream cannot flush", zap.Error(err))
        return
    }

    heartbeat := time.NewTicker(s.opts.Heartbeat)
    defer heartbeat.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case b, ok := <-ch:
            if !ok { return }
            fmt.Fprintf(w, "data: %s\n\n", b)
        case <-heartbeat.C:
            fmt.Fprint(w, ": ping\n\n")
        }
        if err := rc.Flush(); err != nil { return }
    }
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
    r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
    // an empty body decodes as the zero value
    if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
        return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
    }
    return nil
}

// respondError maps domain errors onto status codes and the
// {"error":{"message":...}} body the UI expects.
func (s *Server) respondError(w http.ResponseWriter, err error) {
    status, msg := http.StatusInternalServerError, "Internal Server Error"
    switch {
    case errors.Is(err, errUnauthorized):
        status, msg = http.StatusUnauthorized, "Unauthorized"
    case errors.Is(err, errForbidden):
        status, msg = http.StatusForbidden, "Unauthorized"
    case errors.Is(err, store.ErrNotFound):
        status, msg = http.StatusNotFound, "Not found"
    case errors.Is(err, tasks.ErrValidation), errors.Is(err, orchestrator.ErrInvalidChat):
        status, msg = http.StatusBadRequest, err.Error()
    case errors.Is(err, errBadRequest):
        status, msg = http.StatusBadRequest, strings.TrimPrefix(err.Error(), errBadRequest.Error()+": ")
    default:
        s.log.Error("request failed", zap.Error(err))
    }
    respondJSON(w, status, map[string]any{"error": map[string]string{"message": msg}})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    enc := json.NewEncoder(w)
    enc.SetIndent("", "  ")
    enc.Encode(v)
}
