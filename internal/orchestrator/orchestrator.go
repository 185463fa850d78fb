package orchestrator

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "unicode/utf8"

    "go.uber.org/zap"

    "github.com/example/todo-agent/internal/agents"
    "github.com/example/todo-agent/internal/models"
    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
)

// ErrInvalidChat rejects chat turns that lack a message or conversation.
var ErrInvalidChat = errors.New("invalid chat request")

const EventChatReply = "chat_reply"

// Runner is the conversation loop the orchestrator drives.
type Runner interface {
    Run(ctx context.Context, userID string, history []llm.Message, userMessage string) (*agents.Result, error)
}

// Orchestrator owns a chat turn end to end: persistence around the agent
// run and the events that tell open dashboards to refresh.
type Orchestrator struct {
    Agent         Runner
    Conversations store.ConversationStore
    // HistoryLimit caps prior turns sent to the model; 0 sends none.
    HistoryLimit int
    // PreviewMax bounds the reply text carried in chat_reply events.
    PreviewMax int

    hub *Hub
    log *zap.Logger
}

type ChatReply struct {
    ConversationID string          `json:"conversationId"`
    Message        *models.Message `json:"message"`
    Result         *agents.Result  `json:"result"`
}

func New(agent Runner, convs store.ConversationStore, hub *Hub, log *zap.Logger) *Orchestrator {
    if hub == nil { hub = NewHub() }
    if log == nil { log = zap.NewNop() }
    return &Orchestrator{Agent: agent, Conversations: convs, PreviewMax: 2000, hub: hub, log: log.Named("orchestrator")}
}

func (o *Orchestrator) Hub() *Hub { return o.hub }

// Subscribe returns a channel carrying JSON-encoded events for a user.
// The caller must call the returned unsubscribe func when done.
func (o *Orchestrator) Subscribe(userID string) (<-chan []byte, func()) {
    return o.hub.Subscribe(userID)
}

// Chat persists the user turn, runs the agent and persists its answer. When
// the model fails the user turn stays recorded and the error is returned.
func (o *Orchestrator) Chat(ctx context.Context, userID, conversationID, message string) (*ChatReply, error) {
    message = strings.TrimSpace(message)
    if message == "" || strings.TrimSpace(conversationID) == "" {
        return nil, fmt.Errorf("%w: message and conversationId are required", ErrInvalidChat)
    }
    log := o.log.With(zap.String("user_id", userID), zap.String("conversation_id", conversationID))

    userTurn, err := o.Conversations.AddMessage(ctx, userID, conversationID, models.RoleUser, message)
    if err != nil { return nil, fmt.Errorf("save user message: %w", err) }
    history, err := o.history(ctx, userID, conversationID, userTurn.ID)
    if err != nil { return nil, err }

    res, err := o.Agent.Run(ctx, userID, history, message)
    if err != nil {
        log.Error("agent run failed", zap.Error(err))
        return nil, fmt.Errorf("agent: %w", err)
    }
    reply, err := o.Conversations.AddMessage(ctx, userID, conversationID, models.RoleAssistant, res.Text)
    if err != nil { return nil, fmt.Errorf("save assistant message: %w", err) }

    log.Info("chat turn complete",
        zap.Int("iterations", res.Iterations),
        zap.Int("tool_calls", len(res.Calls)),
        zap.Bool("capped", res.Capped))
    o.hub.Publish(userID, Event{Event: EventChatReply, Payload: o.previewReply(conversationID, res)})
    return &ChatReply{ConversationID: conversationID, Message: reply, Result: res}, nil
}

// history loads up to HistoryLimit earlier turns, oldest first, skipping the
// turn being answered.
func (o *Orchestrator) history(ctx context.Context, userID, conversationID, skipID string) ([]llm.Message, error) {
    if o.HistoryLimit <= 0 { return nil, nil }
    turns, err := o.Conversations.History(ctx, userID, conversationID)
    if err != nil { return nil, fmt.Errorf("load history: %w", err) }
    out := make([]llm.Message, 0, len(turns))
    for _, m := range turns {
        if m.ID == skipID { continue }
        switch m.Role {
        case models.RoleUser:
            out = append(out, llm.UserMessage(m.Content))
        case models.RoleAssistant:
            out = append(out, llm.AssistantMessage(m.Content))
        }
    }
    if len(out) > o.HistoryLimit { out = out[len(out)-o.HistoryLimit:] }
    // providers require the conversation to open with a user turn
    for len(out) > 0 && out[0].Role == llm.RoleAssistant { out = out[1:] }
    return out, nil
}

func (o *Orchestrator) previewReply(conversationID string, res *agents.Result) map[string]any {
    preview, truncated := truncate(res.Text, o.PreviewMax)
    tools := make([]string, 0, len(res.Calls))
    for _, c := range res.Calls { tools = append(tools, c.Call.Name) }
    out := map[string]any{
        "conversation_id": conversationID,
        "content":         preview,
        "iterations":      res.Iterations,
        "tools":           tools,
        "capped":          res.Capped,
        "bytes_total":     len(res.Text),
    }
    if truncated { out["preview_truncated"] = true }
    return out
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) (string, bool) {
    if limit <= 0 || len(s) <= limit { return s, false }
    cut := limit
    for cut > 0 && !utf8.RuneStart(s[cut]) { cut-- }
    return s[:cut], true
}
