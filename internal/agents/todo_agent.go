package agents

import (
    "context"
    "fmt"
    "strings"
    "time"

    "go.uber.org/zap"

    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/tools"
)

const DefaultMaxIterations = 5

// CallRecord is one executed tool call and what it returned.
type CallRecord struct {
    Call   llm.ToolCall `json:"call"`
    Result string       `json:"result"`
}

type Result struct {
    Text       string        `json:"text"`
    Iterations int           `json:"iterations"`
    Capped     bool          `json:"capped"`
    Calls      []CallRecord  `json:"calls,omitempty"`
    Messages   []llm.Message `json:"-"`
}

// TodoAgent drives model calls and tool execution for one user message at a time.
// It holds no per-invocation state and is safe for concurrent use.
type TodoAgent struct {
    Client        llm.Client
    Registry      *tools.Registry
    Executor      Executor
    MaxIterations int
    Log           *zap.Logger
}

func NewTodoAgent(client llm.Client, reg *tools.Registry, log *zap.Logger) *TodoAgent {
    if log == nil { log = zap.NewNop() }
    return &TodoAgent{
        Client:        client,
        Registry:      reg,
        Executor:      &ToolExecutor{Registry: reg, Log: log},
        MaxIterations: DefaultMaxIterations,
        Log:           log,
    }
}

// Run answers userMessage. history is prepended as-is after the system
// instructions; pass nil for a single-turn exchange.
func (a *TodoAgent) Run(ctx context.Context, userID string, history []llm.Message, userMessage string) (*Result, error) {
    limit := a.MaxIterations
    if limit <= 0 { limit = DefaultMaxIterations }
    log := a.Log
    if log == nil { log = zap.NewNop() }
    log = log.With(zap.String("user_id", userID), zap.String("model", a.Client.Name()))

    msgs := make([]llm.Message, 0, len(history)+2)
    msgs = append(msgs, llm.SystemMessage(systemPrompt))
    msgs = append(msgs, history...)
    msgs = append(msgs, llm.UserMessage(userMessage))
    req := llm.ChatRequest{Tools: a.Registry.Specs()}

    res := &Result{}
    var lastText string
    call := func() (llm.Message, error) {
        req.Messages = msgs
        start := time.Now()
        resp, err := a.Client.Chat(ctx, req)
        if err != nil { return llm.Message{}, fmt.Errorf("model call (round %d): %w", res.Iterations, err) }
        m := resp.Message
        m.Role = llm.RoleAssistant
        log.Debug("model replied",
            zap.Int("round", res.Iterations),
            zap.Int("tool_calls", len(m.ToolCalls)),
            zap.Duration("took", time.Since(start)))
        if strings.TrimSpace(m.Content) != "" { lastText = m.Content }
        msgs = append(msgs, m)
        return m, nil
    }

    reply, err := call()
    if err != nil { return nil, err }
    for len(reply.ToolCalls) > 0 && res.Iterations < limit {
        res.Iterations++
        for i, tc := range reply.ToolCalls {
            if tc.ID == "" {
                tc.ID = fmt.Sprintf("call_%d_%d", res.Iterations, i+1)
                reply.ToolCalls[i] = tc
            }
            out := a.Executor.Execute(ctx, userID, tc)
            res.Calls = append(res.Calls, CallRecord{Call: tc, Result: out})
            msgs = append(msgs, llm.ToolMessage(tc.ID, tc.Name, out))
        }
        if reply, err = call(); err != nil { return nil, err }
    }

    res.Capped = len(reply.ToolCalls) > 0
    switch {
    case !res.Capped && strings.TrimSpace(reply.Content) != "":
        res.Text = reply.Content
    case lastText != "":
        res.Text = lastText
    default:
        res.Text = FallbackReply
    }
    if res.Capped { log.Warn("iteration cap reached", zap.Int("max", limit)) }
    res.Messages = msgs
    return res, nil
}
