package agents

import (
    "context"
    "encoding/json"
    "errors"
    "strings"
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/example/todo-agent/internal/models"
    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
    "github.com/example/todo-agent/internal/tools"
)

// scriptedClient replays canned replies and records every request it sees.
type scriptedClient struct {
    mu      sync.Mutex
    replies []llm.Message
    errAt   int // 1-based call number that fails; 0 never
    calls   int
    seen    [][]llm.Message
    // repeat makes the last reply answer every call past the script.
    repeat bool
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.calls++
    c.seen = append(c.seen, append([]llm.Message(nil), req.Messages...))
    if c.errAt == c.calls { return nil, errors.New("upstream 503") }
    i := c.calls - 1
    if i >= len(c.replies) {
        if !c.repeat { return nil, errors.New("script exhausted") }
        i = len(c.replies) - 1
    }
    m := c.replies[i]
    m.ToolCalls = append([]llm.ToolCall(nil), m.ToolCalls...)
    return &llm.ChatResponse{Message: m, Model: "scripted-1"}, nil
}

func toolCall(id, name, args string) llm.ToolCall {
    return llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func withCalls(text string, calls ...llm.ToolCall) llm.Message {
    return llm.Message{Role: llm.RoleAssistant, Content: text, ToolCalls: calls}
}

func newAgent(t *testing.T, client llm.Client, s store.TaskStore) *TodoAgent {
    t.Helper()
    return NewTodoAgent(client, tools.NewTodoRegistry(s), zaptest.NewLogger(t))
}

func TestDirectAnswerNeedsNoTools(t *testing.T) {
    client := &scriptedClient{replies: []llm.Message{llm.AssistantMessage("Hello there!")}}
    res, err := newAgent(t, client, store.NewMemoryStore()).Run(context.Background(), "u1", nil, "hi")
    require.NoError(t, err)

    assert.Equal(t, "Hello there!", res.Text)
    assert.Zero(t, res.Iterations)
    assert.False(t, res.Capped)
    require.Len(t, client.seen, 1)
    first := client.seen[0]
    require.Len(t, first, 2)
    assert.Equal(t, llm.RoleSystem, first[0].Role)
    assert.Contains(t, first[0].Content, "list_todos")
    assert.Equal(t, llm.UserMessage("hi"), first[1])
}

func TestToolRoundTripFeedsResultsBack(t *testing.T) {
    s := store.NewMemoryStore()
    client := &scriptedClient{replies: []llm.Message{
        withCalls("", toolCall("c1", "add_todo", `{"title":"Buy Milk"}`)),
        llm.AssistantMessage("Added Buy Milk."),
    }}
    res, err := newAgent(t, client, s).Run(context.Background(), "u1", nil, "add buy milk")
    require.NoError(t, err)

    assert.Equal(t, "Added Buy Milk.", res.Text)
    assert.Equal(t, 1, res.Iterations)
    require.Len(t, res.Calls, 1)
    assert.Contains(t, res.Calls[0].Result, "Created task: **Buy Milk**")

    second := client.seen[1]
    last := second[len(second)-1]
    assert.Equal(t, llm.RoleTool, last.Role)
    assert.Equal(t, "c1", last.ToolCallID)
    assert.Equal(t, "add_todo", last.Name)
    assert.Equal(t, res.Calls[0].Result, last.Content)

    tasks, err := s.List(context.Background(), "u1", models.FilterAll)
    require.NoError(t, err)
    require.Len(t, tasks, 1)
}

func TestToolCallsRunInEmissionOrder(t *testing.T) {
    s := store.NewMemoryStore()
    client := &scriptedClient{replies: []llm.Message{
        withCalls("",
            toolCall("a", "add_todo", `{"title":"Walk dog"}`),
            toolCall("b", "complete_todo", `{"title":"walk"}`),
            toolCall("c", "list_todos", `{"filter":"completed"}`),
        ),
        llm.AssistantMessage("Done."),
    }}
    res, err := newAgent(t, client, s).Run(context.Background(), "u1", nil, "add and finish walk dog")
    require.NoError(t, err)

    require.Len(t, res.Calls, 3)
    assert.Equal(t, []string{"a", "b", "c"}, []string{res.Calls[0].Call.ID, res.Calls[1].Call.ID, res.Calls[2].Call.ID})
    assert.Contains(t, res.Calls[1].Result, "Completed: **Walk dog**")
    assert.Contains(t, res.Calls[2].Result, "- [x] **Walk dog**")

    second := client.seen[1]
    tail := second[len(second)-3:]
    for i, id := range []string{"a", "b", "c"} {
        assert.Equal(t, id, tail[i].ToolCallID)
    }
}

func TestIterationCapTerminates(t *testing.T) {
    client := &scriptedClient{
        replies: []llm.Message{withCalls("checking", toolCall("x", "list_todos", `{}`))},
        repeat:  true,
    }
    res, err := newAgent(t, client, store.NewMemoryStore()).Run(context.Background(), "u1", nil, "loop forever")
    require.NoError(t, err)

    assert.True(t, res.Capped)
    assert.Equal(t, DefaultMaxIterations, res.Iterations)
    assert.Equal(t, DefaultMaxIterations+1, client.calls)
    assert.Len(t, res.Calls, DefaultMaxIterations)
    assert.Equal(t, "checking", res.Text)
}

func TestIterationCapWithoutTextFallsBack(t *testing.T) {
    client := &scriptedClient{
        replies: []llm.Message{withCalls("", toolCall("", "list_todos", `{}`), toolCall("", "list_todos", `{}`))},
        repeat:  true,
    }
    agent := newAgent(t, client, store.NewMemoryStore())
    agent.MaxIterations = 2
    res, err := agent.Run(context.Background(), "u1", nil, "go")
    require.NoError(t, err)

    assert.True(t, res.Capped)
    assert.Equal(t, 2, res.Iterations)
    assert.Equal(t, 3, client.calls)
    assert.Equal(t, FallbackReply, res.Text)
    // calls without IDs get stable synthetic ones
    assert.Equal(t, "call_1_1", res.Calls[0].Call.ID)
    assert.Equal(t, "call_2_2", res.Calls[3].Call.ID)
}

func TestToolErrorsDoNotAbortLoop(t *testing.T) {
    client := &scriptedClient{replies: []llm.Message{
        withCalls("",
            toolCall("1", "drop_tables", `{}`),
            toolCall("2", "add_todo", `{"description":"no title"}`),
            toolCall("3", "list_todos", `not json`),
        ),
        llm.AssistantMessage("Something went wrong, sorry."),
    }}
    res, err := newAgent(t, client, store.NewMemoryStore()).Run(context.Background(), "u1", nil, "break things")
    require.NoError(t, err)

    require.Len(t, res.Calls, 3)
    assert.Equal(t, "Unknown tool: drop_tables", res.Calls[0].Result)
    assert.Equal(t, `Error executing add_todo: invalid arguments: missing required parameter "title"`, res.Calls[1].Result)
    assert.Equal(t, "Error executing list_todos: invalid arguments: arguments must be a JSON object", res.Calls[2].Result)
    assert.Equal(t, "Something went wrong, sorry.", res.Text)
}

func TestModelErrorPropagates(t *testing.T) {
    s := store.NewMemoryStore()
    client := &scriptedClient{
        replies: []llm.Message{withCalls("", toolCall("c1", "add_todo", `{"title":"Once"}`))},
        errAt:   2,
    }
    res, err := newAgent(t, client, s).Run(context.Background(), "u1", nil, "add once")
    require.Error(t, err)
    assert.Nil(t, res)
    assert.Contains(t, err.Error(), "upstream 503")
    assert.Equal(t, 2, client.calls)

    // the side effect of the already-dispatched call stands
    tasks, err := s.List(context.Background(), "u1", models.FilterAll)
    require.NoError(t, err)
    assert.Len(t, tasks, 1)
}

func TestHistoryIsPassedThrough(t *testing.T) {
    client := &scriptedClient{replies: []llm.Message{llm.AssistantMessage("Yes.")}}
    history := []llm.Message{llm.UserMessage("earlier"), llm.AssistantMessage("reply")}
    _, err := newAgent(t, client, store.NewMemoryStore()).Run(context.Background(), "u1", history, "now")
    require.NoError(t, err)

    got := client.seen[0]
    require.Len(t, got, 4)
    assert.Equal(t, history, got[1:3])
    assert.Equal(t, "now", got[3].Content)
}

func TestAgentIsScopedToCaller(t *testing.T) {
    s := store.NewMemoryStore()
    mine, err := s.Create(context.Background(), "owner", "Secret plan", "")
    require.NoError(t, err)
    client := &scriptedClient{replies: []llm.Message{
        withCalls("", toolCall("d", "delete_todo", `{"id":"`+mine.ID+`"}`)),
        llm.AssistantMessage("ok"),
    }}
    res, err := newAgent(t, client, s).Run(context.Background(), "intruder", nil, "delete it")
    require.NoError(t, err)

    assert.Equal(t, "❌ Task not found.", res.Calls[0].Result)
    _, err = s.Get(context.Background(), "owner", mine.ID)
    assert.NoError(t, err)
}

type panickyTool struct{}

func (panickyTool) Name() string           { return "explode" }
func (panickyTool) Description() string    { return "always panics" }
func (panickyTool) Parameters() llm.Schema { return llm.Schema{Type: "object"} }
func (panickyTool) Execute(context.Context, string, map[string]any) (string, error) {
    panic("boom")
}

func TestExecutorRecoversPanics(t *testing.T) {
    exec := &ToolExecutor{Registry: tools.NewRegistry(panickyTool{})}
    out := exec.Execute(context.Background(), "u1", toolCall("p", "explode", `{}`))
    assert.True(t, strings.HasPrefix(out, "Error executing explode: boom"), out)
}
