package llm

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "net/http"
    "net/http/httptest"
    "sync/atomic"
    "testing"
    "time"

    genai "github.com/google/generative-ai-go/genai"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func init() { retryBase = time.Millisecond }

var testTools = []ToolSpec{{
    Name:        "list_todos",
    Description: "List all tasks.",
    Parameters: Schema{
        Type:       "object",
        Properties: map[string]Property{"filter": {Type: "string", Enum: []string{"all", "pending"}}},
        Required:   []string{},
    },
}}

func conversation() []Message {
    return []Message{
        SystemMessage("be helpful"),
        UserMessage("what do I have?"),
        {Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "list_todos", Arguments: json.RawMessage(`{"filter":"all"}`)}}},
        ToolMessage("c1", "list_todos", "You have no tasks currently."),
    }
}

func TestOpenAIChatRoundTrip(t *testing.T) {
    var got map[string]any
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
        assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
        assert.Equal(t, "Todo Agent", r.Header.Get("X-Title"))
        require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
        _, _ = io.WriteString(w, `{"model":"m-1","choices":[{"message":{"role":"assistant","content":null,
            "tool_calls":[{"id":"call_9","type":"function","function":{"name":"add_todo","arguments":"{\"title\":\"x\"}"}}]}}]}`)
    }))
    defer srv.Close()

    c := &OpenAIClient{APIKey: "sk-test", Model: "m", BaseURL: srv.URL + "/api/v1", Provider: "openrouter",
        Headers: map[string]string{"X-Title": "Todo Agent"}}
    resp, err := c.Chat(context.Background(), ChatRequest{Messages: conversation(), Tools: testTools})
    require.NoError(t, err)

    assert.Equal(t, "m-1", resp.Model)
    require.Len(t, resp.Message.ToolCalls, 1)
    assert.Equal(t, "call_9", resp.Message.ToolCalls[0].ID)
    assert.JSONEq(t, `{"title":"x"}`, string(resp.Message.ToolCalls[0].Arguments))

    assert.Equal(t, "auto", got["tool_choice"])
    msgs := got["messages"].([]any)
    require.Len(t, msgs, 4)
    assistant := msgs[2].(map[string]any)
    assert.Nil(t, assistant["content"])
    call := assistant["tool_calls"].([]any)[0].(map[string]any)
    assert.Equal(t, `{"filter":"all"}`, call["function"].(map[string]any)["arguments"])
    tool := msgs[3].(map[string]any)
    assert.Equal(t, "c1", tool["tool_call_id"])
    assert.Equal(t, "You have no tasks currently.", tool["content"])
    fn := got["tools"].([]any)[0].(map[string]any)["function"].(map[string]any)
    assert.Equal(t, "list_todos", fn["name"])
}

func TestOpenAIEndpoint(t *testing.T) {
    assert.Equal(t, "https://api.openai.com/v1/chat/completions", (&OpenAIClient{}).endpoint("/chat/completions"))
    assert.Equal(t, "http://proxy/v1/chat/completions", (&OpenAIClient{BaseURL: "http://proxy/"}).endpoint("/chat/completions"))
    assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", (&OpenAIClient{BaseURL: openRouterBase}).endpoint("/chat/completions"))
}

func TestRetriesTransientStatus(t *testing.T) {
    var hits atomic.Int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if hits.Add(1) < 3 {
            http.Error(w, "overloaded", http.StatusServiceUnavailable)
            return
        }
        _, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
    }))
    defer srv.Close()

    c := &OpenAIClient{APIKey: "k", Model: "m", BaseURL: srv.URL}
    resp, err := c.Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage("hi")}})
    require.NoError(t, err)
    assert.Equal(t, "ok", resp.Message.Content)
    assert.EqualValues(t, 3, hits.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
    var hits atomic.Int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        hits.Add(1)
        http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
    }))
    defer srv.Close()

    c := &OpenAIClient{APIKey: "k", Model: "m", BaseURL: srv.URL}
    _, err := c.Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage("hi")}})
    var se *StatusError
    require.True(t, errors.As(err, &se))
    assert.Equal(t, http.StatusUnauthorized, se.Code)
    assert.False(t, se.Retryable())
    assert.EqualValues(t, 1, hits.Load())
}

func TestAnthropicChatRoundTrip(t *testing.T) {
    var got anRequest
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, "key", r.Header.Get("x-api-key"))
        assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
        require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
        _, _ = io.WriteString(w, `{"model":"claude-x","content":[
            {"type":"text","text":"Let me check. "},
            {"type":"tool_use","id":"toolu_1","name":"list_todos","input":{"filter":"pending"}}]}`)
    }))
    defer srv.Close()

    c := &AnthropicClient{APIKey: "key", Model: "claude-x", URL: srv.URL}
    resp, err := c.Chat(context.Background(), ChatRequest{Messages: conversation(), Tools: testTools})
    require.NoError(t, err)

    assert.Equal(t, "Let me check. ", resp.Message.Content)
    require.Len(t, resp.Message.ToolCalls, 1)
    assert.Equal(t, "toolu_1", resp.Message.ToolCalls[0].ID)
    assert.JSONEq(t, `{"filter":"pending"}`, string(resp.Message.ToolCalls[0].Arguments))

    assert.Equal(t, "be helpful", got.System)
    assert.Equal(t, 1024, got.MaxTokens)
    require.Len(t, got.Messages, 3)
    assert.Equal(t, "tool_use", got.Messages[1].Content[0].Type)
    assert.Equal(t, "user", got.Messages[2].Role)
    assert.Equal(t, "tool_result", got.Messages[2].Content[0].Type)
    assert.Equal(t, "c1", got.Messages[2].Content[0].ToolUseID)
    assert.Equal(t, "list_todos", got.Tools[0].Name)
}

func TestAnthropicMergesConsecutiveToolResults(t *testing.T) {
    var msgs []anMessage
    msgs = appendAnthropic(msgs, UserMessage("do two things"))
    msgs = appendAnthropic(msgs, Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "a", Name: "x"}, {ID: "b", Name: "y"}}})
    msgs = appendAnthropic(msgs, ToolMessage("a", "x", "one"))
    msgs = appendAnthropic(msgs, ToolMessage("b", "y", "two"))

    require.Len(t, msgs, 3)
    assert.Len(t, msgs[2].Content, 2)
    assert.JSONEq(t, `{}`, string(msgs[1].Content[0].Input))
}

func TestAnthropicReplacesMalformedArguments(t *testing.T) {
    var got anRequest
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
        _, _ = io.WriteString(w, `{"model":"claude-x","content":[{"type":"text","text":"ok"}]}`)
    }))
    defer srv.Close()

    msgs := []Message{
        UserMessage("list"),
        {Role: RoleAssistant, ToolCalls: []ToolCall{
            {ID: "a", Name: "list_todos", Arguments: json.RawMessage(`{"filter":`)},
            {ID: "b", Name: "list_todos", Arguments: json.RawMessage(`["all"]`)},
            {ID: "c", Name: "list_todos", Arguments: json.RawMessage(`{"filter":"all"}`)},
        }},
        ToolMessage("a", "list_todos", "one"),
        ToolMessage("b", "list_todos", "two"),
        ToolMessage("c", "list_todos", "three"),
    }
    c := &AnthropicClient{APIKey: "key", Model: "claude-x", URL: srv.URL}
    resp, err := c.Chat(context.Background(), ChatRequest{Messages: msgs})
    require.NoError(t, err)
    assert.Equal(t, "ok", resp.Message.Content)

    require.Len(t, got.Messages, 3)
    uses := got.Messages[1].Content
    require.Len(t, uses, 3)
    assert.JSONEq(t, `{}`, string(uses[0].Input))
    assert.JSONEq(t, `{}`, string(uses[1].Input))
    assert.JSONEq(t, `{"filter":"all"}`, string(uses[2].Input))
}

func TestGeminiContents(t *testing.T) {
    system, contents := geminiContents(conversation())
    assert.Equal(t, "be helpful", system)
    require.Len(t, contents, 3)
    assert.Equal(t, "user", contents[0].Role)
    assert.Equal(t, "model", contents[1].Role)
    fc, ok := contents[1].Parts[0].(genai.FunctionCall)
    require.True(t, ok)
    assert.Equal(t, "list_todos", fc.Name)
    assert.Equal(t, "all", fc.Args["filter"])
    fr, ok := contents[2].Parts[0].(genai.FunctionResponse)
    require.True(t, ok)
    assert.Equal(t, "list_todos", fr.Name)
    assert.Equal(t, "You have no tasks currently.", fr.Response["result"])
}

func TestGeminiDeclarations(t *testing.T) {
    decls := geminiDeclarations(testTools)
    require.Len(t, decls, 1)
    filter := decls[0].Parameters.Properties["filter"]
    assert.Equal(t, genai.TypeString, filter.Type)
    assert.Equal(t, "enum", filter.Format)
    assert.Equal(t, []string{"all", "pending"}, filter.Enum)
}

func TestFromGemini(t *testing.T) {
    resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{
        genai.Text("Sure."),
        genai.FunctionCall{Name: "delete_todo", Args: map[string]any{"title": "milk"}},
    }}}}}
    msg, err := fromGemini(resp)
    require.NoError(t, err)
    assert.Equal(t, "Sure.", msg.Content)
    require.Len(t, msg.ToolCalls, 1)
    assert.Empty(t, msg.ToolCalls[0].ID)
    assert.JSONEq(t, `{"title":"milk"}`, string(msg.ToolCalls[0].Arguments))

    _, err = fromGemini(&genai.GenerateContentResponse{})
    assert.Error(t, err)
}

func TestMockIntents(t *testing.T) {
    tests := []struct {
        in, tool, args string
    }{
        {"add buy milk", "add_todo", `{"title":"buy milk"}`},
        {"Remind me to call mom.", "add_todo", `{"title":"call mom"}`},
        {"rename milk to oat milk", "update_todo", `{"current_title":"milk","new_title":"oat milk"}`},
        {"mark the milk task as done", "complete_todo", `{"title":"milk"}`},
        {"delete the milk task", "delete_todo", `{"title":"milk"}`},
        {"show my pending tasks", "list_todos", `{"filter":"pending"}`},
    }
    for _, tt := range tests {
        t.Run(tt.in, func(t *testing.T) {
            resp, err := (&MockClient{}).Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage(tt.in)}})
            require.NoError(t, err)
            require.Len(t, resp.Message.ToolCalls, 1)
            assert.Equal(t, tt.tool, resp.Message.ToolCalls[0].Name)
            assert.JSONEq(t, tt.args, string(resp.Message.ToolCalls[0].Arguments))
        })
    }
}

func TestMockSummarisesToolResults(t *testing.T) {
    resp, err := (&MockClient{}).Chat(context.Background(), ChatRequest{Messages: conversation()})
    require.NoError(t, err)
    assert.Empty(t, resp.Message.ToolCalls)
    assert.Equal(t, "You have no tasks currently.", resp.Message.Content)
}

type stubClient struct {
    name  string
    err   error
    calls int
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
    s.calls++
    if s.err != nil { return nil, s.err }
    return &ChatResponse{Message: AssistantMessage("from " + s.name), Model: s.name}, nil
}

func TestFallbackClient(t *testing.T) {
    a := &stubClient{name: "a", err: errors.New("down")}
    b := &stubClient{name: "b"}
    f := &FallbackClient{Clients: []Client{a, b}}
    resp, err := f.Chat(context.Background(), ChatRequest{})
    require.NoError(t, err)
    assert.Equal(t, "from b", resp.Message.Content)
    assert.Equal(t, "a>b", f.Name())

    b.err = errors.New("also down")
    _, err = f.Chat(context.Background(), ChatRequest{})
    assert.ErrorContains(t, err, "a: down")
    assert.ErrorContains(t, err, "b: also down")
}

func TestFallbackStopsOnCancel(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    a := &stubClient{name: "a", err: context.Canceled}
    b := &stubClient{name: "b"}
    _, err := (&FallbackClient{Clients: []Client{a, b}}).Chat(ctx, ChatRequest{})
    assert.ErrorIs(t, err, context.Canceled)
    assert.Zero(t, b.calls)
}

func TestNewSelectsProvider(t *testing.T) {
    ctx := context.Background()

    c, err := New(ctx, Options{}, nil)
    require.NoError(t, err)
    assert.IsType(t, &MockClient{}, c)

    c, err = New(ctx, Options{OpenRouterKey: "or", AppURL: "http://localhost:3000"}, nil)
    require.NoError(t, err)
    oc := c.(*OpenAIClient)
    assert.Equal(t, "openrouter:openai/gpt-4o-mini", oc.Name())
    assert.Equal(t, "http://localhost:3000", oc.Headers["HTTP-Referer"])

    c, err = New(ctx, Options{Provider: "anthropic", AnthropicKey: "a", Model: "claude-custom", Fallbacks: []string{"mock", "anthropic"}}, nil)
    require.NoError(t, err)
    fc := c.(*FallbackClient)
    require.Len(t, fc.Clients, 2)
    assert.Equal(t, "anthropic:claude-custom", fc.Clients[0].Name())

    _, err = New(ctx, Options{Provider: "openai"}, nil)
    assert.ErrorContains(t, err, "OPENAI_API_KEY")
    _, err = New(ctx, Options{Provider: "llama"}, nil)
    assert.ErrorContains(t, err, "unknown provider")
}
