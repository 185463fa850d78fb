package llm

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strings"
)

const (
    openAIBase     = "https://api.openai.com/v1"
    openRouterBase = "https://openrouter.ai/api/v1"
)

// OpenAIClient speaks the Chat Completions tool-calling protocol. Any
// compatible gateway (OpenRouter, local proxies) works through BaseURL.
type OpenAIClient struct {
    APIKey  string
    Model   string
    BaseURL string
    // Provider names the backend in logs and errors; defaults to "openai".
    Provider string
    // Headers are sent on every request, e.g. OpenRouter attribution.
    Headers map[string]string
    HTTP    *http.Client
}

type oaFunction struct {
    Name      string `json:"name"`
    Arguments string `json:"arguments"`
}

type oaToolCall struct {
    ID       string     `json:"id"`
    Type     string     `json:"type"`
    Function oaFunction `json:"function"`
}

type oaMessage struct {
    Role       string       `json:"role"`
    Content    *string      `json:"content"`
    ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
    ToolCallID string       `json:"tool_call_id,omitempty"`
    Name       string       `json:"name,omitempty"`
}

type oaTool struct {
    Type     string `json:"type"`
    Function struct {
        Name        string `json:"name"`
        Description string `json:"description"`
        Parameters  Schema `json:"parameters"`
    } `json:"function"`
}

type oaRequest struct {
    Model      string      `json:"model"`
    Messages   []oaMessage `json:"messages"`
    Tools      []oaTool    `json:"tools,omitempty"`
    ToolChoice string      `json:"tool_choice,omitempty"`
}

type oaResponse struct {
    Model   string `json:"model"`
    Choices []struct {
        Message oaMessage `json:"message"`
    } `json:"choices"`
}

func (c *OpenAIClient) Name() string {
    if c.Provider != "" { return c.Provider + ":" + c.Model }
    return "openai:" + c.Model
}

func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
    body := oaRequest{Model: c.Model, Messages: make([]oaMessage, 0, len(req.Messages))}
    for _, m := range req.Messages {
        body.Messages = append(body.Messages, toOpenAIMessage(m))
    }
    for _, t := range req.Tools {
        var ot oaTool
        ot.Type = "function"
        ot.Function.Name = t.Name
        ot.Function.Description = t.Description
        ot.Function.Parameters = t.Parameters
        body.Tools = append(body.Tools, ot)
    }
    if len(body.Tools) > 0 { body.ToolChoice = "auto" }

    var resp oaResponse
    if err := postJSON(ctx, c.HTTP, c.providerName(), c.endpoint("/chat/completions"), c.headers(), body, &resp); err != nil {
        return nil, err
    }
    if len(resp.Choices) == 0 { return nil, errors.New(c.providerName() + ": no choices") }
    return &ChatResponse{Message: fromOpenAIMessage(resp.Choices[0].Message), Model: resp.Model}, nil
}

func toOpenAIMessage(m Message) oaMessage {
    out := oaMessage{Role: string(m.Role), ToolCallID: m.ToolCallID}
    content := m.Content
    if m.Role != RoleAssistant || content != "" || len(m.ToolCalls) == 0 { out.Content = &content }
    for _, tc := range m.ToolCalls {
        out.ToolCalls = append(out.ToolCalls, oaToolCall{
            ID:       tc.ID,
            Type:     "function",
            Function: oaFunction{Name: tc.Name, Arguments: string(tc.arguments())},
        })
    }
    if m.Role == RoleTool { out.Name = m.Name }
    return out
}

func fromOpenAIMessage(m oaMessage) Message {
    out := Message{Role: RoleAssistant}
    if m.Content != nil { out.Content = *m.Content }
    for _, tc := range m.ToolCalls {
        out.ToolCalls = append(out.ToolCalls, ToolCall{
            ID:        tc.ID,
            Name:      tc.Function.Name,
            Arguments: json.RawMessage(tc.Function.Arguments),
        })
    }
    return out
}

func (c *OpenAIClient) providerName() string {
    if c.Provider != "" { return c.Provider }
    return "openai"
}

func (c *OpenAIClient) headers() map[string]string {
    h := map[string]string{"Authorization": "Bearer " + c.APIKey}
    for k, v := range c.Headers { h[k] = v }
    return h
}

// endpoint accepts bases with or without the trailing /v1.
func (c *OpenAIClient) endpoint(path string) string {
    base := strings.TrimRight(c.BaseURL, "/")
    if base == "" { return openAIBase + path }
    if !strings.HasSuffix(base, "/v1") { base += "/v1" }
    return base + path
}
