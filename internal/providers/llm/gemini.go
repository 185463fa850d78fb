package llm

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"

    genai "github.com/google/generative-ai-go/genai"
    "google.golang.org/api/option"
)

// GeminiClient drives Gemini function calling through the official SDK.
type GeminiClient struct {
    Model  string
    client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiClient, error) {
    opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
    c, err := genai.NewClient(ctx, opts...)
    if err != nil { return nil, fmt.Errorf("gemini: %w", err) }
    return &GeminiClient{Model: model, client: c}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.Model }

func (g *GeminiClient) Close() error { return g.client.Close() }

func (g *GeminiClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
    system, contents := geminiContents(req.Messages)
    if len(contents) == 0 { return nil, errors.New("gemini: no messages") }
    last := contents[len(contents)-1]
    if last.Role != "user" { return nil, errors.New("gemini: conversation must end with a user or tool turn") }

    m := g.client.GenerativeModel(g.Model)
    if system != "" {
        m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
    }
    if len(req.Tools) > 0 {
        m.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
    }
    cs := m.StartChat()
    cs.History = contents[:len(contents)-1]
    resp, err := cs.SendMessage(ctx, last.Parts...)
    if err != nil { return nil, fmt.Errorf("gemini: %w", err) }
    out, err := fromGemini(resp)
    if err != nil { return nil, err }
    return &ChatResponse{Message: out, Model: g.Model}, nil
}

func geminiDeclarations(specs []ToolSpec) []*genai.FunctionDeclaration {
    out := make([]*genai.FunctionDeclaration, 0, len(specs))
    for _, s := range specs {
        params := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}, Required: s.Parameters.Required}
        for name, p := range s.Parameters.Properties {
            ps := &genai.Schema{Type: geminiType(p.Type), Description: p.Description, Enum: p.Enum}
            if len(p.Enum) > 0 { ps.Format = "enum" }
            params.Properties[name] = ps
        }
        out = append(out, &genai.FunctionDeclaration{Name: s.Name, Description: s.Description, Parameters: params})
    }
    return out
}

func geminiType(t string) genai.Type {
    switch t {
    case "boolean":
        return genai.TypeBoolean
    case "number":
        return genai.TypeNumber
    case "integer":
        return genai.TypeInteger
    case "object":
        return genai.TypeObject
    default:
        return genai.TypeString
    }
}

// geminiContents splits out system text and converts the rest into
// user/model contents, merging consecutive turns of the same role.
func geminiContents(msgs []Message) (string, []*genai.Content) {
    var system []string
    var out []*genai.Content
    add := func(role string, parts ...genai.Part) {
        if len(parts) == 0 { return }
        if n := len(out); n > 0 && out[n-1].Role == role {
            out[n-1].Parts = append(out[n-1].Parts, parts...)
            return
        }
        out = append(out, &genai.Content{Role: role, Parts: parts})
    }
    for _, m := range msgs {
        switch m.Role {
        case RoleSystem:
            system = append(system, m.Content)
        case RoleAssistant:
            var parts []genai.Part
            if m.Content != "" { parts = append(parts, genai.Text(m.Content)) }
            for _, tc := range m.ToolCalls {
                var args map[string]any
                _ = json.Unmarshal(tc.arguments(), &args)
                parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
            }
            add("model", parts...)
        case RoleTool:
            add("user", genai.FunctionResponse{Name: m.Name, Response: map[string]any{"result": m.Content}})
        default:
            add("user", genai.Text(m.Content))
        }
    }
    return strings.Join(system, "\n\n"), out
}

func fromGemini(resp *genai.GenerateContentResponse) (Message, error) {
    out := Message{Role: RoleAssistant}
    if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
        return out, errors.New("gemini: empty response")
    }
    var text []string
    for _, part := range resp.Candidates[0].Content.Parts {
        switch p := part.(type) {
        case genai.Text:
            text = append(text, string(p))
        case genai.FunctionCall:
            out.ToolCalls = append(out.ToolCalls, geminiCall(p))
        case *genai.FunctionCall:
            out.ToolCalls = append(out.ToolCalls, geminiCall(*p))
        }
    }
    out.Content = strings.Join(text, "")
    return out, nil
}

// geminiCall leaves ID empty: Gemini does not number its calls, the agent loop does.
func geminiCall(fc genai.FunctionCall) ToolCall {
    args, err := json.Marshal(fc.Args)
    if err != nil || fc.Args == nil { args = []byte("{}") }
    return ToolCall{Name: fc.Name, Arguments: args}
}
