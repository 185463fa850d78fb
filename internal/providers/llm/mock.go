package llm

import (
    "context"
    "encoding/json"
    "regexp"
    "strings"
)

// MockClient is used when no real provider is configured. It maps a few
// plain-English phrasings onto tool calls so the agent works offline.
type MockClient struct{}

var (
    mockAdd      = regexp.MustCompile(`(?i)^(?:please\s+)?(?:add|create|new task|remind me to)\s*:?\s+(.+)$`)
    mockRename   = regexp.MustCompile(`(?i)^(?:rename|update|change)\s+(?:the\s+)?(.+?)\s+(?:task\s+)?to\s+(.+)$`)
    mockComplete = regexp.MustCompile(`(?i)^(?:complete|finish|mark)\s+(?:the\s+)?(.+?)(?:\s+task)?(?:\s+as)?(?:\s+(?:done|complete|completed))?$`)
    mockDelete   = regexp.MustCompile(`(?i)^(?:delete|remove)\s+(?:the\s+)?(.+?)(?:\s+task)?$`)
)

func (m *MockClient) Name() string { return "mock" }

func (m *MockClient) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
    if len(req.Messages) == 0 { return &ChatResponse{Message: AssistantMessage("Hi! What should I do with your tasks?"), Model: "mock"}, nil }
    last := req.Messages[len(req.Messages)-1]
    if last.Role == RoleTool {
        return &ChatResponse{Message: AssistantMessage(toolSummary(req.Messages)), Model: "mock"}, nil
    }
    text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(last.Content), "."))
    if call, ok := mockIntent(text); ok {
        call.ID = "mock_1"
        return &ChatResponse{Message: Message{Role: RoleAssistant, ToolCalls: []ToolCall{call}}, Model: "mock"}, nil
    }
    return &ChatResponse{
        Message: AssistantMessage("I can add, list, update, complete or delete your tasks. Try \"add buy milk\"."),
        Model:   "mock",
    }, nil
}

func mockIntent(text string) (ToolCall, bool) {
    lower := strings.ToLower(text)
    switch {
    case mockRename.MatchString(text):
        g := mockRename.FindStringSubmatch(text)
        return mockCall("update_todo", map[string]string{"current_title": g[1], "new_title": g[2]}), true
    case mockAdd.MatchString(text):
        return mockCall("add_todo", map[string]string{"title": mockAdd.FindStringSubmatch(text)[1]}), true
    case mockDelete.MatchString(text):
        return mockCall("delete_todo", map[string]string{"title": mockDelete.FindStringSubmatch(text)[1]}), true
    case mockComplete.MatchString(text):
        return mockCall("complete_todo", map[string]string{"title": mockComplete.FindStringSubmatch(text)[1]}), true
    case strings.Contains(lower, "list") || strings.Contains(lower, "show") || strings.Contains(lower, "what"):
        filter := "all"
        if strings.Contains(lower, "pending") || strings.Contains(lower, "open") { filter = "pending" }
        if strings.Contains(lower, "completed") || strings.Contains(lower, "done") { filter = "completed" }
        return mockCall("list_todos", map[string]string{"filter": filter}), true
    }
    return ToolCall{}, false
}

func mockCall(name string, args map[string]string) ToolCall {
    raw, _ := json.Marshal(args)
    return ToolCall{Name: name, Arguments: raw}
}

// toolSummary echoes the results of the trailing tool turns.
func toolSummary(msgs []Message) string {
    var out []string
    for i := len(msgs) - 1; i >= 0 && msgs[i].Role == RoleTool; i-- {
        out = append([]string{msgs[i].Content}, out...)
    }
    return strings.Join(out, "\n")
}
