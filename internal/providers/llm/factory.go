package llm

import (
    "context"
    "fmt"
    "net/http"
    "slices"
    "strings"
    "time"

    "go.uber.org/zap"
)

// Options selects and configures model backends.
// Supported providers: openrouter, openai, anthropic, gemini, mock.
// An empty Provider picks the first backend with a key, else the mock.
type Options struct {
    Provider      string
    Model         string
    Fallbacks     []string
    OpenRouterKey string
    OpenAIKey     string
    OpenAIBase    string
    AnthropicKey  string
    GoogleKey     string
    AppURL        string
    Timeout       time.Duration
}

var defaultModels = map[string]string{
    "openrouter": "openai/gpt-4o-mini",
    "openai":     "gpt-4o-mini",
    "anthropic":  "claude-3-5-sonnet-latest",
    "gemini":     "gemini-1.5-flash",
}

// New builds the primary client and wraps it with any fallbacks.
// Model applies to the primary only; fallbacks use their provider defaults.
func New(ctx context.Context, o Options, log *zap.Logger) (Client, error) {
    primary := strings.ToLower(strings.TrimSpace(o.Provider))
    if primary == "" { primary = o.detect() }
    names := []string{primary}
    for _, f := range o.Fallbacks {
        f = strings.ToLower(strings.TrimSpace(f))
        if f != "" && !slices.Contains(names, f) { names = append(names, f) }
    }

    clients := make([]Client, 0, len(names))
    for i, name := range names {
        model := ""
        if i == 0 { model = strings.TrimSpace(o.Model) }
        c, err := o.build(ctx, name, model)
        if err != nil { return nil, err }
        clients = append(clients, c)
    }
    if len(clients) == 1 { return clients[0], nil }
    return &FallbackClient{Clients: clients, Log: log}, nil
}

func (o Options) detect() string {
    switch {
    case o.OpenRouterKey != "":
        return "openrouter"
    case o.OpenAIKey != "":
        return "openai"
    case o.AnthropicKey != "":
        return "anthropic"
    case o.GoogleKey != "":
        return "gemini"
    }
    return "mock"
}

func (o Options) build(ctx context.Context, name, model string) (Client, error) {
    if model == "" { model = defaultModels[name] }
    timeout := o.Timeout
    if timeout <= 0 { timeout = clientTimeout() }
    hc := &http.Client{Timeout: timeout}

    switch name {
    case "openrouter":
        if o.OpenRouterKey == "" { return nil, missingKey(name, "OPENROUTER_API_KEY") }
        return &OpenAIClient{
            APIKey:   o.OpenRouterKey,
            Model:    model,
            BaseURL:  openRouterBase,
            Provider: "openrouter",
            Headers:  map[string]string{"HTTP-Referer": o.AppURL, "X-Title": "Todo Agent"},
            HTTP:     hc,
        }, nil
    case "openai":
        if o.OpenAIKey == "" { return nil, missingKey(name, "OPENAI_API_KEY") }
        return &OpenAIClient{APIKey: o.OpenAIKey, Model: model, BaseURL: o.OpenAIBase, HTTP: hc}, nil
    case "anthropic":
        if o.AnthropicKey == "" { return nil, missingKey(name, "ANTHROPIC_API_KEY") }
        return &AnthropicClient{APIKey: o.AnthropicKey, Model: model, HTTP: hc}, nil
    case "gemini":
        if o.GoogleKey == "" { return nil, missingKey(name, "GOOGLE_API_KEY") }
        return NewGeminiClient(ctx, o.GoogleKey, model)
    case "mock":
        return &MockClient{}, nil
    }
    return nil, fmt.Errorf("llm: unknown provider %q", name)
}

func missingKey(provider, env string) error {
    return fmt.Errorf("llm: provider %s needs %s", provider, env)
}
