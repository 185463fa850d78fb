package llm

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "go.uber.org/zap"
)

// FallbackClient tries each client in order until one answers.
type FallbackClient struct {
    Clients []Client
    Log     *zap.Logger
}

func (f *FallbackClient) Name() string {
    names := make([]string, 0, len(f.Clients))
    for _, c := range f.Clients { names = append(names, c.Name()) }
    return strings.Join(names, ">")
}

func (f *FallbackClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
    if len(f.Clients) == 0 { return nil, errors.New("llm: no clients configured") }
    var errs []error
    for i, c := range f.Clients {
        resp, err := c.Chat(ctx, req)
        if err == nil { return resp, nil }
        errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
        if ctx.Err() != nil { break }
        if f.Log != nil && i < len(f.Clients)-1 {
            f.Log.Warn("model backend failed, trying next", zap.String("backend", c.Name()), zap.Error(err))
        }
    }
    return nil, errors.Join(errs...)
}
