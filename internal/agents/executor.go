package agents

import (
    "context"
    "errors"
    "fmt"

    "go.uber.org/zap"

    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/tools"
)

type Executor interface {
    Execute(ctx context.Context, userID string, call llm.ToolCall) string
}

// ToolExecutor runs model tool calls against the registry. Every outcome,
// including failures, comes back as text for the model to read.
type ToolExecutor struct {
    Registry *tools.Registry
    Log      *zap.Logger
}

func (e *ToolExecutor) Execute(ctx context.Context, userID string, call llm.ToolCall) (out string) {
    log := e.logger().With(zap.String("tool", call.Name), zap.String("call_id", call.ID), zap.String("user_id", userID))
    t, ok := e.Registry.Get(call.Name)
    if !ok {
        log.Warn("unknown tool requested")
        return "Unknown tool: " + call.Name
    }
    defer func() {
        if r := recover(); r != nil {
            log.Error("tool panicked", zap.Any("panic", r))
            out = fmt.Sprintf("Error executing %s: %v", call.Name, r)
        }
    }()

    args, err := tools.ParseArguments(call.Name, call.Arguments)
    if err == nil { err = tools.ValidateArguments(call.Name, t.Parameters(), args) }
    if err == nil { out, err = t.Execute(ctx, userID, args) }
    if err != nil {
        var argErr *tools.ArgumentError
        if errors.As(err, &argErr) {
            log.Info("rejected tool arguments", zap.String("problem", argErr.Problem))
            return fmt.Sprintf("Error executing %s: invalid arguments: %s", call.Name, argErr.Problem)
        }
        log.Error("tool failed", zap.Error(err))
        return fmt.Sprintf("Error executing %s: %s", call.Name, err)
    }
    log.Debug("tool executed", zap.Int("result_len", len(out)))
    return out
}

func (e *ToolExecutor) logger() *zap.Logger {
    if e.Log == nil { return zap.NewNop() }
    return e.Log
}
