package main

import (
    "context"
    "fmt"
    "io"

    "go.uber.org/zap"

    "github.com/example/todo-agent/internal/agents"
    "github.com/example/todo-agent/internal/config"
    "github.com/example/todo-agent/internal/orchestrator"
    "github.com/example/todo-agent/internal/providers/llm"
    "github.com/example/todo-agent/internal/store"
    "github.com/example/todo-agent/internal/tasks"
    "github.com/example/todo-agent/internal/tools"
)

// app is the wired object graph shared by every command.
type app struct {
    store  store.Store
    client llm.Client
    hub    *orchestrator.Hub
    tasks  *tasks.Service
    agent  *agents.TodoAgent
    chat   *orchestrator.Orchestrator
}

func openStore(c config.StoreConfig) (store.Store, error) {
    switch c.Driver {
    case "memory":
        return store.NewMemoryStore(), nil
    case "sqlite":
        return store.NewSQLiteStore(c.Path)
    }
    return nil, fmt.Errorf("unknown store driver %q", c.Driver)
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
    s, err := openStore(cfg.Store)
    if err != nil { return nil, fmt.Errorf("open store: %w", err) }
    client, err := llm.New(ctx, cfg.LLMOptions(), log)
    if err != nil {
        s.Close()
        return nil, err
    }
    log.Info("model client ready", zap.String("client", client.Name()), zap.String("store", cfg.Store.Driver))

    hub := orchestrator.NewHub()
    svc := tasks.NewService(s, hub, log)
    agent := agents.NewTodoAgent(client, tools.NewTodoRegistry(svc), log.Named("agent"))
    agent.MaxIterations = cfg.Agent.MaxIterations
    chat := orchestrator.New(agent, s, hub, log)
    chat.HistoryLimit = cfg.Agent.HistoryLimit
    return &app{store: s, client: client, hub: hub, tasks: svc, agent: agent, chat: chat}, nil
}

func (a *app) Close() error {
    if c, ok := a.client.(io.Closer); ok { c.Close() }
    return a.store.Close()
}
