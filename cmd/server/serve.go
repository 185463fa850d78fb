package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"
    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/example/todo-agent/internal/api"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "serve",
        Short: "Serve the REST API, chat endpoint and event stream",
        Args:  cobra.NoArgs,
        RunE:  runServe,
    }
}

func runServe(cmd *cobra.Command, args []string) error {
    ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    a, err := newApp(ctx, cfg, logger)
    if err != nil { return err }
    defer a.Close()

    srv := api.NewServer(a.tasks, a.store, a.chat, api.Options{
        AuthHeader:  cfg.Server.AuthHeader,
        AllowOrigin: cfg.Server.AllowOrigin,
    }, logger)
    httpServer := &http.Server{
        Addr:              cfg.Addr(),
        Handler:           srv.Handler(),
        ReadHeaderTimeout: 10 * time.Second,
    }

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        logger.Info("server listening", zap.String("addr", httpServer.Addr))
        if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            return err
        }
        return nil
    })
    g.Go(func() error {
        <-gctx.Done()
        logger.Info("shutting down")
        sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
        defer cancel()
        return httpServer.Shutdown(sctx)
    })
    return g.Wait()
}
