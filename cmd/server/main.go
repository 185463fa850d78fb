package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "github.com/example/todo-agent/internal/config"
    "github.com/example/todo-agent/internal/logging"
)

var Version = "dev"

var (
    configPath string
    verbose    bool

    cfg    *config.Config
    logger *zap.Logger
)

func main() {
    rootCmd := &cobra.Command{
        Use:           "todo-agent",
        Short:         "Todo list service with a conversational assistant",
        Version:       Version,
        SilenceUsage:  true,
        SilenceErrors: true,
        PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
            var err error
            cfg, err = config.Load(configPath)
            if err != nil { return err }
            if err := cfg.Validate(); err != nil { return fmt.Errorf("invalid configuration: %w", err) }
            logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Development, verbose)
            return err
        },
        PersistentPostRun: func(cmd *cobra.Command, args []string) {
            if logger != nil { _ = logger.Sync() }
        },
        RunE: runServe,
    }
    rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (default $TODO_AGENT_CONFIG)")
    rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

    rootCmd.AddCommand(serveCmd())
    rootCmd.AddCommand(chatCmd())

    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}
