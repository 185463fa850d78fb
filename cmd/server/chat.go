package main

import (
    "fmt"
    "strings"

    "github.com/spf13/cobra"
    "go.uber.org/zap"
)

func chatCmd() *cobra.Command {
    var (
        userID    string
        showCalls bool
    )
    cmd := &cobra.Command{
        Use:   "chat [message]",
        Short: "Send one message to the assistant and print its reply",
        Args:  cobra.MinimumNArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            a, err := newApp(cmd.Context(), cfg, logger)
            if err != nil { return err }
            defer a.Close()

            res, err := a.agent.Run(cmd.Context(), userID, nil, strings.Join(args, " "))
            if err != nil { return err }
            out := cmd.OutOrStdout()
            if showCalls {
                for _, c := range res.Calls {
                    fmt.Fprintf(out, "-> %s %s\n   %s\n", c.Call.Name, c.Call.Arguments, c.Result)
                }
            }
            fmt.Fprintln(out, res.Text)
            if res.Capped { logger.Warn("iteration limit reached", zap.Int("iterations", res.Iterations)) }
            return nil
        },
    }
    cmd.Flags().StringVarP(&userID, "user", "u", "cli", "user the tasks belong to")
    cmd.Flags().BoolVar(&showCalls, "calls", false, "print each tool call and its result")
    return cmd
}
