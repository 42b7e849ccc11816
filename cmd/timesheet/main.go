/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// timesheet is a CLI consumer for a running timeline-pulse server: extract
// runs a batch extraction, watch follows the SSE progress stream.
package main

import (
    "context"
    "encoding/json"
    "fmt"
    "os"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/client"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/domain"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/services"
    "github.com/rs/zerolog"
    "github.com/spf13/cobra"
)

var (
    flagServer  string
    flagBaseURL string
    flagToken   string
    flagUser    string
)

func main() {
    if err := rootCmd().Execute(); err != nil {
        fmt.Fprintf(os.Stderr, "Error: %v\n", err)
        os.Exit(1)
    }
}

func rootCmd() *cobra.Command {
    root := &cobra.Command{
        Use:           "timesheet",
        Short:         "Extract monthly time-tracking data from a Taiga timeline",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    root.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "timeline-pulse server address")
    root.PersistentFlags().StringVar(&flagBaseURL, "base-url", os.Getenv("TAIGA_BASE_URL"), "Taiga base URL")
    root.PersistentFlags().StringVar(&flagToken, "token", os.Getenv("TAIGA_TOKEN"), "Taiga bearer token")
    root.PersistentFlags().StringVar(&flagUser, "user", os.Getenv("TAIGA_USER_ID"), "Taiga user id")
    root.AddCommand(extractCmd(), watchCmd())
    return root
}

func params() services.Params {
    return services.Params{BaseURL: flagBaseURL, AuthToken: flagToken, UserID: flagUser}
}

func newConsumer() *client.Consumer {
    log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
    return client.New(flagServer, log)
}

func extractCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "extract",
        Short: "Run a batch extraction and print the report",
        RunE: func(cmd *cobra.Command, args []string) error {
            report, err := newConsumer().Extract(context.Background(), params())
            if err != nil { return err }
            printReport(report)
            return nil
        },
    }
}

func watchCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "watch",
        Short: "Run a streaming extraction with live progress",
        RunE: func(cmd *cobra.Command, args []string) error {
            c := newConsumer()
            err := c.Start(cmd.Context(), params(), func(ev client.Event) {
                switch ev.Name {
                case "result", "end", "raw_api_response":
                    return
                }
                var body struct {
                    Message string `json:"message"`
                }
                if json.Unmarshal(ev.Data, &body) == nil && body.Message != "" {
                    fmt.Printf("[%s] %s\n", ev.Name, body.Message)
                }
            })
            if err != nil { return err }
            printReport(c.Report())
            return nil
        },
    }
}

func printReport(r *domain.Report) {
    if r == nil {
        fmt.Println("no report")
        return
    }
    fmt.Println()
    for _, row := range r.Items {
        fmt.Printf("%-6s #%-6s %7.2fh  %s (%s)\n", row.ItemType, row.ItemRef, row.TimeValue, row.ItemSubject, row.ProjectName)
    }
    s := r.Summary
    fmt.Printf("\n%d items, %s hours total (%d pages, %d unique, %d with time data)\n",
        s.TotalItems, s.TotalTimeFormatted, s.PagesProcessed, s.UniqueTasksFound, s.TasksWithTimeData)
    fmt.Printf("cutoff %s, extracted %s\n", s.CutoffDate, s.ExtractionDate)
}
