/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/adapters/taiga"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/config"
    httpx "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/http"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/jobs"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/logger"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)

    // Adapters
    feed := taiga.NewClient(cfg, log)

    // Services
    svc := services.New(cfg, log, feed)

    // HTTP server (Gin)
    router := httpx.NewRouter(cfg, log, svc)

    // Optional scheduled extraction
    if cfg.CronSpec != "" {
        if cfg.TaigaBaseURL == "" || cfg.TaigaToken == "" || cfg.TaigaUserID == "" {
            log.Warn().Msg("CRON_SPEC set but Taiga credentials incomplete; scheduled extraction disabled")
        } else {
            cr := jobs.NewCron(cfg, log, svc)
            cr.Start()
            defer cr.Stop()
            log.Info().Str("spec", cfg.CronSpec).Msg("scheduled extraction enabled")
        }
    }

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()
    log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
