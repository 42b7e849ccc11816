/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "runtime"
    "time"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/config"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/domain"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/services"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

// Extractor is the pipeline boundary consumed by the handlers.
type Extractor interface {
    Run(ctx context.Context, p services.Params, sink services.EventSink) (*domain.Report, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc Extractor
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc Extractor) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

type extractRequest struct {
    BaseURL   string `json:"baseUrl"`
    AuthToken string `json:"authToken"`
    UserID    any    `json:"userId"`
    Stream    bool   `json:"stream"`
}

// Extract handles POST: batch extraction, or SSE when the body sets stream.
func (h *Handlers) Extract(c *gin.Context) {
    var req extractRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON input"})
        return
    }
    p := services.Params{BaseURL: req.BaseURL, AuthToken: req.AuthToken, UserID: userIDString(req.UserID)}
    if field, ok := missingField(p); ok {
        c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: " + field})
        return
    }
    if req.Stream {
        h.stream(c, p)
        return
    }

    ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.ExtractTimeout)
    defer cancel()
    report, err := h.svc.Run(ctx, p, nil)
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, report)
}

// ExtractStream handles GET. With ?stream=true it runs a streaming
// extraction from query parameters; without it, it answers a liveness probe
// so the endpoint can be opened directly in a browser.
func (h *Handlers) ExtractStream(c *gin.Context) {
    if c.Query("stream") != "true" {
        c.JSON(http.StatusOK, gin.H{
            "status":     "OK",
            "message":    "Timeline API is working",
            "timestamp":  time.Now().Format("2006-01-02 15:04:05"),
            "go_version": runtime.Version(),
        })
        return
    }
    p := services.Params{
        BaseURL:   c.Query("baseUrl"),
        AuthToken: c.Query("authToken"),
        UserID:    c.Query("userId"),
    }
    if field, ok := missingField(p); ok {
        c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: " + field})
        return
    }
    h.stream(c, p)
}

type frame struct {
    name string
    data map[string]any
}

// stream runs the pipeline in a goroutine and forwards its events as SSE
// frames in emission order. The stream always terminates with an end frame;
// client disconnect cancels the pipeline at its next checkpoint.
func (h *Handlers) stream(c *gin.Context, p services.Params) {
    c.Header("Content-Type", "text/event-stream")
    c.Header("Cache-Control", "no-cache")
    c.Header("Connection", "keep-alive")

    reqCtx := c.Request.Context()
    ctx, cancel := context.WithTimeout(reqCtx, h.cfg.ExtractTimeout)
    defer cancel()

    frames := make(chan frame, 1)
    go func() {
        defer close(frames)
        // Frames are dropped only when the client is gone; a pipeline
        // deadline still gets its error and end frames delivered.
        emit := func(name string, data map[string]any) {
            select {
            case frames <- frame{name, data}:
            case <-reqCtx.Done():
            }
        }
        _, err := h.svc.Run(ctx, p, emit)
        if err != nil {
            emit("end", map[string]any{"message": "Stream ended with error"})
            return
        }
        emit("end", map[string]any{"message": "Stream ended"})
    }()

    c.Stream(func(w io.Writer) bool {
        f, ok := <-frames
        if !ok { return false }
        c.SSEvent(f.name, f.data)
        return true
    })
}

func (h *Handlers) Info(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{
        "app_env":     h.cfg.AppEnv,
        "go_version":  runtime.Version(),
        "goroutines":  runtime.NumGoroutine(),
        "server_time": time.Now().Format("2006-01-02 15:04:05 MST"),
        "tz":          h.cfg.TZ,
    })
}

func missingField(p services.Params) (string, bool) {
    if p.BaseURL == "" { return "baseUrl", true }
    if p.AuthToken == "" { return "authToken", true }
    if p.UserID == "" { return "userId", true }
    return "", false
}

// userIDString accepts the id as a JSON string or number, matching what the
// browser client historically sent.
func userIDString(v any) string {
    switch t := v.(type) {
    case nil:
        return ""
    case string:
        return t
    case float64:
        if t == float64(int64(t)) { return fmt.Sprintf("%d", int64(t)) }
        return fmt.Sprint(t)
    default:
        return fmt.Sprint(t)
    }
}
