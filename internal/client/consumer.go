/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package client consumes the timeline-api endpoint: a one-shot batch call,
// and a streaming consumer that follows the SSE progress feed. The consumer
// is a small state machine owning the single-extraction-at-a-time guard.
package client

import (
    "bufio"
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "sync"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/domain"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/services"
    "github.com/rs/zerolog"
)

type State int

const (
    StateIdle State = iota
    StateConnecting
    StateStreaming
    StateCompleted
    StateFailed
    StateCancelled
)

func (s State) String() string {
    switch s {
    case StateIdle: return "idle"
    case StateConnecting: return "connecting"
    case StateStreaming: return "streaming"
    case StateCompleted: return "completed"
    case StateFailed: return "failed"
    case StateCancelled: return "cancelled"
    }
    return "unknown"
}

// Event is one received SSE frame. Data is the raw JSON payload.
type Event struct {
    Name string
    Data json.RawMessage
}

type Handler func(Event)

type Consumer struct {
    server string
    http   *http.Client
    log    zerolog.Logger

    mu     sync.Mutex
    state  State
    cancel context.CancelFunc
    report *domain.Report
    err    error
}

// New returns a consumer for the given server base URL. The HTTP client has
// no global timeout: the stream is long-lived and bounded by the caller's
// context instead.
func New(server string, log zerolog.Logger) *Consumer {
    return &Consumer{
        server: strings.TrimRight(server, "/"),
        http:   &http.Client{},
        log:    log,
        state:  StateIdle,
    }
}

func (c *Consumer) State() State {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.state
}

// Report returns the report of the last completed run, nil otherwise.
func (c *Consumer) Report() *domain.Report {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.report
}

func (c *Consumer) Err() error {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.err
}

// begin flips the guard. Only one extraction may be connecting or streaming
// per consumer; a second start while busy is a logged no-op.
func (c *Consumer) begin() bool {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.state == StateConnecting || c.state == StateStreaming {
        c.log.Info().Str("state", c.state.String()).Msg("client: extraction already in progress")
        return false
    }
    c.state = StateConnecting
    c.report = nil
    c.err = nil
    return true
}

func (c *Consumer) setState(s State) {
    c.mu.Lock()
    defer c.mu.Unlock()
    // Cancel wins over any later failure produced by tearing the transport down.
    if c.state == StateCancelled && s != StateIdle { return }
    c.state = s
}

// Cancel closes the stream transport. No partial report is delivered; the
// server-side pipeline notices on its next checkpoint.
func (c *Consumer) Cancel() {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.state != StateConnecting && c.state != StateStreaming { return }
    c.state = StateCancelled
    if c.cancel != nil { c.cancel() }
    c.log.Info().Msg("client: extraction cancelled")
}

// Start runs a streaming extraction and blocks until the stream terminates.
// Frames are handed to onEvent one at a time, in arrival order; the handler
// runs to completion before the next frame is parsed. Busy consumers ignore
// the call.
func (c *Consumer) Start(ctx context.Context, p services.Params, onEvent Handler) error {
    if !c.begin() { return nil }

    ctx, cancel := context.WithCancel(ctx)
    c.mu.Lock()
    c.cancel = cancel
    c.mu.Unlock()
    defer cancel()

    q := url.Values{}
    q.Set("stream", "true")
    q.Set("baseUrl", p.BaseURL)
    q.Set("authToken", p.AuthToken)
    q.Set("userId", p.UserID)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+"/timeline-api?"+q.Encode(), nil)
    if err != nil {
        c.setState(StateFailed)
        return err
    }
    req.Header.Set("Accept", "text/event-stream")

    resp, err := c.http.Do(req)
    if err != nil {
        if c.State() == StateCancelled { return nil }
        c.setState(StateFailed)
        return fmt.Errorf("connection to server lost: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        c.setState(StateFailed)
        body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
        return fmt.Errorf("stream request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
    }
    c.setState(StateStreaming)

    var (
        report   *domain.Report
        streamErr error
        sawEnd   bool
    )
    scan := bufio.NewScanner(resp.Body)
    scan.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
    var name string
    var data bytes.Buffer
    dispatch := func() {
        if name == "" { return }
        ev := Event{Name: name, Data: json.RawMessage(data.String())}
        switch name {
        case "result":
            var r domain.Report
            if err := json.Unmarshal(ev.Data, &r); err == nil { report = &r }
        case "error":
            var e struct {
                Error   string `json:"error"`
                Message string `json:"message"`
            }
            _ = json.Unmarshal(ev.Data, &e)
            msg := e.Error
            if msg == "" { msg = e.Message }
            if msg == "" { msg = "stream error" }
            // Item-scoped error frames carry only a message and do not fail
            // the run; run-level failures carry the error field.
            if e.Error != "" { streamErr = errors.New(msg) }
        case "end":
            sawEnd = true
        }
        if onEvent != nil { onEvent(ev) }
        name = ""
        data.Reset()
    }
    for scan.Scan() {
        line := scan.Text()
        switch {
        case line == "":
            dispatch()
        case strings.HasPrefix(line, "event:"):
            name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
        case strings.HasPrefix(line, "data:"):
            if data.Len() > 0 { data.WriteByte('\n') }
            data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
        }
        if sawEnd { break }
    }

    if c.State() == StateCancelled { return nil }

    if !sawEnd {
        c.setState(StateFailed)
        c.mu.Lock()
        c.err = errors.New("connection to server lost")
        c.mu.Unlock()
        return c.Err()
    }
    if streamErr != nil || report == nil {
        if streamErr == nil { streamErr = errors.New("stream ended without a result") }
        c.mu.Lock()
        c.state = StateFailed
        c.err = streamErr
        c.mu.Unlock()
        return streamErr
    }
    c.mu.Lock()
    c.state = StateCompleted
    c.report = report
    c.mu.Unlock()
    return nil
}

// Extract runs a batch extraction through POST /timeline-api. It shares the
// in-progress guard with Start.
func (c *Consumer) Extract(ctx context.Context, p services.Params) (*domain.Report, error) {
    if !c.begin() { return nil, nil }
    defer func() {
        // Batch mode has no stream to keep open; the guard drops back to a
        // terminal state as soon as the call returns.
        if c.State() == StateConnecting || c.State() == StateStreaming { c.setState(StateIdle) }
    }()

    body, err := json.Marshal(map[string]any{
        "baseUrl":   p.BaseURL,
        "authToken": p.AuthToken,
        "userId":    p.UserID,
    })
    if err != nil { return nil, err }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/timeline-api", bytes.NewReader(body))
    if err != nil { return nil, err }
    req.Header.Set("Content-Type", "application/json")

    resp, err := c.http.Do(req)
    if err != nil {
        c.setState(StateFailed)
        return nil, err
    }
    defer resp.Body.Close()

    var out struct {
        domain.Report
        Error string `json:"error"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        c.setState(StateFailed)
        return nil, fmt.Errorf("decode response: %w", err)
    }
    if !out.Success {
        c.setState(StateFailed)
        msg := out.Error
        if msg == "" { msg = fmt.Sprintf("extraction failed with status %d", resp.StatusCode) }
        c.mu.Lock()
        c.err = errors.New(msg)
        c.mu.Unlock()
        return nil, c.Err()
    }
    c.mu.Lock()
    c.state = StateCompleted
    c.report = &out.Report
    c.mu.Unlock()
    return c.Report(), nil
}
