/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package taiga

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/config"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/domain"
    "github.com/rs/zerolog"
)

// FeedError is a failed remote call: transport error or non-200 status.
// Status is 0 when the request never produced a response.
type FeedError struct {
    Op     string
    Status int
    Err    error
}

func (e *FeedError) Error() string {
    if e.Status != 0 { return fmt.Sprintf("taiga %s: http status %d", e.Op, e.Status) }
    return fmt.Sprintf("taiga %s: %v", e.Op, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// Client talks to the Taiga-style remote API. One instance is shared across
// extraction runs; per-run credentials travel with each call.
type Client struct {
    http *http.Client
    log  zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    tr := http.DefaultTransport
    if !cfg.TaigaVerifyTLS {
        log.Warn().Msg("taiga: TLS certificate validation disabled")
        tr = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
    }
    return &Client{
        http: &http.Client{Timeout: cfg.HTTPTimeout, Transport: tr},
        log:  log,
    }
}

// TimelinePage fetches one page (1-indexed) of the user timeline feed,
// filtered to relevant events. No retries; the pipeline decides what a
// failure means.
func (c *Client) TimelinePage(ctx context.Context, baseURL, token, userID string, page int) ([]domain.TimelineItem, error) {
    q := url.Values{}
    q.Set("only_relevant", "true")
    q.Set("page", strconv.Itoa(page))
    u := apiURL(baseURL, "/api/v1/timeline/user/"+url.PathEscape(userID), q)
    var out []domain.TimelineItem
    if err := c.doGet(ctx, "timeline", u, token, &out); err != nil { return nil, err }
    return out, nil
}

// ItemHistory fetches the comment-typed history records of one issue or
// task, verbatim. Filtering by user and time parsing happen in the pipeline.
func (c *Client) ItemHistory(ctx context.Context, baseURL, token, itemType string, itemID int64) ([]domain.HistoryEntry, error) {
    q := url.Values{}
    q.Set("type", "comment")
    u := apiURL(baseURL, "/api/v1/history/"+url.PathEscape(itemType)+"/"+strconv.FormatInt(itemID, 10), q)
    var out []domain.HistoryEntry
    if err := c.doGet(ctx, "history", u, token, &out); err != nil { return nil, err }
    return out, nil
}

func apiURL(base, path string, q url.Values) string {
    u := strings.TrimRight(base, "/") + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doGet(ctx context.Context, op, u, token string, out any) error {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
    if err != nil { return &FeedError{Op: op, Err: err} }
    // Browser-shaped headers; the upstream rejects bare API clients.
    req.Header.Set("Accept", "application/json, text/plain, */*")
    req.Header.Set("Accept-Language", "en")
    req.Header.Set("Authorization", "Bearer "+token)
    req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36")
    req.Header.Set("X-Lazy-Pagination", "true")

    resp, err := c.http.Do(req)
    if err != nil { return &FeedError{Op: op, Err: err} }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
        c.log.Debug().Int("status", resp.StatusCode).Str("op", op).Str("body", strings.TrimSpace(string(b))).Msg("taiga: non-200 response")
        return &FeedError{Op: op, Status: resp.StatusCode}
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return &FeedError{Op: op, Err: fmt.Errorf("decode: %w", err)}
    }
    return nil
}
