/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/config"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/domain"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/timetoken"
    "github.com/google/uuid"
    "github.com/rs/zerolog"
)

// Fetcher is the remote feed boundary (see adapters/taiga).
type Fetcher interface {
    TimelinePage(ctx context.Context, baseURL, token, userID string, page int) ([]domain.TimelineItem, error)
    ItemHistory(ctx context.Context, baseURL, token, itemType string, itemID int64) ([]domain.HistoryEntry, error)
}

// EventSink receives ordered progress events. A nil sink discards them,
// which is batch mode; the SSE handler forwards them frame by frame.
type EventSink func(event string, data map[string]any)

// Params identifies one extraction run.
type Params struct {
    BaseURL   string
    AuthToken string
    UserID    string
}

type Service struct {
    cfg  config.Config
    log  zerolog.Logger
    feed Fetcher
}

func New(cfg config.Config, log zerolog.Logger, feed Fetcher) *Service {
    return &Service{cfg: cfg, log: log, feed: feed}
}

// Run executes one extraction: collect timeline pages up to the monthly
// cutoff, fetch comments per unique work item, assemble the report. Item
// level failures are absorbed; only validation errors, panics and the wall
// clock deadline abort the run without a report.
func (s *Service) Run(ctx context.Context, p Params, sink EventSink) (rep *domain.Report, err error) {
    if sink == nil { sink = func(string, map[string]any) {} }
    defer func() {
        if r := recover(); r != nil {
            s.log.Error().Interface("panic", r).Msg("extraction: unexpected failure")
            err = errors.New("an unexpected error occurred")
            sink("error", map[string]any{"success": false, "error": err.Error()})
            rep = nil
        }
    }()

    p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
    if p.BaseURL == "" || strings.TrimSpace(p.AuthToken) == "" || strings.TrimSpace(p.UserID) == "" {
        return nil, errors.New("baseUrl, authToken and userId are required")
    }

    runID := uuid.NewString()
    log := s.log.With().Str("run_id", runID).Str("user_id", p.UserID).Logger()
    log.Info().Msg("extraction: start")
    sink("start", map[string]any{"message": "Starting timeline extraction...", "run_id": runID})

    cutoff := firstDayOfCurrentMonth()

    sink("progress", map[string]any{"message": "Step 1: Collecting timeline items...", "step": 1, "total_steps": 3})
    items, pages, timelineCount, err := s.collectTimeline(ctx, p, cutoff, sink, log)
    if err != nil {
        sink("error", map[string]any{"success": false, "error": err.Error()})
        return nil, err
    }
    log.Info().Int("unique_items", len(items)).Int("timeline_items", timelineCount).Int("pages", pages).Msg("extraction: timeline collected")

    sink("progress", map[string]any{
        "message":        fmt.Sprintf("Step 2: Fetching comments for %d unique tasks...", len(items)),
        "step":           2,
        "total_steps":    3,
        "unique_tasks":   len(items),
        "timeline_items": timelineCount,
    })
    summaries, err := s.collectComments(ctx, p, items, sink, log)
    if err != nil {
        sink("error", map[string]any{"success": false, "error": err.Error()})
        return nil, err
    }

    sink("progress", map[string]any{
        "message":         "Step 3: Processing final results...",
        "step":            3,
        "total_steps":     3,
        "tasks_with_time": len(summaries),
    })
    report := s.assembleReport(items, summaries, pages, cutoff, log)

    sink("complete", map[string]any{
        "message":              "Extraction completed successfully!",
        "total_items":          report.Summary.TotalItems,
        "total_time":           report.Summary.TotalTime,
        "total_time_formatted": report.Summary.TotalTimeFormatted,
    })
    sink("result", map[string]any{"success": true, "items": report.Items, "summary": report.Summary})
    log.Info().Int("items", report.Summary.TotalItems).Float64("total_time", report.Summary.TotalTime).Msg("extraction: completed")
    return report, nil
}

// collectTimeline walks the feed from page 1 and folds classified items into
// an insertion-ordered unique set. The feed is assumed reverse-chronological:
// the first before-cutoff item ends the whole scan, so a current-month item
// interleaved after an old one would be dropped. A failed page fetch also
// ends the scan, keeping what was collected.
func (s *Service) collectTimeline(ctx context.Context, p Params, cutoff time.Time, sink EventSink, log zerolog.Logger) ([]*domain.UniqueWorkItem, int, int, error) {
    var (
        order    []*domain.UniqueWorkItem
        seen     = map[int64]bool{}
        pages    int
        total    int
    )
    for page := 1; ; page++ {
        if err := ctx.Err(); err != nil { return nil, 0, 0, fatalErr(err) }
        sink("timeline_page", map[string]any{"message": fmt.Sprintf("Fetching timeline page %d...", page), "page": page})

        feed, err := s.feed.TimelinePage(ctx, p.BaseURL, p.AuthToken, p.UserID, page)
        if err != nil {
            if ctx.Err() != nil { return nil, 0, 0, fatalErr(ctx.Err()) }
            log.Warn().Err(err).Int("page", page).Msg("extraction: page fetch failed, stopping collection")
            break
        }
        pages++
        if len(feed) == 0 {
            sink("timeline_page", map[string]any{"message": "No more timeline data found", "page": page})
            break
        }

        foundOld := false
        for i := range feed {
            item := &feed[i]
            if beforeCutoff(item.Created, cutoff) {
                log.Info().Str("created", item.Created).Msg("extraction: reached pre-cutoff item, stopping")
                foundOld = true
                break
            }
            payload, itemType := classify(item)
            if payload == nil { continue }
            total++
            if seen[payload.ID] { continue }
            seen[payload.ID] = true
            order = append(order, &domain.UniqueWorkItem{
                ID:        payload.ID,
                Type:      itemType,
                Ref:       refString(payload),
                Subject:   subjectString(payload),
                EventType: item.EventType,
                Project:   projectName(item),
                Created:   item.Created,
            })
        }
        if foundOld { break }

        select {
        case <-ctx.Done():
            return nil, 0, 0, fatalErr(ctx.Err())
        case <-time.After(s.cfg.PageDelay):
        }
    }
    return order, pages, total, nil
}

// collectComments fetches the history of each unique item, keeps entries
// authored by the target user, and token-parses their comment bodies. A
// failed fetch skips that single item.
func (s *Service) collectComments(ctx context.Context, p Params, items []*domain.UniqueWorkItem, sink EventSink, log zerolog.Logger) (map[int64]domain.TaskTimeSummary, error) {
    summaries := map[int64]domain.TaskTimeSummary{}
    for i, item := range items {
        if err := ctx.Err(); err != nil { return nil, fatalErr(err) }
        sink("task_comments", map[string]any{
            "message":          fmt.Sprintf("Fetching comments for %s #%s (%d/%d)...", item.Type, item.Ref, i+1, len(items)),
            "item_id":          item.ID,
            "item_type":        item.Type,
            "item_ref":         item.Ref,
            "item_subject":     item.Subject,
            "event_type":       item.EventType,
            "current":          i + 1,
            "total":            len(items),
            "progress_percent": (i + 1) * 100 / len(items),
        })

        entries, err := s.feed.ItemHistory(ctx, p.BaseURL, p.AuthToken, item.Type, item.ID)
        if err != nil {
            if ctx.Err() != nil { return nil, fatalErr(ctx.Err()) }
            log.Warn().Err(err).Str("item_type", item.Type).Int64("item_id", item.ID).Msg("extraction: comment fetch failed, skipping item")
            sink("error", map[string]any{
                "message":   fmt.Sprintf("Error fetching comments for %s %d: %v", item.Type, item.ID, err),
                "item_id":   item.ID,
                "item_type": item.Type,
            })
            continue
        }
        sink("raw_api_response", map[string]any{
            "message":        fmt.Sprintf("Raw comment API response for %s #%d", item.Type, item.ID),
            "item_id":        item.ID,
            "item_type":      item.Type,
            "response_count": len(entries),
            "raw_response":   entries,
        })

        sum := summarizeEntries(entries, p.UserID)
        if sum.TotalTime > 0 {
            summaries[item.ID] = sum
            sink("time_found", map[string]any{
                "message":    fmt.Sprintf("Found %v hours in %s #%s", sum.TotalTime, item.Type, item.Ref),
                "item_id":    item.ID,
                "item_type":  item.Type,
                "item_ref":   item.Ref,
                "time_value": sum.TotalTime,
            })
        }

        select {
        case <-ctx.Done():
            return nil, fatalErr(ctx.Err())
        case <-time.After(s.cfg.CommentDelay):
        }
    }
    return summaries, nil
}

// summarizeEntries filters one item's history down to the target user's
// comments that carry time tokens. Zero-valued comments are dropped but do
// not affect the rest.
func summarizeEntries(entries []domain.HistoryEntry, userID string) domain.TaskTimeSummary {
    var sum domain.TaskTimeSummary
    for _, e := range entries {
        if !sameUser(e.User.PK.String(), userID) { continue }
        if e.CommentHTML == "" { continue }
        v := timetoken.Extract(e.CommentHTML)
        if v <= 0 { continue }
        sum.TotalTime += v
        sum.Comments = append(sum.Comments, domain.CommentRecord{
            CommentHTML: e.CommentHTML,
            Comment:     e.Comment,
            CreatedAt:   e.CreatedAt,
            TimeValue:   v,
        })
    }
    return sum
}

func (s *Service) assembleReport(items []*domain.UniqueWorkItem, summaries map[int64]domain.TaskTimeSummary, pages int, cutoff time.Time, log zerolog.Logger) *domain.Report {
    rows := make([]domain.ResultRow, 0, len(summaries))
    totalTime := 0.0
    for _, item := range items {
        sum, ok := summaries[item.ID]
        if !ok { continue }
        combined := &strings.Builder{}
        for _, cr := range sum.Comments {
            if combined.Len() > 0 { combined.WriteString(" | ") }
            combined.WriteString(timetoken.StripTags(cr.CommentHTML))
        }
        project := item.Project
        if project == "" { project = "Unknown" }
        rows = append(rows, domain.ResultRow{
            ItemID:         item.ID,
            ItemType:       item.Type,
            ItemRef:        item.Ref,
            ItemSubject:    item.Subject,
            EventType:      item.EventType,
            Comment:        combined.String(),
            TimeValue:      sum.TotalTime,
            Created:        item.Created,
            ProjectName:    project,
            CommentDetails: sum.Comments,
            TaskID:         item.ID,
            TaskRef:        item.Ref,
            TaskSubject:    item.Subject,
        })
        totalTime += sum.TotalTime
    }
    return &domain.Report{
        Success: true,
        Items:   rows,
        Summary: domain.Summary{
            TotalItems:         len(rows),
            TotalTime:          totalTime,
            TotalTimeFormatted: fmt.Sprintf("%.2f", totalTime),
            PagesProcessed:     pages,
            UniqueTasksFound:   len(items),
            TasksWithTimeData:  len(rows),
            CutoffDate:         cutoff.Format("2006-01-02"),
            ExtractionDate:     time.Now().Format("2006-01-02 15:04:05"),
        },
    }
}

// classify resolves the issue-or-task payload of one timeline event:
// event_type substring plus matching payload key first, then task payload,
// then issue payload. Unclassifiable events yield nil.
func classify(item *domain.TimelineItem) (*domain.WorkItemPayload, string) {
    if strings.Contains(item.EventType, domain.ItemTypeIssue) && item.Data.Issue != nil {
        return item.Data.Issue, domain.ItemTypeIssue
    }
    if strings.Contains(item.EventType, domain.ItemTypeTask) && item.Data.Task != nil {
        return item.Data.Task, domain.ItemTypeTask
    }
    if item.Data.Task != nil { return item.Data.Task, domain.ItemTypeTask }
    if item.Data.Issue != nil { return item.Data.Issue, domain.ItemTypeIssue }
    return nil, ""
}

func firstDayOfCurrentMonth() time.Time {
    now := time.Now()
    return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
}

// beforeCutoff reports whether a feed timestamp is strictly before the
// cutoff. Unparseable timestamps count as current so bad data is kept
// rather than silently terminating the scan.
func beforeCutoff(created string, cutoff time.Time) bool {
    t, err := time.Parse(time.RFC3339, created)
    if err != nil { return false }
    return t.Before(cutoff)
}

// sameUser compares the feed's user pk against the requested user id. The
// feed sends numbers, callers often send strings; compare normalized forms.
func sameUser(pk, userID string) bool {
    pk = strings.TrimSpace(pk)
    userID = strings.TrimSpace(userID)
    return pk != "" && pk == userID
}

func refString(p *domain.WorkItemPayload) string {
    if p.Ref != nil { return fmt.Sprint(*p.Ref) }
    return fmt.Sprint(p.ID)
}

func subjectString(p *domain.WorkItemPayload) string {
    if p.Subject != "" { return p.Subject }
    return "Unknown"
}

func projectName(item *domain.TimelineItem) string {
    if item.Data.Project != nil { return item.Data.Project.Name }
    return ""
}

func fatalErr(err error) error {
    if errors.Is(err, context.DeadlineExceeded) {
        return errors.New("extraction exceeded the time limit")
    }
    return errors.New("extraction cancelled")
}
