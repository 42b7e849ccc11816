package domain

import "encoding/json"

// TimelineItem is one record of the paginated timeline feed, decoded as the
// Taiga API returns it.
type TimelineItem struct {
    EventType string       `json:"event_type"`
    Created   string       `json:"created"`
    Data      TimelineData `json:"data"`
}

type TimelineData struct {
    Issue   *WorkItemPayload `json:"issue,omitempty"`
    Task    *WorkItemPayload `json:"task,omitempty"`
    Project *ProjectRef      `json:"project,omitempty"`
}

// WorkItemPayload is the issue-or-task sub-object embedded in a timeline
// event. Ref is absent on some event kinds.
type WorkItemPayload struct {
    ID      int64  `json:"id"`
    Ref     *int64 `json:"ref,omitempty"`
    Subject string `json:"subject,omitempty"`
}

type ProjectRef struct {
    ID   int64  `json:"id"`
    Name string `json:"name"`
}

const (
    ItemTypeIssue = "issue"
    ItemTypeTask  = "task"
)

// UniqueWorkItem is a timeline work item deduplicated by ID across all pages
// of a single run. First occurrence wins.
type UniqueWorkItem struct {
    ID        int64
    Type      string // ItemTypeIssue or ItemTypeTask
    Ref       string // issue/task ref, falls back to the raw ID
    Subject   string
    EventType string
    Project   string // empty when the event carried no project
    Created   string
}

// HistoryEntry is one record of the per-item history/comment feed.
type HistoryEntry struct {
    User        HistoryUser `json:"user"`
    Comment     string      `json:"comment"`
    CommentHTML string      `json:"comment_html"`
    CreatedAt   string      `json:"created_at"`
}

type HistoryUser struct {
    PK json.Number `json:"pk"`
}

// CommentRecord is a user comment that carried at least one time token.
type CommentRecord struct {
    CommentHTML string  `json:"comment_html"`
    Comment     string  `json:"comment"`
    CreatedAt   string  `json:"created_at"`
    TimeValue   float64 `json:"time_value"`
}

// TaskTimeSummary aggregates the qualifying comments of one work item.
type TaskTimeSummary struct {
    TotalTime float64
    Comments  []CommentRecord
}

// ResultRow is one line of the final report. The task* fields duplicate the
// item* fields for consumers written against the pre-issue-support payload.
type ResultRow struct {
    ItemID         int64           `json:"itemId"`
    ItemType       string          `json:"itemType"`
    ItemRef        string          `json:"itemRef"`
    ItemSubject    string          `json:"itemSubject"`
    EventType      string          `json:"eventType"`
    Comment        string          `json:"comment"`
    TimeValue      float64         `json:"timeValue"`
    Created        string          `json:"created"`
    ProjectName    string          `json:"projectName"`
    CommentDetails []CommentRecord `json:"commentDetails"`
    TaskID         int64           `json:"taskId"`
    TaskRef        string          `json:"taskRef"`
    TaskSubject    string          `json:"taskSubject"`
}

type Summary struct {
    TotalItems         int     `json:"totalItems"`
    TotalTime          float64 `json:"totalTime"`
    TotalTimeFormatted string  `json:"totalTimeFormatted"`
    PagesProcessed     int     `json:"pagesProcessed"`
    UniqueTasksFound   int     `json:"uniqueTasksFound"`
    TasksWithTimeData  int     `json:"tasksWithTimeData"`
    CutoffDate         string  `json:"cutoffDate"`
    ExtractionDate     string  `json:"extractionDate"`
}

// Report is the final extraction output. Immutable once built.
type Report struct {
    Success bool        `json:"success"`
    Items   []ResultRow `json:"items"`
    Summary Summary     `json:"summary"`
}
