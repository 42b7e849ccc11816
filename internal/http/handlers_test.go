package http

import (
    "bufio"
    "bytes"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/adapters/taiga"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/config"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/domain"
    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/services"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// newUpstream fakes the remote Taiga API with the two-item scenario: an
// issue with a qualifying comment and a task without one.
func newUpstream(t *testing.T) *httptest.Server {
    t.Helper()
    today := time.Now().Format(time.RFC3339)
    ref7, ref12 := int64(7), int64(12)
    page1 := []domain.TimelineItem{
        {
            EventType: "issues.issue.create",
            Created:   today,
            Data: domain.TimelineData{
                Issue:   &domain.WorkItemPayload{ID: 101, Ref: &ref7, Subject: "Broken login"},
                Project: &domain.ProjectRef{ID: 1, Name: "Website"},
            },
        },
        {
            EventType: "tasks.task.change",
            Created:   today,
            Data: domain.TimelineData{
                Task:    &domain.WorkItemPayload{ID: 202, Ref: &ref12, Subject: "Write docs"},
                Project: &domain.ProjectRef{ID: 1, Name: "Website"},
            },
        },
    }
    return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        switch {
        case r.URL.Path == "/api/v1/timeline/user/20":
            if r.URL.Query().Get("page") == "1" {
                json.NewEncoder(w).Encode(page1)
                return
            }
            w.Write([]byte("[]"))
        case r.URL.Path == "/api/v1/history/issue/101":
            fmt.Fprintf(w, `[{"user":{"pk":20},"comment":"Time: 4","comment_html":"<p>Time: 4</p>","created_at":%q}]`, today)
        case r.URL.Path == "/api/v1/history/task/202":
            fmt.Fprintf(w, `[{"user":{"pk":20},"comment":"done","comment_html":"<p>done</p>","created_at":%q}]`, today)
        default:
            http.NotFound(w, r)
        }
    }))
}

func newAPI(t *testing.T) *httptest.Server {
    t.Helper()
    cfg := config.Config{
        AppEnv:         "prod",
        HTTPTimeout:    5 * time.Second,
        ExtractTimeout: 10 * time.Second,
        PageDelay:      time.Millisecond,
        CommentDelay:   time.Millisecond,
        TaigaVerifyTLS: true,
    }
    log := zerolog.Nop()
    svc := services.New(cfg, log, taiga.NewClient(cfg, log))
    srv := httptest.NewServer(NewRouter(cfg, log, svc))
    t.Cleanup(srv.Close)
    return srv
}

func postJSON(t *testing.T, url string, body string) *http.Response {
    t.Helper()
    resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
    require.NoError(t, err)
    return resp
}

func TestExtractBatch(t *testing.T) {
    upstream := newUpstream(t)
    defer upstream.Close()
    api := newAPI(t)

    // userId intentionally a JSON number, as the browser client sends it
    body := fmt.Sprintf(`{"baseUrl":%q,"authToken":"tok","userId":20}`, upstream.URL+"/")
    resp := postJSON(t, api.URL+"/timeline-api", body)
    defer resp.Body.Close()
    require.Equal(t, http.StatusOK, resp.StatusCode)

    var report domain.Report
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
    assert.True(t, report.Success)
    require.Len(t, report.Items, 1)
    assert.Equal(t, int64(101), report.Items[0].ItemID)
    assert.Equal(t, 4.0, report.Items[0].TimeValue)
    assert.Equal(t, 2, report.Summary.PagesProcessed)
    assert.Equal(t, 2, report.Summary.UniqueTasksFound)
    assert.Equal(t, 1, report.Summary.TasksWithTimeData)
    assert.Equal(t, "4.00", report.Summary.TotalTimeFormatted)
}

func TestExtractMissingFields(t *testing.T) {
    api := newAPI(t)
    cases := []struct {
        body  string
        field string
    }{
        {`{"authToken":"tok","userId":"20"}`, "baseUrl"},
        {`{"baseUrl":"https://x","userId":"20"}`, "authToken"},
        {`{"baseUrl":"https://x","authToken":"tok"}`, "userId"},
    }
    for _, tc := range cases {
        resp := postJSON(t, api.URL+"/timeline-api", tc.body)
        var out map[string]any
        require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
        resp.Body.Close()
        assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
        assert.Equal(t, "Missing required field: "+tc.field, out["error"])
    }
}

func TestExtractInvalidJSON(t *testing.T) {
    api := newAPI(t)
    resp := postJSON(t, api.URL+"/timeline-api", "{not json")
    defer resp.Body.Close()
    assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExtractMethodNotAllowed(t *testing.T) {
    api := newAPI(t)
    req, _ := http.NewRequest(http.MethodDelete, api.URL+"/timeline-api", nil)
    resp, err := http.DefaultClient.Do(req)
    require.NoError(t, err)
    defer resp.Body.Close()
    assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestExtractGetProbe(t *testing.T) {
    api := newAPI(t)
    resp, err := http.Get(api.URL + "/timeline-api")
    require.NoError(t, err)
    defer resp.Body.Close()
    require.Equal(t, http.StatusOK, resp.StatusCode)
    var out map[string]any
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
    assert.Equal(t, "OK", out["status"])
    assert.Equal(t, "Timeline API is working", out["message"])
}

func TestStreamMissingField(t *testing.T) {
    api := newAPI(t)
    resp, err := http.Get(api.URL + "/timeline-api?stream=true&baseUrl=https://x&userId=20")
    require.NoError(t, err)
    defer resp.Body.Close()
    assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type sseFrame struct {
    name string
    data string
}

func readFrames(t *testing.T, r io.Reader) []sseFrame {
    t.Helper()
    var frames []sseFrame
    var cur sseFrame
    scan := bufio.NewScanner(r)
    scan.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
    for scan.Scan() {
        line := scan.Text()
        switch {
        case line == "":
            if cur.name != "" { frames = append(frames, cur) }
            cur = sseFrame{}
        case strings.HasPrefix(line, "event:"):
            cur.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
        case strings.HasPrefix(line, "data:"):
            cur.data += strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
        }
    }
    if cur.name != "" { frames = append(frames, cur) }
    return frames
}

func TestExtractStreamSSE(t *testing.T) {
    upstream := newUpstream(t)
    defer upstream.Close()
    api := newAPI(t)

    resp, err := http.Get(api.URL + "/timeline-api?stream=true&baseUrl=" + upstream.URL + "&authToken=tok&userId=20")
    require.NoError(t, err)
    defer resp.Body.Close()
    require.Equal(t, http.StatusOK, resp.StatusCode)
    assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

    frames := readFrames(t, resp.Body)
    require.NotEmpty(t, frames)
    assert.Equal(t, "start", frames[0].name)
    assert.Equal(t, "end", frames[len(frames)-1].name)

    var resultCount int
    var report domain.Report
    for _, f := range frames {
        if f.name == "result" {
            resultCount++
            require.NoError(t, json.Unmarshal([]byte(f.data), &report))
        }
    }
    require.Equal(t, 1, resultCount)
    // result frame carries the batch-mode payload shape
    assert.True(t, report.Success)
    require.Len(t, report.Items, 1)
    assert.Equal(t, 4.0, report.Items[0].TimeValue)
    assert.Equal(t, 2, report.Summary.UniqueTasksFound)
}

func TestHealthzInfoLanding(t *testing.T) {
    api := newAPI(t)

    resp, err := http.Get(api.URL + "/healthz")
    require.NoError(t, err)
    resp.Body.Close()
    assert.Equal(t, http.StatusOK, resp.StatusCode)

    resp, err = http.Get(api.URL + "/info")
    require.NoError(t, err)
    var info map[string]any
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
    resp.Body.Close()
    assert.NotEmpty(t, info["go_version"])

    resp, err = http.Get(api.URL + "/")
    require.NoError(t, err)
    body, _ := io.ReadAll(resp.Body)
    resp.Body.Close()
    assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
    assert.Contains(t, string(body), "Timeline Pulse")
}
