package taiga

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/MuhammadAbdullahSultan/timeline-pulse/internal/config"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func testClient() *Client {
    cfg := config.Config{HTTPTimeout: 2 * time.Second, TaigaVerifyTLS: true}
    return NewClient(cfg, zerolog.Nop())
}

func TestTimelinePage(t *testing.T) {
    var gotPath, gotAuth, gotPage, gotRelevant string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        gotPath = r.URL.Path
        gotAuth = r.Header.Get("Authorization")
        gotPage = r.URL.Query().Get("page")
        gotRelevant = r.URL.Query().Get("only_relevant")
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`[
            {"event_type":"issues.issue.create","created":"2025-08-05T10:00:00Z",
             "data":{"issue":{"id":101,"ref":7,"subject":"Broken login"},
                     "project":{"id":1,"name":"Website"}}}
        ]`))
    }))
    defer srv.Close()

    items, err := testClient().TimelinePage(context.Background(), srv.URL+"/", "tok-123", "20", 3)
    require.NoError(t, err)
    require.Len(t, items, 1)
    assert.Equal(t, "/api/v1/timeline/user/20", gotPath)
    assert.Equal(t, "Bearer tok-123", gotAuth)
    assert.Equal(t, "3", gotPage)
    assert.Equal(t, "true", gotRelevant)
    assert.Equal(t, "issues.issue.create", items[0].EventType)
    require.NotNil(t, items[0].Data.Issue)
    assert.Equal(t, int64(101), items[0].Data.Issue.ID)
    require.NotNil(t, items[0].Data.Project)
    assert.Equal(t, "Website", items[0].Data.Project.Name)
}

func TestItemHistory(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, "/api/v1/history/issue/101", r.URL.Path)
        assert.Equal(t, "comment", r.URL.Query().Get("type"))
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`[
            {"user":{"pk":20},"comment":"Time: 4","comment_html":"<p>Time: 4</p>","created_at":"2025-08-05T11:00:00Z"},
            {"user":{"pk":9},"comment":"looks good","comment_html":"<p>looks good</p>","created_at":"2025-08-05T12:00:00Z"}
        ]`))
    }))
    defer srv.Close()

    entries, err := testClient().ItemHistory(context.Background(), srv.URL, "tok", "issue", 101)
    require.NoError(t, err)
    require.Len(t, entries, 2)
    assert.Equal(t, "20", entries[0].User.PK.String())
    assert.Equal(t, "<p>Time: 4</p>", entries[0].CommentHTML)
}

func TestNon200IsFeedError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, "nope", http.StatusUnauthorized)
    }))
    defer srv.Close()

    _, err := testClient().TimelinePage(context.Background(), srv.URL, "bad", "20", 1)
    var fe *FeedError
    require.ErrorAs(t, err, &fe)
    assert.Equal(t, http.StatusUnauthorized, fe.Status)
    assert.Equal(t, "timeline", fe.Op)
}

func TestTransportFailureIsFeedError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
    srv.Close() // connection refused from here on

    _, err := testClient().ItemHistory(context.Background(), srv.URL, "tok", "task", 5)
    var fe *FeedError
    require.ErrorAs(t, err, &fe)
    assert.Zero(t, fe.Status)
    assert.Error(t, errors.Unwrap(fe))
}
