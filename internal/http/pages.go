package http

import (
    "net/http"

    "github.com/gin-gonic/gin"
)

// Landing serves the static tool index. Boundary-only; the real UI talks to
// /timeline-api directly.
func (h *Handlers) Landing(c *gin.Context) {
    c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(landingHTML))
}

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Timeline Pulse</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
           display: flex; align-items: center; justify-content: center; min-height: 100vh;
           background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: #333; margin: 0; }
    .container { background: white; border-radius: 20px; padding: 40px; max-width: 600px;
                 width: 90%; text-align: center; box-shadow: 0 20px 60px rgba(0,0,0,0.1); }
    h1 { color: #2563eb; }
    a.card { display: block; background: #f8fafc; border: 2px solid #e2e8f0; border-radius: 12px;
             padding: 25px; margin-top: 20px; text-decoration: none; color: inherit; }
    a.card:hover { border-color: #2563eb; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Timeline Pulse</h1>
    <p>Time-tracking extraction from the Taiga timeline API</p>
    <a class="card" href="/timeline-api"><h3>Timeline API</h3>
      <p>POST for a batch report, GET with stream=true for live progress</p></a>
    <a class="card" href="/info"><h3>Server Info</h3>
      <p>Runtime configuration and server status</p></a>
  </div>
</body>
</html>
`
