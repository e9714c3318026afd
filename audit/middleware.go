package audit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	mw "github.com/huddlelabs/huddle/middleware"
)

const maxCapturedBody = 4 << 10

// Middleware records every mutating API call (POST/PUT/DELETE) as an audit
// entry: who, what, request body, status, and latency. Read-only requests
// pass through untouched.
func Middleware(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxCapturedBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
		}

		start := time.Now()
		c.Next()

		entry := Entry{
			TraceID:    mw.GetTraceID(c),
			Operation:  c.Request.Method + " " + c.FullPath(),
			Request:    json.RawMessage(compactOrRaw(body)),
			Response:   gin.H{"status": c.Writer.Status()},
			IP:         c.ClientIP(),
			DurationMs: int(time.Since(start).Milliseconds()),
		}
		if accountID := mw.GetAccountID(c); accountID != 0 {
			entry.AccountID = &accountID
		}
		if len(c.Errors) > 0 {
			entry.Error = c.Errors.String()
		}
		svc.Log(entry)
	}
}

// compactOrRaw keeps the captured body as JSON when it parses, otherwise
// wraps it so the audit column stays valid JSON.
func compactOrRaw(body []byte) []byte {
	if len(body) == 0 {
		return []byte("null")
	}
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
