package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/status"
)

const heartbeatInterval = 15 * time.Second

func statusKeyQuery(c *gin.Context) (string, error) {
	key := c.Query("status_key")
	if key == "" {
		return "", fmt.Errorf("dashboard: status_key is required: %w", apperr.ErrMissingField)
	}
	return key, nil
}

func handleStatus(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := statusKeyQuery(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		e, err := s.Board.Get(c.Request.Context(), key, auth.GetPrincipal(c).Scopes)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

// handleStatusEvents streams "status" events for one board entry until it
// leaves the importing state or the client goes away.
func handleStatusEvents(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := statusKeyQuery(c)
		if err != nil {
			s.renderError(c, err)
			return
		}
		ctx := c.Request.Context()
		scopes := auth.GetPrincipal(c).Scopes
		e, err := s.Board.Get(ctx, key, scopes)
		if err != nil {
			s.renderError(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		writeSSE(c.Writer, "status", e)
		c.Writer.Flush()
		if e.Status != status.StatusImporting {
			return
		}

		ticker := time.NewTicker(s.StatusPoll)
		heartbeat := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		defer heartbeat.Stop()

		last := e.Updated
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				e, err := s.Board.Lookup(ctx, key)
				if err != nil {
					// Expired entries end the stream.
					writeSSE(c.Writer, "error", map[string]string{"detail": err.Error()})
					c.Writer.Flush()
					return
				}
				if e.Updated.Equal(last) {
					continue
				}
				last = e.Updated
				writeSSE(c.Writer, "status", e)
				c.Writer.Flush()
				if e.Status != status.StatusImporting {
					return
				}
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
