package api

import (
	"net/http"
	"time"

	"evaljudge/internal/apperr"
	"evaljudge/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operator tooling and browser dashboards both call this from arbitrary
	// origins in local/dev deployments; production deployments front this
	// server with their own origin-checking reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const statusPollInterval = 300 * time.Millisecond

// watchTask pushes task snapshots over a websocket until the task reaches a
// terminal state or the client disconnects. This complements, never
// replaces, polling GET /task/:id: a disconnecting client has no effect on
// the task itself.
func (s *Server) watchTask(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.Scheduler.GetTask(id); !ok {
		respondError(c, apperr.New(apperr.TaskNotFound))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var lastStatus scheduler.Status
	for {
		snap, ok := s.Scheduler.GetTask(id)
		if !ok {
			return
		}
		if snap.Status != lastStatus {
			if err := conn.WriteJSON(taskSnapshotJSON(snap)); err != nil {
				return
			}
			lastStatus = snap.Status
		}
		if snap.Status == scheduler.Completed || snap.Status == scheduler.Failed {
			return
		}

		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}
	}
}
