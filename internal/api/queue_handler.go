package api

import (
	"net/http"
	"strconv"

	"staffdesk/internal/dto/resp"
	"staffdesk/internal/queue"

	"github.com/gin-gonic/gin"
)

const recentActionLimit = 20

type QueueHandler struct {
	queue QueueProvider
}

func NewQueueHandler(q QueueProvider) *QueueHandler {
	return &QueueHandler{queue: q}
}

// Status returns the stats snapshot plus the most recent actions. This is
// the only feedback channel for action outcomes; nothing is pushed to
// submitters.
func (h *QueueHandler) Status(c *gin.Context) {
	actions := h.queue.Actions("", nil)
	if len(actions) > recentActionLimit {
		actions = actions[len(actions)-recentActionLimit:]
	}

	c.JSON(http.StatusOK, resp.QueueStatusResponse{
		Stats:         h.queue.Stats(),
		RecentActions: actions,
		QueueSize:     h.queue.Size(),
		IsEmpty:       h.queue.IsEmpty(),
	})
}

// Actions lists action snapshots with optional status and user_id filters.
func (h *QueueHandler) Actions(c *gin.Context) {
	status := queue.Status(c.Query("status"))

	var userID *int64
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = &id
	}

	c.JSON(http.StatusOK, resp.QueueActionsResponse{
		Actions: h.queue.Actions(status, userID),
	})
}

// Action returns one action snapshot by id.
func (h *QueueHandler) Action(c *gin.Context) {
	action := h.queue.Get(c.Param("id"))
	if action == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "action not found"})
		return
	}
	c.JSON(http.StatusOK, action)
}
