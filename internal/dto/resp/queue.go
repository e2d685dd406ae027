package resp

import "staffdesk/internal/queue"

type QueueStatusResponse struct {
	Stats         queue.Stats    `json:"stats"`
	RecentActions []queue.Action `json:"recent_actions"`
	QueueSize     int            `json:"queue_size"`
	IsEmpty       bool           `json:"is_empty"`
}

type QueueActionsResponse struct {
	Actions []queue.Action `json:"actions"`
}

type SubmitResponse struct {
	ActionID string `json:"action_id"`
}
