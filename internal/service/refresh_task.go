package service

import "time"

// TaskTypeRefreshRate is the Asynq task type for out-of-band refresh jobs.
const TaskTypeRefreshRate = "rate:refresh"

// RefreshPayload is the payload structure for refresh Asynq tasks. The pair
// is informational; the job always resolves the pair configured when it runs.
type RefreshPayload struct {
	Base        string    `json:"base"`
	Target      string    `json:"target"`
	RequestedAt time.Time `json:"requested_at"`
}
