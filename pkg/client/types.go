package client

import (
	"encoding/json"

	"github.com/loykin/timewarden/internal/schedule"
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// InvokeResponse is the success envelope of POST /invoke/{call}.
type InvokeResponse struct {
	Result json.RawMessage `json:"result"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// ScheduleArgs is the argument object of create_schedule and update_schedule.
type ScheduleArgs struct {
	Schedule schedule.Schedule `json:"schedule"`
}

// IDArgs is the argument object of delete_schedule.
type IDArgs struct {
	ID int64 `json:"id"`
}

// ToggleArgs is the argument object of toggle_schedule.
type ToggleArgs struct {
	ID      int64 `json:"id"`
	Enabled bool  `json:"enabled"`
}
