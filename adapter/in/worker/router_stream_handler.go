package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"query_router/adapter/out/messaging"
)

// Submitter accepts messages for asynchronous processing.
type Submitter interface {
	Submit(msg *Message) bool
}

// StreamHandler bridges stream entries into the pool.
type StreamHandler struct {
	pool Submitter
}

var _ messaging.JobHandler = (*StreamHandler)(nil)

// NewStreamHandler creates a handler submitting to pool.
func NewStreamHandler(pool Submitter) *StreamHandler {
	return &StreamHandler{pool: pool}
}

// Handle decodes the entry and submits it. An error leaves the entry
// pending so it is claimed again later.
func (h *StreamHandler) Handle(_ context.Context, stream string, data []byte) error {
	jobType, ok := StreamJobType(stream)
	if !ok {
		return fmt.Errorf("unknown stream: %s", stream)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to decode %s entry: %w", stream, err)
	}

	if !h.pool.Submit(NewMessage(jobType, payload)) {
		return fmt.Errorf("worker pool not accepting jobs")
	}
	return nil
}

// StreamJobType maps a stream name to its job type.
func StreamJobType(stream string) (JobType, bool) {
	switch stream {
	case messaging.StreamLearnTicket:
		return JobLearnTicket, true
	case messaging.StreamLearnReassignment:
		return JobLearnReassignment, true
	case messaging.StreamAnalyze:
		return JobAnalyze, true
	}
	return "", false
}
