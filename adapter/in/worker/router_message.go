package worker

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

// Learning job types
const (
	JobLearnTicket       JobType = "learning.ticket"
	JobLearnReassignment JobType = "learning.reassignment"
	JobAnalyze           JobType = "learning.analyze"
)

// Message is one unit of work for the pool.
type Message struct {
	ID        string         `json:"id"`
	Type      JobType        `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

// NewMessage creates a message. The id is taken from payload["job_id"]
// when the producer set one.
func NewMessage(jobType JobType, payload map[string]any) *Message {
	id, _ := payload["job_id"].(string)
	if id == "" {
		id = uuid.New().String()
	}
	return &Message{
		ID:        id,
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// ParsePayload decodes the payload into T.
func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
