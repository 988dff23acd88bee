package out

import (
	"context"
	"time"
)

// LearnTicketJob asks the worker to learn from a freshly created ticket.
type LearnTicketJob struct {
	JobID     string    `json:"job_id"`
	TicketID  string    `json:"ticket_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LearnReassignmentJob carries a human reassignment to the learning engine.
type LearnReassignmentJob struct {
	JobID          string    `json:"job_id"`
	TicketID       string    `json:"ticket_id"`
	OriginalTeam   string    `json:"original_team"`
	NewTeam        string    `json:"new_team"`
	OriginalIntent string    `json:"original_intent"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnalyzeJob requests a full pattern analysis pass.
type AnalyzeJob struct {
	JobID       string    `json:"job_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// LearningJobPublisher enqueues learning work for the worker process.
type LearningJobPublisher interface {
	PublishLearnTicket(ctx context.Context, job *LearnTicketJob) error
	PublishLearnReassignment(ctx context.Context, job *LearnReassignmentJob) error
	PublishAnalyze(ctx context.Context, job *AnalyzeJob) error
}
