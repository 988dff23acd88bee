// Package messaging provides the Redis Streams learning queue.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"query_router/core/domain"
	"query_router/core/port/out"
	"query_router/pkg/snowflake"
)

// Stream names
const (
	StreamLearnTicket       = "learning:ticket"
	StreamLearnReassignment = "learning:reassignment"
	StreamAnalyze           = "learning:analyze"
)

// LearningStreams lists every stream the worker consumes.
var LearningStreams = []string{StreamLearnTicket, StreamLearnReassignment, StreamAnalyze}

// RedisProducer implements out.LearningJobPublisher using Redis Streams.
type RedisProducer struct {
	client *redis.Client
	ids    *snowflake.Generator
}

var _ out.LearningJobPublisher = (*RedisProducer)(nil)

// NewRedisProducer creates a new RedisProducer. ids may be nil, in which
// case jobs keep whatever JobID the caller set.
func NewRedisProducer(client *redis.Client, ids *snowflake.Generator) *RedisProducer {
	return &RedisProducer{client: client, ids: ids}
}

// PublishLearnTicket publishes a learn-from-ticket job.
func (p *RedisProducer) PublishLearnTicket(ctx context.Context, job *out.LearnTicketJob) error {
	if job.JobID == "" {
		job.JobID = p.jobID()
	}
	return p.publish(ctx, StreamLearnTicket, job)
}

// PublishLearnReassignment publishes a reassignment job.
func (p *RedisProducer) PublishLearnReassignment(ctx context.Context, job *out.LearnReassignmentJob) error {
	if job.JobID == "" {
		job.JobID = p.jobID()
	}
	return p.publish(ctx, StreamLearnReassignment, job)
}

// PublishAnalyze publishes a pattern analysis request.
func (p *RedisProducer) PublishAnalyze(ctx context.Context, job *out.AnalyzeJob) error {
	if job.JobID == "" {
		job.JobID = p.jobID()
	}
	return p.publish(ctx, StreamAnalyze, job)
}

func (p *RedisProducer) jobID() string {
	if p.ids == nil {
		return ""
	}
	return p.ids.String()
}

// publish publishes a job to a stream using go-redis.
func (p *RedisProducer) publish(ctx context.Context, stream string, job any) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]any{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

// =============================================================================
// Queue-backed learner
// =============================================================================

// LearningQueue stands in for the learning engine in the API process: it
// turns learning calls into stream jobs handled by the worker.
type LearningQueue struct {
	publisher out.LearningJobPublisher
	now       func() time.Time
}

// NewLearningQueue wraps a publisher.
func NewLearningQueue(publisher out.LearningJobPublisher) *LearningQueue {
	return &LearningQueue{
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LearnFromTicket enqueues the ticket; the worker reloads it by id.
func (q *LearningQueue) LearnFromTicket(ctx context.Context, t *domain.Ticket) error {
	if t == nil {
		return nil
	}
	return q.publisher.PublishLearnTicket(ctx, &out.LearnTicketJob{
		TicketID:  t.TicketID,
		CreatedAt: q.now(),
	})
}

// LearnFromReassignment enqueues a reassignment.
func (q *LearningQueue) LearnFromReassignment(ctx context.Context, ticketID, originalTeam, newTeam, originalIntent, reason string) error {
	return q.publisher.PublishLearnReassignment(ctx, &out.LearnReassignmentJob{
		TicketID:       ticketID,
		OriginalTeam:   originalTeam,
		NewTeam:        newTeam,
		OriginalIntent: originalIntent,
		Reason:         reason,
		CreatedAt:      q.now(),
	})
}

// RequestAnalysis enqueues a pattern analysis pass.
func (q *LearningQueue) RequestAnalysis(ctx context.Context, reason string) error {
	return q.publisher.PublishAnalyze(ctx, &out.AnalyzeJob{
		Reason:      reason,
		RequestedAt: q.now(),
	})
}
