package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query_router/core/domain"
	"query_router/core/port/out"
	"query_router/pkg/snowflake"
)

// fakeRedis answers commands from a hook so no server is needed.
type fakeRedis struct {
	mu      sync.Mutex
	cmds    []redis.Cmder
	pending []redis.XPendingExt
	msgs    []redis.XMessage
	err     error
}

func (f *fakeRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *fakeRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cmds = append(f.cmds, cmd)

		if f.err != nil {
			cmd.SetErr(f.err)
			return f.err
		}
		switch c := cmd.(type) {
		case *redis.XPendingExtCmd:
			c.SetVal(f.pending)
		case *redis.XMessageSliceCmd:
			c.SetVal(f.msgs)
		case *redis.StringCmd:
			c.SetVal("1700000000000-0")
		}
		return nil
	}
}

func (f *fakeRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeRedis) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.cmds))
	for i, c := range f.cmds {
		names[i] = c.Name()
	}
	return names
}

func (f *fakeRedis) find(name string) []redis.Cmder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []redis.Cmder
	for _, c := range f.cmds {
		if c.Name() == name {
			found = append(found, c)
		}
	}
	return found
}

func newFakeClient(t *testing.T) (*redis.Client, *fakeRedis) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	fake := &fakeRedis{}
	client.AddHook(fake)
	t.Cleanup(func() { client.Close() })
	return client, fake
}

func TestRedisProducer_PublishesJSONToStream(t *testing.T) {
	client, fake := newFakeClient(t)
	ids, err := snowflake.NewGenerator(7)
	require.NoError(t, err)
	producer := NewRedisProducer(client, ids)

	job := &out.LearnTicketJob{TicketID: "EML-H-20240101000000-0000ABCD"}
	require.NoError(t, producer.PublishLearnTicket(context.Background(), job))
	assert.NotEmpty(t, job.JobID)

	xadds := fake.find("xadd")
	require.Len(t, xadds, 1)
	args := xadds[0].Args()
	assert.Equal(t, StreamLearnTicket, args[1])
	assert.Equal(t, "data", args[len(args)-2])

	var decoded out.LearnTicketJob
	require.NoError(t, json.Unmarshal([]byte(args[len(args)-1].(string)), &decoded))
	assert.Equal(t, job.TicketID, decoded.TicketID)
	assert.Equal(t, job.JobID, decoded.JobID)
}

func TestRedisProducer_StreamPerJobType(t *testing.T) {
	client, fake := newFakeClient(t)
	producer := NewRedisProducer(client, nil)
	ctx := context.Background()

	require.NoError(t, producer.PublishLearnReassignment(ctx, &out.LearnReassignmentJob{TicketID: "t1"}))
	require.NoError(t, producer.PublishAnalyze(ctx, &out.AnalyzeJob{Reason: "manual"}))

	xadds := fake.find("xadd")
	require.Len(t, xadds, 2)
	assert.Equal(t, StreamLearnReassignment, xadds[0].Args()[1])
	assert.Equal(t, StreamAnalyze, xadds[1].Args()[1])
}

func TestRedisProducer_WrapsErrors(t *testing.T) {
	client, fake := newFakeClient(t)
	fake.err = errors.New("connection refused")
	producer := NewRedisProducer(client, nil)

	err := producer.PublishAnalyze(context.Background(), &out.AnalyzeJob{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish to learning:analyze")
}

type capturePublisher struct {
	tickets  []*out.LearnTicketJob
	reassign []*out.LearnReassignmentJob
	analyze  []*out.AnalyzeJob
}

func (c *capturePublisher) PublishLearnTicket(_ context.Context, job *out.LearnTicketJob) error {
	c.tickets = append(c.tickets, job)
	return nil
}

func (c *capturePublisher) PublishLearnReassignment(_ context.Context, job *out.LearnReassignmentJob) error {
	c.reassign = append(c.reassign, job)
	return nil
}

func (c *capturePublisher) PublishAnalyze(_ context.Context, job *out.AnalyzeJob) error {
	c.analyze = append(c.analyze, job)
	return nil
}

func TestLearningQueue(t *testing.T) {
	pub := &capturePublisher{}
	q := NewLearningQueue(pub)
	ctx := context.Background()

	require.NoError(t, q.LearnFromTicket(ctx, &domain.Ticket{TicketID: "CHT-L-1"}))
	require.NoError(t, q.LearnFromTicket(ctx, nil))
	require.NoError(t, q.LearnFromReassignment(ctx, "CHT-L-1", "Sales Team", "Finance Team", "sales_inquiry", "pricing dispute"))
	require.NoError(t, q.RequestAnalysis(ctx, "scheduled"))

	require.Len(t, pub.tickets, 1)
	assert.Equal(t, "CHT-L-1", pub.tickets[0].TicketID)
	require.Len(t, pub.reassign, 1)
	assert.Equal(t, out.LearnReassignmentJob{
		TicketID:       "CHT-L-1",
		OriginalTeam:   "Sales Team",
		NewTeam:        "Finance Team",
		OriginalIntent: "sales_inquiry",
		Reason:         "pricing dispute",
		CreatedAt:      pub.reassign[0].CreatedAt,
	}, *pub.reassign[0])
	require.Len(t, pub.analyze, 1)
	assert.Equal(t, "scheduled", pub.analyze[0].Reason)
}

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (h *recordingHandler) Handle(_ context.Context, stream string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, stream+"|"+string(data))
	return h.err
}

func newTestConsumer(client *redis.Client, handler JobHandler) *Consumer {
	return NewConsumer(client, &ConsumerConfig{
		Group:           "router-workers",
		Consumer:        "worker-1",
		Streams:         []string{StreamLearnTicket},
		Handler:         handler,
		Logger:          zerolog.Nop(),
		PendingIdleTime: time.Minute,
	})
}

func TestConsumer_AcksOnlyAfterSuccess(t *testing.T) {
	client, fake := newFakeClient(t)
	handler := &recordingHandler{}
	c := newTestConsumer(client, handler)
	ctx := context.Background()

	c.handleAndAck(ctx, StreamLearnTicket, redis.XMessage{ID: "1-0", Values: map[string]any{"data": `{"ticket_id":"a"}`}})
	assert.Len(t, fake.find("xack"), 1)

	handler.err = errors.New("db locked")
	c.handleAndAck(ctx, StreamLearnTicket, redis.XMessage{ID: "2-0", Values: map[string]any{"data": `{"ticket_id":"b"}`}})
	assert.Len(t, fake.find("xack"), 1, "failed message stays pending")

	c.handleAndAck(ctx, StreamLearnTicket, redis.XMessage{ID: "3-0", Values: map[string]any{"other": "x"}})
	assert.Len(t, handler.seen, 2, "malformed message never reaches the handler")
}

func TestConsumer_ClaimPendingRetriesIdleMessages(t *testing.T) {
	client, fake := newFakeClient(t)
	fake.pending = []redis.XPendingExt{
		{ID: "1-0", Consumer: "worker-2", Idle: 5 * time.Minute, RetryCount: 1},
		{ID: "2-0", Consumer: "worker-2", Idle: time.Second, RetryCount: 1},
	}
	fake.msgs = []redis.XMessage{{ID: "1-0", Values: map[string]any{"data": `{"ticket_id":"a"}`}}}
	handler := &recordingHandler{}
	c := newTestConsumer(client, handler)

	c.ClaimPending(context.Background())

	claims := fake.find("xclaim")
	require.Len(t, claims, 1, "only the idle message is claimed")
	assert.Equal(t, []string{StreamLearnTicket + `|{"ticket_id":"a"}`}, handler.seen)
	assert.Len(t, fake.find("xack"), 1)
}

func TestConsumer_ClaimPendingDeadLettersAfterMaxRetries(t *testing.T) {
	client, fake := newFakeClient(t)
	fake.pending = []redis.XPendingExt{{ID: "9-0", Idle: time.Hour, RetryCount: 3}}
	fake.msgs = []redis.XMessage{{ID: "9-0", Values: map[string]any{"data": `{"ticket_id":"z"}`}}}
	handler := &recordingHandler{}
	c := newTestConsumer(client, handler)

	c.ClaimPending(context.Background())

	assert.Empty(t, handler.seen)
	xadds := fake.find("xadd")
	require.Len(t, xadds, 1)
	assert.Equal(t, "dlq:"+StreamLearnTicket, xadds[0].Args()[1])
	assert.Len(t, fake.find("xack"), 1)
	assert.NotContains(t, fake.names(), "xclaim")
}

func TestIsBusyGroup(t *testing.T) {
	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("ERR no such key")))
}
