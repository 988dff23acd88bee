// Package agent runs the classify, route, draft and persist pipeline.
package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"query_router/core/domain"
	"query_router/core/port/in"
	"query_router/core/port/out"
	"query_router/core/service/classification"
	"query_router/core/service/routing"
	"query_router/core/service/ticket"
	"query_router/pkg/apperr"
	"query_router/pkg/logger"
	"query_router/pkg/metrics"
)

const statusRouted = "routed"

// Classifier classifies a message and can rebuild its learned overlay.
type Classifier interface {
	Classify(ctx context.Context, message string, subject *string) *domain.ClassificationResult
	Refresh(ctx context.Context) (*classification.Overlay, error)
}

// TicketLearner learns from a stored ticket. The learning engine and the
// stream publisher both satisfy it.
type TicketLearner interface {
	LearnFromTicket(ctx context.Context, t *domain.Ticket) error
}

// LearningStatsSource reports learning figures for the dashboard.
type LearningStatsSource interface {
	Stats(ctx context.Context) (*domain.LearningStats, error)
}

// Config tunes the orchestrator.
type Config struct {
	// RefreshEvery refreshes the classifier overlay after every Nth ticket.
	// Zero disables it.
	RefreshEvery     int
	BatchConcurrency int
}

// DefaultConfig returns the default orchestrator config.
func DefaultConfig() Config {
	return Config{RefreshEvery: 10, BatchConcurrency: 4}
}

// Deps groups the orchestrator collaborators. Drafter, Learner, Stats and
// Latency are optional.
type Deps struct {
	Classifier Classifier
	Tickets    *ticket.Manager
	Drafter    out.ResponseDrafter
	Learner    TicketLearner
	Stats      LearningStatsSource
	Latency    *metrics.LatencyRegistry
}

// Orchestrator implements in.RouterService.
type Orchestrator struct {
	classifier Classifier
	tickets    *ticket.Manager
	drafter    out.ResponseDrafter
	learner    TicketLearner
	stats      LearningStatsSource
	latency    *metrics.LatencyRegistry
	cfg        Config

	processed atomic.Int64
}

var _ in.RouterService = (*Orchestrator)(nil)

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultConfig().BatchConcurrency
	}
	if deps.Latency == nil {
		deps.Latency = metrics.NewLatencyRegistry(1000)
	}
	return &Orchestrator{
		classifier: deps.Classifier,
		tickets:    deps.Tickets,
		drafter:    deps.Drafter,
		learner:    deps.Learner,
		stats:      deps.Stats,
		latency:    deps.Latency,
		cfg:        cfg,
	}
}

// =============================================================================
// Process
// =============================================================================

// Process routes one message and persists the resulting ticket. Only input
// and persistence errors are returned; AI and learning problems degrade.
func (o *Orchestrator) Process(ctx context.Context, req *in.ProcessRequest) (*in.ProcessResult, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, apperr.InvalidInput("message", "must not be empty")
	}
	channel := domain.Channel(strings.ToLower(strings.TrimSpace(string(req.Channel))))
	start := time.Now()
	log := logger.WithContext(ctx)

	stageStart := time.Now()
	result := o.classifier.Classify(ctx, req.Message, req.Subject)
	o.latency.Since(metrics.StageClassify, stageStart)

	stageStart = time.Now()
	decision := routing.Decide(routing.InputFrom(result))
	o.latency.Since(metrics.StageRoute, stageStart)

	var (
		response *string
		draft    *out.Draft
	)
	if req.AutoRespond && o.drafter != nil {
		stageStart = time.Now()
		d, err := o.drafter.DraftResponse(ctx, &out.DraftRequest{
			Message:      req.Message,
			Intent:       result.Intent,
			Urgency:      decision.Urgency,
			CustomerName: CustomerName(req.Sender),
			Reasoning:    result.Reasoning,
			KeyEntities:  result.KeyEntities,
			Sentiment:    result.Sentiment,
			AssignedTeam: decision.FinalTeam,
			ResponseTime: decision.ResponseTime,
		})
		o.latency.Since(metrics.StageDraft, stageStart)
		if err != nil {
			log.WithError(err).Warn("[Orchestrator] response drafting failed, continuing without response")
		} else if d != nil {
			draft = d
			response = &d.Response
		}
	}

	escalation := routing.EscalationFor(decision)
	var events []ticket.EventInput
	if escalation != nil {
		events = append(events, ticket.EventInput{Type: domain.EventTicketEscalated, Data: map[string]any{
			"escalated":       escalation.Escalated,
			"urgency":         escalation.Urgency,
			"notified":        escalation.Notified,
			"escalation_time": escalation.EscalationTime,
		}})
	}
	events = append(events, ticket.EventInput{Type: domain.EventRoutingCompleted, Data: map[string]any{
		"classification":   result,
		"routing_decision": decision,
		"auto_respond":     req.AutoRespond,
		"escalation":       escalation,
	}})

	stageStart = time.Now()
	ticketID, err := o.tickets.Create(ctx, &ticket.CreateTicketInput{
		Channel:      channel,
		Message:      req.Message,
		Intent:       result.Intent,
		Urgency:      decision.Urgency,
		AssignedTeam: decision.FinalTeam,
		Sender:       req.Sender,
		Subject:      req.Subject,
		Response:     response,
		Metadata:     ticketMetadata(result, decision, draft, req.ExtraMetadata),
		Events:       events,
	})
	if err != nil {
		return nil, err
	}
	o.latency.Since(metrics.StagePersist, stageStart)

	o.learn(ctx, ticketID)
	o.latency.Since(metrics.StageTotal, start)

	log.WithFields(map[string]any{
		"ticket_id":  ticketID,
		"intent":     result.Intent,
		"urgency":    decision.Urgency,
		"team":       decision.FinalTeam,
		"method":     result.Method,
		"escalated":  escalation != nil,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("[Orchestrator] query routed")

	return &in.ProcessResult{
		TicketID:       ticketID,
		Channel:        channel,
		Classification: result,
		Routing:        decision,
		Response:       response,
		Escalation:     escalation,
		Status:         statusRouted,
	}, nil
}

// learn feeds the new ticket to the learner and refreshes the classifier
// every RefreshEvery tickets. Failures are logged only.
func (o *Orchestrator) learn(ctx context.Context, ticketID string) {
	log := logger.WithContext(ctx).WithField("ticket_id", ticketID)

	if o.learner != nil {
		t, err := o.tickets.Get(ctx, ticketID)
		if err != nil {
			log.WithError(err).Warn("[Orchestrator] reload for learning failed")
		} else if err := o.learner.LearnFromTicket(ctx, t); err != nil {
			log.WithError(err).Warn("[Orchestrator] learning from ticket failed")
		}
	}

	n := o.processed.Add(1)
	if o.cfg.RefreshEvery > 0 && n%int64(o.cfg.RefreshEvery) == 0 {
		if _, err := o.classifier.Refresh(ctx); err != nil {
			log.WithError(err).Warn("[Orchestrator] classifier refresh failed")
		}
	}
}

func ticketMetadata(c *domain.ClassificationResult, d *domain.RoutingDecision, draft *out.Draft, extra map[string]any) map[string]any {
	responseMeta := map[string]any{}
	if draft != nil {
		responseMeta["method"] = draft.Method
		responseMeta["templates_used"] = draft.TemplatesUsed
	}

	meta := map[string]any{
		"classification":    c,
		"routing_decision":  d,
		"response_metadata": responseMeta,
		"nlp_insights": map[string]any{
			"key_entities": c.KeyEntities,
			"sentiment":    c.Sentiment,
			"reasoning":    c.Reasoning,
		},
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

// CustomerName turns "john.doe@example.com" into "John Doe". Senders without
// an @ yield an empty name.
func CustomerName(sender *string) string {
	if sender == nil {
		return ""
	}
	local, _, ok := strings.Cut(*sender, "@")
	if !ok {
		return ""
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == ' ' || r == '\t'
	})
	for i, p := range parts {
		p = strings.ToLower(p)
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToTitle(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// Batch
// =============================================================================

var errEmptyRequest = errors.New("empty request")

// Batch processes every request concurrently and keeps input order. One
// failed item never affects the others.
func (o *Orchestrator) Batch(ctx context.Context, reqs []*in.ProcessRequest) []*in.BatchItemResult {
	results := make([]*in.BatchItemResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(o.cfg.BatchConcurrency)

	for i, req := range reqs {
		g.Go(func() error {
			if req == nil {
				results[i] = &in.BatchItemResult{Error: errEmptyRequest.Error()}
				return nil
			}
			res, err := o.Process(ctx, req)
			if err != nil {
				logger.WithContext(ctx).WithError(err).WithField("index", i).
					Warn("[Orchestrator] batch item failed")
				results[i] = &in.BatchItemResult{Error: err.Error(), Query: req}
				return nil
			}
			results[i] = &in.BatchItemResult{Result: res}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// =============================================================================
// Reads
// =============================================================================

// TicketDetails returns a ticket with its routing history.
func (o *Orchestrator) TicketDetails(ctx context.Context, ticketID string) (*domain.TicketDetails, error) {
	return o.tickets.Details(ctx, ticketID)
}

// DashboardStats combines ticket, learning and latency figures.
func (o *Orchestrator) DashboardStats(ctx context.Context) (*in.DashboardStats, error) {
	tickets, err := o.tickets.Stats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &in.DashboardStats{
		Tickets: tickets,
		Latency: o.latency.Summary(),
	}
	if o.stats != nil {
		learning, err := o.stats.Stats(ctx)
		if err != nil {
			return nil, err
		}
		stats.Learning = learning
	}
	return stats, nil
}
