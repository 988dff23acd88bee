package learning

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query_router/core/domain"
	"query_router/pkg/apperr"
)

// =============================================================================
// In-memory repositories
// =============================================================================

type memStore struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	events   []*domain.RoutingEvent
	patterns map[[3]string]*domain.LearningPattern
	feedback []*domain.FeedbackRecord
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		tickets:  map[string]*domain.Ticket{},
		patterns: map[[3]string]*domain.LearningPattern{},
	}
}

type ticketRepo struct{ *memStore }
type eventRepo struct{ *memStore }
type patternRepo struct{ *memStore }
type feedbackRepo struct{ *memStore }

func (r ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.tickets[t.TicketID] = t
	return nil
}
func (r ticketRepo) CreateWithEvents(_ context.Context, t *domain.Ticket, events []*domain.RoutingEvent) error {
	r.tickets[t.TicketID] = t
	r.events = append(r.events, events...)
	return nil
}
func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	return r.tickets[id], r.err
}
func (r ticketRepo) List(context.Context, *domain.TicketFilter) ([]*domain.Ticket, error) {
	return nil, nil
}
func (r ticketRepo) ListAll(context.Context) ([]*domain.Ticket, error) {
	if r.err != nil {
		return nil, r.err
	}
	ids := make([]string, 0, len(r.tickets))
	for id := range r.tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*domain.Ticket, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.tickets[id])
	}
	return out, nil
}
func (r ticketRepo) UpdateStatus(context.Context, string, domain.TicketStatus, time.Time) error {
	return nil
}
func (r ticketRepo) UpdateAssignedTeam(context.Context, string, string, time.Time) error { return nil }
func (r ticketRepo) UpdateResponse(context.Context, string, string, time.Time) error     { return nil }
func (r ticketRepo) Stats(context.Context) (*domain.TicketStats, error)                  { return nil, nil }
func (r ticketRepo) Delete(context.Context, string) error                                { return nil }
func (r ticketRepo) DeleteOlderThan(context.Context, time.Time) (int64, error)           { return 0, nil }

func (r eventRepo) Append(_ context.Context, e *domain.RoutingEvent) error {
	r.events = append(r.events, e)
	return nil
}
func (r eventRepo) ListByTicket(_ context.Context, id string) ([]*domain.RoutingEvent, error) {
	var out []*domain.RoutingEvent
	for _, e := range r.events {
		if e.TicketID == id {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r eventRepo) TicketIDsWithEvent(_ context.Context, t domain.EventType) (map[string]struct{}, error) {
	set := map[string]struct{}{}
	for _, e := range r.events {
		if e.EventType == t {
			set[e.TicketID] = struct{}{}
		}
	}
	return set, nil
}

func (r patternRepo) Reinforce(_ context.Context, pt domain.PatternType, key, value string, conf float64) error {
	if r.err != nil {
		return r.err
	}
	k := [3]string{string(pt), key, value}
	if p, ok := r.patterns[k]; ok {
		p.UsageCount++
		p.Confidence = conf
		return nil
	}
	r.patterns[k] = &domain.LearningPattern{PatternType: pt, PatternKey: key, PatternValue: value, Confidence: conf, UsageCount: 1}
	return nil
}
func (r patternRepo) Set(_ context.Context, pt domain.PatternType, key, value string, conf float64, usage int) error {
	r.patterns[[3]string{string(pt), key, value}] = &domain.LearningPattern{
		PatternType: pt, PatternKey: key, PatternValue: value, Confidence: conf, UsageCount: usage,
	}
	return nil
}
func (r patternRepo) List(_ context.Context, pt domain.PatternType) ([]*domain.LearningPattern, error) {
	var out []*domain.LearningPattern
	for _, p := range r.patterns {
		if p.PatternType == pt {
			out = append(out, p)
		}
	}
	return out, nil
}
func (r patternRepo) ListByKey(_ context.Context, pt domain.PatternType, key string, minConf float64, limit int) ([]*domain.LearningPattern, error) {
	var out []*domain.LearningPattern
	for _, p := range r.patterns {
		if p.PatternType == pt && p.PatternKey == key && p.Confidence >= minConf {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].PatternValue < out[j].PatternValue
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (r patternRepo) ListByValue(_ context.Context, pt domain.PatternType, value string, minConf float64) ([]*domain.LearningPattern, error) {
	var out []*domain.LearningPattern
	for _, p := range r.patterns {
		if p.PatternType == pt && p.PatternValue == value && p.Confidence >= minConf {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].UsageCount > out[j].UsageCount
	})
	return out, nil
}

func (r feedbackRepo) Append(_ context.Context, f *domain.FeedbackRecord) error {
	r.feedback = append(r.feedback, f)
	return nil
}
func (r feedbackRepo) List(_ context.Context, limit int) ([]*domain.FeedbackRecord, error) {
	if len(r.feedback) > limit {
		return r.feedback[:limit], nil
	}
	return r.feedback, nil
}
func (r feedbackRepo) CountByType(context.Context) (map[domain.FeedbackType]int, error) {
	counts := map[domain.FeedbackType]int{}
	for _, f := range r.feedback {
		counts[f.FeedbackType]++
	}
	return counts, r.err
}

func newTestEngine() (*Engine, *memStore) {
	s := newMemStore()
	return NewEngine(ticketRepo{s}, eventRepo{s}, patternRepo{s}, feedbackRepo{s}), s
}

func snapshot(s *memStore) map[[3]string]domain.LearningPattern {
	out := make(map[[3]string]domain.LearningPattern, len(s.patterns))
	for k, p := range s.patterns {
		out[k] = *p
	}
	return out
}

func addTicket(s *memStore, id string, intent domain.Intent, team, message string) {
	s.tickets[id] = &domain.Ticket{TicketID: id, Intent: intent, AssignedTeam: team, Message: message}
}

// =============================================================================
// Tests
// =============================================================================

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name    string
		message string
		subject string
		want    []string
	}{
		{"drops stop words and short tokens", "The API for our webhook is failing", "", []string{"webhook", "failing"}},
		{"keeps repeats", "refund refund please", "", []string{"refund", "refund", "please"}},
		{"subject appended", "invoice", "Billing Query", []string{"invoice", "billing", "query"}},
		{"digits split tokens", "error403 code", "", []string{"code"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeywords(tt.message, tt.subject))
		})
	}
}

func TestLearnFromTicket(t *testing.T) {
	engine, s := newTestEngine()
	ctx := context.Background()

	ticket := &domain.Ticket{
		TicketID: "EML-M-1", Intent: domain.IntentBillingFinance, AssignedTeam: domain.TeamFinance,
		Message: "invoice invoice mismatch",
	}
	require.NoError(t, engine.LearnFromTicket(ctx, ticket))
	require.NoError(t, engine.LearnFromTicket(ctx, ticket))

	invoice := s.patterns[[3]string{"intent_keyword", "billing_finance", "invoice"}]
	require.NotNil(t, invoice)
	assert.Equal(t, 4, invoice.UsageCount)
	assert.Equal(t, 1.0, invoice.Confidence)

	team := s.patterns[[3]string{"team_intent", domain.TeamFinance, "billing_finance"}]
	require.NotNil(t, team)
	assert.Equal(t, 2, team.UsageCount)
}

func TestLearnFromTicket_StoreErrorIsAppError(t *testing.T) {
	engine, s := newTestEngine()
	s.err = errors.New("disk full")

	err := engine.LearnFromTicket(context.Background(), &domain.Ticket{Intent: domain.IntentSalesInquiry, Message: "demo please"})

	require.Error(t, err)
	assert.Equal(t, apperr.CodeDatabaseError, apperr.AsAppError(err).Code)
}

func TestLearnFromReassignment(t *testing.T) {
	engine, s := newTestEngine()
	ctx := context.Background()
	addTicket(s, "T1", domain.IntentKYCVerification, domain.TeamTriage, "verification pending")

	require.NoError(t, engine.LearnFromReassignment(ctx, "T1", domain.TeamTriage, domain.TeamKYC, "", "clearly KYC"))

	require.Len(t, s.feedback, 1)
	assert.Equal(t, domain.FeedbackReassignment, s.feedback[0].FeedbackType)
	assert.Equal(t, "clearly KYC", s.feedback[0].FeedbackData["reason"])

	team, ok, err := engine.GetLearnedTeamForIntent(ctx, domain.IntentKYCVerification)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.TeamKYC, team)
}

func TestAnalyzeAndUpdatePatterns_Thresholds(t *testing.T) {
	engine, s := newTestEngine()
	ctx := context.Background()

	addTicket(s, "T1", domain.IntentTechnicalSupport, domain.TeamTechSupport, "webhook timeout again")
	addTicket(s, "T2", domain.IntentTechnicalSupport, domain.TeamTechSupport, "webhook retries")
	addTicket(s, "T3", domain.IntentTechnicalSupport, domain.TeamTriage, "sandbox question")

	report, err := engine.AnalyzeAndUpdatePatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TicketsScanned)
	assert.Equal(t, 1, report.TeamPatterns)
	assert.Equal(t, 1, report.KeywordPatterns)

	team := s.patterns[[3]string{"team_intent", domain.TeamTechSupport, "technical_support"}]
	require.NotNil(t, team)
	assert.InDelta(t, 0.2, team.Confidence, 1e-9)
	assert.Equal(t, 2, team.UsageCount)

	webhook := s.patterns[[3]string{"intent_keyword", "technical_support", "webhook"}]
	require.NotNil(t, webhook)
	assert.InDelta(t, 0.4, webhook.Confidence, 1e-9)

	assert.Nil(t, s.patterns[[3]string{"intent_keyword", "technical_support", "timeout"}], "single use is below threshold")
}

func TestAnalyzeAndUpdatePatterns_Idempotent(t *testing.T) {
	engine, s := newTestEngine()
	ctx := context.Background()

	for i, msg := range []string{"refund delayed", "refund missing", "refund again", "invoice refund"} {
		addTicket(s, string(rune('A'+i)), domain.IntentBillingFinance, domain.TeamFinance, msg)
	}

	_, err := engine.AnalyzeAndUpdatePatterns(ctx)
	require.NoError(t, err)
	first := snapshot(s)

	_, err = engine.AnalyzeAndUpdatePatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, snapshot(s))
}

func TestAnalyzeAndUpdatePatterns_SkipsReassignedTickets(t *testing.T) {
	engine, s := newTestEngine()
	ctx := context.Background()

	addTicket(s, "T1", domain.IntentSalesInquiry, domain.TeamFinance, "reseller margin")
	addTicket(s, "T2", domain.IntentSalesInquiry, domain.TeamFinance, "reseller margin")
	s.events = append(s.events, &domain.RoutingEvent{TicketID: "T2", EventType: domain.EventTicketReassigned})

	report, err := engine.AnalyzeAndUpdatePatterns(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TicketsReassigned)
	assert.Zero(t, report.TeamPatterns)
	assert.Zero(t, report.KeywordPatterns)
	assert.Empty(t, s.patterns)
}

func TestAnalyzeAndUpdatePatterns_ListError(t *testing.T) {
	engine, s := newTestEngine()
	s.err = errors.New("connection reset")

	_, err := engine.AnalyzeAndUpdatePatterns(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.IsAppError(err))
}

func TestGetLearnedKeywordsForIntent(t *testing.T) {
	engine, s := newTestEngine()
	ctx := context.Background()
	repo := patternRepo{s}

	require.NoError(t, repo.Set(ctx, domain.PatternIntentKeyword, "billing_finance", "ledger", 1.0, 9))
	require.NoError(t, repo.Set(ctx, domain.PatternIntentKeyword, "billing_finance", "payout", 0.8, 4))
	require.NoError(t, repo.Set(ctx, domain.PatternIntentKeyword, "billing_finance", "weak", 0.4, 50))
	require.NoError(t, repo.Set(ctx, domain.PatternIntentKeyword, "sales_inquiry", "reseller", 1.0, 7))

	keywords, err := engine.GetLearnedKeywordsForIntent(ctx, domain.IntentBillingFinance)
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger", "payout"}, keywords)
}

func TestGetLearnedTeamForIntent(t *testing.T) {
	engine, s := newTestEngine()
	ctx := context.Background()
	repo := patternRepo{s}

	_, ok, err := engine.GetLearnedTeamForIntent(ctx, domain.IntentSalesInquiry)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, domain.PatternTeamIntent, "Partner Team", "sales_inquiry", 0.8, 20))
	require.NoError(t, repo.Set(ctx, domain.PatternTeamIntent, domain.TeamSales, "sales_inquiry", 1.0, 3))

	team, ok, err := engine.GetLearnedTeamForIntent(ctx, domain.IntentSalesInquiry)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.TeamSales, team)
}

func TestStats(t *testing.T) {
	engine, s := newTestEngine()
	ctx := context.Background()
	addTicket(s, "T1", domain.IntentKYCVerification, domain.TeamKYC, "document upload")

	require.NoError(t, engine.LearnFromTicket(ctx, s.tickets["T1"]))
	require.NoError(t, engine.LearnFromReassignment(ctx, "T1", domain.TeamKYC, domain.TeamCompliance, "kyc_verification", "aml"))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalPatterns)
	assert.Equal(t, map[string]int{"intent_keyword": 2, "team_intent": 2}, stats.PatternTypes)
	assert.Equal(t, 1, stats.TotalFeedback)
	assert.Equal(t, 1, stats.Reassignments)
	assert.Equal(t, map[string]int{"kyc_verification": 2}, stats.TopLearnedIntents)
}

func TestStats_CountsAllFeedback(t *testing.T) {
	engine, s := newTestEngine()
	for i := 0; i < 1500; i++ {
		s.feedback = append(s.feedback, &domain.FeedbackRecord{TicketID: "T1", FeedbackType: domain.FeedbackReassignment})
	}
	s.feedback = append(s.feedback, &domain.FeedbackRecord{TicketID: "T2", FeedbackType: "manual_review"})

	stats, err := engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1501, stats.TotalFeedback)
	assert.Equal(t, 1500, stats.Reassignments)
}
