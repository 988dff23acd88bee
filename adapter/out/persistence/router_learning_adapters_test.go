package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query_router/core/domain"
)

func TestEventAdapter_AppendAndList(t *testing.T) {
	ctx := context.Background()
	events := NewEventAdapter(newTestDB(t))
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &domain.RoutingEvent{
		TicketID:  "T-1",
		EventType: domain.EventTicketCreated,
		EventData: map[string]any{"channel": "email"},
		Timestamp: at,
	}
	require.NoError(t, events.Append(ctx, first))
	require.NoError(t, events.Append(ctx, &domain.RoutingEvent{
		TicketID: "T-1", EventType: domain.EventTicketReassigned, Timestamp: at.Add(time.Second),
	}))
	require.NoError(t, events.Append(ctx, &domain.RoutingEvent{
		TicketID: "T-2", EventType: domain.EventTicketCreated, Timestamp: at,
	}))
	assert.NotZero(t, first.ID)

	list, err := events.ListByTicket(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.EventTicketCreated, list[0].EventType)
	assert.Equal(t, "email", list[0].EventData["channel"])
	assert.Equal(t, map[string]any{}, list[1].EventData)

	reassigned, err := events.TicketIDsWithEvent(ctx, domain.EventTicketReassigned)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"T-1": {}}, reassigned)
}

func TestPatternAdapter_ReinforceAndSet(t *testing.T) {
	ctx := context.Background()
	patterns := NewPatternAdapter(newTestDB(t))

	require.NoError(t, patterns.Reinforce(ctx, domain.PatternIntentKeyword, "billing_finance", "invoice", 1.0))
	require.NoError(t, patterns.Reinforce(ctx, domain.PatternIntentKeyword, "billing_finance", "invoice", 1.0))
	require.NoError(t, patterns.Reinforce(ctx, domain.PatternIntentKeyword, "billing_finance", "refund", 1.0))

	list, err := patterns.ListByKey(ctx, domain.PatternIntentKeyword, "billing_finance", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "invoice", list[0].PatternValue)
	assert.Equal(t, 2, list[0].UsageCount)

	require.NoError(t, patterns.Set(ctx, domain.PatternIntentKeyword, "billing_finance", "invoice", 0.3, 3))

	list, err = patterns.ListByKey(ctx, domain.PatternIntentKeyword, "billing_finance", 0.6, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "refund", list[0].PatternValue)

	all, err := patterns.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPatternAdapter_ListByValueOrdersByConfidence(t *testing.T) {
	ctx := context.Background()
	patterns := NewPatternAdapter(newTestDB(t))

	require.NoError(t, patterns.Set(ctx, domain.PatternTeamIntent, domain.TeamFinance, "billing_finance", 0.7, 9))
	require.NoError(t, patterns.Set(ctx, domain.PatternTeamIntent, "Treasury Team", "billing_finance", 0.9, 2))
	require.NoError(t, patterns.Set(ctx, domain.PatternTeamIntent, domain.TeamSales, "billing_finance", 0.2, 50))

	list, err := patterns.ListByValue(ctx, domain.PatternTeamIntent, "billing_finance", 0.6)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Treasury Team", list[0].PatternKey)
	assert.Equal(t, domain.TeamFinance, list[1].PatternKey)
}

func TestFeedbackAdapter_AppendAndList(t *testing.T) {
	ctx := context.Background()
	feedback := NewFeedbackAdapter(newTestDB(t))
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, team := range []string{domain.TeamFinance, domain.TeamCompliance} {
		require.NoError(t, feedback.Append(ctx, &domain.FeedbackRecord{
			TicketID:       "T-1",
			OriginalIntent: "billing_finance",
			OriginalTeam:   domain.TeamTechSupport,
			CorrectedTeam:  team,
			FeedbackType:   domain.FeedbackReassignment,
			FeedbackData:   map[string]any{"reason": "wrong queue"},
			CreatedAt:      at.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := feedback.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TeamCompliance, records[0].CorrectedTeam)
	assert.Equal(t, "", records[0].CorrectedIntent)
	assert.Equal(t, "wrong queue", records[0].FeedbackData["reason"])
}

func TestFeedbackAdapter_CountByType(t *testing.T) {
	ctx := context.Background()
	feedback := NewFeedbackAdapter(newTestDB(t))

	counts, err := feedback.CountByType(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	for i := 0; i < 3; i++ {
		require.NoError(t, feedback.Append(ctx, &domain.FeedbackRecord{TicketID: "T-1", FeedbackType: domain.FeedbackReassignment}))
	}
	require.NoError(t, feedback.Append(ctx, &domain.FeedbackRecord{TicketID: "T-2", FeedbackType: "manual_review"}))

	counts, err = feedback.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.FeedbackType]int{domain.FeedbackReassignment: 3, "manual_review": 1}, counts)
}

func TestTeamAdapter_SeedAndUpsert(t *testing.T) {
	ctx := context.Background()
	teams := NewTeamAdapter(newTestDB(t))

	n, err := SeedTeams(ctx, teams, domain.DefaultTeams)
	require.NoError(t, err)
	assert.Equal(t, len(domain.DefaultTeams), n)

	again, err := SeedTeams(ctx, teams, domain.DefaultTeams)
	require.NoError(t, err)
	assert.Zero(t, again)

	require.NoError(t, teams.Upsert(ctx, &domain.Team{Name: domain.TeamSales, Email: "deals@finlink.com"}))
	sales, err := teams.GetByName(ctx, domain.TeamSales)
	require.NoError(t, err)
	assert.Equal(t, "deals@finlink.com", sales.Email)

	unknown, err := teams.GetByName(ctx, "Nobody")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	list, err := teams.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(domain.DefaultTeams))
}
