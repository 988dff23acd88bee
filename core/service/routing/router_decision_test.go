package routing

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"query_router/core/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name           string
		in             DecisionInput
		wantFinal      string
		wantUrgency    domain.Urgency
		wantEscalate   bool
		wantReview     bool
		wantResponse   string
		wantAdditional []string
	}{
		{
			name: "negative high with error code promotes to critical",
			in: DecisionInput{
				Intent: domain.IntentTechnicalSupport, Urgency: domain.UrgencyHigh, Confidence: 0.85,
				AssignedTeam: domain.TeamTechSupport, Sentiment: domain.SentimentNegative,
				KeyEntities: []string{"error_403", "403"},
			},
			wantFinal:      domain.TeamTechSupport,
			wantUrgency:    domain.UrgencyCritical,
			wantEscalate:   true,
			wantResponse:   "immediate",
			wantAdditional: []string{domain.TeamTechLead},
		},
		{
			name: "billing question stays with finance",
			in: DecisionInput{
				Intent: domain.IntentBillingFinance, Urgency: domain.UrgencyMedium, Confidence: 0.7,
				AssignedTeam: domain.TeamFinance, Sentiment: domain.SentimentNeutral,
				KeyEntities: []string{"error_120", "$120"},
			},
			wantFinal:      domain.TeamFinance,
			wantUrgency:    domain.UrgencyMedium,
			wantResponse:   "24 hours",
			wantAdditional: []string{},
		},
		{
			name: "billing with dispute entity goes to compliance",
			in: DecisionInput{
				Intent: domain.IntentBillingFinance, Urgency: domain.UrgencyMedium, Confidence: 0.7,
				AssignedTeam: domain.TeamFinance, Sentiment: domain.SentimentNeutral,
				KeyEntities: []string{"wrong amount"},
			},
			wantFinal:      domain.TeamCompliance,
			wantUrgency:    domain.UrgencyMedium,
			wantResponse:   "24 hours",
			wantAdditional: []string{},
		},
		{
			name: "urgent sentiment promotes medium to high",
			in: DecisionInput{
				Intent: domain.IntentKYCVerification, Urgency: domain.UrgencyMedium, Confidence: 0.65,
				AssignedTeam: domain.TeamKYC, Sentiment: domain.SentimentUrgent,
			},
			wantFinal:      domain.TeamKYC,
			wantUrgency:    domain.UrgencyHigh,
			wantEscalate:   true,
			wantResponse:   "4 hours",
			wantAdditional: []string{},
		},
		{
			name: "negative high without critical entity stays high",
			in: DecisionInput{
				Intent: domain.IntentKYCVerification, Urgency: domain.UrgencyHigh, Confidence: 0.65,
				AssignedTeam: domain.TeamKYC, Sentiment: domain.SentimentNegative, KeyEntities: []string{"2"},
			},
			wantFinal:      domain.TeamKYC,
			wantUrgency:    domain.UrgencyHigh,
			wantEscalate:   true,
			wantResponse:   "4 hours",
			wantAdditional: []string{},
		},
		{
			name: "compliance adds legal",
			in: DecisionInput{
				Intent: domain.IntentComplianceRegulatory, Urgency: domain.UrgencyLow, Confidence: 0.8,
				AssignedTeam: domain.TeamCompliance, Sentiment: domain.SentimentNeutral,
			},
			wantFinal:      domain.TeamCompliance,
			wantUrgency:    domain.UrgencyLow,
			wantResponse:   "48 hours",
			wantAdditional: []string{domain.TeamLegal},
		},
		{
			name: "low confidence beats billing dispute override",
			in: DecisionInput{
				Intent: domain.IntentBillingFinance, Urgency: domain.UrgencyLow, Confidence: 0.4,
				AssignedTeam: domain.TeamFinance, Sentiment: domain.SentimentNegative,
				KeyEntities: []string{"dispute"},
			},
			wantFinal:      domain.TeamTriage,
			wantUrgency:    domain.UrgencyLow,
			wantEscalate:   true,
			wantReview:     true,
			wantResponse:   "48 hours",
			wantAdditional: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.in)

			assert.Equal(t, tt.wantFinal, d.FinalTeam)
			assert.Equal(t, tt.in.AssignedTeam, d.PrimaryTeam)
			assert.Equal(t, tt.wantUrgency, d.Urgency)
			assert.Equal(t, tt.wantEscalate, d.Escalate)
			assert.Equal(t, tt.wantReview, d.NeedsReview)
			assert.Equal(t, tt.wantResponse, d.ResponseTime)
			assert.Equal(t, tt.wantAdditional, d.AdditionalTeams)
		})
	}
}

func TestDecide_Reasoning(t *testing.T) {
	d := Decide(DecisionInput{
		Intent: domain.IntentSalesInquiry, Urgency: domain.UrgencyHigh, Confidence: 0.4,
		AssignedTeam: domain.TeamSales, Sentiment: domain.SentimentNeutral,
	})

	assert.Equal(t,
		"Intent classified as 'sales_inquiry' with 40% confidence. Urgency level: high. "+
			"Low confidence - routing to triage for manual review. High urgency - priority handling needed",
		d.Reasoning)
}

func TestPolicyFor_ReturnsCopy(t *testing.T) {
	p := PolicyFor(domain.UrgencyCritical)
	p.Notify[0] = "someone_else"

	assert.Equal(t, []string{domain.RoleTeamLead, domain.RoleManager}, PolicyFor(domain.UrgencyCritical).Notify)
	assert.Equal(t, "24 hours", PolicyFor(domain.Urgency("bogus")).ResponseTime)
}

func TestEscalationFor(t *testing.T) {
	assert.Nil(t, EscalationFor(&domain.RoutingDecision{Escalate: false}))

	critical := EscalationFor(&domain.RoutingDecision{
		Escalate: true, Urgency: domain.UrgencyCritical, Notify: []string{domain.RoleTeamLead, domain.RoleManager},
	})
	assert.Equal(t, "immediate", critical.EscalationTime)
	assert.Equal(t, []string{domain.RoleTeamLead, domain.RoleManager}, critical.Notified)

	review := EscalationFor(&domain.RoutingDecision{Escalate: true, Urgency: domain.UrgencyLow, Notify: []string{}})
	assert.Equal(t, "4 hours", review.EscalationTime)
	assert.True(t, review.Escalated)
}

func TestDecide_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genIntent := gen.OneConstOf(
		domain.IntentKYCVerification, domain.IntentTechnicalSupport, domain.IntentBillingFinance,
		domain.IntentComplianceRegulatory, domain.IntentSalesInquiry, domain.IntentGeneralSupport,
	)
	genUrgency := gen.OneConstOf(domain.UrgencyCritical, domain.UrgencyHigh, domain.UrgencyMedium, domain.UrgencyLow)
	genSentiment := gen.OneConstOf(domain.SentimentNeutral, domain.SentimentPositive, domain.SentimentNegative, domain.SentimentUrgent)
	genEntities := gen.SliceOf(gen.OneConstOf("error_500", "dispute", "$40", "security", "wrong", "march 3", "down"))

	input := func(intent, urgency, sentiment any, conf float64, entities []string) DecisionInput {
		return DecisionInput{
			Intent:       intent.(domain.Intent),
			Urgency:      urgency.(domain.Urgency),
			Confidence:   conf,
			AssignedTeam: "Some Team",
			Sentiment:    sentiment.(domain.Sentiment),
			KeyEntities:  entities,
		}
	}

	properties.Property("confidence below threshold always routes to triage", prop.ForAll(
		func(intent, urgency, sentiment any, conf float64, entities []string) bool {
			d := Decide(input(intent, urgency, sentiment, conf, entities))
			return d.FinalTeam == domain.TeamTriage && d.NeedsReview && d.Escalate
		},
		genIntent, genUrgency, genSentiment, gen.Float64Range(0, 0.5999), genEntities,
	))

	properties.Property("urgent billing above threshold goes to compliance", prop.ForAll(
		func(urgency any, conf float64, entities []string) bool {
			d := Decide(input(domain.IntentBillingFinance, urgency, domain.SentimentUrgent, conf, entities))
			return d.FinalTeam == domain.TeamCompliance
		},
		genUrgency, gen.Float64Range(0.6, 1), genEntities,
	))

	properties.Property("critical or high urgency always escalates", prop.ForAll(
		func(intent, urgency, sentiment any, conf float64, entities []string) bool {
			d := Decide(input(intent, urgency, sentiment, conf, entities))
			if d.Urgency == domain.UrgencyCritical || d.Urgency == domain.UrgencyHigh {
				return d.Escalate
			}
			return true
		},
		genIntent, genUrgency, genSentiment, gen.Float64Range(0, 1), genEntities,
	))

	properties.Property("urgency is never lowered", prop.ForAll(
		func(intent, urgency, sentiment any, conf float64, entities []string) bool {
			in := input(intent, urgency, sentiment, conf, entities)
			return Decide(in).Urgency.Rank() >= in.Urgency.Rank()
		},
		genIntent, genUrgency, genSentiment, gen.Float64Range(0, 1), genEntities,
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
