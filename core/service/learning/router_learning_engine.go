// Package learning derives keyword and team patterns from routed tickets
// and human reassignments.
package learning

import (
	"context"
	"sort"
	"time"

	"query_router/core/domain"
	"query_router/core/port/in"
	"query_router/core/port/out"
	"query_router/pkg/apperr"
	"query_router/pkg/logger"
)

const (
	MinPatternUsage      = 2
	MinPatternConfidence = 0.6
	MaxLearnedKeywords   = 20

	teamConfidenceDivisor    = 10.0
	keywordConfidenceDivisor = 5.0
	topIntentsLimit          = 10
)

// Engine implements in.LearningService over the pattern store.
type Engine struct {
	tickets  out.TicketRepository
	events   out.EventRepository
	patterns out.PatternRepository
	feedback out.FeedbackRepository
}

var _ in.LearningService = (*Engine)(nil)

// NewEngine creates a learning engine.
func NewEngine(tickets out.TicketRepository, events out.EventRepository, patterns out.PatternRepository, feedback out.FeedbackRepository) *Engine {
	return &Engine{
		tickets:  tickets,
		events:   events,
		patterns: patterns,
		feedback: feedback,
	}
}

// LearnFromTicket reinforces every extracted keyword for the ticket intent
// and the (team, intent) pair.
func (e *Engine) LearnFromTicket(ctx context.Context, ticket *domain.Ticket) error {
	if ticket == nil || ticket.Intent == "" {
		return nil
	}

	for _, kw := range ExtractKeywords(ticket.Message, ticket.SubjectText()) {
		if err := e.patterns.Reinforce(ctx, domain.PatternIntentKeyword, string(ticket.Intent), kw, 1.0); err != nil {
			return apperr.DatabaseError("reinforce keyword pattern", err)
		}
	}

	if ticket.AssignedTeam != "" {
		if err := e.patterns.Reinforce(ctx, domain.PatternTeamIntent, ticket.AssignedTeam, string(ticket.Intent), 1.0); err != nil {
			return apperr.DatabaseError("reinforce team pattern", err)
		}
	}
	return nil
}

// LearnFromReassignment records the correction and trusts it immediately.
func (e *Engine) LearnFromReassignment(ctx context.Context, ticketID, originalTeam, newTeam, originalIntent, reason string) error {
	record := &domain.FeedbackRecord{
		TicketID:       ticketID,
		OriginalIntent: originalIntent,
		OriginalTeam:   originalTeam,
		CorrectedTeam:  newTeam,
		FeedbackType:   domain.FeedbackReassignment,
		FeedbackData:   map[string]any{"reason": reason},
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.feedback.Append(ctx, record); err != nil {
		return apperr.DatabaseError("append feedback", err)
	}

	intent := originalIntent
	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return apperr.DatabaseError("get ticket", err)
	}
	if ticket != nil && ticket.Intent != "" {
		intent = string(ticket.Intent)
	}
	if intent == "" || newTeam == "" {
		return nil
	}

	if err := e.patterns.Reinforce(ctx, domain.PatternTeamIntent, newTeam, intent, 1.0); err != nil {
		return apperr.DatabaseError("reinforce team pattern", err)
	}
	return nil
}

// tally counts values per key while remembering first-seen order, so ties
// resolve the same way on every run.
type tally struct {
	counts map[string]map[string]int
	order  map[string][]string
}

func newTally() *tally {
	return &tally{counts: map[string]map[string]int{}, order: map[string][]string{}}
}

func (t *tally) add(key, value string) {
	m, ok := t.counts[key]
	if !ok {
		m = map[string]int{}
		t.counts[key] = m
	}
	if _, seen := m[value]; !seen {
		t.order[key] = append(t.order[key], value)
	}
	m[value]++
}

func (t *tally) keys() []string {
	keys := make([]string, 0, len(t.counts))
	for k := range t.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AnalyzeAndUpdatePatterns re-derives pattern confidence from all tickets
// that were never reassigned. Counts are written absolutely, so running it
// twice without new tickets changes nothing.
func (e *Engine) AnalyzeAndUpdatePatterns(ctx context.Context) (*in.AnalysisReport, error) {
	start := time.Now()

	tickets, err := e.tickets.ListAll(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("list tickets", err)
	}
	reassigned, err := e.events.TicketIDsWithEvent(ctx, domain.EventTicketReassigned)
	if err != nil {
		return nil, apperr.DatabaseError("list reassigned tickets", err)
	}

	teams := newTally()
	keywords := newTally()
	report := &in.AnalysisReport{TicketsScanned: len(tickets)}

	for _, t := range tickets {
		if _, ok := reassigned[t.TicketID]; ok {
			report.TicketsReassigned++
			continue
		}
		if t.Intent == "" {
			continue
		}
		intent := string(t.Intent)
		if t.AssignedTeam != "" {
			teams.add(intent, t.AssignedTeam)
		}
		for _, kw := range ExtractKeywords(t.Message, t.SubjectText()) {
			keywords.add(intent, kw)
		}
	}

	for _, intent := range teams.keys() {
		best, bestCount := "", 0
		for _, team := range teams.order[intent] {
			if c := teams.counts[intent][team]; c > bestCount {
				best, bestCount = team, c
			}
		}
		if bestCount < MinPatternUsage {
			continue
		}
		conf := min(1.0, float64(bestCount)/teamConfidenceDivisor)
		if err := e.patterns.Set(ctx, domain.PatternTeamIntent, best, intent, conf, bestCount); err != nil {
			return nil, apperr.DatabaseError("set team pattern", err)
		}
		report.TeamPatterns++
	}

	for _, intent := range keywords.keys() {
		for _, kw := range keywords.order[intent] {
			count := keywords.counts[intent][kw]
			if count < MinPatternUsage {
				continue
			}
			conf := min(1.0, float64(count)/keywordConfidenceDivisor)
			if err := e.patterns.Set(ctx, domain.PatternIntentKeyword, intent, kw, conf, count); err != nil {
				return nil, apperr.DatabaseError("set keyword pattern", err)
			}
			report.KeywordPatterns++
		}
	}

	report.Duration = time.Since(start)
	logger.WithFields(map[string]any{
		"tickets_scanned":    report.TicketsScanned,
		"tickets_reassigned": report.TicketsReassigned,
		"team_patterns":      report.TeamPatterns,
		"keyword_patterns":   report.KeywordPatterns,
	}).WithDuration(report.Duration).Info("[Learning] pattern analysis completed")
	return report, nil
}

// GetLearnedKeywordsForIntent returns up to MaxLearnedKeywords qualifying
// keywords, most used first.
func (e *Engine) GetLearnedKeywordsForIntent(ctx context.Context, intent domain.Intent) ([]string, error) {
	patterns, err := e.patterns.ListByKey(ctx, domain.PatternIntentKeyword, string(intent), MinPatternConfidence, MaxLearnedKeywords)
	if err != nil {
		return nil, apperr.DatabaseError("list keyword patterns", err)
	}
	keywords := make([]string, 0, len(patterns))
	for _, p := range patterns {
		keywords = append(keywords, p.PatternValue)
	}
	return keywords, nil
}

// GetLearnedTeamForIntent returns the best qualifying team for the intent.
func (e *Engine) GetLearnedTeamForIntent(ctx context.Context, intent domain.Intent) (string, bool, error) {
	patterns, err := e.patterns.ListByValue(ctx, domain.PatternTeamIntent, string(intent), MinPatternConfidence)
	if err != nil {
		return "", false, apperr.DatabaseError("list team patterns", err)
	}
	if len(patterns) == 0 {
		return "", false, nil
	}
	return patterns[0].PatternKey, true, nil
}

// Stats summarizes patterns and feedback.
func (e *Engine) Stats(ctx context.Context) (*domain.LearningStats, error) {
	stats := &domain.LearningStats{
		PatternTypes:      map[string]int{},
		TopLearnedIntents: map[string]int{},
	}

	intentCounts := map[string]int{}
	for _, pt := range []domain.PatternType{domain.PatternIntentKeyword, domain.PatternTeamIntent} {
		patterns, err := e.patterns.List(ctx, pt)
		if err != nil {
			return nil, apperr.DatabaseError("list patterns", err)
		}
		if len(patterns) > 0 {
			stats.PatternTypes[string(pt)] = len(patterns)
		}
		stats.TotalPatterns += len(patterns)
		if pt == domain.PatternIntentKeyword {
			for _, p := range patterns {
				intentCounts[p.PatternKey]++
			}
		}
	}
	stats.TopLearnedIntents = topN(intentCounts, topIntentsLimit)

	counts, err := e.feedback.CountByType(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("count feedback", err)
	}
	for _, n := range counts {
		stats.TotalFeedback += n
	}
	stats.Reassignments = counts[domain.FeedbackReassignment]
	return stats, nil
}

// Patterns lists stored patterns of a type.
func (e *Engine) Patterns(ctx context.Context, patternType domain.PatternType) ([]*domain.LearningPattern, error) {
	patterns, err := e.patterns.List(ctx, patternType)
	if err != nil {
		return nil, apperr.DatabaseError("list patterns", err)
	}
	return patterns, nil
}

func topN(counts map[string]int, n int) map[string]int {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	top := make(map[string]int, len(keys))
	for _, k := range keys {
		top[k] = counts[k]
	}
	return top
}
