package domain

import "time"

// PatternType discriminates learning patterns.
//
// intent_keyword rows are keyed by intent with the keyword as value.
// team_intent rows are keyed by team with the intent as value.
type PatternType string

const (
	PatternIntentKeyword PatternType = "intent_keyword"
	PatternTeamIntent    PatternType = "team_intent"
)

// LearningPattern is unique on (PatternType, PatternKey, PatternValue).
type LearningPattern struct {
	ID           int64       `json:"id"`
	PatternType  PatternType `json:"pattern_type"`
	PatternKey   string      `json:"pattern_key"`
	PatternValue string      `json:"pattern_value"`
	Confidence   float64     `json:"confidence"`
	UsageCount   int         `json:"usage_count"`
	LastUsed     time.Time   `json:"last_used"`
	CreatedAt    time.Time   `json:"created_at"`
}

// FeedbackType of a feedback record. Only reassignment is produced today.
type FeedbackType string

const (
	FeedbackReassignment FeedbackType = "reassignment"
)

// FeedbackRecord is append-only.
type FeedbackRecord struct {
	ID              int64          `json:"id"`
	TicketID        string         `json:"ticket_id"`
	OriginalIntent  string         `json:"original_intent,omitempty"`
	CorrectedIntent string         `json:"corrected_intent,omitempty"`
	OriginalTeam    string         `json:"original_team,omitempty"`
	CorrectedTeam   string         `json:"corrected_team,omitempty"`
	FeedbackType    FeedbackType   `json:"feedback_type"`
	FeedbackData    map[string]any `json:"feedback_data,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// LearningStats summarizes the pattern store and feedback log.
type LearningStats struct {
	TotalPatterns     int            `json:"total_patterns"`
	PatternTypes      map[string]int `json:"pattern_types"`
	TotalFeedback     int            `json:"total_feedback"`
	Reassignments     int            `json:"reassignments"`
	TopLearnedIntents map[string]int `json:"top_learned_intents"`
}

// Team is an entry of the team directory.
type Team struct {
	Name        string `json:"name" yaml:"name"`
	Email       string `json:"email" yaml:"email"`
	Description string `json:"description" yaml:"description"`
}

// DefaultTeams seeds the team directory.
var DefaultTeams = []Team{
	{Name: TeamKYC, Email: "kyc@finlink.com", Description: "Handles account verification and KYC processes"},
	{Name: TeamTechSupport, Email: "tech@finlink.com", Description: "Handles API, integration, and technical issues"},
	{Name: TeamFinance, Email: "finance@finlink.com", Description: "Handles billing, payments, and financial queries"},
	{Name: TeamCompliance, Email: "compliance@finlink.com", Description: "Handles regulatory, compliance, and dispute matters"},
	{Name: TeamSales, Email: "sales@finlink.com", Description: "Handles sales inquiries, demos, and partnerships"},
	{Name: TeamTriage, Email: "triage@finlink.com", Description: "Reviews low-confidence classifications manually"},
	{Name: TeamGeneralSupport, Email: "support@finlink.com", Description: "Handles general questions and documentation requests"},
}
