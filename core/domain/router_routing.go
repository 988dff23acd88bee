package domain

// Well-known team names referenced by routing rules.
const (
	TeamKYC            = "KYC Team"
	TeamTechSupport    = "Tech Support"
	TeamFinance        = "Finance Team"
	TeamCompliance     = "Compliance Team"
	TeamSales          = "Sales Team"
	TeamTriage         = "Triage Team"
	TeamGeneralSupport = "General Support"
	TeamTechLead       = "Tech Lead"
	TeamLegal          = "Legal Team"
)

// Notification roles alerted on escalation.
const (
	RoleTeamLead = "team_lead"
	RoleManager  = "manager"
)

// EscalationPolicy is one row of the static escalation-by-urgency table.
type EscalationPolicy struct {
	ResponseTime string   `json:"response_time"`
	Notify       []string `json:"notify"`
	AutoEscalate bool     `json:"auto_escalate"`
}

// RoutingDecision is derived from a classification and the static tables.
// PrimaryTeam is the team named before override rules apply; Urgency is the
// level after sentiment adjustment.
type RoutingDecision struct {
	FinalTeam       string   `json:"final_team"`
	PrimaryTeam     string   `json:"primary_team"`
	AdditionalTeams []string `json:"additional_teams"`
	Escalate        bool     `json:"escalate"`
	NeedsReview     bool     `json:"needs_review"`
	ResponseTime    string   `json:"response_time"`
	Notify          []string `json:"notify"`
	Urgency         Urgency  `json:"urgency"`
	Reasoning       string   `json:"reasoning"`
}

// Escalation is the record written when a routed ticket is escalated.
type Escalation struct {
	Escalated      bool     `json:"escalated"`
	Urgency        Urgency  `json:"urgency"`
	Notified       []string `json:"notified"`
	EscalationTime string   `json:"escalation_time"`
}
