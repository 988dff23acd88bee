package domain

// Intent is the closed-set category describing what the customer wants.
type Intent string

const (
	IntentKYCVerification      Intent = "kyc_verification"
	IntentTechnicalSupport     Intent = "technical_support"
	IntentBillingFinance       Intent = "billing_finance"
	IntentComplianceRegulatory Intent = "compliance_regulatory"
	IntentSalesInquiry         Intent = "sales_inquiry"
	IntentGeneralSupport       Intent = "general_support"
)

// Intents lists every intent in category-table order. The order matters:
// fallback scoring breaks ties by first-seen position.
var Intents = []Intent{
	IntentKYCVerification,
	IntentTechnicalSupport,
	IntentBillingFinance,
	IntentComplianceRegulatory,
	IntentSalesInquiry,
	IntentGeneralSupport,
}

// IsValid reports whether the intent belongs to the closed set.
func (i Intent) IsValid() bool {
	for _, v := range Intents {
		if v == i {
			return true
		}
	}
	return false
}

func (i Intent) String() string { return string(i) }

// Urgency is an ordered severity enum: critical > high > medium > low.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// Urgencies in descending severity.
var Urgencies = []Urgency{UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow}

// IsValid reports whether the urgency belongs to the closed set.
func (u Urgency) IsValid() bool {
	return u.Rank() > 0
}

// Rank returns 4 for critical down to 1 for low, 0 for unknown values.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	default:
		return 0
	}
}

// Prefix returns the single-letter code used in ticket ids.
func (u Urgency) Prefix() string {
	switch u {
	case UrgencyCritical:
		return "C"
	case UrgencyHigh:
		return "H"
	case UrgencyLow:
		return "L"
	default:
		return "M"
	}
}

func (u Urgency) String() string { return string(u) }

// Sentiment of the message as detected by the classifier.
type Sentiment string

const (
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentUrgent   Sentiment = "urgent"
)

// IsValid reports whether the sentiment belongs to the closed set.
func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentNeutral, SentimentPositive, SentimentNegative, SentimentUrgent:
		return true
	}
	return false
}

// ClassificationMethod records which path produced a classification.
type ClassificationMethod string

const (
	MethodAI       ClassificationMethod = "ai"
	MethodCache    ClassificationMethod = "cache"
	MethodFallback ClassificationMethod = "fallback"
)

// ClassificationResult is produced per message and never persisted on its own.
// Reasoning is advisory text and is never parsed downstream.
type ClassificationResult struct {
	Intent       Intent               `json:"intent"`
	Urgency      Urgency              `json:"urgency"`
	Confidence   float64              `json:"confidence"`
	Sentiment    Sentiment            `json:"sentiment"`
	KeyEntities  []string             `json:"key_entities"`
	Reasoning    string               `json:"reasoning"`
	AssignedTeam string               `json:"assigned_team"`
	Method       ClassificationMethod `json:"method"`
}
