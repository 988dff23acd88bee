package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"query_router/core/domain"
	"query_router/core/port/out"
	"query_router/pkg/logger"
)

// Draft methods recorded in ticket metadata.
const (
	MethodLLM      = "llm_generated"
	MethodTemplate = "template"
	MethodDefault  = "default_fallback"
)

const signOff = "Best regards,\nFinLink Support Team"

const draftSystemPrompt = `You are a customer support representative for FinLink, a B2B fintech platform
for payment processing, KYC verification and financial services.

Write a reply email in plain text (no markdown) with three short paragraphs:
acknowledge the specific issue and any details such as error codes, amounts or dates;
address the request with concrete next steps;
set expectations using the urgency, assigned team and expected response time.
Start with the greeting you are given and end with:
Best regards,
FinLink Support Team`

// Drafter implements out.ResponseDrafter. Without a model, or when the model
// fails, it answers from the intent templates.
type Drafter struct {
	llm Completer
}

var _ out.ResponseDrafter = (*Drafter)(nil)

// NewDrafter creates a drafter; llm may be nil.
func NewDrafter(llm Completer) *Drafter {
	return &Drafter{llm: llm}
}

func (d *Drafter) DraftResponse(ctx context.Context, req *out.DraftRequest) (*out.Draft, error) {
	if d.llm != nil {
		text, err := d.llm.CompleteWithSystem(ctx, draftSystemPrompt, draftPrompt(req))
		if err == nil && strings.TrimSpace(text) != "" {
			return &out.Draft{Response: FormatResponse(text), Method: MethodLLM}, nil
		}
		logger.WithContext(ctx).WithError(err).Warn("[Drafter] model draft failed, using template")
	}
	return TemplateDraft(req), nil
}

// Greeting picks the salutation for the customer.
func Greeting(req *out.DraftRequest) string {
	if req.CustomerName == "" {
		return "Hello,"
	}
	if req.Intent == domain.IntentTechnicalSupport && req.Sentiment != domain.SentimentUrgent && req.Urgency != domain.UrgencyCritical {
		return "Hi " + req.CustomerName + ","
	}
	return "Dear " + req.CustomerName + ","
}

func draftPrompt(req *out.DraftRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer query:\n%q\n\n", req.Message)
	fmt.Fprintf(&b, "Intent: %s\nUrgency: %s\n", req.Intent, req.Urgency)
	if req.Reasoning != "" {
		fmt.Fprintf(&b, "Analysis: %s\n", req.Reasoning)
	}
	if len(req.KeyEntities) > 0 {
		n := min(len(req.KeyEntities), 5)
		fmt.Fprintf(&b, "Key details: %s\n", strings.Join(req.KeyEntities[:n], ", "))
	}
	if req.Sentiment != "" && req.Sentiment != domain.SentimentNeutral {
		fmt.Fprintf(&b, "Sentiment: %s\n", req.Sentiment)
	}
	if req.AssignedTeam != "" {
		fmt.Fprintf(&b, "Assigned team: %s\n", req.AssignedTeam)
	}
	if req.ResponseTime != "" {
		fmt.Fprintf(&b, "Expected response time: %s\n", req.ResponseTime)
	}
	switch req.Urgency {
	case domain.UrgencyCritical:
		b.WriteString("This is critical: convey immediate action.\n")
	case domain.UrgencyHigh:
		b.WriteString("This is high priority: emphasize quick resolution.\n")
	}
	if req.Sentiment == domain.SentimentNegative {
		b.WriteString("The customer is frustrated: be empathetic.\n")
	}
	fmt.Fprintf(&b, "\nGreeting: %s\n", Greeting(req))
	return b.String()
}

var templates = map[domain.Intent]string{
	domain.IntentKYCVerification:      "Thank you for reaching out about your account verification. Our KYC team is reviewing it now. Please make sure your company registration, tax ID, bank statement and signatory ID are uploaded.",
	domain.IntentTechnicalSupport:     "Thanks for reporting this integration issue. Please check that your API key is active and that you are calling the right environment, and share the request ID of a failing call so our engineers can trace it.",
	domain.IntentBillingFinance:       "Thanks for your billing question. We are reviewing the charges on your account against your transaction records and will follow up with the details.",
	domain.IntentComplianceRegulatory: "Thank you for contacting us. Our compliance team has your request and will review it against your records, including any disputed charges.",
	domain.IntentSalesInquiry:         "Thanks for your interest in FinLink. A member of our sales team will reach out to walk you through plans and set up a demo.",
	domain.IntentGeneralSupport:       "Thank you for contacting FinLink support. We have received your question and will get back to you with the information you need.",
}

// TemplateDraft answers from the intent template.
func TemplateDraft(req *out.DraftRequest) *out.Draft {
	body, ok := templates[req.Intent]
	method := MethodTemplate
	if !ok {
		body = "Thank you for contacting FinLink. Your query has been received and assigned to the appropriate team."
		method = MethodDefault
	}

	var b strings.Builder
	b.WriteString(Greeting(req))
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	if req.AssignedTeam != "" {
		fmt.Fprintf(&b, "Your request is with our %s", req.AssignedTeam)
		if req.ResponseTime != "" {
			fmt.Fprintf(&b, " and you can expect a reply within %s", req.ResponseTime)
		}
		b.WriteString(".\n\n")
	}
	b.WriteString(signOff)

	draft := &out.Draft{Response: b.String(), Method: method}
	if ok {
		draft.TemplatesUsed = []string{string(req.Intent)}
	}
	return draft
}

var (
	markdownChars = regexp.MustCompile(`[*#]+`)
	multiSpace    = regexp.MustCompile(` {2,}`)
	blankLines    = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
)

// FormatResponse strips markdown, collapses blank lines and ensures the
// sign-off is present.
func FormatResponse(text string) string {
	text = markdownChars.ReplaceAllString(text, "")
	text = multiSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if !strings.HasSuffix(text, "FinLink Support Team") && !strings.Contains(text, "Regards") && !strings.Contains(text, "regards") {
		text += "\n\n" + signOff
	}
	return text
}
