package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"query_router/core/port/out"
	"query_router/pkg/apperr"
)

// ErrNoJSON is returned when the completion holds no JSON object.
var ErrNoJSON = errors.New("llm: no JSON object in completion")

const maxClassifyChars = 4000

const classifySystemPrompt = `You classify customer messages for FinLink, a B2B fintech platform.
Read the whole message, find the core request and any entities (error codes, amounts, dates, account types).

Intent, exactly one of:
- kyc_verification: account or identity verification, document upload, KYC status
- technical_support: API errors, webhooks, SDKs, integrations, authentication, timeouts
- billing_finance: invoices, payments, charges, refunds, subscriptions, pricing questions
- compliance_regulatory: GDPR, PCI DSS, SOC 2, audits, data protection, and billing disputes or discrepancies
- sales_inquiry: demos, enterprise plans, partnerships, trials
- general_support: how-to questions, documentation, anything else

Urgency, exactly one of:
- critical: system down, security breach, payments fully blocked, operations halted
- high: errors affecting live operations, verification delays blocking business, disputes
- medium: standard requests and non-blocking questions
- low: curiosity, feedback, suggestions

A dispute, discrepancy, wrong charge or incorrect billing is compliance_regulatory with high urgency.

Respond with a JSON object only:
{"intent": "...", "urgency": "...", "confidence": 0.0-1.0, "sentiment": "positive|neutral|negative|urgent",
 "key_entities": ["..."], "reasoning": "2-3 sentences"}`

// Classifier implements out.AIClassifier with a chat model.
type Classifier struct {
	llm Completer
}

var _ out.AIClassifier = (*Classifier)(nil)

func NewClassifier(llm Completer) *Classifier {
	return &Classifier{llm: llm}
}

// ClassifyQuery returns the model's raw fields. Validation happens in the
// classification engine.
func (c *Classifier) ClassifyQuery(ctx context.Context, text string) (*out.AIClassification, error) {
	resp, err := c.llm.CompleteJSON(ctx, classifySystemPrompt, "Customer query:\n"+truncate(text, maxClassifyChars))
	if err != nil {
		return nil, apperr.ExternalError("llm", err)
	}
	return ParseClassification(resp)
}

// ParseClassification pulls the outermost {...} out of model text and reads
// the classification fields from it.
func ParseClassification(text string) (*out.AIClassification, error) {
	obj, ok := extractJSON(text)
	if !ok {
		return nil, ErrNoJSON
	}
	if !gjson.Valid(obj) {
		return nil, fmt.Errorf("llm: invalid JSON in completion: %.80q", obj)
	}

	parsed := gjson.Parse(obj)
	result := &out.AIClassification{
		Intent:    strings.ToLower(strings.TrimSpace(parsed.Get("intent").String())),
		Urgency:   strings.ToLower(strings.TrimSpace(parsed.Get("urgency").String())),
		Sentiment: strings.ToLower(strings.TrimSpace(parsed.Get("sentiment").String())),
		Reasoning: strings.TrimSpace(parsed.Get("reasoning").String()),
	}

	if conf := parsed.Get("confidence"); conf.Exists() && conf.Type == gjson.Number {
		v := conf.Float()
		result.Confidence = &v
	}

	if entities := parsed.Get("key_entities"); entities.IsArray() {
		result.KeyEntities = []string{}
		for _, e := range entities.Array() {
			if s := strings.TrimSpace(e.String()); s != "" {
				result.KeyEntities = append(result.KeyEntities, s)
			}
		}
	}
	return result, nil
}

// extractJSON returns the span from the first '{' to the last '}'.
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
