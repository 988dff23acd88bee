package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query_router/core/domain"
	"query_router/core/port/out"
	"query_router/pkg/apperr"
)

type stubCompleter struct {
	text   string
	err    error
	system string
	user   string
}

func (s *stubCompleter) CompleteWithSystem(_ context.Context, system, user string) (string, error) {
	s.system, s.user = system, user
	return s.text, s.err
}

func (s *stubCompleter) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return s.CompleteWithSystem(ctx, system, user)
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantErr  bool
		intent   string
		urgency  string
		conf     *float64
		entities []string
	}{
		{
			name:     "plain object",
			text:     `{"intent":"technical_support","urgency":"high","confidence":0.92,"key_entities":["403"],"sentiment":"negative","reasoning":"API error"}`,
			intent:   "technical_support",
			urgency:  "high",
			conf:     ptr(0.92),
			entities: []string{"403"},
		},
		{
			name:    "fenced with prose and casing",
			text:    "Sure! ```json\n{\"intent\": \"Billing_Finance\", \"urgency\": \"MEDIUM\"}\n```",
			intent:  "billing_finance",
			urgency: "medium",
		},
		{
			name:    "confidence as string is ignored",
			text:    `{"intent":"sales_inquiry","urgency":"low","confidence":"high"}`,
			intent:  "sales_inquiry",
			urgency: "low",
		},
		{name: "no object", text: "I cannot help with that", wantErr: true},
		{name: "broken object", text: `{"intent": "kyc_verification",`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassification(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.urgency, got.Urgency)
			assert.Equal(t, tt.conf, got.Confidence)
			assert.Equal(t, tt.entities, got.KeyEntities)
		})
	}
}

func TestClassifier_WrapsCompletionError(t *testing.T) {
	c := NewClassifier(&stubCompleter{err: errors.New("429 too many requests")})

	_, err := c.ClassifyQuery(context.Background(), "hello")

	assert.True(t, apperr.HasCode(err, apperr.CodeExternalError))
}

func TestClassifier_SendsQuery(t *testing.T) {
	stub := &stubCompleter{text: `{"intent":"general_support","urgency":"low"}`}
	c := NewClassifier(stub)

	got, err := c.ClassifyQuery(context.Background(), "where are the docs?")

	require.NoError(t, err)
	assert.Equal(t, "general_support", got.Intent)
	assert.Contains(t, stub.user, "where are the docs?")
	assert.Contains(t, stub.system, "compliance_regulatory")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"ascii cut", "hello world", 5, "hello..."},
		{"backs off a two-byte rune", "café ok", 4, "caf..."},
		{"backs off a three-byte rune", "ab€", 3, "ab..."},
		{"keeps a whole rune", "café ok", 5, "café..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestClassifier_TruncatesLongQueryOnRuneBoundary(t *testing.T) {
	stub := &stubCompleter{text: `{"intent":"general_support","urgency":"low"}`}
	c := NewClassifier(stub)

	_, err := c.ClassifyQuery(context.Background(), strings.Repeat("é", maxClassifyChars))

	require.NoError(t, err)
	assert.True(t, utf8.ValidString(stub.user))
	assert.True(t, strings.HasSuffix(stub.user, "é..."))
}

func TestDrafter_UsesModelAndFormats(t *testing.T) {
	stub := &stubCompleter{text: "**Dear John,**\n\n\n\nWe are on it."}
	d := NewDrafter(stub)

	draft, err := d.DraftResponse(context.Background(), &out.DraftRequest{
		Message:      "API failing",
		Intent:       domain.IntentTechnicalSupport,
		Urgency:      domain.UrgencyCritical,
		CustomerName: "John",
		AssignedTeam: domain.TeamTechSupport,
		ResponseTime: "immediate",
		KeyEntities:  []string{"error_403", "403"},
	})

	require.NoError(t, err)
	assert.Equal(t, MethodLLM, draft.Method)
	assert.Equal(t, "Dear John,\n\nWe are on it.\n\nBest regards,\nFinLink Support Team", draft.Response)
	assert.Contains(t, stub.user, "Greeting: Dear John,")
	assert.Contains(t, stub.user, "Key details: error_403, 403")
	assert.Contains(t, stub.user, "Expected response time: immediate")
}

func TestDrafter_FallsBackToTemplate(t *testing.T) {
	d := NewDrafter(&stubCompleter{err: errors.New("circuit breaker is open")})

	draft, err := d.DraftResponse(context.Background(), &out.DraftRequest{
		Intent:       domain.IntentKYCVerification,
		Urgency:      domain.UrgencyHigh,
		AssignedTeam: domain.TeamKYC,
		ResponseTime: "4 hours",
	})

	require.NoError(t, err)
	assert.Equal(t, MethodTemplate, draft.Method)
	assert.True(t, strings.HasPrefix(draft.Response, "Hello,\n\n"))
	assert.Contains(t, draft.Response, "Your request is with our KYC Team and you can expect a reply within 4 hours.")
	assert.True(t, strings.HasSuffix(draft.Response, signOff))
	assert.Equal(t, []string{"kyc_verification"}, draft.TemplatesUsed)
}

func TestDrafter_NoModel(t *testing.T) {
	draft, err := NewDrafter(nil).DraftResponse(context.Background(), &out.DraftRequest{Intent: "unknown"})

	require.NoError(t, err)
	assert.Equal(t, MethodDefault, draft.Method)
	assert.Empty(t, draft.TemplatesUsed)
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		req  out.DraftRequest
		want string
	}{
		{out.DraftRequest{}, "Hello,"},
		{out.DraftRequest{CustomerName: "Ana", Intent: domain.IntentTechnicalSupport}, "Hi Ana,"},
		{out.DraftRequest{CustomerName: "Ana", Intent: domain.IntentTechnicalSupport, Urgency: domain.UrgencyCritical}, "Dear Ana,"},
		{out.DraftRequest{CustomerName: "Ana", Intent: domain.IntentBillingFinance}, "Dear Ana,"},
	}
	for _, tt := range tests {
		if got := Greeting(&tt.req); got != tt.want {
			t.Errorf("Greeting(%+v) = %q, want %q", tt.req, got, tt.want)
		}
	}
}

func TestClient_CompleteJSONAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"intent\":\"kyc_verification\",\"urgency\":\"high\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL})
	got, err := NewClassifier(client).ClassifyQuery(context.Background(), "verification stuck")

	require.NoError(t, err)
	assert.Equal(t, "kyc_verification", got.Intent)
	assert.Equal(t, "high", got.Urgency)
}

func TestClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL}).CompleteWithSystem(context.Background(), "s", "u")

	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func ptr[T any](v T) *T { return &v }
