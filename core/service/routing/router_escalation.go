// Package routing turns a classification into a final team assignment and
// escalation outcome. Everything here is pure: no I/O, no clock.
package routing

import "query_router/core/domain"

// TriageThreshold is the confidence below which a ticket goes to manual review.
const TriageThreshold = 0.6

var escalationPolicies = map[domain.Urgency]domain.EscalationPolicy{
	domain.UrgencyCritical: {ResponseTime: "immediate", Notify: []string{domain.RoleTeamLead, domain.RoleManager}, AutoEscalate: true},
	domain.UrgencyHigh:     {ResponseTime: "4 hours", Notify: []string{domain.RoleTeamLead}},
	domain.UrgencyMedium:   {ResponseTime: "24 hours", Notify: []string{}},
	domain.UrgencyLow:      {ResponseTime: "48 hours", Notify: []string{}},
}

// PolicyFor returns the escalation policy for an urgency; unknown levels get
// the medium policy. The returned Notify slice is a copy.
func PolicyFor(u domain.Urgency) domain.EscalationPolicy {
	p, ok := escalationPolicies[u]
	if !ok {
		p = escalationPolicies[domain.UrgencyMedium]
	}
	p.Notify = append([]string{}, p.Notify...)
	return p
}

// EscalationFor builds the escalation record for a routed ticket.
func EscalationFor(d *domain.RoutingDecision) *domain.Escalation {
	if d == nil || !d.Escalate {
		return nil
	}
	at := "4 hours"
	if d.Urgency == domain.UrgencyCritical {
		at = "immediate"
	}
	return &domain.Escalation{
		Escalated:      true,
		Urgency:        d.Urgency,
		Notified:       append([]string{}, d.Notify...),
		EscalationTime: at,
	}
}
