package models

import "time"

// NotifyChannel is a notification channel an escalation rule targets.
// Channel fan-out itself happens in the downstream dispatcher; the rule only
// records which channels to request.
type NotifyChannel string

const (
	NotifyEmail NotifyChannel = "email"
	NotifySMS   NotifyChannel = "sms"
	NotifyInApp NotifyChannel = "in_app"
)

// EscalationRule is one level of a severity's escalation chain. For a given
// severity, levels are unique and ordered; level 0 is the immediate rule.
// Rules are matched against an alert's severity, not its kind.
type EscalationRule struct {
	ID            string          `json:"id"`
	Severity      Severity        `json:"severity"`
	Level         int             `json:"level"`
	TimeThreshold time.Duration   `json:"time_threshold"`
	TargetRole    string          `json:"target_role"`
	Channels      []NotifyChannel `json:"channels"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ChannelStrings returns the rule's channels as plain strings.
func (r *EscalationRule) ChannelStrings() []string {
	out := make([]string, len(r.Channels))
	for i, c := range r.Channels {
		out[i] = string(c)
	}
	return out
}
