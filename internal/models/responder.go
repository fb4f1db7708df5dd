package models

import "time"

// Responder roles, ordered by escalation reach.
const (
	RoleOnCall   = "on_call"
	RoleTeamLead = "team_lead"
	RoleManager  = "engineering_manager"
	RoleDirector = "director"
)

// Responder is an operator eligible to receive escalation notifications.
// The directory is maintained by the platform; the pipeline only reads it.
type Responder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
