// Package ticket holds the domain model: billable roles, the tickets a
// language model derives from a conversation, and the per-role cost summary.
package ticket

import (
	"strings"

	"github.com/google/uuid"
)

// Seniority is the experience level a ticket calls for.
type Seniority string

const (
	Junior Seniority = "junior"
	Medior Seniority = "medior"
	Senior Seniority = "senior"
)

// Seniorities lists the valid levels in ascending order.
var Seniorities = []Seniority{Junior, Medior, Senior}

// IsValid reports whether s is one of junior, medior or senior.
func (s Seniority) IsValid() bool {
	switch s {
	case Junior, Medior, Senior:
		return true
	}
	return false
}

// Normalize lowercases and trims s. It does not validate.
func (s Seniority) Normalize() Seniority {
	return Seniority(strings.ToLower(strings.TrimSpace(string(s))))
}

// Role is a named job function with an hourly billing rate.
type Role struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	HourlyRate float64   `json:"hourlyRate"`
}

// Ticket is one unit of work derived from a transcript. Tickets are
// immutable once produced.
type Ticket struct {
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	ExpectedWorkHours float64   `json:"expectedWorkHours"`
	Seniority         Seniority `json:"seniority"`

	// Role is the role name as generated.
	Role string `json:"role"`

	// RoleID is the role the name resolved to when the ticket was produced.
	// uuid.Nil when the name matched no configured role.
	RoleID uuid.UUID `json:"roleId,omitempty"`
}

// Resolved reports whether the ticket was bound to a configured role.
func (t Ticket) Resolved() bool {
	return t.RoleID != uuid.Nil
}

func normName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
