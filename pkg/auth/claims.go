package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/outbox"
)

// StaffClaims is the token minted by the identity provider for dashboard
// staff. The subject carries the staff user id.
type StaffClaims struct {
	Role  enums.StaffRole `json:"role"`
	Name  string          `json:"name,omitempty"`
	Email string          `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	StaffID string
	Role    enums.StaffRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.StaffRoleAdmin
}

// OutboxRef converts the actor for event envelopes.
func (a Actor) OutboxRef() *outbox.ActorRef {
	if a.StaffID == "" {
		return nil
	}
	return &outbox.ActorRef{StaffID: a.StaffID, Role: string(a.Role)}
}

// Actor extracts the acting staff member from verified claims.
func (c *StaffClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{StaffID: c.Subject, Role: c.Role}
}
