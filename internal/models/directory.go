package models

import "time"

// Role is the caller's role as supplied by the identity layer.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleSystem   Role = "system"
)

// Actor is an already-authenticated caller.
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// SystemActor is used by internal periodic jobs.
var SystemActor = Actor{ID: 0, Role: RoleSystem}

// IsStaff reports whether the role may act on behalf of a business.
func (a Actor) IsStaff() bool {
	return a.Role == RoleOwner || a.Role == RoleManager
}

// Business is the subset of business data the booking core consumes.
type Business struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Location     *time.Location `json:"-"`
	NotifyChatID int64          `json:"notify_chat_id,omitempty"`
	Members      []int64        `json:"members,omitempty"`
}

// HasMember reports whether actorID is listed as staff of the business.
func (b *Business) HasMember(actorID int64) bool {
	for _, id := range b.Members {
		if id == actorID {
			return true
		}
	}
	return false
}

// Menu is a bookable service of a business.
type Menu struct {
	ID              int64  `json:"id"`
	BusinessID      int64  `json:"business_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	OrderType       string `json:"order_type"`
	PriceCents      int64  `json:"price_cents"`
	DefaultCapacity int    `json:"default_capacity"`
}
