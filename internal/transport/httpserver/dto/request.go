// Package dto provides Data Transfer Objects for HTTP requests and responses.
package dto

import "feed-engine-service/internal/domain"

// CreateSessionRequest is the body for opening a feed session.
type CreateSessionRequest struct {
	UserID        string `json:"user_id" validate:"omitempty,max=100"`
	Authenticated bool   `json:"authenticated"`
}

// ToIdentity converts the request to a domain.Identity. An authenticated
// flag without a user id is meaningless and collapses to anonymous.
func (r *CreateSessionRequest) ToIdentity() domain.Identity {
	authed := r.Authenticated && r.UserID != ""

	return domain.Identity{
		UserID:        r.UserID,
		Authenticated: authed,
	}
}

// PositionRequest is the body for a viewport position report.
type PositionRequest struct {
	Position int `json:"position" validate:"gte=0"`
}
