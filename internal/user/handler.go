package user

import (
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

type Handler struct {
	users store.UserRepository
}

func NewHandler(users store.UserRepository) *Handler {
	return &Handler{users: users}
}

// PublicProfile is the subset of a user shown to other accounts.
type PublicProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	ProviderID string `json:"providerId,omitempty"`
}

func publicProfile(u *store.User) PublicProfile {
	return PublicProfile{ID: u.ID, Name: u.Name, Role: u.Role, ProviderID: u.ProviderID}
}
