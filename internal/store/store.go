// Package store defines the persistence contract shared by the postgres and
// in-memory backends. Handlers depend on Store only; the backend is chosen
// once at startup.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("stale write")
	ErrDuplicate = errors.New("already exists")
)

type ListingFilter struct {
	ProviderID string
	Status     string
	Tag        string
}

type InteractionFilter struct {
	UserID     string
	ProviderID string
}

type OrderFilter struct {
	CustomerID     string
	ProviderID     string
	ConversationID string
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id string) error
}

type ProviderRepository interface {
	CreateProvider(ctx context.Context, p *Provider) error
	GetProvider(ctx context.Context, id string) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)
	UpdateProvider(ctx context.Context, p *Provider) error
	// DeleteProvider removes the provider together with its listings, reviews
	// and orders, and unlinks any user pointing at it, in one atomic step.
	DeleteProvider(ctx context.Context, id string) error
}

type ListingRepository interface {
	CreateListing(ctx context.Context, l *Listing) error
	GetListing(ctx context.Context, id string) (*Listing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]Listing, error)
	// UpdateListing writes l if the stored version still equals l.Version and
	// bumps l.Version on success. A mismatch returns ErrConflict.
	UpdateListing(ctx context.Context, l *Listing) error
	DeleteListing(ctx context.Context, id string) error
}

type InteractionRepository interface {
	CreateInteraction(ctx context.Context, i *Interaction) error
	ListInteractions(ctx context.Context, f InteractionFilter) ([]Interaction, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	FindLatestOrder(ctx context.Context, customerID, providerID, listingID string) (*Order, error)
	// UpdateOrder follows the same version rule as UpdateListing.
	UpdateOrder(ctx context.Context, o *Order) error
}

type ConversationRepository interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// FindConversations returns the conversations titled title that memberID
	// belongs to, oldest first.
	FindConversations(ctx context.Context, title, memberID string) ([]Conversation, error)
	ListConversations(ctx context.Context, memberID string) ([]Conversation, error)
	AddMember(ctx context.Context, conversationID, userID string) error
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	ListMembers(ctx context.Context, conversationID string) ([]string, error)
	// AppendMessage stores m and sets the conversation's lastMessage.
	AppendMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, r *Review) error
	ListReviews(ctx context.Context, providerID string) ([]Review, error)
}

type Store interface {
	UserRepository
	ProviderRepository
	ListingRepository
	InteractionRepository
	OrderRepository
	ConversationRepository
	ReviewRepository

	Ping(ctx context.Context) error
	Close()
}
