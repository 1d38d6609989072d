package store

import (
	"strings"
	"time"
)

const (
	RoleUser   = "USER"
	RoleTrader = "TRADER"
	RoleAdmin  = "ADMIN"

	ListingDraft  = "DRAFT"
	ListingListed = "LISTED"

	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	ProviderID   string    `json:"providerId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Provider struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Role          string         `json:"role"`
	Rating        float64        `json:"rating"`
	CompletedJobs int            `json:"completedJobs"`
	Bio           string         `json:"bio"`
	Location      string         `json:"location"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	Website       string         `json:"website"`
	HourlyRate    float64        `json:"hourlyRate"`
	Availability  string         `json:"availability"`
	Attributes    map[string]any `json:"attributes"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ProviderID  string    `json:"providerId"`
	Status      string    `json:"status"`
	Tags        string    `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Version     int       `json:"version"`
}

// TagSet splits the comma-joined tags into a lower-cased, de-duplicated list.
func (l Listing) TagSet() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range strings.Split(l.Tags, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Interaction is a completed checkout. It is never modified after creation.
type Interaction struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ProviderID string    `json:"providerId"`
	ListingID  string    `json:"listingId,omitempty"`
	At         time.Time `json:"at"`
	Note       string    `json:"note"`
	Amount     float64   `json:"amount"`
	Reference  string    `json:"reference,omitempty"`
}

type Order struct {
	ID           string       `json:"id"`
	CustomerID   string       `json:"customerId"`
	CustomerName string       `json:"userName"`
	ProviderID   string       `json:"providerId"`
	ListingID    string       `json:"listingId,omitempty"`
	Service      string       `json:"service"`
	Status       string       `json:"status"`
	Amount       float64      `json:"amount"`
	Request      OrderRequest `json:"request"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Version      int          `json:"version"`
}

type OrderRequest struct {
	Details        string        `json:"details"`
	Date           string        `json:"date"`
	Time           string        `json:"time"`
	Ack            bool          `json:"ack"`
	ConversationID string        `json:"conversationId,omitempty"`
	LastMessage    string        `json:"lastMessage,omitempty"`
	Updates        []OrderUpdate `json:"updates"`
}

type OrderUpdate struct {
	At      time.Time `json:"at"`
	From    string    `json:"from"`
	Message string    `json:"message"`
}

type Conversation struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastMessage string    `json:"lastMessage"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	UserID         *string   `json:"userId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Review struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"providerId"`
	OrderID    string    `json:"orderId"`
	AuthorID   string    `json:"authorId"`
	Rating     int       `json:"rating"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}
