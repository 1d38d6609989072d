package marketplace

// Request bodies. Pointer fields distinguish "absent" from "zero" so that
// updates keep previously stored values.

type ListingRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Tags        *string  `json:"tags"`
	Status      *string  `json:"status"`
	Version     int      `json:"version"`
}

type ProfileRequest struct {
	Name         *string        `json:"name"`
	Bio          *string        `json:"bio"`
	Location     *string        `json:"location"`
	Email        *string        `json:"email"`
	Phone        *string        `json:"phone"`
	Website      *string        `json:"website"`
	HourlyRate   *float64       `json:"hourlyRate"`
	Availability *string        `json:"availability"`
	Attributes   map[string]any `json:"attributes"`
}

type OrderRequestBody struct {
	ProviderID     string  `json:"providerId"`
	ListingID      string  `json:"listingId"`
	Title          string  `json:"title"`
	Details        string  `json:"details"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Amount         float64 `json:"amount"`
	ConversationID string  `json:"conversationId"`
}

type ActionRequest struct {
	Action string `json:"action"`
}

type CompleteRequest struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
}

type ReviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}
