package events

import "github.com/google/uuid"

// Topic constants for domain events emitted by the checkout service.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderConfirmed = "order.confirmed"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{TopicOrderCreated, TopicOrderConfirmed}
}

// OrderCreated is the payload of TopicOrderCreated.
type OrderCreated struct {
	OrderID    uuid.UUID `json:"orderId"`
	UserID     uuid.UUID `json:"userId"`
	Total      string    `json:"total"`
	Currency   string    `json:"currency"`
	CouponCode string    `json:"couponCode,omitempty"`
	CoinsUsed  int64     `json:"coinsUsed"`
}

// OrderConfirmed is the payload of TopicOrderConfirmed. Coins are the coins
// earned by the order, credited asynchronously.
type OrderConfirmed struct {
	OrderID uuid.UUID `json:"orderId"`
	UserID  uuid.UUID `json:"userId"`
	Coins   int64     `json:"coins"`
}
