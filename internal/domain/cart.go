package domain

import "time"

// CartItem is a product annotated with a purchase quantity. At most one
// CartItem exists per product id per user.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// Purchase is the full cart state captured at checkout time. It is written
// once and never mutated afterward.
type Purchase struct {
	ID            string     `json:"id"`
	Items         []CartItem `json:"items"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"paymentMethod"`
	Date          time.Time  `json:"date"`
}
