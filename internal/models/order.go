// internal/models/order.go
package models

// Order identifies the order an event refers to.
type Order struct {
	ID          int64  `json:"id"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status,omitempty"`
}

// Actor is a delivery partner as known to the notifier. Email and Phone may
// be empty, which makes the matching channel unavailable.
type Actor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
