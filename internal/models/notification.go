// internal/models/notification.go
package models

import "time"

// NotificationType is the wire value of Notification.Type.
type NotificationType string

const (
	TypeOrderAssigned  NotificationType = "order_assigned"
	TypeOrderUpdated   NotificationType = "order_updated"
	TypeOrderCancelled NotificationType = "order_cancelled"
	TypeConnected      NotificationType = "connected"
	TypeNewOrder       NotificationType = "new_order"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeOrderAssigned, TypeOrderUpdated, TypeOrderCancelled, TypeConnected, TypeNewOrder:
		return true
	}
	return false
}

// CarriesDetails reports whether notifications of type t include OrderDetails.
func (t NotificationType) CarriesDetails() bool {
	return t == TypeOrderAssigned || t == TypeNewOrder
}

// OrderDetails is the customer-facing summary attached to assignment and
// new-order notifications.
type OrderDetails struct {
	CustomerName  string  `json:"customerName"`
	CustomerPhone string  `json:"customerPhone"`
	Amount        float64 `json:"amount"`
	Address       string  `json:"address"`
}

// Notification is the JSON text frame written to sockets and the push
// payload. It is built once per event and never mutated.
type Notification struct {
	Type         NotificationType `json:"type"`
	OrderID      int64            `json:"orderId,omitempty"`
	OrderNumber  string           `json:"orderNumber,omitempty"`
	Message      string           `json:"message"`
	Timestamp    string           `json:"timestamp"`
	OrderDetails *OrderDetails    `json:"orderDetails,omitempty"`
}

// NewNotification stamps the current time and drops details for types that
// must not carry them.
func NewNotification(t NotificationType, order Order, message string, details *OrderDetails) Notification {
	n := Notification{
		Type:        t,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Message:     message,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if t.CarriesDetails() && details != nil {
		d := *details
		n.OrderDetails = &d
	}
	return n
}

// NewConnectedNotification is sent right after a socket registers.
func NewConnectedNotification(message string) Notification {
	return Notification{
		Type:      TypeConnected,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
