// internal/models/push.go
package models

import "time"

// PushKeys are the browser-generated encryption keys of a subscription.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is the descriptor a browser hands out on subscribe.
type PushSubscription struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

// PushSubscriptionRecord is a persisted row of delivery_push_subscriptions.
type PushSubscriptionRecord struct {
	DeliveryBoyID int64     `json:"deliveryBoyId"`
	Endpoint      string    `json:"endpoint"`
	P256dh        string    `json:"p256dh"`
	Auth          string    `json:"auth"`
	IsActive      bool      `json:"isActive"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Subscription returns the descriptor stored in the record.
func (r PushSubscriptionRecord) Subscription() PushSubscription {
	return PushSubscription{
		Endpoint: r.Endpoint,
		Keys:     PushKeys{P256dh: r.P256dh, Auth: r.Auth},
	}
}
