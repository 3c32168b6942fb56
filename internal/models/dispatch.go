// internal/models/dispatch.go
package models

import "time"

// ChannelFlags reports which channels delivered a notification.
type ChannelFlags struct {
	RealTime bool `json:"realTime"`
	Email    bool `json:"email"`
	Push     bool `json:"push"`
	SMS      bool `json:"sms"`
}

// DispatchRecord is the audit entry written for every dispatch.
type DispatchRecord struct {
	ID          string           `json:"id"`
	Kind        NotificationType `json:"kind"`
	ActorID     int64            `json:"actorId,omitempty"`
	OrderID     int64            `json:"orderId,omitempty"`
	OrderNumber string           `json:"orderNumber,omitempty"`
	Channels    ChannelFlags     `json:"channels"`
	AdminCount  int              `json:"adminCount,omitempty"`
	DurationMs  int64            `json:"durationMs"`
	CreatedAt   time.Time        `json:"createdAt"`
}
