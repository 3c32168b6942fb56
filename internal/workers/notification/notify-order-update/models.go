// internal/workers/notification/notify-order-update/models.go
package notifyorderupdate

type Input struct {
	DeliveryBoyID int64  `json:"deliveryBoyId"`
	OrderID       int64  `json:"orderId"`
	OrderNumber   string `json:"orderNumber,omitempty"`
	Message       string `json:"message"`
	Kind          string `json:"kind,omitempty"` // order_updated (default) or order_cancelled
}

type Output struct {
	Sent bool `json:"sent"`
}
