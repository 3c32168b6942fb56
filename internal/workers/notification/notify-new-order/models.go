// internal/workers/notification/notify-new-order/models.go
package notifyneworder

import "cakeshop-notifier/internal/models"

type Input struct {
	OrderID      int64                `json:"orderId"`
	OrderNumber  string               `json:"orderNumber"`
	OrderDetails *models.OrderDetails `json:"orderDetails,omitempty"`
}

type Output struct {
	RealTimeNotification string `json:"realTimeNotification"`
	AdminCount           int    `json:"adminCount"`
}
