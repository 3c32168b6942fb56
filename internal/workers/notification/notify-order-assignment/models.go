// internal/workers/notification/notify-order-assignment/models.go
package notifyorderassignment

import "cakeshop-notifier/internal/models"

type Input struct {
	DeliveryBoyID int64                `json:"deliveryBoyId"`
	OrderID       int64                `json:"orderId"`
	OrderNumber   string               `json:"orderNumber"`
	OrderStatus   string               `json:"orderStatus,omitempty"`
	OrderDetails  *models.OrderDetails `json:"orderDetails,omitempty"`
}

// Output carries one flag per channel back into the process.
type Output struct {
	RealTime bool `json:"realTime"`
	Email    bool `json:"email"`
	Push     bool `json:"push"`
	SMS      bool `json:"sms"`
}
