// internal/workers/notification/notify-order-update/handler_test.go
package notifyorderupdate

import (
	"context"
	"testing"
	"time"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"
	"cakeshop-notifier/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockDispatcher struct {
	sent     bool
	actorID  int64
	message  string
	lastKind models.NotificationType
}

func (m *MockDispatcher) NotifyOrderUpdate(_ context.Context, actorID int64, _ models.Order, message string, kind models.NotificationType) bool {
	m.actorID = actorID
	m.message = message
	m.lastKind = kind
	return m.sent
}

func createTestHandler(t *testing.T, d Dispatcher) *Handler {
	return NewHandler(&Config{Timeout: time.Second}, d, registry.MustDefault(), logger.NewTestLogger(t))
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		online   bool
		wantKind models.NotificationType
	}{
		{"reassignment defaults to updated", &Input{DeliveryBoyID: 2, OrderID: 5, Message: "Order reassigned"}, true, models.TypeOrderUpdated},
		{"cancellation", &Input{DeliveryBoyID: 2, OrderID: 5, Message: "Order cancelled", Kind: "order_cancelled"}, true, models.TypeOrderCancelled},
		{"offline actor", &Input{DeliveryBoyID: 9, OrderID: 5, Message: "Order reassigned", Kind: "order_updated"}, false, models.TypeOrderUpdated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &MockDispatcher{sent: tt.online}
			out := createTestHandler(t, d).Execute(context.Background(), tt.input)

			assert.Equal(t, tt.online, out.Sent)
			assert.Equal(t, tt.wantKind, d.lastKind)
			assert.Equal(t, tt.input.DeliveryBoyID, d.actorID)
			assert.Equal(t, tt.input.Message, d.message)
		})
	}
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockDispatcher{})

	in, err := h.ParseInput(`{"deliveryBoyId":2,"orderId":5,"message":"moved","kind":"order_cancelled"}`)
	require.NoError(t, err)
	assert.Equal(t, "order_cancelled", in.Kind)

	for _, bad := range []string{
		`{"deliveryBoyId":2,"orderId":5}`,
		`{"deliveryBoyId":2,"orderId":5,"message":""}`,
		`{"deliveryBoyId":2,"orderId":5,"message":"x","kind":"order_assigned"}`,
	} {
		_, err := h.ParseInput(bad)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidNotificationIn), bad)
	}
}
