package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"processing to shipped", StatusProcessing, StatusShipped, true},
		{"processing to cancelled", StatusProcessing, StatusCancelled, true},
		{"shipped to delivered", StatusShipped, StatusDelivered, true},
		{"processing to delivered skips shipped", StatusProcessing, StatusDelivered, false},
		{"shipped to cancelled", StatusShipped, StatusCancelled, false},
		{"delivered is terminal", StatusDelivered, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusShipped, false},
		{"no re-entry from shipped", StatusShipped, StatusProcessing, false},
		{"no re-entry from delivered", StatusDelivered, StatusProcessing, false},
		{"no re-entry from cancelled", StatusCancelled, StatusProcessing, false},
		{"no self transition", StatusProcessing, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	assert.True(t, StatusProcessing.Cancellable())
	assert.False(t, StatusShipped.Cancellable())
	assert.False(t, StatusDelivered.Cancellable())
	assert.False(t, StatusCancelled.Cancellable())
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, StatusProcessing.Valid())
	assert.True(t, StatusShipped.Valid())
	assert.True(t, StatusDelivered.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, OrderStatus("pending").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusShipped.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
