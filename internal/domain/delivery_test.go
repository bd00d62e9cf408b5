package domain

import "testing"

func TestDeliveryStatusIsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status DeliveryStatus
		want   bool
	}{
		{DeliveryQueued, false},
		{DeliverySending, false},
		{DeliverySent, false},
		{DeliveryDelivered, true},
		{DeliveryFailed, true},
		{DeliveryCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestReceiptOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want DeliveryStatus
	}{
		{0, DeliverySent},
		{1, DeliveryDelivered},
		{-1, DeliveryFailed},
		{12, DeliveryFailed},
	}

	for _, tt := range tests {
		receipt := Receipt{StatusCode: tt.code}
		if got := receipt.Outcome(); got != tt.want {
			t.Fatalf("Outcome(code=%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}
