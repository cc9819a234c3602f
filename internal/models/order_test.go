package models

import "testing"

func TestNormalizeOrderStatus(t *testing.T) {
	cases := map[string]OrderStatus{
		"Shipped":            OrderStatusShipped,
		"PartiallyShipped":   OrderStatusShipped,
		"InvoiceUnconfirmed": OrderStatusShipped,
		"Delivered":          OrderStatusDelivered,
		"Canceled":           OrderStatusCancelled,
		"Cancelled":          OrderStatusCancelled,
		"Pending":            OrderStatusPending,
		"Unshipped":          OrderStatusPending,
		"":                   OrderStatusPending,
	}

	for raw, want := range cases {
		if got := NormalizeOrderStatus(raw); got != want {
			t.Errorf("NormalizeOrderStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}
