package domain

import (
	"fmt"
	"strings"
)

// Delivery selects how a keyword's results are emailed.
type Delivery string

const (
	// DeliveryPortal submits the WiseNews email form for the current result list.
	DeliveryPortal Delivery = "portal"
	// DeliverySMTP sends a digest through the configured SMTP server.
	DeliverySMTP Delivery = "smtp"
	DeliveryNone Delivery = "none"
)

// ParseDelivery accepts portal, smtp or none; empty means portal.
func ParseDelivery(raw string) (Delivery, error) {
	switch d := Delivery(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return DeliveryPortal, nil
	case DeliveryPortal, DeliverySMTP, DeliveryNone:
		return d, nil
	default:
		return "", fmt.Errorf("unknown delivery mode %q (expected portal, smtp or none)", raw)
	}
}
