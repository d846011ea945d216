package shared

import (
	"context"
	"time"
)

type EventType string

const (
	EventSaleCompleted        EventType = "sale.completed"
	EventRefundCompleted      EventType = "refund.completed"
	EventManualRefundRequired EventType = "refund.manual_required"
)

type Event struct {
	Type       EventType
	Key        string
	OccurredAt time.Time
	Payload    any
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
