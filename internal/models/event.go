package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события в системе.
type EventType string

const (
	EventTypeDealCreated        EventType = "deal.created"
	EventTypeDealStatusChanged  EventType = "deal.status_changed"
	EventTypeCouponIssued       EventType = "coupon.issued"
	EventTypeCouponRedeemed     EventType = "coupon.redeemed"
	EventTypeRedemptionRejected EventType = "redemption.rejected"
)

// Event — обёртка события для Kafka.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent создаёт событие с заполненными ID и временем.
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}
