package domain

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// EventType is a tag from the closed set of webhook events.
type EventType string

const (
	EventSurveyCreated   EventType = "survey.created"
	EventSurveyUpdated   EventType = "survey.updated"
	EventSurveyDeleted   EventType = "survey.deleted"
	EventResponseCreated EventType = "response.created"
	EventWebhookTest     EventType = "webhook.test"
)

// SubscribableEvents lists the events a subscription may select.
var SubscribableEvents = []EventType{
	EventSurveyCreated,
	EventSurveyUpdated,
	EventSurveyDeleted,
	EventResponseCreated,
}

// Subscribable reports whether subscriptions may select e.
func (e EventType) Subscribable() bool {
	return slices.Contains(SubscribableEvents, e)
}

// WebhookSubscription is a tenant endpoint plus the events it wants.
// SecretEnc holds the encrypted signing secret and is never serialized.
type WebhookSubscription struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   string      `json:"owner_id"`
	URL       string      `json:"url"`
	Events    []EventType `json:"events"`
	Active    bool        `json:"active"`
	SecretEnc string      `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Accepts reports whether the subscription should receive an event of type t.
func (s *WebhookSubscription) Accepts(t EventType) bool {
	return s.Active && slices.Contains(s.Events, t)
}

// WebhookEvent is handed to the dispatcher by a domain operation. It is not persisted.
type WebhookEvent struct {
	Type      EventType
	Timestamp time.Time
	Data      json.RawMessage
}

// NewWebhookEvent marshals data into an event stamped with now.
func NewWebhookEvent(t EventType, now time.Time, data any) (WebhookEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return WebhookEvent{}, err
	}
	return WebhookEvent{Type: t, Timestamp: now.UTC(), Data: raw}, nil
}

// DeliveryPayload is the signed body sent to one subscription.
type DeliveryPayload struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// DeliveryRecord is the terminal outcome of delivering one payload to one subscription.
type DeliveryRecord struct {
	ID          string    `json:"id"`
	WebhookID   uuid.UUID `json:"webhook_id"`
	PayloadID   string    `json:"payload_id"`
	EventType   EventType `json:"event_type"`
	Success     bool      `json:"success"`
	StatusCode  *int      `json:"status_code,omitempty"`
	Error       *string   `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	AttemptedAt time.Time `json:"attempted_at"`
}
