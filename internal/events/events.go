// Package events publishes lending lifecycle events to a message broker.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

const (
	// Producer identifies this service in every envelope
	Producer = "librotrack-lending"
	// Version of the envelope layout
	Version = 1
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type names a lifecycle event. It doubles as the routing key.
type Type string

const (
	LoanIssued           Type = "loan.issued"
	LoanReturned         Type = "loan.returned"
	LoanLost             Type = "loan.lost"
	ReservationCreated   Type = "reservation.created"
	ReservationCancelled Type = "reservation.cancelled"
	ReservationFulfilled Type = "reservation.fulfilled"
	ReservationExpired   Type = "reservation.expired"
	FineAssessed         Type = "fine.assessed"
	FinePaid             Type = "fine.paid"
	FineWaived           Type = "fine.waived"
)

// Envelope wraps every event payload
type Envelope struct {
	EventID      string              `json:"event_id"`
	EventType    Type                `json:"event_type"`
	EventVersion int                 `json:"event_version"`
	OccurredAt   time.Time           `json:"occurred_at"`
	Producer     string              `json:"producer"`
	Key          string              `json:"key"`
	Payload      jsoniter.RawMessage `json:"payload"`
}

// New builds an envelope. key groups related events, such as all events of
// one book, onto the same partition.
func New(eventType Type, key string, payload any, at time.Time) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: Version,
		OccurredAt:   at.UTC(),
		Producer:     Producer,
		Key:          key,
		Payload:      body,
	}, nil
}

// Marshal encodes the envelope for the wire
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode reads an envelope from the wire
func Decode(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

// UnwrapPayload decodes the payload of an envelope into T
func UnwrapPayload[T any](e Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(e.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return t, nil
}

// Publisher delivers envelopes to a broker
type Publisher interface {
	Publish(ctx context.Context, e Envelope) error
	Close() error
}
