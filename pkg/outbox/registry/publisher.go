package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/pkg/config"
	"github.com/piersideeats/dispatch-backend/pkg/db/models"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/outbox"
	"github.com/piersideeats/dispatch-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type and aggregate to its topic and
// payload schema. The same event type can carry different payloads
// depending on the aggregate: a notification about a delivery offer is
// not shaped like a notification about a payout run.
type EventDescriptor struct {
	EventType      enums.PushEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

type registryKey struct {
	eventType     enums.PushEventType
	aggregateType enums.OutboxAggregateType
}

// EventRegistry maps each supported event to its descriptor.
type EventRegistry struct {
	entries map[registryKey]EventDescriptor
}

// NonRetryableError signals the publisher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic name.
// Every push event flows through the single realtime events topic; the
// websocket gateway fans out by event type.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("events topic is required")
	}

	reg := &EventRegistry{entries: make(map[registryKey]EventDescriptor)}
	topic := cfg.EventsTopic

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.PushOrderUpdate,
			AggregateType:  enums.AggregateOrder,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.OrderUpdateEvent{} },
		},
		{
			EventType:      enums.PushOrderStatusUpdated,
			AggregateType:  enums.AggregateOrder,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.OrderStatusUpdatedEvent{} },
		},
		{
			EventType:      enums.PushNotification,
			AggregateType:  enums.AggregateOffer,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.DeliveryOfferEvent{} },
		},
		{
			EventType:      enums.PushNotification,
			AggregateType:  enums.AggregatePayout,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.NotificationEvent{} },
		},
		{
			EventType:      enums.PushSystemAlert,
			AggregateType:  enums.AggregateIncident,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.SystemAlertEvent{} },
		},
		{
			EventType:      enums.PushRiderUpdate,
			AggregateType:  enums.AggregateRider,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.RiderUpdateEvent{} },
		},
		{
			EventType:      enums.PushRiderLocationUpdated,
			AggregateType:  enums.AggregateRider,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.RiderLocationUpdatedEvent{} },
		},
		{
			EventType:      enums.PushRiderScoreUpdated,
			AggregateType:  enums.AggregateRider,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.RiderScoreUpdatedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[registryKey{eventType: desc.EventType, aggregateType: desc.AggregateType}] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[registryKey{eventType: event.EventType, aggregateType: event.AggregateType}]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event %s for aggregate %s", event.EventType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
