// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will fail the same way every time.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

type topicKind int

const (
	payoutsTopic topicKind = iota
	gatewayTopic
)

type route struct {
	aggregate enums.OutboxAggregateType
	topic     topicKind
	payload   func() any
}

func statusPayload() any { return &payloads.VendorPayoutStatusEvent{} }

// routes lists every event this service emits. Only transfer requests leave
// for the gateway.
var routes = map[enums.OutboxEventType]route{
	enums.EventVendorPayoutCreated:           {enums.AggregateVendorPayout, payoutsTopic, func() any { return &payloads.VendorPayoutCreatedEvent{} }},
	enums.EventVendorPayoutProcessing:        {enums.AggregateVendorPayout, payoutsTopic, statusPayload},
	enums.EventVendorPayoutCompleted:         {enums.AggregateVendorPayout, payoutsTopic, statusPayload},
	enums.EventVendorPayoutFailed:            {enums.AggregateVendorPayout, payoutsTopic, statusPayload},
	enums.EventVendorPayoutCancelled:         {enums.AggregateVendorPayout, payoutsTopic, statusPayload},
	enums.EventVendorPayoutClaimsReleased:    {enums.AggregateVendorPayout, payoutsTopic, statusPayload},
	enums.EventVendorPayoutProcessingStale:   {enums.AggregateVendorPayout, payoutsTopic, func() any { return &payloads.PayoutProcessingStaleEvent{} }},
	enums.EventRevenueReconciliationMismatch: {enums.AggregateVendorPayout, payoutsTopic, func() any { return &payloads.RevenueReconciliationMismatchEvent{} }},
	enums.EventLedgerChainBroken:             {enums.AggregateVendorWallet, payoutsTopic, func() any { return &payloads.LedgerChainBrokenEvent{} }},
	enums.EventVendorPayoutTransferRequested: {enums.AggregateVendorPayout, gatewayTopic, func() any { return &payloads.TransferRequestedEvent{} }},
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.PayoutsTopic == "":
		return nil, errors.New("payouts topic is required")
	case cfg.GatewayTopic == "":
		return nil, errors.New("gateway topic is required")
	}
	topics := map[topicKind]string{payoutsTopic: cfg.PayoutsTopic, gatewayTopic: cfg.GatewayTopic}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(routes))}
	for eventType, rt := range routes {
		reg.entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  rt.aggregate,
			Topic:          topics[rt.topic],
			PayloadFactory: rt.payload,
		}
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the payload. Every
// failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
