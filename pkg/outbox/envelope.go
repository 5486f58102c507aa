package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
)

const (
	roleAdmin    = "admin"
	systemPrefix = "system:"
)

// ActorRef identifies who triggered the event. It carries an ActorID only
// for admin actions.
type ActorRef struct {
	ActorID *uuid.UUID `json:"actorId,omitempty"`
	Role    string     `json:"role,omitempty"`
}

// IsSystem reports whether the event came from a background component.
func (a *ActorRef) IsSystem() bool {
	return a == nil || a.ActorID == nil
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// published as the message body. EventID is the outbox row id.
type PayloadEnvelope struct {
	Version       int                       `json:"version"`
	EventID       string                    `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID                 `json:"aggregateId"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}

// SystemActor tags events emitted by a named background component.
func SystemActor(name string) *ActorRef {
	return &ActorRef{Role: systemPrefix + name}
}

// ActorFor attributes an event to the admin who requested it, falling back to
// the named component when no admin is known.
func ActorFor(actorID *uuid.UUID, component string) *ActorRef {
	if actorID == nil || *actorID == uuid.Nil {
		return SystemActor(component)
	}
	id := *actorID
	return &ActorRef{ActorID: &id, Role: roleAdmin}
}
