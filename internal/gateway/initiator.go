// Package gateway hands payouts to the external payment gateway and decodes
// its callbacks.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/payloads"
)

// TransferRequest is what the gateway needs to move money to a vendor.
type TransferRequest struct {
	PayoutID     uuid.UUID
	PayoutNumber string
	VendorID     uuid.UUID
	Amount       decimal.Decimal
	Destination  models.BankAccountSnapshot
	RequestedAt  time.Time
	ActorID      *uuid.UUID
}

// TransferInitiator starts a transfer inside the caller's transaction.
type TransferInitiator interface {
	Initiate(ctx context.Context, tx *gorm.DB, req TransferRequest) error
}

// OutboxInitiator records the transfer request as an outbox event. The
// publisher relays it to the gateway topic once the transaction commits.
type OutboxInitiator struct {
	emitter outbox.Emitter
	name    string
}

// NewOutboxInitiator builds an initiator for the named gateway.
func NewOutboxInitiator(emitter outbox.Emitter, name string) (*OutboxInitiator, error) {
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("gateway name required")
	}
	return &OutboxInitiator{emitter: emitter, name: name}, nil
}

// Name returns the configured gateway name.
func (i *OutboxInitiator) Name() string {
	return i.name
}

func (i *OutboxInitiator) Initiate(ctx context.Context, tx *gorm.DB, req TransferRequest) error {
	if req.PayoutID == uuid.Nil {
		return errors.New("payout id required")
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", req.Amount.StringFixed(2))
	}
	if strings.TrimSpace(req.Destination.AccountNumber) == "" || strings.TrimSpace(req.Destination.IFSC) == "" {
		return errors.New("destination bank account is incomplete")
	}
	requestedAt := req.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}
	return i.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventVendorPayoutTransferRequested,
		AggregateType: enums.AggregateVendorPayout,
		AggregateID:   req.PayoutID,
		Actor:         outbox.ActorFor(req.ActorID, "payouts"),
		OccurredAt:    requestedAt,
		Data: payloads.TransferRequestedEvent{
			PayoutID:     req.PayoutID,
			PayoutNumber: req.PayoutNumber,
			VendorID:     req.VendorID,
			Amount:       req.Amount,
			Gateway:      i.name,
			Destination: payloads.BankDestination{
				HolderName:    req.Destination.HolderName,
				AccountNumber: req.Destination.AccountNumber,
				IFSC:          req.Destination.IFSC,
				BankName:      req.Destination.BankName,
			},
			RequestedAt: requestedAt,
		},
	})
}
