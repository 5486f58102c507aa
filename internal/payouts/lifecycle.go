package payouts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/internal/gateway"
	"github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	dbpkg "github.com/angelmondragon/packfinderz-payouts/pkg/db"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/payloads"
	"github.com/angelmondragon/packfinderz-payouts/pkg/types"
)

var reversibleCategories = map[enums.WalletTransactionCategory]struct{}{
	enums.CategoryPayout:     {},
	enums.CategoryCommission: {},
	enums.CategoryTDS:        {},
	enums.CategoryPenalty:    {},
}

func invalidTransition(from, to enums.PayoutStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move payout from %s to %s", from, to)).
		WithDetails(map[string]any{"from": string(from), "to": string(to)})
}

// loadFor reads the payout and rejects edges outside the state machine.
func (s *Service) loadFor(ctx context.Context, repo Repository, id uuid.UUID, to enums.PayoutStatus) (*models.VendorPayout, error) {
	payout, err := s.load(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if !payout.Status.CanTransitionTo(to) {
		return nil, invalidTransition(payout.Status, to)
	}
	return payout, nil
}

// advance applies the status CAS and returns the updated row.
func (s *Service) advance(ctx context.Context, repo Repository, payout *models.VendorPayout, to enums.PayoutStatus, updates map[string]any) (*models.VendorPayout, error) {
	ok, err := repo.Transition(ctx, payout.ID, payout.Status, to, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout status")
	}
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidTransition, errTransitionLost, fmt.Sprintf("cannot move payout from %s to %s", payout.Status, to)).
			WithDetails(map[string]any{"from": string(payout.Status), "to": string(to)})
	}
	return s.load(ctx, repo, payout.ID)
}

// Process hands a pending payout to the gateway.
func (s *Service) Process(ctx context.Context, input ProcessInput) (*models.VendorPayout, error) {
	var prev enums.PayoutStatus
	var updated *models.VendorPayout
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.loadFor(ctx, repo, input.PayoutID, enums.PayoutStatusProcessing)
		if err != nil {
			return err
		}
		prev = payout.Status
		now := s.now()
		updated, err = s.advance(ctx, repo, payout, enums.PayoutStatusProcessing, map[string]any{
			"processed_at":    now,
			"processed_by":    input.ActorID,
			"payment_gateway": s.gatewayName,
		})
		if err != nil {
			return err
		}
		if err := s.transfers.Initiate(ctx, tx, gateway.TransferRequest{
			PayoutID:     updated.ID,
			PayoutNumber: updated.PayoutNumber,
			VendorID:     updated.VendorID,
			Amount:       updated.NetAmount,
			Destination:  updated.BankAccount,
			RequestedAt:  now,
			ActorID:      input.ActorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, err, "initiate transfer").
				WithDetails(map[string]any{"gateway": s.gatewayName})
		}
		return s.emitStatus(ctx, tx, updated, prev, enums.EventVendorPayoutProcessing, nil, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, updated, prev)
	return updated, nil
}

// Complete settles a processing payout: it posts the ledger debits and the
// platform revenue, then checks that both agree, all in one transaction.
func (s *Service) Complete(ctx context.Context, input CompleteInput) (*models.VendorPayout, error) {
	method := strings.TrimSpace(input.PaymentMethod)
	reference := strings.TrimSpace(input.PaymentReference)
	fields := map[string]string{}
	if method == "" {
		fields["payment_method"] = "required"
	}
	if reference == "" {
		fields["payment_reference"] = "required"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment details are required").WithDetails(fields)
	}

	var prev enums.PayoutStatus
	var updated *models.VendorPayout
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.loadFor(ctx, repo, input.PayoutID, enums.PayoutStatusCompleted)
		if err != nil {
			return err
		}
		if err := dbpkg.AdvisoryXactLock(tx, dbpkg.LockKey(lockNamespace, payout.VendorID.String())); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock vendor")
		}
		prev = payout.Status
		updates := map[string]any{
			"payment_method":    method,
			"payment_reference": reference,
			"completed_at":      s.now(),
		}
		if input.GatewayResponse != nil {
			updates["gateway_response"] = types.JSONMap(input.GatewayResponse)
		}
		updated, err = s.advance(ctx, repo, payout, enums.PayoutStatusCompleted, updates)
		if err != nil {
			return err
		}
		if err := s.postSettlement(ctx, tx, updated); err != nil {
			return err
		}
		if _, err := s.revenue.PostCommissionRevenue(ctx, tx, updated); err != nil {
			return err
		}
		if updated.ReturnShippingFees.IsPositive() {
			if _, err := s.revenue.PostReturnFeeRevenue(ctx, tx, updated); err != nil {
				return err
			}
		}
		if err := s.revenue.VerifyPayout(ctx, tx, updated); err != nil {
			return err
		}
		return s.emitStatus(ctx, tx, updated, prev, enums.EventVendorPayoutCompleted, nil, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, updated, prev)
	return updated, nil
}

// postSettlement moves the claimed sales to available and debits what the
// vendor is paid and owes.
func (s *Service) postSettlement(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout) error {
	if _, err := s.ledger.Release(ctx, tx, payout.VendorID, payout.TotalSales); err != nil {
		return err
	}
	ref := ledger.Ref(enums.ReferenceVendorPayout, payout.ID)
	meta := types.JSONMap{"payout_number": payout.PayoutNumber}
	entry := func(t enums.WalletTransactionType, c enums.WalletTransactionCategory, amount decimal.Decimal, desc string) ledger.Entry {
		return ledger.Entry{
			VendorID:    payout.VendorID,
			Type:        t,
			Category:    c,
			Amount:      amount,
			Reference:   ref,
			Description: fmt.Sprintf("%s %s", desc, payout.PayoutNumber),
			Metadata:    meta,
		}
	}

	var entries []ledger.Entry
	switch adj := payout.AdjustmentAmount; {
	case adj.IsPositive():
		entries = append(entries, entry(enums.WalletCredit, enums.CategoryAdjustment, adj, "Payout adjustment"))
	case adj.IsNegative():
		entries = append(entries, entry(enums.WalletDebit, enums.CategoryAdjustment, adj.Abs(), "Payout adjustment"))
	}
	entries = append(entries,
		entry(enums.WalletDebit, enums.CategoryPenalty, payout.ReturnShippingFees, "Return shipping fees"),
		entry(enums.WalletDebit, enums.CategoryPayout, payout.NetAmount, "Payout"),
		entry(enums.WalletDebit, enums.CategoryCommission, payout.TotalCommissionWithGST, "Platform commission"),
		entry(enums.WalletDebit, enums.CategoryTDS, payout.TDSAmount, "TDS withheld"),
	)
	for _, e := range entries {
		if !money.IsPositive(e.Amount) {
			continue
		}
		if _, err := s.ledger.Append(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

// Fail marks a processing payout failed and compensates any settlement debits
// already posted against it. Claims stay held until Release.
func (s *Service) Fail(ctx context.Context, input FailInput) (*models.VendorPayout, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "failure reason is required")
	}

	var prev enums.PayoutStatus
	var updated *models.VendorPayout
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.loadFor(ctx, repo, input.PayoutID, enums.PayoutStatusFailed)
		if err != nil {
			return err
		}
		prev = payout.Status
		if err := s.compensate(ctx, tx, payout, reason); err != nil {
			return err
		}
		updates := map[string]any{
			"failure_reason": reason,
			"failed_at":      s.now(),
		}
		if input.GatewayResponse != nil {
			updates["gateway_response"] = types.JSONMap(input.GatewayResponse)
		}
		updated, err = s.advance(ctx, repo, payout, enums.PayoutStatusFailed, updates)
		if err != nil {
			return err
		}
		return s.emitStatus(ctx, tx, updated, prev, enums.EventVendorPayoutFailed, &reason, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, updated, prev)
	return updated, nil
}

func (s *Service) compensate(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout, reason string) error {
	rows, err := s.ledger.ListByReference(ctx, tx, enums.ReferenceVendorPayout, payout.ID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Type != enums.WalletDebit {
			continue
		}
		if _, ok := reversibleCategories[row.Category]; !ok {
			continue
		}
		reversed, err := s.ledger.IsReversed(ctx, tx, row.ID)
		if err != nil {
			return err
		}
		if reversed {
			continue
		}
		if _, err := s.ledger.Reverse(ctx, tx, row.ID, "payout failed: "+reason); err != nil {
			return err
		}
		logCtx := s.logg.WithPayout(ctx, payout.ID.String(), payout.VendorID.String())
		s.logg.Warn(s.logg.WithField(logCtx, "transaction_id", row.ID.String()), "reversed settlement debit on failed payout")
	}
	return nil
}

// Cancel withdraws a pending payout and frees its claimed orders.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (*models.VendorPayout, error) {
	var prev enums.PayoutStatus
	var updated *models.VendorPayout
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.loadFor(ctx, repo, input.PayoutID, enums.PayoutStatusCancelled)
		if err != nil {
			return err
		}
		prev = payout.Status
		now := s.now()
		updates := map[string]any{"cancelled_at": now}
		notes := strings.TrimSpace(input.Notes)
		if notes != "" {
			updates["admin_notes"] = notes
		}
		updated, err = s.advance(ctx, repo, payout, enums.PayoutStatusCancelled, updates)
		if err != nil {
			return err
		}
		if _, err := repo.ReleaseClaims(ctx, payout.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release payout claims")
		}
		var reason *string
		if notes != "" {
			reason = &notes
		}
		return s.emitStatus(ctx, tx, updated, prev, enums.EventVendorPayoutCancelled, reason, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, updated, prev)
	return updated, nil
}

// Release frees the claims held by a failed payout so the orders can be paid again.
func (s *Service) Release(ctx context.Context, input ReleaseInput) (*models.VendorPayout, error) {
	var updated *models.VendorPayout
	var released int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, input.PayoutID)
		if err != nil {
			return err
		}
		if payout.Status != enums.PayoutStatusFailed || payout.ClaimsReleasedAt != nil {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only failed payouts with held claims can be released").
				WithDetails(map[string]any{"status": string(payout.Status), "claims_released": payout.ClaimsReleasedAt != nil})
		}
		now := s.now()
		ok, err := repo.MarkClaimsReleased(ctx, payout.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark claims released")
		}
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidTransition, errTransitionLost, "payout claims already released")
		}
		if released, err = repo.ReleaseClaims(ctx, payout.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release payout claims")
		}
		if updated, err = s.load(ctx, repo, payout.ID); err != nil {
			return err
		}
		return s.emitStatus(ctx, tx, updated, updated.Status, enums.EventVendorPayoutClaimsReleased, nil, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithPayout(ctx, updated.ID.String(), updated.VendorID.String())
	s.logg.Info(s.logg.WithField(logCtx, "claims_released", released), "payout claims released")
	return updated, nil
}

// Archive hides a payout that no longer holds claims.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		ok, err := repo.Archive(ctx, payout.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive payout")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only cancelled or released failed payouts can be archived").
				WithDetails(map[string]any{"status": string(payout.Status)})
		}
		s.logg.Info(s.logg.WithPayout(ctx, payout.ID.String(), payout.VendorID.String()), "payout archived")
		return nil
	})
}

// HandleGatewayCallback applies a transfer result once per gateway event id.
// It reports false when the event was already handled.
func (s *Service) HandleGatewayCallback(ctx context.Context, cb *gateway.Callback) (bool, error) {
	if cb == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "callback required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"gateway_event_id": cb.EventID, "payout_id": cb.PayoutID.String()})
	if s.callbacks != nil {
		first, err := s.callbacks.Claim(ctx, s.gatewayName, cb.EventID)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check gateway callback")
		}
		if !first {
			s.logg.Info(ctx, "duplicate gateway callback ignored")
			return false, nil
		}
	}

	var err error
	switch cb.Status {
	case gateway.CallbackSuccess:
		_, err = s.Complete(ctx, CompleteInput{
			PayoutID:         cb.PayoutID,
			PaymentMethod:    cb.PaymentMethod,
			PaymentReference: cb.PaymentReference,
			GatewayResponse:  cb.RawResponse(),
		})
	case gateway.CallbackFailure:
		_, err = s.Fail(ctx, FailInput{
			PayoutID:        cb.PayoutID,
			Reason:          cb.FailureReason,
			GatewayResponse: cb.RawResponse(),
		})
	default:
		err = pkgerrors.New(pkgerrors.CodeValidation, "unknown callback status").
			WithDetails(map[string]any{"status": string(cb.Status)})
	}
	if err != nil {
		if s.callbacks != nil {
			if delErr := s.callbacks.Release(ctx, s.gatewayName, cb.EventID); delErr != nil {
				s.logg.Error(ctx, "failed to clear gateway callback marker", delErr)
			}
		}
		return false, err
	}
	if s.callbacks != nil {
		// the transition is committed; an unconfirmed marker only expires sooner
		if confirmErr := s.callbacks.Confirm(ctx, s.gatewayName, cb.EventID); confirmErr != nil {
			s.logg.Error(ctx, "failed to confirm gateway callback marker", confirmErr)
		}
	}
	return true, nil
}

func (s *Service) emitStatus(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout, previous enums.PayoutStatus, eventType enums.OutboxEventType, reason *string, actorID *uuid.UUID) error {
	occurredAt := s.now()
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateVendorPayout,
		AggregateID:   payout.ID,
		Actor:         outbox.ActorFor(actorID, "payouts"),
		OccurredAt:    occurredAt,
		Data: payloads.VendorPayoutStatusEvent{
			PayoutID:         payout.ID,
			PayoutNumber:     payout.PayoutNumber,
			VendorID:         payout.VendorID,
			PreviousStatus:   previous,
			Status:           payout.Status,
			NetAmount:        payout.NetAmount,
			PaymentReference: payout.PaymentReference,
			Reason:           reason,
			ActorID:          actorID,
			OccurredAt:       occurredAt,
		},
	})
}

func (s *Service) afterTransition(ctx context.Context, payout *models.VendorPayout, from enums.PayoutStatus) {
	s.metrics.ObserveTransition(string(payout.Status), payout.NetAmount)
	logCtx := s.logg.WithPayout(ctx, payout.ID.String(), payout.VendorID.String())
	logCtx = s.logg.WithField(logCtx, "transition", fmt.Sprintf("%s->%s", from, payout.Status))
	s.logg.Info(logCtx, "payout transitioned")
}
