// Package payouts prices, claims and drives vendor payouts through their lifecycle.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/internal/eligibility"
	"github.com/angelmondragon/packfinderz-payouts/internal/gateway"
	"github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	"github.com/angelmondragon/packfinderz-payouts/internal/vendors"
	dbpkg "github.com/angelmondragon/packfinderz-payouts/pkg/db"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/metrics"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox/payloads"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
	"github.com/angelmondragon/packfinderz-payouts/pkg/refnum"
)

const (
	lockNamespace          = "payout"
	claimsConstraint       = "ux_payout_order_claims_active"
	payoutNumberConstraint = "ux_vendor_payouts_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eligibilityResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, periodStart, periodEnd time.Time) (*eligibility.Result, error)
}

type payoutScheduler interface {
	ScheduleFor(ctx context.Context, tx *gorm.DB, latestDelivery time.Time) (time.Time, error)
}

type ledgerPoster interface {
	Append(ctx context.Context, tx *gorm.DB, entry ledger.Entry) (*models.WalletTransaction, error)
	Release(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, amount decimal.Decimal) (*models.VendorWallet, error)
	ListByReference(ctx context.Context, tx *gorm.DB, kind enums.LedgerReferenceKind, id uuid.UUID) ([]models.WalletTransaction, error)
	IsReversed(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	Reverse(ctx context.Context, tx *gorm.DB, originalID uuid.UUID, reason string) (*models.WalletTransaction, error)
}

type revenuePoster interface {
	PostCommissionRevenue(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout) (*models.PlatformRevenue, error)
	PostReturnFeeRevenue(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout) (*models.PlatformRevenue, error)
	VerifyPayout(ctx context.Context, tx *gorm.DB, payout *models.VendorPayout) error
}

type callbackDeduper interface {
	Claim(ctx context.Context, source, eventID string) (bool, error)
	Confirm(ctx context.Context, source, eventID string) error
	Release(ctx context.Context, source, eventID string) error
}

// ServiceParams wires the payout service.
type ServiceParams struct {
	DB          txRunner
	Repo        Repository
	Vendors     vendors.Repository
	Eligibility eligibilityResolver
	Rates       *RatePolicy
	Scheduler   payoutScheduler
	Ledger      ledgerPoster
	Revenue     revenuePoster
	Transfers   gateway.TransferInitiator
	GatewayName string
	Outbox      outbox.Emitter
	Callbacks   callbackDeduper
	Metrics     *metrics.PayoutMetrics
	Logger      *logger.Logger
	Now         func() time.Time
}

type Service struct {
	db          txRunner
	repo        Repository
	vendors     vendors.Repository
	eligibility eligibilityResolver
	rates       *RatePolicy
	scheduler   payoutScheduler
	ledger      ledgerPoster
	revenue     revenuePoster
	transfers   gateway.TransferInitiator
	gatewayName string
	outbox      outbox.Emitter
	callbacks   callbackDeduper
	metrics     *metrics.PayoutMetrics
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("payout repository required")
	case params.Vendors == nil:
		return nil, fmt.Errorf("vendor repository required")
	case params.Eligibility == nil:
		return nil, fmt.Errorf("eligibility resolver required")
	case params.Rates == nil:
		return nil, fmt.Errorf("rate policy required")
	case params.Scheduler == nil:
		return nil, fmt.Errorf("scheduler required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger required")
	case params.Revenue == nil:
		return nil, fmt.Errorf("revenue poster required")
	case params.Transfers == nil:
		return nil, fmt.Errorf("transfer initiator required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	gatewayName := strings.TrimSpace(params.GatewayName)
	if gatewayName == "" {
		gatewayName = "bank-transfer"
	}
	return &Service{
		db:          params.DB,
		repo:        params.Repo,
		vendors:     params.Vendors,
		eligibility: params.Eligibility,
		rates:       params.Rates,
		scheduler:   params.Scheduler,
		ledger:      params.Ledger,
		revenue:     params.Revenue,
		transfers:   params.Transfers,
		gatewayName: gatewayName,
		outbox:      params.Outbox,
		callbacks:   params.Callbacks,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// Calculate prices a vendor period without claiming anything. When nothing is
// eligible the zero breakdown is returned together with a NO_ELIGIBLE_ORDERS error.
func (s *Service) Calculate(ctx context.Context, input CalculateInput) (*Breakdown, error) {
	vendor, err := s.vendors.Get(ctx, input.VendorID)
	if err != nil {
		return nil, err
	}
	_, breakdown, err := s.price(ctx, nil, vendor, input)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleOrders) {
		return nil, err
	}
	return &breakdown, err
}

func (s *Service) price(ctx context.Context, tx *gorm.DB, vendor *models.Vendor, input CalculateInput) (*eligibility.Result, Breakdown, error) {
	if err := eligibility.ValidatePeriod(input.PeriodStart, input.PeriodEnd); err != nil {
		return nil, Breakdown{}, err
	}
	result, err := s.eligibility.Resolve(ctx, tx, vendor.ID, input.PeriodStart, input.PeriodEnd)
	if err != nil {
		return nil, Breakdown{}, err
	}
	breakdown, err := Calculate(CalculationInput{
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
		Items:       result.Items,
		Returns:     result.Returns,
		Rates:       s.rates.Resolve(*vendor),
		Adjustment:  input.Adjustment,
	})
	breakdown.VendorID = vendor.ID
	if err != nil {
		return result, breakdown, err
	}
	scheduled, err := s.scheduler.ScheduleFor(ctx, tx, breakdown.LatestDeliveryDate)
	if err != nil {
		return nil, Breakdown{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule payout")
	}
	breakdown.ScheduledPayoutDate = scheduled
	return result, breakdown, nil
}

// Create claims the eligible items of a period and records a pending payout.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.VendorPayout, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if err := eligibility.ValidatePeriod(input.PeriodStart, input.PeriodEnd); err != nil {
		return nil, err
	}
	reason := trimmed(input.AdjustmentReason)
	if !money.Round(input.Adjustment).IsZero() && reason == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason is required when an adjustment is set")
	}

	var payout *models.VendorPayout
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := dbpkg.AdvisoryXactLock(tx, dbpkg.LockKey(lockNamespace, input.VendorID.String())); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock vendor")
		}
		vendor, err := s.vendors.WithTx(tx).GetForUpdate(ctx, input.VendorID)
		if err != nil {
			return err
		}
		result, breakdown, err := s.price(ctx, tx, vendor, input.CalculateInput)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleOrders) {
			return err
		}
		if len(input.ExpectedOrderIDs) > 0 {
			if missing := missingOrders(result, input.ExpectedOrderIDs); len(missing) > 0 {
				return pkgerrors.New(pkgerrors.CodeOverlappingClaim, "orders are no longer eligible").
					WithDetails(map[string]any{"order_ids": missing})
			}
		}
		if err != nil {
			return err
		}
		if breakdown.NetAmount.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "net amount would be negative").
				WithDetails(map[string]any{"net_amount": breakdown.NetAmount.StringFixed(money.Places)})
		}
		bank := models.BankAccountSnapshot{
			HolderName:    strings.TrimSpace(vendor.BankAccountHolder),
			AccountNumber: strings.TrimSpace(vendor.BankAccountNumber),
			IFSC:          strings.TrimSpace(vendor.BankIFSC),
			BankName:      strings.TrimSpace(vendor.BankName),
		}
		if bank.AccountNumber == "" || bank.IFSC == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "vendor bank account is incomplete").
				WithDetails(map[string]any{"vendor_id": vendor.ID.String()})
		}

		now := s.now()
		payout = newPayout(vendor.ID, breakdown, bank, reason, now)
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, payout); err != nil {
			if dbpkg.IsUniqueViolation(err, payoutNumberConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payout number collision")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		claims := make([]models.PayoutOrderClaim, 0, len(breakdown.OrderIDs))
		for _, id := range breakdown.OrderIDs {
			claims = append(claims, models.PayoutOrderClaim{
				ID:          uuid.New(),
				PayoutID:    payout.ID,
				VendorID:    vendor.ID,
				OrderItemID: id,
				CreatedAt:   now,
			})
		}
		if err := repo.CreateClaims(ctx, claims); err != nil {
			if dbpkg.IsUniqueViolation(err, claimsConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeOverlappingClaim, err, "orders already claimed by another payout")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout claims")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorPayoutCreated,
			AggregateType: enums.AggregateVendorPayout,
			AggregateID:   payout.ID,
			Actor:         outbox.ActorFor(input.ActorID, "payouts"),
			OccurredAt:    now,
			Data: payloads.VendorPayoutCreatedEvent{
				PayoutID:            payout.ID,
				PayoutNumber:        payout.PayoutNumber,
				VendorID:            payout.VendorID,
				PeriodStart:         payout.PeriodStart,
				PeriodEnd:           payout.PeriodEnd,
				TotalOrders:         payout.TotalOrders,
				TotalSales:          payout.TotalSales,
				NetAmount:           payout.NetAmount,
				ScheduledPayoutDate: payout.ScheduledPayoutDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(payout.Status), payout.NetAmount)
	logCtx := s.logg.WithPayout(ctx, payout.ID.String(), payout.VendorID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"payout_number": payout.PayoutNumber,
		"total_orders":  payout.TotalOrders,
		"net_amount":    payout.NetAmount.StringFixed(money.Places),
	})
	s.logg.Info(logCtx, "payout created")
	return payout, nil
}

func newPayout(vendorID uuid.UUID, b Breakdown, bank models.BankAccountSnapshot, reason *string, now time.Time) *models.VendorPayout {
	return &models.VendorPayout{
		ID:                     uuid.New(),
		PayoutNumber:           refnum.New(refnum.PrefixPayout, now),
		VendorID:               vendorID,
		PeriodStart:            b.PeriodStart,
		PeriodEnd:              b.PeriodEnd,
		TotalSales:             b.TotalSales,
		PlatformCommission:     b.PlatformCommission,
		CommissionGST:          b.CommissionGST,
		TotalCommissionWithGST: b.TotalCommissionWithGST,
		TDSAmount:              b.TDSAmount,
		ReturnShippingFees:     b.ReturnShippingFees,
		ReturnCount:            b.ReturnCount,
		AdjustmentAmount:       b.AdjustmentAmount,
		AdjustmentReason:       reason,
		NetAmount:              b.NetAmount,
		Rates:                  b.Rates,
		TotalOrders:            b.TotalOrders,
		OrderIDs:               b.OrderIDs,
		ScheduledPayoutDate:    b.ScheduledPayoutDate,
		EarliestDeliveryDate:   b.EarliestDeliveryDate,
		LatestDeliveryDate:     b.LatestDeliveryDate,
		Status:                 enums.PayoutStatusPending,
		BankAccount:            bank,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func missingOrders(result *eligibility.Result, expected []uuid.UUID) []string {
	var missing []string
	for _, id := range expected {
		if !result.Contains(id) {
			missing = append(missing, id.String())
		}
	}
	return missing
}

// Get returns a payout by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	return s.load(ctx, s.repo, id)
}

func (s *Service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.VendorPayout, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	payout, err := repo.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if payout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found").
			WithDetails(map[string]any{"payout_id": id.String()})
	}
	return payout, nil
}

// List pages payouts newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payout status")
	}
	query := listParams{Filter: filter, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	page := &Page{Items: rows}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// ListStaleProcessing returns processing payouts handed to the gateway before cutoff.
func (s *Service) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]models.VendorPayout, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	rows, err := s.repo.ListStaleProcessing(ctx, cutoff, nil, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payouts")
	}
	return rows, nil
}

// TDSCertificate projects the tax statement of a completed payout.
func (s *Service) TDSCertificate(ctx context.Context, id uuid.UUID) (*TDSCertificate, error) {
	payout, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if payout.Status != enums.PayoutStatusCompleted || payout.CompletedAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "tds certificate requires a completed payout").
			WithDetails(map[string]any{"status": string(payout.Status)})
	}
	vendor, err := s.vendors.Get(ctx, payout.VendorID)
	if err != nil {
		return nil, err
	}
	return &TDSCertificate{
		PayoutID:     payout.ID,
		PayoutNumber: payout.PayoutNumber,
		VendorID:     vendor.ID,
		VendorName:   vendor.Name,
		PAN:          vendor.PANNumber,
		PeriodStart:  payout.PeriodStart,
		PeriodEnd:    payout.PeriodEnd,
		GrossAmount:  payout.TotalSales,
		TDSRate:      payout.Rates.TDSRate,
		TDSAmount:    payout.TDSAmount,
		CompletedAt:  *payout.CompletedAt,
	}, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

var errTransitionLost = errors.New("payout status changed concurrently")
