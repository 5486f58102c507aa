package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/packfinderz-payouts/pkg/db"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/metrics"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
	"github.com/angelmondragon/packfinderz-payouts/pkg/refnum"
	"github.com/angelmondragon/packfinderz-payouts/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the ledger service.
type ServiceParams struct {
	Repo    Repository
	DB      txRunner
	Logger  *logger.Logger
	Metrics *metrics.PayoutMetrics
	Now     func() time.Time
}

// Service owns every write to vendor_wallets and wallet_transactions.
type Service struct {
	repo    Repository
	db      txRunner
	logg    *logger.Logger
	metrics *metrics.PayoutMetrics
	now     func() time.Time
}

// NewService validates params and builds a ledger service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:    params.Repo,
		db:      params.DB,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (s *Service) validate(entry *Entry) error {
	if entry.VendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if !entry.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", entry.Type))
	}
	if !entry.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction category %q", entry.Category))
	}
	if !entry.Reference.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid reference kind %q", entry.Reference.Kind))
	}
	if entry.Reference.Kind != enums.ReferenceManual && entry.Reference.ID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id is required")
	}
	entry.Amount = money.Round(entry.Amount)
	if !entry.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero").
			WithDetails(map[string]any{"amount": entry.Amount.StringFixed(money.Places)})
	}
	entry.Description = strings.TrimSpace(entry.Description)
	if entry.Description == "" {
		entry.Description = fmt.Sprintf("%s %s", entry.Category, entry.Type)
	}
	if entry.Metadata == nil {
		entry.Metadata = types.JSONMap{}
	}
	return nil
}

// Append writes one ledger entry and updates the wallet snapshot inside tx.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry Entry) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if err := s.validate(&entry); err != nil {
		return nil, err
	}
	now := s.now()
	repo := s.repo.WithTx(tx)

	wallet, err := repo.LockWallet(ctx, entry.VendorID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}
	prevSequence := wallet.LastSequence
	before := money.Round(wallet.Balance())

	var after decimal.Decimal
	switch entry.Type {
	case enums.WalletCredit:
		after = before.Add(entry.Amount)
		applyCredit(wallet, entry)
	case enums.WalletDebit:
		after = before.Sub(entry.Amount)
		if err := applyDebit(wallet, entry, now); err != nil {
			s.metrics.IncInsufficientFunds(string(entry.Category))
			return nil, err
		}
	}
	wallet.LastSequence = prevSequence + 1
	wallet.UpdatedAt = now

	txn := &models.WalletTransaction{
		ID:                uuid.New(),
		TransactionNumber: refnum.New(refnum.PrefixTransaction, now),
		VendorID:          entry.VendorID,
		WalletID:          wallet.ID,
		Sequence:          wallet.LastSequence,
		Type:              entry.Type,
		Category:          entry.Category,
		Amount:            entry.Amount,
		BalanceBefore:     before,
		BalanceAfter:      money.Round(after),
		ReferenceKind:     entry.Reference.Kind,
		ReferenceID:       entry.Reference.ID,
		Description:       entry.Description,
		Metadata:          entry.Metadata,
		CreatedAt:         now,
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ledger entry conflicts with an existing entry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wallet transaction")
	}
	if err := repo.SaveWallet(ctx, wallet, prevSequence); err != nil {
		if errors.Is(err, errSequenceMoved) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent ledger write")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet")
	}

	s.metrics.IncLedgerAppend(string(entry.Type), string(entry.Category))
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"vendor_id":      entry.VendorID.String(),
		"transaction_id": txn.ID.String(),
		"sequence":       txn.Sequence,
		"type":           string(txn.Type),
		"category":       string(txn.Category),
		"amount":         txn.Amount.StringFixed(money.Places),
	}), "ledger entry appended")
	return txn, nil
}

func applyCredit(wallet *models.VendorWallet, entry Entry) {
	switch entry.Category {
	case enums.CategoryOrderPayment:
		wallet.PendingBalance = wallet.PendingBalance.Add(entry.Amount)
		wallet.TotalEarned = wallet.TotalEarned.Add(entry.Amount)
	case enums.CategoryBonus:
		wallet.AvailableBalance = wallet.AvailableBalance.Add(entry.Amount)
		wallet.TotalEarned = wallet.TotalEarned.Add(entry.Amount)
	default:
		wallet.AvailableBalance = wallet.AvailableBalance.Add(entry.Amount)
	}
}

func applyDebit(wallet *models.VendorWallet, entry Entry, now time.Time) error {
	available := money.Round(wallet.AvailableBalance)
	pending := money.Round(wallet.PendingBalance)
	switch {
	case available.GreaterThanOrEqual(entry.Amount):
		wallet.AvailableBalance = available.Sub(entry.Amount)
	case entry.Category.DrawsFromPending() && available.Add(pending).GreaterThanOrEqual(entry.Amount):
		wallet.PendingBalance = pending.Sub(entry.Amount.Sub(available))
		wallet.AvailableBalance = decimal.Zero
	default:
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
			WithDetails(map[string]any{
				"vendor_id": entry.VendorID.String(),
				"category":  string(entry.Category),
				"amount":    entry.Amount.StringFixed(money.Places),
				"available": available.StringFixed(money.Places),
				"pending":   pending.StringFixed(money.Places),
			})
	}
	if entry.Category == enums.CategoryPayout {
		amount := entry.Amount
		wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(amount)
		wallet.LastPayoutAt = &now
		wallet.LastPayoutAmount = &amount
	}
	return nil
}

// Release moves up to amount from pending to available. The total balance is
// unchanged so no ledger entry is written.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, amount decimal.Decimal) (*models.VendorWallet, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	amount = money.Round(amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "release amount must be greater than zero")
	}
	now := s.now()
	repo := s.repo.WithTx(tx)
	wallet, err := repo.LockWallet(ctx, vendorID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
	}
	moved := money.Min(amount, money.Round(wallet.PendingBalance))
	if !moved.IsPositive() {
		return wallet, nil
	}
	wallet.PendingBalance = money.Round(wallet.PendingBalance).Sub(moved)
	wallet.AvailableBalance = money.Round(wallet.AvailableBalance).Add(moved)
	wallet.UpdatedAt = now
	if err := repo.SaveWallet(ctx, wallet, wallet.LastSequence); err != nil {
		if errors.Is(err, errSequenceMoved) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent ledger write")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release pending balance")
	}
	return wallet, nil
}

// IsReversed reports whether a compensating entry already references id.
func (s *Service) IsReversed(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	rows, err := s.repo.WithTx(tx).ListByReference(ctx, enums.ReferenceWalletTransaction, id)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reversals")
	}
	return len(rows) > 0, nil
}

// Reverse appends an adjustment of opposite type that cancels original.
func (s *Service) Reverse(ctx context.Context, tx *gorm.DB, originalID uuid.UUID, reason string) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	original, err := s.repo.WithTx(tx).FindTransaction(ctx, originalID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet transaction")
	}
	if original == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet transaction not found")
	}
	reversed, err := s.IsReversed(ctx, tx, originalID)
	if err != nil {
		return nil, err
	}
	if reversed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet transaction already reversed").
			WithDetails(map[string]any{"transaction_id": originalID.String()})
	}
	reason = strings.TrimSpace(reason)
	return s.Append(ctx, tx, Entry{
		VendorID:    original.VendorID,
		Type:        original.Type.Opposite(),
		Category:    enums.CategoryAdjustment,
		Amount:      original.Amount,
		Reference:   Ref(enums.ReferenceWalletTransaction, original.ID),
		Description: fmt.Sprintf("Reversal of %s: %s", original.TransactionNumber, reason),
		Metadata: types.JSONMap{
			"reversed_transaction_id": original.ID.String(),
			"reversed_category":       string(original.Category),
			"reason":                  reason,
		},
	})
}

// GetWallet returns the wallet or a zero wallet when none exists yet.
func (s *Service) GetWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	wallet, err := s.repo.FindWallet(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet == nil {
		return &models.VendorWallet{
			VendorID:         vendorID,
			AvailableBalance: decimal.Zero,
			PendingBalance:   decimal.Zero,
			TotalEarned:      decimal.Zero,
			TotalWithdrawn:   decimal.Zero,
		}, nil
	}
	return wallet, nil
}

// TransactionPage is one page of ledger history, newest first.
type TransactionPage struct {
	Items  []models.WalletTransaction
	Cursor string
}

// ListTransactions pages a vendor's ledger history.
func (s *Service) ListTransactions(ctx context.Context, vendorID uuid.UUID, filter TransactionFilter, params pagination.Params) (*TransactionPage, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	if filter.Category != nil && !filter.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction category")
	}
	query := listTransactionsParams{VendorID: vendorID, Filter: filter, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.ListTransactions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	page := &TransactionPage{Items: rows}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// ListByReference returns entries pointing at kind/id, in sequence order.
func (s *Service) ListByReference(ctx context.Context, tx *gorm.DB, kind enums.LedgerReferenceKind, id uuid.UUID) ([]models.WalletTransaction, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reference kind")
	}
	rows, err := s.repo.WithTx(tx).ListByReference(ctx, kind, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list entries by reference")
	}
	return rows, nil
}

// ResolveReference checks that the row a reference points at exists.
func (s *Service) ResolveReference(ctx context.Context, tx *gorm.DB, ref Reference) error {
	if !ref.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid reference kind %q", ref.Kind))
	}
	table, ok := ref.Kind.Table()
	if !ok {
		return nil
	}
	if ref.ID == nil || *ref.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id is required")
	}
	exists, err := s.repo.WithTx(tx).ReferenceExists(ctx, table, *ref.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve reference")
	}
	if !exists {
		return referenceNotFound(ref.Kind, *ref.ID)
	}
	return nil
}

// ListWalletVendorIDs pages vendors that own a wallet.
func (s *Service) ListWalletVendorIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.ListWalletVendorIDs(ctx, after, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet vendors")
	}
	return ids, nil
}
