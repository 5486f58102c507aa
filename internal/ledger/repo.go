package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

// Repository manages persistence for wallets and wallet transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error)
	LockWallet(ctx context.Context, vendorID uuid.UUID, now time.Time) (*models.VendorWallet, error)
	SaveWallet(ctx context.Context, wallet *models.VendorWallet, expectedSequence int64) error
	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error)
	ListChain(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error)
	ListByReference(ctx context.Context, kind enums.LedgerReferenceKind, id uuid.UUID) ([]models.WalletTransaction, error)
	ReferenceExists(ctx context.Context, table string, id uuid.UUID) (bool, error)
	FindOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	FindReturnOrder(ctx context.Context, id uuid.UUID) (*models.ReturnOrder, error)
	ListWalletVendorIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type listTransactionsParams struct {
	VendorID uuid.UUID
	Filter   TransactionFilter
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	var wallet models.VendorWallet
	err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockWallet creates the wallet when missing and returns it row-locked.
func (r *repository) LockWallet(ctx context.Context, vendorID uuid.UUID, now time.Time) (*models.VendorWallet, error) {
	fresh := models.VendorWallet{
		ID:               uuid.New(),
		VendorID:         vendorID,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		TotalEarned:      decimal.Zero,
		TotalWithdrawn:   decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "vendor_id"}}, DoNothing: true}).
		Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	var wallet models.VendorWallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ?", vendorID).
		First(&wallet).Error; err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &wallet, nil
}

// SaveWallet writes the snapshot only if no other writer advanced the sequence.
func (r *repository) SaveWallet(ctx context.Context, wallet *models.VendorWallet, expectedSequence int64) error {
	if wallet == nil {
		return fmt.Errorf("wallet is required")
	}
	res := r.db.WithContext(ctx).
		Model(&models.VendorWallet{}).
		Where("id = ? AND last_sequence = ?", wallet.ID, expectedSequence).
		Updates(map[string]any{
			"available_balance":  wallet.AvailableBalance,
			"pending_balance":    wallet.PendingBalance,
			"total_earned":       wallet.TotalEarned,
			"total_withdrawn":    wallet.TotalWithdrawn,
			"last_payout_at":     wallet.LastPayoutAt,
			"last_payout_amount": wallet.LastPayoutAmount,
			"last_sequence":      wallet.LastSequence,
			"updated_at":         wallet.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errSequenceMoved
	}
	return nil
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("vendor_id = ?", params.VendorID)
	if params.Filter.Type != nil {
		query = query.Where("type = ?", *params.Filter.Type)
	}
	if params.Filter.Category != nil {
		query = query.Where("category = ?", *params.Filter.Category)
	}
	if params.Filter.From != nil {
		query = query.Where("created_at >= ?", params.Filter.From.UTC())
	}
	if params.Filter.To != nil {
		query = query.Where("created_at < ?", params.Filter.To.UTC())
	}
	var rows []models.WalletTransaction
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(row models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return rows, next, nil
}

func (r *repository) ListChain(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByReference(ctx context.Context, kind enums.LedgerReferenceKind, id uuid.UUID) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("reference_kind = ? AND reference_id = ?", kind, id).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ReferenceExists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindReturnOrder(ctx context.Context, id uuid.UUID) (*models.ReturnOrder, error) {
	var ret models.ReturnOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// ListWalletVendorIDs pages through vendors that own a wallet, ordered by vendor id.
func (r *repository) ListWalletVendorIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.VendorWallet{})
	if after != uuid.Nil {
		query = query.Where("vendor_id > ?", after)
	}
	var ids []uuid.UUID
	if err := query.Order("vendor_id ASC").Limit(limit).Pluck("vendor_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
