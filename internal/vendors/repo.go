// Package vendors reads the vendor profile fields payouts depend on.
package vendors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
)

// Repository exposes read access to vendors.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a vendor repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// GetForUpdate row-locks the vendor for the rest of the transaction.
func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) find(conn *gorm.DB, id uuid.UUID) (*models.Vendor, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	var vendor models.Vendor
	err := conn.Where("id = ?", id).First(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found").
			WithDetails(map[string]any{"vendor_id": id.String()})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	return &vendor, nil
}
