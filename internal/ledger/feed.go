package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
	"github.com/angelmondragon/packfinderz-payouts/pkg/types"
)

// OrderPaymentInput credits a delivered order item to the vendor's pending balance.
type OrderPaymentInput struct {
	VendorID    uuid.UUID
	OrderItemID uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// RefundInput debits a vendor for a refunded return.
type RefundInput struct {
	VendorID      uuid.UUID
	ReturnOrderID uuid.UUID
	Amount        decimal.Decimal
	Reason        string
}

// AdjustmentInput is a manual admin correction.
type AdjustmentInput struct {
	VendorID uuid.UUID
	Type     enums.WalletTransactionType
	Amount   decimal.Decimal
	Reason   string
	ActorID  uuid.UUID
}

// PostingResult reports whether the call wrote a new entry.
type PostingResult struct {
	Transaction *models.WalletTransaction
	Created     bool
}

// RecordOrderPayment is idempotent per order item: a repeated call returns the
// entry written the first time. Only the item's vendor may post it, for its
// total amount.
func (s *Service) RecordOrderPayment(ctx context.Context, input OrderPaymentInput) (*PostingResult, error) {
	if input.OrderItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id is required")
	}
	ref := Ref(enums.ReferenceOrderItem, input.OrderItemID)
	result := &PostingResult{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.checkOrderItem(ctx, tx, input); err != nil {
			return err
		}
		existing, err := s.findPosting(ctx, tx, ref, enums.CategoryOrderPayment)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Transaction = existing
			return nil
		}
		description := strings.TrimSpace(input.Description)
		if description == "" {
			description = "Order payment"
		}
		txn, err := s.Append(ctx, tx, Entry{
			VendorID:    input.VendorID,
			Type:        enums.WalletCredit,
			Category:    enums.CategoryOrderPayment,
			Amount:      input.Amount,
			Reference:   ref,
			Description: description,
		})
		if err != nil {
			return err
		}
		result.Transaction = txn
		result.Created = true
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			// another writer won the unique index race
			existing, findErr := s.findPosting(ctx, nil, ref, enums.CategoryOrderPayment)
			if findErr == nil && existing != nil {
				return &PostingResult{Transaction: existing}, nil
			}
		}
		return nil, err
	}
	return result, nil
}

// RecordRefund debits the refund once per return order.
func (s *Service) RecordRefund(ctx context.Context, input RefundInput) (*PostingResult, error) {
	if input.ReturnOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return order id is required")
	}
	ref := Ref(enums.ReferenceReturnOrder, input.ReturnOrderID)
	result := &PostingResult{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.checkReturnOrder(ctx, tx, input); err != nil {
			return err
		}
		existing, err := s.findPosting(ctx, tx, ref, enums.CategoryRefund)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Transaction = existing
			return nil
		}
		reason := strings.TrimSpace(input.Reason)
		metadata := types.JSONMap{}
		if reason != "" {
			metadata["reason"] = reason
		}
		txn, err := s.Append(ctx, tx, Entry{
			VendorID:    input.VendorID,
			Type:        enums.WalletDebit,
			Category:    enums.CategoryRefund,
			Amount:      input.Amount,
			Reference:   ref,
			Description: "Customer refund",
			Metadata:    metadata,
		})
		if err != nil {
			return err
		}
		result.Transaction = txn
		result.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordAdjustment posts a manual credit or debit in the adjustment category.
func (s *Service) RecordAdjustment(ctx context.Context, input AdjustmentInput) (*models.WalletTransaction, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	var txn *models.WalletTransaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.Append(ctx, tx, Entry{
			VendorID:    input.VendorID,
			Type:        input.Type,
			Category:    enums.CategoryAdjustment,
			Amount:      input.Amount,
			Reference:   Reference{Kind: enums.ReferenceManual},
			Description: "Manual adjustment: " + reason,
			Metadata: types.JSONMap{
				"reason":   reason,
				"actor_id": input.ActorID.String(),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"vendor_id":      input.VendorID.String(),
		"transaction_id": txn.ID.String(),
		"type":           string(txn.Type),
		"actor_id":       input.ActorID.String(),
	}), "manual ledger adjustment recorded")
	return txn, nil
}

// checkOrderItem rejects postings against another vendor's item or for an
// amount other than the item total.
func (s *Service) checkOrderItem(ctx context.Context, tx *gorm.DB, input OrderPaymentInput) error {
	item, err := s.repo.WithTx(tx).FindOrderItem(ctx, input.OrderItemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	if item == nil {
		return referenceNotFound(enums.ReferenceOrderItem, input.OrderItemID)
	}
	if item.VendorID != input.VendorID {
		return pkgerrors.New(pkgerrors.CodeValidation, "order item belongs to another vendor").
			WithDetails(map[string]any{"order_item_id": item.ID.String()})
	}
	if !money.Round(input.Amount).Equal(money.Round(item.TotalAmount)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount does not match order item total").
			WithDetails(map[string]any{
				"order_item_id": item.ID.String(),
				"amount":        money.Round(input.Amount).StringFixed(money.Places),
				"total_amount":  money.Round(item.TotalAmount).StringFixed(money.Places),
			})
	}
	return nil
}

func (s *Service) checkReturnOrder(ctx context.Context, tx *gorm.DB, input RefundInput) error {
	ret, err := s.repo.WithTx(tx).FindReturnOrder(ctx, input.ReturnOrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return order")
	}
	if ret == nil {
		return referenceNotFound(enums.ReferenceReturnOrder, input.ReturnOrderID)
	}
	if ret.VendorID != input.VendorID {
		return pkgerrors.New(pkgerrors.CodeValidation, "return order belongs to another vendor").
			WithDetails(map[string]any{"return_order_id": ret.ID.String()})
	}
	return nil
}

func referenceNotFound(kind enums.LedgerReferenceKind, id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "referenced record not found").
		WithDetails(map[string]any{"reference_kind": string(kind), "reference_id": id.String()})
}

func (s *Service) findPosting(ctx context.Context, tx *gorm.DB, ref Reference, category enums.WalletTransactionCategory) (*models.WalletTransaction, error) {
	rows, err := s.repo.WithTx(tx).ListByReference(ctx, ref.Kind, *ref.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup existing posting")
	}
	for i := range rows {
		if rows[i].Category == category {
			return &rows[i], nil
		}
	}
	return nil, nil
}
