package ledger

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-payouts/api/middleware"
	"github.com/angelmondragon/packfinderz-payouts/api/responses"
	"github.com/angelmondragon/packfinderz-payouts/api/validators"
	internalledger "github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

// Service is the ledger surface used by the wallet and feed handlers.
type Service interface {
	GetWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error)
	ListTransactions(ctx context.Context, vendorID uuid.UUID, filter internalledger.TransactionFilter, params pagination.Params) (*internalledger.TransactionPage, error)
	VerifyChain(ctx context.Context, vendorID uuid.UUID) (*internalledger.ChainReport, error)
	RecordAdjustment(ctx context.Context, input internalledger.AdjustmentInput) (*models.WalletTransaction, error)
	RecordOrderPayment(ctx context.Context, input internalledger.OrderPaymentInput) (*internalledger.PostingResult, error)
	RecordRefund(ctx context.Context, input internalledger.RefundInput) (*internalledger.PostingResult, error)
}

// Wallet returns the vendor's balance snapshot. Vendors without ledger
// activity get a zero wallet.
func Wallet(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wallet, err := svc.GetWallet(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(wallet))
	}
}

// Transactions pages the vendor's ledger, newest first.
func Transactions(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseTransactionFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListTransactions(r.Context(), vendorID, filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := transactionPageResponse{Items: make([]transactionResponse, 0, len(page.Items)), Cursor: page.Cursor}
		for i := range page.Items {
			resp.Items = append(resp.Items, newTransactionResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func parseTransactionFilter(r *http.Request) (internalledger.TransactionFilter, error) {
	var filter internalledger.TransactionFilter
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		typ, err := enums.ParseWalletTransactionType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter").WithDetails(map[string]any{"field": "type"})
		}
		filter.Type = &typ
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, err := enums.ParseWalletTransactionCategory(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category filter").WithDetails(map[string]any{"field": "category"})
		}
		filter.Category = &category
	}
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return filter, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return filter, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return filter, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	filter.From = from
	filter.To = to
	return filter, nil
}

// Verify replays the vendor's ledger and reports the first break.
func Verify(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.VerifyChain(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !report.Valid {
			logg.Warn(logg.WithField(r.Context(), "vendor_id", vendorID.String()), "ledger chain verification failed")
		}
		responses.WriteSuccess(w, newChainReportResponse(report))
	}
}

// Adjust posts a manual admin correction.
func Adjust(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID := middleware.ActorUUID(r.Context())
		if actorID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing"))
			return
		}

		var req adjustmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		typ, err := enums.ParseWalletTransactionType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid adjustment type"))
			return
		}

		txn, err := svc.RecordAdjustment(r.Context(), internalledger.AdjustmentInput{
			VendorID: vendorID,
			Type:     typ,
			Amount:   req.Amount,
			Reason:   req.Reason,
			ActorID:  *actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(txn))
	}
}

// RecordOrderPayment accepts a delivered order item from the order system.
func RecordOrderPayment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RecordOrderPayment(r.Context(), internalledger.OrderPaymentInput{
			VendorID:    req.VendorID,
			OrderItemID: req.OrderItemID,
			Amount:      req.Amount,
			Description: req.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writePosting(w, result)
	}
}

// RecordRefund accepts a finalized customer refund from the returns system.
func RecordRefund(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RecordRefund(r.Context(), internalledger.RefundInput{
			VendorID:      req.VendorID,
			ReturnOrderID: req.ReturnOrderID,
			Amount:        req.Amount,
			Reason:        req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writePosting(w, result)
	}
}

func writePosting(w http.ResponseWriter, result *internalledger.PostingResult) {
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	responses.WriteSuccessStatus(w, status, postingResponse{
		Created:     result.Created,
		Transaction: newTransactionResponse(result.Transaction),
	})
}
