package payouts

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-payouts/api/middleware"
	"github.com/angelmondragon/packfinderz-payouts/api/responses"
	"github.com/angelmondragon/packfinderz-payouts/api/validators"
	internalpayouts "github.com/angelmondragon/packfinderz-payouts/internal/payouts"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

// Service is the payout surface the admin handlers depend on.
type Service interface {
	Calculate(ctx context.Context, input internalpayouts.CalculateInput) (*internalpayouts.Breakdown, error)
	Create(ctx context.Context, input internalpayouts.CreateInput) (*models.VendorPayout, error)
	Get(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error)
	List(ctx context.Context, filter internalpayouts.ListFilter, params pagination.Params) (*internalpayouts.Page, error)
	Process(ctx context.Context, input internalpayouts.ProcessInput) (*models.VendorPayout, error)
	Complete(ctx context.Context, input internalpayouts.CompleteInput) (*models.VendorPayout, error)
	Fail(ctx context.Context, input internalpayouts.FailInput) (*models.VendorPayout, error)
	Cancel(ctx context.Context, input internalpayouts.CancelInput) (*models.VendorPayout, error)
	Release(ctx context.Context, input internalpayouts.ReleaseInput) (*models.VendorPayout, error)
	Archive(ctx context.Context, id uuid.UUID) error
	TDSCertificate(ctx context.Context, id uuid.UUID) (*internalpayouts.TDSCertificate, error)
}

// Calculate previews a payout without persisting anything.
func Calculate(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req calculateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		breakdown, err := svc.Calculate(r.Context(), req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBreakdownResponse(breakdown))
	}
}

// Create persists a pending payout and claims its orders.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalpayouts.CreateInput{
			CalculateInput: calculateRequest{
				VendorID:    req.VendorID,
				PeriodStart: req.PeriodStart,
				PeriodEnd:   req.PeriodEnd,
				Adjustment:  req.Adjustment,
			}.toInput(),
			AdjustmentReason: req.AdjustmentReason,
			ExpectedOrderIDs: req.ExpectedOrderIDs,
			ActorID:          middleware.ActorUUID(r.Context()),
		}

		payout, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPayoutResponse(payout))
	}
}

// List pages payouts, newest first.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := validators.ParseQueryUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := internalpayouts.ListFilter{VendorID: vendorID}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePayoutStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"}))
				return
			}
			filter.Status = &status
		}

		page, err := svc.List(r.Context(), filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := payoutPageResponse{Items: make([]payoutResponse, 0, len(page.Items)), Cursor: page.Cursor}
		for i := range page.Items {
			resp.Items = append(resp.Items, newPayoutResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payout, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPayoutResponse(payout))
	}
}

// Process moves a pending payout to processing and initiates the transfer.
func Process(svc Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(r *http.Request, id uuid.UUID, actorID *uuid.UUID) (*models.VendorPayout, error) {
		return svc.Process(r.Context(), internalpayouts.ProcessInput{PayoutID: id, ActorID: actorID})
	})
}

// Complete settles a processing payout against the vendor wallet.
func Complete(svc Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(r *http.Request, id uuid.UUID, actorID *uuid.UUID) (*models.VendorPayout, error) {
		var req completeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.Complete(r.Context(), internalpayouts.CompleteInput{
			PayoutID:         id,
			PaymentMethod:    req.PaymentMethod,
			PaymentReference: req.PaymentReference,
			GatewayResponse:  req.GatewayResponse,
			ActorID:          actorID,
		})
	})
}

// Fail marks a processing payout as failed. Claims stay held until released.
func Fail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(r *http.Request, id uuid.UUID, actorID *uuid.UUID) (*models.VendorPayout, error) {
		var req failRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.Fail(r.Context(), internalpayouts.FailInput{
			PayoutID:        id,
			Reason:          req.Reason,
			GatewayResponse: req.GatewayResponse,
			ActorID:         actorID,
		})
	})
}

func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(r *http.Request, id uuid.UUID, actorID *uuid.UUID) (*models.VendorPayout, error) {
		var req cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				return nil, err
			}
		}
		return svc.Cancel(r.Context(), internalpayouts.CancelInput{PayoutID: id, Notes: req.Notes, ActorID: actorID})
	})
}

// Release frees the order claims held by a failed payout.
func Release(svc Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, func(r *http.Request, id uuid.UUID, actorID *uuid.UUID) (*models.VendorPayout, error) {
		return svc.Release(r.Context(), internalpayouts.ReleaseInput{PayoutID: id, ActorID: actorID})
	})
}

// Archive soft deletes a terminal payout.
func Archive(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Archive(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func TDSCertificate(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cert, err := svc.TDSCertificate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTDSCertificateResponse(cert))
	}
}

type transitionFunc func(r *http.Request, id uuid.UUID, actorID *uuid.UUID) (*models.VendorPayout, error)

func transition(logg *logger.Logger, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithField(r.Context(), "payout_id", id.String())
		r = r.WithContext(ctx)

		payout, err := fn(r, id, middleware.ActorUUID(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPayoutResponse(payout))
	}
}
