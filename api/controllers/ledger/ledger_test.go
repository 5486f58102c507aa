package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-payouts/api/middleware"
	internalledger "github.com/angelmondragon/packfinderz-payouts/internal/ledger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	"github.com/angelmondragon/packfinderz-payouts/pkg/pagination"
)

type stubLedger struct {
	wallet       *models.VendorWallet
	listFilter   internalledger.TransactionFilter
	listParams   pagination.Params
	report       *internalledger.ChainReport
	adjustment   internalledger.AdjustmentInput
	orderPayment internalledger.OrderPaymentInput
	postingErr   error
	created      bool
}

func (s *stubLedger) GetWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	if s.wallet == nil {
		return &models.VendorWallet{VendorID: vendorID}, nil
	}
	return s.wallet, nil
}

func (s *stubLedger) ListTransactions(ctx context.Context, vendorID uuid.UUID, filter internalledger.TransactionFilter, params pagination.Params) (*internalledger.TransactionPage, error) {
	s.listFilter = filter
	s.listParams = params
	return &internalledger.TransactionPage{
		Items: []models.WalletTransaction{{
			ID:            uuid.New(),
			VendorID:      vendorID,
			Sequence:      1,
			Type:          enums.WalletCredit,
			Category:      enums.CategoryOrderPayment,
			Amount:        decimal.NewFromInt(600),
			BalanceBefore: decimal.Zero,
			BalanceAfter:  decimal.NewFromInt(600),
			ReferenceKind: enums.ReferenceOrderItem,
		}},
	}, nil
}

func (s *stubLedger) VerifyChain(ctx context.Context, vendorID uuid.UUID) (*internalledger.ChainReport, error) {
	return s.report, nil
}

func (s *stubLedger) RecordAdjustment(ctx context.Context, input internalledger.AdjustmentInput) (*models.WalletTransaction, error) {
	s.adjustment = input
	return &models.WalletTransaction{ID: uuid.New(), VendorID: input.VendorID, Type: input.Type, Category: enums.CategoryAdjustment, Amount: input.Amount}, nil
}

func (s *stubLedger) RecordOrderPayment(ctx context.Context, input internalledger.OrderPaymentInput) (*internalledger.PostingResult, error) {
	s.orderPayment = input
	if s.postingErr != nil {
		return nil, s.postingErr
	}
	return &internalledger.PostingResult{
		Transaction: &models.WalletTransaction{ID: uuid.New(), VendorID: input.VendorID, Amount: input.Amount},
		Created:     s.created,
	}, nil
}

func (s *stubLedger) RecordRefund(ctx context.Context, input internalledger.RefundInput) (*internalledger.PostingResult, error) {
	return &internalledger.PostingResult{
		Transaction: &models.WalletTransaction{ID: uuid.New(), VendorID: input.VendorID, Amount: input.Amount},
		Created:     true,
	}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "ledger-controller-test", Output: io.Discard})
}

func withVendor(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("vendorId", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func TestWalletFormatsBalances(t *testing.T) {
	vendorID := uuid.New()
	last := decimal.RequireFromString("872")
	paidAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &stubLedger{wallet: &models.VendorWallet{
		VendorID:         vendorID,
		AvailableBalance: decimal.RequireFromString("12.5"),
		PendingBalance:   decimal.NewFromInt(400),
		TotalEarned:      decimal.NewFromInt(1000),
		TotalWithdrawn:   last,
		LastPayoutAt:     &paidAt,
		LastPayoutAmount: &last,
		LastSequence:     5,
	}}

	req := withVendor(httptest.NewRequest(http.MethodGet, "/", nil), vendorID.String())
	resp := httptest.NewRecorder()
	Wallet(svc, testLogger()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var out walletResponse
	decodeData(t, resp, &out)
	assert.Equal(t, "12.50", out.AvailableBalance)
	assert.Equal(t, "400.00", out.PendingBalance)
	require.NotNil(t, out.LastPayoutAmount)
	assert.Equal(t, "872.00", *out.LastPayoutAmount)
	assert.Equal(t, int64(5), out.LastSequence)
}

func TestWalletRejectsBadVendorID(t *testing.T) {
	req := withVendor(httptest.NewRequest(http.MethodGet, "/", nil), "nope")
	resp := httptest.NewRecorder()
	Wallet(&stubLedger{}, testLogger()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTransactionsParsesFilters(t *testing.T) {
	svc := &stubLedger{}
	target := "/?type=credit&category=order_payment&from=2025-01-01&to=2025-01-31&limit=10&cursor=c1"
	req := withVendor(httptest.NewRequest(http.MethodGet, target, nil), uuid.NewString())
	resp := httptest.NewRecorder()
	Transactions(svc, testLogger()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.listFilter.Type)
	assert.Equal(t, enums.WalletCredit, *svc.listFilter.Type)
	require.NotNil(t, svc.listFilter.Category)
	assert.Equal(t, enums.CategoryOrderPayment, *svc.listFilter.Category)
	require.NotNil(t, svc.listFilter.From)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *svc.listFilter.From)
	assert.Equal(t, 10, svc.listParams.Limit)
	assert.Equal(t, "c1", svc.listParams.Cursor)

	var out transactionPageResponse
	decodeData(t, resp, &out)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "600.00", out.Items[0].BalanceAfter)
}

func TestTransactionsRejectsInvertedRange(t *testing.T) {
	req := withVendor(httptest.NewRequest(http.MethodGet, "/?from=2025-02-01&to=2025-01-01", nil), uuid.NewString())
	resp := httptest.NewRecorder()
	Transactions(&stubLedger{}, testLogger()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestVerifyReportsBreak(t *testing.T) {
	vendorID := uuid.New()
	txID := uuid.New()
	svc := &stubLedger{report: &internalledger.ChainReport{
		VendorID:        vendorID,
		Entries:         3,
		ReplayedBalance: decimal.NewFromInt(100),
		WalletBalance:   decimal.NewFromInt(90),
		Break:           &internalledger.ChainBreak{Sequence: 3, TransactionID: &txID, Reason: "balance_before mismatch"},
	}}

	req := withVendor(httptest.NewRequest(http.MethodGet, "/", nil), vendorID.String())
	resp := httptest.NewRecorder()
	Verify(svc, testLogger()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var out chainReportResponse
	decodeData(t, resp, &out)
	assert.False(t, out.Valid)
	require.NotNil(t, out.Break)
	assert.Equal(t, int64(3), out.Break.Sequence)
	assert.Equal(t, "90.00", out.WalletBalance)
}

func TestAdjustRequiresActor(t *testing.T) {
	body := `{"type":"credit","amount":"10","reason":"goodwill"}`
	req := withVendor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), uuid.NewString())
	resp := httptest.NewRecorder()
	Adjust(&stubLedger{}, testLogger()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAdjustPostsCorrection(t *testing.T) {
	actorID := uuid.New()
	vendorID := uuid.New()
	svc := &stubLedger{}
	body := `{"type":"debit","amount":"25.75","reason":"duplicate credit"}`
	req := withVendor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), vendorID.String())
	req = req.WithContext(middleware.WithActor(req.Context(), actorID.String(), "admin"))
	resp := httptest.NewRecorder()
	Adjust(svc, testLogger()).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, vendorID, svc.adjustment.VendorID)
	assert.Equal(t, actorID, svc.adjustment.ActorID)
	assert.Equal(t, enums.WalletDebit, svc.adjustment.Type)
	assert.True(t, svc.adjustment.Amount.Equal(decimal.RequireFromString("25.75")))
}

func TestAdjustRejectsUnknownType(t *testing.T) {
	body := `{"type":"transfer","amount":"1","reason":"x"}`
	req := withVendor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), uuid.NewString())
	req = req.WithContext(middleware.WithActor(req.Context(), uuid.NewString(), "admin"))
	resp := httptest.NewRecorder()
	Adjust(&stubLedger{}, testLogger()).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRecordOrderPaymentStatusReflectsReplay(t *testing.T) {
	body := `{"vendorId":"` + uuid.NewString() + `","orderItemId":"` + uuid.NewString() + `","amount":"600"}`

	first := &stubLedger{created: true}
	resp := httptest.NewRecorder()
	RecordOrderPayment(first, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.True(t, first.orderPayment.Amount.Equal(decimal.NewFromInt(600)))

	replay := &stubLedger{created: false}
	resp = httptest.NewRecorder()
	RecordOrderPayment(replay, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, resp.Code)
	var out postingResponse
	decodeData(t, resp, &out)
	assert.False(t, out.Created)
}

func TestRecordOrderPaymentRequiresIDs(t *testing.T) {
	resp := httptest.NewRecorder()
	RecordOrderPayment(&stubLedger{}, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"10"}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRecordOrderPaymentSurfacesValidation(t *testing.T) {
	svc := &stubLedger{postingErr: pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")}
	body := `{"vendorId":"` + uuid.NewString() + `","orderItemId":"` + uuid.NewString() + `","amount":"-1"}`
	resp := httptest.NewRecorder()
	RecordOrderPayment(svc, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRecordRefund(t *testing.T) {
	body := `{"vendorId":"` + uuid.NewString() + `","returnOrderId":"` + uuid.NewString() + `","amount":"150","reason":"damaged"}`
	resp := httptest.NewRecorder()
	RecordRefund(&stubLedger{}, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, resp.Code)
}
