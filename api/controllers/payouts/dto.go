package payouts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-payouts/api/validators"
	internalpayouts "github.com/angelmondragon/packfinderz-payouts/internal/payouts"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
)

type calculateRequest struct {
	VendorID    string          `json:"vendorId" validate:"required,uuid"`
	PeriodStart string          `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string          `json:"periodEnd" validate:"required,datetime=2006-01-02"`
	Adjustment  decimal.Decimal `json:"adjustmentAmount"`
}

func (r calculateRequest) toInput() internalpayouts.CalculateInput {
	start, _ := validators.ParseDate(r.PeriodStart)
	end, _ := validators.ParseDate(r.PeriodEnd)
	return internalpayouts.CalculateInput{
		VendorID:    uuid.MustParse(r.VendorID),
		PeriodStart: start,
		PeriodEnd:   end,
		Adjustment:  r.Adjustment,
	}
}

type createRequest struct {
	VendorID         string          `json:"vendorId" validate:"required,uuid"`
	PeriodStart      string          `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd        string          `json:"periodEnd" validate:"required,datetime=2006-01-02"`
	Adjustment       decimal.Decimal `json:"adjustmentAmount"`
	AdjustmentReason *string         `json:"adjustmentReason" validate:"omitempty,max=500"`
	ExpectedOrderIDs []uuid.UUID     `json:"expectedOrderIds"`
}

type completeRequest struct {
	PaymentMethod    string         `json:"paymentMethod" validate:"required,max=64"`
	PaymentReference string         `json:"paymentReference" validate:"required,max=128"`
	GatewayResponse  map[string]any `json:"gatewayResponse"`
}

type failRequest struct {
	Reason          string         `json:"reason" validate:"required,max=500"`
	GatewayResponse map[string]any `json:"gatewayResponse"`
}

type cancelRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type breakdownResponse struct {
	VendorID               uuid.UUID   `json:"vendorId"`
	PeriodStart            string      `json:"periodStart"`
	PeriodEnd              string      `json:"periodEnd"`
	TotalOrders            int         `json:"totalOrders"`
	OrderIDs               []uuid.UUID `json:"orderIds"`
	TotalSales             string      `json:"totalSales"`
	CommissionRate         string      `json:"commissionRate"`
	PlatformCommission     string      `json:"platformCommission"`
	CommissionGST          string      `json:"commissionGst"`
	TotalCommissionWithGST string      `json:"totalCommissionWithGst"`
	TDSRate                string      `json:"tdsRate"`
	TDSAmount              string      `json:"tdsAmount"`
	ReturnCount            int         `json:"returnCount"`
	ReturnShippingFees     string      `json:"returnShippingFees"`
	AdjustmentAmount       string      `json:"adjustmentAmount"`
	NetAmount              string      `json:"netAmount"`
	EarliestDeliveryDate   *string     `json:"earliestDeliveryDate,omitempty"`
	LatestDeliveryDate     *string     `json:"latestDeliveryDate,omitempty"`
	ScheduledPayoutDate    *string     `json:"scheduledPayoutDate,omitempty"`
}

func newBreakdownResponse(b *internalpayouts.Breakdown) breakdownResponse {
	orderIDs := b.OrderIDs
	if orderIDs == nil {
		orderIDs = []uuid.UUID{}
	}
	return breakdownResponse{
		VendorID:               b.VendorID,
		PeriodStart:            date(b.PeriodStart),
		PeriodEnd:              date(b.PeriodEnd),
		TotalOrders:            b.TotalOrders,
		OrderIDs:               orderIDs,
		TotalSales:             amount(b.TotalSales),
		CommissionRate:         amount(b.Rates.CommissionRate),
		PlatformCommission:     amount(b.PlatformCommission),
		CommissionGST:          amount(b.CommissionGST),
		TotalCommissionWithGST: amount(b.TotalCommissionWithGST),
		TDSRate:                amount(b.Rates.TDSRate),
		TDSAmount:              amount(b.TDSAmount),
		ReturnCount:            b.ReturnCount,
		ReturnShippingFees:     amount(b.ReturnShippingFees),
		AdjustmentAmount:       amount(b.AdjustmentAmount),
		NetAmount:              amount(b.NetAmount),
		EarliestDeliveryDate:   optionalDate(b.EarliestDeliveryDate),
		LatestDeliveryDate:     optionalDate(b.LatestDeliveryDate),
		ScheduledPayoutDate:    optionalDate(b.ScheduledPayoutDate),
	}
}

type bankAccountResponse struct {
	HolderName    string `json:"holderName"`
	AccountNumber string `json:"accountNumber"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bankName"`
}

type payoutResponse struct {
	ID                     uuid.UUID           `json:"id"`
	PayoutNumber           string              `json:"payoutNumber"`
	VendorID               uuid.UUID           `json:"vendorId"`
	Status                 string              `json:"status"`
	PeriodStart            string              `json:"periodStart"`
	PeriodEnd              string              `json:"periodEnd"`
	TotalOrders            int                 `json:"totalOrders"`
	OrderIDs               []uuid.UUID         `json:"orderIds"`
	TotalSales             string              `json:"totalSales"`
	CommissionRate         string              `json:"commissionRate"`
	PlatformCommission     string              `json:"platformCommission"`
	CommissionGST          string              `json:"commissionGst"`
	TotalCommissionWithGST string              `json:"totalCommissionWithGst"`
	TDSRate                string              `json:"tdsRate"`
	TDSAmount              string              `json:"tdsAmount"`
	ReturnCount            int                 `json:"returnCount"`
	ReturnShippingFees     string              `json:"returnShippingFees"`
	AdjustmentAmount       string              `json:"adjustmentAmount"`
	AdjustmentReason       *string             `json:"adjustmentReason,omitempty"`
	NetAmount              string              `json:"netAmount"`
	ScheduledPayoutDate    string              `json:"scheduledPayoutDate"`
	BankAccount            bankAccountResponse `json:"bankAccount"`
	PaymentMethod          *string             `json:"paymentMethod,omitempty"`
	PaymentReference       *string             `json:"paymentReference,omitempty"`
	PaymentGateway         *string             `json:"paymentGateway,omitempty"`
	FailureReason          *string             `json:"failureReason,omitempty"`
	AdminNotes             *string             `json:"adminNotes,omitempty"`
	ProcessedAt            *time.Time          `json:"processedAt,omitempty"`
	CompletedAt            *time.Time          `json:"completedAt,omitempty"`
	FailedAt               *time.Time          `json:"failedAt,omitempty"`
	CancelledAt            *time.Time          `json:"cancelledAt,omitempty"`
	ClaimsReleasedAt       *time.Time          `json:"claimsReleasedAt,omitempty"`
	CreatedAt              time.Time           `json:"createdAt"`
}

func newPayoutResponse(p *models.VendorPayout) payoutResponse {
	orderIDs := []uuid.UUID(p.OrderIDs)
	if orderIDs == nil {
		orderIDs = []uuid.UUID{}
	}
	return payoutResponse{
		ID:                     p.ID,
		PayoutNumber:           p.PayoutNumber,
		VendorID:               p.VendorID,
		Status:                 string(p.Status),
		PeriodStart:            date(p.PeriodStart),
		PeriodEnd:              date(p.PeriodEnd),
		TotalOrders:            p.TotalOrders,
		OrderIDs:               orderIDs,
		TotalSales:             amount(p.TotalSales),
		CommissionRate:         amount(p.Rates.CommissionRate),
		PlatformCommission:     amount(p.PlatformCommission),
		CommissionGST:          amount(p.CommissionGST),
		TotalCommissionWithGST: amount(p.TotalCommissionWithGST),
		TDSRate:                amount(p.Rates.TDSRate),
		TDSAmount:              amount(p.TDSAmount),
		ReturnCount:            p.ReturnCount,
		ReturnShippingFees:     amount(p.ReturnShippingFees),
		AdjustmentAmount:       amount(p.AdjustmentAmount),
		AdjustmentReason:       p.AdjustmentReason,
		NetAmount:              amount(p.NetAmount),
		ScheduledPayoutDate:    date(p.ScheduledPayoutDate),
		BankAccount: bankAccountResponse{
			HolderName:    p.BankAccount.HolderName,
			AccountNumber: maskAccount(p.BankAccount.AccountNumber),
			IFSC:          p.BankAccount.IFSC,
			BankName:      p.BankAccount.BankName,
		},
		PaymentMethod:    p.PaymentMethod,
		PaymentReference: p.PaymentReference,
		PaymentGateway:   p.PaymentGateway,
		FailureReason:    p.FailureReason,
		AdminNotes:       p.AdminNotes,
		ProcessedAt:      p.ProcessedAt,
		CompletedAt:      p.CompletedAt,
		FailedAt:         p.FailedAt,
		CancelledAt:      p.CancelledAt,
		ClaimsReleasedAt: p.ClaimsReleasedAt,
		CreatedAt:        p.CreatedAt,
	}
}

type payoutPageResponse struct {
	Items  []payoutResponse `json:"items"`
	Cursor string           `json:"cursor,omitempty"`
}

type tdsCertificateResponse struct {
	PayoutID     uuid.UUID `json:"payoutId"`
	PayoutNumber string    `json:"payoutNumber"`
	VendorID     uuid.UUID `json:"vendorId"`
	VendorName   string    `json:"vendorName"`
	PAN          *string   `json:"pan,omitempty"`
	PeriodStart  string    `json:"periodStart"`
	PeriodEnd    string    `json:"periodEnd"`
	GrossAmount  string    `json:"grossAmount"`
	TDSRate      string    `json:"tdsRate"`
	TDSAmount    string    `json:"tdsAmount"`
	CompletedAt  time.Time `json:"completedAt"`
}

func newTDSCertificateResponse(c *internalpayouts.TDSCertificate) tdsCertificateResponse {
	return tdsCertificateResponse{
		PayoutID:     c.PayoutID,
		PayoutNumber: c.PayoutNumber,
		VendorID:     c.VendorID,
		VendorName:   c.VendorName,
		PAN:          c.PAN,
		PeriodStart:  date(c.PeriodStart),
		PeriodEnd:    date(c.PeriodEnd),
		GrossAmount:  amount(c.GrossAmount),
		TDSRate:      amount(c.TDSRate),
		TDSAmount:    amount(c.TDSAmount),
		CompletedAt:  c.CompletedAt,
	}
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(money.Places)
}

func date(t time.Time) string {
	return t.UTC().Format(validators.DateLayout)
}

func optionalDate(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	formatted := date(t)
	return &formatted
}

// maskAccount keeps the last four digits of an account number.
func maskAccount(number string) string {
	if len(number) <= 4 {
		return number
	}
	masked := make([]byte, len(number))
	for i := range masked {
		masked[i] = 'X'
	}
	copy(masked[len(number)-4:], number[len(number)-4:])
	return string(masked)
}
