package payouts

import (
	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/money"
)

// Rates is the pricing snapshot frozen onto a payout.
type Rates = models.RateSnapshot

// RatePolicy turns vendor metadata and configuration into a rate snapshot.
type RatePolicy struct {
	cfg config.PayoutConfig
}

func NewRatePolicy(cfg config.PayoutConfig) *RatePolicy {
	return &RatePolicy{cfg: cfg}
}

// Resolve picks the vendor override, then the tier rate, then the default
// commission. Vendors without a verified PAN pay the higher TDS rate.
func (p *RatePolicy) Resolve(vendor models.Vendor) Rates {
	commission := p.cfg.DefaultCommissionRate
	if tierRate, ok := p.cfg.TierRate(vendor.Tier); ok {
		commission = tierRate
	}
	if vendor.CommissionRateOverride != nil {
		commission = *vendor.CommissionRateOverride
	}

	tds := p.cfg.TDSRateNoPAN
	if vendor.HasValidPAN() {
		tds = p.cfg.TDSRate
	}

	return Rates{
		CommissionRate:    commission,
		CommissionGSTRate: p.cfg.CommissionGSTRate,
		TDSRate:           tds,
		ReturnFee:         money.Round(p.cfg.ReturnFee),
	}
}
