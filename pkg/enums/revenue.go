package enums

import "fmt"

// RevenueSourceType maps to the revenue_source_type enum in Postgres.
type RevenueSourceType string

const (
	RevenueSourceCommission    RevenueSourceType = "commission"
	RevenueSourceSubscription  RevenueSourceType = "subscription"
	RevenueSourceListingFee    RevenueSourceType = "listing_fee"
	RevenueSourceAdvertisement RevenueSourceType = "advertisement"
	RevenueSourcePenalty       RevenueSourceType = "penalty"
	RevenueSourceOther         RevenueSourceType = "other"
)

var validRevenueSourceTypes = []RevenueSourceType{
	RevenueSourceCommission,
	RevenueSourceSubscription,
	RevenueSourceListingFee,
	RevenueSourceAdvertisement,
	RevenueSourcePenalty,
	RevenueSourceOther,
}

// IsValid reports whether the value matches the canonical revenue source enum.
func (s RevenueSourceType) IsValid() bool {
	for _, candidate := range validRevenueSourceTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRevenueSourceType converts raw input into RevenueSourceType.
func ParseRevenueSourceType(value string) (RevenueSourceType, error) {
	for _, candidate := range validRevenueSourceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid revenue source type %q", value)
}

// RevenueStatus maps to the revenue_status enum in Postgres.
type RevenueStatus string

const (
	RevenueStatusPending   RevenueStatus = "pending"
	RevenueStatusConfirmed RevenueStatus = "confirmed"
	RevenueStatusCancelled RevenueStatus = "cancelled"
	RevenueStatusRefunded  RevenueStatus = "refunded"
)

var validRevenueStatuses = []RevenueStatus{
	RevenueStatusPending,
	RevenueStatusConfirmed,
	RevenueStatusCancelled,
	RevenueStatusRefunded,
}

// IsValid reports whether the value matches the canonical revenue status enum.
func (s RevenueStatus) IsValid() bool {
	for _, candidate := range validRevenueStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRevenueStatus converts raw input into RevenueStatus.
func ParseRevenueStatus(value string) (RevenueStatus, error) {
	for _, candidate := range validRevenueStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid revenue status %q", value)
}
