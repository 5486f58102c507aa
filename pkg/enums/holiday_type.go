package enums

import "fmt"

// HolidayType classifies a bank holiday row.
type HolidayType string

const (
	HolidayNational HolidayType = "national"
	HolidayRegional HolidayType = "regional"
	HolidayBank     HolidayType = "bank"
)

var validHolidayTypes = []HolidayType{HolidayNational, HolidayRegional, HolidayBank}

func (h HolidayType) IsValid() bool {
	for _, candidate := range validHolidayTypes {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHolidayType converts raw input into HolidayType.
func ParseHolidayType(value string) (HolidayType, error) {
	for _, candidate := range validHolidayTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid holiday type %q", value)
}
