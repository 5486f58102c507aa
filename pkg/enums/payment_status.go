package enums

import "fmt"

// PaymentStatus tracks payment confirmation on a marketplace order item.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// ReturnStatus tracks a marketplace return order.
type ReturnStatus string

const (
	ReturnStatusRequested       ReturnStatus = "requested"
	ReturnStatusApproved        ReturnStatus = "approved"
	ReturnStatusCompleted       ReturnStatus = "completed"
	ReturnStatusRefundCompleted ReturnStatus = "refund_completed"
	ReturnStatusRejected        ReturnStatus = "rejected"
)

// FinalizedReturnStatuses are the states in which a return counts toward fees.
var FinalizedReturnStatuses = []ReturnStatus{ReturnStatusCompleted, ReturnStatusRefundCompleted}

// IsFinalized reports whether the return has reached a fee-bearing state.
func (r ReturnStatus) IsFinalized() bool {
	for _, candidate := range FinalizedReturnStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}
