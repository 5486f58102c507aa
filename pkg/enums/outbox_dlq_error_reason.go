package enums

import "slices"

// OutboxDLQErrorReason records why an event left the publish loop.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts means the broker kept failing until the attempt cap.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable covers undecodable payloads and unrouted event types.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return slices.Contains([]OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}, r)
}
