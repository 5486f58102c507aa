// Package refnum builds human-facing reference numbers for ledger rows.
package refnum

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PrefixPayout      = "PO"
	PrefixTransaction = "TXN"
	PrefixRevenue     = "REV"
)

// New returns "<prefix>-<yyyymmdd>-<10 hex>" from the UTC date and a random suffix.
// Uniqueness is enforced by the owning table's unique index.
func New(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), suffix)
}
