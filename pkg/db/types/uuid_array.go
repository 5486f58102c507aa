package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDArray maps a Postgres uuid[] column. SQLite stores the same array
// literal as text.
type UUIDArray []uuid.UUID

func (a UUIDArray) Contains(id uuid.UUID) bool {
	return slices.Contains(a, id)
}

// Scan parses the array literal with pq, then each element as a uuid.
func (a *UUIDArray) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("UUIDArray: %w", err)
	}
	out := make(UUIDArray, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("UUIDArray: parse %q: %w", s, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}

// Value never yields NULL; an empty array is "{}".
func (a UUIDArray) Value() (driver.Value, error) {
	raw := make(pq.StringArray, 0, len(a))
	for _, id := range a {
		raw = append(raw, id.String())
	}
	return raw.Value()
}
