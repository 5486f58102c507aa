package db

import (
	"fmt"

	"gorm.io/gorm"
)

// LockKey scopes an advisory lock to a namespace and an identifier.
func LockKey(namespace, id string) string {
	return fmt.Sprintf("%s:%s", namespace, id)
}

// AdvisoryXactLock takes a Postgres transaction-scoped advisory lock on key.
// The lock is held until tx commits or rolls back. Other dialects serialize
// writers themselves, so the call is a no-op there.
func AdvisoryXactLock(tx *gorm.DB, key string) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}
