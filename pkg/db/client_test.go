package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestAdvisoryXactLockNoopOnSQLite(t *testing.T) {
	client := Wrap(newTestDB(t))
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return AdvisoryXactLock(tx, LockKey("payout", "vendor-1"))
	})
	if err != nil {
		t.Fatalf("expected no-op lock on sqlite, got %v", err)
	}
	if err := AdvisoryXactLock(nil, "x"); err == nil {
		t.Fatal("expected nil tx to be rejected")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.Exec("CREATE TABLE IF NOT EXISTS uniq_rows (code TEXT UNIQUE)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := conn.Exec("DELETE FROM uniq_rows").Error; err != nil {
		t.Fatalf("reset table: %v", err)
	}
	if err := conn.Exec("INSERT INTO uniq_rows (code) VALUES ('a')").Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := conn.Exec("INSERT INTO uniq_rows (code) VALUES ('a')").Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatal("unexpected match on unrelated error")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is never a violation")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{DSN: "x", Driver: "mysql"}, nil)
	if err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)
	var before int64
	if err := db.Model(&testModel{}).Count(&before).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var after int64
	if err := db.Model(&testModel{}).Count(&after).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if after != before {
		t.Fatalf("expected panic to roll back, count %d -> %d", before, after)
	}
}

func TestQueryLoggerReportsFailuresAndSlowQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "db-test", Level: zerolog.InfoLevel, Output: buf})
	q := newQueryLogger(logg, 10*time.Millisecond)
	query := func() (string, int64) { return "SELECT 1", 1 }

	q.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	q.Trace(context.Background(), time.Now(), query, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected quiet logger for fast and not-found queries, got %s", buf.String())
	}

	q.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	if !strings.Contains(buf.String(), "db.query.slow") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}
	buf.Reset()

	q.Trace(context.Background(), time.Now(), query, errors.New("syntax error"))
	if !strings.Contains(buf.String(), "db.query.failed") || !strings.Contains(buf.String(), "SELECT 1") {
		t.Fatalf("expected failed query entry, got %s", buf.String())
	}
	buf.Reset()

	q.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), query, errors.New("ignored"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should log nothing, got %s", buf.String())
	}
}
