package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/db/dbtest"
	"github.com/angelmondragon/packfinderz-payouts/pkg/db/models"
	"github.com/angelmondragon/packfinderz-payouts/pkg/enums"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	return NewService(repo, logg), repo, conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	svc, repo, conn := newTestService(t)
	payoutID := uuid.New()
	actorID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventVendorPayoutCreated,
			AggregateType: enums.AggregateVendorPayout,
			AggregateID:   payoutID,
			Actor:         ActorFor(&actorID, "payouts"),
			Data:          map[string]string{"payout_number": "PO-1"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.FindByAggregate(context.Background(), enums.AggregateVendorPayout, payoutID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventVendorPayoutCreated, rows[0].EventType)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	assert.Equal(t, enums.EventVendorPayoutCreated, envelope.EventType)
	assert.Equal(t, enums.AggregateVendorPayout, envelope.AggregateType)
	assert.Equal(t, payoutID, envelope.AggregateID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actorID, *envelope.Actor.ActorID)
	assert.Equal(t, "admin", envelope.Actor.Role)
	assert.JSONEq(t, `{"payout_number":"PO-1"}`, string(envelope.Data))
}

func TestActorFor(t *testing.T) {
	actor := ActorFor(nil, "cron")
	assert.True(t, actor.IsSystem())
	assert.Equal(t, "system:cron", actor.Role)

	nilID := uuid.Nil
	assert.True(t, ActorFor(&nilID, "payouts").IsSystem())

	id := uuid.New()
	actor = ActorFor(&id, "payouts")
	assert.False(t, actor.IsSystem())
	id = uuid.New()
	assert.NotEqual(t, id, *actor.ActorID)
}

func TestEmitRequiresTransactionAndValidEvent(t *testing.T) {
	svc, _, conn := newTestService(t)

	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.OutboxEventType("bogus"),
			AggregateType: enums.AggregateVendorPayout,
			AggregateID:   uuid.New(),
		})
	})
	require.Error(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventVendorPayoutCreated,
			AggregateType: enums.OutboxAggregateType("store"),
			AggregateID:   uuid.New(),
		})
	})
	require.ErrorContains(t, err, "aggregate type")
}

func TestEmitIfNotExistsDeduplicates(t *testing.T) {
	svc, repo, conn := newTestService(t)
	payoutID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventVendorPayoutProcessingStale,
		AggregateType: enums.AggregateVendorPayout,
		AggregateID:   payoutID,
		Actor:         SystemActor("payout-processing-sla"),
		Data:          map[string]int{"age_seconds": 10},
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	rows, err := repo.FindByAggregate(context.Background(), enums.AggregateVendorPayout, payoutID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	svc, repo, conn := newTestService(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(ctx, tx, DomainEvent{
				EventType:     enums.EventVendorPayoutCompleted,
				AggregateType: enums.AggregateVendorPayout,
				AggregateID:   id,
				Data:          map[string]string{},
			})
		}))
	}

	var fetched []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		fetched, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		if err := repo.MarkPublishedTx(tx, fetched[0].ID); err != nil {
			return err
		}
		if err := repo.MarkFailedTx(tx, fetched[1].ID, errors.New("timeout")); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, fetched[2].ID, errors.New("bad payload"), 3)
	}))
	require.Len(t, fetched, 3)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		remaining, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, fetched[1].ID, remaining[0].ID)
		assert.Equal(t, 1, remaining[0].AttemptCount)
		require.NotNil(t, remaining[0].LastError)
		assert.Equal(t, "timeout", *remaining[0].LastError)
		return nil
	}))

	future := time.Now().UTC().Add(time.Hour)
	var deleted int64
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = repo.DeletePublishedBefore(ctx, tx, future, 3)
		return err
	}))
	assert.Equal(t, int64(2), deleted)
}

func TestDLQRepositoryInsertTruncates(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)
	long := make([]byte, maxDLQErrorLen+50)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	eventID := uuid.New()

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       eventID,
			EventType:     enums.EventVendorPayoutTransferRequested,
			AggregateType: enums.AggregateVendorPayout,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
		})
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDLQRepositoryDeleteFailedBefore(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		for _, failedAt := range []time.Time{cutoff.Add(-48 * time.Hour), cutoff.Add(time.Hour)} {
			if err := dlq.InsertTx(tx, models.OutboxDLQ{
				EventID:       uuid.New(),
				EventType:     enums.EventVendorPayoutFailed,
				AggregateType: enums.AggregateVendorPayout,
				AggregateID:   uuid.New(),
				Payload:       json.RawMessage(`{}`),
				ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
				FailedAt:      failedAt,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	var deleted int64
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = dlq.DeleteFailedBefore(context.Background(), tx, cutoff)
		return err
	}))
	assert.Equal(t, int64(1), deleted)
}
