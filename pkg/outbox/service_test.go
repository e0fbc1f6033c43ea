package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:outboxtest?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(outboxEvents).Error)
	require.NoError(t, db.Exec("DELETE FROM outbox_events").Error)
	return db
}

func TestEmitStoresEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	orderID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: OrderCreatedData{
				OrderID:       orderID,
				UserID:        uuid.New(),
				PaymentMethod: "bank",
				Status:        "awaiting_payment",
				TotalAmount:   250000,
			},
		})
	})
	require.NoError(t, err)

	rows, err := NewRepository(db).FetchUnpublished(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderCreated, rows[0].EventType)
	assert.Equal(t, orderID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)

	var data OrderCreatedData
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, orderID, data.OrderID)
	assert.Equal(t, int64(250000), data.TotalAmount)
}

func TestEmitRequiresTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
}

func TestMarkPublishedRemovesFromPending(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          OrderPaidData{Amount: 100000},
		})
	}))

	rows, err := repo.FetchUnpublished(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkPublished(rows[0].ID))

	rows, err = repo.FetchUnpublished(10, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarkFailedCountsAttemptsAndCaps(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          OrderCancelledData{Reason: "payment failed"},
		})
	}))

	rows, err := repo.FetchUnpublished(10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkFailed(rows[0].ID, errors.New("publish: unavailable")))
	require.NoError(t, repo.MarkFailed(rows[0].ID, errors.New("publish: unavailable")))

	rows, err = repo.FetchUnpublished(10, 2)
	require.NoError(t, err)
	assert.Empty(t, rows, "event past max attempts should not be fetched")

	rows, err = repo.FetchUnpublished(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Contains(t, *rows[0].LastError, "unavailable")
}
