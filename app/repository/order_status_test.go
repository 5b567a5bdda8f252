package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
)

var orderStatusColumnNames = []string{
	"id", "collect_id", "custom_order_id", "order_amount", "transaction_amount",
	"payment_mode", "payment_details", "bank_reference", "payment_message", "status", "error_message",
	"payment_time", "last_event_at", "created_at", "updated_at",
}

func newTestStatusUpdate(paymentTime time.Time) *entity.StatusUpdate {
	amount := decimal.NewFromInt(1050)
	return &entity.StatusUpdate{
		CollectID:         "collect-1",
		OrderAmount:       &amount,
		TransactionAmount: decimal.NewNullDecimal(decimal.NewFromInt(1050)),
		PaymentMode:       strPtr("upi"),
		BankReference:     strPtr("YESBNK222"),
		PaymentMessage:    strPtr("payment success"),
		Status:            "success",
		ErrorMessage:      strPtr("NA"),
		PaymentTime:       paymentTime,
		UpdatedAt:         paymentTime,
	}
}

func TestOrderStatusRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("inserts pending status", func(t *testing.T) {
		db, mock := setupMockDB(t)
		status := &entity.OrderStatus{
			CollectID:     "collect-1",
			CustomOrderID: "ORD-1",
			OrderAmount:   decimal.NewFromInt(1050),
			Status:        entity.OrderStatusPending,
			PaymentTime:   &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		mock.ExpectExec("INSERT INTO order_status").
			WithArgs("collect-1", "ORD-1", sqlmock.AnyArg(), nil, nil, nil, nil, nil, entity.OrderStatusPending, nil, now, nil, now, now).
			WillReturnResult(sqlmock.NewResult(42, 1))

		require.NoError(t, NewOrderStatusRepository(db).Create(ctx, status))
		assert.Equal(t, uint64(42), status.ID)
	})

	t.Run("maps duplicate custom order id", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("INSERT INTO order_status").
			WillReturnError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'ORD-1' for key 'uq_order_status_custom_order_id'"})

		err := NewOrderStatusRepository(db).Create(ctx, &entity.OrderStatus{CollectID: "collect-2", CustomOrderID: "ORD-1"})
		assert.ErrorIs(t, err, ErrOrderStatusAlreadyExists)
	})
}

func TestOrderStatusRepository_ApplyUpdate(t *testing.T) {
	ctx := context.Background()
	paymentTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("applies overwrite", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE order_status SET").WillReturnResult(sqlmock.NewResult(0, 1))

		applied, err := NewOrderStatusRepository(db).ApplyUpdate(ctx, newTestStatusUpdate(paymentTime), false)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("omitted order amount keeps stored value", func(t *testing.T) {
		db, mock := setupMockDB(t)
		update := newTestStatusUpdate(paymentTime)
		update.OrderAmount = nil
		args := []driver.Value{nil}
		for i := 0; i < 11; i++ {
			args = append(args, sqlmock.AnyArg())
		}
		mock.ExpectExec("UPDATE order_status SET\\s+order_amount = COALESCE\\(\\?, order_amount\\)").
			WithArgs(args...).
			WillReturnResult(sqlmock.NewResult(0, 1))

		applied, err := NewOrderStatusRepository(db).ApplyUpdate(ctx, update, false)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("identical overwrite counts as applied", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE order_status SET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT last_event_at FROM order_status").
			WithArgs("collect-1").
			WillReturnRows(sqlmock.NewRows([]string{"last_event_at"}).AddRow(paymentTime))

		applied, err := NewOrderStatusRepository(db).ApplyUpdate(ctx, newTestStatusUpdate(paymentTime), false)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE order_status SET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT last_event_at FROM order_status").
			WithArgs("collect-1").
			WillReturnError(sql.ErrNoRows)

		applied, err := NewOrderStatusRepository(db).ApplyUpdate(ctx, newTestStatusUpdate(paymentTime), false)
		assert.ErrorIs(t, err, ErrOrderStatusNotFound)
		assert.False(t, applied)
	})

	t.Run("stale event rejected", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE order_status SET (.+) AND \\(last_event_at IS NULL OR last_event_at <= \\?\\)").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT last_event_at FROM order_status").
			WithArgs("collect-1").
			WillReturnRows(sqlmock.NewRows([]string{"last_event_at"}).AddRow(paymentTime.Add(time.Minute)))

		applied, err := NewOrderStatusRepository(db).ApplyUpdate(ctx, newTestStatusUpdate(paymentTime), true)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("propagates exec error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("UPDATE order_status SET").WillReturnError(errors.New("lock wait timeout"))

		_, err := NewOrderStatusRepository(db).ApplyUpdate(ctx, newTestStatusUpdate(paymentTime), false)
		require.Error(t, err)
	})
}

func TestOrderStatusRepository_FindByCustomOrderID(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns nil when missing", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM order_status WHERE custom_order_id = ?").
			WithArgs("ORD-404").
			WillReturnRows(sqlmock.NewRows(orderStatusColumnNames))

		status, err := NewOrderStatusRepository(db).FindByCustomOrderID(ctx, "ORD-404")
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("scans pending status with null transaction amount", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM order_status WHERE custom_order_id = ?").
			WithArgs("ORD-1").
			WillReturnRows(sqlmock.NewRows(orderStatusColumnNames).AddRow(
				int64(7), "collect-1", "ORD-1", "1050.00", nil,
				nil, nil, nil, nil, "pending", nil,
				now, nil, now, now,
			))

		status, err := NewOrderStatusRepository(db).FindByCustomOrderID(ctx, "ORD-1")
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, uint64(7), status.ID)
		assert.True(t, status.OrderAmount.Equal(decimal.NewFromInt(1050)))
		assert.False(t, status.TransactionAmount.Valid)
		assert.Equal(t, "pending", status.Status)
		assert.Nil(t, status.PaymentMode)
		assert.Nil(t, status.LastEventAt)
		require.NotNil(t, status.PaymentTime)
		assert.True(t, status.PaymentTime.Equal(now))
	})
}

func TestOrderStatusRepository_FindByCollectIDs(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM order_status WHERE collect_id IN").
		WithArgs("collect-1", "collect-2").
		WillReturnRows(sqlmock.NewRows(orderStatusColumnNames).
			AddRow(int64(1), "collect-1", "ORD-1", "100", "100", "upi", nil, nil, nil, "success", nil, now, now, now, now).
			AddRow(int64(2), "collect-2", "ORD-2", "200", nil, nil, nil, nil, nil, "pending", nil, now, nil, now, now))

	statuses, err := NewOrderStatusRepository(db).FindByCollectIDs(ctx, []string{"collect-1", "collect-2"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].TransactionAmount.Valid)
	assert.Equal(t, "upi", *statuses[0].PaymentMode)
	assert.False(t, statuses[1].TransactionAmount.Valid)
}

func TestOrderStatusRepository_FindByCollectIDsChunksLargeInputs(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	db, mock := setupMockDB(t)

	ids := make([]string, inClauseChunkSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("collect-%d", i)
	}
	last := ids[len(ids)-1]

	mock.ExpectQuery("SELECT (.+) FROM order_status WHERE collect_id IN").WillReturnRows(sqlmock.NewRows(orderStatusColumnNames))
	mock.ExpectQuery("SELECT (.+) FROM order_status WHERE collect_id IN").
		WithArgs(last).
		WillReturnRows(sqlmock.NewRows(orderStatusColumnNames).
			AddRow(int64(9), last, "ORD-9", "100", nil, nil, nil, nil, nil, "pending", nil, now, nil, now, now))

	statuses, err := NewOrderStatusRepository(db).FindByCollectIDs(ctx, ids)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, last, statuses[0].CollectID)
}
