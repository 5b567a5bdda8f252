package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
)

var (
	ErrOrderStatusNotFound      = errors.New("order status not found")
	ErrOrderStatusAlreadyExists = errors.New("order status already exists")
)

const orderStatusColumns = `id, collect_id, custom_order_id, order_amount, transaction_amount,
			payment_mode, payment_details, bank_reference, payment_message, status, error_message,
			payment_time, last_event_at, created_at, updated_at`

type OrderStatusRepository struct {
	db DBTX
}

func NewOrderStatusRepository(db DBTX) *OrderStatusRepository {
	return &OrderStatusRepository{db: db}
}

// Create inserts a status row. The unique indexes on collect_id and
// custom_order_id make a concurrent duplicate fail with ErrOrderStatusAlreadyExists.
func (r *OrderStatusRepository) Create(ctx context.Context, status *entity.OrderStatus) error {
	query := `
		INSERT INTO order_status (
			collect_id, custom_order_id, order_amount, transaction_amount,
			payment_mode, payment_details, bank_reference, payment_message, status, error_message,
			payment_time, last_event_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		status.CollectID,
		status.CustomOrderID,
		status.OrderAmount,
		status.TransactionAmount,
		nullableStringValue(status.PaymentMode),
		nullableStringValue(status.PaymentDetails),
		nullableStringValue(status.BankReference),
		nullableStringValue(status.PaymentMessage),
		status.Status,
		nullableStringValue(status.ErrorMessage),
		nullableTimeValue(status.PaymentTime),
		nullableTimeValue(status.LastEventAt),
		status.CreatedAt,
		status.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderStatusAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	status.ID = uint64(id)
	return nil
}

// ApplyUpdate overwrites the gateway-owned fields in a single statement.
// With rejectStale set, a row whose last applied event is newer than the
// update is left untouched and applied is false.
func (r *OrderStatusRepository) ApplyUpdate(ctx context.Context, update *entity.StatusUpdate, rejectStale bool) (bool, error) {
	query := `
		UPDATE order_status SET
			order_amount = COALESCE(?, order_amount),
			transaction_amount = ?,
			payment_mode = ?,
			payment_details = ?,
			bank_reference = ?,
			payment_message = ?,
			status = ?,
			error_message = ?,
			payment_time = ?,
			last_event_at = ?,
			updated_at = ?
		WHERE collect_id = ?
	`

	var orderAmount interface{}
	if update.OrderAmount != nil {
		orderAmount = *update.OrderAmount
	}

	args := []interface{}{
		orderAmount,
		update.TransactionAmount,
		nullableStringValue(update.PaymentMode),
		nullableStringValue(update.PaymentDetails),
		nullableStringValue(update.BankReference),
		nullableStringValue(update.PaymentMessage),
		update.Status,
		nullableStringValue(update.ErrorMessage),
		update.PaymentTime,
		update.PaymentTime,
		update.UpdatedAt,
		update.CollectID,
	}
	if rejectStale {
		query += ` AND (last_event_at IS NULL OR last_event_at <= ?)`
		args = append(args, update.PaymentTime)
	}

	db := conn(ctx, r.db)
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	// MySQL reports zero affected rows for an identical overwrite, so a
	// missing row and a stale event are told apart with a follow-up read.
	var lastEventAt sql.NullTime
	err = db.QueryRowContext(ctx, `SELECT last_event_at FROM order_status WHERE collect_id = ?`, update.CollectID).Scan(&lastEventAt)
	if err == sql.ErrNoRows {
		return false, ErrOrderStatusNotFound
	}
	if err != nil {
		return false, err
	}
	if rejectStale && lastEventAt.Valid && lastEventAt.Time.After(update.PaymentTime) {
		return false, nil
	}
	return true, nil
}

func (r *OrderStatusRepository) FindByCollectID(ctx context.Context, collectID string) (*entity.OrderStatus, error) {
	query := `SELECT ` + orderStatusColumns + ` FROM order_status WHERE collect_id = ?`
	return r.findOne(ctx, query, collectID)
}

func (r *OrderStatusRepository) FindByCustomOrderID(ctx context.Context, customOrderID string) (*entity.OrderStatus, error) {
	query := `SELECT ` + orderStatusColumns + ` FROM order_status WHERE custom_order_id = ?`
	return r.findOne(ctx, query, customOrderID)
}

func (r *OrderStatusRepository) FindByCollectIDs(ctx context.Context, collectIDs []string) ([]*entity.OrderStatus, error) {
	statuses := make([]*entity.OrderStatus, 0, len(collectIDs))
	for _, chunk := range chunkStrings(collectIDs, inClauseChunkSize) {
		query := `SELECT ` + orderStatusColumns + ` FROM order_status WHERE collect_id IN (` + placeholders(len(chunk)) + `)`
		rows, err := conn(ctx, r.db).QueryContext(ctx, query, stringArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		items, err := collectOrderStatuses(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, items...)
	}
	return statuses, nil
}

func (r *OrderStatusRepository) findOne(ctx context.Context, query string, arg string) (*entity.OrderStatus, error) {
	status := &entity.OrderStatus{}
	if err := scanOrderStatus(conn(ctx, r.db).QueryRowContext(ctx, query, arg), status); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return status, nil
}

func collectOrderStatuses(rows *sql.Rows) ([]*entity.OrderStatus, error) {
	defer rows.Close()

	statuses := make([]*entity.OrderStatus, 0)
	for rows.Next() {
		status := &entity.OrderStatus{}
		if err := scanOrderStatus(rows, status); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return statuses, nil
}

func scanOrderStatus(scanner rowScanner, status *entity.OrderStatus) error {
	var (
		paymentMode    sql.NullString
		paymentDetails sql.NullString
		bankReference  sql.NullString
		paymentMessage sql.NullString
		errorMessage   sql.NullString
		paymentTime    sql.NullTime
		lastEventAt    sql.NullTime
	)

	if err := scanner.Scan(
		&status.ID,
		&status.CollectID,
		&status.CustomOrderID,
		&status.OrderAmount,
		&status.TransactionAmount,
		&paymentMode,
		&paymentDetails,
		&bankReference,
		&paymentMessage,
		&status.Status,
		&errorMessage,
		&paymentTime,
		&lastEventAt,
		&status.CreatedAt,
		&status.UpdatedAt,
	); err != nil {
		return err
	}

	status.PaymentMode = stringPtrFromNull(paymentMode)
	status.PaymentDetails = stringPtrFromNull(paymentDetails)
	status.BankReference = stringPtrFromNull(bankReference)
	status.PaymentMessage = stringPtrFromNull(paymentMessage)
	status.ErrorMessage = stringPtrFromNull(errorMessage)
	status.PaymentTime = timePtrFromNull(paymentTime)
	status.LastEventAt = timePtrFromNull(lastEventAt)
	return nil
}
