package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
)

var ErrOrderAlreadyExists = errors.New("order already exists")

const orderColumns = `id, school_id, trustee_id, student_name, student_id, student_email, student_phone,
			gateway_name, submission_state, submission_error, created_at, updated_at`

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (
			id, school_id, trustee_id, student_name, student_id, student_email, student_phone,
			gateway_name, submission_state, submission_error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		order.ID,
		order.SchoolID,
		order.TrusteeID,
		order.StudentName,
		order.StudentID,
		order.StudentEmail,
		nullableStringValue(order.StudentPhone),
		order.GatewayName,
		order.SubmissionState,
		nullableStringValue(order.SubmissionError),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}
	return nil
}

// TransitionSubmission moves an order from one submission state to another.
// It reports false when the order was not in the expected state.
func (r *OrderRepository) TransitionSubmission(
	ctx context.Context,
	id string,
	from string,
	to string,
	submissionErr *string,
	updatedAt time.Time,
) (bool, error) {
	query := `
		UPDATE orders SET
			submission_state = ?,
			submission_error = ?,
			updated_at = ?
		WHERE id = ? AND submission_state = ?
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, to, nullableStringValue(submissionErr), updatedAt, id, from)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.query(ctx, query)
}

func (r *OrderRepository) ListBySchoolID(ctx context.Context, schoolID string) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE school_id = ? ORDER BY created_at DESC`
	return r.query(ctx, query, schoolID)
}

func (r *OrderRepository) ListStaleSubmissions(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE submission_state = ?
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	return r.query(ctx, query, entity.SubmissionPending, cutoff, limit)
}

func (r *OrderRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Order, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		order := &entity.Order{}
		if err := scanOrder(rows, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(scanner rowScanner, order *entity.Order) error {
	var (
		studentPhone    sql.NullString
		submissionError sql.NullString
	)

	if err := scanner.Scan(
		&order.ID,
		&order.SchoolID,
		&order.TrusteeID,
		&order.StudentName,
		&order.StudentID,
		&order.StudentEmail,
		&studentPhone,
		&order.GatewayName,
		&order.SubmissionState,
		&submissionError,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return err
	}

	order.StudentPhone = stringPtrFromNull(studentPhone)
	order.SubmissionError = stringPtrFromNull(submissionError)
	return nil
}
