package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const OrderStatusPending = "pending"

type OrderStatus struct {
	ID uint64

	CollectID     string
	CustomOrderID string

	OrderAmount       decimal.Decimal
	TransactionAmount decimal.NullDecimal

	PaymentMode    *string
	PaymentDetails *string
	BankReference  *string
	PaymentMessage *string
	Status         string
	ErrorMessage   *string

	PaymentTime *time.Time
	// LastEventAt is the payment_time of the last applied gateway callback.
	LastEventAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusUpdate carries the gateway-authoritative fields of a callback.
// A nil OrderAmount keeps the stored amount.
type StatusUpdate struct {
	CollectID string

	OrderAmount       *decimal.Decimal
	TransactionAmount decimal.NullDecimal

	PaymentMode    *string
	PaymentDetails *string
	BankReference  *string
	PaymentMessage *string
	Status         string
	ErrorMessage   *string

	PaymentTime time.Time
	UpdatedAt   time.Time
}
