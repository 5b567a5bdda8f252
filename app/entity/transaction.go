package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an Order joined with its OrderStatus.
type Transaction struct {
	CollectID     string
	SchoolID      string
	OrderID       string
	CustomOrderID string

	OrderAmount       decimal.Decimal
	TransactionAmount decimal.NullDecimal
	PaymentMode       *string
	Status            string

	DateTime time.Time

	StudentName string
	StudentID   string
	PhoneNo     string
	Gateway     string

	// OrderStatus backs sort keys that are not projected.
	OrderStatus *OrderStatus
}
