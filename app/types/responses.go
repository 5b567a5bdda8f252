package types

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CreatePaymentResponse struct {
	Message     string `json:"message"`
	PaymentLink string `json:"payment_link"`
	CollectID   string `json:"collect_id"`
}

// GatewayFailureResponse surfaces the gateway body unchanged.
type GatewayFailureResponse struct {
	Error              string          `json:"error"`
	PaymentAPIResponse json.RawMessage `json:"paymentApiResponse"`
}

type OrderStatus struct {
	ID                uint64     `json:"id"`
	CollectID         string     `json:"collect_id"`
	CustomOrderID     string     `json:"custom_order_id"`
	OrderAmount       float64    `json:"order_amount"`
	TransactionAmount *float64   `json:"transaction_amount"`
	PaymentMode       *string    `json:"payment_mode"`
	PaymentDetails    *string    `json:"payment_details"`
	BankReference     *string    `json:"bank_reference"`
	PaymentMessage    *string    `json:"payment_message"`
	Status            string     `json:"status"`
	ErrorMessage      *string    `json:"error_message"`
	PaymentTime       *time.Time `json:"payment_time"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type OrderStatusResponse struct {
	OrderStatus *OrderStatus `json:"orderStatus"`
}

type Transaction struct {
	CollectID         string    `json:"collect_id"`
	SchoolID          string    `json:"school_id"`
	OrderID           string    `json:"order_id"`
	EdvironOrderID    string    `json:"edviron_order_id"`
	OrderAmount       float64   `json:"order_amount"`
	TransactionAmount *float64  `json:"transaction_amount"`
	PaymentMethod     *string   `json:"payment_method"`
	Status            string    `json:"status"`
	DateTime          time.Time `json:"date_time"`
	StudentName       string    `json:"student_name"`
	StudentID         string    `json:"student_id"`
	PhoneNo           string    `json:"phone_no"`
	Gateway           string    `json:"gateway"`
}

type TransactionsResponse struct {
	Message string        `json:"message"`
	Data    []Transaction `json:"data"`
}

type TransactionStatusResponse struct {
	Message           string     `json:"message"`
	Status            string     `json:"status"`
	CollectID         string     `json:"collect_id"`
	OrderAmount       float64    `json:"order_amount"`
	TransactionAmount *float64   `json:"transaction_amount"`
	PaymentMode       *string    `json:"payment_mode"`
	PaymentDetails    *string    `json:"payment_details"`
	BankReference     *string    `json:"bank_reference"`
	PaymentMessage    *string    `json:"payment_message"`
	ErrorMessage      *string    `json:"error_message"`
	PaymentTime       *time.Time `json:"payment_time"`
}

type WebhookResponse struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}
