package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMalformedWebhook = errors.New("malformed webhook payload")

type WebhookOrderInfo struct {
	OrderID           string
	OrderAmount       *decimal.Decimal
	TransactionAmount decimal.NullDecimal
	PaymentMode       *string
	PaymentDetails    *string
	BankReference     *string
	PaymentMessage    *string
	Status            string
	ErrorMessage      *string
	PaymentTime       *time.Time
}

type WebhookPayload struct {
	OrderInfo WebhookOrderInfo
}

type webhookBody struct {
	OrderInfo *webhookOrderInfoBody `json:"order_info"`
}

// Field matching in encoding/json is case-insensitive, so Payment_message
// also accepts payment_message.
type webhookOrderInfoBody struct {
	OrderID           json.RawMessage `json:"order_id"`
	OrderAmount       json.RawMessage `json:"order_amount"`
	TransactionAmount json.RawMessage `json:"transaction_amount"`
	PaymentMode       *string         `json:"payment_mode"`
	PaymentDetails    *string         `json:"payment_details"`
	BankReference     *string         `json:"bank_reference"`
	PaymentMessage    *string         `json:"Payment_message"`
	Status            *string         `json:"status"`
	ErrorMessage      *string         `json:"error_message"`
	PaymentTime       json.RawMessage `json:"payment_time"`
}

// ParseWebhookPayload decodes a gateway callback body. Every returned error
// wraps ErrMalformedWebhook.
func ParseWebhookPayload(raw []byte) (*WebhookPayload, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedWebhook)
	}

	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if body.OrderInfo == nil {
		return nil, fmt.Errorf("%w: order_info is required", ErrMalformedWebhook)
	}
	in := body.OrderInfo

	orderID, err := rawString(in.OrderID)
	if err != nil || orderID == "" {
		return nil, fmt.Errorf("%w: order_info.order_id is required", ErrMalformedWebhook)
	}

	info := WebhookOrderInfo{
		OrderID:        orderID,
		PaymentMode:    in.PaymentMode,
		PaymentDetails: in.PaymentDetails,
		BankReference:  in.BankReference,
		PaymentMessage: in.PaymentMessage,
		ErrorMessage:   in.ErrorMessage,
	}
	if in.Status != nil {
		info.Status = strings.TrimSpace(*in.Status)
	}
	if info.Status == "" {
		return nil, fmt.Errorf("%w: order_info.status is required", ErrMalformedWebhook)
	}

	orderAmount, ok, err := parseAmount(in.OrderAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: order_info.order_amount must be a number", ErrMalformedWebhook)
	}
	if ok {
		if msg := amountOutOfRange(orderAmount); msg != "" {
			return nil, fmt.Errorf("%w: order_info.order_amount %s", ErrMalformedWebhook, msg)
		}
		info.OrderAmount = &orderAmount
	}

	txAmount, ok, err := parseAmount(in.TransactionAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: order_info.transaction_amount must be a number", ErrMalformedWebhook)
	}
	if ok {
		if msg := amountOutOfRange(txAmount); msg != "" {
			return nil, fmt.Errorf("%w: order_info.transaction_amount %s", ErrMalformedWebhook, msg)
		}
	}
	info.TransactionAmount = decimal.NullDecimal{Decimal: txAmount, Valid: ok}

	paymentTime, err := parsePaymentTime(in.PaymentTime)
	if err != nil {
		return nil, fmt.Errorf("%w: order_info.payment_time: %v", ErrMalformedWebhook, err)
	}
	info.PaymentTime = paymentTime

	return &WebhookPayload{OrderInfo: info}, nil
}

// rawString accepts ids sent either as strings or as bare numbers.
func rawString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

var paymentTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parsePaymentTime accepts RFC 3339 strings, a few common layouts and unix
// epoch numbers in seconds or milliseconds.
func parsePaymentTime(raw json.RawMessage) (*time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	if trimmed[0] != '"' {
		epoch, err := strconv.ParseInt(string(trimmed), 10, 64)
		if err != nil {
			return nil, errors.New("unsupported time format")
		}
		var t time.Time
		if epoch > 1e12 {
			t = time.UnixMilli(epoch)
		} else {
			t = time.Unix(epoch, 0)
		}
		t = t.UTC()
		return &t, nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range paymentTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unsupported time format %q", s)
}
