package types

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type StudentInfo struct {
	Name  string `json:"name" validate:"required,max=255"`
	ID    string `json:"id" validate:"required,max=128"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,phone"`
}

type CreatePaymentRequest struct {
	SchoolID      string          `json:"school_id" validate:"required"`
	TrusteeID     string          `json:"trustee_id" validate:"required"`
	StudentInfo   StudentInfo     `json:"student_info" validate:"required"`
	GatewayName   string          `json:"gateway_name" validate:"required,max=64"`
	Amount        decimal.Decimal `json:"amount"`
	CustomOrderID string          `json:"custom_order_id" validate:"required,max=128"`
	CallbackURL   string          `json:"callback_url" validate:"required,callback_url"`

	amountSet bool
}

// createPaymentBody keeps the amount raw so a missing value can be told apart
// from zero.
type createPaymentBody struct {
	SchoolID      string          `json:"school_id"`
	TrusteeID     string          `json:"trustee_id"`
	StudentInfo   StudentInfo     `json:"student_info"`
	GatewayName   string          `json:"gateway_name"`
	Amount        json.RawMessage `json:"amount"`
	CustomOrderID string          `json:"custom_order_id"`
	CallbackURL   string          `json:"callback_url"`
}

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body createPaymentBody
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	req := &CreatePaymentRequest{
		SchoolID:      strings.TrimSpace(body.SchoolID),
		TrusteeID:     strings.TrimSpace(body.TrusteeID),
		GatewayName:   strings.TrimSpace(body.GatewayName),
		CustomOrderID: strings.TrimSpace(body.CustomOrderID),
		CallbackURL:   strings.TrimSpace(body.CallbackURL),
		StudentInfo: StudentInfo{
			Name:  strings.TrimSpace(body.StudentInfo.Name),
			ID:    strings.TrimSpace(body.StudentInfo.ID),
			Email: strings.ToLower(strings.TrimSpace(body.StudentInfo.Email)),
			Phone: strings.TrimSpace(body.StudentInfo.Phone),
		},
	}

	amount, ok, err := parseAmount(body.Amount)
	if err != nil {
		return nil, newFieldError("amount", "should be a number")
	}
	req.Amount = amount
	req.amountSet = ok

	return req, nil
}

const maxAmountScale = 2

// maxAmount is the exclusive upper bound of a DECIMAL(14, 2) column.
var maxAmount = decimal.New(1, 12)

// amountOutOfRange describes why d cannot be stored without rounding, or
// returns "" when it fits.
func amountOutOfRange(d decimal.Decimal) string {
	switch {
	case !d.Equal(d.Round(maxAmountScale)):
		return "must have at most 2 decimal places"
	case d.Abs().GreaterThanOrEqual(maxAmount):
		return "must be less than " + maxAmount.String()
	}
	return ""
}

// parseAmount accepts a JSON number or a numeric string.
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return decimal.Zero, false, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false, err
		}
		trimmed = strings.TrimSpace(s)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

func (r *CreatePaymentRequest) Validate() error {
	err := validateStruct(r)

	var out *ValidationError
	if err != nil && !errors.As(err, &out) {
		return err
	}

	switch {
	case !r.amountSet:
		out = appendField(out, "amount", "is required")
	case !r.Amount.IsPositive():
		out = appendField(out, "amount", "must be greater than 0")
	default:
		if msg := amountOutOfRange(r.Amount); msg != "" {
			out = appendField(out, "amount", msg)
		}
	}

	if out != nil {
		return out
	}
	return nil
}

func appendField(v *ValidationError, field, message string) *ValidationError {
	if v == nil {
		v = &ValidationError{}
	}
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
	return v
}

// SetAmount sets an amount on a request built outside of HTTP binding.
func (r *CreatePaymentRequest) SetAmount(amount decimal.Decimal) {
	r.Amount = amount
	r.amountSet = true
}

func (r *CreatePaymentRequest) GetSchoolID() string      { return r.SchoolID }
func (r *CreatePaymentRequest) GetTrusteeID() string     { return r.TrusteeID }
func (r *CreatePaymentRequest) GetStudentName() string   { return r.StudentInfo.Name }
func (r *CreatePaymentRequest) GetStudentID() string     { return r.StudentInfo.ID }
func (r *CreatePaymentRequest) GetStudentEmail() string  { return r.StudentInfo.Email }
func (r *CreatePaymentRequest) GetStudentPhone() string  { return r.StudentInfo.Phone }
func (r *CreatePaymentRequest) GetGatewayName() string   { return r.GatewayName }
func (r *CreatePaymentRequest) GetCustomOrderID() string { return r.CustomOrderID }
func (r *CreatePaymentRequest) GetCallbackURL() string   { return r.CallbackURL }

func (r *CreatePaymentRequest) GetAmount() decimal.Decimal {
	return r.Amount
}

type GetOrderStatusRequest struct {
	CollectID string
}

func NewGetOrderStatusRequestFromContext(ctx echo.Context) (*GetOrderStatusRequest, error) {
	return &GetOrderStatusRequest{CollectID: strings.TrimSpace(ctx.Param("collect_id"))}, nil
}

func (r *GetOrderStatusRequest) Validate() error {
	if r.CollectID == "" {
		return newFieldError("collect_id", "is required")
	}
	if _, err := uuid.Parse(r.CollectID); err != nil {
		return newFieldError("collect_id", "must be a valid id")
	}
	return nil
}

func (r *GetOrderStatusRequest) GetCollectID() string {
	return r.CollectID
}
