package types

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	DefaultTransactionsLimit = 10
	DefaultTransactionsPage  = 1
	DefaultTransactionsSort  = "payment_time"
	SortOrderAsc             = "asc"
	SortOrderDesc            = "desc"
)

type ListTransactionsRequest struct {
	Limit int
	Page  int
	Sort  string
	Order string
}

func NewListTransactionsRequestFromContext(ctx echo.Context) (*ListTransactionsRequest, error) {
	req := &ListTransactionsRequest{
		Limit: DefaultTransactionsLimit,
		Page:  DefaultTransactionsPage,
		Sort:  strings.TrimSpace(ctx.QueryParam("sort")),
		Order: strings.ToLower(strings.TrimSpace(ctx.QueryParam("order"))),
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			return nil, newFieldError("limit", "must be an integer")
		}
		req.Limit = limit
	}

	if pageRaw := strings.TrimSpace(ctx.QueryParam("page")); pageRaw != "" {
		page, err := strconv.Atoi(pageRaw)
		if err != nil {
			return nil, newFieldError("page", "must be an integer")
		}
		req.Page = page
	}

	return req, nil
}

func (r *ListTransactionsRequest) Validate() error {
	if r.Sort == "" {
		r.Sort = DefaultTransactionsSort
	}
	if r.Order == "" {
		r.Order = SortOrderDesc
	}

	var out *ValidationError
	if r.Limit < 1 {
		out = appendField(out, "limit", "must be >= 1")
	}
	if r.Page < 1 {
		out = appendField(out, "page", "must be >= 1")
	}
	if r.Order != SortOrderAsc && r.Order != SortOrderDesc {
		out = appendField(out, "order", "must be one of: asc desc")
	}
	if out != nil {
		return out
	}
	return nil
}

func (r *ListTransactionsRequest) GetLimit() int    { return r.Limit }
func (r *ListTransactionsRequest) GetPage() int     { return r.Page }
func (r *ListTransactionsRequest) GetSort() string  { return r.Sort }
func (r *ListTransactionsRequest) GetOrder() string { return r.Order }

type SchoolTransactionsRequest struct {
	SchoolID string
}

func NewSchoolTransactionsRequestFromContext(ctx echo.Context) (*SchoolTransactionsRequest, error) {
	return &SchoolTransactionsRequest{SchoolID: strings.TrimSpace(ctx.Param("schoolId"))}, nil
}

func (r *SchoolTransactionsRequest) Validate() error {
	if r.SchoolID == "" {
		return newFieldError("schoolId", "is required")
	}
	if _, err := uuid.Parse(r.SchoolID); err != nil {
		return newFieldError("schoolId", "must be a valid id")
	}
	return nil
}

func (r *SchoolTransactionsRequest) GetSchoolID() string {
	return r.SchoolID
}

type TransactionStatusRequest struct {
	CustomOrderID string
}

func NewTransactionStatusRequestFromContext(ctx echo.Context) (*TransactionStatusRequest, error) {
	return &TransactionStatusRequest{CustomOrderID: strings.TrimSpace(ctx.Param("custom_order_id"))}, nil
}

func (r *TransactionStatusRequest) Validate() error {
	if r.CustomOrderID == "" {
		return newFieldError("custom_order_id", "is required")
	}
	return nil
}

func (r *TransactionStatusRequest) GetCustomOrderID() string {
	return r.CustomOrderID
}
