package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
	"github.com/vibast-solutions/ms-go-school-payments/config"
)

const defaultMaxListLimit = 500

type listTransactionsRequest interface {
	GetLimit() int
	GetPage() int
	GetSort() string
	GetOrder() string
}

type transactionOrderRepository interface {
	List(ctx context.Context) ([]*entity.Order, error)
	ListBySchoolID(ctx context.Context, schoolID string) ([]*entity.Order, error)
}

type transactionStatusRepository interface {
	FindByCollectIDs(ctx context.Context, collectIDs []string) ([]*entity.OrderStatus, error)
	FindByCustomOrderID(ctx context.Context, customOrderID string) (*entity.OrderStatus, error)
}

// compareFunc orders two rows ascending, with missing values lowest.
type compareFunc func(a, b *entity.Transaction) int

var transactionSortKeys = map[string]compareFunc{
	"payment_time": func(a, b *entity.Transaction) int {
		return a.DateTime.Compare(b.DateTime)
	},
	"order_amount": func(a, b *entity.Transaction) int {
		return a.OrderAmount.Cmp(b.OrderAmount)
	},
	"transaction_amount": func(a, b *entity.Transaction) int {
		return compareNullDecimal(a.TransactionAmount, b.TransactionAmount)
	},
	"status": func(a, b *entity.Transaction) int {
		return strings.Compare(a.Status, b.Status)
	},
	"custom_order_id": func(a, b *entity.Transaction) int {
		return strings.Compare(a.CustomOrderID, b.CustomOrderID)
	},
	"payment_mode": func(a, b *entity.Transaction) int {
		return compareOptionalString(a.PaymentMode, b.PaymentMode)
	},
	"bank_reference": func(a, b *entity.Transaction) int {
		return compareOptionalString(bankReference(a), bankReference(b))
	},
}

type TransactionService struct {
	orderRepo  transactionOrderRepository
	statusRepo transactionStatusRepository
	maxLimit   int
}

func NewTransactionService(
	orderRepo transactionOrderRepository,
	statusRepo transactionStatusRepository,
	paymentsCfg config.PaymentsConfig,
) *TransactionService {
	maxLimit := paymentsCfg.MaxListLimit
	if maxLimit <= 0 {
		maxLimit = defaultMaxListLimit
	}

	return &TransactionService{
		orderRepo:  orderRepo,
		statusRepo: statusRepo,
		maxLimit:   maxLimit,
	}
}

// ListTransactions joins every order with its status, sorts the joined rows
// and returns one page of them.
func (s *TransactionService) ListTransactions(ctx context.Context, req listTransactionsRequest) ([]*entity.Transaction, error) {
	compare, ok := transactionSortKeys[req.GetSort()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortField, req.GetSort())
	}
	if req.GetLimit() < 1 || req.GetLimit() > s.maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidRequest, s.maxLimit)
	}
	if req.GetPage() < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", ErrInvalidRequest)
	}

	orders, err := s.orderRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.join(ctx, orders)
	if err != nil {
		return nil, err
	}

	sortTransactions(rows, compare, req.GetOrder() != "asc")
	return paginate(rows, req.GetPage(), req.GetLimit()), nil
}

// ListTransactionsBySchool returns all joined rows of one school, newest first.
func (s *TransactionService) ListTransactionsBySchool(ctx context.Context, schoolID string) ([]*entity.Transaction, error) {
	orders, err := s.orderRepo.ListBySchoolID(ctx, strings.ToLower(schoolID))
	if err != nil {
		return nil, err
	}
	rows, err := s.join(ctx, orders)
	if err != nil {
		return nil, err
	}

	sortTransactions(rows, transactionSortKeys["payment_time"], true)
	return rows, nil
}

func (s *TransactionService) GetStatusByCustomOrderID(ctx context.Context, customOrderID string) (*entity.OrderStatus, error) {
	status, err := s.statusRepo.FindByCustomOrderID(ctx, customOrderID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrOrderStatusNotFound
	}
	return status, nil
}

func (s *TransactionService) join(ctx context.Context, orders []*entity.Order) ([]*entity.Transaction, error) {
	if len(orders) == 0 {
		return []*entity.Transaction{}, nil
	}

	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	statuses, err := s.statusRepo.FindByCollectIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	return joinTransactions(orders, statuses), nil
}

// joinTransactions is an inner join on order id = collect id. Orders without a
// status row are dropped and the order of the input is preserved.
func joinTransactions(orders []*entity.Order, statuses []*entity.OrderStatus) []*entity.Transaction {
	byCollectID := make(map[string]*entity.OrderStatus, len(statuses))
	for _, status := range statuses {
		if status != nil {
			byCollectID[status.CollectID] = status
		}
	}

	rows := make([]*entity.Transaction, 0, len(statuses))
	for _, order := range orders {
		if order == nil {
			continue
		}
		status, ok := byCollectID[order.ID]
		if !ok {
			continue
		}

		dateTime := order.CreatedAt
		if status.PaymentTime != nil {
			dateTime = *status.PaymentTime
		}
		phone := ""
		if order.StudentPhone != nil {
			phone = *order.StudentPhone
		}

		rows = append(rows, &entity.Transaction{
			CollectID:         order.ID,
			SchoolID:          order.SchoolID,
			OrderID:           order.ID,
			CustomOrderID:     status.CustomOrderID,
			OrderAmount:       status.OrderAmount,
			TransactionAmount: status.TransactionAmount,
			PaymentMode:       status.PaymentMode,
			Status:            status.Status,
			DateTime:          dateTime,
			StudentName:       order.StudentName,
			StudentID:         order.StudentID,
			PhoneNo:           phone,
			Gateway:           order.GatewayName,
			OrderStatus:       status,
		})
	}
	return rows
}

func sortTransactions(rows []*entity.Transaction, compare compareFunc, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return compare(rows[i], rows[j]) > 0
		}
		return compare(rows[i], rows[j]) < 0
	})
}

func paginate(rows []*entity.Transaction, page, limit int) []*entity.Transaction {
	skip := (page - 1) * limit
	if skip >= len(rows) {
		return []*entity.Transaction{}
	}
	end := skip + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[skip:end]
}

func compareNullDecimal(a, b decimal.NullDecimal) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return -1
	case !b.Valid:
		return 1
	default:
		return a.Decimal.Cmp(b.Decimal)
	}
}

func compareOptionalString(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return strings.Compare(*a, *b)
	}
}

func bankReference(row *entity.Transaction) *string {
	if row.OrderStatus == nil {
		return nil
	}
	return row.OrderStatus.BankReference
}
