package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
	"github.com/vibast-solutions/ms-go-school-payments/app/events"
	"github.com/vibast-solutions/ms-go-school-payments/app/factory"
	"github.com/vibast-solutions/ms-go-school-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-school-payments/app/lock"
	"github.com/vibast-solutions/ms-go-school-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-school-payments/app/repository"
	"github.com/vibast-solutions/ms-go-school-payments/config"
)

const (
	defaultBatchSize   = int32(100)
	maxSubmissionError = 1024
)

const (
	resultSuccess      = "success"
	resultDuplicate    = "duplicate"
	resultInProgress   = "in_progress"
	resultInvalid      = "invalid"
	resultGatewayError = "gateway_error"
	resultNoLink       = "no_link"
	resultError        = "error"
)

type createPaymentRequest interface {
	GetSchoolID() string
	GetTrusteeID() string
	GetStudentName() string
	GetStudentID() string
	GetStudentEmail() string
	GetStudentPhone() string
	GetGatewayName() string
	GetAmount() decimal.Decimal
	GetCustomOrderID() string
	GetCallbackURL() string
}

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	TransitionSubmission(ctx context.Context, id, from, to string, submissionErr *string, updatedAt time.Time) (bool, error)
	List(ctx context.Context) ([]*entity.Order, error)
	ListBySchoolID(ctx context.Context, schoolID string) ([]*entity.Order, error)
	ListStaleSubmissions(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error)
}

type orderStatusRepository interface {
	Create(ctx context.Context, status *entity.OrderStatus) error
	ApplyUpdate(ctx context.Context, update *entity.StatusUpdate, rejectStale bool) (bool, error)
	FindByCollectID(ctx context.Context, collectID string) (*entity.OrderStatus, error)
	FindByCustomOrderID(ctx context.Context, customOrderID string) (*entity.OrderStatus, error)
	FindByCollectIDs(ctx context.Context, collectIDs []string) ([]*entity.OrderStatus, error)
}

type webhookLogRepository interface {
	Create(ctx context.Context, log *entity.WebhookLog) error
}

type transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type gatewayClient interface {
	CreateCollectRequest(ctx context.Context, input gateway.CollectRequest) (*gateway.CollectResponse, error)
}

type creationLocker interface {
	Acquire(ctx context.Context, key string) (lock.ReleaseFunc, error)
}

type statusPublisher interface {
	PublishStatusChanged(ctx context.Context, event events.PaymentStatusEvent) error
}

type CreatePaymentResult struct {
	PaymentLink string
	CollectID   string
}

type PaymentService struct {
	orderRepo   orderRepository
	statusRepo  orderStatusRepository
	webhookRepo webhookLogRepository
	tx          transactor
	gateway     gatewayClient
	locker      creationLocker
	publisher   statusPublisher
	metrics     *metrics.Metrics
	paymentsCfg config.PaymentsConfig
	schoolID    string
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewPaymentService(
	orderRepo orderRepository,
	statusRepo orderStatusRepository,
	webhookRepo webhookLogRepository,
	tx transactor,
	gatewayClient gatewayClient,
	locker creationLocker,
	publisher statusPublisher,
	m *metrics.Metrics,
	paymentsCfg config.PaymentsConfig,
	gatewaySchoolID string,
) *PaymentService {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if m == nil {
		m = metrics.New(nil)
	}

	return &PaymentService{
		orderRepo:   orderRepo,
		statusRepo:  statusRepo,
		webhookRepo: webhookRepo,
		tx:          tx,
		gateway:     gatewayClient,
		locker:      locker,
		publisher:   publisher,
		metrics:     m,
		paymentsCfg: paymentsCfg,
		schoolID:    strings.TrimSpace(gatewaySchoolID),
		logger:      factory.NewModuleLogger("payment-service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreatePayment registers an order, asks the gateway for a collect request and
// records the pending status once a payment link is returned.
func (s *PaymentService) CreatePayment(ctx context.Context, req createPaymentRequest) (*CreatePaymentResult, error) {
	customOrderID := strings.TrimSpace(req.GetCustomOrderID())
	if customOrderID == "" {
		s.metrics.OrderCreated(resultInvalid)
		return nil, fmt.Errorf("%w: custom_order_id is required", ErrInvalidRequest)
	}

	release, err := s.locker.Acquire(ctx, customOrderID)
	switch {
	case errors.Is(err, lock.ErrLockHeld):
		s.metrics.OrderCreated(resultInProgress)
		return nil, ErrCreationInProgress
	case err != nil:
		// The unique index on custom_order_id still guards duplicates.
		s.logger.WithError(err).WithField("custom_order_id", customOrderID).Warn("create payment lock unavailable")
	default:
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				s.logger.WithError(relErr).WithField("custom_order_id", customOrderID).Warn("create payment lock release failed")
			}
		}()
	}

	existing, err := s.statusRepo.FindByCustomOrderID(ctx, customOrderID)
	if err != nil {
		s.metrics.OrderCreated(resultError)
		return nil, err
	}
	if existing != nil {
		s.metrics.OrderCreated(resultDuplicate)
		return nil, ErrDuplicateOrder
	}

	if _, err := uuid.Parse(req.GetSchoolID()); err != nil {
		s.metrics.OrderCreated(resultInvalid)
		return nil, fmt.Errorf("%w: school_id must be a valid id", ErrInvalidRequest)
	}
	if _, err := uuid.Parse(req.GetTrusteeID()); err != nil {
		s.metrics.OrderCreated(resultInvalid)
		return nil, fmt.Errorf("%w: trustee_id must be a valid id", ErrInvalidRequest)
	}

	now := s.now()
	order := &entity.Order{
		ID:              uuid.NewString(),
		SchoolID:        strings.ToLower(req.GetSchoolID()),
		TrusteeID:       strings.ToLower(req.GetTrusteeID()),
		StudentName:     req.GetStudentName(),
		StudentID:       req.GetStudentID(),
		StudentEmail:    req.GetStudentEmail(),
		StudentPhone:    normalizeOptionalString(req.GetStudentPhone()),
		GatewayName:     req.GetGatewayName(),
		SubmissionState: entity.SubmissionPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.metrics.OrderCreated(resultError)
		return nil, err
	}

	collect, err := s.submitCollectRequest(ctx, req)
	if err != nil {
		s.markSubmissionFailed(ctx, order.ID, err.Error())
		return nil, err
	}

	status := &entity.OrderStatus{
		CollectID:     order.ID,
		CustomOrderID: customOrderID,
		OrderAmount:   req.GetAmount(),
		Status:        entity.OrderStatusPending,
		PaymentTime:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.statusRepo.Create(ctx, status); err != nil {
			return err
		}
		return s.markSubmitted(ctx, order.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrOrderStatusAlreadyExists) {
			s.markSubmissionFailed(ctx, order.ID, ErrDuplicateOrder.Error())
			s.metrics.OrderCreated(resultDuplicate)
			return nil, ErrDuplicateOrder
		}
		s.markSubmissionFailed(ctx, order.ID, err.Error())
		s.metrics.OrderCreated(resultError)
		return nil, err
	}

	s.metrics.OrderCreated(resultSuccess)
	return &CreatePaymentResult{
		PaymentLink: collect.CollectRequestURL,
		CollectID:   order.ID,
	}, nil
}

func (s *PaymentService) submitCollectRequest(ctx context.Context, req createPaymentRequest) (*gateway.CollectResponse, error) {
	start := time.Now()
	collect, err := s.gateway.CreateCollectRequest(ctx, gateway.CollectRequest{
		SchoolID:    s.schoolID,
		Amount:      req.GetAmount(),
		CallbackURL: req.GetCallbackURL(),
	})
	elapsed := time.Since(start)

	var gwErr *gateway.Error
	switch {
	case errors.As(err, &gwErr):
		s.metrics.GatewayRequest("error", elapsed)
		s.metrics.OrderCreated(resultGatewayError)
		return nil, &GatewayFailureError{Err: err, Body: nonNullRaw(gwErr.Body)}
	case err != nil:
		s.metrics.GatewayRequest("error", elapsed)
		s.metrics.OrderCreated(resultError)
		return nil, err
	case strings.TrimSpace(collect.CollectRequestURL) == "":
		s.metrics.GatewayRequest("no_link", elapsed)
		s.metrics.OrderCreated(resultNoLink)
		return nil, &GatewayFailureError{Err: ErrGatewayNoLink, Body: nonNullRaw(collect.Raw)}
	}

	s.metrics.GatewayRequest("success", elapsed)
	return collect, nil
}

// markSubmitted also accepts an order the sweep job already failed, since
// the gateway did return a link for it.
func (s *PaymentService) markSubmitted(ctx context.Context, orderID string) error {
	now := s.now()
	ok, err := s.orderRepo.TransitionSubmission(ctx, orderID, entity.SubmissionPending, entity.SubmissionSubmitted, nil, now)
	if err != nil || ok {
		return err
	}
	ok, err = s.orderRepo.TransitionSubmission(ctx, orderID, entity.SubmissionFailed, entity.SubmissionSubmitted, nil, now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %s is not awaiting submission", orderID)
	}
	return nil
}

func (s *PaymentService) markSubmissionFailed(ctx context.Context, orderID, reason string) {
	trimmed := truncate(reason, maxSubmissionError)
	ok, err := s.orderRepo.TransitionSubmission(context.WithoutCancel(ctx), orderID, entity.SubmissionPending, entity.SubmissionFailed, &trimmed, s.now())
	entry := s.logger.WithField("order_id", orderID).WithField("reason", trimmed)
	if err != nil {
		entry.WithError(err).Error("failed to mark order submission_failed")
		return
	}
	if !ok {
		entry.Warn("order was no longer pending_submission")
		return
	}
	entry.Info("order marked submission_failed")
}

func (s *PaymentService) GetOrderStatus(ctx context.Context, collectID string) (*entity.OrderStatus, error) {
	status, err := s.statusRepo.FindByCollectID(ctx, collectID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrOrderStatusNotFound
	}
	return status, nil
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonNullRaw(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

// truncate cuts value to at most max bytes without splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	for max > 0 && !utf8.RuneStart(value[max]) {
		max--
	}
	return value[:max]
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
