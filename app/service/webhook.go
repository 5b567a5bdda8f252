package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
	"github.com/vibast-solutions/ms-go-school-payments/app/events"
	"github.com/vibast-solutions/ms-go-school-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-school-payments/app/repository"
	"github.com/vibast-solutions/ms-go-school-payments/app/types"
	"github.com/vibast-solutions/ms-go-school-payments/config"
)

const (
	webhookResultSuccess  = "success"
	webhookResultNotFound = "OrderStatus not found"
	webhookResultStale    = "stale callback ignored"
	maxWebhookResult      = 1024
)

type WebhookResult struct {
	CollectID string
	// Stale is set when the ordering policy ignored an out-of-date callback.
	Stale bool
}

// HandleCallback applies a gateway callback to the matching order status.
// Every call writes exactly one webhook log row, whatever the outcome. A
// call that cannot write its row fails, and an applied update is rolled back
// with it.
func (s *PaymentService) HandleCallback(ctx context.Context, raw []byte) (*WebhookResult, error) {
	receivedAt := s.now()
	reject := func(outcome, result string, err error) error {
		if logErr := s.recordWebhook(ctx, raw, result, receivedAt); logErr != nil {
			s.metrics.WebhookCallback("error")
			return logErr
		}
		s.metrics.WebhookCallback(outcome)
		return err
	}

	payload, err := types.ParseWebhookPayload(raw)
	if err != nil {
		return nil, reject("malformed", err.Error(), fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err))
	}
	info := payload.OrderInfo
	logger := s.logger.WithField("collect_id", info.OrderID)

	current, err := s.statusRepo.FindByCollectID(ctx, info.OrderID)
	if err != nil {
		return nil, reject("error", err.Error(), err)
	}
	if current == nil {
		logger.Warn("webhook for unknown order status")
		return nil, reject("not_found", webhookResultNotFound, ErrOrderStatusNotFound)
	}

	paymentTime := receivedAt
	if info.PaymentTime != nil {
		paymentTime = *info.PaymentTime
	}
	update := &entity.StatusUpdate{
		CollectID:         info.OrderID,
		OrderAmount:       info.OrderAmount,
		TransactionAmount: info.TransactionAmount,
		PaymentMode:       info.PaymentMode,
		PaymentDetails:    info.PaymentDetails,
		BankReference:     info.BankReference,
		PaymentMessage:    info.PaymentMessage,
		Status:            info.Status,
		ErrorMessage:      info.ErrorMessage,
		PaymentTime:       paymentTime,
		UpdatedAt:         receivedAt,
	}

	var applied bool
	var logErr error
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.statusRepo.ApplyUpdate(ctx, update, s.rejectStale())
		if err != nil || !applied {
			return err
		}
		logErr = s.webhookRepo.Create(ctx, &entity.WebhookLog{
			PayloadJSON: string(gateway.RawJSON(raw)),
			Processed:   true,
			Result:      webhookResultSuccess,
			ReceivedAt:  receivedAt,
		})
		return logErr
	})
	switch {
	case logErr != nil:
		logger.WithError(logErr).Error("failed to write webhook log, update rolled back")
		s.metrics.WebhookCallback("error")
		return nil, fmt.Errorf("write webhook log: %w", logErr)
	case errors.Is(err, repository.ErrOrderStatusNotFound):
		return nil, reject("not_found", webhookResultNotFound, ErrOrderStatusNotFound)
	case err != nil:
		logger.WithError(err).Error("failed to apply webhook update")
		return nil, reject("error", err.Error(), err)
	case !applied:
		logger.WithFields(logrus.Fields{
			"payment_time":  paymentTime,
			"last_event_at": current.LastEventAt,
		}).Info("stale webhook ignored")
		if err := reject("stale", webhookResultStale, nil); err != nil {
			return nil, err
		}
		return &WebhookResult{CollectID: info.OrderID, Stale: true}, nil
	}

	s.metrics.WebhookCallback("success")
	logger.WithField("status", info.Status).Info("order status updated from webhook")

	s.publishStatusChanged(ctx, current, update)

	return &WebhookResult{CollectID: info.OrderID}, nil
}

func (s *PaymentService) rejectStale() bool {
	return s.paymentsCfg.WebhookOrderingPolicy == config.WebhookPolicyRejectStale
}

// recordWebhook writes the log row for a callback that changed nothing.
func (s *PaymentService) recordWebhook(ctx context.Context, raw []byte, result string, receivedAt time.Time) error {
	err := s.webhookRepo.Create(context.WithoutCancel(ctx), &entity.WebhookLog{
		PayloadJSON: string(gateway.RawJSON(raw)),
		Processed:   false,
		Result:      truncate(result, maxWebhookResult),
		ReceivedAt:  receivedAt,
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to write webhook log")
		return fmt.Errorf("write webhook log: %w", err)
	}
	return nil
}

func (s *PaymentService) publishStatusChanged(ctx context.Context, current *entity.OrderStatus, update *entity.StatusUpdate) {
	orderAmount := current.OrderAmount
	if update.OrderAmount != nil {
		orderAmount = *update.OrderAmount
	}

	err := s.publisher.PublishStatusChanged(ctx, events.PaymentStatusEvent{
		CollectID:         update.CollectID,
		CustomOrderID:     current.CustomOrderID,
		Status:            update.Status,
		OrderAmount:       orderAmount,
		TransactionAmount: update.TransactionAmount,
		PaymentMode:       update.PaymentMode,
		PaymentTime:       update.PaymentTime,
		OccurredAt:        update.UpdatedAt,
	})
	if err != nil {
		s.logger.WithError(err).WithField("collect_id", update.CollectID).Warn("failed to publish payment status event")
	}
}
