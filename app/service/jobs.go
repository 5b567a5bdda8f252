package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-school-payments/app/entity"
)

const (
	defaultStaleSubmissionAfter = 15 * time.Minute
	submissionInterrupted       = "submission interrupted"
)

// RunSweepStaleSubmissions fails orders left in pending_submission, which
// happens when a creation request dies between the order insert and the
// status insert.
func (s *PaymentService) RunSweepStaleSubmissions(ctx context.Context) error {
	staleAfter := s.paymentsCfg.StaleSubmissionAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleSubmissionAfter
	}

	now := s.now()
	items, err := s.orderRepo.ListStaleSubmissions(ctx, now.Add(-staleAfter), s.batchSize())
	if err != nil {
		return err
	}

	reason := submissionInterrupted
	swept := 0
	var firstErr error
	for _, order := range items {
		if order == nil {
			continue
		}
		ok, err := s.orderRepo.TransitionSubmission(ctx, order.ID, entity.SubmissionPending, entity.SubmissionFailed, &reason, now)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if ok {
			swept++
		}
	}

	s.metrics.OrdersSwept(swept)
	if swept > 0 {
		s.logger.WithField("count", swept).Info("stale submissions marked submission_failed")
	}

	return firstErr
}
