package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-school-payments/app/service"
	"github.com/vibast-solutions/ms-go-school-payments/config"
)

var (
	workerMode bool
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Run order maintenance commands",
}

var ordersSweepStaleCmd = &cobra.Command{
	Use:   "sweep-stale",
	Short: "Mark orders stuck before gateway submission as failed",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"orders_sweep_stale",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.SweepStaleInterval },
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunSweepStaleSubmissions(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(ordersSweepStaleCmd)

	ordersCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.PaymentService, ctx context.Context) error,
) {
	svc, cleanup := mustCreateServices()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(svc.cfg), svc.payments, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(svc.payments, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	paymentService *service.PaymentService,
	fn func(s *service.PaymentService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(paymentService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(paymentService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
