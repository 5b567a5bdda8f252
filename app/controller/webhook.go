package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-school-payments/app/factory"
	"github.com/vibast-solutions/ms-go-school-payments/app/service"
	"github.com/vibast-solutions/ms-go-school-payments/app/types"
)

type WebhookController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewWebhookController(paymentService *service.PaymentService) *WebhookController {
	return &WebhookController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("webhook-controller"),
	}
}

func (c *WebhookController) HandleWebhook(ctx echo.Context) error {
	logger := factory.LoggerWithContext(c.logger, ctx)

	raw, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	result, err := c.paymentService.HandleCallback(ctx.Request().Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidWebhookPayload):
			logger.WithError(err).Warn("Malformed webhook payload")
			return writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrOrderStatusNotFound):
			return writeError(ctx, http.StatusNotFound, "OrderStatus not found")
		default:
			logger.WithError(err).Error("Handle webhook failed")
			return writeError(ctx, http.StatusInternalServerError, internalServerError)
		}
	}

	if result.Stale {
		return ctx.JSON(http.StatusOK, &types.WebhookResponse{Message: "Webhook ignored: stale callback", Status: "ok"})
	}
	return ctx.JSON(http.StatusOK, &types.WebhookResponse{Message: "Webhook processed successfully", Status: "ok"})
}
