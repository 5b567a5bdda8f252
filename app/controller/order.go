package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-school-payments/app/factory"
	"github.com/vibast-solutions/ms-go-school-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-school-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-school-payments/app/service"
	"github.com/vibast-solutions/ms-go-school-payments/app/types"
)

const (
	paymentCreatedMessage = "Payment transaction created successfully! Please proceed to payment using the provided link."
	gatewayNoLinkMessage  = "Payment API did not return payment link. Transaction creation failed."
	gatewayFailedMessage  = "Payment API request failed. Transaction creation failed."
)

type OrderController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewOrderController(paymentService *service.PaymentService) *OrderController {
	return &OrderController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("orders-controller"),
	}
}

func (c *OrderController) CreatePayment(ctx echo.Context) error {
	logger := factory.LoggerWithContext(c.logger, ctx)

	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		logger.WithError(err).Debug("Create payment request rejected")
		return writeBadRequest(ctx, err, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		logger.WithError(err).Debug("Create payment request rejected")
		return writeBadRequest(ctx, err, err.Error())
	}

	result, err := c.paymentService.CreatePayment(ctx.Request().Context(), req)
	if err != nil {
		var failure *service.GatewayFailureError
		var gwErr *gateway.Error
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrDuplicateOrder):
			return writeError(ctx, http.StatusConflict, "Duplicate custom_order_id. Order already exists.")
		case errors.Is(err, service.ErrCreationInProgress):
			return writeError(ctx, http.StatusConflict, "Payment creation for this custom_order_id is already in progress.")
		case errors.As(err, &failure) && errors.Is(err, service.ErrGatewayNoLink):
			logger.WithField("custom_order_id", req.GetCustomOrderID()).Warn("Payment API did not return payment link")
			return ctx.JSON(http.StatusInternalServerError, &types.GatewayFailureResponse{
				Error:              gatewayNoLinkMessage,
				PaymentAPIResponse: failure.Body,
			})
		case errors.As(err, &failure) && errors.As(err, &gwErr):
			logger.WithError(err).WithField("custom_order_id", req.GetCustomOrderID()).Error("Payment API request failed")
			return ctx.JSON(http.StatusBadGateway, &types.GatewayFailureResponse{
				Error:              gatewayFailedMessage,
				PaymentAPIResponse: failure.Body,
			})
		default:
			logger.WithError(err).Error("Create payment failed")
			return writeError(ctx, http.StatusInternalServerError, internalServerError)
		}
	}

	return ctx.JSON(http.StatusOK, &types.CreatePaymentResponse{
		Message:     paymentCreatedMessage,
		PaymentLink: result.PaymentLink,
		CollectID:   result.CollectID,
	})
}

func (c *OrderController) GetOrderStatus(ctx echo.Context) error {
	req, err := types.NewGetOrderStatusRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, "Invalid collect_id format")
	}

	item, err := c.paymentService.GetOrderStatus(ctx.Request().Context(), req.GetCollectID())
	if err != nil {
		if errors.Is(err, service.ErrOrderStatusNotFound) {
			return writeError(ctx, http.StatusNotFound, "Order status not found for the provided collect_id")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get order status failed")
		return writeError(ctx, http.StatusInternalServerError, internalServerError)
	}

	return ctx.JSON(http.StatusOK, &types.OrderStatusResponse{OrderStatus: mapper.OrderStatusToResponse(item)})
}
