package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-school-payments/app/factory"
	"github.com/vibast-solutions/ms-go-school-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-school-payments/app/service"
	"github.com/vibast-solutions/ms-go-school-payments/app/types"
)

type TransactionController struct {
	transactionService *service.TransactionService
	logger             logrus.FieldLogger
}

func NewTransactionController(transactionService *service.TransactionService) *TransactionController {
	return &TransactionController{
		transactionService: transactionService,
		logger:             factory.NewModuleLogger("transactions-controller"),
	}
}

func (c *TransactionController) ListTransactions(ctx echo.Context) error {
	req, err := types.NewListTransactionsRequestFromContext(ctx)
	if err != nil {
		return writeBadRequest(ctx, err, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeBadRequest(ctx, err, err.Error())
	}

	items, err := c.transactionService.ListTransactions(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSortField), errors.Is(err, service.ErrInvalidRequest):
			return writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List transactions failed")
			return writeError(ctx, http.StatusInternalServerError, "Failed to fetch transactions.")
		}
	}

	return ctx.JSON(http.StatusOK, &types.TransactionsResponse{
		Message: "Transactions retrieved successfully.",
		Data:    mapper.TransactionsToResponse(items),
	})
}

func (c *TransactionController) ListSchoolTransactions(ctx echo.Context) error {
	req, err := types.NewSchoolTransactionsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeBadRequest(ctx, err, err.Error())
	}

	items, err := c.transactionService.ListTransactionsBySchool(ctx.Request().Context(), req.GetSchoolID())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("school_id", req.GetSchoolID()).Error("List school transactions failed")
		return writeError(ctx, http.StatusInternalServerError, "Failed to fetch school transactions.")
	}

	return ctx.JSON(http.StatusOK, &types.TransactionsResponse{
		Message: fmt.Sprintf("Transactions for school ID %s retrieved successfully.", req.GetSchoolID()),
		Data:    mapper.TransactionsToResponse(items),
	})
}

func (c *TransactionController) GetTransactionStatus(ctx echo.Context) error {
	req, err := types.NewTransactionStatusRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeBadRequest(ctx, err, err.Error())
	}

	item, err := c.transactionService.GetStatusByCustomOrderID(ctx.Request().Context(), req.GetCustomOrderID())
	if err != nil {
		if errors.Is(err, service.ErrOrderStatusNotFound) {
			return writeError(ctx, http.StatusNotFound, "Transaction not found.")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get transaction status failed")
		return writeError(ctx, http.StatusInternalServerError, "Failed to fetch transaction status.")
	}

	return ctx.JSON(http.StatusOK, mapper.TransactionStatusToResponse("Transaction status retrieved successfully.", item))
}
