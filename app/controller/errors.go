package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-school-payments/app/types"
)

const internalServerError = "internal server error"

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

// writeBadRequest reports field errors when err carries them.
func writeBadRequest(ctx echo.Context, err error, fallback string) error {
	var vErr *types.ValidationError
	if errors.As(err, &vErr) {
		return ctx.JSON(http.StatusBadRequest, &types.ValidationErrorResponse{
			Error:  "validation failed",
			Fields: vErr.Fields,
		})
	}
	return writeError(ctx, http.StatusBadRequest, fallback)
}
