package factory

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-school-payments/app/auth"
)

func TestNewModuleLogger(t *testing.T) {
	logger := NewModuleLogger("orders-controller")
	entry, ok := logger.(*logrus.Entry)
	if !ok {
		t.Fatalf("expected *logrus.Entry, got %T", logger)
	}
	if entry.Data["module"] != "orders-controller" {
		t.Fatalf("unexpected module field: %v", entry.Data["module"])
	}
}

func TestLoggerWithContextAddsRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	logger := LoggerWithContext(NewModuleLogger("orders-controller"), ctx)
	entry, ok := logger.(*logrus.Entry)
	if !ok {
		t.Fatalf("expected *logrus.Entry, got %T", logger)
	}
	if entry.Data["request_id"] != "req-123" {
		t.Fatalf("expected request_id field, got %v", entry.Data["request_id"])
	}
}

func TestLoggerWithContextWithoutRequestID(t *testing.T) {
	e := echo.New()
	ctx := e.NewContext(httptest.NewRequest("GET", "/health", nil), httptest.NewRecorder())

	base := NewModuleLogger("orders-controller")
	if LoggerWithContext(base, ctx) != base {
		t.Fatal("expected logger to be returned unchanged")
	}
}

func TestLoggerWithContextAddsUserID(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	token, err := tokens.Issue("user-7", "admin")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest("GET", "/transactions", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetPath("/transactions")

	var logger logrus.FieldLogger
	handler := tokens.EchoMiddleware()(func(c echo.Context) error {
		logger = LoggerWithContext(NewModuleLogger("transactions-controller"), c)
		return nil
	})
	if err := handler(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, ok := logger.(*logrus.Entry)
	if !ok {
		t.Fatalf("expected *logrus.Entry, got %T", logger)
	}
	if entry.Data["user_id"] != "user-7" {
		t.Fatalf("expected user_id field, got %v", entry.Data["user_id"])
	}
}
