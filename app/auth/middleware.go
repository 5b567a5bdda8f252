package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-school-payments/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type claimsContextKey struct{}

// EchoMiddleware rejects requests without a valid bearer token. Paths in
// skip are served without authentication.
func (m *TokenManager) EchoMiddleware(skip ...string) echo.MiddlewareFunc {
	public := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		public[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, ok := public[ctx.Path()]; ok {
				return next(ctx)
			}

			claims, err := m.Parse(bearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization)))
			if err != nil {
				logrus.WithError(err).WithField("path", ctx.Path()).Debug("Bearer token rejected")
				message := "Unauthorized: Invalid token"
				if errors.Is(err, ErrMissingToken) {
					message = "Unauthorized: Token missing"
				}
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: message})
			}

			ctx.SetRequest(ctx.Request().WithContext(context.WithValue(ctx.Request().Context(), claimsContextKey{}, claims)))
			return next(ctx)
		}
	}
}

// UnaryServerInterceptor authenticates gRPC calls from the "authorization"
// metadata. Methods under the health service are exempt.
func (m *TokenManager) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		claims, err := m.Parse(bearerToken(header))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return handler(context.WithValue(ctx, claimsContextKey{}, claims), req)
	}
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}
