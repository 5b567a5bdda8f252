//go:build e2e
// +build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vibast-solutions/ms-go-school-payments/app/auth"
	"github.com/vibast-solutions/ms-go-school-payments/app/gateway"
)

const (
	defaultJWTSecret        = "e2e-jwt-secret"
	defaultGatewayPGKey     = "e2e-pg-key"
	paymentsGatewayMockAddr = "0.0.0.0:38085"
)

var collectRequests atomic.Int64

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func jwtSecret() string {
	return envOrDefault("JWT_SECRET_KEY", defaultJWTSecret)
}

func gatewayPGKey() string {
	return envOrDefault("PG_KEY", defaultGatewayPGKey)
}

// bearerToken issues a token the server under test accepts, using the same
// secret it was started with.
func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := auth.NewTokenManager(jwtSecret(), 0).Issue("e2e-user", "e2e@example.com")
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	return token
}

// gatewayMock accepts signed collect requests. An amount of 13 makes it answer
// without a payment link.
func gatewayMock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		gateway.SignPayload
		Sign string `json:"sign"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"message":"bad body"}`, http.StatusBadRequest)
		return
	}
	if _, err := gateway.VerifySign(body.Sign, gatewayPGKey()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid sign"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if body.Amount == "13" {
		_, _ = w.Write([]byte(`{"message":"collect request queued"}`))
		return
	}
	id := collectRequests.Add(1)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"collect_request_id":  fmt.Sprintf("e2e-cr-%d", id),
		"collect_request_url": fmt.Sprintf("https://pay.example.test/collect/e2e-cr-%d", id),
	})
}

func TestMain(m *testing.M) {
	listener, err := net.Listen("tcp", paymentsGatewayMockAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start payment gateway mock: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{Handler: http.HandlerFunc(gatewayMock)}
	go func() {
		_ = server.Serve(listener)
	}()

	exitCode := m.Run()

	_ = server.Close()
	os.Exit(exitCode)
}
