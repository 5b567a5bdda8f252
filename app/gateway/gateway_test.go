package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSignRoundTrip(t *testing.T) {
	payload := SignPayload{SchoolID: "65b0e6293e9f76a9694d84b4", Amount: "1050", CallbackURL: "http://localhost:5173/payment-callback"}
	token, err := Sign(payload, "pg-secret", time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	got, err := VerifySign(token, "pg-secret")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if *got != payload {
		t.Fatalf("unexpected payload: %+v", got)
	}

	if _, err := VerifySign(token, "other-secret"); err == nil {
		t.Fatal("expected verification with wrong secret to fail")
	}
}

func TestCreateCollectRequestSuccess(t *testing.T) {
	var captured collectRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer api-key" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"collect_request_id":"cr_1","collect_request_url":"https://pay.example/cr_1","sign":"resp-sign"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, APIKey: "api-key", PGKey: "pg-secret", HTTPTimeout: time.Second})
	resp, err := client.CreateCollectRequest(context.Background(), CollectRequest{
		SchoolID:    "65b0e6293e9f76a9694d84b4",
		Amount:      decimal.RequireFromString("1050.50"),
		CallbackURL: "https://school.example/callback",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CollectRequestURL != "https://pay.example/cr_1" || resp.CollectRequestID != "cr_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Raw) == 0 {
		t.Fatal("expected raw body to be kept")
	}

	if captured.Amount != "1050.5" {
		t.Fatalf("expected amount serialized as string, got %q", captured.Amount)
	}
	signed, err := VerifySign(captured.Sign, "pg-secret")
	if err != nil {
		t.Fatalf("request sign did not verify: %v", err)
	}
	if signed.SchoolID != captured.SchoolID || signed.Amount != captured.Amount || signed.CallbackURL != captured.CallbackURL {
		t.Fatalf("sign claims do not match body: %+v vs %+v", signed, captured.SignPayload)
	}
}

func TestCreateCollectRequestMissingLinkIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"school not onboarded"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, APIKey: "api-key", PGKey: "pg-secret"})
	resp, err := client.CreateCollectRequest(context.Background(), CollectRequest{Amount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CollectRequestURL != "" {
		t.Fatalf("expected empty link, got %q", resp.CollectRequestURL)
	}
	if string(resp.Raw) != `{"message":"school not onboarded"}` {
		t.Fatalf("unexpected raw body: %s", resp.Raw)
	}
}

func TestCreateCollectRequestNon2xxDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, APIKey: "api-key", PGKey: "pg-secret"})
	_, err := client.CreateCollectRequest(context.Background(), CollectRequest{Amount: decimal.NewFromInt(10)})

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if gwErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", gwErr.StatusCode)
	}
	if string(gwErr.Body) != `"upstream down"` {
		t.Fatalf("expected non-JSON body to be quoted, got %s", gwErr.Body)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestCreateCollectRequestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(Config{URL: url, APIKey: "api-key", PGKey: "pg-secret"})
	_, err := client.CreateCollectRequest(context.Background(), CollectRequest{Amount: decimal.NewFromInt(10)})

	var gwErr *Error
	if !errors.As(err, &gwErr) || gwErr.StatusCode != 0 {
		t.Fatalf("expected transport gateway error, got %v", err)
	}
}

func TestCreateCollectRequestNotConfigured(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.CreateCollectRequest(context.Background(), CollectRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRawJSON(t *testing.T) {
	if got := string(RawJSON(nil)); got != "null" {
		t.Fatalf("expected null, got %s", got)
	}
	if got := string(RawJSON([]byte(` {"a":1} `))); got != `{"a":1}` {
		t.Fatalf("unexpected raw json: %s", got)
	}
}
