package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const maxResponseBytes = 1 << 20

var ErrNotConfigured = errors.New("payment gateway is not configured")

type Config struct {
	URL         string
	APIKey      string
	PGKey       string
	HTTPTimeout time.Duration
}

type CollectRequest struct {
	SchoolID    string
	Amount      decimal.Decimal
	CallbackURL string
}

type SignPayload struct {
	SchoolID    string `json:"school_id"`
	Amount      string `json:"amount"`
	CallbackURL string `json:"callback_url"`
}

type collectRequestBody struct {
	SignPayload
	Sign string `json:"sign"`
}

type CollectResponse struct {
	CollectRequestID  string `json:"collect_request_id"`
	CollectRequestURL string `json:"collect_request_url"`
	Sign              string `json:"sign"`

	// Raw is the response body exactly as the gateway sent it.
	Raw json.RawMessage `json:"-"`
}

// Error is returned for transport failures and non-2xx gateway responses.
type Error struct {
	StatusCode int
	Body       json.RawMessage
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("payment gateway request failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("payment gateway returned status %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("payment gateway returned status %d", e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

func NewClient(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// CreateCollectRequest signs and submits a collection request. It performs
// exactly one HTTP attempt.
func (c *Client) CreateCollectRequest(ctx context.Context, input CollectRequest) (*CollectResponse, error) {
	if strings.TrimSpace(c.cfg.URL) == "" || strings.TrimSpace(c.cfg.PGKey) == "" {
		return nil, ErrNotConfigured
	}

	payload := SignPayload{
		SchoolID:    input.SchoolID,
		Amount:      input.Amount.String(),
		CallbackURL: input.CallbackURL,
	}
	sign, err := Sign(payload, c.cfg.PGKey, c.now())
	if err != nil {
		return nil, fmt.Errorf("sign collect request: %w", err)
	}

	body, err := json.Marshal(collectRequestBody{SignPayload: payload, Sign: sign})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Err: err}
	}
	raw := RawJSON(respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: raw}
	}

	out := &CollectResponse{Raw: raw}
	if err := json.Unmarshal(respBody, out); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Body: raw, Err: fmt.Errorf("decode gateway response: %w", err)}
	}
	return out, nil
}

// RawJSON returns body as JSON, quoting it when the gateway did not send JSON.
func RawJSON(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
