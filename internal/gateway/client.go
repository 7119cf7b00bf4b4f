package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-payments/internal/config"
	"storefront-payments/internal/signature"
)

// ErrUnavailable wraps transport failures and timeouts talking to the
// processor. A timed-out initiate must not be read as "failed at the
// gateway": the charge may still have gone through.
var ErrUnavailable = errors.New("gateway unavailable")

// Error is a non-success answer from the processor itself.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Description)
}

type InitiateRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Description string
}

type InitiateResult struct {
	RedirectURL      string
	GatewayPaymentID string
}

// PaymentStatus is the processor's view of a payment. A payment that is
// neither settled nor failed is still in flight and must not be treated as
// dead.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentPending   PaymentStatus = "pending"
)

// Final reports whether the processor will never change this status again.
func (s PaymentStatus) Final() bool {
	return s == PaymentSucceeded || s == PaymentFailed
}

// Client is the outbound seam to the payment processor.
type Client interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	// Status reports the processor's current view of the payment.
	Status(ctx context.Context, gatewayPaymentID string) (PaymentStatus, error)
	HealthCheck(ctx context.Context) bool
}

type httpClient struct {
	http            *http.Client
	signer          *signature.Codec
	baseURL         string
	merchantID      string
	currency        string
	callbackBaseURL string
	lifetime        time.Duration
	initiateTimeout time.Duration
	healthTimeout   time.Duration
}

func NewClient(cfg config.Config, signer *signature.Codec) Client {
	return &httpClient{
		http:            &http.Client{},
		signer:          signer,
		baseURL:         strings.TrimRight(cfg.GatewayBaseURL, "/"),
		merchantID:      cfg.MerchantID,
		currency:        cfg.Currency,
		callbackBaseURL: strings.TrimRight(cfg.CallbackBaseURL, "/"),
		lifetime:        cfg.PaymentLifetime,
		initiateTimeout: cfg.InitiateTimeout,
		healthTimeout:   cfg.HealthTimeout,
	}
}

// initiateResponse mirrors the processor's JSON answer. Field names are the
// gateway's fixed contract.
type initiateResponse struct {
	Status           string `json:"status"`
	PaymentID        string `json:"payment_id"`
	RedirectURL      string `json:"redirect_url"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type statusResponse struct {
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

func (c *httpClient) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	fields := map[string]string{
		"merchant_id": c.merchantID,
		"amount":      req.Amount.StringFixed(2),
		"currency":    c.currency,
		"order_id":    req.OrderID,
		"description": req.Description,
		"salt":        uuid.NewString(),
		"lifetime":    strconv.Itoa(int(c.lifetime.Seconds())),
		"result_url":  c.callbackBaseURL + "/payments/result",
		"success_url": c.callbackBaseURL + "/payments/success",
		"failure_url": c.callbackBaseURL + "/payments/failure",
		"check_url":   c.callbackBaseURL + "/payments/check",
	}

	var resp initiateResponse
	if err := c.post(ctx, "/init_payment", fields, c.initiateTimeout, &resp); err != nil {
		return InitiateResult{}, err
	}
	if resp.Status != "ok" {
		return InitiateResult{}, &Error{Code: resp.ErrorCode, Description: resp.ErrorDescription}
	}
	return InitiateResult{
		RedirectURL:      resp.RedirectURL,
		GatewayPaymentID: resp.PaymentID,
	}, nil
}

func (c *httpClient) Status(ctx context.Context, gatewayPaymentID string) (PaymentStatus, error) {
	fields := map[string]string{
		"merchant_id": c.merchantID,
		"payment_id":  gatewayPaymentID,
		"salt":        uuid.NewString(),
	}

	var resp statusResponse
	if err := c.post(ctx, "/get_status", fields, c.healthTimeout, &resp); err != nil {
		return "", err
	}
	if resp.Status != "ok" {
		return "", &Error{Code: resp.ErrorCode, Description: resp.ErrorDescription}
	}

	switch resp.PaymentStatus {
	case "success":
		return PaymentSucceeded, nil
	case "failed", "error", "revoked":
		return PaymentFailed, nil
	default:
		// Anything else means the processor has not settled the payment;
		// the customer may still be on the payment page.
		return PaymentPending, nil
	}
}

// HealthCheck swallows transport errors and reports reachability only.
func (c *httpClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *httpClient) post(ctx context.Context, path string, fields map[string]string, timeout time.Duration, out any) error {
	sig, err := c.signer.Sign(fields)
	if err != nil {
		return err
	}

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set(signature.SigField, sig)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}
