package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storefront-payments/internal/config"
	"storefront-payments/internal/signature"
)

const testSecret = "test-secret"

func testConfig(baseURL string) config.Config {
	return config.Config{
		MerchantID:      "m-100",
		SecretKey:       testSecret,
		GatewayBaseURL:  baseURL,
		CallbackBaseURL: "https://shop.example.com",
		Currency:        "KGS",
		PaymentLifetime: 30 * time.Minute,
		InitiateTimeout: 2 * time.Second,
		HealthTimeout:   time.Second,
	}
}

func newTestClient(baseURL string) Client {
	return NewClient(testConfig(baseURL), signature.NewCodec(testSecret))
}

func TestInitiateSignsAndParses(t *testing.T) {
	t.Parallel()

	codec := signature.NewCodec(testSecret)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/init_payment" {
			t.Errorf("path = %s, want /init_payment", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}

		fields := make(map[string]string)
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		sig := fields[signature.SigField]
		delete(fields, signature.SigField)
		if !codec.Verify(fields, sig) {
			t.Error("request signature did not verify")
		}

		for k, want := range map[string]string{
			"merchant_id": "m-100",
			"amount":      "1000.00",
			"currency":    "KGS",
			"order_id":    "ord-1",
			"lifetime":    "1800",
			"result_url":  "https://shop.example.com/payments/result",
			"check_url":   "https://shop.example.com/payments/check",
		} {
			if got := fields[k]; got != want {
				t.Errorf("field %s = %q, want %q", k, got, want)
			}
		}
		if fields["salt"] == "" {
			t.Error("salt is empty")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","payment_id":"PS-778","redirect_url":"https://pay.example.com/PS-778"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	res, err := client.Initiate(context.Background(), InitiateRequest{
		OrderID:     "ord-1",
		Amount:      decimal.RequireFromString("1000"),
		Description: "order ord-1",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.GatewayPaymentID != "PS-778" {
		t.Errorf("GatewayPaymentID = %s, want PS-778", res.GatewayPaymentID)
	}
	if res.RedirectURL != "https://pay.example.com/PS-778" {
		t.Errorf("RedirectURL = %s", res.RedirectURL)
	}
}

func TestInitiateGatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","error_code":"101","error_description":"invalid merchant"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Initiate(context.Background(), InitiateRequest{
		OrderID: "ord-1",
		Amount:  decimal.RequireFromString("10"),
	})

	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error = %v, want *gateway.Error", err)
	}
	if gerr.Code != "101" || gerr.Description != "invalid merchant" {
		t.Fatalf("unexpected gateway error: %+v", gerr)
	}
}

func TestInitiateTimeoutIsUnavailable(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	cfg := testConfig(srv.URL)
	cfg.InitiateTimeout = 50 * time.Millisecond
	client := NewClient(cfg, signature.NewCodec(testSecret))

	_, err := client.Initiate(context.Background(), InitiateRequest{
		OrderID: "ord-1",
		Amount:  decimal.RequireFromString("10"),
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    PaymentStatus
		wantErr bool
	}{
		{"settled", `{"status":"ok","payment_status":"success"}`, PaymentSucceeded, false},
		{"failed", `{"status":"ok","payment_status":"failed"}`, PaymentFailed, false},
		{"revoked", `{"status":"ok","payment_status":"revoked"}`, PaymentFailed, false},
		// An unsettled payment must stay distinguishable from a dead one:
		// the customer may still be on the payment page.
		{"pending", `{"status":"ok","payment_status":"pending"}`, PaymentPending, false},
		{"unknown status is not final", `{"status":"ok","payment_status":"waiting"}`, PaymentPending, false},
		{"gateway error", `{"status":"error","error_code":"404","error_description":"unknown payment"}`, "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/get_status" {
					t.Errorf("path = %s, want /get_status", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			status, err := newTestClient(srv.URL).Status(context.Background(), "PS-778")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if status != tt.want {
				t.Fatalf("status = %s, want %s", status, tt.want)
			}
		})
	}
}

func TestPaymentStatusFinal(t *testing.T) {
	t.Parallel()

	if !PaymentSucceeded.Final() || !PaymentFailed.Final() {
		t.Fatal("settled statuses must be final")
	}
	if PaymentPending.Final() {
		t.Fatal("pending must not be final")
	}
}

func TestHealthCheckSwallowsErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	client := newTestClient(srv.URL)
	if !client.HealthCheck(context.Background()) {
		t.Fatal("HealthCheck = false against a live server")
	}

	srv.Close()
	if client.HealthCheck(context.Background()) {
		t.Fatal("HealthCheck = true against a dead server")
	}
}
