package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lotpool/internal/pkg/errs"
	"lotpool/internal/usecase/commands"

	"github.com/cenkalti/backoff/v4"
)

// PaymentClient talks to the external payment provider over HTTP. Each call
// carries the reservation ID as the Idempotency-Key header so that a retried
// request, or a whole re-run of a reverted lot, lands on the same link instead
// of charging twice.
type PaymentClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewPaymentClient(baseURL, apiKey string, timeout time.Duration) *PaymentClient {
	return &PaymentClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type paymentLinkPayload struct {
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

type paymentLinkResponse struct {
	URL string `json:"url"`
}

func (c *PaymentClient) CreatePaymentLink(ctx context.Context, req commands.PaymentLinkRequest) (string, error) {
	payload := paymentLinkPayload{
		AmountCents: req.AmountCents,
		Currency:    "JPY",
		Metadata: map[string]string{
			"reservation_id":   req.ReservationID.String(),
			"lot_id":           req.LotID.String(),
			"buyer_id":         req.BuyerID.String(),
			"buyer_email":      req.BuyerEmail,
			"subtotal_cents":   fmt.Sprintf("%d", req.SubtotalCents),
			"shipping_cents":   fmt.Sprintf("%d", req.ShippingCents),
			"commission_cents": fmt.Sprintf("%d", req.CommissionCents),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errs.Wrap(err, "failed to encode payment link request")
	}

	var link string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/payment_links", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Idempotency-Key", req.ReservationID.String())

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("payment gateway returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("payment gateway rejected request with %d", resp.StatusCode))
		}

		var out paymentLinkResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(errs.Wrap(err, "failed to decode payment link response"))
		}
		link = out.URL
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return "", errs.Wrap(err, "payment link creation failed")
	}
	return link, nil
}

// retryPolicy bounds transient retries so one slow provider call cannot stall
// a whole lot for long.
func retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}
