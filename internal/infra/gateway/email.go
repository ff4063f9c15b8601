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

// EmailClient dispatches buyer notifications through the email provider's
// batch endpoint, chunked to the provider's per-call recipient limit.
type EmailClient struct {
	baseURL   string
	apiKey    string
	batchSize int
	http      *http.Client
}

func NewEmailClient(baseURL, apiKey string, batchSize int, timeout time.Duration) *EmailClient {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &EmailClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		batchSize: batchSize,
		http:      &http.Client{Timeout: timeout},
	}
}

type emailMessage struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars"`
}

type emailBatchPayload struct {
	Messages []emailMessage `json:"messages"`
}

func (c *EmailClient) SendBatch(ctx context.Context, msgs []commands.Notification) error {
	for start := 0; start < len(msgs); start += c.batchSize {
		end := min(start+c.batchSize, len(msgs))
		if err := c.sendChunk(ctx, msgs[start:end]); err != nil {
			return errs.Wrap(err, "failed to send notification batch")
		}
	}
	return nil
}

func (c *EmailClient) sendChunk(ctx context.Context, msgs []commands.Notification) error {
	payload := emailBatchPayload{Messages: make([]emailMessage, 0, len(msgs))}
	for _, m := range msgs {
		payload.Messages = append(payload.Messages, emailMessage{
			To:       m.Email,
			Template: "lot-closed-payment-request",
			Vars: map[string]string{
				"name":         m.Name,
				"product_name": m.ProductName,
				"total_cents":  fmt.Sprintf("%d", m.TotalCents),
				"payment_link": m.PaymentLink,
			},
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "failed to encode email batch")
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/messages/batch", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 500 {
			return fmt.Errorf("email provider returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("email provider rejected batch with %d", resp.StatusCode))
		}
		return nil
	}

	return backoff.Retry(operation, retryPolicy(ctx))
}
