// Package daraja is the client for the M-Pesa STK push gateway: push-payment
// initiation plus a read-only status lookup. Settlement itself happens on the
// provider side after the payer approves the prompt on their phone.
package daraja

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Push issues the STK push. The gateway takes the phone number as a bare
// integer and the booking id as order reference, and answers with its own
// transaction id.
func (c *Client) Push(ctx context.Context, phone string, amount float64, orderRef uuid.UUID) (string, error) {
	msisdn, err := strconv.ParseInt(phone, 10, 64)
	if err != nil {
		return "", errors.Wrap(domain.ErrInvalidChannel, phone)
	}

	payload := map[string]interface{}{
		"phone_number": msisdn,
		"amount":       amount,
		"order_id":     orderRef,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stkpush", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "stk push request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 && res.StatusCode < 500 {
		return "", errors.Wrapf(domain.ErrInvalidInput, "stk push: status %d", res.StatusCode)
	}
	if res.StatusCode >= 500 {
		return "", errors.Newf("stk push: status %d", res.StatusCode)
	}

	var body struct {
		TransactionID string `json:"mpesa_transaction_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.TransactionID == "" {
		return "", errors.New("stk push: missing transaction id")
	}
	return body.TransactionID, nil
}

// Status looks up the provider-side state of a transaction. Safe to call
// repeatedly; the gateway answers from its settlement record.
func (c *Client) Status(ctx context.Context, transactionID string) (domain.PaymentState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/payments/%s", c.baseURL, transactionID), nil)
	if err != nil {
		return "", err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "payment status request")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return "", domain.ErrNotFound
	}
	if res.StatusCode >= 400 {
		return "", errors.Newf("payment status: status %d", res.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}

	switch body.Status {
	case "Confirmed":
		return domain.PaymentConfirmed, nil
	case "Failed":
		return domain.PaymentFailed, nil
	default:
		return domain.PaymentProcessing, nil
	}
}

// Delete removes a settled payment record, used by administrative cleanup.
func (c *Client) Delete(ctx context.Context, transactionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/payments/%s", c.baseURL, transactionID), nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "payment delete request")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if res.StatusCode >= 400 {
		return errors.Newf("payment delete: status %d", res.StatusCode)
	}
	return nil
}
