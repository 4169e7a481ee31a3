// Package bookings is the HTTP client for the external booking ledger store.
package bookings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
)

// Ledger status vocabulary on the wire differs from the domain constants; the
// store predates this service.
var wireStatus = map[domain.BookingStatus]string{
	domain.BookingPending:         "Pending",
	domain.BookingAwaitingPayment: "Pending Payment",
	domain.BookingConfirmed:       "Booked",
	domain.BookingFailed:          "Failed",
	domain.BookingCancelled:       "Cancelled",
}

func fromWireStatus(s string) domain.BookingStatus {
	for k, v := range wireStatus {
		if v == s {
			return k
		}
	}
	return domain.BookingStatus(s)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type bookingDoc struct {
	ID      uuid.UUID `json:"id"`
	SpaceID uuid.UUID `json:"space_id"`
	UserID  uuid.UUID `json:"user_id"`
	Start   time.Time `json:"start_time"`
	End     time.Time `json:"end_time"`
	Amount  float64   `json:"total_amount"`
	Status  string    `json:"status"`
}

func (d bookingDoc) toDomain() domain.Booking {
	return domain.Booking{
		ID:      d.ID,
		SpaceID: d.SpaceID,
		UserID:  d.UserID,
		Start:   d.Start,
		End:     d.End,
		Amount:  d.Amount,
		Status:  fromWireStatus(d.Status),
	}
}

func (c *Client) Create(ctx context.Context, spaceID, userID uuid.UUID, start, end time.Time, amount float64) (*domain.Booking, error) {
	payload := map[string]interface{}{
		"space_id":     spaceID,
		"user_id":      userID,
		"start_time":   start.Format(time.RFC3339),
		"end_time":     end.Format(time.RFC3339),
		"total_amount": amount,
		"status":       wireStatus[domain.BookingAwaitingPayment],
	}
	var doc bookingDoc
	if err := c.do(ctx, http.MethodPost, "/bookings", payload, &doc); err != nil {
		return nil, err
	}
	b := doc.toDomain()
	return &b, nil
}

func (c *Client) SetStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) error {
	payload := map[string]string{"status": wireStatus[status]}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/bookings/%s/status", bookingID), payload, nil)
}

func (c *Client) Get(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	var doc bookingDoc
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/bookings/%s", bookingID), nil, &doc); err != nil {
		return nil, err
	}
	b := doc.toDomain()
	return &b, nil
}

func (c *Client) ListActiveForSpace(ctx context.Context, spaceID uuid.UUID) ([]domain.Booking, error) {
	var body struct {
		Bookings []bookingDoc `json:"bookings"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/bookings?space_id=%s", spaceID), nil, &body); err != nil {
		return nil, err
	}
	now := time.Now()
	var out []domain.Booking
	for _, d := range body.Bookings {
		b := d.toDomain()
		if b.Active(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, bookingID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/bookings/%s", bookingID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "booking ledger request")
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case res.StatusCode == http.StatusConflict:
		return domain.ErrConflict
	case res.StatusCode >= 400 && res.StatusCode < 500:
		return errors.Wrapf(domain.ErrInvalidInput, "booking ledger: status %d", res.StatusCode)
	case res.StatusCode >= 500:
		return errors.Newf("booking ledger: status %d", res.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
