// Package spaces is the HTTP client for the external space catalog store.
package spaces

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

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a catalog client. The bearer token is fixed at
// construction; nothing in the flow reads ambient credential state.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type spaceDoc struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	PricePerHour float64   `json:"price_per_hour"`
	PricePerDay  float64   `json:"price_per_day"`
	Availability bool      `json:"availability"`
	ImageURL     string    `json:"image_url"`
}

func (d spaceDoc) toDomain() domain.Space {
	return domain.Space{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Location:     d.Location,
		PricePerHour: d.PricePerHour,
		PricePerDay:  d.PricePerDay,
		Available:    d.Availability,
		ImageURL:     d.ImageURL,
	}
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*domain.Space, error) {
	var doc spaceDoc
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/spaces/%s", id), nil, &doc); err != nil {
		return nil, err
	}
	s := doc.toDomain()
	return &s, nil
}

func (c *Client) List(ctx context.Context) ([]domain.Space, error) {
	var body struct {
		Spaces []spaceDoc `json:"spaces"`
	}
	if err := c.do(ctx, http.MethodGet, "/spaces", nil, &body); err != nil {
		return nil, err
	}
	out := make([]domain.Space, 0, len(body.Spaces))
	for _, d := range body.Spaces {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (c *Client) GetAvailability(ctx context.Context, id uuid.UUID) (bool, error) {
	s, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.Available, nil
}

func (c *Client) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	payload := map[string]bool{"availability": available}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/spaces/%s", id), payload, nil)
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
		return errors.Wrap(err, "space catalog request")
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case res.StatusCode >= 400 && res.StatusCode < 500:
		return errors.Wrapf(domain.ErrInvalidInput, "space catalog: status %d", res.StatusCode)
	case res.StatusCode >= 500:
		return errors.Newf("space catalog: status %d", res.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
