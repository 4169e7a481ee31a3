package spaces_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlesNJoroge8822/space-bookings/internal/clients/spaces"
	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
)

func TestGet(t *testing.T) {
	id := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/spaces/"+id.String(), r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":             id,
			"name":           "Boardroom A",
			"price_per_hour": 10.0,
			"price_per_day":  150.0,
			"availability":   true,
		})
	}))
	defer srv.Close()

	c := spaces.NewClient(srv.URL, "tok")
	s, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Boardroom A", s.Name)
	assert.True(t, s.Available)
	assert.Equal(t, 10.0, s.Rate(domain.RateHourly))
	assert.Equal(t, 150.0, s.Rate(domain.RateDaily))
}

func TestSetAvailability(t *testing.T) {
	id := uuid.New()
	var got map[string]bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := spaces.NewClient(srv.URL, "tok")
	require.NoError(t, c.SetAvailability(context.Background(), id, false))
	assert.Equal(t, map[string]bool{"availability": false}, got)
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"spaces": []map[string]interface{}{
				{"id": uuid.New(), "name": "A", "availability": true},
				{"id": uuid.New(), "name": "B", "availability": false},
			},
		})
	}))
	defer srv.Close()

	c := spaces.NewClient(srv.URL, "")
	got, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[1].Available)
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := spaces.NewClient(srv.URL, "")
	_, err := c.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
