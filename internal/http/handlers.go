package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/CharlesNJoroge8822/space-bookings/internal/clients/spaces"
	"github.com/CharlesNJoroge8822/space-bookings/internal/config"
	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
	"github.com/CharlesNJoroge8822/space-bookings/internal/idempotency"
	"github.com/CharlesNJoroge8822/space-bookings/internal/orchestrator"
)

type Handlers struct {
	cfg     *config.Config
	orch    *orchestrator.Orchestrator
	catalog *spaces.Client
	idemp   *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, orch *orchestrator.Orchestrator, catalog *spaces.Client, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		cfg:     cfg,
		orch:    orch,
		catalog: catalog,
		idemp:   idemp,
	}
}

type attemptDoc struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	SpaceID   uuid.UUID `json:"space_id"`
	BookingID uuid.UUID `json:"booking_id,omitempty"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Warning   string    `json:"warning,omitempty"`
	Amount    float64   `json:"amount"`
	Start     string    `json:"start_time"`
	End       string    `json:"end_time"`
}

func toAttemptDoc(a *domain.ReservationAttempt) attemptDoc {
	return attemptDoc{
		AttemptID: a.ID,
		SpaceID:   a.SpaceID,
		BookingID: a.BookingID,
		State:     string(a.State),
		Reason:    string(a.Reason),
		Warning:   string(a.Warning),
		Amount:    a.Amount,
		Start:     a.Start.Format(time.RFC3339),
		End:       a.End.Format(time.RFC3339),
	}
}

func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		SpaceID  uuid.UUID `json:"space_id"`
		UserID   uuid.UUID `json:"user_id"`
		Phone    string    `json:"phone_number"`
		Start    time.Time `json:"start_time"`
		Duration int       `json:"duration"`
		RateUnit string    `json:"rate_unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	attempt, err := h.orch.Reserve(r.Context(), orchestrator.ReserveRequest{
		SpaceID:  req.SpaceID,
		UserID:   req.UserID,
		Phone:    req.Phone,
		Start:    req.Start,
		Duration: req.Duration,
		Unit:     domain.RateUnit(req.RateUnit),
	})
	status := http.StatusAccepted
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidChannel):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrSpaceUnavailable), errors.Is(err, domain.ErrDuplicateInFlight):
		// the attempt carries the machine-readable reason
		status = http.StatusConflict
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, _ := json.Marshal(toAttemptDoc(attempt))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: data})
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	attempt, err := h.orch.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "reservation not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAttemptDoc(attempt))
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.orch.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "no cancellable reservation", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) ListSpaces(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	type spaceDoc struct {
		ID           uuid.UUID `json:"id"`
		Name         string    `json:"name"`
		Location     string    `json:"location"`
		PricePerHour float64   `json:"price_per_hour"`
		PricePerDay  float64   `json:"price_per_day"`
		Availability bool      `json:"availability"`
	}
	out := make([]spaceDoc, 0, len(list))
	for _, s := range list {
		out = append(out, spaceDoc{
			ID:           s.ID,
			Name:         s.Name,
			Location:     s.Location,
			PricePerHour: s.PricePerHour,
			PricePerDay:  s.PricePerDay,
			Availability: s.Available,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"spaces": out})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
