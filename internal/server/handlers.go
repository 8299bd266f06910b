package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/idworker/internal/coordinator"
	"github.com/maauso/idworker/internal/roster"
)

// Roster is the coordinator state the handlers operate on.
type Roster interface {
	Inc(ctx context.Context, ipu string) (int64, error)
	Sync(ctx context.Context, ipu string, ids []int64) ([]int64, error)
	Entries(ctx context.Context) ([]*roster.Entry, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	roster    Roster
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(r Roster, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		roster:    r,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Inc handles GET /inc?ipu= requests. The response body is the decimal
// candidate id.
func (h *Handlers) Inc(w http.ResponseWriter, r *http.Request) {
	req := IncRequest{IPU: r.URL.Query().Get("ipu")}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	id, err := h.roster.Inc(r.Context(), req.IPU)
	if err != nil {
		h.writeRosterError(w, "inc", req.IPU, err)
		return
	}

	writeText(w, http.StatusOK, strconv.FormatInt(id, 10))
}

// Sync handles GET /sync?ipu=&ids= requests. The response body is the
// comma separated list of ids known for the identity, possibly empty.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ids, err := coordinator.ParseIDs(q.Get("ids"))
	if err != nil {
		h.logger.Warn("invalid ids parameter",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "ids must be a comma separated list of integers", "INVALID_IDS")
		return
	}

	req := SyncRequest{IPU: q.Get("ipu"), IDs: ids}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	known, err := h.roster.Sync(r.Context(), req.IPU, req.IDs)
	if err != nil {
		h.writeRosterError(w, "sync", req.IPU, err)
		return
	}

	writeText(w, http.StatusOK, coordinator.FormatIDs(known))
}

// Roster handles GET /roster requests.
func (h *Handlers) Roster(w http.ResponseWriter, r *http.Request) {
	entries, err := h.roster.Entries(r.Context())
	if err != nil {
		h.logger.Error("failed to list roster",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list roster", "ROSTER_UNAVAILABLE")
		return
	}

	resp := RosterResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, EntryResponse{
			IPU:       e.IPU,
			Next:      e.Next,
			IDs:       e.IDs,
			UpdatedAt: e.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) writeRosterError(w http.ResponseWriter, op, ipu string, err error) {
	if errors.Is(err, roster.ErrIdentityRequired) || errors.Is(err, roster.ErrInvalidWorkerID) {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	h.logger.Error("roster operation failed",
		slog.String("op", op),
		slog.String("ipu", ipu),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "roster operation failed", "ROSTER_UNAVAILABLE")
}

// writeText writes a plain text response.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Error("failed to write text response", slog.String("error", err.Error()))
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
