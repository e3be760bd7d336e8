package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/protocol"
	"qms/dispatch-service/internal/queueview"
	"qms/dispatch-service/internal/store"
)

// Admin is the slice of the ledger the admin API needs.
type Admin interface {
	ListOffices(ctx context.Context) ([]models.Office, error)
	CreateOffice(ctx context.Context, name, details string) (models.Office, error)
	Office(ctx context.Context, officeID int64) (models.Office, error)
	DeleteOffice(ctx context.Context, officeID int64) error
	ListTickets(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error)
	DailyCounts(ctx context.Context) ([]models.DailyCount, error)
}

type QueueView interface {
	Snapshot(ctx context.Context, officeID int64) (queueview.Snapshot, error)
}

type Handler struct {
	admin       Admin
	view        QueueView
	connections func() int
}

type createOfficeRequest struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

type queueResponse struct {
	OfficeID   int64           `json:"office_id"`
	OfficeName string          `json:"office_name"`
	Pending    []models.Ticket `json:"pending"`
	Status     string          `json:"status"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Options struct {
	// Connections reports live realtime connections for /healthz.
	Connections func() int
}

func NewHandler(admin Admin, view QueueView, options Options) *Handler {
	connections := options.Connections
	if connections == nil {
		connections = func() int { return 0 }
	}
	return &Handler{admin: admin, view: view, connections: connections}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/offices", h.handleOffices)
	mux.HandleFunc("/api/offices/", h.handleOffice)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/stats/daily", h.handleDailyStats)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": h.connections(),
	})
}

func (h *Handler) handleOffices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		offices, err := h.admin.ListOffices(r.Context())
		if err != nil {
			h.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, offices)
	case http.MethodPost:
		var req createOfficeRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Details = strings.TrimSpace(req.Details)
		if req.Name == "" {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "name is required")
			return
		}

		office, err := h.admin.CreateOffice(r.Context(), req.Name, req.Details)
		if err != nil {
			h.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, office)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleOffice serves /api/offices/{id} and /api/offices/{id}/queue.
func (h *Handler) handleOffice(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/offices/"), "/")
	parts := strings.Split(rest, "/")
	officeID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || officeID <= 0 {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "office id must be a positive integer")
		return
	}

	switch {
	case len(parts) == 1:
		h.handleOfficeByID(w, r, officeID)
	case len(parts) == 2 && parts[1] == "queue":
		h.handleOfficeQueue(w, r, officeID)
	default:
		writeError(w, requestIDFromRequest(r), http.StatusNotFound, "not_found", "route not found")
	}
}

func (h *Handler) handleOfficeByID(w http.ResponseWriter, r *http.Request, officeID int64) {
	switch r.Method {
	case http.MethodGet:
		office, err := h.admin.Office(r.Context(), officeID)
		if err != nil {
			h.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, office)
	case http.MethodDelete:
		if err := h.admin.DeleteOffice(r.Context(), officeID); err != nil {
			h.writeMappedError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleOfficeQueue(w http.ResponseWriter, r *http.Request, officeID int64) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.admin.Office(r.Context(), officeID); err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	snapshot, err := h.view.Snapshot(r.Context(), officeID)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queueResponse{
		OfficeID:   snapshot.OfficeID,
		OfficeName: snapshot.OfficeName,
		Pending:    snapshot.Pending,
		Status:     protocol.QueueStatus(snapshot),
	})
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	filter := store.TicketFilter{Status: strings.ToLower(strings.TrimSpace(query.Get("status")))}
	if filter.Status != "" && filter.Status != models.StatusPending && filter.Status != models.StatusServed {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "status must be pending or served")
		return
	}
	if raw := strings.TrimSpace(query.Get("office_id")); raw != "" {
		officeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || officeID <= 0 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "office_id must be a positive integer")
			return
		}
		filter.OfficeID = &officeID
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	tickets, err := h.admin.ListTickets(r.Context(), filter)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	counts, err := h.admin.DailyCounts(r.Context())
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handler) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	writeError(w, requestIDFromRequest(r), status, code, msg)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, ledger.ErrUnknownOffice), errors.Is(err, store.ErrOfficeNotFound):
		return http.StatusNotFound, "office_not_found", "no office found"
	case errors.Is(err, ledger.ErrDeleteConflict), errors.Is(err, store.ErrOfficeHasTickets):
		return http.StatusConflict, "office_has_tickets", "office still has tickets and cannot be deleted"
	case errors.Is(err, store.ErrInvalidOffice):
		return http.StatusBadRequest, "invalid_request", "name is required"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "ticket state does not allow this action"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}
