package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"zelar/internal/core"
	"zelar/internal/ledger"
	"zelar/internal/reports"
	"zelar/internal/services"
)

type transactionRequest struct {
	User          string `json:"user"`
	Category      string `json:"category"`
	Amount        string `json:"amount"`
	Origin        string `json:"origin"`
	Timestamp     string `json:"timestamp"`
	Description   string `json:"description"`
	AttachmentRef string `json:"attachment_ref"`
}

type transactionResponse struct {
	ID            string  `json:"id"`
	User          string  `json:"user"`
	Category      string  `json:"category"`
	Amount        float64 `json:"amount"`
	Origin        string  `json:"origin"`
	Timestamp     string  `json:"timestamp"`
	Description   string  `json:"description,omitempty"`
	AttachmentRef string  `json:"attachment_ref,omitempty"`
	SessionTag    *string `json:"session_tag,omitempty"`
}

type balanceResponse struct {
	User     string  `json:"user"`
	Own      float64 `json:"own"`
	Borrowed float64 `json:"borrowed"`
	Total    float64 `json:"total"`
}

type sessionStatusResponse struct {
	User             string  `json:"user"`
	Open             bool    `json:"open"`
	OpenedOn         *string `json:"opened_on,omitempty"`
	DaysOpen         int     `json:"days_open"`
	ProjectedCloseOn *string `json:"projected_close_on,omitempty"`
	Severity         string  `json:"severity"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	created, err := s.ledger.AddTransaction(r.Context(), services.AddTransactionInput{
		User:          req.User,
		Category:      core.Category(req.Category),
		RawAmount:     req.Amount,
		Origin:        core.Origin(req.Origin),
		Timestamp:     ts,
		Description:   sanitizeInput(req.Description),
		AttachmentRef: strings.TrimSpace(req.AttachmentRef),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.invalidateUser(created.User)
	writeJSON(w, http.StatusCreated, toResponse(created))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))

	var (
		txs []core.Transaction
		err error
	)
	if user == "" {
		txs, err = s.reports.AllTransactions(r.Context())
	} else {
		txs, err = s.reports.Transactions(r.Context(), user)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Stores keep ascending order for the derivations; listings come back
	// newest first.
	out := make([]transactionResponse, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		out = append(out, toResponse(txs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	updated, err := s.ledger.EditTransaction(r.Context(), id, services.EditTransactionInput{
		Category:      core.Category(req.Category),
		RawAmount:     req.Amount,
		Timestamp:     ts,
		Description:   sanitizeInput(req.Description),
		AttachmentRef: strings.TrimSpace(req.AttachmentRef),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.invalidateUser(updated.User)
	writeJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	deleted, err := s.ledger.DeleteTransaction(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.invalidateUser(deleted.User)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user query parameter is required"})
		return
	}

	if b, found := s.balanceCache.Get(user); found {
		writeJSON(w, http.StatusOK, balanceResponse{User: user, Own: b.Own, Borrowed: b.Borrowed, Total: b.Total})
		return
	}

	b, err := s.reports.Balances(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.balanceCache.Set(user, b)
	writeJSON(w, http.StatusOK, balanceResponse{User: user, Own: b.Own, Borrowed: b.Borrowed, Total: b.Total})
}

func (s *Server) handleBalanceAsOf(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user query parameter is required"})
		return
	}

	cutoff, err := time.ParseInLocation(core.DateLayout, r.URL.Query().Get("date"), time.UTC)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be in YYYY-MM-DD form"})
		return
	}

	balance, err := s.reports.BalanceAsOf(r.Context(), user, cutoff)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		User    string  `json:"user"`
		Date    string  `json:"date"`
		Balance float64 `json:"balance"`
	}{User: user, Date: cutoff.Format(core.DateLayout), Balance: balance})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user query parameter is required"})
		return
	}

	if status, found := s.statusCache.Get(user); found {
		writeJSON(w, http.StatusOK, toStatusResponse(status))
		return
	}

	status, err := s.reports.SessionStatus(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.statusCache.Set(user, status)
	writeJSON(w, http.StatusOK, toStatusResponse(status))
}

func (s *Server) handleAllSessionStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.reports.AllSessionStatuses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]sessionStatusResponse, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, toStatusResponse(status))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.reports.Users(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "transaction not found"})
	case isValidationError(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "url", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidCategory) ||
		errors.Is(err, core.ErrInvalidOrigin) ||
		errors.Is(err, core.ErrInvalidTimestamp) ||
		errors.Is(err, core.ErrEmptyUser)
}

func toResponse(t core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:            t.ID,
		User:          t.User,
		Category:      string(t.Category),
		Amount:        t.Amount,
		Origin:        string(t.Origin),
		Timestamp:     t.Timestamp.Format(core.TimeLayout),
		Description:   t.Description,
		AttachmentRef: t.AttachmentRef,
	}
	if t.SessionTag != nil {
		tag := t.SessionTag.Format(core.DateLayout)
		resp.SessionTag = &tag
	}
	return resp
}

func toStatusResponse(status reports.SessionStatus) sessionStatusResponse {
	resp := sessionStatusResponse{
		User:     status.User,
		Open:     status.Open,
		DaysOpen: status.DaysOpen,
		Severity: status.Severity,
	}
	if status.OpenedOn != nil {
		opened := status.OpenedOn.Format(core.DateLayout)
		resp.OpenedOn = &opened
	}
	if status.ProjectedCloseOn != nil {
		projected := status.ProjectedCloseOn.Format(core.DateLayout)
		resp.ProjectedCloseOn = &projected
	}
	return resp
}

// parseTimestamp accepts the canonical layout or a bare date; an empty value
// means now.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if ts, err := time.ParseInLocation(core.TimeLayout, raw, time.UTC); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation(core.DateLayout, raw, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, errors.New("timestamp must be 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'")
}

// sanitizeInput removes control characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
