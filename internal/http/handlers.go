package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"conti/internal/core"
	applog "conti/internal/log"
)

type accountResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	InitialBalance string  `json:"initial_balance"`
	InitialDate    string  `json:"initial_date"`
	CurrentBalance string  `json:"current_balance"`
	InterestRate   *string `json:"interest_rate,omitempty"`
	BillingDay     *int    `json:"billing_day,omitempty"`
}

type snapshotResponse struct {
	RecordedUntil string `json:"recorded_until"`
	Balance       string `json:"balance"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toAccountResponse(a core.Account) accountResponse {
	resp := accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Type:           string(a.Type),
		InitialBalance: a.InitialBalance.String(),
		InitialDate:    a.InitialDate.Format("2006-01-02"),
		CurrentBalance: a.CurrentBalance.String(),
		BillingDay:     a.BillingDay,
	}
	if a.InterestRate != nil {
		rate := a.InterestRate.String()
		resp.InterestRate = &rate
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func logReadError(r *http.Request, msg string, err error, fields applog.LogFields) {
	logger := applog.FromContext(r.Context())
	applog.NewStructuredLogger(logger).LogError(r.Context(), msg, err, applog.ComponentHTTP, applog.OpRead, fields)
}

func accountIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, ok := s.accountsCache.Get("all")
	if !ok {
		var err error
		accounts, err = s.accounts.ListAccounts(r.Context())
		if err != nil {
			logReadError(r, "List accounts failed", err, applog.NewFields())
			writeError(w, http.StatusInternalServerError, "could not list accounts")
			return
		}
		s.accountsCache.Set("all", accounts)
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	a, err := s.accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		logReadError(r, "Get account failed", err, applog.NewFields().WithAccount(id))
		writeError(w, http.StatusInternalServerError, "could not load account")
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(*a))
}

// handleBalanceHistory returns the account's monthly ledger, oldest first.
func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if _, err := s.accounts.GetAccount(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		logReadError(r, "Get account failed", err, applog.NewFields().WithAccount(id))
		writeError(w, http.StatusInternalServerError, "could not load account")
		return
	}

	key := strconv.FormatInt(id, 10)
	history, ok := s.historyCache.Get(key)
	if !ok {
		var err error
		history, err = s.accounts.BalanceHistory(r.Context(), id)
		if err != nil {
			logReadError(r, "Balance history failed", err, applog.NewFields().WithAccount(id))
			writeError(w, http.StatusInternalServerError, "could not load balance history")
			return
		}
		s.historyCache.Set(key, history)
	}

	resp := make([]snapshotResponse, 0, len(history))
	for _, snap := range history {
		resp = append(resp, snapshotResponse{
			RecordedUntil: snap.RecordedUntil.Format("2006-01-02"),
			Balance:       snap.Balance.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
