package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

type movementRequest struct {
	Amount int64       `json:"amount"`
	Reason string      `json:"reason"`
	Kind   ledger.Kind `json:"kind"`
}

type adjustRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type balanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
}

// ListAccountsHandler handles GET /accounts
func (h *HandlerProvider) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Ledger.Accounts())
}

// GetBalanceHandler handles GET /accounts/{accountId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	h.writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: accountID,
		Balance:   h.svc.Ledger.Balance(accountID),
	})
}

// HistoryHandler handles GET /accounts/{accountId}/transactions?limit=N,
// newest first.
func (h *HandlerProvider) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]ledger.Transaction, 0)
	for txn := range h.svc.Ledger.History(chi.URLParam(r, "accountId"), limit) {
		out = append(out, txn)
	}

	h.writeJSON(w, http.StatusOK, out)
}

// CreditHandler handles POST /accounts/{accountId}/credit. Kind defaults
// to earned.
func (h *HandlerProvider) CreditHandler(w http.ResponseWriter, r *http.Request) {
	var req movementRequest

	err := decodeJSON(w, r, &req, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if req.Kind == "" {
		req.Kind = ledger.KindEarned
	}

	txn, err := h.svc.Ledger.Credit(chi.URLParam(r, "accountId"), req.Amount, req.Reason, req.Kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, txn)
}

// DebitHandler handles POST /accounts/{accountId}/debit. Kind defaults to
// spent.
func (h *HandlerProvider) DebitHandler(w http.ResponseWriter, r *http.Request) {
	var req movementRequest

	err := decodeJSON(w, r, &req, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if req.Kind == "" {
		req.Kind = ledger.KindSpent
	}

	txn, err := h.svc.Ledger.Debit(chi.URLParam(r, "accountId"), req.Amount, req.Reason, req.Kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, txn)
}

// AdjustHandler handles POST /accounts/{accountId}/adjust with a signed
// amount.
func (h *HandlerProvider) AdjustHandler(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest

	err := decodeJSON(w, r, &req, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	txn, err := h.svc.Ledger.Adjust(chi.URLParam(r, "accountId"), req.Amount, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, txn)
}
