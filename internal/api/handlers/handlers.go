// Package handlers exposes the sync layer over HTTP for the UI screens.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkov/moneyflow/internal/api/middleware"
	"github.com/avolkov/moneyflow/internal/domain"
	"github.com/avolkov/moneyflow/internal/remote"
	"github.com/avolkov/moneyflow/internal/txsync"
)

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	svc *txsync.Service
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *txsync.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	force := r.URL.Query().Get("force") != "false"

	txs, err := h.svc.FetchTransactions(r.Context(), filter, pageSize, force)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch transactions")
		writeStoreError(w, err, "Failed to fetch transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
		"has_more":     h.svc.HasMore(),
	})
}

// FetchMore handles POST /api/transactions/more
func (h *TransactionsHandler) FetchMore(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	if err := h.svc.FetchMoreTransactions(r.Context(), filter, pageSize); err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch next page")
		writeStoreError(w, err, "Failed to fetch next page")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": h.svc.Transactions(),
		"has_more":     h.svc.HasMore(),
	})
}

// GetTransaction handles GET /api/transactions/:id
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	force := r.URL.Query().Get("force") == "true"

	tx, err := h.svc.GetTransactionByID(r.Context(), id, force)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get transaction")
		writeStoreError(w, err, "Failed to get transaction")
		return
	}
	if tx == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var draft domain.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if draft.Amount.IsNegative() {
		middleware.WriteError(w, http.StatusBadRequest, "Amount must not be negative")
		return
	}

	tx, err := h.svc.AddTransaction(r.Context(), draft)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create transaction")
		writeStoreError(w, err, "Failed to create transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /api/transactions/:id
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	var patch domain.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.Amount != nil && patch.Amount.IsNegative() {
		middleware.WriteError(w, http.StatusBadRequest, "Amount must not be negative")
		return
	}

	if err := h.svc.UpdateTransaction(r.Context(), id, patch); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to update transaction")
		writeStoreError(w, err, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// DeleteTransaction handles DELETE /api/transactions/:id
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.DeleteTransaction(r.Context(), id); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to delete transaction")
		writeStoreError(w, err, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Summary handles GET /api/summary
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.svc.FinancialSummary())
}

// State handles GET /api/state — the readable flags screens bind to.
func (h *TransactionsHandler) State(w http.ResponseWriter, r *http.Request) {
	var errMsg string
	if err := h.svc.Err(); err != nil {
		errMsg = err.Error()
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"loading":     h.svc.Loading(),
		"error":       errMsg,
		"has_more":    h.svc.HasMore(),
		"initialized": h.svc.Initialized(),
	})
}

// writeStoreError maps the store error taxonomy onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error, message string) {
	switch remote.KindOf(err) {
	case remote.KindPermission:
		middleware.WriteError(w, http.StatusForbidden, "Not permitted")
	case remote.KindNotFound:
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	case remote.KindNetwork:
		middleware.WriteError(w, http.StatusServiceUnavailable, message)
	default:
		middleware.WriteError(w, http.StatusInternalServerError, message)
	}
}

// parseFilter builds a domain filter from query parameters. Every parameter
// is optional.
func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	var f domain.Filter

	if kindStr := q.Get("kind"); kindStr != "" {
		kind := domain.ParseKind(kindStr)
		f.Kind = &kind
	}
	if fromStr := q.Get("from"); fromStr != "" {
		from, err := parseDate(fromStr)
		if err != nil {
			return f, err
		}
		f.From = &from
	}
	if toStr := q.Get("to"); toStr != "" {
		to, err := parseDate(toStr)
		if err != nil {
			return f, err
		}
		f.To = &to
	}
	if cats := q.Get("categories"); cats != "" {
		f.CategoryIDs = strings.Split(cats, ",")
	}
	f.Search = q.Get("q")

	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
