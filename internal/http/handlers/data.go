package handlers

import (
	"net/http"
	"strconv"
	"time"

	"rentledger/internal/auth"
	"rentledger/internal/store/repositories"
)

func pageParams(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return
}

// landlordScope returns the landlord whose rows the caller may read. Admins
// may pass landlordId explicitly; everyone else is pinned to their own.
func landlordScope(r *http.Request) (int64, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		return 0, false
	}
	if actor.IsAdmin() {
		if v, err := strconv.ParseInt(r.URL.Query().Get("landlordId"), 10, 64); err == nil {
			return v, true
		}
		return 0, true
	}
	if actor.LandlordID == 0 {
		return 0, false
	}
	return actor.LandlordID, true
}

type transactionItem struct {
	ID            int64             `json:"id"`
	CorrelationID string            `json:"correlationId"`
	GatewayRef    string            `json:"gatewayRef,omitempty"`
	Gateway       string            `json:"gateway"`
	Phone         string            `json:"phone,omitempty"`
	Amount        int               `json:"amount"`
	InvoiceID     int64             `json:"invoiceId,omitempty"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func ListTransactions(trx repositories.TransactionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		landlordID, ok := landlordScope(r)
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		limit, offset := pageParams(r)
		rows, err := trx.List(r.Context(), landlordID, limit, offset)
		if err != nil {
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		out := make([]transactionItem, 0, len(rows))
		for _, t := range rows {
			out = append(out, transactionItem{
				ID:            t.ID,
				CorrelationID: t.CorrelationID,
				GatewayRef:    t.GatewayRef,
				Gateway:       t.Gateway,
				Phone:         t.Phone,
				Amount:        t.Amount,
				InvoiceID:     t.InvoiceID,
				Status:        string(t.Status),
				Metadata:      t.Metadata,
				CreatedAt:     t.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out})
	}
}

type paymentItem struct {
	ID             int64     `json:"id"`
	InvoiceID      int64     `json:"invoiceId"`
	Amount         int       `json:"amount"`
	Method         string    `json:"method"`
	GatewayReceipt string    `json:"gatewayReceipt"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func ListPayments(payments repositories.PaymentRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		landlordID, ok := landlordScope(r)
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		limit, offset := pageParams(r)
		rows, err := payments.List(r.Context(), landlordID, limit, offset)
		if err != nil {
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		out := make([]paymentItem, 0, len(rows))
		for _, p := range rows {
			out = append(out, paymentItem{
				ID:             p.ID,
				InvoiceID:      p.InvoiceID,
				Amount:         p.Amount,
				Method:         p.Method,
				GatewayReceipt: p.GatewayReceipt,
				Notes:          p.Notes,
				CreatedAt:      p.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out})
	}
}
