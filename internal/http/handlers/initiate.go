package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rentledger/internal/auth"
	"rentledger/internal/initiate"

	"github.com/rs/zerolog/log"
)

type initiateReq struct {
	Phone       string `json:"phone"`
	Amount      int    `json:"amount"`
	AccountRef  string `json:"accountReference,omitempty"`
	Description string `json:"transactionDesc,omitempty"`
	InvoiceID   int64  `json:"invoiceId,omitempty"`
	PaymentType string `json:"paymentType"`
	DryRun      bool   `json:"dryRun,omitempty"`
}

// initiateData mirrors the Daraja field names callers already integrate
// against, regardless of which rail actually served the push.
type initiateData struct {
	CheckoutRequestID   string `json:"CheckoutRequestID,omitempty"`
	MerchantRequestID   string `json:"MerchantRequestID,omitempty"`
	ResponseDescription string `json:"ResponseDescription,omitempty"`
	BusinessShortCode   string `json:"BusinessShortCode,omitempty"`
	CustomerMessage     string `json:"CustomerMessage,omitempty"`
	Reference           string `json:"Reference"`
	Gateway             string `json:"Gateway"`
	DryRun              bool   `json:"DryRun,omitempty"`
}

func InitiatePayment(svc *initiate.Service, gatewayTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.ActorFrom(r.Context())
		if !ok {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		var in initiateReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "bad json"})
			return
		}

		// Bounded context for the outbound gateway call.
		ctx, cancel := context.WithTimeout(r.Context(), gatewayTimeout)
		defer cancel()

		res, err := svc.Initiate(ctx, actor, initiate.Request{
			Purpose:     initiate.ParsePurpose(in.PaymentType),
			InvoiceID:   in.InvoiceID,
			Phone:       in.Phone,
			Amount:      in.Amount,
			AccountRef:  in.AccountRef,
			Description: in.Description,
			DryRun:      in.DryRun,
		})
		if err != nil {
			log.Warn().Err(err).Int64("user_id", actor.UserID).
				Int64("invoice_id", in.InvoiceID).Str("payment_type", in.PaymentType).
				Msg("initiation rejected")
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": initiateData{
				CheckoutRequestID:   res.CorrelationID,
				MerchantRequestID:   res.MerchantRequestID,
				ResponseDescription: res.Description,
				BusinessShortCode:   res.Shortcode,
				CustomerMessage:     res.CustomerMsg,
				Reference:           res.Reference,
				Gateway:             string(res.Gateway),
				DryRun:              res.DryRun,
			},
		})
	}
}
