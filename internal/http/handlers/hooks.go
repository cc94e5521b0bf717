// Webhook handlers. Contract with every rail: identify the landlord, verify
// whatever the rail lets us verify, hand the normalized event to the engine,
// then ACK 200 with {"status":"ok"}. A non-200 only means the callback was
// NOT durably recorded and the gateway should redeliver.
package handlers

import (
	"io"
	"net/http"

	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/gateway"
	"rentledger/internal/gateway/jenga"
	"rentledger/internal/gateway/kopokopo"
	"rentledger/internal/gateway/mpesa"
	"rentledger/internal/reconcile"
	"rentledger/internal/store/repositories"
	"rentledger/internal/vault"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func ackOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MpesaCallback handles Daraja STK result posts. The shortcode in the path
// identifies the landlord; the platform's shared shortcode maps to landlord
// zero and the engine recovers the landlord from the matched transaction.
func MpesaCallback(engine *reconcile.Engine, configs repositories.GatewayConfigRepository, platformShortcode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shortcode := chi.URLParam(r, "shortcode")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		evt, err := mpesa.ParseCallback(body)
		if err != nil {
			log.Warn().Err(err).Str("shortcode", shortcode).Msg("unparseable mpesa callback")
			// Nothing recognizable to record; acking stops pointless retries.
			ackOK(w)
			return
		}

		var landlordID int64
		if cfg, err := configs.FindByShortcode(r.Context(), gatewayconfig.KindMpesaCustom, shortcode); err == nil {
			landlordID = cfg.LandlordID
		} else if shortcode != platformShortcode {
			log.Warn().Str("shortcode", shortcode).Msg("mpesa callback for unknown shortcode")
		}
		if landlordID != 0 {
			evt.Gateway = gatewayconfig.KindMpesaCustom
		} else {
			evt.Gateway = gatewayconfig.KindMpesaPlatform
		}

		process(w, r, engine, landlordID, evt)
	}
}

// JengaIPN handles Jenga PAY instant payment notifications. The landlord is
// identified from the merchant bank account inside the payload, then the
// request must pass that landlord's Basic-Auth pair before anything is
// recorded. A 401 leaves no trace on purpose.
func JengaIPN(engine *reconcile.Engine, configs repositories.GatewayConfigRepository, resolver *vault.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		evt, account, err := jenga.ParseIPN(body)
		if err != nil {
			log.Warn().Err(err).Msg("unparseable jenga ipn")
			ackOK(w)
			return
		}

		cfg, err := configs.FindByShortcode(r.Context(), gatewayconfig.KindJenga, account)
		if err != nil {
			log.Warn().Str("account", account).Msg("jenga ipn for unknown merchant account")
			http.Error(w, "unknown merchant", http.StatusUnauthorized)
			return
		}

		if cfg.HasIPNCredentials() {
			cred, err := resolver.CredentialsFor(cfg)
			if err != nil {
				log.Error().Err(err).Int64("config_id", cfg.ID).Msg("ipn credentials undecryptable")
				http.Error(w, "verification unavailable", http.StatusInternalServerError)
				return
			}
			gotUser, gotPass, _ := r.BasicAuth()
			if !jenga.VerifyBasicAuth(gotUser, gotPass, cred.IPNUsername, cred.IPNPassword) {
				log.Warn().Int64("landlord_id", cfg.LandlordID).Msg("jenga ipn auth failed")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		process(w, r, engine, cfg.LandlordID, evt)
	}
}

// KopoKopoWebhook handles K2 buygoods webhooks, verified by the HMAC-SHA256
// signature header keyed with the landlord's API secret.
func KopoKopoWebhook(engine *reconcile.Engine, configs repositories.GatewayConfigRepository, resolver *vault.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		evt, till, err := kopokopo.ParseWebhook(body)
		if err != nil {
			log.Warn().Err(err).Msg("unparseable kopokopo webhook")
			ackOK(w)
			return
		}

		cfg, err := configs.FindByShortcode(r.Context(), gatewayconfig.KindKopoKopo, till)
		if err != nil {
			log.Warn().Str("till", till).Msg("kopokopo webhook for unknown till")
			http.Error(w, "unknown till", http.StatusUnauthorized)
			return
		}

		cred, err := resolver.CredentialsFor(cfg)
		if err != nil {
			log.Error().Err(err).Int64("config_id", cfg.ID).Msg("kopokopo credentials undecryptable")
			http.Error(w, "verification unavailable", http.StatusInternalServerError)
			return
		}
		sig := r.Header.Get("X-KopoKopo-Signature")
		if !kopokopo.VerifySignature(body, sig, cred.APISecret) {
			log.Warn().Int64("landlord_id", cfg.LandlordID).Msg("kopokopo signature mismatch")
			http.Error(w, "bad signature", http.StatusUnauthorized)
			return
		}

		process(w, r, engine, cfg.LandlordID, evt)
	}
}

func process(w http.ResponseWriter, r *http.Request, engine *reconcile.Engine, landlordID int64, evt gateway.CallbackEvent) {
	out, err := engine.Process(r.Context(), landlordID, evt)
	if err != nil {
		log.Error().Err(err).Str("gateway_ref", evt.UniqueRef()).
			Int64("landlord_id", landlordID).Msg("callback processing failed")
		// Not recorded; let the gateway redeliver.
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	log.Info().Str("status", string(out.Status)).Str("gateway_ref", evt.UniqueRef()).
		Int64("transaction_id", out.TransactionID).Str("matched_by", out.MatchedBy).
		Msg("callback processed")
	ackOK(w)
}
