package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/store/repositories"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type saveConfigReq struct {
	LandlordID  int64             `json:"landlordId"`
	Kind        string            `json:"kind"`
	Shortcode   string            `json:"shortcode"`
	Environment string            `json:"environment"`
	Verified    bool              `json:"verified"`
	Credentials map[string]string `json:"credentials"` // plaintext in, encrypted at rest
}

// SaveGatewayConfig registers or replaces a landlord's gateway config.
// Plaintext credentials arrive over the admin channel and are sealed with
// the service key before they ever hit the database.
func SaveGatewayConfig(configs repositories.GatewayConfigRepository, aesKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in saveConfigReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		cfg, err := gatewayconfig.New(in.LandlordID, gatewayconfig.Kind(in.Kind),
			in.Shortcode, gatewayconfig.Environment(in.Environment))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg.Verified = in.Verified

		for name, value := range in.Credentials {
			if value == "" {
				continue
			}
			if err := cfg.SetEncryptedField(name, value, aesKey); err != nil {
				log.Error().Err(err).Str("field", name).Msg("credential encryption failed")
				http.Error(w, "encryption failed", http.StatusInternalServerError)
				return
			}
		}

		if err := configs.Save(r.Context(), cfg); err != nil {
			log.Error().Err(err).Int64("landlord_id", in.LandlordID).Msg("gateway config save failed")
			http.Error(w, "save failed", http.StatusInternalServerError)
			return
		}

		log.Info().Int64("config_id", cfg.ID).Int64("landlord_id", cfg.LandlordID).
			Str("kind", string(cfg.Kind)).Msg("gateway config saved")
		writeJSON(w, http.StatusCreated, map[string]any{"id": cfg.ID})
	}
}

type configItem struct {
	ID          int64    `json:"id"`
	Kind        string   `json:"kind"`
	Shortcode   string   `json:"shortcode"`
	Environment string   `json:"environment"`
	Active      bool     `json:"active"`
	Verified    bool     `json:"verified"`
	Fields      []string `json:"fields"` // names only, never values
}

// ListGatewayConfigs returns a landlord's configs with credential field
// names but never the values, encrypted or not.
func ListGatewayConfigs(configs repositories.GatewayConfigRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		landlordID, err := strconv.ParseInt(chi.URLParam(r, "landlordID"), 10, 64)
		if err != nil {
			http.Error(w, "bad landlord id", http.StatusBadRequest)
			return
		}
		rows, err := configs.ListByLandlord(r.Context(), landlordID)
		if err != nil {
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		out := make([]configItem, 0, len(rows))
		for _, c := range rows {
			item := configItem{
				ID:          c.ID,
				Kind:        string(c.Kind),
				Shortcode:   c.Shortcode,
				Environment: string(c.Environment),
				Active:      c.Active,
				Verified:    c.Verified,
			}
			for name := range c.EncryptedFields {
				item.Fields = append(item.Fields, name)
			}
			out = append(out, item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out})
	}
}
