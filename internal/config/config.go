package config

import (
	"bufio"
	"encoding/base64"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// --- minimal .env loader (no extra deps) ---
func loadDotenv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // silently ignore if .env doesn't exist
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// KEY=VALUE (keep everything after first '=' as the value)
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k := strings.TrimSpace(parts[0])
		v := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		_ = os.Setenv(k, v)
	}
}

// ------------------------------------------------

type AppCfg struct{ Env, Port, BaseURL, CallbackBaseURL string }
type DBCfg struct{ DSN string }
type RedisCfg struct{ Addr string }

type SecurityCfg struct {
	AESKey          []byte
	RateLimitPerMin int
	AdminToken      string // guards gateway-config registration APIs
}

// PlatformMpesaCfg is the shared paybill used by landlords who keep the
// "platform" payment preference. These come from env only; they are never a
// fallback for a landlord config that exists but cannot be decrypted.
type PlatformMpesaCfg struct {
	Shortcode      string
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	Environment    string
}

type PaymentsCfg struct {
	AmountCeiling  int           // max initiation amount in whole KES
	GatewayTimeout time.Duration // bound on any outbound push/oauth call
	SweepEvery     time.Duration // stale-pending sweep poll interval
	SweepStaleAge  time.Duration // pending age before flagged for manual review
}

type NotifyCfg struct {
	SMSEndpoint string // outbound SMS dispatch URL; empty disables SMS
}

type Cfg struct {
	App      AppCfg
	DB       DBCfg
	Redis    RedisCfg
	Sec      SecurityCfg
	Platform PlatformMpesaCfg
	Payments PaymentsCfg
	Notify   NotifyCfg
}

func Load() Cfg {
	// 1) Load .env into process env (if file exists)
	loadDotenv(".env")

	// 2) Read from env via viper
	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", "sandbox")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("RATE_LIMIT_PER_MIN", 30)
	viper.SetDefault("TZ", "Africa/Nairobi")
	viper.SetDefault("ADMIN_TOKEN", "")
	viper.SetDefault("PLATFORM_MPESA_SHORTCODE", "174379")
	viper.SetDefault("PLATFORM_MPESA_ENV", "sandbox")
	viper.SetDefault("PAYMENT_AMOUNT_CEILING", 250000)
	viper.SetDefault("GATEWAY_TIMEOUT_SECONDS", 20)
	viper.SetDefault("SWEEP_INTERVAL_MINUTES", 15)
	viper.SetDefault("SWEEP_STALE_HOURS", 2)

	// Ensure TZ
	if tz := viper.GetString("TZ"); tz != "" {
		os.Setenv("TZ", tz)
	}

	// Decode AES key
	keyB64 := viper.GetString("AES_256_KEY_BASE64")
	key, err := base64.StdEncoding.DecodeString(keyB64)

	cfg := Cfg{
		App: AppCfg{
			Env:             viper.GetString("APP_ENV"),
			Port:            viper.GetString("APP_PORT"),
			BaseURL:         viper.GetString("APP_BASE_URL"),
			CallbackBaseURL: viper.GetString("CALLBACK_BASE_URL"),
		},
		DB:    DBCfg{DSN: viper.GetString("DB_DSN")},
		Redis: RedisCfg{Addr: viper.GetString("REDIS_ADDR")},
		Sec: SecurityCfg{
			AESKey:          key,
			RateLimitPerMin: viper.GetInt("RATE_LIMIT_PER_MIN"),
			AdminToken:      strings.TrimSpace(viper.GetString("ADMIN_TOKEN")),
		},
		Platform: PlatformMpesaCfg{
			Shortcode:      viper.GetString("PLATFORM_MPESA_SHORTCODE"),
			ConsumerKey:    viper.GetString("PLATFORM_MPESA_CONSUMER_KEY"),
			ConsumerSecret: viper.GetString("PLATFORM_MPESA_CONSUMER_SECRET"),
			Passkey:        viper.GetString("PLATFORM_MPESA_PASSKEY"),
			Environment:    viper.GetString("PLATFORM_MPESA_ENV"),
		},
		Payments: PaymentsCfg{
			AmountCeiling:  viper.GetInt("PAYMENT_AMOUNT_CEILING"),
			GatewayTimeout: time.Duration(viper.GetInt("GATEWAY_TIMEOUT_SECONDS")) * time.Second,
			SweepEvery:     time.Duration(viper.GetInt("SWEEP_INTERVAL_MINUTES")) * time.Minute,
			SweepStaleAge:  time.Duration(viper.GetInt("SWEEP_STALE_HOURS")) * time.Hour,
		},
		Notify: NotifyCfg{
			SMSEndpoint: viper.GetString("SMS_ENDPOINT"),
		},
	}

	// 3) Fail fast on required settings
	if cfg.DB.DSN == "" {
		log.Fatal().Msg("DB_DSN is required")
	}
	if err != nil || len(cfg.Sec.AESKey) != 32 {
		log.Fatal().Msg("AES_256_KEY_BASE64 must be a valid 32-byte base64 key")
	}

	_ = time.Local // TZ set via env
	return cfg
}

// HasPlatformMpesa reports whether the shared platform paybill is usable.
func (c Cfg) HasPlatformMpesa() bool {
	return c.Platform.Shortcode != "" && c.Platform.ConsumerKey != "" &&
		c.Platform.ConsumerSecret != "" && c.Platform.Passkey != ""
}
