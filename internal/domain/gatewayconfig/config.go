package gatewayconfig

import (
	"fmt"
	"strings"

	"rentledger/internal/crypto"
)

// Kind identifies the payment rail a configuration belongs to.
type Kind string

const (
	KindMpesaCustom   Kind = "mpesa_custom"   // landlord's own Daraja paybill
	KindMpesaPlatform Kind = "mpesa_platform" // shared platform paybill
	KindJenga         Kind = "jenga"          // Jenga PAY (Equity) rail
	KindKopoKopo      Kind = "kopokopo"
)

type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Config is a landlord's stored gateway configuration. Credential fields are
// kept encrypted at rest; the reconciliation engine never mutates a Config,
// only the explicit save operations do.
type Config struct {
	ID              int64
	LandlordID      int64
	Kind            Kind
	Shortcode       string // paybill / till / merchant account, per rail
	Environment     Environment
	Active          bool
	Verified        bool // credentials proven against the gateway
	EncryptedFields map[string]string
}

// Well-known encrypted field names.
const (
	FieldConsumerKey    = "consumer_key"
	FieldConsumerSecret = "consumer_secret"
	FieldPasskey        = "passkey"
	FieldAPIKey         = "api_key"
	FieldAPISecret      = "api_secret"
	FieldIPNUsername    = "ipn_username"
	FieldIPNPassword    = "ipn_password"
)

func New(landlordID int64, kind Kind, shortcode string, env Environment) (*Config, error) {
	if landlordID <= 0 {
		return nil, fmt.Errorf("invalid landlord ID: %d", landlordID)
	}
	if !ValidKind(kind) {
		return nil, fmt.Errorf("invalid gateway kind: %s", kind)
	}
	if strings.TrimSpace(shortcode) == "" {
		return nil, fmt.Errorf("shortcode is required")
	}
	if env != EnvSandbox && env != EnvProduction {
		return nil, fmt.Errorf("invalid environment: %s", env)
	}
	return &Config{
		LandlordID:      landlordID,
		Kind:            kind,
		Shortcode:       strings.TrimSpace(shortcode),
		Environment:     env,
		Active:          true,
		EncryptedFields: make(map[string]string),
	}, nil
}

func ValidKind(k Kind) bool {
	switch k {
	case KindMpesaCustom, KindMpesaPlatform, KindJenga, KindKopoKopo:
		return true
	}
	return false
}

// SetEncryptedField seals a credential value into the config.
func (c *Config) SetEncryptedField(name, value string, key []byte) error {
	if c.EncryptedFields == nil {
		c.EncryptedFields = make(map[string]string)
	}
	enc, err := crypto.EncryptString(key, value)
	if err != nil {
		return fmt.Errorf("encrypt field %s: %w", name, err)
	}
	c.EncryptedFields[name] = enc
	return nil
}

// DecryptField opens a stored credential value. A missing field returns
// ("", false, nil); a present-but-undecryptable field returns an error.
// Callers must fail closed on error rather than proceed with partial
// credentials.
func (c *Config) DecryptField(name string, key []byte) (string, bool, error) {
	enc, ok := c.EncryptedFields[name]
	if !ok || enc == "" {
		return "", false, nil
	}
	plain, err := crypto.DecryptString(key, enc)
	if err != nil {
		return "", true, fmt.Errorf("decrypt field %s: %w", name, err)
	}
	return plain, true, nil
}

// HasIPNCredentials reports whether callback Basic-Auth credentials exist.
func (c *Config) HasIPNCredentials() bool {
	return c.EncryptedFields[FieldIPNUsername] != "" && c.EncryptedFields[FieldIPNPassword] != ""
}

// Usable is the resolver's admission test for a landlord-owned config.
func (c *Config) Usable() bool {
	return c.Active && c.Verified
}
