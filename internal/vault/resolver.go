// Package vault resolves which gateway credentials apply to a landlord or
// invoice. Precedence is an explicit, ordered list of named strategies; the
// first hit wins. A config that exists but cannot be decrypted fails the
// whole resolution; the resolver never proceeds with partial credentials
// and never substitutes the platform default for a broken landlord config.
package vault

import (
	"context"
	"errors"
	"fmt"

	"rentledger/internal/apperr"
	"rentledger/internal/config"
	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/domain/landlord"
	"rentledger/internal/gateway"
	"rentledger/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

type Resolver struct {
	configs   repositories.GatewayConfigRepository
	landlords repositories.LandlordRepository
	invoices  repositories.InvoiceRepository
	key       []byte
	platform  config.PlatformMpesaCfg
	hasShared bool
}

func NewResolver(
	configs repositories.GatewayConfigRepository,
	landlords repositories.LandlordRepository,
	invoices repositories.InvoiceRepository,
	cfg config.Cfg,
) *Resolver {
	return &Resolver{
		configs:   configs,
		landlords: landlords,
		invoices:  invoices,
		key:       cfg.Sec.AESKey,
		platform:  cfg.Platform,
		hasShared: cfg.HasPlatformMpesa(),
	}
}

// strategy is one step of the precedence chain. Returning (nil, nil) means
// "not found here, try the next"; an error aborts the chain.
type strategy struct {
	name    string
	resolve func(ctx context.Context, ll *landlord.Landlord) (*gateway.Credentials, error)
}

func (r *Resolver) chain() []strategy {
	return []strategy{
		{"own-mpesa", r.ownMpesa},
		{"platform-default", r.platformDefault},
		{"jenga", r.jengaRail},
	}
}

// ForLandlord resolves the credentials to use for a landlord's incoming
// payments.
func (r *Resolver) ForLandlord(ctx context.Context, landlordID int64) (*gateway.Credentials, error) {
	ll, err := r.landlords.FindByID(ctx, landlordID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotConfigured(fmt.Sprintf("landlord %d not found", landlordID))
		}
		return nil, apperr.Wrap(apperr.KindTransient, "landlord lookup", err)
	}
	if !ll.IsActive() {
		return nil, apperr.Validationf("landlord %d is suspended", landlordID)
	}

	for _, s := range r.chain() {
		cred, err := s.resolve(ctx, ll)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			log.Debug().Int64("landlord_id", landlordID).Str("strategy", s.name).
				Str("kind", string(cred.Kind)).Msg("gateway credentials resolved")
			return cred, nil
		}
	}
	return nil, apperr.NotConfigured(fmt.Sprintf("no payment gateway configured for landlord %d", landlordID))
}

// ForInvoice derives the landlord through invoice -> lease -> unit ->
// property -> owner, then resolves as for the landlord.
func (r *Resolver) ForInvoice(ctx context.Context, invoiceID int64) (*gateway.Credentials, error) {
	parties, err := r.invoices.Parties(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Validationf("invoice %d not found", invoiceID)
		}
		return nil, apperr.Wrap(apperr.KindTransient, "invoice party lookup", err)
	}
	return r.ForLandlord(ctx, parties.LandlordID)
}

// Platform returns the shared platform paybill, used directly for
// subscription payments which settle to the platform rather than a landlord.
func (r *Resolver) Platform() (*gateway.Credentials, error) {
	if !r.hasShared {
		return nil, apperr.NotConfigured("platform M-Pesa is not configured")
	}
	return &gateway.Credentials{
		Kind:           gatewayconfig.KindMpesaPlatform,
		Shortcode:      r.platform.Shortcode,
		Environment:    gatewayconfig.Environment(r.platform.Environment),
		ConsumerKey:    r.platform.ConsumerKey,
		ConsumerSecret: r.platform.ConsumerSecret,
		Passkey:        r.platform.Passkey,
	}, nil
}

func (r *Resolver) ownMpesa(ctx context.Context, ll *landlord.Landlord) (*gateway.Credentials, error) {
	cfg, err := r.configs.FindActive(ctx, ll.ID, gatewayconfig.KindMpesaCustom)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindTransient, "config lookup", err)
	}
	if !cfg.Usable() {
		// Present but unverified: keep walking the chain.
		return nil, nil
	}
	return r.CredentialsFor(cfg)
}

func (r *Resolver) platformDefault(_ context.Context, ll *landlord.Landlord) (*gateway.Credentials, error) {
	if ll.PaymentPreference != landlord.PreferPlatform || !r.hasShared {
		return nil, nil
	}
	cred, err := r.Platform()
	if err != nil {
		return nil, nil
	}
	cred.LandlordID = ll.ID
	return cred, nil
}

func (r *Resolver) jengaRail(ctx context.Context, ll *landlord.Landlord) (*gateway.Credentials, error) {
	cfg, err := r.configs.FindActive(ctx, ll.ID, gatewayconfig.KindJenga)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindTransient, "config lookup", err)
	}
	if !cfg.Usable() {
		return nil, nil
	}
	return r.CredentialsFor(cfg)
}

// CredentialsFor decrypts a stored config into in-memory credentials.
// Any decryption failure is a transient infrastructure error: fail closed.
func (r *Resolver) CredentialsFor(cfg *gatewayconfig.Config) (*gateway.Credentials, error) {
	cred := &gateway.Credentials{
		ConfigID:    cfg.ID,
		LandlordID:  cfg.LandlordID,
		Kind:        cfg.Kind,
		Shortcode:   cfg.Shortcode,
		Environment: cfg.Environment,
	}

	fields := []struct {
		name string
		dst  *string
	}{
		{gatewayconfig.FieldConsumerKey, &cred.ConsumerKey},
		{gatewayconfig.FieldConsumerSecret, &cred.ConsumerSecret},
		{gatewayconfig.FieldPasskey, &cred.Passkey},
		{gatewayconfig.FieldAPIKey, &cred.APIKey},
		{gatewayconfig.FieldAPISecret, &cred.APISecret},
		{gatewayconfig.FieldIPNUsername, &cred.IPNUsername},
		{gatewayconfig.FieldIPNPassword, &cred.IPNPassword},
	}
	for _, f := range fields {
		plain, present, err := cfg.DecryptField(f.name, r.key)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindTransient,
				fmt.Sprintf("credentials for config %d undecryptable", cfg.ID), err)
		}
		if present {
			*f.dst = plain
		}
	}
	return cred, nil
}
