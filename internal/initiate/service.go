// Package initiate drives the outbound half of the engine: validate the
// request, authorize the caller against the invoice parties, resolve the
// landlord's credentials, push on the resolved rail and persist the pending
// transaction the callback will later claim.
package initiate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rentledger/internal/apperr"
	"rentledger/internal/auth"
	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/domain/invoice"
	"rentledger/internal/domain/transaction"
	"rentledger/internal/gateway"
	"rentledger/internal/ratelimit"
	"rentledger/internal/store/repositories"
	"rentledger/internal/vault"

	"github.com/rs/zerolog/log"
)

// Purpose selects the billing context of a push and who may request it.
type Purpose string

const (
	PurposeRent          Purpose = "rent"
	PurposeServiceCharge Purpose = "service_charge"
	PurposeSubscription  Purpose = "subscription"
)

// ParsePurpose normalizes the wire paymentType. Both "service_charge" and
// "service-charge" are in the wild; the underscore form is canonical.
func ParsePurpose(s string) Purpose {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "service-charge" {
		return PurposeServiceCharge
	}
	return Purpose(s)
}

type Request struct {
	Purpose   Purpose
	InvoiceID int64 // required for rent and service charge
	Phone     string
	Amount    int
	// AccountRef is honored for subscriptions only. Invoice payments always
	// carry INV-<id> so the callback matcher can find them.
	AccountRef  string
	Description string // free-text shown on the payer's prompt
	DryRun      bool   // validate, authorize and resolve without pushing
}

type Result struct {
	Reference         string
	CorrelationID     string
	MerchantRequestID string
	Gateway           gatewayconfig.Kind
	Shortcode         string
	Description       string
	CustomerMsg       string
	DryRun            bool
}

// Service wires validation, authorization, vault resolution and the rail
// clients. One instance serves all rails; the resolved credential kind picks
// the pusher.
type Service struct {
	resolver *vault.Resolver
	invoices repositories.InvoiceRepository
	trx      repositories.TransactionRepository
	pushers  map[gatewayconfig.Kind]gateway.Pusher
	limiter  ratelimit.Limiter
	ceiling  int
	callback string // base URL the rails post results back to
}

func NewService(
	resolver *vault.Resolver,
	invoices repositories.InvoiceRepository,
	trx repositories.TransactionRepository,
	pushers map[gatewayconfig.Kind]gateway.Pusher,
	limiter ratelimit.Limiter,
	amountCeiling int,
	callbackBaseURL string,
) *Service {
	return &Service{
		resolver: resolver,
		invoices: invoices,
		trx:      trx,
		pushers:  pushers,
		limiter:  limiter,
		ceiling:  amountCeiling,
		callback: callbackBaseURL,
	}
}

// Initiate runs the full pipeline. The order matters: cheap local checks
// first, then authorization, then resolution; the dry-run short-circuit sits
// after resolution so a dry run proves the same path a real push would take.
func (s *Service) Initiate(ctx context.Context, actor auth.Actor, req Request) (*Result, error) {
	phone, err := gateway.NormalizePhone(req.Phone)
	if err != nil {
		return nil, apperr.Validationf("%v", err)
	}
	if err := gateway.ValidateAmount(req.Amount, s.ceiling); err != nil {
		return nil, apperr.Validationf("%v", err)
	}
	if req.Purpose != PurposeSubscription && req.InvoiceID == 0 {
		return nil, apperr.Validationf("invoice_id is required for %s payments", req.Purpose)
	}

	if ok, _ := s.limiter.Allow(ctx, fmt.Sprintf("user:%d", actor.UserID)); !ok {
		return nil, apperr.New(apperr.KindThrottled, "too many initiation requests, retry shortly")
	}

	var (
		cred *gateway.Credentials
		inv  *invoice.Invoice
	)
	switch req.Purpose {
	case PurposeRent, PurposeServiceCharge:
		inv, cred, err = s.forInvoice(ctx, actor, req)
	case PurposeSubscription:
		// Subscriptions settle to the platform paybill; any authenticated
		// caller may pay their own subscription.
		cred, err = s.resolver.Platform()
	default:
		return nil, apperr.Validationf("unknown purpose: %s", req.Purpose)
	}
	if err != nil {
		return nil, err
	}

	pusher, ok := s.pushers[cred.Kind]
	if !ok {
		return nil, apperr.NotConfigured(fmt.Sprintf("no client for gateway %s", cred.Kind))
	}

	ref := transaction.NewReference()
	push := gateway.PushRequest{
		Amount:           req.Amount,
		Phone:            phone,
		AccountReference: accountReference(req, inv),
		Description:      pushDescription(req),
		CallbackURL:      s.callbackURL(cred),
		Reference:        ref,
	}

	if req.DryRun {
		return &Result{Reference: ref, Gateway: cred.Kind, Shortcode: cred.Shortcode, DryRun: true}, nil
	}

	resp, err := pusher.Push(ctx, *cred, push)
	if err != nil {
		var ge *gateway.Error
		if errors.As(err, &ge) {
			return nil, apperr.GatewayRejected(ge.Description, ref)
		}
		return nil, apperr.Wrap(apperr.KindTransient, "gateway push", err)
	}

	correlationID := resp.CheckoutRequestID
	if correlationID == "" {
		correlationID = resp.MerchantRequestID
	}
	t, err := transaction.NewPending(cred.LandlordID, string(cred.Kind), correlationID, ref, phone, req.Amount, req.InvoiceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "pending transaction", err)
	}
	if err := s.trx.CreatePending(ctx, t); err != nil {
		// The push went out; losing the row here means the callback will land
		// unmatched instead of silently vanishing. Log with everything needed
		// to reconcile by hand.
		log.Error().Err(err).Str("reference", ref).Str("correlation_id", correlationID).
			Int("amount", req.Amount).Msg("pending transaction not persisted after push")
		return nil, apperr.Wrap(apperr.KindTransient, "pending transaction", err)
	}

	log.Info().Str("reference", ref).Str("gateway", string(cred.Kind)).
		Int64("invoice_id", req.InvoiceID).Int("amount", req.Amount).
		Msg("payment initiated")
	return &Result{
		Reference:         ref,
		CorrelationID:     correlationID,
		MerchantRequestID: resp.MerchantRequestID,
		Gateway:           cred.Kind,
		Shortcode:         cred.Shortcode,
		Description:       resp.ResponseDescription,
		CustomerMsg:       resp.CustomerMessage,
	}, nil
}

// pushDescription prefers the caller-supplied text and falls back to the
// purpose so the payer's prompt is never blank.
func pushDescription(req Request) string {
	if req.Description != "" {
		return req.Description
	}
	return string(req.Purpose)
}

// forInvoice loads the invoice, authorizes the actor for the purpose and
// resolves the owning landlord's credentials.
func (s *Service) forInvoice(ctx context.Context, actor auth.Actor, req Request) (*invoice.Invoice, *gateway.Credentials, error) {
	inv, err := s.invoices.FindByID(ctx, req.InvoiceID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, apperr.Validationf("invoice %d not found", req.InvoiceID)
		}
		return nil, nil, apperr.Wrap(apperr.KindTransient, "invoice lookup", err)
	}
	if !inv.Payable() {
		return nil, nil, apperr.Validationf("invoice %d is %s, not payable", inv.ID, inv.Status)
	}
	if err := inv.ValidateAmount(req.Amount); err != nil {
		return nil, nil, apperr.Validationf("%v", err)
	}

	parties, err := s.invoices.Parties(ctx, req.InvoiceID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindTransient, "invoice party lookup", err)
	}
	if err := authorize(actor, req.Purpose, parties); err != nil {
		return nil, nil, err
	}

	cred, err := s.resolver.ForLandlord(ctx, parties.LandlordID)
	if err != nil {
		return nil, nil, err
	}
	return inv, cred, nil
}

// authorize enforces who may trigger a push for each purpose. Rent can be
// paid by the invoice's tenant or pushed by the owner or manager on the
// tenant's behalf; service charges only by the owning landlord. Admins pass
// everywhere.
func authorize(actor auth.Actor, purpose Purpose, p invoice.Parties) error {
	if actor.IsAdmin() {
		return nil
	}
	switch purpose {
	case PurposeRent:
		if actor.UserID == p.TenantUserID || actor.UserID == p.OwnerUserID ||
			(p.ManagerUserID != 0 && actor.UserID == p.ManagerUserID) {
			return nil
		}
	case PurposeServiceCharge:
		if actor.Role == auth.RoleLandlord && actor.LandlordID == p.LandlordID {
			return nil
		}
	}
	return apperr.Unauthorized("caller may not initiate this payment")
}

// accountReference is what the payer sees on their statement and what the
// callback echoes back; for invoices it carries the INV-<id> convention the
// matcher understands.
func accountReference(req Request, inv *invoice.Invoice) string {
	if inv != nil {
		return fmt.Sprintf("INV-%d", inv.ID)
	}
	if req.AccountRef != "" {
		return req.AccountRef
	}
	return "SUBSCRIPTION"
}

func (s *Service) callbackURL(cred *gateway.Credentials) string {
	switch cred.Kind {
	case gatewayconfig.KindMpesaCustom, gatewayconfig.KindMpesaPlatform:
		return fmt.Sprintf("%s/hooks/mpesa/%s", s.callback, cred.Shortcode)
	case gatewayconfig.KindJenga:
		return s.callback + "/hooks/jenga"
	case gatewayconfig.KindKopoKopo:
		return s.callback + "/hooks/kopokopo"
	default:
		return s.callback + "/hooks/unknown"
	}
}
