package reconcile

import (
	"context"
	"time"

	"rentledger/internal/gateway"
	"rentledger/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Guard is the at-most-once barrier. The insert into processed_callbacks is
// the claim: its unique constraint on the gateway reference, not any
// application-level read, is what serializes concurrent deliveries. The
// losing delivery's unique violation is the intended control path.
type Guard struct {
	claims   repositories.CallbackClaimRepository
	payments repositories.PaymentRepository
}

func NewGuard(claims repositories.CallbackClaimRepository, payments repositories.PaymentRepository) *Guard {
	return &Guard{claims: claims, payments: payments}
}

// Claim attempts to own the callback. It returns false when a previous or
// concurrent delivery already holds the reference; the caller must then
// acknowledge the gateway without reapplying effects.
func (g *Guard) Claim(ctx context.Context, evt gateway.CallbackEvent, transactionRef string, invoiceID int64) (bool, error) {
	ref := evt.UniqueRef()
	if ref == "" {
		ref = transactionRef
	}

	// Historical payments recorded before the processed_callbacks table
	// carry the gateway reference in free text; honor them too.
	if seen, err := g.payments.NotesContainRef(ctx, ref); err == nil && seen {
		log.Info().Str("gateway_ref", ref).Msg("callback reference already on a payment record")
		return false, nil
	}

	claimed, err := g.claims.Claim(ctx, repositories.ProcessedCallback{
		GatewayRef:     ref,
		TransactionRef: transactionRef,
		InvoiceID:      invoiceID,
		Amount:         evt.Amount,
		Phone:          evt.Phone,
		ProcessedAt:    time.Now(),
	})
	if err != nil {
		return false, err
	}
	if !claimed {
		log.Info().Str("gateway_ref", ref).Msg("duplicate callback delivery, no-op")
	}
	return claimed, nil
}
