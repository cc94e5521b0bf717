// Package reconcile turns normalized gateway callbacks into ledger state:
// match the pending transaction, claim the delivery exactly once, apply the
// outcome, and fan out notifications. Every invocation is stateless; all
// mutual exclusion lives in the database.
package reconcile

import (
	"context"

	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/domain/transaction"
	"rentledger/internal/gateway"
	"rentledger/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Notifier is the side-effect fan-out. Implementations are best-effort and
// must never block or fail the reconciliation path.
type Notifier interface {
	PaymentReceived(landlordID int64, tenantPhone string, amount int, receipt string)
	PaymentFailed(landlordID int64, amount int, reference, reason string)
	UnmatchedPayment(landlordID int64, amount int, receipt, phone string)
}

type Status string

const (
	StatusApplied   Status = "applied"   // ledger mutated
	StatusDuplicate Status = "duplicate" // idempotency guard short-circuited
	StatusUnmatched Status = "unmatched" // recorded for manual reconciliation
	StatusFailed    Status = "failed"    // gateway reported failure, recorded
)

// Outcome is what the webhook handler logs; the gateway always gets a 200
// regardless, once the callback is durably recorded.
type Outcome struct {
	Status              Status
	TransactionID       int64
	MatchedBy           string
	InvoiceTransitioned bool
	PaymentID           int64
}

type Engine struct {
	matcher  *Matcher
	guard    *Guard
	invoices repositories.InvoiceRepository
	trx      repositories.TransactionRepository
	ledger   repositories.Ledger
	notifier Notifier
}

func NewEngine(
	matcher *Matcher,
	guard *Guard,
	invoices repositories.InvoiceRepository,
	trx repositories.TransactionRepository,
	ledger repositories.Ledger,
	notifier Notifier,
) *Engine {
	return &Engine{
		matcher:  matcher,
		guard:    guard,
		invoices: invoices,
		trx:      trx,
		ledger:   ledger,
		notifier: notifier,
	}
}

// Process reconciles one delivered callback for the identified landlord.
func (e *Engine) Process(ctx context.Context, landlordID int64, evt gateway.CallbackEvent) (Outcome, error) {
	// Matching is read-only and must precede the claim so the claim row can
	// link the transaction it settles.
	matched, matchedBy, err := e.matcher.Match(ctx, evt)
	if err != nil {
		return Outcome{}, err
	}

	trxRef := ""
	invoiceID := int64(0)
	if matched != nil {
		trxRef = matched.Reference()
		if trxRef == "" {
			trxRef = matched.CorrelationID
		}
		invoiceID = matched.InvoiceID
	}
	if invoiceID == 0 {
		invoiceID = InvoiceIDFromReference(evt.ReferenceHint)
	}

	// The claim is the only barrier between this delivery and its
	// duplicates. Everything after it runs at most once per reference.
	claimed, err := e.guard.Claim(ctx, evt, trxRef, invoiceID)
	if err != nil {
		return Outcome{}, err
	}
	if !claimed {
		return Outcome{Status: StatusDuplicate, MatchedBy: matchedBy}, nil
	}

	if matched == nil {
		return e.recordUnmatched(ctx, landlordID, evt)
	}
	if !evt.Success {
		return e.applyFailure(ctx, matched, evt, matchedBy)
	}
	return e.applySuccess(ctx, matched, evt, matchedBy, invoiceID)
}

// recordUnmatched durably keeps a callback nothing claims. Successful money
// movement with no home is surfaced to the landlord for manual
// reconciliation, never dropped; no invoice or payment is touched.
func (e *Engine) recordUnmatched(ctx context.Context, landlordID int64, evt gateway.CallbackEvent) (Outcome, error) {
	t := transaction.NewUnmatched(landlordID, string(evt.Gateway), evt.UniqueRef(), evt.Phone, evt.Amount)
	if !evt.Success {
		t.Status = transaction.StatusFailed
		t.Metadata[transaction.MetaFailReason] = evt.FailureReason
	}
	if err := e.trx.CreateUnmatched(ctx, t); err != nil {
		return Outcome{}, err
	}
	if evt.Success {
		e.notifier.UnmatchedPayment(landlordID, evt.Amount, evt.UniqueRef(), evt.Phone)
	}
	log.Warn().Int64("landlord_id", landlordID).Str("gateway_ref", evt.UniqueRef()).
		Bool("success", evt.Success).Msg("callback matched no pending transaction")
	return Outcome{Status: StatusUnmatched, TransactionID: t.ID}, nil
}

// MethodFor maps a gateway kind onto the payment method recorded on the
// ledger.
func MethodFor(kind gatewayconfig.Kind) string {
	switch kind {
	case gatewayconfig.KindMpesaCustom, gatewayconfig.KindMpesaPlatform:
		return "mpesa"
	case gatewayconfig.KindJenga:
		return "jenga"
	case gatewayconfig.KindKopoKopo:
		return "kopokopo"
	default:
		return string(kind)
	}
}
