package reconcile

import (
	"context"
	"errors"
	"fmt"

	"rentledger/internal/domain/transaction"
	"rentledger/internal/gateway"
	"rentledger/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// applySuccess settles a matched success callback. With an invoice in hand
// the ledger applies atomically: conditional invoice transition, payment
// insert, transaction completion. Without one, only the transaction
// completes. Notifications run after the ledger call and cannot undo it.
func (e *Engine) applySuccess(ctx context.Context, matched *transaction.Transaction, evt gateway.CallbackEvent, matchedBy string, invoiceID int64) (Outcome, error) {
	amount := evt.Amount
	if amount == 0 {
		amount = matched.Amount
	}
	receipt := evt.UniqueRef()

	if invoiceID == 0 {
		if err := e.ledger.CompleteWithoutInvoice(ctx, matched.ID, receipt); err != nil {
			return Outcome{}, err
		}
		e.notifier.PaymentReceived(matched.LandlordID, evt.Phone, amount, receipt)
		return Outcome{Status: StatusApplied, TransactionID: matched.ID, MatchedBy: matchedBy}, nil
	}

	inv, err := e.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Reference pointed at an invoice that does not exist; settle the
			// transaction and leave the rest to manual review.
			log.Warn().Int64("invoice_id", invoiceID).Str("gateway_ref", receipt).
				Msg("callback referenced unknown invoice")
			if err := e.ledger.CompleteWithoutInvoice(ctx, matched.ID, receipt); err != nil {
				return Outcome{}, err
			}
			e.notifier.UnmatchedPayment(matched.LandlordID, amount, receipt, evt.Phone)
			return Outcome{Status: StatusApplied, TransactionID: matched.ID, MatchedBy: matchedBy}, nil
		}
		return Outcome{}, err
	}

	res, err := e.ledger.ApplyPaid(ctx, repositories.ApplyPaid{
		TransactionID: matched.ID,
		InvoiceID:     inv.ID,
		TenantID:      inv.TenantID,
		LeaseID:       inv.LeaseID,
		LandlordID:    inv.LandlordID,
		Amount:        amount,
		Method:        MethodFor(evt.Gateway),
		Receipt:       receipt,
		Notes:         fmt.Sprintf("gateway ref: %s", receipt),
	})
	if err != nil {
		return Outcome{}, err
	}
	if !res.InvoiceTransitioned {
		// Lost the conditional update: the invoice was already settled by
		// another path. The guard should make this rare; log it loudly.
		log.Warn().Int64("invoice_id", inv.ID).Str("gateway_ref", receipt).
			Msg("invoice was not pending at settlement time")
	}

	e.notifier.PaymentReceived(inv.LandlordID, evt.Phone, amount, receipt)
	return Outcome{
		Status:              StatusApplied,
		TransactionID:       matched.ID,
		MatchedBy:           matchedBy,
		InvoiceTransitioned: res.InvoiceTransitioned,
		PaymentID:           res.PaymentID,
	}, nil
}

// applyFailure records a gateway-reported failure. No invoice or payment is
// touched.
func (e *Engine) applyFailure(ctx context.Context, matched *transaction.Transaction, evt gateway.CallbackEvent, matchedBy string) (Outcome, error) {
	if err := e.ledger.ApplyFailure(ctx, matched.ID, evt.FailureReason); err != nil {
		return Outcome{}, err
	}
	e.notifier.PaymentFailed(matched.LandlordID, matched.Amount, matched.Reference(), evt.FailureReason)
	return Outcome{Status: StatusFailed, TransactionID: matched.ID, MatchedBy: matchedBy}, nil
}
