package reconcile

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"rentledger/internal/domain/transaction"
	"rentledger/internal/gateway"
	"rentledger/internal/store/repositories"
)

// Matcher locates the pending transaction a callback corresponds to. The
// gateway gives us no reliable foreign key, so matching is an ordered list
// of strategies, first hit wins. Fuzzy substring matching on invoice
// numbers is deliberately absent: exact keys only.
type Matcher struct {
	trx repositories.TransactionRepository
}

func NewMatcher(trx repositories.TransactionRepository) *Matcher {
	return &Matcher{trx: trx}
}

type matchStrategy struct {
	name string
	find func(ctx context.Context, evt gateway.CallbackEvent) (*transaction.Transaction, error)
}

// Match returns the matched transaction and the strategy that found it, or
// (nil, "", nil) when nothing claims the callback.
func (m *Matcher) Match(ctx context.Context, evt gateway.CallbackEvent) (*transaction.Transaction, string, error) {
	strategies := []matchStrategy{
		{"correlation", m.byCorrelationID},
		{"reference", m.byReference},
		{"invoice", m.byInvoice},
		{"phone-amount", m.byPhoneAmount},
	}
	for _, s := range strategies {
		t, err := s.find(ctx, evt)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, "", err
		}
		if t != nil {
			return t, s.name, nil
		}
	}
	return nil, "", nil
}

// byCorrelationID matches the gateway-issued id the pending row was keyed by
// at initiation. Daraja failure callbacks carry this and nothing else, so it
// leads the chain.
func (m *Matcher) byCorrelationID(ctx context.Context, evt gateway.CallbackEvent) (*transaction.Transaction, error) {
	id := strings.TrimSpace(evt.CorrelationID)
	if id == "" {
		return nil, repositories.ErrNotFound
	}
	return m.trx.FindPendingByCorrelationID(ctx, id)
}

// byReference matches the locally generated reference stored in transaction
// metadata at initiation. This survives the gateway changing its correlation
// id between push and callback.
func (m *Matcher) byReference(ctx context.Context, evt gateway.CallbackEvent) (*transaction.Transaction, error) {
	hint := strings.TrimSpace(evt.ReferenceHint)
	if hint == "" {
		return nil, repositories.ErrNotFound
	}
	return m.trx.FindPendingByReference(ctx, hint)
}

// byInvoice matches when the callback's reference carries an invoice number
// of the platform's INV-<id> form.
func (m *Matcher) byInvoice(ctx context.Context, evt gateway.CallbackEvent) (*transaction.Transaction, error) {
	id := InvoiceIDFromReference(evt.ReferenceHint)
	if id == 0 {
		return nil, repositories.ErrNotFound
	}
	return m.trx.FindPendingByInvoice(ctx, id)
}

// byPhoneAmount matches exact (phone, amount) among pending transactions,
// most recent first.
func (m *Matcher) byPhoneAmount(ctx context.Context, evt gateway.CallbackEvent) (*transaction.Transaction, error) {
	if evt.Phone == "" || evt.Amount <= 0 {
		return nil, repositories.ErrNotFound
	}
	return m.trx.FindLatestPendingByPhoneAmount(ctx, evt.Phone, evt.Amount)
}

// InvoiceIDFromReference parses the platform's invoice reference form
// ("INV-42" -> 42). Anything else yields 0.
func InvoiceIDFromReference(ref string) int64 {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	rest, ok := strings.CutPrefix(ref, "INV-")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
