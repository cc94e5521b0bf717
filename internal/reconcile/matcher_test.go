package reconcile

import (
	"context"
	"testing"

	"rentledger/internal/domain/transaction"
	"rentledger/internal/gateway"
)

func TestMatcherStrategyOrder(t *testing.T) {
	trx := &fakeTrxRepo{}
	byRef, _ := transaction.NewPending(1, "mpesa_custom", "c1", "RL-REF", "254700000001", 100, 10)
	byInv, _ := transaction.NewPending(1, "mpesa_custom", "c2", "RL-OTHER", "254700000002", 200, 20)
	byPhone, _ := transaction.NewPending(1, "mpesa_custom", "c3", "RL-THIRD", "254700000003", 300, 0)
	for _, p := range []*transaction.Transaction{byRef, byInv, byPhone} {
		_ = trx.CreatePending(context.Background(), p)
	}
	m := NewMatcher(trx)

	// The gateway's own correlation id beats everything, including a
	// reference hint pointing at another row.
	got, by, err := m.Match(context.Background(), gateway.CallbackEvent{
		CorrelationID: "c2", ReferenceHint: "RL-REF", Phone: "254700000003", Amount: 300,
	})
	if err != nil || got == nil || got.ID != byInv.ID || by != "correlation" {
		t.Fatalf("got %v via %q, want byInv via correlation", got, by)
	}

	// Reference hint is next.
	got, by, err = m.Match(context.Background(), gateway.CallbackEvent{
		ReferenceHint: "RL-REF", Phone: "254700000003", Amount: 300,
	})
	if err != nil || got == nil || got.ID != byRef.ID || by != "reference" {
		t.Fatalf("got %v via %q, want byRef via reference", got, by)
	}

	// Invoice form is next.
	got, by, err = m.Match(context.Background(), gateway.CallbackEvent{
		ReferenceHint: "INV-20", Phone: "254700000003", Amount: 300,
	})
	if err != nil || got == nil || got.ID != byInv.ID || by != "invoice" {
		t.Fatalf("got %v via %q, want byInv via invoice", got, by)
	}

	// Exact phone and amount as the last resort.
	got, by, err = m.Match(context.Background(), gateway.CallbackEvent{
		Phone: "254700000003", Amount: 300,
	})
	if err != nil || got == nil || got.ID != byPhone.ID || by != "phone-amount" {
		t.Fatalf("got %v via %q, want byPhone via phone-amount", got, by)
	}

	// An unknown correlation id falls through to the weaker strategies.
	got, by, err = m.Match(context.Background(), gateway.CallbackEvent{
		CorrelationID: "c-unknown", ReferenceHint: "RL-REF",
	})
	if err != nil || got == nil || got.ID != byRef.ID || by != "reference" {
		t.Fatalf("got %v via %q, want byRef via reference", got, by)
	}

	// Nothing claims it: no error, no match.
	got, by, err = m.Match(context.Background(), gateway.CallbackEvent{
		Phone: "254700999999", Amount: 999,
	})
	if err != nil || got != nil || by != "" {
		t.Fatalf("want no match, got %v via %q err %v", got, by, err)
	}
}

func TestMatcherPhoneAmountMostRecentWins(t *testing.T) {
	trx := &fakeTrxRepo{}
	older, _ := transaction.NewPending(1, "mpesa_custom", "c10", "RL-A", "254700000009", 500, 0)
	newer, _ := transaction.NewPending(1, "mpesa_custom", "c11", "RL-B", "254700000009", 500, 0)
	_ = trx.CreatePending(context.Background(), older)
	_ = trx.CreatePending(context.Background(), newer)

	got, _, err := NewMatcher(trx).Match(context.Background(), gateway.CallbackEvent{
		Phone: "254700000009", Amount: 500,
	})
	if err != nil || got == nil || got.ID != newer.ID {
		t.Fatalf("got %v, want the newer pending transaction", got)
	}
}

func TestInvoiceIDFromReference(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"INV-42", 42},
		{"inv-42", 42},
		{" INV-7 ", 7},
		{"INV-0", 0},
		{"INV-", 0},
		{"INV-abc", 0},
		{"INVOICE-42", 0},
		{"42", 0},
		{"", 0},
	}
	for _, c := range cases {
		if got := InvoiceIDFromReference(c.in); got != c.want {
			t.Errorf("InvoiceIDFromReference(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
