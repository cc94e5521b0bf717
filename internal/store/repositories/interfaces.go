// Package repositories defines the store contracts the engine consumes.
// The postgres package implements them; tests substitute fakes.
package repositories

import (
	"context"
	"errors"
	"time"

	"rentledger/internal/auth"
	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/domain/invoice"
	"rentledger/internal/domain/landlord"
	"rentledger/internal/domain/payment"
	"rentledger/internal/domain/transaction"
)

// ErrNotFound is the sentinel every Find* returns when no row matches.
var ErrNotFound = errors.New("not found")

type GatewayConfigRepository interface {
	// FindActive returns the landlord's active config of the given kind.
	FindActive(ctx context.Context, landlordID int64, kind gatewayconfig.Kind) (*gatewayconfig.Config, error)
	// FindByShortcode locates an active config by its paybill/till/merchant
	// account, used to identify the landlord a callback belongs to.
	FindByShortcode(ctx context.Context, kind gatewayconfig.Kind, shortcode string) (*gatewayconfig.Config, error)
	Save(ctx context.Context, cfg *gatewayconfig.Config) error
	ListByLandlord(ctx context.Context, landlordID int64) ([]*gatewayconfig.Config, error)
}

type LandlordRepository interface {
	FindByID(ctx context.Context, id int64) (*landlord.Landlord, error)
}

type InvoiceRepository interface {
	FindByID(ctx context.Context, id int64) (*invoice.Invoice, error)
	// Parties resolves invoice -> lease -> unit -> property -> owner/manager.
	Parties(ctx context.Context, id int64) (invoice.Parties, error)
}

type TransactionRepository interface {
	CreatePending(ctx context.Context, t *transaction.Transaction) error
	// CreateUnmatched persists a synthesized row for a callback nothing claims.
	CreateUnmatched(ctx context.Context, t *transaction.Transaction) error
	// FindPendingByCorrelationID matches on the gateway-issued id the pending
	// row was keyed by at initiation. Failure callbacks often carry nothing
	// else.
	FindPendingByCorrelationID(ctx context.Context, correlationID string) (*transaction.Transaction, error)
	FindPendingByReference(ctx context.Context, ref string) (*transaction.Transaction, error)
	FindPendingByInvoice(ctx context.Context, invoiceID int64) (*transaction.Transaction, error)
	// FindLatestPendingByPhoneAmount matches on exact (phone, amount), most
	// recent first.
	FindLatestPendingByPhoneAmount(ctx context.Context, phone string, amount int) (*transaction.Transaction, error)
	List(ctx context.Context, landlordID int64, limit, offset int) ([]*transaction.Transaction, error)
	// FindStalePending feeds the manual-reconciliation sweep; it excludes rows
	// already flagged.
	FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error)
	MarkSweepFlagged(ctx context.Context, id int64) error
}

type PaymentRepository interface {
	List(ctx context.Context, landlordID int64, limit, offset int) ([]*payment.Payment, error)
	// NotesContainRef reports whether any payment's free-text notes mention
	// the reference; covers records predating the
	// processed_callbacks table.
	NotesContainRef(ctx context.Context, ref string) (bool, error)
}

// ProcessedCallback is the idempotency ledger row. The unique constraint on
// GatewayRef is the at-most-once barrier.
type ProcessedCallback struct {
	GatewayRef     string
	TransactionRef string
	InvoiceID      int64
	Amount         int
	Phone          string
	ProcessedAt    time.Time
}

type CallbackClaimRepository interface {
	// Claim inserts the row and returns false, nil when the unique constraint
	// fired, meaning another delivery already claimed this reference. The
	// insert failure path IS the concurrency control, not an error condition.
	Claim(ctx context.Context, c ProcessedCallback) (bool, error)
}

// ApplyPaid carries everything the ledger needs to settle a success callback
// atomically.
type ApplyPaid struct {
	TransactionID int64
	InvoiceID     int64
	TenantID      int64
	LeaseID       int64
	LandlordID    int64
	Amount        int
	Method        string
	Receipt       string
	Notes         string
}

type ApplyPaidResult struct {
	InvoiceTransitioned bool
	PaymentID           int64
}

// Ledger applies callback outcomes. Implementations run each call in a
// single database transaction; the invoice transition is a conditional
// update (WHERE status='pending'), never read-then-write.
type Ledger interface {
	ApplyPaid(ctx context.Context, p ApplyPaid) (ApplyPaidResult, error)
	// CompleteWithoutInvoice settles a matched transaction that carries no
	// invoice: status + receipt only, no invoice or payment mutation.
	CompleteWithoutInvoice(ctx context.Context, transactionID int64, receipt string) error
	ApplyFailure(ctx context.Context, transactionID int64, reason string) error
}

type TokenRepository interface {
	FindActorByTokenHash(ctx context.Context, hash string) (auth.Actor, error)
}
