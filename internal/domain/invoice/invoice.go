package invoice

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Kind distinguishes what the invoice bills for; it drives who may pay it.
type Kind string

const (
	KindRent          Kind = "rent"
	KindServiceCharge Kind = "service_charge"
	KindSubscription  Kind = "subscription"
)

// Invoice is owned by the billing subsystem. The reconciliation engine only
// ever transitions Status pending -> paid, and only through a guarded
// conditional update in the store.
type Invoice struct {
	ID         int64
	TenantID   int64 // renter user id
	LeaseID    int64
	LandlordID int64
	Kind       Kind
	Amount     int // whole KES
	Status     Status
}

// Parties are the callers allowed to act on an invoice, resolved through
// invoice -> lease -> unit -> property -> owner.
type Parties struct {
	TenantUserID  int64
	OwnerUserID   int64
	ManagerUserID int64 // 0 when the property has no manager
	LandlordID    int64
}

// Payable reports whether the engine may still settle this invoice. Only
// pending invoices transition; the store enforces the same condition again
// at update time.
func (i *Invoice) Payable() bool {
	return i.Status == StatusPending
}

func (i *Invoice) ValidateAmount(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %d", amount)
	}
	return nil
}
