package payment

import (
	"fmt"
	"strings"
	"time"
)

// Payment is append-only: exactly one row per successfully reconciled
// transaction, always written in status completed. The idempotency guard,
// not this type, enforces the one-row-per-gateway-reference invariant.
type Payment struct {
	ID             int64
	InvoiceID      int64
	TenantID       int64
	LeaseID        int64
	LandlordID     int64
	Amount         int // whole KES
	Method         string
	GatewayReceipt string
	Notes          string
	CreatedAt      time.Time
}

func New(invoiceID, tenantID, leaseID, landlordID int64, amount int, method, receipt string) (*Payment, error) {
	if invoiceID <= 0 {
		return nil, fmt.Errorf("invalid invoice ID: %d", invoiceID)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %d", amount)
	}
	if strings.TrimSpace(method) == "" {
		return nil, fmt.Errorf("method is required")
	}
	return &Payment{
		InvoiceID:      invoiceID,
		TenantID:       tenantID,
		LeaseID:        leaseID,
		LandlordID:     landlordID,
		Amount:         amount,
		Method:         method,
		GatewayReceipt: receipt,
		Notes:          fmt.Sprintf("gateway ref: %s", receipt),
		CreatedAt:      time.Now(),
	}, nil
}
