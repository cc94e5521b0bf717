package transaction

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Metadata keys the engine relies on. Everything else in Metadata is
// gateway-specific and opaque.
const (
	MetaReference  = "reference"  // locally generated matching reference
	MetaReconciled = "reconciled" // "false" on synthesized unmatched rows
	MetaReceipt    = "receipt"    // gateway's human-visible receipt code
	MetaFailReason = "fail_reason"
)

// Transaction is the audit trail of a push attempt or an unmatched inbound
// payment. Rows are never deleted; status transitions exactly once out of
// pending.
type Transaction struct {
	ID            int64
	LandlordID    int64
	CorrelationID string // gateway-issued checkout/merchant request id
	GatewayRef    string // receipt code; may differ from CorrelationID
	Gateway       string // gateway kind string
	Phone         string
	Amount        int // whole KES
	InvoiceID     int64
	Status        Status
	Metadata      map[string]string
	CreatedAt     time.Time
}

// NewPending creates the row the initiator persists once the gateway accepts
// a push. correlationID is the gateway's; reference is ours and survives in
// metadata even if the gateway later reports a different correlation id.
func NewPending(landlordID int64, gatewayKind, correlationID, reference, phone string, amount int, invoiceID int64) (*Transaction, error) {
	if landlordID < 0 {
		return nil, fmt.Errorf("invalid landlord ID: %d", landlordID)
	}
	if strings.TrimSpace(correlationID) == "" {
		return nil, fmt.Errorf("correlation ID is required")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %d", amount)
	}
	return &Transaction{
		LandlordID:    landlordID,
		CorrelationID: correlationID,
		Gateway:       gatewayKind,
		Phone:         phone,
		Amount:        amount,
		InvoiceID:     invoiceID,
		Status:        StatusPending,
		Metadata:      map[string]string{MetaReference: reference},
		CreatedAt:     time.Now(),
	}, nil
}

// NewUnmatched synthesizes a row for a callback no pending transaction
// claims. It is completed immediately (the money moved) but flagged for
// manual landlord reconciliation.
func NewUnmatched(landlordID int64, gatewayKind, gatewayRef, phone string, amount int) *Transaction {
	return &Transaction{
		LandlordID:    landlordID,
		CorrelationID: SystemCorrelationID(),
		GatewayRef:    gatewayRef,
		Gateway:       gatewayKind,
		Phone:         phone,
		Amount:        amount,
		Status:        StatusCompleted,
		Metadata: map[string]string{
			MetaReconciled: "false",
			MetaReceipt:    gatewayRef,
		},
		CreatedAt: time.Now(),
	}
}

// Reference returns the locally generated matching reference, if any.
func (t *Transaction) Reference() string { return t.Metadata[MetaReference] }

// NewReference generates the local reference stored in metadata at
// initiation time.
func NewReference() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return fmt.Sprintf("RL-%d-%X", time.Now().Unix(), b)
}

// SystemCorrelationID generates a correlation id for synthesized rows so the
// unique keying on correlation id still holds.
func SystemCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("SYS-%d-%x", time.Now().Unix(), b)
}
