// Package gateway defines the canonical shapes the reconciliation engine
// speaks: a push request/response pair for initiation and a normalized
// callback event. Each rail under gateway/<name> adapts its native payloads
// to these; nothing downstream probes gateway-specific fields.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"rentledger/internal/domain/gatewayconfig"
)

// Credentials are decrypted, in-memory only, produced by the vault resolver.
// Field usage depends on Kind; unused fields stay empty.
type Credentials struct {
	ConfigID   int64 // 0 for the env-provided platform default
	LandlordID int64 // 0 when settling to the platform itself
	Kind       gatewayconfig.Kind
	Shortcode  string // paybill / till / merchant account
	Environment gatewayconfig.Environment

	// M-Pesa Daraja
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string

	// Jenga / Kopo Kopo
	APIKey    string
	APISecret string

	// Per-landlord IPN callback Basic Auth (Jenga)
	IPNUsername string
	IPNPassword string
}

type PushRequest struct {
	Amount           int
	Phone            string
	AccountReference string
	Description      string
	CallbackURL      string
	Reference        string // local matching reference, echoed where the rail allows
}

type PushResponse struct {
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseDescription string
	CustomerMessage     string
}

// Pusher initiates a push payment on one rail.
type Pusher interface {
	Push(ctx context.Context, cred Credentials, req PushRequest) (*PushResponse, error)
}

// CallbackEvent is the normalized outcome every adapter produces.
type CallbackEvent struct {
	Gateway       gatewayconfig.Kind
	GatewayRef    string // human-visible receipt code (MpesaReceiptNumber etc.)
	CorrelationID string // id issued at push time, when the rail echoes it
	Success       bool
	Amount        int
	Phone         string
	SenderName    string
	ReferenceHint string // bill/account reference carried by the callback
	FailureReason string
	Raw           json.RawMessage
}

// UniqueRef is the idempotency key preference order: receipt code, then
// correlation id, then the local reference hint.
func (e CallbackEvent) UniqueRef() string {
	if e.GatewayRef != "" {
		return e.GatewayRef
	}
	if e.CorrelationID != "" {
		return e.CorrelationID
	}
	return e.ReferenceHint
}

// Error is a gateway-side rejection; Description is the provider's own text
// and must survive verbatim to the caller.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway rejected [%s]: %s", e.Code, e.Description)
	}
	return "gateway rejected: " + e.Description
}
