// Package notify delivers the reconciliation side effects: landlord
// notifications (an outbox table) and tenant SMS receipts. Everything here
// is best-effort and independently retryable; a failure never reaches the
// ledger path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rentledger/internal/domain/landlord"
	"rentledger/internal/store/repositories"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

type Kind string

const (
	KindPaymentReceived  Kind = "payment_received"
	KindPaymentFailed    Kind = "payment_failed"
	KindUnmatchedPayment Kind = "unmatched_payment"
	KindStalePending     Kind = "stale_pending"
)

type Notification struct {
	LandlordID int64
	Kind       Kind
	Message    string
	Reference  string
	Amount     int
	CreatedAt  time.Time
}

// Store persists notifications for the landlord dashboard to pick up.
type Store interface {
	Insert(ctx context.Context, n Notification) error
}

// SMSSender dispatches a tenant-facing SMS.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// HTTPSMSSender posts to the platform's SMS dispatch endpoint.
type HTTPSMSSender struct {
	endpoint string
	http     *http.Client
}

func NewHTTPSMSSender(endpoint string) *HTTPSMSSender {
	return &HTTPSMSSender{endpoint: endpoint, http: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSMSSender) Send(ctx context.Context, phone, message string) error {
	body, _ := json.Marshal(map[string]string{"to": phone, "message": message})
	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("sms dispatch failed: %s", res.Status)
	}
	return nil
}

// NoopSMS is used when no SMS endpoint is configured.
type NoopSMS struct{}

func (NoopSMS) Send(context.Context, string, string) error { return nil }

// Dispatcher fans out notifications asynchronously. Each delivery runs on a
// detached context with bounded retries so a slow SMS gateway cannot hold a
// webhook response open.
type Dispatcher struct {
	store     Store
	sms       SMSSender
	landlords repositories.LandlordRepository
}

func NewDispatcher(store Store, sms SMSSender, landlords repositories.LandlordRepository) *Dispatcher {
	if sms == nil {
		sms = NoopSMS{}
	}
	return &Dispatcher{store: store, sms: sms, landlords: landlords}
}

func (d *Dispatcher) PaymentReceived(landlordID int64, tenantPhone string, amount int, receipt string) {
	msg := fmt.Sprintf("Payment of KES %d received, receipt %s", amount, receipt)
	d.async(landlordID, Notification{
		LandlordID: landlordID, Kind: KindPaymentReceived, Message: msg,
		Reference: receipt, Amount: amount,
	}, tenantPhone, fmt.Sprintf("Your payment of KES %d was received. Receipt: %s", amount, receipt))
}

func (d *Dispatcher) PaymentFailed(landlordID int64, amount int, reference, reason string) {
	msg := fmt.Sprintf("Payment of KES %d failed: %s", amount, reason)
	d.async(landlordID, Notification{
		LandlordID: landlordID, Kind: KindPaymentFailed, Message: msg,
		Reference: reference, Amount: amount,
	}, "", "")
}

func (d *Dispatcher) UnmatchedPayment(landlordID int64, amount int, receipt, phone string) {
	msg := fmt.Sprintf("Unmatched payment of KES %d from %s, receipt %s, needs manual reconciliation", amount, phone, receipt)
	d.async(landlordID, Notification{
		LandlordID: landlordID, Kind: KindUnmatchedPayment, Message: msg,
		Reference: receipt, Amount: amount,
	}, "", "")
}

func (d *Dispatcher) StalePending(landlordID int64, amount int, reference string) {
	msg := fmt.Sprintf("Payment request of KES %d (%s) received no gateway callback, review manually", amount, reference)
	d.async(landlordID, Notification{
		LandlordID: landlordID, Kind: KindStalePending, Message: msg,
		Reference: reference, Amount: amount,
	}, "", "")
}

func (d *Dispatcher) async(landlordID int64, n Notification, smsPhone, smsText string) {
	n.CreatedAt = time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		insert := func() error { return d.store.Insert(ctx, n) }
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		if err := backoff.Retry(insert, bo); err != nil {
			log.Error().Err(err).Int64("landlord_id", landlordID).Str("kind", string(n.Kind)).
				Msg("notification insert failed")
		}

		if smsPhone == "" || smsText == "" {
			return
		}
		// Tenant SMS receipts are gated by the landlord's messaging
		// automation preference.
		ll, err := d.landlords.FindByID(ctx, landlordID)
		if err != nil || !ll.MessagingAutomation {
			return
		}
		d.sendSMS(ctx, ll, smsPhone, smsText)
	}()
}

func (d *Dispatcher) sendSMS(ctx context.Context, ll *landlord.Landlord, phone, text string) {
	send := func() error { return d.sms.Send(ctx, phone, text) }
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(send, bo); err != nil {
		log.Error().Err(err).Int64("landlord_id", ll.ID).Msg("sms receipt failed")
	}
}
