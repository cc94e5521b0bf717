package notify

import (
	"context"
	"testing"
	"time"

	"rentledger/internal/domain/landlord"
)

type captureStore struct {
	ch chan Notification
}

func (s *captureStore) Insert(_ context.Context, n Notification) error {
	s.ch <- n
	return nil
}

type fakeLandlords struct {
	ll landlord.Landlord
}

func (f *fakeLandlords) FindByID(_ context.Context, id int64) (*landlord.Landlord, error) {
	ll := f.ll
	ll.ID = id
	return &ll, nil
}

type captureSMS struct {
	ch chan string
}

func (s *captureSMS) Send(_ context.Context, phone, message string) error {
	s.ch <- phone + ": " + message
	return nil
}

func TestPaymentReceivedPersistsStampedNotification(t *testing.T) {
	store := &captureStore{ch: make(chan Notification, 1)}
	d := NewDispatcher(store, NoopSMS{}, &fakeLandlords{})

	before := time.Now()
	d.PaymentReceived(7, "", 5000, "SBC1234XYZ")

	select {
	case n := <-store.ch:
		if n.Kind != KindPaymentReceived || n.LandlordID != 7 || n.Amount != 5000 {
			t.Errorf("notification fields wrong: %+v", n)
		}
		if n.Reference != "SBC1234XYZ" {
			t.Errorf("reference = %q, want receipt", n.Reference)
		}
		if n.CreatedAt.IsZero() || n.CreatedAt.Before(before) {
			t.Errorf("CreatedAt = %v, want stamped at dispatch", n.CreatedAt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never persisted")
	}
}

func TestTenantSMSGatedByMessagingAutomation(t *testing.T) {
	store := &captureStore{ch: make(chan Notification, 2)}
	sms := &captureSMS{ch: make(chan string, 2)}

	// Automation off: notification lands, no SMS goes out.
	off := NewDispatcher(store, sms, &fakeLandlords{})
	off.PaymentReceived(7, "254712345678", 5000, "SBC1")
	<-store.ch
	select {
	case got := <-sms.ch:
		t.Fatalf("unexpected SMS %q with automation off", got)
	case <-time.After(200 * time.Millisecond):
	}

	// Automation on: the tenant gets a receipt.
	on := NewDispatcher(store, sms, &fakeLandlords{ll: landlord.Landlord{MessagingAutomation: true}})
	on.PaymentReceived(7, "254712345678", 5000, "SBC2")
	<-store.ch
	select {
	case <-sms.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("tenant SMS never sent")
	}
}
