package initiate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rentledger/internal/apperr"
	"rentledger/internal/auth"
	"rentledger/internal/config"
	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/domain/invoice"
	"rentledger/internal/domain/landlord"
	"rentledger/internal/domain/transaction"
	"rentledger/internal/gateway"
	"rentledger/internal/ratelimit"
	"rentledger/internal/store/repositories"
	"rentledger/internal/vault"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeConfigRepo struct {
	configs []*gatewayconfig.Config
}

func (f *fakeConfigRepo) FindActive(_ context.Context, landlordID int64, kind gatewayconfig.Kind) (*gatewayconfig.Config, error) {
	for _, c := range f.configs {
		if c.LandlordID == landlordID && c.Kind == kind && c.Active {
			return c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeConfigRepo) FindByShortcode(_ context.Context, kind gatewayconfig.Kind, shortcode string) (*gatewayconfig.Config, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeConfigRepo) Save(_ context.Context, cfg *gatewayconfig.Config) error {
	f.configs = append(f.configs, cfg)
	return nil
}

func (f *fakeConfigRepo) ListByLandlord(context.Context, int64) ([]*gatewayconfig.Config, error) {
	return nil, nil
}

type fakeLandlordRepo struct {
	landlords map[int64]*landlord.Landlord
}

func (f *fakeLandlordRepo) FindByID(_ context.Context, id int64) (*landlord.Landlord, error) {
	l, ok := f.landlords[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return l, nil
}

type fakeInvoiceRepo struct {
	invoices map[int64]*invoice.Invoice
	parties  map[int64]invoice.Parties
}

func (f *fakeInvoiceRepo) FindByID(_ context.Context, id int64) (*invoice.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return inv, nil
}

func (f *fakeInvoiceRepo) Parties(_ context.Context, id int64) (invoice.Parties, error) {
	p, ok := f.parties[id]
	if !ok {
		return invoice.Parties{}, repositories.ErrNotFound
	}
	return p, nil
}

type fakeTrxRepo struct {
	created []*transaction.Transaction
}

func (f *fakeTrxRepo) CreatePending(_ context.Context, t *transaction.Transaction) error {
	t.ID = int64(len(f.created) + 1)
	f.created = append(f.created, t)
	return nil
}

func (f *fakeTrxRepo) CreateUnmatched(context.Context, *transaction.Transaction) error { return nil }

func (f *fakeTrxRepo) FindPendingByCorrelationID(context.Context, string) (*transaction.Transaction, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeTrxRepo) FindPendingByReference(context.Context, string) (*transaction.Transaction, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeTrxRepo) FindPendingByInvoice(context.Context, int64) (*transaction.Transaction, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeTrxRepo) FindLatestPendingByPhoneAmount(context.Context, string, int) (*transaction.Transaction, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeTrxRepo) List(context.Context, int64, int, int) ([]*transaction.Transaction, error) {
	return nil, nil
}

func (f *fakeTrxRepo) FindStalePending(context.Context, time.Time, int) ([]*transaction.Transaction, error) {
	return nil, nil
}

func (f *fakeTrxRepo) MarkSweepFlagged(context.Context, int64) error { return nil }

type fakePusher struct {
	calls []gateway.PushRequest
	creds []gateway.Credentials
	err   error
}

func (f *fakePusher) Push(_ context.Context, cred gateway.Credentials, req gateway.PushRequest) (*gateway.PushResponse, error) {
	f.calls = append(f.calls, req)
	f.creds = append(f.creds, cred)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.PushResponse{
		CheckoutRequestID: "ws_CO_TEST",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

type deny struct{}

func (deny) Allow(context.Context, string) (bool, int) { return false, 0 }

// fixture wires a service around one landlord (id 5) with a verified own
// M-Pesa config and one pending rent invoice (id 42, tenant user 3).
type fixture struct {
	svc    *Service
	pusher *fakePusher
	trx    *fakeTrxRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Cfg{}
	cfg.Sec.AESKey = testKey
	cfg.Platform = config.PlatformMpesaCfg{
		Shortcode: "174379", ConsumerKey: "pk", ConsumerSecret: "ps", Passkey: "pp", Environment: "sandbox",
	}

	own, err := gatewayconfig.New(5, gatewayconfig.KindMpesaCustom, "600999", gatewayconfig.EnvSandbox)
	if err != nil {
		t.Fatal(err)
	}
	own.Verified = true
	for name, val := range map[string]string{
		gatewayconfig.FieldConsumerKey:    "ck",
		gatewayconfig.FieldConsumerSecret: "cs",
		gatewayconfig.FieldPasskey:        "pass",
	} {
		if err := own.SetEncryptedField(name, val, testKey); err != nil {
			t.Fatal(err)
		}
	}

	configs := &fakeConfigRepo{configs: []*gatewayconfig.Config{own}}
	landlords := &fakeLandlordRepo{landlords: map[int64]*landlord.Landlord{
		5: {ID: 5, Name: "Mary", PaymentPreference: landlord.PreferPlatform, Status: landlord.StatusActive},
	}}
	invoices := &fakeInvoiceRepo{
		invoices: map[int64]*invoice.Invoice{
			42: {ID: 42, TenantID: 3, LeaseID: 9, LandlordID: 5, Kind: invoice.KindRent, Amount: 5000, Status: invoice.StatusPending},
		},
		parties: map[int64]invoice.Parties{
			42: {TenantUserID: 3, OwnerUserID: 50, ManagerUserID: 60, LandlordID: 5},
		},
	}

	resolver := vault.NewResolver(configs, landlords, invoices, cfg)
	pusher := &fakePusher{}
	trx := &fakeTrxRepo{}
	pushers := map[gatewayconfig.Kind]gateway.Pusher{
		gatewayconfig.KindMpesaCustom:   pusher,
		gatewayconfig.KindMpesaPlatform: pusher,
	}
	svc := NewService(resolver, invoices, trx, pushers, ratelimit.Unlimited{}, 250000, "https://pay.example.com")
	return &fixture{svc: svc, pusher: pusher, trx: trx}
}

func tenantActor() auth.Actor { return auth.Actor{UserID: 3, Role: auth.RoleTenant} }

func rentReq() Request {
	return Request{Purpose: PurposeRent, InvoiceID: 42, Phone: "0712345678", Amount: 5000}
}

func TestParsePurpose(t *testing.T) {
	cases := map[string]Purpose{
		"rent":           PurposeRent,
		"service_charge": PurposeServiceCharge,
		"service-charge": PurposeServiceCharge,
		"Service-Charge": PurposeServiceCharge,
		" subscription ": PurposeSubscription,
	}
	for in, want := range cases {
		if got := ParsePurpose(in); got != want {
			t.Errorf("ParsePurpose(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitiateRentHappyPath(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Initiate(context.Background(), tenantActor(), rentReq())
	if err != nil {
		t.Fatal(err)
	}
	if res.CorrelationID != "ws_CO_TEST" {
		t.Errorf("correlation id = %q", res.CorrelationID)
	}
	if res.Gateway != gatewayconfig.KindMpesaCustom {
		t.Errorf("gateway = %s, want the landlord's own rail", res.Gateway)
	}
	if len(f.pusher.calls) != 1 {
		t.Fatalf("push calls = %d, want 1", len(f.pusher.calls))
	}
	push := f.pusher.calls[0]
	if push.Phone != "254712345678" {
		t.Errorf("pushed phone = %q, want normalized", push.Phone)
	}
	if push.AccountReference != "INV-42" {
		t.Errorf("account reference = %q, want INV-42", push.AccountReference)
	}
	if len(f.trx.created) != 1 {
		t.Fatalf("pending transactions = %d, want 1", len(f.trx.created))
	}
	created := f.trx.created[0]
	if created.Reference() != res.Reference {
		t.Error("pending row must carry the returned reference in metadata")
	}
	if created.InvoiceID != 42 || created.LandlordID != 5 {
		t.Errorf("pending row wiring wrong: %+v", created)
	}
}

func TestInitiateAuthorizationMatrix(t *testing.T) {
	cases := []struct {
		name    string
		actor   auth.Actor
		purpose Purpose
		allowed bool
	}{
		{"tenant pays own rent", auth.Actor{UserID: 3, Role: auth.RoleTenant}, PurposeRent, true},
		{"owner pushes tenant rent", auth.Actor{UserID: 50, Role: auth.RoleLandlord, LandlordID: 5}, PurposeRent, true},
		{"manager pushes tenant rent", auth.Actor{UserID: 60, Role: auth.RoleManager, LandlordID: 5}, PurposeRent, true},
		{"stranger denied rent", auth.Actor{UserID: 99, Role: auth.RoleTenant}, PurposeRent, false},
		{"admin passes", auth.Actor{UserID: 1, Role: auth.RoleAdmin}, PurposeRent, true},
		{"owning landlord pays service charge", auth.Actor{UserID: 50, Role: auth.RoleLandlord, LandlordID: 5}, PurposeServiceCharge, true},
		{"tenant denied service charge", auth.Actor{UserID: 3, Role: auth.RoleTenant}, PurposeServiceCharge, false},
		{"other landlord denied service charge", auth.Actor{UserID: 80, Role: auth.RoleLandlord, LandlordID: 8}, PurposeServiceCharge, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			req := rentReq()
			req.Purpose = c.purpose
			_, err := f.svc.Initiate(context.Background(), c.actor, req)
			if c.allowed && err != nil {
				t.Fatalf("want allowed, got %v", err)
			}
			if !c.allowed && !apperr.IsKind(err, apperr.KindUnauthorized) {
				t.Fatalf("want unauthorized, got %v", err)
			}
		})
	}
}

func TestInitiateDryRunSkipsPushAndPersistence(t *testing.T) {
	f := newFixture(t)
	req := rentReq()
	req.DryRun = true

	res, err := f.svc.Initiate(context.Background(), tenantActor(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.DryRun {
		t.Error("result must be marked dry-run")
	}
	if res.Gateway != gatewayconfig.KindMpesaCustom {
		t.Error("dry run must still resolve the real rail")
	}
	if len(f.pusher.calls) != 0 {
		t.Error("dry run must not push")
	}
	if len(f.trx.created) != 0 {
		t.Error("dry run must not persist a transaction")
	}
}

func TestInitiateDryRunStillAuthorizes(t *testing.T) {
	f := newFixture(t)
	req := rentReq()
	req.DryRun = true

	_, err := f.svc.Initiate(context.Background(), auth.Actor{UserID: 99, Role: auth.RoleTenant}, req)
	if !apperr.IsKind(err, apperr.KindUnauthorized) {
		t.Fatalf("dry run must run the same authorization, got %v", err)
	}
}

func TestInitiateValidation(t *testing.T) {
	f := newFixture(t)

	req := rentReq()
	req.Phone = "12345"
	if _, err := f.svc.Initiate(context.Background(), tenantActor(), req); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("bad phone: got %v", err)
	}

	req = rentReq()
	req.Amount = 0
	if _, err := f.svc.Initiate(context.Background(), tenantActor(), req); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("zero amount: got %v", err)
	}

	req = rentReq()
	req.Amount = 300000
	if _, err := f.svc.Initiate(context.Background(), tenantActor(), req); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("over ceiling: got %v", err)
	}

	req = rentReq()
	req.InvoiceID = 0
	if _, err := f.svc.Initiate(context.Background(), tenantActor(), req); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("missing invoice: got %v", err)
	}

	req = rentReq()
	req.InvoiceID = 777
	if _, err := f.svc.Initiate(context.Background(), tenantActor(), req); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("unknown invoice: got %v", err)
	}
}

func TestInitiateThrottled(t *testing.T) {
	f := newFixture(t)
	f.svc.limiter = deny{}

	_, err := f.svc.Initiate(context.Background(), tenantActor(), rentReq())
	if !apperr.IsKind(err, apperr.KindThrottled) {
		t.Fatalf("got %v, want throttled", err)
	}
	if len(f.pusher.calls) != 0 {
		t.Error("throttled request must not reach the gateway")
	}
}

func TestInitiateSubscriptionUsesPlatform(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Initiate(context.Background(), tenantActor(), Request{
		Purpose: PurposeSubscription, Phone: "0712345678", Amount: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Gateway != gatewayconfig.KindMpesaPlatform {
		t.Fatalf("gateway = %s, want mpesa_platform", res.Gateway)
	}
	if f.pusher.creds[0].Shortcode != "174379" {
		t.Errorf("shortcode = %s, want the platform paybill", f.pusher.creds[0].Shortcode)
	}
	if f.pusher.calls[0].AccountReference != "SUBSCRIPTION" {
		t.Errorf("account reference = %q", f.pusher.calls[0].AccountReference)
	}
}

func TestInitiateGatewayRejectionKeepsProviderText(t *testing.T) {
	f := newFixture(t)
	f.pusher.err = &gateway.Error{Code: "500.001.1001", Description: "Unable to lock subscriber"}

	_, err := f.svc.Initiate(context.Background(), tenantActor(), rentReq())
	if !apperr.IsKind(err, apperr.KindGateway) {
		t.Fatalf("got %v, want gateway_rejected", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || !strings.Contains(ae.Msg, "Unable to lock subscriber") {
		t.Errorf("provider description must survive verbatim, got %q", err.Error())
	}
	if len(f.trx.created) != 0 {
		t.Error("rejected push must not persist a pending transaction")
	}
}

func TestInitiateDistinctReferencesPerAttempt(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.Initiate(context.Background(), tenantActor(), rentReq())
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.svc.Initiate(context.Background(), tenantActor(), rentReq())
	if err != nil {
		t.Fatal(err)
	}
	if a.Reference == b.Reference {
		t.Error("each attempt must carry its own reference")
	}
}
