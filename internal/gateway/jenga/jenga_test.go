package jenga

import "testing"

const sampleIPN = `{
	"callbackType": "IPN",
	"status": "SUCCESS",
	"customer": {"name": "A N Other", "mobileNumber": "254722000000", "reference": ""},
	"transaction": {
		"date": "2026-03-02",
		"reference": "S4407GHDE8",
		"paymentMode": "MPS",
		"amount": "1500.00",
		"billNumber": "INV-77",
		"servedBy": "",
		"additionalInfo": ""
	},
	"bank": {"reference": "707700090430", "transactionType": "C", "account": "0011547896523"}
}`

func TestParseIPN(t *testing.T) {
	evt, account, err := ParseIPN([]byte(sampleIPN))
	if err != nil {
		t.Fatal(err)
	}
	if account != "0011547896523" {
		t.Errorf("merchant account = %q", account)
	}
	if !evt.Success {
		t.Error("SUCCESS status is success")
	}
	if evt.GatewayRef != "S4407GHDE8" {
		t.Errorf("receipt = %q", evt.GatewayRef)
	}
	if evt.Amount != 1500 {
		t.Errorf("amount = %d, want 1500", evt.Amount)
	}
	if evt.ReferenceHint != "INV-77" {
		t.Errorf("reference hint = %q", evt.ReferenceHint)
	}
	if evt.Phone != "254722000000" {
		t.Errorf("phone = %q", evt.Phone)
	}
}

func TestParseIPNFailedStatus(t *testing.T) {
	body := []byte(`{
		"status": "FAILED",
		"transaction": {"reference": "S4407GHDE9", "amount": "100", "additionalInfo": "insufficient funds"},
		"bank": {"account": "0011547896523"}
	}`)
	evt, _, err := ParseIPN(body)
	if err != nil {
		t.Fatal(err)
	}
	if evt.Success {
		t.Error("FAILED status is a failure")
	}
	if evt.FailureReason != "insufficient funds" {
		t.Errorf("reason = %q", evt.FailureReason)
	}
}

func TestParseIPNMissingStatusDefaultsToSuccess(t *testing.T) {
	body := []byte(`{
		"transaction": {"reference": "S4407GHDF0", "amount": "250"},
		"bank": {"account": "0011547896523"}
	}`)
	evt, _, err := ParseIPN(body)
	if err != nil {
		t.Fatal(err)
	}
	if !evt.Success {
		t.Error("a delivered IPN without a status reports a settled payment")
	}
}

func TestParseIPNRejectsUnrecognizedShape(t *testing.T) {
	if _, _, err := ParseIPN([]byte(`{"foo":"bar"}`)); err == nil {
		t.Error("shape without a transaction reference must error")
	}
}

func TestVerifyBasicAuth(t *testing.T) {
	if !VerifyBasicAuth("user", "pass", "user", "pass") {
		t.Error("matching pair must verify")
	}
	if VerifyBasicAuth("user", "wrong", "user", "pass") {
		t.Error("wrong password must fail")
	}
	if VerifyBasicAuth("", "", "user", "pass") {
		t.Error("missing credentials must fail")
	}
}
