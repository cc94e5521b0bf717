package gateway

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"254712345678", "254712345678", false},
		{"0712345678", "254712345678", false},
		{"+254712345678", "254712345678", false},
		{"0712 345 678", "254712345678", false},
		{"0712-345-678", "254712345678", false},
		{"254112345678", "254112345678", false},
		{"0110123456", "254110123456", false},
		{"12345", "", true},
		{"255712345678", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := NormalizePhone(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q): want error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(100, 250000); err != nil {
		t.Errorf("100 within ceiling: %v", err)
	}
	if err := ValidateAmount(0, 250000); err == nil {
		t.Error("zero amount must be rejected")
	}
	if err := ValidateAmount(-5, 250000); err == nil {
		t.Error("negative amount must be rejected")
	}
	if err := ValidateAmount(250001, 250000); err == nil {
		t.Error("over-ceiling amount must be rejected")
	}
	if err := ValidateAmount(1000000, 0); err != nil {
		t.Errorf("zero ceiling disables the cap: %v", err)
	}
}

func TestCallbackEventUniqueRef(t *testing.T) {
	e := CallbackEvent{GatewayRef: "R1", CorrelationID: "C1", ReferenceHint: "H1"}
	if e.UniqueRef() != "R1" {
		t.Error("receipt code must win")
	}
	e.GatewayRef = ""
	if e.UniqueRef() != "C1" {
		t.Error("correlation id is the fallback")
	}
	e.CorrelationID = ""
	if e.UniqueRef() != "H1" {
		t.Error("reference hint is the last resort")
	}
}
