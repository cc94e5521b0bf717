package gatewayconfig

import "testing"

var key = []byte("0123456789abcdef0123456789abcdef")

func TestNewValidation(t *testing.T) {
	if _, err := New(0, KindMpesaCustom, "600999", EnvSandbox); err == nil {
		t.Error("zero landlord must be rejected")
	}
	if _, err := New(1, Kind("airtel"), "600999", EnvSandbox); err == nil {
		t.Error("unknown kind must be rejected")
	}
	if _, err := New(1, KindJenga, "  ", EnvSandbox); err == nil {
		t.Error("blank shortcode must be rejected")
	}
	if _, err := New(1, KindJenga, "0011", Environment("staging")); err == nil {
		t.Error("unknown environment must be rejected")
	}
	cfg, err := New(1, KindMpesaCustom, " 600999 ", EnvSandbox)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Shortcode != "600999" {
		t.Errorf("shortcode = %q, want trimmed", cfg.Shortcode)
	}
	if !cfg.Active || cfg.Verified {
		t.Error("new config starts active and unverified")
	}
}

func TestEncryptedFieldRoundTrip(t *testing.T) {
	cfg, _ := New(1, KindMpesaCustom, "600999", EnvSandbox)
	if err := cfg.SetEncryptedField(FieldPasskey, "super-secret", key); err != nil {
		t.Fatal(err)
	}
	if cfg.EncryptedFields[FieldPasskey] == "super-secret" {
		t.Fatal("field must not be stored in plaintext")
	}

	plain, present, err := cfg.DecryptField(FieldPasskey, key)
	if err != nil || !present {
		t.Fatalf("decrypt: present=%v err=%v", present, err)
	}
	if plain != "super-secret" {
		t.Errorf("got %q", plain)
	}
}

func TestDecryptFieldMissingVsBroken(t *testing.T) {
	cfg, _ := New(1, KindMpesaCustom, "600999", EnvSandbox)

	// Missing: no value, no error.
	if _, present, err := cfg.DecryptField(FieldAPIKey, key); present || err != nil {
		t.Errorf("missing field: present=%v err=%v", present, err)
	}

	// Present but broken: an error, never an empty credential.
	cfg.EncryptedFields[FieldAPIKey] = "bm90LXJlYWwtY2lwaGVydGV4dA=="
	if _, _, err := cfg.DecryptField(FieldAPIKey, key); err == nil {
		t.Error("broken ciphertext must error")
	}
}

func TestUsable(t *testing.T) {
	cfg, _ := New(1, KindMpesaCustom, "600999", EnvSandbox)
	if cfg.Usable() {
		t.Error("unverified config is not usable")
	}
	cfg.Verified = true
	if !cfg.Usable() {
		t.Error("active and verified is usable")
	}
	cfg.Active = false
	if cfg.Usable() {
		t.Error("inactive config is not usable")
	}
}
