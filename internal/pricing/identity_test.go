package pricing

import (
	"strings"
	"testing"
)

func TestCustomerKeyNormalisesEmail(t *testing.T) {
	if CustomerKey(" Foo@Bar.com ") != CustomerKey("foo@bar.com") {
		t.Fatal("case and whitespace variants must map to one customer")
	}
	if CustomerKey("foo@bar.com") == CustomerKey("bar@foo.com") {
		t.Fatal("distinct emails must not collide")
	}
	if len(CustomerKey("foo@bar.com")) != 64 {
		t.Fatal("key should be a sha256 hex digest")
	}
}

func TestNewReferralCodeShape(t *testing.T) {
	code := NewReferralCode()
	if len(code) != 8 {
		t.Fatalf("expected 8-char code, got %q", code)
	}
	if code != strings.ToUpper(code) {
		t.Fatalf("code should be uppercase, got %q", code)
	}
	if NewReferralCode() == code {
		t.Fatal("codes should not repeat")
	}
}
