package crypto

import (
	"regexp"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret123", 10)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret123"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestPasswordHashingCostFallback(t *testing.T) {
	hash, err := HashPassword("secret123", 99)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret123"); err != nil {
		t.Fatalf("expected password to match")
	}
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	if err := CheckPassword("not-a-bcrypt-hash", "secret123"); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}

func TestReceiptNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^RCPT-\d+-\d{4}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		no := NewReceiptNumber()
		if !pattern.MatchString(no) {
			t.Fatalf("unexpected receipt number %q", no)
		}
		seen[no] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected receipt numbers to vary")
	}
}
