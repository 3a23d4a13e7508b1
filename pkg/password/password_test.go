package password

import "testing"

func TestHashPasswordProducesVerifiableHash(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "" || hash == "correct horse battery staple" {
		t.Fatalf("expected a bcrypt hash distinct from the plaintext, got %q", hash)
	}
	if err := VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("VerifyPassword: %v", err)
	}
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	hash, err := HashPassword("the-real-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "not-the-password"); err == nil {
		t.Error("expected VerifyPassword to reject a mismatched password")
	}
}

func TestHashPasswordIsSaltedPerCall(t *testing.T) {
	h1, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Error("expected two hashes of the same password to differ due to bcrypt's per-call salt")
	}
}

func TestIsValidPasswordEnforcesMinimumLength(t *testing.T) {
	if IsValidPassword("short") {
		t.Error("expected a 5-character password to be rejected")
	}
	if !IsValidPassword("longenough") {
		t.Error("expected a 10-character password to be accepted")
	}
}
