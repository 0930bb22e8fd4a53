package security_test

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/neomorfeo/schoolhub/internal/domain"
	"github.com/neomorfeo/schoolhub/internal/security"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := security.BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the password")
	}

	if err := h.Compare(hash, "s3cret-pass"); err != nil {
		t.Errorf("Compare with right password: %v", err)
	}
	if err := h.Compare(hash, "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Compare with wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestBcryptHasher_RejectsEmptyAndTooLong(t *testing.T) {
	h := security.BcryptHasher{Cost: bcrypt.MinCost}

	var verr *domain.ValidationError
	if _, err := h.Hash(""); !errors.As(err, &verr) {
		t.Errorf("Hash(\"\") = %v, want ValidationError", err)
	}
	if _, err := h.Hash(strings.Repeat("x", 100)); !errors.As(err, &verr) {
		t.Errorf("Hash(long) = %v, want ValidationError", err)
	}
}
