package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("hash not in PHC format: %s", hash)
	}

	ok, err := VerifyOperatorPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyOperatorPassword: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = VerifyOperatorPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyOperatorPassword: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestVerifyOperatorPasswordPlaintext(t *testing.T) {
	ok, err := VerifyOperatorPassword("hunter2", "hunter2")
	if err != nil || !ok {
		t.Errorf("plaintext match: ok=%v err=%v", ok, err)
	}

	ok, err = VerifyOperatorPassword("hunter3", "hunter2")
	if err != nil || ok {
		t.Errorf("plaintext mismatch: ok=%v err=%v", ok, err)
	}

	// Empty configured password never matches.
	ok, err = VerifyOperatorPassword("", "")
	if err != nil || ok {
		t.Errorf("empty configured password: ok=%v err=%v", ok, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	for _, hash := range []string{
		"$argon2id$bogus",
		"$argon2id$v=19$m=65536,t=3,p=1$notbase64!$hash",
	} {
		if _, err := VerifyOperatorPassword("pw", hash); err == nil {
			t.Errorf("expected error for malformed hash %q", hash)
		}
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	h1, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password must differ by salt")
	}
}
