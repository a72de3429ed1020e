package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckSecret(t *testing.T) {
	HashCost = bcrypt.MinCost

	hash, err := HashSecret("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the secret")
	}
	if !CheckSecret(hash, "hunter2") {
		t.Error("expected matching secret to check")
	}
	if CheckSecret(hash, "hunter3") {
		t.Error("expected wrong secret to fail")
	}
	if CheckSecret("", "hunter2") {
		t.Error("expected empty hash to fail")
	}
}
