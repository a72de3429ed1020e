package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)

	for _, c := range []Caller{Parent(3), Child(3, 9)} {
		tok, exp, err := iss.Issue(c)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if time.Until(exp) <= 0 {
			t.Errorf("expiry %v is not in the future", exp)
		}

		got, err := iss.Parse(tok)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if got != c {
			t.Errorf("parsed %+v, want %+v", got, c)
		}
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, _, err := NewIssuer("one", time.Hour).Issue(Parent(1))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = NewIssuer("two", time.Hour).Parse(tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer("secret", time.Minute)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, err := iss.Issue(Parent(1))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = NewIssuer("secret", time.Minute).Parse(tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := NewIssuer("secret", time.Hour).Parse("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
