package ids

import (
	"regexp"
	"testing"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	if !IsValid(a) || !IsValid(b) {
		t.Fatalf("expected valid UUIDs, got %q and %q", a, b)
	}
	if a == b {
		t.Error("expected distinct ids")
	}
	if a[14] != '7' {
		t.Errorf("expected version 7 UUID, got %q", a)
	}
}

func TestShareToken(t *testing.T) {
	projectID := New()
	token, err := ShareToken(projectID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pattern := regexp.MustCompile(`^shared-` + regexp.QuoteMeta(projectID) + `-[0-9a-z]{8}$`)
	if !pattern.MatchString(token) {
		t.Errorf("token %q does not match expected format", token)
	}

	got, ok := ProjectIDFromShareToken(token)
	if !ok || got != projectID {
		t.Errorf("expected project id %q, got %q (ok=%v)", projectID, got, ok)
	}
}

func TestProjectIDFromShareToken_Invalid(t *testing.T) {
	for _, token := range []string{"", "shared-", "abc-12345678", "shared-p1-short", "shared--12345678"} {
		if _, ok := ProjectIDFromShareToken(token); ok {
			t.Errorf("expected %q to be rejected", token)
		}
	}
}

func TestRandomBase36(t *testing.T) {
	s, err := RandomBase36(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 32 {
		t.Fatalf("expected 32 chars, got %d", len(s))
	}
	if !regexp.MustCompile(`^[0-9a-z]+$`).MatchString(s) {
		t.Errorf("unexpected characters in %q", s)
	}
}
