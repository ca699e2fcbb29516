package security

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("unit-test-secret"))

	token, exp, err := Generate(opts, "u_1001")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatal("expiry must be in the future")
	}

	claims, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID() != "u_1001" {
		t.Fatalf("subject = %q, want u_1001", claims.UserID())
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("secret-a")), "u_1001")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("secret-b")), token); err == nil {
		t.Fatal("token signed with another secret must fail")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	// Generate treats TTL<=0 as "use default", so sign with the smallest
	// positive TTL and wait it out.
	opts := DefaultOptions([]byte("unit-test-secret"))
	opts.TTL = time.Millisecond
	token, _, err := Generate(opts, "u_1001")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(1100 * time.Millisecond) // exp has second granularity
	if _, err := Verify(opts, token); err == nil {
		t.Fatal("expired token must fail verification")
	}
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: []byte("s"), Alg: "RS256"}
	_, _, err := Generate(opts, "u_1001")
	if err == nil {
		t.Fatal("non-HMAC alg must be rejected")
	}
	if !strings.Contains(err.Error(), "unsupported alg") {
		t.Fatalf("error should name the unsupported alg, got: %v", err)
	}
}

func TestAlgVariants(t *testing.T) {
	for _, alg := range []string{"HS256", "hs384", " HS512 "} {
		opts := Options{Secret: []byte("unit-test-secret"), Alg: alg, TTL: time.Hour}
		token, _, err := Generate(opts, "u_1001")
		if err != nil {
			t.Fatalf("generate alg=%s: %v", alg, err)
		}
		if _, err := Verify(opts, token); err != nil {
			t.Fatalf("verify alg=%s: %v", alg, err)
		}
	}
}
