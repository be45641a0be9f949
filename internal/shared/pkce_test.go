package shared

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateRandomString(t *testing.T) {
	t.Run("Length", func(t *testing.T) {
		for _, n := range []int{16, 64, 128} {
			s, err := GenerateRandomString(n)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(s) != n {
				t.Errorf("expected length %d, got %d", n, len(s))
			}
		}
	})

	t.Run("Charset", func(t *testing.T) {
		s, err := GenerateRandomString(256)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, c := range s {
			if !strings.ContainsRune(possible, c) {
				t.Errorf("character %q outside allowed charset", c)
			}
		}
	})

	t.Run("Uniqueness", func(t *testing.T) {
		a, _ := GenerateRandomString(64)
		b, _ := GenerateRandomString(64)
		if a == b {
			t.Error("two generated strings should not collide")
		}
	})

	t.Run("Invalid Length", func(t *testing.T) {
		if _, err := GenerateRandomString(0); err == nil {
			t.Error("expected error for zero length")
		}
		if _, err := GenerateRandomString(-1); err == nil {
			t.Error("expected error for negative length")
		}
	})
}

func TestCodeChallenge(t *testing.T) {
	t.Run("S256 Derivation", func(t *testing.T) {
		for range 10 {
			verifier, err := GenerateRandomString(64)
			if err != nil {
				t.Fatalf("failed to generate verifier: %v", err)
			}

			challenge := CodeChallenge(verifier)

			sum := sha256.Sum256([]byte(verifier))
			want := base64.RawURLEncoding.EncodeToString(sum[:])
			if challenge != want {
				t.Errorf("expected challenge %s, got %s", want, challenge)
			}

			if challenge == verifier {
				t.Error("challenge must never equal the verifier")
			}
		}
	})

	t.Run("No Padding", func(t *testing.T) {
		challenge := CodeChallenge("some-verifier")
		if strings.ContainsAny(challenge, "=+/") {
			t.Errorf("challenge %s contains non-base64url characters", challenge)
		}
	})

	t.Run("Known Vector", func(t *testing.T) {
		// RFC 7636 appendix B
		verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
		want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
		if got := CodeChallenge(verifier); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})
}
