package core

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateNonce(t *testing.T) {
	first, err := GenerateNonce()
	if err != nil {
		t.Fatalf("generate nonce: %v", err)
	}
	second, err := GenerateNonce()
	if err != nil {
		t.Fatalf("generate nonce: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct nonces")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("expected base64url nonce: %v", err)
	}
	if len(decoded) != 32 {
		t.Fatalf("expected 32 random bytes, got %d", len(decoded))
	}
}

func TestAuthorizationStateRoundTrip(t *testing.T) {
	encoded, err := EncodeAuthorizationState(AuthorizationState{Nonce: "n", UserID: "u", OrgID: "o"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(encoded, `"state":"n"`) {
		t.Fatalf("expected wire field state, got %s", encoded)
	}
	decoded, err := DecodeAuthorizationState(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Nonce != "n" || decoded.UserID != "u" || decoded.OrgID != "o" {
		t.Fatalf("unexpected state %+v", decoded)
	}
}

func TestKeySpace(t *testing.T) {
	plain := KeySpace{}
	if got := plain.StateKey("org", "usr"); got != "state:org:usr" {
		t.Fatalf("unexpected state key %q", got)
	}
	if got := plain.CredentialKey("org", "usr"); got != "credentials:org:usr" {
		t.Fatalf("unexpected credential key %q", got)
	}
	namespaced := KeySpace{Namespace: "hubspot"}
	if got := namespaced.CredentialKey("org", "usr"); got != "hubspot:credentials:org:usr" {
		t.Fatalf("unexpected namespaced key %q", got)
	}
}

func TestNonceEqual(t *testing.T) {
	if !NonceEqual("abc", "abc") {
		t.Fatalf("expected equal nonces")
	}
	if NonceEqual("abc", "abd") || NonceEqual("", "") {
		t.Fatalf("expected mismatch")
	}
}
