package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const nonceBytes = 32

const (
	stateKeyPrefix      = "state"
	credentialKeyPrefix = "credentials"
	keySeparator        = ":"
)

// GenerateNonce returns 32 random bytes as unpadded base64url text.
func GenerateNonce() (string, error) {
	raw := make([]byte, nonceBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// KeySpace builds the KV keys for a (org, user) pair.
type KeySpace struct {
	Namespace string
}

func (k KeySpace) StateKey(orgID, userID string) string {
	return k.key(stateKeyPrefix, orgID, userID)
}

func (k KeySpace) CredentialKey(orgID, userID string) string {
	return k.key(credentialKeyPrefix, orgID, userID)
}

func (k KeySpace) key(prefix, orgID, userID string) string {
	key := prefix + keySeparator + orgID + keySeparator + userID
	if ns := strings.TrimSpace(k.Namespace); ns != "" {
		return ns + keySeparator + key
	}
	return key
}

func EncodeAuthorizationState(state AuthorizationState) (string, error) {
	encoded, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("core: encode oauth state: %w", err)
	}
	return string(encoded), nil
}

func DecodeAuthorizationState(raw string) (AuthorizationState, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AuthorizationState{}, fmt.Errorf("core: oauth state is required")
	}
	state := AuthorizationState{}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return AuthorizationState{}, fmt.Errorf("core: decode oauth state: %w", err)
	}
	if state.Nonce == "" || state.OrgID == "" || state.UserID == "" {
		return AuthorizationState{}, fmt.Errorf("core: oauth state is incomplete")
	}
	if strings.Contains(state.OrgID, keySeparator) || strings.Contains(state.UserID, keySeparator) {
		return AuthorizationState{}, fmt.Errorf("core: oauth state carries invalid ids")
	}
	return state, nil
}

// NonceEqual compares two nonces in constant time.
func NonceEqual(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}
