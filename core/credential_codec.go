package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type tokenResponsePayload struct {
	TokenType    string          `json:"token_type"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    json.RawMessage `json:"expires_in"`
}

// DecodeCredential reads a stored token endpoint response. The raw bytes are
// kept on the credential as received. JSON null, an empty object, and empty
// input decode to an empty credential.
func DecodeCredential(raw []byte) (Credential, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Credential{}, nil
	}

	if trimmed[0] != '{' {
		return decodeFormCredential(trimmed)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Credential{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	if len(fields) == 0 {
		return Credential{}, nil
	}
	payload := tokenResponsePayload{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return Credential{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	return Credential{
		TokenType:    strings.TrimSpace(payload.TokenType),
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		ExpiresIn:    parseExpiresIn(payload.ExpiresIn),
		Raw:          append([]byte(nil), raw...),
	}, nil
}

func decodeFormCredential(raw []byte) (Credential, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return Credential{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	access := strings.TrimSpace(values.Get("access_token"))
	if access == "" {
		return Credential{}, fmt.Errorf("core: decode credential payload: access_token missing")
	}
	expires, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return Credential{
		TokenType:    strings.TrimSpace(values.Get("token_type")),
		AccessToken:  access,
		RefreshToken: strings.TrimSpace(values.Get("refresh_token")),
		ExpiresIn:    expires,
		Raw:          append([]byte(nil), raw...),
	}, nil
}

func parseExpiresIn(raw json.RawMessage) int64 {
	value := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if value == "" || value == "null" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int64(parsed)
}
