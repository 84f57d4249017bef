package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const callbackContentType = "text/html; charset=utf-8"

var closeWindowPage = []byte(`<html>
    <script>
        window.close();
    </script>
</html>
`)

// Authorize stores a fresh anti-forgery state for the pair and returns the
// provider authorization URL carrying it.
func (s *Service) Authorize(ctx context.Context, userID string, orgID string) (authURL string, err error) {
	startedAt := time.Now()
	fields := map[string]any{"provider_id": s.providerID(), "org_id": orgID, "user_id": userID}
	defer func() {
		s.observeOperation(ctx, startedAt, "authorize", err, fields)
	}()

	if s.authProvider == nil {
		return "", fmt.Errorf("core: authorization provider is not configured")
	}
	userID = strings.TrimSpace(userID)
	orgID = strings.TrimSpace(orgID)
	if err := validatePairIDs(userID, orgID); err != nil {
		return "", err
	}

	nonce, err := s.nonceSource()
	if err != nil {
		return "", err
	}
	encoded, err := EncodeAuthorizationState(AuthorizationState{
		Nonce:  nonce,
		UserID: userID,
		OrgID:  orgID,
	})
	if err != nil {
		return "", err
	}
	if err := s.kvStore.Set(ctx, s.keys.StateKey(orgID, userID), []byte(encoded), s.config.OAuth.StateTTL()); err != nil {
		return "", fmt.Errorf("core: store oauth state: %w", err)
	}
	return s.authProvider.AuthorizationURL(encoded)
}

// HandleCallback validates the provider redirect, exchanges the code, and
// parks the raw token response under the credentials key.
func (s *Service) HandleCallback(ctx context.Context, req CallbackRequest) (resp CallbackResponse, err error) {
	startedAt := time.Now()
	fields := map[string]any{"provider_id": s.providerID()}
	defer func() {
		s.observeOperation(ctx, startedAt, "handle_callback", err, fields)
	}()

	if s.authProvider == nil {
		return CallbackResponse{}, fmt.Errorf("core: authorization provider is not configured")
	}
	query := req.Query
	if providerErr := strings.TrimSpace(query.Get("error")); providerErr != "" {
		return CallbackResponse{}, &ProviderRedirectError{
			Code:        providerErr,
			Description: query.Get("error_description"),
		}
	}

	state, decodeErr := DecodeAuthorizationState(query.Get("state"))
	if decodeErr != nil {
		return CallbackResponse{}, &StateMismatchError{Reason: decodeErr.Error()}
	}
	fields["org_id"] = state.OrgID
	fields["user_id"] = state.UserID

	stateKey := s.keys.StateKey(state.OrgID, state.UserID)
	stored, err := s.kvStore.Get(ctx, stateKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return CallbackResponse{}, &StateMismatchError{OrgID: state.OrgID, UserID: state.UserID, Reason: "state not found or expired"}
		}
		return CallbackResponse{}, fmt.Errorf("core: load oauth state: %w", err)
	}
	saved, decodeErr := DecodeAuthorizationState(string(stored))
	if decodeErr != nil || !NonceEqual(saved.Nonce, state.Nonce) {
		return CallbackResponse{}, &StateMismatchError{OrgID: state.OrgID, UserID: state.UserID}
	}

	code := strings.TrimSpace(query.Get("code"))
	if code == "" {
		return CallbackResponse{}, badInputError("authorization code is required")
	}

	var token []byte
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := s.kvStore.Delete(groupCtx, stateKey); err != nil {
			return fmt.Errorf("core: delete oauth state: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		raw, err := s.authProvider.ExchangeCode(groupCtx, code)
		if err != nil {
			return err
		}
		token = raw
		return nil
	})
	if err := group.Wait(); err != nil {
		return CallbackResponse{}, err
	}

	credentialKey := s.keys.CredentialKey(state.OrgID, state.UserID)
	if err := s.kvStore.Set(ctx, credentialKey, token, s.config.OAuth.CredentialTTL()); err != nil {
		return CallbackResponse{}, fmt.Errorf("core: store credentials: %w", err)
	}

	return CallbackResponse{
		ContentType: callbackContentType,
		Body:        append([]byte(nil), closeWindowPage...),
	}, nil
}

// ConsumeCredentials returns and removes the stored credential for the pair.
// A second call for the same authorization reports NoCredentialError.
func (s *Service) ConsumeCredentials(ctx context.Context, userID string, orgID string) (cred Credential, err error) {
	startedAt := time.Now()
	fields := map[string]any{"provider_id": s.providerID(), "org_id": orgID, "user_id": userID}
	defer func() {
		s.observeOperation(ctx, startedAt, "consume_credentials", err, fields)
	}()

	userID = strings.TrimSpace(userID)
	orgID = strings.TrimSpace(orgID)
	if err := validatePairIDs(userID, orgID); err != nil {
		return Credential{}, err
	}

	raw, err := s.kvStore.Take(ctx, s.keys.CredentialKey(orgID, userID))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Credential{}, &NoCredentialError{OrgID: orgID, UserID: userID}
		}
		return Credential{}, fmt.Errorf("core: load credentials: %w", err)
	}
	decoded, err := DecodeCredential(raw)
	if err != nil {
		return Credential{}, err
	}
	if decoded.Empty() {
		return Credential{}, &NoCredentialError{OrgID: orgID, UserID: userID}
	}
	decoded.OrgID = orgID
	decoded.UserID = userID
	return decoded, nil
}

// validatePairIDs rejects ids that would make two pairs share a store key.
func validatePairIDs(userID, orgID string) error {
	if userID == "" || orgID == "" {
		return badInputError("user_id and org_id are required")
	}
	if strings.Contains(userID, keySeparator) || strings.Contains(orgID, keySeparator) {
		return badInputError("user_id and org_id must not contain " + strconv.Quote(keySeparator))
	}
	return nil
}
