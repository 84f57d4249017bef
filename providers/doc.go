// Package providers contains the OAuth2 authorization-code client shared by
// CRM provider packages such as providers/hubspot.
package providers
