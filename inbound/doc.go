// Package inbound exposes the provider redirect endpoint of the OAuth flow
// as an http.Handler.
package inbound
