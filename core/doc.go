// Package core contains the integration items domain contracts, entities, and
// orchestration logic: the OAuth state/credential lifecycle and the service
// entry points used by callers. Provider, transport, and storage adapters
// depend on this package; core must not depend on them.
package core
