// Package reflector is the learning core: it replays a completed session's
// journal chronologically, identifies the winning and losing hypotheses,
// reinforces the universal pattern for the session's error signature and
// maintains the troubleshooting playbooks grown from repeated successes.
//
// Reflection is idempotent. Every invocation re-derives its analysis from
// the store's current content and an already-analyzed session is a no-op,
// so the maintenance sweep can safely re-run at any cadence.
package reflector
