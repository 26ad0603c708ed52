// Package effect describes asynchronous, cancellable units of work that
// produce actions.
//
// An Effect is an immutable description. Nothing happens until Run is called
// with a Context carrying the dependencies and a cancellation Registry. When
// the effect carries a token, the running subscription is registered under
// it so the caller can later cancel it with Context.Cancel(token).
package effect
