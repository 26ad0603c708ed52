// Package scope provides the effect-scope runtime the store is built on.
//
// A scope is a handler registered in a context.Context under an effect enum.
// Code running under that context performs the effect by enum and never talks
// to the handler directly, so handlers can be replaced or nested per scope.
//
// # Scopes
//
//   - Fire-and-forget: payloads are queued to a single worker and handled in
//     arrival order. Used for logging, goroutine supervision and the store's
//     dispatch queue.
//   - Resumable: the caller receives a result channel. Partitionable payloads
//     are hashed to a fixed worker so per-key order holds.
//
// Every `WithXxxEffectHandler(ctx)` returns the scoped context plus a teardown
// that closes the handler and hands back the parent context. The teardown
// stops new payloads, waits for the workers and then deals with what is left
// in the queue: fire-and-forget payloads are still handled, resumable callers
// get a closed result channel.
//
// Example:
//
//	ctx, endOfLog := log.WithZapEffectHandler(ctx, 10, logger)
//	defer endOfLog()
//
//	log.LogEff(ctx, log.LogInfo, "store ready", nil)
package scope
