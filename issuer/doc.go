// Package issuer runs key generation off the network loop.
//
// Pool is a fixed set of worker goroutines fed by an unbounded queue, so
// submitting work never blocks the caller. Cache deduplicates generations by
// identity: the first request for an identity creates a Pending handle and
// schedules the work, every later request attaches to the same handle.
// Successful results stay cached for the life of the process, failed ones are
// evicted before waiters are notified so the next request retries.
package issuer
