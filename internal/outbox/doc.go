// Package outbox delivers sealed envelopes to the partner's mailbox with
// at-least-once semantics.
//
// Each partnership has its own FIFO queue persisted in an OutboxStore and
// drained by a single worker goroutine. The head entry blocks the entries
// behind it until it is delivered. Failed attempts are retried with
// exponential backoff for as long as the partnership is active. Revoking
// the partnership abandons the queue; stopping the outbox parks it.
package outbox
