// Package mailbox stores sealed envelopes on the relay until the recipient
// fetches and acknowledges them.
//
// A mailbox is a per-recipient FIFO. Fetch returns the oldest envelopes
// without removing them; Ack drops a prefix of the queue once the recipient
// has processed it. Delivery is at-least-once, so recipients deduplicate by
// envelope id.
package mailbox
