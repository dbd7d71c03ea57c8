// Package touch sends touches to the active partner and plays the ones received.
//
// Outgoing touches are encoded, sealed for the partnership, written to the
// local history and handed to the outbox. Incoming envelopes are fetched from
// the channel, checked against the partnership and the seen-id ledger, opened,
// decoded, translated to haptics and played. Envelopes that fail any of those
// checks are logged and dropped; they are never retried.
package touch
