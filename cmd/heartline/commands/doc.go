// Package commands defines the heartline CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init            Create the local identity
//   - whoami          Print the identity id and fingerprint
//   - code issue      Publish a pairing code for your partner to redeem
//   - code redeem     Redeem your partner's pairing code
//   - pair complete   Finish pairing after your partner redeemed your code
//   - status          Show partnerships, safety numbers and queued touches
//   - send gesture    Send a catalog gesture (tap, hug, heartbeat, ...)
//   - send path       Send a drawing path read from a JSON file
//   - recv            Fetch, verify and play received touches
//   - history         List recent touches with your partner
//   - unlink          Revoke the partnership for good
//
// # Implementation
//
// The root command loads configuration (defaults, optional --config file,
// HEARTLINE_* environment) and builds the dependency graph before any
// subcommand runs. Commands that talk to the relay first complete a pending
// pairing and flush the outbox, since the CLI runs no background workers.
// Logs go to stderr so command output stays clean.
package commands
