// Command relay runs the heartline relay: the shared pairing directory and
// the store-and-forward mailbox for sealed touch envelopes.
//
// The directory is Redis-backed when redis_url is configured and in-memory
// otherwise. The mailbox backend is chosen by mailbox_backend (memory, redis
// or postgres). The relay only ever sees routing metadata and ciphertext.
//
// See package internal/relay for the HTTP API.
//
// Usage
//
//	relay [--config relay.toml] [--code-rate 30]
//
// Configuration is read from the optional file and HEARTLINE_* environment
// variables (HEARTLINE_LISTEN_ADDR, HEARTLINE_REDIS_URL,
// HEARTLINE_DATABASE_URL, HEARTLINE_MAILBOX_BACKEND, HEARTLINE_LOG_LEVEL,
// HEARTLINE_SHUTDOWN_TIMEOUT). SIGINT and SIGTERM trigger a graceful shutdown.
package main
