// Package relay connects heartline clients through an untrusted relay server.
//
// The relay hosts two things: the pairing directory (published codes, each
// owner's current code, pending acceptances keyed by code) and per-recipient mailboxes of
// sealed envelopes. It never sees plaintext or private keys.
//
// Server exposes a Directory and a Channel over JSON/HTTP with fiber.
// HTTPClient is the matching client and implements both domain.Directory
// and domain.Channel, so services cannot tell a remote relay from a local
// backend.
//
// HTTP API
//
//	POST   /codes                    publish {code, ttl_ms}; 201, or 409 if the value is taken
//	GET    /codes/{code}             look up; 404 if absent
//	POST   /codes/{code}/consume     look up and delete atomically, returning the code
//	                                 with a one-time claim; 404 if absent
//	DELETE /codes/{code}             delete; 204
//	PUT    /owners/{id}/code         swap {value, ttl_ms}; returns {previous}
//	POST   /acceptances              post {acceptance, ttl_ms}; 204, or 403 unless
//	                                 acceptance.claim matches the code's claim
//	GET    /acceptances/{owner}/{code}  look up; 404 if none
//	DELETE /acceptances/{owner}/{code}  delete; 204
//	POST   /msg/{user}               enqueue a SealedEnvelope for {user}; 204
//	GET    /msg/{user}?limit=N       up to N queued envelopes, oldest first
//	POST   /msg/{user}/ack           {count}: drop the first count envelopes; 204
//	GET    /healthz                  liveness
//
// Code routes are rate limited per client IP so six-digit codes cannot be
// enumerated quickly.
package relay
