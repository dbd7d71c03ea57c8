package pairing

import "io"

// SetRand replaces the entropy source for deterministic codes.
func SetRand(s *Service, r io.Reader) { s.rand = r }
