package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"heartline/internal/domain"
)

const safetyNumberGroups = 6

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) domain.Fingerprint {
	sum := sha256.Sum256(pub)
	return domain.Fingerprint(hex.EncodeToString(sum[:10]))
}

// SafetyNumber returns a numeric code both partners can compare out of band.
// It is independent of argument order.
func SafetyNumber(session domain.SessionID, a, b domain.X25519Public) string {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	h := blake3.New()
	_, _ = h.Write([]byte("heartline/safety-number/v1"))
	_, _ = h.Write([]byte(session))
	_, _ = h.Write(a[:])
	_, _ = h.Write(b[:])
	sum := h.Sum(nil)

	groups := make([]string, 0, safetyNumberGroups)
	for i := 0; i < safetyNumberGroups; i++ {
		var chunk [8]byte
		copy(chunk[3:], sum[i*5:i*5+5])
		groups = append(groups, fmt.Sprintf("%05d", binary.BigEndian.Uint64(chunk[:])%100000))
	}
	return strings.Join(groups, " ")
}
