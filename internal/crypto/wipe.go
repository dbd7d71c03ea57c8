package crypto

import (
	"runtime"

	"heartline/internal/domain"
)

// Wipe zeroes b in place. Best effort: the Go runtime may have copied it.
//
//go:noinline
func Wipe(b []byte) {
	clear(b)
	runtime.KeepAlive(&b)
}

// WipePrivate zeroes an X25519 private key.
func WipePrivate(k *domain.X25519Private) {
	Wipe(k[:])
}
