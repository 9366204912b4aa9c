// Package secure provides memory-safe handling of decrypted vault plaintext
// and the secret-store access token.
//
// It wraps the memguard library so that sensitive bytes are encrypted at
// rest in memory (XSalsa20Poly1305), protected from swapping via mlock, and
// wiped with zeros on destruction. If mlock is unavailable (RLIMIT_MEMLOCK),
// memguard degrades to standard allocation.
//
// Nothing in this package ever writes plaintext to a file.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds sensitive bytes in an encrypted memguard enclave.
type Buffer struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy calls and prevents use after destroy
	destroyed bool
}

// NewBuffer copies data into a protected memory region. The caller should
// zero the original slice once the buffer is created.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// With decrypts the enclave, invokes fn with the plaintext, and wipes the
// unlocked copy before returning. The slice passed to fn must not escape fn.
func (b *Buffer) With(fn func(plaintext []byte) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return fn(nil)
	}

	locked, err := b.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.Bytes())
}

// String decrypts the enclave and returns the plaintext as a string.
// Use With where possible; String is for call sites that must hand the
// value to an external tool contract (e.g. a CLI argument).
func (b *Buffer) String() (string, error) {
	var out string
	err := b.With(func(plaintext []byte) error {
		out = string(plaintext)
		return nil
	})
	return out, err
}

// Destroy marks the buffer as destroyed and drops the enclave. The encrypted
// backing data is safe to leave for garbage collection. Idempotent.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}

// Wipe zeroes a byte slice in place.
func Wipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// Purge wipes all memguard-managed data. Call once, deferred from main.
func Purge() {
	memguard.Purge()
}
