// Package secure provides memory-safe handling of raw secret payloads.
//
// Payloads fetched from a secret store, and local-development override
// material loaded from the OS keychain, pass through a memguard-backed
// buffer so plaintext never lingers in ordinary Go memory longer than a
// single parse. If mlock is unavailable memguard degrades gracefully to
// standard allocation.
//
// Call memguard.Purge() at process exit for full cleanup.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds a secret payload encrypted at rest in memory.
type Buffer struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewBuffer seals secret bytes into a protected buffer. The caller should
// zero its own copy of data afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// NewBufferFromString seals a secret string into a protected buffer.
func NewBufferFromString(s string) *Buffer {
	return NewBuffer([]byte(s))
}

// Open decrypts the buffer. The caller MUST Destroy() the returned
// LockedBuffer once the plaintext has been consumed.
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return b.enclave.Open()
}

// WithString decrypts the buffer, hands the plaintext to fn, and wipes the
// unlocked copy before returning. fn must not retain the string beyond the
// call.
func (b *Buffer) WithString(fn func(plaintext string) error) error {
	locked, err := b.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.String())
}

// Destroy marks the buffer unusable. Idempotent; after Destroy, Open
// returns an empty buffer. The enclave's encrypted bytes are safe to leave
// for the garbage collector.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}
