// Package auth implements the local access gate shown before the chat
// opens. It compares a user-typed key against the configured one and locks
// out after too many failures. This is a UI gate, not transport security;
// the backend still enforces its own bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"sync"

	"github.com/deagent-io/deagent/pkg/log"
)

// MaxAttempts is how many wrong keys are tolerated before lockout.
const MaxAttempts = 5

var (
	// ErrLockedOut is returned once the attempt budget is exhausted.
	ErrLockedOut = errors.New("too many failed attempts")
	// ErrWrongKey is returned for a key that does not match.
	ErrWrongKey = errors.New("incorrect access key")
)

// Gate guards access with a shared key. The zero value is not usable;
// create gates with NewGate.
type Gate struct {
	mu       sync.Mutex
	key      string
	attempts int
	unlocked bool
}

// NewGate creates a gate for the given key. An empty key disables the gate
// entirely: it starts unlocked.
func NewGate(key string) *Gate {
	return &Gate{
		key:      key,
		unlocked: key == "",
	}
}

// Required reports whether the gate asks for a key at all.
func (g *Gate) Required() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.key != ""
}

// Unlocked reports whether access has been granted.
func (g *Gate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// AttemptsLeft returns how many tries remain before lockout.
func (g *Gate) AttemptsLeft() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return MaxAttempts - g.attempts
}

// Try checks a candidate key. It returns nil on success, ErrWrongKey while
// attempts remain, and ErrLockedOut once the budget is spent. A locked-out
// gate rejects even the correct key.
func (g *Gate) Try(candidate string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unlocked {
		return nil
	}

	if g.attempts >= MaxAttempts {
		return ErrLockedOut
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(g.key)) == 1 {
		g.unlocked = true
		log.Info("access gate unlocked")
		return nil
	}

	g.attempts++
	log.WithField("attempts_left", MaxAttempts-g.attempts).Warn("access gate attempt failed")

	if g.attempts >= MaxAttempts {
		return ErrLockedOut
	}
	return ErrWrongKey
}
