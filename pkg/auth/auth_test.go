package auth

import (
	"errors"
	"testing"
)

func TestEmptyKeyDisablesGate(t *testing.T) {
	g := NewGate("")

	if g.Required() {
		t.Error("empty key should not require unlocking")
	}
	if !g.Unlocked() {
		t.Error("empty key should start unlocked")
	}
	if err := g.Try("anything"); err != nil {
		t.Errorf("Try on a disabled gate = %v, want nil", err)
	}
}

func TestCorrectKeyUnlocks(t *testing.T) {
	g := NewGate("secret")

	if g.Unlocked() {
		t.Error("gate with a key should start locked")
	}
	if err := g.Try("secret"); err != nil {
		t.Fatalf("Try with correct key = %v", err)
	}
	if !g.Unlocked() {
		t.Error("gate should be unlocked after the correct key")
	}
}

func TestWrongKeyCountsDown(t *testing.T) {
	g := NewGate("secret")

	for i := 0; i < MaxAttempts-1; i++ {
		if err := g.Try("wrong"); !errors.Is(err, ErrWrongKey) {
			t.Fatalf("attempt %d = %v, want ErrWrongKey", i+1, err)
		}
	}
	if left := g.AttemptsLeft(); left != 1 {
		t.Errorf("AttemptsLeft() = %d, want 1", left)
	}

	// The final failure reports lockout immediately.
	if err := g.Try("wrong"); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("final attempt = %v, want ErrLockedOut", err)
	}

	// Even the correct key is rejected now.
	if err := g.Try("secret"); !errors.Is(err, ErrLockedOut) {
		t.Errorf("post-lockout correct key = %v, want ErrLockedOut", err)
	}
	if g.Unlocked() {
		t.Error("locked-out gate must stay locked")
	}
}

func TestUnlockedGateIgnoresFurtherTries(t *testing.T) {
	g := NewGate("secret")
	if err := g.Try("secret"); err != nil {
		t.Fatal(err)
	}
	if err := g.Try("wrong"); err != nil {
		t.Errorf("Try after unlock = %v, want nil", err)
	}
}
