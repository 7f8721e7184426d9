package backoff

import (
	"testing"
	"time"
)

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := New(10*time.Millisecond, 2, 100*time.Millisecond)
	for i := 0; i < 20; i++ {
		d := b.Next()
		if d > 100*time.Millisecond {
			t.Fatalf("attempt %d: delay %s exceeds max", i, d)
		}
		if d < 0 {
			t.Fatalf("attempt %d: negative delay %s", i, d)
		}
	}
}

func TestBackoff_ResetRestartsFromBase(t *testing.T) {
	b := New(10*time.Millisecond, 2, 1*time.Second)
	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()
	// immediately after Reset, the ceiling should be back to base.
	ceiling := b.Peek()
	if ceiling > 10*time.Millisecond {
		t.Fatalf("got ceiling %s after reset, want <= base (10ms)", ceiling)
	}
}

func TestBackoff_PeekDoesNotAdvance(t *testing.T) {
	b := New(10*time.Millisecond, 2, 1*time.Second)
	b.Peek()
	b.Peek()
	// attempt counter should still be 0, so Next's ceiling equals base.
	d := b.Next()
	if d > 10*time.Millisecond {
		t.Fatalf("got %s, want <= base since Peek must not advance attempt", d)
	}
}
