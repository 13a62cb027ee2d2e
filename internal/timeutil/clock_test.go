package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	if c.Since(start) < 0 {
		t.Error("Since should not be negative")
	}
}

func TestMockClock_SetAdvance(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Errorf("Now() = %v, want %v", got, base)
	}

	c.Advance(5 * time.Second)
	if got := c.Since(base); got != 5*time.Second {
		t.Errorf("Since() = %v, want 5s", got)
	}

	later := base.Add(time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
}

func TestMockClock_AutoStep(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	c.AutoStep(250 * time.Millisecond)

	first := c.Now()
	second := c.Now()
	if d := second.Sub(first); d != 250*time.Millisecond {
		t.Errorf("step between Now calls = %v, want 250ms", d)
	}
	if d := c.Since(first); d != 500*time.Millisecond {
		t.Errorf("Since(first) = %v, want 500ms", d)
	}
}
