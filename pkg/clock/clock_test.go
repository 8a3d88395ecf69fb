package clock

import "testing"

func TestLogicalClockMonotone(t *testing.T) {
	c := NewLogicalClock()
	if got := c.Get(); got != 0 {
		t.Fatalf("new clock = %d, want 0", got)
	}
	prev := c.Get()
	for i := 0; i < 5; i++ {
		next := c.Tick()
		if next <= prev {
			t.Fatalf("clock did not advance: prev=%d next=%d", prev, next)
		}
		if got := c.Get(); got != next {
			t.Fatalf("Get() = %d, want %d", got, next)
		}
		prev = next
	}
}
