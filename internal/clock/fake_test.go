package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	ch := c.After(time.Hour)
	assert.Equal(t, 1, c.Waiters())

	c.Advance(30 * time.Minute)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(30 * time.Minute)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(time.Hour), got)
	default:
		t.Fatal("did not fire")
	}
	assert.Equal(t, 0, c.Waiters())
}

func TestFakeClockZeroDurationFiresImmediately(t *testing.T) {
	c := NewFakeClock(time.Now())
	select {
	case <-c.After(0):
	default:
		t.Fatal("expected immediate fire")
	}
}
