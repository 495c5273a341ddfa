package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	actual := RealClock{}.Now()
	after := time.Now()

	assert.False(t, actual.Before(before), "RealClock.Now() earlier than expected")
	assert.False(t, actual.After(after), "RealClock.Now() later than expected")
}

func TestFakeClock_Frozen(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	clk := NewFakeClock(fixed, 0)

	assert.True(t, clk.Now().Equal(fixed))
	assert.True(t, clk.Now().Equal(fixed), "zero step must not advance")
}

func TestFakeClock_Step(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start, time.Second)

	first := clk.Now()
	second := clk.Now()
	third := clk.Now()

	assert.Equal(t, start, first)
	assert.Equal(t, time.Second, second.Sub(first))
	assert.Equal(t, 2*time.Second, third.Sub(first))
}

func TestFakeClock_Advance(t *testing.T) {
	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start, time.Millisecond)

	clk.Advance(time.Hour)

	assert.Equal(t, start.Add(time.Hour), clk.Now())
	assert.Equal(t, start.Add(time.Hour+time.Millisecond), clk.Now())
}
