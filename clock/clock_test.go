package clock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fiblab-sim/moss-core/clock"
	"github.com/fiblab-sim/moss-core/utils/config"
)

func TestNewParksAtStartAndComputesEnd(t *testing.T) {
	c := clock.New(config.ControlStep{StartSeconds: 100, TotalSeconds: 50})
	assert.Equal(t, 100.0, c.Now())
	assert.False(t, c.Done())
}

func TestAdvanceMovesTimeForward(t *testing.T) {
	c := clock.New(config.ControlStep{StartSeconds: 0, TotalSeconds: 10})
	c.Advance(5)
	assert.Equal(t, 5.0, c.Now())
	assert.False(t, c.Done())
	c.Advance(10)
	assert.True(t, c.Done())
}

func TestAdvanceBackwardsPanics(t *testing.T) {
	c := clock.New(config.ControlStep{StartSeconds: 0, TotalSeconds: 10})
	c.Advance(5)
	assert.Panics(t, func() { c.Advance(4) })
}

func TestStringFormatsHourMinuteSecond(t *testing.T) {
	c := clock.New(config.ControlStep{StartSeconds: 0, TotalSeconds: 100000})
	c.Advance(3661)
	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 1, h)
	assert.Equal(t, 1, m)
	assert.InDelta(t, 1.0, s, 1e-9)
	assert.Equal(t, "01:01:01", c.String())
}
