package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Fires due timers in deadline order", func(t *testing.T) {
		c := NewManual(start)
		var order []string

		c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
		c.AfterFunc(time.Second, func() { order = append(order, "a") })
		c.AfterFunc(10*time.Second, func() { order = append(order, "late") })

		c.Advance(5 * time.Second)

		assert.Equal(t, []string{"a", "b"}, order)
		assert.Equal(t, start.Add(5*time.Second), c.Now())
		assert.Equal(t, 1, c.Pending())
	})

	t.Run("Stopped timers never fire", func(t *testing.T) {
		c := NewManual(start)
		fired := false

		timer := c.AfterFunc(time.Second, func() { fired = true })
		assert.True(t, timer.Stop())
		assert.False(t, timer.Stop(), "second Stop must report already stopped")

		c.Advance(time.Minute)
		assert.False(t, fired)
		assert.Equal(t, 0, c.Pending())
	})

	t.Run("Timers armed by callbacks fire within the same advance", func(t *testing.T) {
		c := NewManual(start)
		count := 0

		var tick func()
		tick = func() {
			count++
			c.AfterFunc(time.Second, tick)
		}
		c.AfterFunc(time.Second, tick)

		c.Advance(3 * time.Second)
		assert.Equal(t, 3, count)
		assert.Equal(t, 1, c.Pending())
	})

	t.Run("Zero advance fires immediate timers", func(t *testing.T) {
		c := NewManual(start)
		fired := false
		c.AfterFunc(0, func() { fired = true })

		c.Advance(0)
		assert.True(t, fired)
	})
}
