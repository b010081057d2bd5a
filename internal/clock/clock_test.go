package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	var seen []int
	f.OnSleep = func(n int) { seen = append(seen, n) }

	for i := 0; i < 3; i++ {
		assert.NoError(t, f.Sleep(context.Background(), time.Second))
	}
	f.Advance(time.Minute)

	assert.Equal(t, start.Add(63*time.Second), f.Now())
	assert.Equal(t, 3, f.Sleeps())
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestFakeSleepHonoursCancel(t *testing.T) {
	f := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Sleep(ctx, time.Second), context.Canceled)
	assert.Equal(t, 0, f.Sleeps())
}

func TestRealSleepCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Real{}.Sleep(ctx, time.Hour), context.Canceled)
}
