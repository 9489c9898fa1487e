package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_InitialDelayIsFloor(t *testing.T) {
	l := New()
	assert.Equal(t, minDelay, l.Delay())
}

func TestNotifySuccess_DecreasesAfterThreeStreak(t *testing.T) {
	l := New()
	l.delay = 10 * time.Second

	l.NotifySuccess()
	l.NotifySuccess()
	assert.Equal(t, 10*time.Second, l.Delay(), "delay unchanged before third success")

	l.NotifySuccess()
	assert.Equal(t, 8*time.Second, l.Delay())
}

func TestNotifySuccess_NeverBelowFloor(t *testing.T) {
	l := New()
	l.delay = minDelay

	for i := 0; i < 3; i++ {
		l.NotifySuccess()
	}
	assert.Equal(t, minDelay, l.Delay())
}

func TestNotifyFailure_RateLimitedBacksOff(t *testing.T) {
	l := New()
	l.delay = 5 * time.Second

	l.NotifyFailure(true)
	assert.Equal(t, 11*time.Second, l.Delay())
}

func TestNotifyFailure_RateLimitedCapsAtCeiling(t *testing.T) {
	l := New()
	l.delay = maxDelay

	l.NotifyFailure(true)
	assert.Equal(t, maxDelay, l.Delay())
}

func TestNotifyFailure_NonRateLimitedLeavesDelayUnchanged(t *testing.T) {
	l := New()
	l.delay = 5 * time.Second

	l.NotifyFailure(false)
	assert.Equal(t, 5*time.Second, l.Delay())
}

func TestNotifyFailure_ResetsStreak(t *testing.T) {
	l := New()
	l.delay = 10 * time.Second

	l.NotifySuccess()
	l.NotifySuccess()
	l.NotifyFailure(false)
	l.NotifySuccess()
	assert.Equal(t, 10*time.Second, l.Delay(), "streak reset means one more success is not enough")
}

func TestWait_SleepsForRemainingDelay(t *testing.T) {
	l := New()
	l.delay = 20 * time.Millisecond

	start := time.Now()
	l.Wait()
	l.Wait()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}
