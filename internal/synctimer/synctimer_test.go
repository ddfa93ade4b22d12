package synctimer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitForTimeoutFires(t *testing.T) {
	timer := New()
	var fired, cancelled bool
	timer.WaitForTimeout(func() { fired = true }, func() { cancelled = true }, 10*time.Millisecond)
	assert.True(t, fired)
	assert.False(t, cancelled)
	assert.False(t, timer.Armed())
}

func TestCancelWakesWaiter(t *testing.T) {
	timer := New()
	var wg sync.WaitGroup
	var fired, cancelled bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		timer.WaitForTimeout(func() { fired = true }, func() { cancelled = true }, time.Second)
	}()

	// give WaitForTimeout a chance to arm before cancelling.
	for !timer.Armed() {
		time.Sleep(time.Millisecond)
	}
	timer.Cancel()
	wg.Wait()

	assert.False(t, fired)
	assert.True(t, cancelled)
}

func TestCancelBeforeArmIsNoop(t *testing.T) {
	timer := New()
	assert.NotPanics(t, func() { timer.Cancel() })
}

func TestRearmAfterSettle(t *testing.T) {
	timer := New()
	timer.WaitForTimeout(func() {}, func() {}, time.Millisecond)
	assert.NotPanics(t, func() {
		timer.WaitForTimeout(func() {}, func() {}, time.Millisecond)
	})
}
