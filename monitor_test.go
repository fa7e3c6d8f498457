// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package deadlinewheel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMonitor builds a W=4, Δ=100ms, L=2 monitor (max range 1600ms),
// small enough to exercise cascading within a fraction of a second.
func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m, err := New(WithWheelSize(4), WithSlotInterval(100*time.Millisecond), WithNumWheels(2))
	require.NoError(t, err)
	return m
}

func TestMonitorConstructRejectsZeroSizing(t *testing.T) {
	_, err := New(WithWheelSize(0))
	assert.ErrorIs(t, err, ErrZeroWheelSize)

	_, err = New(WithNumWheels(0))
	assert.ErrorIs(t, err, ErrZeroNumWheels)
}

func TestMonitorStartStopIdempotent(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	m.Start() // second call is a no-op
	assert.True(t, m.Running())

	m.Stop()
	m.Stop() // second call is a no-op
	assert.False(t, m.Running())
}

func TestMonitorAddBeforeStartFails(t *testing.T) {
	m := newTestMonitor(t)
	err := m.Add("a", "n", 100*time.Millisecond, func(string) {})
	assert.ErrorIs(t, err, ErrNotRunning)
}

// scenario 1: basic fire.
func TestMonitorBasicFire(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	defer m.Stop()

	fired := make(chan string, 1)
	start := time.Now()
	err := m.Add("a", "n", 250*time.Millisecond, func(id string) { fired <- id })
	require.NoError(t, err)

	select {
	case id := <-fired:
		elapsed := time.Since(start)
		assert.Equal(t, "a", id)
		assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
		assert.Less(t, elapsed, 450*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}

	assert.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 10*time.Millisecond)
}

// scenario 2: cancellation.
func TestMonitorCancellation(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	defer m.Stop()

	var mu sync.Mutex
	called := false
	err := m.Add("b", "n", 500*time.Millisecond, func(string) {
		mu.Lock()
		called = true
		mu.Unlock()
	})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, m.Remove("b"))

	time.Sleep(600 * time.Millisecond)
	mu.Lock()
	assert.False(t, called, "cancelled task must never fire")
	mu.Unlock()
	assert.Equal(t, 0, m.Count())
}

// scenario 3: cascade. A task placed in wheel 1 must land back in
// wheel 0 once enough ticks pass, then fire on schedule. 1200ms is 12
// slots, so the task starts on wheel 1 slot 3 and is cascaded when wheel
// 0 wraps for the third time (~1200ms).
func TestMonitorCascade(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	defer m.Stop()

	fired := make(chan string, 1)
	start := time.Now()
	err := m.Add("c", "n", 1200*time.Millisecond, func(id string) { fired <- id })
	require.NoError(t, err)

	task, ok := m.reg.lookup("c")
	require.True(t, ok)
	wheel, _ := task.pos()
	assert.Equal(t, uint8(1), wheel, "a 1200ms timeout under W=4/Δ=100ms/L=2 must start on wheel 1")

	time.Sleep(1250 * time.Millisecond)
	wheel, _ = task.pos()
	assert.Equal(t, uint8(0), wheel, "task must have cascaded down to wheel 0 by now")

	select {
	case id := <-fired:
		assert.Equal(t, "c", id)
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 1200*time.Millisecond)
		assert.Less(t, elapsed, 1400*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("cascaded task never fired")
	}
}

// scenario 4: duplicate task id.
func TestMonitorDuplicateTask(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	defer m.Stop()

	fired := make(chan string, 1)
	require.NoError(t, m.Add("d", "n", 200*time.Millisecond, func(id string) { fired <- id }))
	err := m.Add("d", "n", 200*time.Millisecond, func(string) {})
	assert.ErrorIs(t, err, ErrDuplicateTask)

	select {
	case id := <-fired:
		assert.Equal(t, "d", id)
	case <-time.After(time.Second):
		t.Fatal("original task never fired")
	}
}

// scenario 5: stop drains without firing, and returns promptly.
func TestMonitorStopDrains(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()

	called := false
	require.NoError(t, m.Add("e", "n", 10*time.Second, func(string) { called = true }))

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(200 * time.Millisecond): // <= 2*slotInterval bound
		t.Fatal("Stop() took too long")
	}
	time.Sleep(50 * time.Millisecond)
	assert.False(t, called, "callback must not run for a task dropped by Stop()")
}

// scenario 6: range reject.
func TestMonitorRangeReject(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	defer m.Stop()

	err := m.Add("f", "n", 1700*time.Millisecond, func(string) {})
	assert.ErrorIs(t, err, ErrRangeExceeded)
	assert.Equal(t, 0, m.Count())

	// boundary: exactly maxRange is accepted.
	require.NoError(t, m.Add("f2", "n", m.maxRange(), func(string) {}))
	assert.True(t, m.Remove("f2"))
}

func TestMonitorInvalidTimeout(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	defer m.Stop()

	err := m.Add("g", "n", 0, func(string) {})
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestMonitorRemoveUnknownReturnsFalse(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	defer m.Stop()
	assert.False(t, m.Remove("nope"))
}

func TestMonitorCountTracksAddRemoveFire(t *testing.T) {
	m := newTestMonitor(t)
	m.Start()
	defer m.Stop()

	require.NoError(t, m.Add("h1", "n", time.Second, func(string) {}))
	require.NoError(t, m.Add("h2", "n", 150*time.Millisecond, func(string) {}))
	assert.Equal(t, 2, m.Count())

	assert.True(t, m.Remove("h1"))
	assert.Equal(t, 1, m.Count())

	assert.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 10*time.Millisecond)
}
