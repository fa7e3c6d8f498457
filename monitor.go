// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package deadlinewheel provides a high performance hierarchical timing
// wheel task timeout monitor, optimised for a large, dynamic population
// of in-flight tasks (100k+) each with its own deadline, where firing a
// callback a tick or two late is an acceptable trade for O(1) insertion
// and cancellation.
package deadlinewheel

import (
	"sync"
	"sync/atomic"
	"time"
)

const NAME = "deadlinewheel"

// Defaults for New.
const (
	DefaultWheelSize    uint32        = 60
	DefaultSlotInterval time.Duration = time.Second
	DefaultNumWheels    uint8         = 3
)

// Option configures a Monitor at construction time.
type Option func(*Monitor)

// WithWheelSize overrides the default wheel size (W, entries per wheel).
func WithWheelSize(w uint32) Option { return func(m *Monitor) { m.wheelSize = w } }

// WithSlotInterval overrides the default slot interval (Δ).
func WithSlotInterval(d time.Duration) Option { return func(m *Monitor) { m.slotInterval = d } }

// WithNumWheels overrides the default wheel count (L).
func WithNumWheels(l uint8) Option { return func(m *Monitor) { m.numWheels = l } }

// monitorMetrics are the atomic counters backing Collector() (see
// metrics.go).
type monitorMetrics struct {
	added    atomic.Uint64
	removed  atomic.Uint64
	fired    atomic.Uint64
	rejected atomic.Uint64
}

// Monitor is the public facade over the hierarchical timing wheel.
// The zero value is not usable; construct with New.
type Monitor struct {
	wheelSize    uint32
	slotInterval time.Duration
	numWheels    uint8

	slots       [][]slot        // slots[k] has wheelSize entries
	currentSlot []atomic.Uint64 // len == numWheels, owned by the tick worker

	reg     *registry
	queue   *callbackQueue
	metrics monitorMetrics

	lifecycleMu sync.Mutex // serialises Start/Stop against each other
	running     atomic.Bool
	wg          sync.WaitGroup
	stop        chan struct{}

	lastTickT time.Time // owned by the tick worker, for the backwards-time guard
	badTime   int       // consecutive ticks observed with now before lastTickT
}

// New constructs a Monitor. Defaults are wheel_size=60, slot_interval=1s,
// num_wheels=3; both sizing parameters must be non-zero if overridden.
// No goroutines are spawned until Start().
func New(opts ...Option) (*Monitor, error) {
	m := &Monitor{
		wheelSize:    DefaultWheelSize,
		slotInterval: DefaultSlotInterval,
		numWheels:    DefaultNumWheels,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.wheelSize == 0 {
		return nil, ErrZeroWheelSize
	}
	if m.numWheels == 0 {
		return nil, ErrZeroNumWheels
	}

	m.reg = newRegistry()
	m.queue = newCallbackQueue()
	m.stop = make(chan struct{})

	m.slots = make([][]slot, m.numWheels)
	m.currentSlot = make([]atomic.Uint64, m.numWheels)
	for k := uint8(0); k < m.numWheels; k++ {
		m.slots[k] = make([]slot, m.wheelSize)
		for i := range m.slots[k] {
			m.slots[k][i].init(k, uint32(i))
		}
	}
	return m, nil
}

// Start transitions the monitor from stopped to running, spawning one
// tick worker and callbackWorkers callback workers. A second call while
// already running is a no-op.
func (m *Monitor) Start() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	for k := range m.currentSlot {
		m.currentSlot[k].Store(0)
	}
	m.lastTickT = time.Now()
	m.badTime = 0
	m.wg.Add(1 + callbackWorkers)
	go m.runTickWorker()
	for i := 0; i < callbackWorkers; i++ {
		go m.runCallbackWorker()
	}
	INFO("monitor started: wheel_size=%d slot_interval=%s num_wheels=%d\n",
		m.wheelSize, m.slotInterval, m.numWheels)
}

// Stop transitions the monitor to stopped, joins every owned goroutine,
// drains the callback queue without dispatch, and clears the registry
// and all slots. Idempotent.
func (m *Monitor) Stop() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	close(m.stop)
	m.queue.closeAndDrain()
	m.wg.Wait()

	m.reg.clear()
	m.clearSlots()

	// prepare for a possible subsequent Start()
	m.stop = make(chan struct{})
	m.queue.reopen()
	INFO("monitor stopped\n")
}

// Running reports whether the monitor is currently started.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// Count returns a snapshot of the number of live (not yet fired,
// cancelled, or removed) registered tasks.
func (m *Monitor) Count() int {
	return m.reg.count()
}

// Add registers a new task that fires cb(task_id) after timeout elapses,
// unless cancelled first via Remove. node_id is carried
// only for logging and is not part of the callback signature.
func (m *Monitor) Add(taskID, nodeID string, timeout time.Duration, cb TaskHandlerF) error {
	if !m.Running() {
		m.metrics.rejected.Add(1)
		return ErrNotRunning
	}
	if timeout <= 0 {
		m.metrics.rejected.Add(1)
		return ErrInvalidTimeout
	}
	if timeout > m.maxRange() {
		m.metrics.rejected.Add(1)
		return ErrRangeExceeded
	}

	now := time.Now()
	t := newTask(taskID, nodeID, now.Add(timeout), cb)

	if !m.reg.insertIfAbsent(taskID, t) {
		m.metrics.rejected.Add(1)
		return ErrDuplicateTask
	}
	if err := m.place(t, now); err != nil {
		m.reg.erase(taskID)
		m.metrics.rejected.Add(1)
		return err
	}
	m.metrics.added.Add(1)
	INFO("add: task %q (node %q) timeout %s\n", taskID, nodeID, timeout)
	return nil
}

// place computes a task's (wheel, slot) and inserts it there.
func (m *Monitor) place(t *Task, now time.Time) error {
	w, idx := m.placement(t.expireAt, now)
	if int(w) >= len(m.slots) || idx >= uint32(m.wheelSize) {
		return ErrPlacementFailed
	}
	s := &m.slots[w][idx]
	s.mu.Lock()
	s.append(t)
	s.mu.Unlock()
	return nil
}

// Remove cancels task_id if it is currently registered. The task is not
// physically extracted from its slot; it is skipped lazily when that
// slot is next drained or cascaded.
func (m *Monitor) Remove(taskID string) bool {
	t, ok := m.reg.erase(taskID)
	if !ok {
		return false
	}
	t.cancelled.Store(true)
	m.metrics.removed.Add(1)
	INFO("remove: task %q\n", taskID)
	return true
}

// clearSlots empties every slot in every wheel (used by Stop()).
func (m *Monitor) clearSlots() {
	for k := range m.slots {
		for i := range m.slots[k] {
			s := &m.slots[k][i]
			s.mu.Lock()
			s.drain()
			s.mu.Unlock()
		}
	}
}
