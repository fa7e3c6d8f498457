// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package deadlinewheel

import (
	"sync"
	"sync/atomic"
	"time"
)

// TaskHandlerF is invoked exactly once when a task's deadline passes
// (or, in the fallback safety-net path, when re-placement fails). It
// receives only the task identifier; the node identifier is carried on
// Task purely for logging.
type TaskHandlerF func(taskID string)

// Task is the record of one monitored task. task_id, node_id, expireAt
// and callback are set once at construction and never change;
// cancelled is the one mutable field, and it is monotonic: once set it
// never clears.
//
// A Task lives simultaneously in the registry and in at most one slot's
// list (and transiently in the callback queue once fired); next/prev
// are the intrusive links for that slot membership.
type Task struct {
	next, prev *Task

	id       string
	nodeID   string
	expireAt time.Time
	callback TaskHandlerF

	cancelled atomic.Bool

	posMu sync.Mutex
	wheel uint8  // wheel the task currently resides on (debugging), guarded by posMu
	idx   uint32 // slot index within that wheel (debugging), guarded by posMu
}

func newTask(id, nodeID string, expireAt time.Time, cb TaskHandlerF) *Task {
	t := &Task{id: id, nodeID: nodeID, expireAt: expireAt, callback: cb}
	t.next = t
	t.prev = t
	return t
}

// Cancelled reports whether Monitor.Remove has been called for this task.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// detached reports whether t is currently unlinked from any slot list.
func (t *Task) detached() bool {
	return t.next == t && t.prev == t
}

// setPos records t's current (wheel, idx), independent of whichever
// slot's own mutex the caller holds while relinking it.
func (t *Task) setPos(wheel uint8, idx uint32) {
	t.posMu.Lock()
	t.wheel = wheel
	t.idx = idx
	t.posMu.Unlock()
}

// pos returns a synchronized snapshot of t's last recorded (wheel, idx),
// safe to call from a goroutine other than the one relinking t.
func (t *Task) pos() (wheel uint8, idx uint32) {
	t.posMu.Lock()
	defer t.posMu.Unlock()
	return t.wheel, t.idx
}
