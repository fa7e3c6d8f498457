// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package deadlinewheel

import "sync"

// slot is one bucket of a wheel: a circular intrusive list of tasks
// believed to expire inside its interval, guarded by its own mutex.
// wheelNo/idx are kept for debugging and PANIC-driven invariant checks.
type slot struct {
	mu   sync.Mutex
	head Task // sentinel list head; only next/prev are meaningful

	wheelNo uint8
	idx     uint32
}

func (s *slot) init(wheelNo uint8, idx uint32) {
	s.head.next = &s.head
	s.head.prev = &s.head
	s.wheelNo = wheelNo
	s.idx = idx
}

func (s *slot) isEmpty() bool {
	return s.head.next == &s.head
}

// append adds t to the end of the slot's list. Caller must hold s.mu,
// and t must be detached (not part of any other list).
func (s *slot) append(t *Task) {
	if !t.detached() {
		wheel, idx := t.pos()
		PANIC("slot.append called on a task still linked: %q (wheel %d idx %d)\n",
			t.id, wheel, idx)
	}
	t.prev = s.head.prev
	t.next = &s.head
	t.prev.next = t
	s.head.prev = t
	t.setPos(s.wheelNo, s.idx)
}

// remove unlinks t from the slot's list. Caller must hold s.mu.
func (s *slot) remove(t *Task) {
	t.prev.next = t.next
	t.next.prev = t.prev
	t.next = t
	t.prev = t
}

// drain detaches every task currently in the slot and returns them as a
// plain slice, leaving the slot empty. Caller must hold s.mu.
func (s *slot) drain() []*Task {
	if s.isEmpty() {
		return nil
	}
	tasks := make([]*Task, 0, 4)
	for v := s.head.next; v != &s.head; {
		nxt := v.next
		v.next = v
		v.prev = v
		tasks = append(tasks, v)
		v = nxt
	}
	s.head.next = &s.head
	s.head.prev = &s.head
	return tasks
}
