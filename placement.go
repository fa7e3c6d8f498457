// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package deadlinewheel

import "time"

// pow returns base^exp for non-negative exp (no overflow checking;
// wheelSize^numWheels is validated to stay well within uint64 range by
// any sane geometry).
func pow(base, exp uint64) uint64 {
	r := uint64(1)
	for i := uint64(0); i < exp; i++ {
		r *= base
	}
	return r
}

// maxRange returns the largest timeout the wheel can represent:
// slot_interval * wheel_size^num_wheels.
func (m *Monitor) maxRange() time.Duration {
	return m.slotInterval * time.Duration(pow(uint64(m.wheelSize), uint64(m.numWheels)))
}

// placement is the placement calculator: given an absolute expireAt
// and the current time, it returns the (wheel, slot) a task should be
// inserted into. It reads the current-slot pointers but never mutates
// them; only the tick worker does that.
func (m *Monitor) placement(expireAt, now time.Time) (wheel uint8, idx uint32) {
	// step 1: already expired (or expiring this instant) -> schedule in
	// the immediately-next bottom slot, wrapped modulo wheelSize so a
	// currentSlot at wheelSize-1 lands on 0 rather than overflowing.
	if !expireAt.After(now) {
		cur := m.currentSlot[0].Load()
		return 0, uint32((cur + 1) % uint64(m.wheelSize))
	}

	// step 2: remaining time, floored at 1ms.
	remainingMS := expireAt.Sub(now).Milliseconds()
	if remainingMS < 1 {
		remainingMS = 1
	}
	slotMS := m.slotInterval.Milliseconds()
	if slotMS < 1 {
		slotMS = 1
	}

	// step 3: remaining slots, rounded up.
	remainingSlots := uint64(remainingMS+slotMS-1) / uint64(slotMS)

	// step 4: first wheel whose range can hold remainingSlots.
	rangeK := uint64(1)
	for k := uint8(0); k < m.numWheels; k++ {
		rangeK *= uint64(m.wheelSize)
		if remainingSlots <= rangeK {
			cur := m.currentSlot[k].Load()
			wheelSpan := pow(uint64(m.wheelSize), uint64(k))
			step := remainingSlots / wheelSpan // integer floor, by design
			return k, uint32((cur + step) % uint64(m.wheelSize))
		}
	}

	// step 5: defensive fallback. Add() pre-rejects timeouts beyond
	// maxRange(), so this should never be reached in practice.
	return m.numWheels - 1, m.wheelSize - 1
}
