// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package deadlinewheel

import (
	"errors"
)

// ErrNotRunning is returned by Add when the monitor has not been started
// (or has already been stopped).
var ErrNotRunning = errors.New("monitor not running")

// ErrInvalidTimeout is returned by Add for a non-positive timeout.
var ErrInvalidTimeout = errors.New("timeout must be positive")

// ErrRangeExceeded is returned by Add when timeout exceeds the wheel's
// maximum representable range (slotInterval * wheelSize^numWheels).
var ErrRangeExceeded = errors.New("timeout exceeds maximum range")

// ErrDuplicateTask is returned by Add when task_id is already registered.
var ErrDuplicateTask = errors.New("task already monitored")

// ErrPlacementFailed is returned (and rolled back) when the placement
// calculator cannot find a slot for a task. Should only occur on
// internal invariant breakage; Add() treats it as a safety net.
var ErrPlacementFailed = errors.New("timer placement failed")

// ErrZeroWheelSize is returned by New when wheelSize is 0.
var ErrZeroWheelSize = errors.New("wheel size must be non-zero")

// ErrZeroNumWheels is returned by New when numWheels is 0.
var ErrZeroNumWheels = errors.New("number of wheels must be non-zero")
