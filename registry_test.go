// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package deadlinewheel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryInsertIfAbsent(t *testing.T) {
	r := newRegistry()
	task := newTask("a", "n1", time.Now(), nil)

	require.True(t, r.insertIfAbsent("a", task))
	require.False(t, r.insertIfAbsent("a", task), "duplicate insert must fail")
	assert.Equal(t, 1, r.count())
}

func TestRegistryEraseAndCount(t *testing.T) {
	r := newRegistry()
	a := newTask("a", "n1", time.Now(), nil)
	b := newTask("b", "n1", time.Now(), nil)
	r.insertIfAbsent("a", a)
	r.insertIfAbsent("b", b)
	assert.Equal(t, 2, r.count())

	got, ok := r.erase("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, r.count())

	_, ok = r.erase("a")
	assert.False(t, ok, "erasing an already-erased id returns false")
}

func TestRegistryClear(t *testing.T) {
	r := newRegistry()
	r.insertIfAbsent("a", newTask("a", "n1", time.Now(), nil))
	r.insertIfAbsent("b", newTask("b", "n1", time.Now(), nil))
	r.clear()
	assert.Equal(t, 0, r.count())
}
