// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package deadlinewheel

import (
	"github.com/intuitivelabs/slog"
)

// Log is the package-wide logging sink.
// Embedding applications can redirect or level-filter it, e.g.:
//
//	slog.SetLevel(&deadlinewheel.Log, slog.LWARN)
var Log slog.Logger

func init() {
	slog.SetLevel(&Log, slog.LINFO)
}

func DBGon() bool  { return Log.DBGon() }
func WARNon() bool { return Log.WARNon() }
func ERRon() bool  { return Log.ERRon() }

func DBG(f string, a ...interface{})   { Log.DBG(f, a...) }
func INFO(f string, a ...interface{})  { Log.INFO(f, a...) }
func WARN(f string, a ...interface{})  { Log.WARN(f, a...) }
func ERR(f string, a ...interface{})   { Log.ERR(f, a...) }
func BUG(f string, a ...interface{})   { Log.BUG(f, a...) }
func PANIC(f string, a ...interface{}) { Log.PANIC(f, a...) }
