// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package errors

// Assert panics with an assertion failure if cond is false.
// It is used for programmer contract violations (calling an operation
// in the wrong state), which are never recoverable. Assertions are
// compiled out when building with the release tag, in which case
// the violation is silently ignored.
func Assert(cond bool, format string, args ...any) {
	if !AssertionsEnabled || cond {
		return
	}
	panic(AssertionFailedf(format, args...))
}
