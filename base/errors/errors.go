// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors provides error construction and wrapping on top of
// [github.com/cockroachdb/errors], plus helpers for logging errors
// through slog and checking programmer contracts.
package errors

import (
	"fmt"
	"log/slog"
	"runtime"

	crdb "github.com/cockroachdb/errors"
)

var (
	New              = crdb.New
	Newf             = crdb.Newf
	Wrap             = crdb.Wrap
	Wrapf            = crdb.Wrapf
	Is               = crdb.Is
	As               = crdb.As
	AssertionFailedf = crdb.AssertionFailedf
	IsAssertion      = crdb.IsAssertionFailure
)

// Log takes the given error and logs it if it is non-nil.
// The intended usage is:
//
//	return errors.Log(MyFunc(v))
//	// or
//	if err := errors.Log(MyFunc(v)); err != nil {
//		// do some more things
//	}
func Log(err error) error {
	if err != nil {
		slog.Error(err.Error() + " | " + CallerInfo())
	}
	return err
}

// Log1 takes the given value and error, logs the error if it is
// non-nil, and returns the value. The intended usage is:
//
//	a := errors.Log1(MyFunc(v))
func Log1[T any](v T, err error) T {
	if err != nil {
		slog.Error(err.Error() + " | " + CallerInfo())
	}
	return v
}

// Must panics if the given error is non-nil.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// CallerInfo returns string information about the caller
// of the function that called CallerInfo.
func CallerInfo() string {
	pc, file, line, _ := runtime.Caller(2)
	return fmt.Sprintf("%s:%d %s", file, line, runtime.FuncForPC(pc).Name())
}
