// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build release

package errors

// AssertionsEnabled is whether [Assert] checks its condition.
const AssertionsEnabled = false
