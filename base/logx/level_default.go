// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !debug && !release

package logx

import "log/slog"

// BuildMode names the build tag that chose the default [UserLevel].
const BuildMode = "default"

var defaultUserLevel = slog.LevelInfo
