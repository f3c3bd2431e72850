// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !darwin

package vkdriver

import vk "github.com/goki/vulkan"

var platformInstanceExtensions []string

const platformInstanceFlags = vk.InstanceCreateFlags(0)
