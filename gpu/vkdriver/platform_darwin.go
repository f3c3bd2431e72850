// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin

package vkdriver

import vk "github.com/goki/vulkan"

// MoltenVK is only enumerated with the portability extension.
var platformInstanceExtensions = []string{
	vk.KhrGetPhysicalDeviceProperties2ExtensionName,
	vk.KhrPortabilityEnumerationExtensionName,
}

// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
const platformInstanceFlags = vk.InstanceCreateFlags(0x00000001)
