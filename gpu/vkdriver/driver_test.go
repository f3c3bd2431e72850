// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkdriver

import (
	"testing"

	"cogentcore.org/vframe/gpu"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestCStrings(t *testing.T) {
	assert.Equal(t, "VK_KHR_surface\x00", cstring("VK_KHR_surface"))
	assert.Equal(t, "a\x00", cstring("a\x00"))
	assert.Nil(t, cstrings(nil))
	assert.Equal(t, []string{"a\x00", "b\x00"}, cstrings([]string{"a", "b\x00"}))
}

func TestHandleTable(t *testing.T) {
	d := &Driver{objects: make(map[gpu.Handle]any)}
	h1 := d.Import("first")
	h2 := d.Import(42)
	assert.NotEqual(t, h1, h2)
	assert.False(t, h1.IsNull())
	assert.Equal(t, "first", Lookup[string](d, h1))
	assert.Equal(t, 42, Lookup[int](d, h2))
	// wrong type and unknown handles give the zero value
	assert.Zero(t, Lookup[int](d, h1))
	assert.Zero(t, Lookup[string](d, gpu.NullHandle))
	assert.Equal(t, []string{"first", ""}, handles[string](d, []gpu.Handle{h1, h2}))
	assert.Nil(t, handles[string](d, nil))

	d.Forget(h1)
	assert.Zero(t, Lookup[string](d, h1))
}

func TestRect2D(t *testing.T) {
	r := rect2D(gpu.Rect2D{X: 1, Y: 2, Extent: gpu.Extent2D{Width: 30, Height: 40}})
	assert.Equal(t, vk.Offset2D{X: 1, Y: 2}, r.Offset)
	assert.Equal(t, vk.Extent2D{Width: 30, Height: 40}, r.Extent)
	assert.Equal(t, vk.Bool32(vk.True), bool32(true))
	assert.Equal(t, vk.Bool32(vk.False), bool32(false))
}

func TestResultValues(t *testing.T) {
	// gpu.Result is converted from vk.Result by value
	assert.Equal(t, gpu.ErrorOutOfDate, gpu.Result(vk.ErrorOutOfDate))
	assert.Equal(t, gpu.Suboptimal, gpu.Result(vk.Suboptimal))
	assert.Equal(t, gpu.ErrorDeviceLost, gpu.Result(vk.ErrorDeviceLost))
	assert.Equal(t, gpu.PresentModeMailbox, gpu.PresentMode(vk.PresentModeMailbox))
	assert.Equal(t, gpu.FormatB8G8R8A8Srgb, gpu.Format(vk.FormatB8g8r8a8Srgb))
}
