// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render drives frames: it acquires swapchain images, records
// and submits one command buffer per frame slot, and presents, keeping
// each slot synchronized with the GPU through its fence.
package render

import (
	"fmt"
	"unsafe"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/pools"
)

// Renderer is the frame interface used by the application loop.
type Renderer interface {

	// BeginFrame starts a frame, returning false if no frame could be
	// started, in which case EndFrame must not be called.
	BeginFrame() bool

	// EndFrame submits and presents the frame started by BeginFrame.
	EndFrame() bool

	// OnResize notes that the window size changed. The swapchain is
	// recreated at the next BeginFrame.
	OnResize(width, height int)

	// WaitIdle blocks until the GPU is idle.
	WaitIdle()

	// Destroy releases everything the renderer made.
	Destroy()
}

// Backend is a rendering API.
type Backend int32

const (
	Vulkan Backend = iota
)

func (b Backend) String() string {
	switch b {
	case Vulkan:
		return "Vulkan"
	}
	return fmt.Sprintf("Backend(%d)", int32(b))
}

// Window is the part of the windowing layer the renderer needs.
type Window interface {

	// Size returns the framebuffer size in pixels; zero while minimized.
	Size() (width, height int)

	// WaitEvents blocks until a window event arrives.
	WaitEvents()
}

// Camera produces the per-frame view and projection matrices.
type Camera interface {
	GlobalUbo() GlobalUbo
	SetViewportSize(width, height int)
}

// Options configure a renderer.
type Options struct {
	Window Window

	// VSync selects FIFO presentation.
	VSync bool

	// ImageCount is the requested swapchain image count; 0 for the
	// surface minimum plus one.
	ImageCount int

	// FramesInFlight is the number of frame slots; 0 for one less than
	// the image count.
	FramesInFlight int

	ClearColor [4]float32

	// Pools bound the shared vertex and index buffers. nil uses
	// [pools.NewManager].
	Pools *pools.Manager
}

// DefaultClearColor is the clear color when none is set.
var DefaultClearColor = [4]float32{0.1, 0.1, 0.1, 1}

// New returns a renderer for the backend.
func New(backend Backend, dv *gpu.Device, opts Options) (Renderer, error) {
	switch backend {
	case Vulkan:
		r, err := NewVulkanRenderer(dv, opts)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, errors.Newf("render: unsupported backend %s", backend)
}

// State is the frame state of a renderer.
type State int32

const (
	// Idle is between frames.
	Idle State = iota

	// FrameAcquired is after an image was acquired, before recording.
	FrameAcquired

	// Recording is while the frame's command buffer is recorded.
	Recording

	// Submitted is after the frame's work was submitted, before present.
	Submitted
)

var stateNames = [...]string{"Idle", "FrameAcquired", "Recording", "Submitted"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// bytesOf returns the memory of v as bytes.
func bytesOf[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// sliceBytes returns the memory of the elements of s as bytes.
func sliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(s[0])))
}
