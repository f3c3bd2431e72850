// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"cogentcore.org/vframe/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	unorm := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	assert.Equal(t, srgb, gpu.ChooseSurfaceFormat([]gpu.SurfaceFormat{unorm, srgb}))
	assert.Equal(t, unorm, gpu.ChooseSurfaceFormat([]gpu.SurfaceFormat{unorm}))
	assert.Equal(t, srgb, gpu.ChooseSurfaceFormat(nil))
}

func TestChoosePresentMode(t *testing.T) {
	all := []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox, gpu.PresentModeImmediate}
	tests := []struct {
		name  string
		modes []gpu.PresentMode
		vsync bool
		want  gpu.PresentMode
	}{
		{"vsync", all, true, gpu.PresentModeFifo},
		{"mailbox", all, false, gpu.PresentModeMailbox},
		{"immediate", []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeImmediate}, false, gpu.PresentModeImmediate},
		{"fifo only", []gpu.PresentMode{gpu.PresentModeFifo}, false, gpu.PresentModeFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gpu.ChoosePresentMode(tt.modes, tt.vsync))
		})
	}
}

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent:  gpu.Extent2D{Width: 800, Height: 600},
		MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
	}
	assert.Equal(t, gpu.Extent2D{Width: 800, Height: 600}, gpu.ChooseExtent(caps, gpu.Extent2D{Width: 10, Height: 10}))

	caps.CurrentExtent = gpu.Extent2D{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent}
	assert.Equal(t, gpu.Extent2D{Width: 1024, Height: 768}, gpu.ChooseExtent(caps, gpu.Extent2D{Width: 1024, Height: 768}))
	assert.Equal(t, gpu.Extent2D{Width: 4096, Height: 1}, gpu.ChooseExtent(caps, gpu.Extent2D{Width: 10000, Height: 0}))
}

func TestChooseImageCount(t *testing.T) {
	caps := gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 3}
	assert.Equal(t, uint32(3), gpu.ChooseImageCount(caps, 0))
	assert.Equal(t, uint32(2), gpu.ChooseImageCount(caps, 1))
	assert.Equal(t, uint32(3), gpu.ChooseImageCount(caps, 5))
	caps.MinImageCount, caps.MaxImageCount = 3, 3
	assert.Equal(t, uint32(3), gpu.ChooseImageCount(caps, 0))
	// no maximum
	caps.MaxImageCount = 0
	assert.Equal(t, uint32(6), gpu.ChooseImageCount(caps, 6))
}

func TestNewSwapchain(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	sc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{ClearColor: [4]float32{0.1, 0.1, 0.1, 1}, ClearDepth: 1})
	require.NoError(t, err)

	assert.Equal(t, gpu.Extent2D{Width: 1280, Height: 720}, sc.Extent)
	assert.Equal(t, 3, sc.ImageCount())
	assert.Equal(t, 2, sc.MaxFramesInFlight())
	assert.Equal(t, gpu.PresentModeMailbox, sc.PresentMode)
	assert.Equal(t, gpu.FormatB8G8R8A8Srgb, sc.Format.Format)
	assert.Equal(t, gpu.FormatD32Sfloat, sc.DepthFormat)
	assert.InDelta(t, 1280.0/720.0, sc.AspectRatio(), 1e-6)
	assert.Len(t, sc.ImageViews, 3)
	assert.Len(t, sc.DepthImages, 3)
	assert.Len(t, sc.Framebuffers, 3)
	assert.Equal(t, float32(1), sc.RenderPass.Clear.Depth)
	info := drv.SwapchainInfo(sc.Handle)
	assert.Equal(t, uint32(3), info.MinImageCount)
	assert.Equal(t, []uint32{0}, info.QueueFamilies)

	sc.Destroy()
	sc.Destroy()
	assert.Zero(t, drv.LiveObjects())
	assert.Empty(t, drv.Violations)
}

func TestSwapchainVSync(t *testing.T) {
	_, dv := newDevice(t)
	defer dv.Destroy()
	sc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{VSync: true})
	require.NoError(t, err)
	defer sc.Destroy()
	assert.Equal(t, gpu.PresentModeFifo, sc.PresentMode)
}

func TestSwapchainZeroExtent(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	drv.SetExtent(0, 0)
	_, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{})
	assert.ErrorIs(t, err, gpu.ErrZeroExtent)
	assert.Zero(t, drv.SwapchainsCreated)

	drv.SetExtent(800, 0)
	_, err = gpu.NewSwapchain(dv, gpu.SwapchainConfig{})
	assert.ErrorIs(t, err, gpu.ErrZeroExtent)
	assert.Zero(t, drv.SwapchainsCreated)
	assert.Empty(t, drv.Violations)
}

func TestSwapchainFramesInFlight(t *testing.T) {
	_, dv := newDevice(t)
	defer dv.Destroy()
	for _, tt := range []struct{ requested, want int }{{0, 2}, {1, 1}, {3, 3}, {8, 3}} {
		sc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{FramesInFlight: tt.requested})
		require.NoError(t, err)
		assert.Equal(t, tt.want, sc.MaxFramesInFlight(), "requested %d", tt.requested)
		sc.Destroy()
	}
	sc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{ImageCount: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, sc.MaxFramesInFlight())
	sc.Destroy()
}

func TestAcquireSubmitPresent(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	sc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{})
	require.NoError(t, err)
	defer sc.Destroy()

	imageAvailable, err := gpu.NewSemaphore(dv)
	require.NoError(t, err)
	renderFinished, err := gpu.NewSemaphore(dv)
	require.NoError(t, err)
	inFlight, err := gpu.NewFence(dv, true)
	require.NoError(t, err)
	cb, err := gpu.NewCommandBuffer(dv, true)
	require.NoError(t, err)

	for frame := range 4 {
		assert.Equal(t, frame%2, sc.CurrentFrame())
		idx, r := sc.AcquireNextImage(imageAvailable, inFlight, gpu.MaxTimeout)
		require.Equal(t, gpu.Success, r)
		assert.Equal(t, uint32(frame%3), idx)

		require.NoError(t, cb.Reset(false))
		require.NoError(t, cb.BeginRecording(false, false, false))
		cb.BeginRenderPass(sc.RenderPass, sc.Framebuffers[idx])
		require.NoError(t, cb.EndRecording())
		require.NoError(t, cb.Submit(dv.GraphicsQueue, gpu.SubmitOptions{
			WaitSemaphores:   []*gpu.Semaphore{imageAvailable},
			WaitStage:        gpu.PipelineStageColorAttachmentOutput,
			SignalSemaphores: []*gpu.Semaphore{renderFinished},
			Fence:            inFlight,
			ResetFence:       true,
		}))
		assert.Equal(t, gpu.Success, sc.PresentImage(idx, renderFinished))
	}
	assert.Equal(t, 0, sc.CurrentFrame())
	assert.Equal(t, []uint32{0, 1, 2, 0}, drv.Presented)
	// the created-signaled fence costs no wait, each submission one
	assert.Equal(t, 3, drv.FenceWaits)
	assert.True(t, inFlight.Wait(gpu.MaxTimeout))
	cb.Free()
	assert.Empty(t, drv.Violations)
}

func TestSwapchainOutOfDate(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	sc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{})
	require.NoError(t, err)
	sem, err := gpu.NewSemaphore(dv)
	require.NoError(t, err)

	drv.SetExtent(800, 600)
	_, r := sc.AcquireNextImage(sem, nil, gpu.MaxTimeout)
	assert.Equal(t, gpu.ErrorOutOfDate, r)
	assert.False(t, drv.SemaphoreSignaled(sem.Handle))

	nsc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{Old: sc})
	require.NoError(t, err)
	assert.Equal(t, sc.Handle, drv.SwapchainInfo(nsc.Handle).Old)
	assert.True(t, nsc.CompareFormats(sc))
	assert.Equal(t, gpu.Extent2D{Width: 800, Height: 600}, nsc.Extent)
	sc.Destroy()

	idx, r := nsc.AcquireNextImage(sem, nil, gpu.MaxTimeout)
	assert.Equal(t, gpu.Success, r)
	// presenting with no render still consumes the acquire signal
	assert.Equal(t, gpu.Success, nsc.PresentImage(idx, sem))
	nsc.Destroy()
	assert.Equal(t, 2, drv.SwapchainsCreated)
	assert.Empty(t, drv.Violations)
}

func TestPresentAdvancesOnFailure(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	sc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{})
	require.NoError(t, err)
	defer sc.Destroy()
	sem, err := gpu.NewSemaphore(dv)
	require.NoError(t, err)

	drv.PresentResults = []gpu.Result{gpu.Suboptimal}
	idx, r := sc.AcquireNextImage(sem, nil, gpu.MaxTimeout)
	require.Equal(t, gpu.Success, r)
	assert.Equal(t, gpu.Suboptimal, sc.PresentImage(idx, sem))
	assert.Equal(t, 1, sc.CurrentFrame())
}
