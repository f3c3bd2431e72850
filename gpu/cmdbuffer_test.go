// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutAsserts(t *testing.T) {
	t.Helper()
	if !errors.AssertionsEnabled {
		t.Skip("assertions are compiled out")
	}
}

func TestCommandBufferStates(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	sc, err := gpu.NewSwapchain(dv, gpu.SwapchainConfig{})
	require.NoError(t, err)
	defer sc.Destroy()
	fc, err := gpu.NewFence(dv, true)
	require.NoError(t, err)

	cb, err := gpu.NewCommandBuffer(dv, true)
	require.NoError(t, err)
	assert.Equal(t, gpu.Ready, cb.State())
	require.NoError(t, cb.BeginRecording(false, false, false))
	assert.Equal(t, gpu.Recording, cb.State())
	cb.BeginRenderPass(sc.RenderPass, sc.Framebuffers[0])
	assert.Equal(t, gpu.InRenderPass, cb.State())
	require.NoError(t, cb.EndRecording())
	assert.Equal(t, gpu.RecordingEnded, cb.State())
	require.NoError(t, cb.Submit(dv.GraphicsQueue, gpu.SubmitOptions{Fence: fc, ResetFence: true}))
	assert.Equal(t, gpu.Submitted, cb.State())
	assert.False(t, fc.Signaled())

	assert.True(t, fc.Wait(gpu.MaxTimeout))
	require.NoError(t, cb.Reset(false))
	assert.Equal(t, gpu.Ready, cb.State())
	require.NoError(t, cb.Reset(false))
	assert.Equal(t, gpu.Ready, cb.State())

	cmds := drv.LastSubmission().Commands
	require.Len(t, cmds, 2)
	assert.Equal(t, "BeginRenderPass", cmds[0].Op)
	assert.Equal(t, "EndRenderPass", cmds[1].Op)
	assert.Equal(t, []int{1}, drv.ReuseWaits)

	cb.Free()
	assert.Equal(t, gpu.NotAllocated, cb.State())
	cb.Free()
	assert.Empty(t, drv.Violations)
}

func TestNewCommandBuffers(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	cbs, err := gpu.NewCommandBuffers(dv, 3, true)
	require.NoError(t, err)
	require.Len(t, cbs, 3)
	assert.Equal(t, 3, drv.LiveOf("CommandBuffer"))
	for _, cb := range cbs {
		assert.Equal(t, gpu.Ready, cb.State())
		cb.Free()
	}
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("CommandBuffer"))
}

func TestCommandBufferWrongState(t *testing.T) {
	skipWithoutAsserts(t)
	_, dv := newDevice(t)
	defer dv.Destroy()
	cb, err := gpu.NewCommandBuffer(dv, true)
	require.NoError(t, err)

	assert.Panics(t, func() { cb.EndRecording() })
	assert.Panics(t, func() { cb.Submit(dv.GraphicsQueue, gpu.SubmitOptions{}) })
	assert.Panics(t, func() { cb.DrawIndexed(3, 1, 0, 0, 0) })
	require.NoError(t, cb.BeginRecording(true, false, false))
	assert.Panics(t, func() { cb.BeginRecording(true, false, false) })
	assert.Panics(t, func() { cb.Reset(false) })
	assert.Panics(t, func() { cb.DrawIndexed(3, 1, 0, 0, 0) })
	cb.Free()
}

func TestFreeEndsRecording(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	cb, err := gpu.NewCommandBuffer(dv, true)
	require.NoError(t, err)
	require.NoError(t, cb.BeginRecording(true, false, false))
	cb.Free()
	assert.Equal(t, gpu.NotAllocated, cb.State())
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("CommandBuffer"))
	assert.Empty(t, drv.Violations)
}

func TestFreeSubmittedWaitsForDevice(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	fc, err := gpu.NewFence(dv, false)
	require.NoError(t, err)
	cb, err := gpu.NewCommandBuffer(dv, true)
	require.NoError(t, err)
	require.NoError(t, cb.BeginRecording(true, false, false))
	require.NoError(t, cb.EndRecording())
	require.NoError(t, cb.Submit(dv.GraphicsQueue, gpu.SubmitOptions{Fence: fc}))
	assert.Equal(t, 1, drv.Pending())

	idle := drv.IdleWaits
	cb.Free()
	assert.Equal(t, idle+1, drv.IdleWaits)
	assert.Zero(t, drv.Pending())
	dv.WaitIdle()
	assert.Empty(t, drv.Violations)
}

func TestSubmitSemaphores(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	sem, err := gpu.NewSemaphore(dv)
	require.NoError(t, err)

	first, err := gpu.NewCommandBuffer(dv, true)
	require.NoError(t, err)
	require.NoError(t, first.BeginRecording(true, false, false))
	require.NoError(t, first.EndRecording())
	require.NoError(t, first.Submit(dv.GraphicsQueue, gpu.SubmitOptions{SignalSemaphores: []*gpu.Semaphore{sem}}))
	assert.True(t, drv.SemaphoreSignaled(sem.Handle))

	second, err := gpu.NewCommandBuffer(dv, true)
	require.NoError(t, err)
	require.NoError(t, second.BeginRecording(true, false, false))
	require.NoError(t, second.EndRecording())
	require.NoError(t, second.Submit(dv.GraphicsQueue, gpu.SubmitOptions{
		WaitSemaphores: []*gpu.Semaphore{sem},
		WaitStage:      gpu.PipelineStageColorAttachmentOutput,
	}))
	assert.False(t, drv.SemaphoreSignaled(sem.Handle))
	sub := drv.LastSubmission()
	assert.Equal(t, []gpu.Handle{sem.Handle}, sub.Wait)
	first.Free()
	second.Free()
	assert.Empty(t, drv.Violations)
}

func TestDiscardableCommandBuffer(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	dc, err := gpu.NewDiscardableCommandBuffer(dv)
	require.NoError(t, err)
	assert.Equal(t, gpu.Recording, dc.State())
	require.NoError(t, dc.End())
	assert.Equal(t, gpu.NotAllocated, dc.State())
	assert.Equal(t, 1, drv.Submits)
	assert.Zero(t, drv.Pending())

	dc, err = gpu.NewDiscardableCommandBuffer(dv)
	require.NoError(t, err)
	dc.Discard()
	assert.Equal(t, 1, drv.Submits)
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("CommandBuffer"))
	assert.Empty(t, drv.Violations)
}
