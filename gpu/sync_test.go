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

func submitEmpty(t *testing.T, dv *gpu.Device, fc *gpu.Fence) *gpu.CommandBuffer {
	t.Helper()
	cb, err := gpu.NewCommandBuffer(dv, true)
	require.NoError(t, err)
	require.NoError(t, cb.BeginRecording(true, false, false))
	require.NoError(t, cb.EndRecording())
	require.NoError(t, cb.Submit(dv.GraphicsQueue, gpu.SubmitOptions{Fence: fc, ResetFence: fc != nil && fc.Signaled()}))
	return cb
}

func TestFenceCreatedSignaled(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	fc, err := gpu.NewFence(dv, true)
	require.NoError(t, err)
	assert.True(t, fc.Signaled())
	assert.True(t, fc.Wait(gpu.MaxTimeout))
	assert.Zero(t, drv.FenceWaits)

	require.NoError(t, fc.Reset())
	assert.False(t, fc.Signaled())
	assert.False(t, drv.FenceSignaled(fc.Handle))
	assert.Empty(t, drv.Violations)
}

func TestFenceWaitOncePerSubmission(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	fc, err := gpu.NewFence(dv, false)
	require.NoError(t, err)
	cb := submitEmpty(t, dv, fc)
	assert.False(t, fc.Signaled())

	assert.True(t, fc.Wait(gpu.MaxTimeout))
	assert.True(t, fc.Wait(gpu.MaxTimeout))
	assert.Equal(t, 1, drv.FenceWaits)
	assert.True(t, fc.Signaled())
	cb.Free()
	assert.Empty(t, drv.Violations)
}

func TestFenceWaitNeverSubmitted(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	fc, err := gpu.NewFence(dv, false)
	require.NoError(t, err)
	assert.False(t, fc.Wait(1000))
	assert.False(t, fc.Signaled())
	// waiting on a fence that nothing will signal is a deadlock
	assert.Len(t, drv.Violations, 1)
}

func TestFenceWaitDeviceLost(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	fc, err := gpu.NewFence(dv, false)
	require.NoError(t, err)
	cb := submitEmpty(t, dv, fc)
	drv.Fail = map[string]gpu.Result{"WaitForFence": gpu.ErrorDeviceLost}
	assert.False(t, fc.Wait(gpu.MaxTimeout))
	assert.False(t, fc.Signaled())

	drv.Fail = nil
	assert.True(t, fc.Wait(gpu.MaxTimeout))
	cb.Free()
}

func TestSemaphoreDestroy(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	sm, err := gpu.NewSemaphore(dv)
	require.NoError(t, err)
	assert.Equal(t, 1, drv.LiveOf("Semaphore"))
	sm.Destroy()
	sm.Destroy()
	assert.True(t, sm.Handle.IsNull())
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("Semaphore"))
	assert.Empty(t, drv.Violations)
}
