// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T) (*gputest.Driver, *gpu.Device) {
	t.Helper()
	drv := gputest.NewDriver()
	dv, err := gpu.NewDevice(drv, gpu.DefaultRequirements())
	require.NoError(t, err)
	return drv, dv
}

func TestNewDevice(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()

	assert.Equal(t, 0, dv.Adapter)
	assert.Equal(t, "Simulated GPU", dv.Info.Name)
	qi := dv.Families
	assert.Equal(t, uint32(0), qi.Graphics)
	assert.Equal(t, uint32(0), qi.Compute)
	assert.Equal(t, uint32(0), qi.Present)
	assert.Equal(t, uint32(1), qi.Transfer)
	assert.Equal(t, []gpu.DeviceQueueConfig{{Family: 0, Count: 2}, {Family: 1, Count: 1}}, drv.DeviceConfig.Queues)
	assert.Equal(t, []string{gpu.SwapchainExtension}, drv.DeviceConfig.Extensions)
	assert.True(t, drv.DeviceConfig.Features.SamplerAnisotropy)
	assert.False(t, dv.GraphicsQueue.IsNull())
	assert.Equal(t, dv.GraphicsQueue, dv.PresentQueue)
	assert.NotEqual(t, dv.GraphicsQueue, dv.TransferQueue)
	assert.Empty(t, drv.Violations)
}

func TestAdapterScoring(t *testing.T) {
	drv := gputest.NewDriver()
	integrated := gputest.DefaultAdapter()
	integrated.Name = "integrated"
	integrated.Type = gpu.DeviceTypeIntegratedGPU
	discrete := gputest.DefaultAdapter()
	discrete.Name = "discrete"
	discrete.Limits.MaxImageDimension2D = 8192
	drv.AdapterInfos = []gpu.AdapterInfo{integrated, discrete}

	dv, err := gpu.NewDevice(drv, gpu.DefaultRequirements())
	require.NoError(t, err)
	assert.Equal(t, 1, dv.Adapter)
	assert.Equal(t, "discrete", dv.Info.Name)
	dv.Destroy()

	assert.Equal(t, 116, gpu.Score(&integrated))
	assert.Equal(t, 1008, gpu.Score(&discrete))
	virtual := gputest.DefaultAdapter()
	virtual.Type = gpu.DeviceTypeVirtualGPU
	virtual.Limits.MaxImageDimension2D = 0
	assert.Equal(t, 10, gpu.Score(&virtual))
}

func TestAdapterTieFirstWins(t *testing.T) {
	drv := gputest.NewDriver()
	a, b := gputest.DefaultAdapter(), gputest.DefaultAdapter()
	a.Name, b.Name = "a", "b"
	drv.AdapterInfos = []gpu.AdapterInfo{a, b}
	dv, err := gpu.NewDevice(drv, gpu.DefaultRequirements())
	require.NoError(t, err)
	assert.Equal(t, "a", dv.Info.Name)
	dv.Destroy()
}

func TestNoSuitableGPU(t *testing.T) {
	tests := []struct {
		name   string
		modify func(drv *gputest.Driver, req *gpu.Requirements)
	}{
		{"no anisotropy", func(drv *gputest.Driver, req *gpu.Requirements) {
			drv.AdapterInfos[0].Features.SamplerAnisotropy = false
		}},
		{"no swapchain extension", func(drv *gputest.Driver, req *gpu.Requirements) {
			drv.AdapterInfos[0].Extensions = nil
		}},
		{"no present modes", func(drv *gputest.Driver, req *gpu.Requirements) {
			drv.Modes = nil
		}},
		{"no surface formats", func(drv *gputest.Driver, req *gpu.Requirements) {
			drv.Formats = nil
		}},
		{"no present family", func(drv *gputest.Driver, req *gpu.Requirements) {
			drv.PresentFamilies = map[uint32]bool{}
		}},
		{"not discrete", func(drv *gputest.Driver, req *gpu.Requirements) {
			drv.AdapterInfos[0].Type = gpu.DeviceTypeIntegratedGPU
			req.DiscreteGPU = true
		}},
		{"no graphics", func(drv *gputest.Driver, req *gpu.Requirements) {
			drv.AdapterInfos[0].QueueFamilies = []gpu.QueueFamily{{Flags: gpu.QueueCompute | gpu.QueueTransfer, Count: 1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := gputest.NewDriver()
			req := gpu.DefaultRequirements()
			tt.modify(drv, &req)
			_, err := gpu.NewDevice(drv, req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to find a suitable GPU")
			assert.Equal(t, -1, drv.OpenedAdapter)
		})
	}
}

func TestNoAdapters(t *testing.T) {
	drv := gputest.NewDriver()
	drv.AdapterInfos = nil
	_, err := gpu.NewDevice(drv, gpu.DefaultRequirements())
	assert.Error(t, err)

	drv = gputest.NewDriver()
	drv.Fail = map[string]gpu.Result{"OpenDevice": gpu.ErrorInitializationFailed}
	_, err = gpu.NewDevice(drv, gpu.DefaultRequirements())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating logical device")
}

func TestFindQueueFamilies(t *testing.T) {
	drv := gputest.NewDriver()
	fams := []gpu.QueueFamily{
		{Flags: gpu.QueueGraphics | gpu.QueueTransfer, Count: 1},
		{Flags: gpu.QueueGraphics | gpu.QueueCompute | gpu.QueueTransfer, Count: 1},
		{Flags: gpu.QueueCompute | gpu.QueueTransfer, Count: 1},
		{Flags: gpu.QueueTransfer, Count: 1},
		{Flags: gpu.QueueTransfer, Count: 1},
	}
	drv.AdapterInfos[0].QueueFamilies = fams
	qi := gpu.FindQueueFamilies(drv, 0, fams)
	// family 1 is the first with graphics, compute and present
	assert.Equal(t, uint32(1), qi.Graphics)
	assert.Equal(t, uint32(1), qi.Compute)
	assert.Equal(t, uint32(1), qi.Present)
	// dedicated transfer families tie, the later wins
	assert.Equal(t, uint32(4), qi.Transfer)
	assert.Equal(t, []uint32{1, 4}, qi.Unique())

	drv.PresentFamilies = map[uint32]bool{0: true}
	qi = gpu.FindQueueFamilies(drv, 0, fams)
	assert.Equal(t, uint32(0), qi.Graphics)
	assert.Equal(t, uint32(0), qi.Present)
	// graphics family 0 cannot compute
	assert.Equal(t, uint32(1), qi.Compute)
}

func TestFindMemoryType(t *testing.T) {
	_, dv := newDevice(t)
	defer dv.Destroy()
	assert.Equal(t, uint32(0), dv.FindMemoryType(0b111, gpu.MemoryPropertyDeviceLocal))
	assert.Equal(t, uint32(1), dv.FindMemoryType(0b111, gpu.MemoryPropertyHostVisible))
	assert.Equal(t, uint32(2), dv.FindMemoryType(0b101, gpu.MemoryPropertyHostVisible))
	assert.Equal(t, gpu.MemoryTypeNotFound, dv.FindMemoryType(0b001, gpu.MemoryPropertyHostVisible))
}

func TestDepthFormat(t *testing.T) {
	drv, dv := newDevice(t)
	drv.UnsupportedFormats = map[gpu.Format]bool{gpu.FormatD32Sfloat: true}
	f, err := dv.DepthFormat()
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatD32SfloatS8Uint, f)

	// cached once resolved
	drv.UnsupportedFormats[gpu.FormatD32SfloatS8Uint] = true
	f, err = dv.DepthFormat()
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatD32SfloatS8Uint, f)
	dv.Destroy()

	drv, dv = newDevice(t)
	defer dv.Destroy()
	drv.UnsupportedFormats = map[gpu.Format]bool{}
	for _, df := range gpu.DepthFormats {
		drv.UnsupportedFormats[df] = true
	}
	_, err = dv.DepthFormat()
	assert.Error(t, err)
}

func TestAlignment(t *testing.T) {
	_, dv := newDevice(t)
	defer dv.Destroy()
	assert.Equal(t, uint64(256), dv.Alignment(gpu.BufferUsageUniform))
	assert.Equal(t, uint64(64), dv.Alignment(gpu.BufferUsageStorage))
	assert.Equal(t, uint64(1), dv.Alignment(gpu.BufferUsageVertex))
}

func TestDeviceDestroyReleasesLeaks(t *testing.T) {
	drv, dv := newDevice(t)
	_, err := gpu.NewFence(dv, true)
	require.NoError(t, err)
	_, err = gpu.NewSemaphore(dv)
	require.NoError(t, err)
	_, err = gpu.NewMemBuffer(dv, 64, 2, gpu.BufferUsageUniform, gpu.MemoryPropertyHostVisible, 0)
	require.NoError(t, err)
	_, err = gpu.NewSwapchain(dv, gpu.SwapchainConfig{})
	require.NoError(t, err)
	assert.NotZero(t, drv.LiveObjects())

	dv.Destroy()
	assert.Zero(t, drv.LiveObjects())
	assert.Empty(t, drv.Violations)
}

func TestWaitIdleRetires(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	fc, err := gpu.NewFence(dv, false)
	require.NoError(t, err)
	fc.Destroy()
	assert.Equal(t, 1, drv.LiveOf("Fence"))
	assert.Equal(t, 1, dv.Registry.Pending())
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("Fence"))
	assert.Zero(t, dv.Registry.Pending())
	dv.WaitIdle()
	assert.Empty(t, drv.Violations)
}

func TestCopyBuffer(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	usage := gpu.BufferUsageTransferSrc | gpu.BufferUsageTransferDst
	props := gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent
	src, err := gpu.NewMemBuffer(dv, 16, 1, usage, props, 0)
	require.NoError(t, err)
	dst, err := gpu.NewMemBuffer(dv, 16, 1, usage, props, 0)
	require.NoError(t, err)
	copy(drv.BufferData(src.Buffer), []byte("0123456789abcdef"))

	require.NoError(t, dv.CopyBuffer(src.Buffer, dst.Buffer, gpu.BufferCopy{SrcOffset: 4, DstOffset: 0, Size: 8}, nil))
	assert.Equal(t, "456789ab", string(drv.BufferData(dst.Buffer)[:8]))
	assert.Zero(t, drv.Pending())

	fc, err := gpu.NewFence(dv, false)
	require.NoError(t, err)
	require.NoError(t, dv.CopyBuffer(src.Buffer, dst.Buffer, gpu.BufferCopy{Size: 16}, fc))
	assert.Equal(t, 1, drv.Pending())
	assert.True(t, fc.Wait(gpu.MaxTimeout))
	assert.Zero(t, drv.Pending())
	assert.Equal(t, "0123456789abcdef", string(drv.BufferData(dst.Buffer)))
	assert.Empty(t, drv.Violations)
}

func TestNoMemoryType(t *testing.T) {
	drv := gputest.NewDriver()
	drv.AdapterInfos[0].MemoryTypes = []gpu.MemoryType{{Properties: gpu.MemoryPropertyDeviceLocal, HeapIndex: 0}}
	dv, err := gpu.NewDevice(drv, gpu.DefaultRequirements())
	require.NoError(t, err)
	defer dv.Destroy()

	buf, mem, err := dv.CreateBuffer(64, gpu.BufferUsageUniform, gpu.MemoryPropertyHostVisible, true)
	assert.ErrorContains(t, err, "no memory type")
	assert.True(t, buf.IsNull())
	assert.True(t, mem.IsNull())

	_, err = gpu.NewImage(dv, gpu.ImageConfig{
		Type:       gpu.ImageType2D,
		Format:     gpu.FormatR8G8B8A8Unorm,
		Extent:     gpu.Extent3D{Width: 2, Height: 2},
		Usage:      gpu.ImageUsageSampled,
		Properties: gpu.MemoryPropertyHostVisible,
	}, false)
	assert.ErrorContains(t, err, "no memory type")

	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("Buffer"))
	assert.Zero(t, drv.LiveOf("Image"))
	assert.Zero(t, drv.LiveOf("Memory"))
	assert.Empty(t, drv.Violations)
}
