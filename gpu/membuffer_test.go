// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"bytes"
	"testing"

	"cogentcore.org/vframe/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hostProps = gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent

func TestMemSizeAlign(t *testing.T) {
	tests := []struct {
		size, align, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{100, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{100, 64, 128},
		{100, 16, 112},
		{100, 1, 100},
		{100, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gpu.MemSizeAlign(tt.size, tt.align), "size %d align %d", tt.size, tt.align)
	}
}

func TestMemBufferSizes(t *testing.T) {
	_, dv := newDevice(t)
	defer dv.Destroy()
	tests := []struct {
		usage     gpu.BufferUsage
		minAlign  uint64
		alignment uint64
	}{
		{gpu.BufferUsageUniform, 0, 256},
		{gpu.BufferUsageStorage, 0, 128},
		{gpu.BufferUsageVertex, 0, 100},
		{gpu.BufferUsageVertex, 16, 112},
		{gpu.BufferUsageUniform, 512, 512},
	}
	for _, tt := range tests {
		mb, err := gpu.NewMemBuffer(dv, 100, 3, tt.usage, hostProps, tt.minAlign)
		require.NoError(t, err)
		assert.Equal(t, tt.alignment, mb.AlignmentSize)
		assert.Equal(t, tt.alignment*3, mb.Size)
		assert.Equal(t, tt.alignment, mb.IndexOffset(1))
		mb.Destroy()
	}
}

func TestMemBufferWriteToIndex(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	mb, err := gpu.NewMemBuffer(dv, 100, 3, gpu.BufferUsageUniform, hostProps, 0)
	require.NoError(t, err)
	defer mb.Destroy()
	require.NoError(t, mb.Map(gpu.WholeSize, 0))
	assert.True(t, mb.IsMapped())
	assert.Len(t, mb.Mapped(), 768)

	data := bytes.Repeat([]byte{7}, 100)
	mb.WriteToIndex(data, 1)
	require.NoError(t, mb.FlushIndex(1))
	mem := drv.BufferData(mb.Buffer)
	assert.Equal(t, data, mem[256:356])
	assert.Equal(t, make([]byte, 156), mem[356:512])
	assert.Equal(t, make([]byte, 256), mem[:256])

	info := mb.DescriptorInfoForIndex(2)
	assert.Equal(t, gpu.DescriptorBufferInfo{Buffer: mb.Buffer, Offset: 512, Range: 256}, info)

	mb.Unmap()
	mb.Unmap()
	assert.False(t, mb.IsMapped())
	assert.Empty(t, drv.Violations)
}

func TestMemBufferPartialMap(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	mb, err := gpu.NewMemBuffer(dv, 64, 4, gpu.BufferUsageStorage, hostProps, 0)
	require.NoError(t, err)
	defer mb.Destroy()
	require.NoError(t, mb.Map(128, 128))
	mb.WriteTo([]byte("abcd"), 130)
	assert.Equal(t, "abcd", string(drv.BufferData(mb.Buffer)[130:134]))
	mb.Unmap()
}

func TestMemBufferWritePanics(t *testing.T) {
	skipWithoutAsserts(t)
	_, dv := newDevice(t)
	defer dv.Destroy()
	mb, err := gpu.NewMemBuffer(dv, 100, 3, gpu.BufferUsageUniform, hostProps, 0)
	require.NoError(t, err)
	defer mb.Destroy()

	assert.Panics(t, func() { mb.WriteToIndex(make([]byte, 10), 0) }, "unmapped")
	require.NoError(t, mb.Map(gpu.WholeSize, 0))
	assert.Panics(t, func() { mb.WriteToIndex(make([]byte, 101), 0) }, "larger than instance")
	assert.Panics(t, func() { mb.WriteToIndex(make([]byte, 10), 3) }, "index out of range")
	assert.Panics(t, func() { mb.WriteTo(make([]byte, 10), 760) }, "past mapping")
	mb.Unmap()
}

func TestMemBufferResize(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	usage := gpu.BufferUsageStorage | gpu.BufferUsageTransferSrc
	mb, err := gpu.NewMemBuffer(dv, 64, 2, usage, hostProps, 0)
	require.NoError(t, err)
	defer mb.Destroy()
	require.NoError(t, mb.Map(gpu.WholeSize, 0))
	mb.WriteToIndex([]byte("first"), 0)
	mb.WriteToIndex([]byte("second"), 1)
	old := mb.Buffer

	changed, err := mb.Resize(mb.Size)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = mb.Resize(256)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotEqual(t, old, mb.Buffer)
	assert.False(t, mb.IsMapped())
	assert.Equal(t, uint64(4), mb.InstanceCount)
	assert.Equal(t, uint64(256), mb.Size)
	data := drv.BufferData(mb.Buffer)
	require.Len(t, data, 256)
	assert.Equal(t, "first", string(data[:5]))
	assert.Equal(t, "second", string(data[64:70]))
	assert.Equal(t, 1, drv.LiveOf("Buffer"))
	assert.Empty(t, drv.Violations)
}

func TestMemBufferDestroy(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	mb, err := gpu.NewMemBuffer(dv, 16, 1, gpu.BufferUsageVertex, hostProps, 0)
	require.NoError(t, err)
	require.NoError(t, mb.Map(gpu.WholeSize, 0))
	mb.Destroy()
	mb.Destroy()
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("Buffer"))
	assert.Zero(t, drv.LiveOf("Memory"))
	assert.Empty(t, drv.Violations)
}
