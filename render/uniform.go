// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"unsafe"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/gpu"
)

// UniformBuffer is a persistently mapped uniform buffer with one
// instance of T per frame slot.
type UniformBuffer[T any] struct {
	Buffer *gpu.MemBuffer
}

// NewUniformBuffer creates and maps a buffer of frames instances.
func NewUniformBuffer[T any](dv *gpu.Device, frames int) (*UniformBuffer[T], error) {
	var v T
	mb, err := gpu.NewMemBuffer(dv, uint64(unsafe.Sizeof(v)), uint64(frames), gpu.BufferUsageUniform,
		gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent, 0)
	if err != nil {
		return nil, errors.Wrap(err, "render: creating uniform buffer")
	}
	if err := mb.Map(gpu.WholeSize, 0); err != nil {
		mb.Destroy()
		return nil, errors.Wrap(err, "render: mapping uniform buffer")
	}
	return &UniformBuffer[T]{Buffer: mb}, nil
}

// Frames returns the number of instances.
func (ub *UniformBuffer[T]) Frames() int { return int(ub.Buffer.InstanceCount) }

// Update writes the value for the frame slot and flushes it.
func (ub *UniformBuffer[T]) Update(frame int, v T) error {
	ub.Buffer.WriteToIndex(bytesOf(&v), frame)
	return ub.Buffer.FlushIndex(frame)
}

// DescriptorInfo returns the descriptor info of the frame slot's instance.
func (ub *UniformBuffer[T]) DescriptorInfo(frame int) gpu.DescriptorBufferInfo {
	return ub.Buffer.DescriptorInfoForIndex(frame)
}

func (ub *UniformBuffer[T]) Destroy() {
	if ub == nil {
		return
	}
	ub.Buffer.Destroy()
}
