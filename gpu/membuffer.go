// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"cogentcore.org/vframe/base/errors"
)

// MemSizeAlign returns the size aligned up to the given alignment,
// which must be a power of two.
func MemSizeAlign(size, align uint64) uint64 {
	if align <= 1 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}

// MemBuffer is a fixed capacity block of GPU memory holding
// InstanceCount instances of InstanceSize bytes, each starting on an
// AlignmentSize boundary, so that one buffer can back independent
// per-frame sub-ranges. It can be persistently mapped for host writes.
type MemBuffer struct {
	Device *Device

	Buffer Handle
	Memory Handle

	// InstanceSize is the unaligned size of one instance.
	InstanceSize uint64

	// InstanceCount is the number of instances.
	InstanceCount uint64

	// AlignmentSize is the instance stride: InstanceSize rounded up
	// to the required offset alignment.
	AlignmentSize uint64

	// Size is AlignmentSize * InstanceCount.
	Size uint64

	Usage      BufferUsage
	Properties MemoryProperty

	// mapped is the host view of the mapped range, nil if not mapped.
	mapped    []byte
	mapOffset uint64
}

// NewMemBuffer creates a buffer for instanceCount instances of
// instanceSize bytes. The instance alignment is the device alignment
// for the usage, or minOffsetAlignment if that is larger.
func NewMemBuffer(dv *Device, instanceSize, instanceCount uint64, usage BufferUsage, props MemoryProperty, minOffsetAlignment uint64) (*MemBuffer, error) {
	al := dv.Alignment(usage)
	if minOffsetAlignment > al {
		al = minOffsetAlignment
	}
	mb := &MemBuffer{
		Device:        dv,
		InstanceSize:  instanceSize,
		InstanceCount: instanceCount,
		AlignmentSize: MemSizeAlign(instanceSize, al),
		Usage:         usage,
		Properties:    props,
	}
	mb.Size = mb.AlignmentSize * instanceCount
	var err error
	mb.Buffer, mb.Memory, err = dv.CreateBuffer(mb.Size, usage, props, true)
	if err != nil {
		return nil, err
	}
	return mb, nil
}

// Map maps size bytes starting at offset into host memory. size may be
// [WholeSize].
func (mb *MemBuffer) Map(size, offset uint64) error {
	errors.Assert(!mb.Buffer.IsNull() && !mb.Memory.IsNull(), "gpu.MemBuffer.Map: buffer not created")
	data, r := mb.Device.Driver.MapMemory(mb.Memory, offset, size)
	if r != Success {
		return errors.Wrap(r.Err(), "gpu: mapping buffer memory")
	}
	mb.mapped = data
	mb.mapOffset = offset
	return nil
}

// Unmap unmaps the buffer if it is mapped.
func (mb *MemBuffer) Unmap() {
	if mb.mapped == nil {
		return
	}
	mb.Device.Driver.UnmapMemory(mb.Memory)
	mb.mapped = nil
	mb.mapOffset = 0
}

// IsMapped returns whether the buffer is mapped.
func (mb *MemBuffer) IsMapped() bool { return mb.mapped != nil }

// Mapped returns the host view of the mapped range, or nil.
func (mb *MemBuffer) Mapped() []byte { return mb.mapped }

// WriteTo copies data into the mapped buffer at the given buffer offset.
// The buffer must be mapped, and the range must be inside the mapping.
// Passing [WholeSize] as offset copies data to the start of the mapping,
// and data must then cover the whole buffer.
func (mb *MemBuffer) WriteTo(data []byte, offset uint64) {
	errors.Assert(mb.mapped != nil, "gpu.MemBuffer.WriteTo: cannot copy to unmapped buffer")
	if offset == WholeSize {
		copy(mb.mapped, data)
		return
	}
	errors.Assert(offset >= mb.mapOffset, "gpu.MemBuffer.WriteTo: offset %d before mapped range", offset)
	start := offset - mb.mapOffset
	errors.Assert(start+uint64(len(data)) <= uint64(len(mb.mapped)),
		"gpu.MemBuffer.WriteTo: %d bytes at %d past mapped range of %d", len(data), offset, len(mb.mapped))
	copy(mb.mapped[start:], data)
}

// Flush makes host writes to a range of non-coherent memory visible
// to the device.
func (mb *MemBuffer) Flush(size, offset uint64) error {
	if r := mb.Device.Driver.FlushMemory(mb.Memory, offset, size); r != Success {
		return errors.Wrap(r.Err(), "gpu: flushing buffer memory")
	}
	return nil
}

// Invalidate makes device writes to a range of non-coherent memory
// visible to the host.
func (mb *MemBuffer) Invalidate(size, offset uint64) error {
	if r := mb.Device.Driver.InvalidateMemory(mb.Memory, offset, size); r != Success {
		return errors.Wrap(r.Err(), "gpu: invalidating buffer memory")
	}
	return nil
}

// IndexOffset returns the offset of instance index.
func (mb *MemBuffer) IndexOffset(index int) uint64 {
	errors.Assert(index >= 0 && uint64(index) < mb.InstanceCount,
		"gpu.MemBuffer: index %d out of range of %d instances", index, mb.InstanceCount)
	return uint64(index) * mb.AlignmentSize
}

// WriteToIndex writes one instance of data at the given index.
// data must not be longer than InstanceSize.
func (mb *MemBuffer) WriteToIndex(data []byte, index int) {
	errors.Assert(uint64(len(data)) <= mb.InstanceSize,
		"gpu.MemBuffer.WriteToIndex: %d bytes larger than instance size %d", len(data), mb.InstanceSize)
	mb.WriteTo(data, mb.IndexOffset(index))
}

// FlushIndex flushes the instance at the given index.
func (mb *MemBuffer) FlushIndex(index int) error {
	return mb.Flush(mb.AlignmentSize, mb.IndexOffset(index))
}

// InvalidateIndex invalidates the instance at the given index.
func (mb *MemBuffer) InvalidateIndex(index int) error {
	return mb.Invalidate(mb.AlignmentSize, mb.IndexOffset(index))
}

// DescriptorInfo returns the descriptor info for a range of the buffer.
func (mb *MemBuffer) DescriptorInfo(size, offset uint64) DescriptorBufferInfo {
	return DescriptorBufferInfo{Buffer: mb.Buffer, Offset: offset, Range: size}
}

// DescriptorInfoForIndex returns the descriptor info for one instance.
func (mb *MemBuffer) DescriptorInfoForIndex(index int) DescriptorBufferInfo {
	return mb.DescriptorInfo(mb.AlignmentSize, mb.IndexOffset(index))
}

// Resize reallocates the buffer with newSize bytes, copying the old
// contents with a blocking device copy, and returns false if the size
// is unchanged. It must not be called while any command buffer
// references the buffer, and the buffer must have been created with
// transfer source usage. A mapped buffer is unmapped.
func (mb *MemBuffer) Resize(newSize uint64) (bool, error) {
	if newSize == mb.Size {
		return false, nil
	}
	dv := mb.Device
	usage := mb.Usage | BufferUsageTransferSrc | BufferUsageTransferDst
	buf, mem, err := dv.CreateBuffer(newSize, usage, mb.Properties, true)
	if err != nil {
		return false, err
	}
	n := min(newSize, mb.Size)
	if n > 0 {
		if err := dv.CopyBuffer(mb.Buffer, buf, BufferCopy{Size: n}, nil); err != nil {
			dv.release(buf)
			dv.release(mem)
			return false, err
		}
	}
	mb.Unmap()
	dv.release(mb.Buffer)
	dv.release(mb.Memory)
	dv.WaitIdle()
	mb.Buffer, mb.Memory = buf, mem
	mb.Usage = usage
	mb.Size = newSize
	if mb.AlignmentSize > 0 {
		mb.InstanceCount = newSize / mb.AlignmentSize
	}
	return true, nil
}

// Destroy unmaps and releases the buffer and its memory.
func (mb *MemBuffer) Destroy() {
	if mb == nil || mb.Buffer.IsNull() {
		return
	}
	mb.Unmap()
	mb.Device.release(mb.Buffer)
	mb.Device.release(mb.Memory)
	mb.Buffer = NullHandle
	mb.Memory = NullHandle
}
