// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gputest

import (
	"cogentcore.org/vframe/gpu"
)

type fence struct {
	signaled bool

	// sub is the last submission signaling the fence, or nil.
	sub *Submission
}

type semaphore struct {
	signaled bool
}

type memory struct {
	data   []byte
	props  gpu.MemoryProperty
	mapped bool
}

type buffer struct {
	size   uint64
	usage  gpu.BufferUsage
	mem    gpu.Handle
	offset uint64
}

type image struct {
	cfg    gpu.ImageConfig
	size   uint64
	mem    gpu.Handle
	layout gpu.ImageLayout

	// swapchain is the owning swapchain, for presentable images.
	swapchain gpu.Handle
}

type framebuffer struct {
	pass        gpu.Handle
	attachments []gpu.Handle
	extent      gpu.Extent2D
}

// BytesPerPixel returns the texel size of the formats the simulator knows.
func BytesPerPixel(f gpu.Format) uint64 {
	switch f {
	case gpu.FormatR8Unorm:
		return 1
	case gpu.FormatR8G8Unorm:
		return 2
	case gpu.FormatR8G8B8Unorm:
		return 3
	case gpu.FormatD32SfloatS8Uint:
		return 8
	}
	return 4
}

////////  Sync

func (d *Driver) CreateFence(signaled bool) (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateFence"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	h := d.newHandle("Fence")
	d.fences[h] = &fence{signaled: signaled}
	return h, gpu.Success
}

func (d *Driver) DestroyFence(h gpu.Handle) {
	if d.destroy("Fence", h) {
		delete(d.fences, h)
	}
}

// WaitForFence completes pending work up to the fence's submission.
// Waiting on a fence that nothing will signal returns Timeout, as a
// real wait would after the timeout, and is recorded as a violation.
func (d *Driver) WaitForFence(h gpu.Handle, timeout uint64) gpu.Result {
	d.FenceWaits++
	f, ok := d.fences[h]
	if !ok {
		d.violation("wait on unknown fence %d", h)
		return gpu.ErrorUnknown
	}
	if r := d.fail("WaitForFence"); r != gpu.Success {
		return r
	}
	if f.sub != nil {
		if !f.sub.Done {
			d.complete(f.sub)
		}
		f.sub.waits++
	}
	if !f.signaled {
		d.violation("wait on fence %d that no submission signals", h)
		return gpu.Timeout
	}
	return gpu.Success
}

func (d *Driver) ResetFence(h gpu.Handle) gpu.Result {
	f, ok := d.fences[h]
	if !ok {
		d.violation("reset of unknown fence %d", h)
		return gpu.ErrorUnknown
	}
	if f.sub != nil && !f.sub.Done {
		d.violation("reset of fence %d while its submission is pending", h)
	}
	f.signaled = false
	return gpu.Success
}

// FenceSignaled returns whether the fence is signaled.
func (d *Driver) FenceSignaled(h gpu.Handle) bool {
	f, ok := d.fences[h]
	return ok && f.signaled
}

func (d *Driver) CreateSemaphore() (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateSemaphore"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	h := d.newHandle("Semaphore")
	d.sems[h] = &semaphore{}
	return h, gpu.Success
}

func (d *Driver) DestroySemaphore(h gpu.Handle) {
	if d.destroy("Semaphore", h) {
		delete(d.sems, h)
	}
}

// SemaphoreSignaled returns whether the semaphore has a signal that
// no wait has consumed.
func (d *Driver) SemaphoreSignaled(h gpu.Handle) bool {
	s, ok := d.sems[h]
	return ok && s.signaled
}

func (d *Driver) signal(h gpu.Handle, op string) {
	s, ok := d.sems[h]
	if !ok {
		d.violation("%s: signal of unknown semaphore %d", op, h)
		return
	}
	if s.signaled {
		d.violation("%s: signal of semaphore %d that is already signaled", op, h)
	}
	s.signaled = true
}

func (d *Driver) wait(h gpu.Handle, op string) {
	s, ok := d.sems[h]
	if !ok {
		d.violation("%s: wait on unknown semaphore %d", op, h)
		return
	}
	if !s.signaled {
		d.violation("%s: wait on semaphore %d with no signal pending", op, h)
	}
	s.signaled = false
}

////////  Memory

func (d *Driver) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Handle, gpu.MemoryRequirements, gpu.Result) {
	if r := d.fail("CreateBuffer"); r != gpu.Success {
		return gpu.NullHandle, gpu.MemoryRequirements{}, r
	}
	if size == 0 {
		d.violation("CreateBuffer: zero size")
	}
	h := d.newHandle("Buffer")
	d.buffers[h] = &buffer{size: size, usage: usage}
	return h, gpu.MemoryRequirements{Size: size, Alignment: 16, TypeBits: d.allTypes()}, gpu.Success
}

func (d *Driver) allTypes() uint32 {
	if d.OpenedAdapter < 0 {
		return 0
	}
	return 1<<uint(len(d.AdapterInfos[d.OpenedAdapter].MemoryTypes)) - 1
}

func (d *Driver) DestroyBuffer(h gpu.Handle) {
	if d.destroy("Buffer", h) {
		delete(d.buffers, h)
	}
}

func (d *Driver) AllocateMemory(size uint64, memoryType uint32) (gpu.Handle, gpu.Result) {
	if r := d.fail("AllocateMemory"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	types := d.AdapterInfos[d.OpenedAdapter].MemoryTypes
	if int(memoryType) >= len(types) {
		d.violation("AllocateMemory: invalid memory type %d", memoryType)
		return gpu.NullHandle, gpu.ErrorOutOfDeviceMemory
	}
	h := d.newHandle("Memory")
	d.memory[h] = &memory{data: make([]byte, size), props: types[memoryType].Properties}
	return h, gpu.Success
}

func (d *Driver) FreeMemory(h gpu.Handle) {
	if !d.destroy("Memory", h) {
		return
	}
	for bh, b := range d.buffers {
		if b.mem == h {
			d.violation("memory %d freed while buffer %d is bound to it", h, bh)
		}
	}
	for ih, im := range d.images {
		if im.mem == h {
			d.violation("memory %d freed while image %d is bound to it", h, ih)
		}
	}
	delete(d.memory, h)
}

func (d *Driver) BindBufferMemory(buf, mem gpu.Handle, offset uint64) gpu.Result {
	b, ok := d.buffers[buf]
	m, mok := d.memory[mem]
	if !ok || !mok {
		d.violation("BindBufferMemory: unknown buffer %d or memory %d", buf, mem)
		return gpu.ErrorUnknown
	}
	if !b.mem.IsNull() {
		d.violation("BindBufferMemory: buffer %d already bound", buf)
	}
	if offset+b.size > uint64(len(m.data)) {
		d.violation("BindBufferMemory: buffer %d does not fit in memory %d", buf, mem)
	}
	b.mem, b.offset = mem, offset
	return gpu.Success
}

func (d *Driver) MapMemory(mem gpu.Handle, offset, size uint64) ([]byte, gpu.Result) {
	m, ok := d.memory[mem]
	if !ok {
		d.violation("MapMemory: unknown memory %d", mem)
		return nil, gpu.ErrorUnknown
	}
	if m.props&gpu.MemoryPropertyHostVisible == 0 {
		d.violation("MapMemory: memory %d is not host visible", mem)
		return nil, gpu.ErrorUnknown
	}
	if m.mapped {
		d.violation("MapMemory: memory %d is already mapped", mem)
	}
	if size == gpu.WholeSize {
		size = uint64(len(m.data)) - offset
	}
	if offset+size > uint64(len(m.data)) {
		d.violation("MapMemory: range %d+%d past memory %d of %d bytes", offset, size, mem, len(m.data))
		return nil, gpu.ErrorUnknown
	}
	m.mapped = true
	return m.data[offset : offset+size : offset+size], gpu.Success
}

func (d *Driver) UnmapMemory(mem gpu.Handle) {
	m, ok := d.memory[mem]
	if !ok || !m.mapped {
		d.violation("UnmapMemory: memory %d is not mapped", mem)
		return
	}
	m.mapped = false
}

func (d *Driver) FlushMemory(mem gpu.Handle, offset, size uint64) gpu.Result {
	if _, ok := d.memory[mem]; !ok {
		d.violation("FlushMemory: unknown memory %d", mem)
		return gpu.ErrorUnknown
	}
	return gpu.Success
}

func (d *Driver) InvalidateMemory(mem gpu.Handle, offset, size uint64) gpu.Result {
	if _, ok := d.memory[mem]; !ok {
		d.violation("InvalidateMemory: unknown memory %d", mem)
		return gpu.ErrorUnknown
	}
	return gpu.Success
}

// BufferData returns the bytes of the memory bound to the buffer.
func (d *Driver) BufferData(buf gpu.Handle) []byte {
	b, ok := d.buffers[buf]
	if !ok || b.mem.IsNull() {
		return nil
	}
	return d.memory[b.mem].data[b.offset : b.offset+b.size]
}

// BufferUsage returns the usage the buffer was created with.
func (d *Driver) BufferUsage(buf gpu.Handle) gpu.BufferUsage {
	if b, ok := d.buffers[buf]; ok {
		return b.usage
	}
	return 0
}

////////  Images

func (d *Driver) CreateImage(cfg gpu.ImageConfig) (gpu.Handle, gpu.MemoryRequirements, gpu.Result) {
	if r := d.fail("CreateImage"); r != gpu.Success {
		return gpu.NullHandle, gpu.MemoryRequirements{}, r
	}
	e := cfg.Extent
	if e.Width == 0 || e.Height == 0 {
		d.violation("CreateImage: zero extent %dx%d", e.Width, e.Height)
	}
	size := uint64(e.Width) * uint64(e.Height) * uint64(max(e.Depth, 1)) * uint64(max(cfg.ArrayLayers, 1)) * BytesPerPixel(cfg.Format)
	h := d.newHandle("Image")
	d.images[h] = &image{cfg: cfg, size: size}
	return h, gpu.MemoryRequirements{Size: size, Alignment: 256, TypeBits: d.allTypes()}, gpu.Success
}

func (d *Driver) DestroyImage(h gpu.Handle) {
	if im, ok := d.images[h]; ok && !im.swapchain.IsNull() {
		d.violation("DestroyImage: image %d is owned by swapchain %d", h, im.swapchain)
		return
	}
	if d.destroy("Image", h) {
		delete(d.images, h)
	}
}

func (d *Driver) BindImageMemory(img, mem gpu.Handle) gpu.Result {
	im, ok := d.images[img]
	m, mok := d.memory[mem]
	if !ok || !mok {
		d.violation("BindImageMemory: unknown image %d or memory %d", img, mem)
		return gpu.ErrorUnknown
	}
	if im.size > uint64(len(m.data)) {
		d.violation("BindImageMemory: image %d does not fit in memory %d", img, mem)
	}
	im.mem = mem
	return gpu.Success
}

func (d *Driver) CreateImageView(img gpu.Handle, cfg gpu.ViewConfig) (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateImageView"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	if _, ok := d.images[img]; !ok {
		d.violation("CreateImageView: unknown image %d", img)
		return gpu.NullHandle, gpu.ErrorUnknown
	}
	h := d.newHandle("ImageView")
	d.views[h] = img
	return h, gpu.Success
}

func (d *Driver) DestroyImageView(h gpu.Handle) {
	if d.destroy("ImageView", h) {
		delete(d.views, h)
	}
}

// ImageData returns the bytes of the memory bound to the image.
func (d *Driver) ImageData(img gpu.Handle) []byte {
	im, ok := d.images[img]
	if !ok || im.mem.IsNull() {
		return nil
	}
	return d.memory[im.mem].data[:im.size]
}

// ImageLayout returns the current layout of the image.
func (d *Driver) ImageLayout(img gpu.Handle) gpu.ImageLayout {
	if im, ok := d.images[img]; ok {
		return im.layout
	}
	return gpu.ImageLayoutUndefined
}

func (d *Driver) CreateSampler(cfg gpu.SamplerConfig) (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateSampler"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	h := d.newHandle("Sampler")
	d.samplers[h] = cfg
	return h, gpu.Success
}

func (d *Driver) DestroySampler(h gpu.Handle) {
	if d.destroy("Sampler", h) {
		delete(d.samplers, h)
	}
}

// SamplerConfig returns the config the sampler was created with.
func (d *Driver) SamplerConfig(h gpu.Handle) gpu.SamplerConfig { return d.samplers[h] }

////////  Passes

func (d *Driver) CreateRenderPass(cfg gpu.RenderPassConfig) (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateRenderPass"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	h := d.newHandle("RenderPass")
	d.passes[h] = cfg
	return h, gpu.Success
}

func (d *Driver) DestroyRenderPass(h gpu.Handle) {
	if d.destroy("RenderPass", h) {
		delete(d.passes, h)
	}
}

func (d *Driver) CreateFramebuffer(rp gpu.Handle, attachments []gpu.Handle, extent gpu.Extent2D) (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateFramebuffer"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	if _, ok := d.passes[rp]; !ok {
		d.violation("CreateFramebuffer: unknown render pass %d", rp)
	}
	for _, v := range attachments {
		if _, ok := d.views[v]; !ok {
			d.violation("CreateFramebuffer: unknown image view %d", v)
		}
	}
	if extent.IsZero() {
		d.violation("CreateFramebuffer: zero extent")
	}
	h := d.newHandle("Framebuffer")
	d.fbs[h] = &framebuffer{pass: rp, attachments: attachments, extent: extent}
	return h, gpu.Success
}

func (d *Driver) DestroyFramebuffer(h gpu.Handle) {
	if d.destroy("Framebuffer", h) {
		delete(d.fbs, h)
	}
}

////////  Descriptors

func (d *Driver) CreateDescriptorPool(maxSets, uniformDescriptors uint32) (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateDescriptorPool"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	h := d.newHandle("DescriptorPool")
	d.descPools[h] = make([]gpu.Handle, 0, maxSets)
	return h, gpu.Success
}

func (d *Driver) DestroyDescriptorPool(h gpu.Handle) {
	if d.destroy("DescriptorPool", h) {
		delete(d.descPools, h)
	}
}

func (d *Driver) AllocateDescriptorSet(pool, layout gpu.Handle) (gpu.Handle, gpu.Result) {
	sets, ok := d.descPools[pool]
	if !ok {
		d.violation("AllocateDescriptorSet: unknown pool %d", pool)
		return gpu.NullHandle, gpu.ErrorUnknown
	}
	if len(sets) == cap(sets) {
		return gpu.NullHandle, gpu.ErrorOutOfDeviceMemory
	}
	h := d.newHandle("")
	d.descPools[pool] = append(sets, h)
	return h, gpu.Success
}

func (d *Driver) UpdateUniformDescriptor(set gpu.Handle, binding uint32, info gpu.DescriptorBufferInfo) {
	if _, ok := d.buffers[info.Buffer]; !ok {
		d.violation("UpdateUniformDescriptor: unknown buffer %d", info.Buffer)
	}
	d.DescriptorWrites = append(d.DescriptorWrites, DescriptorWrite{Set: set, Binding: binding, Info: info})
}
