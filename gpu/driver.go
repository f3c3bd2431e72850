// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

// Driver is the low-level GPU API that everything in this package is
// written against. Adapter-level methods take the index of an adapter
// returned by Adapters, and can be called before OpenDevice; all other
// methods require an open device. The vkdriver package implements it on
// Vulkan, and the gputest package provides a simulated GPU for tests.
//
// Methods mirror the Vulkan calls of the same name; Create methods return
// a [Result] that is [Success] when the returned handle is valid.
type Driver interface {
	// Adapters returns info for all the physical devices.
	Adapters() ([]AdapterInfo, error)

	// SurfaceSupport returns whether the queue family of the adapter
	// can present to the window surface.
	SurfaceSupport(adapter int, family uint32) bool

	SurfaceCapabilities(adapter int) (SurfaceCapabilities, Result)
	SurfaceFormats(adapter int) []SurfaceFormat
	PresentModes(adapter int) []PresentMode
	FormatProperties(adapter int, format Format) FormatProperties

	// OpenDevice creates the logical device on the given adapter.
	OpenDevice(adapter int, cfg DeviceConfig) Result

	Queue(family, index uint32) Handle
	DeviceWaitIdle() Result
	QueueWaitIdle(queue Handle) Result

	CreateCommandPool(family uint32) (Handle, Result)
	DestroyCommandPool(pool Handle)
	AllocateCommandBuffers(pool Handle, count int, primary bool) ([]Handle, Result)
	FreeCommandBuffers(pool Handle, cmds []Handle)
	BeginCommandBuffer(cmd Handle, usage CommandBufferUsage) Result
	EndCommandBuffer(cmd Handle) Result
	ResetCommandBuffer(cmd Handle, releaseResources bool) Result
	QueueSubmit(queue Handle, info SubmitInfo, fence Handle) Result

	CreateFence(signaled bool) (Handle, Result)
	DestroyFence(fence Handle)
	WaitForFence(fence Handle, timeout uint64) Result
	ResetFence(fence Handle) Result

	CreateSemaphore() (Handle, Result)
	DestroySemaphore(sem Handle)

	CreateBuffer(size uint64, usage BufferUsage) (Handle, MemoryRequirements, Result)
	DestroyBuffer(buf Handle)
	AllocateMemory(size uint64, memoryType uint32) (Handle, Result)
	FreeMemory(mem Handle)
	BindBufferMemory(buf, mem Handle, offset uint64) Result

	// MapMemory maps a range of host visible memory, returning a byte
	// slice aliasing it. size may be [WholeSize].
	MapMemory(mem Handle, offset, size uint64) ([]byte, Result)
	UnmapMemory(mem Handle)
	FlushMemory(mem Handle, offset, size uint64) Result
	InvalidateMemory(mem Handle, offset, size uint64) Result

	CreateImage(cfg ImageConfig) (Handle, MemoryRequirements, Result)
	DestroyImage(img Handle)
	BindImageMemory(img, mem Handle) Result
	CreateImageView(img Handle, cfg ViewConfig) (Handle, Result)
	DestroyImageView(view Handle)

	CreateSampler(cfg SamplerConfig) (Handle, Result)
	DestroySampler(sampler Handle)

	CreateRenderPass(cfg RenderPassConfig) (Handle, Result)
	DestroyRenderPass(rp Handle)
	CreateFramebuffer(rp Handle, attachments []Handle, extent Extent2D) (Handle, Result)
	DestroyFramebuffer(fb Handle)

	CreateSwapchain(info SwapchainCreateInfo) (Handle, Result)
	DestroySwapchain(sc Handle)
	SwapchainImages(sc Handle) ([]Handle, Result)

	// AcquireNextImage returns the index of the next presentable image,
	// signaling sem when it is available.
	AcquireNextImage(sc Handle, timeout uint64, sem Handle) (uint32, Result)

	// QueuePresent presents the image after the wait semaphores signal.
	QueuePresent(queue, sc Handle, imageIndex uint32, wait []Handle) Result

	CreateDescriptorPool(maxSets, uniformDescriptors uint32) (Handle, Result)
	DestroyDescriptorPool(pool Handle)
	AllocateDescriptorSet(pool, layout Handle) (Handle, Result)
	UpdateUniformDescriptor(set Handle, binding uint32, info DescriptorBufferInfo)

	CmdBeginRenderPass(cmd, rp, fb Handle, area Rect2D, clear ClearValues)
	CmdEndRenderPass(cmd Handle)
	CmdSetViewport(cmd Handle, vp Viewport)
	CmdSetScissor(cmd Handle, scissor Rect2D)
	CmdBindPipeline(cmd, pipeline Handle)
	CmdBindDescriptorSet(cmd, layout, set Handle)
	CmdBindVertexBuffer(cmd, buf Handle, offset uint64)
	CmdBindIndexBuffer(cmd, buf Handle, offset uint64)
	CmdPushConstants(cmd, layout Handle, stages ShaderStage, offset uint32, data []byte)
	CmdDrawIndexed(cmd Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdCopyBuffer(cmd, src, dst Handle, region BufferCopy)
	CmdCopyBufferToImage(cmd, buf, img Handle, layout ImageLayout, region BufferImageCopy)
	CmdPipelineBarrier(cmd Handle, barrier ImageBarrier)

	// Destroy destroys the logical device, surface and instance.
	Destroy()
}
