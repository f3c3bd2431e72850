// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkdriver

import (
	"slices"
	"unsafe"

	"cogentcore.org/vframe/gpu"
	vk "github.com/goki/vulkan"
)

////////  Command pools and buffers

func (d *Driver) CreateCommandPool(family uint32) (gpu.Handle, gpu.Result) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(d.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}, nil, &pool)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(pool), gpu.Success
}

func (d *Driver) DestroyCommandPool(pool gpu.Handle) {
	vk.DestroyCommandPool(d.device, get[vk.CommandPool](d, pool), nil)
	d.remove(pool)
}

func (d *Driver) AllocateCommandBuffers(pool gpu.Handle, count int, primary bool) ([]gpu.Handle, gpu.Result) {
	level := vk.CommandBufferLevelPrimary
	if !primary {
		level = vk.CommandBufferLevelSecondary
	}
	cmds := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        get[vk.CommandPool](d, pool),
		Level:              level,
		CommandBufferCount: uint32(count),
	}, cmds)
	if ret != vk.Success {
		return nil, gpu.Result(ret)
	}
	hs := make([]gpu.Handle, count)
	for i, c := range cmds {
		hs[i] = d.add(c)
	}
	return hs, gpu.Success
}

func (d *Driver) FreeCommandBuffers(pool gpu.Handle, cmds []gpu.Handle) {
	vk.FreeCommandBuffers(d.device, get[vk.CommandPool](d, pool), uint32(len(cmds)),
		handles[vk.CommandBuffer](d, cmds))
	for _, h := range cmds {
		d.remove(h)
	}
}

func (d *Driver) BeginCommandBuffer(cmd gpu.Handle, usage gpu.CommandBufferUsage) gpu.Result {
	info := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(usage),
	}
	// secondary buffers only run inside the main render pass
	if usage&gpu.CommandBufferUsageRenderPassContinue != 0 {
		info.PInheritanceInfo = []vk.CommandBufferInheritanceInfo{{
			SType: vk.StructureTypeCommandBufferInheritanceInfo,
		}}
	}
	return gpu.Result(vk.BeginCommandBuffer(get[vk.CommandBuffer](d, cmd), info))
}

func (d *Driver) EndCommandBuffer(cmd gpu.Handle) gpu.Result {
	return gpu.Result(vk.EndCommandBuffer(get[vk.CommandBuffer](d, cmd)))
}

func (d *Driver) ResetCommandBuffer(cmd gpu.Handle, releaseResources bool) gpu.Result {
	var flags vk.CommandBufferResetFlags
	if releaseResources {
		flags = vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit)
	}
	return gpu.Result(vk.ResetCommandBuffer(get[vk.CommandBuffer](d, cmd), flags))
}

func (d *Driver) QueueSubmit(queue gpu.Handle, info gpu.SubmitInfo, fence gpu.Handle) gpu.Result {
	stages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = vk.PipelineStageFlags(s)
	}
	submit := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(info.WaitSemaphores)),
		PWaitSemaphores:      handles[vk.Semaphore](d, info.WaitSemaphores),
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(info.CommandBuffers)),
		PCommandBuffers:      handles[vk.CommandBuffer](d, info.CommandBuffers),
		SignalSemaphoreCount: uint32(len(info.SignalSemaphores)),
		PSignalSemaphores:    handles[vk.Semaphore](d, info.SignalSemaphores),
	}}
	return gpu.Result(vk.QueueSubmit(get[vk.Queue](d, queue), 1, submit, get[vk.Fence](d, fence)))
}

////////  Swapchain

func (d *Driver) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Handle, gpu.Result) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(d.physical[d.adapter], d.surface, &caps)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	caps.Deref()

	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, a := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(a) != 0 {
			compositeAlpha = a
			break
		}
	}

	families := slices.Compact(slices.Sorted(slices.Values(info.QueueFamilies)))
	sharing := vk.SharingModeExclusive
	if len(families) > 1 {
		sharing = vk.SharingModeConcurrent
	} else {
		families = nil
	}

	var sc vk.Swapchain
	ret = vk.CreateSwapchain(d.device, &vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         d.surface,
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format.Format),
		ImageColorSpace: vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      sharing,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PreTransform:          preTransform,
		CompositeAlpha:        compositeAlpha,
		PresentMode:           vk.PresentMode(info.PresentMode),
		Clipped:               vk.True,
		OldSwapchain:          get[vk.Swapchain](d, info.Old),
	}, nil, &sc)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(sc), gpu.Success
}

// DestroySwapchain also drops the handles of the swapchain images,
// which are owned by the swapchain.
func (d *Driver) DestroySwapchain(sc gpu.Handle) {
	vk.DestroySwapchain(d.device, get[vk.Swapchain](d, sc), nil)
	d.remove(sc)
	for _, h := range d.swapImages[sc] {
		d.remove(h)
	}
	delete(d.swapImages, sc)
}

func (d *Driver) SwapchainImages(sc gpu.Handle) ([]gpu.Handle, gpu.Result) {
	if hs, ok := d.swapImages[sc]; ok {
		return hs, gpu.Success
	}
	swap := get[vk.Swapchain](d, sc)
	var count uint32
	if ret := vk.GetSwapchainImages(d.device, swap, &count, nil); ret != vk.Success {
		return nil, gpu.Result(ret)
	}
	imgs := make([]vk.Image, count)
	if ret := vk.GetSwapchainImages(d.device, swap, &count, imgs); ret != vk.Success {
		return nil, gpu.Result(ret)
	}
	hs := make([]gpu.Handle, count)
	for i, img := range imgs {
		hs[i] = d.add(img)
	}
	d.swapImages[sc] = hs
	return hs, gpu.Success
}

func (d *Driver) AcquireNextImage(sc gpu.Handle, timeout uint64, sem gpu.Handle) (uint32, gpu.Result) {
	var idx uint32
	var noFence vk.Fence
	ret := vk.AcquireNextImage(d.device, get[vk.Swapchain](d, sc), timeout,
		get[vk.Semaphore](d, sem), noFence, &idx)
	return idx, gpu.Result(ret)
}

func (d *Driver) QueuePresent(queue, sc gpu.Handle, imageIndex uint32, wait []gpu.Handle) gpu.Result {
	return gpu.Result(vk.QueuePresent(get[vk.Queue](d, queue), &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    handles[vk.Semaphore](d, wait),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{get[vk.Swapchain](d, sc)},
		PImageIndices:      []uint32{imageIndex},
	}))
}

////////  Recording

func (d *Driver) CmdBeginRenderPass(cmd, rp, fb gpu.Handle, area gpu.Rect2D, clear gpu.ClearValues) {
	vk.CmdBeginRenderPass(get[vk.CommandBuffer](d, cmd), &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      get[vk.RenderPass](d, rp),
		Framebuffer:     get[vk.Framebuffer](d, fb),
		RenderArea:      rect2D(area),
		ClearValueCount: 2,
		PClearValues: []vk.ClearValue{
			vk.NewClearValue(clear.Color[:]),
			vk.NewClearDepthStencil(clear.Depth, clear.Stencil),
		},
	}, vk.SubpassContentsInline)
}

func (d *Driver) CmdEndRenderPass(cmd gpu.Handle) {
	vk.CmdEndRenderPass(get[vk.CommandBuffer](d, cmd))
}

func (d *Driver) CmdSetViewport(cmd gpu.Handle, vp gpu.Viewport) {
	vk.CmdSetViewport(get[vk.CommandBuffer](d, cmd), 0, 1, []vk.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
}

func (d *Driver) CmdSetScissor(cmd gpu.Handle, scissor gpu.Rect2D) {
	vk.CmdSetScissor(get[vk.CommandBuffer](d, cmd), 0, 1, []vk.Rect2D{rect2D(scissor)})
}

func (d *Driver) CmdBindPipeline(cmd, pipeline gpu.Handle) {
	vk.CmdBindPipeline(get[vk.CommandBuffer](d, cmd), vk.PipelineBindPointGraphics,
		get[vk.Pipeline](d, pipeline))
}

func (d *Driver) CmdBindDescriptorSet(cmd, layout, set gpu.Handle) {
	vk.CmdBindDescriptorSets(get[vk.CommandBuffer](d, cmd), vk.PipelineBindPointGraphics,
		get[vk.PipelineLayout](d, layout), 0, 1,
		[]vk.DescriptorSet{get[vk.DescriptorSet](d, set)}, 0, nil)
}

func (d *Driver) CmdBindVertexBuffer(cmd, buf gpu.Handle, offset uint64) {
	vk.CmdBindVertexBuffers(get[vk.CommandBuffer](d, cmd), 0, 1,
		[]vk.Buffer{get[vk.Buffer](d, buf)}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (d *Driver) CmdBindIndexBuffer(cmd, buf gpu.Handle, offset uint64) {
	vk.CmdBindIndexBuffer(get[vk.CommandBuffer](d, cmd), get[vk.Buffer](d, buf),
		vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (d *Driver) CmdPushConstants(cmd, layout gpu.Handle, stages gpu.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(get[vk.CommandBuffer](d, cmd), get[vk.PipelineLayout](d, layout),
		vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *Driver) CmdDrawIndexed(cmd gpu.Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(get[vk.CommandBuffer](d, cmd), indexCount, instanceCount, firstIndex,
		vertexOffset, firstInstance)
}

func (d *Driver) CmdCopyBuffer(cmd, src, dst gpu.Handle, region gpu.BufferCopy) {
	vk.CmdCopyBuffer(get[vk.CommandBuffer](d, cmd), get[vk.Buffer](d, src), get[vk.Buffer](d, dst),
		1, []vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(region.SrcOffset),
			DstOffset: vk.DeviceSize(region.DstOffset),
			Size:      vk.DeviceSize(region.Size),
		}})
}

func (d *Driver) CmdCopyBufferToImage(cmd, buf, img gpu.Handle, layout gpu.ImageLayout, region gpu.BufferImageCopy) {
	vk.CmdCopyBufferToImage(get[vk.CommandBuffer](d, cmd), get[vk.Buffer](d, buf),
		get[vk.Image](d, img), vk.ImageLayout(layout), 1, []vk.BufferImageCopy{{
			BufferOffset: vk.DeviceSize(region.BufferOffset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(region.Aspect),
				LayerCount: region.LayerCount,
			},
			ImageExtent: vk.Extent3D{
				Width:  region.Extent.Width,
				Height: region.Extent.Height,
				Depth:  region.Extent.Depth,
			},
		}})
}

func (d *Driver) CmdPipelineBarrier(cmd gpu.Handle, b gpu.ImageBarrier) {
	vk.CmdPipelineBarrier(get[vk.CommandBuffer](d, cmd),
		vk.PipelineStageFlags(b.SrcStage), vk.PipelineStageFlags(b.DstStage), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               get[vk.Image](d, b.Image),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(b.Aspect),
				LevelCount: b.MipLevels,
				LayerCount: b.LayerCount,
			},
		}})
}

func rect2D(r gpu.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
	}
}
