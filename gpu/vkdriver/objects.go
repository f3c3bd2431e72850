// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkdriver

import (
	"unsafe"

	"cogentcore.org/vframe/gpu"
	vk "github.com/goki/vulkan"
)

////////  Sync

func (d *Driver) CreateFence(signaled bool) (gpu.Handle, gpu.Result) {
	info := &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if ret := vk.CreateFence(d.device, info, nil, &fence); ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(fence), gpu.Success
}

func (d *Driver) DestroyFence(fence gpu.Handle) {
	vk.DestroyFence(d.device, get[vk.Fence](d, fence), nil)
	d.remove(fence)
}

func (d *Driver) WaitForFence(fence gpu.Handle, timeout uint64) gpu.Result {
	fs := []vk.Fence{get[vk.Fence](d, fence)}
	return gpu.Result(vk.WaitForFences(d.device, 1, fs, vk.True, timeout))
}

func (d *Driver) ResetFence(fence gpu.Handle) gpu.Result {
	return gpu.Result(vk.ResetFences(d.device, 1, []vk.Fence{get[vk.Fence](d, fence)}))
}

func (d *Driver) CreateSemaphore() (gpu.Handle, gpu.Result) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(sem), gpu.Success
}

func (d *Driver) DestroySemaphore(sem gpu.Handle) {
	vk.DestroySemaphore(d.device, get[vk.Semaphore](d, sem), nil)
	d.remove(sem)
}

////////  Memory

func memoryRequirements(req vk.MemoryRequirements) gpu.MemoryRequirements {
	req.Deref()
	return gpu.MemoryRequirements{
		Size:      uint64(req.Size),
		Alignment: uint64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
	}
}

func (d *Driver) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Handle, gpu.MemoryRequirements, gpu.Result) {
	var buf vk.Buffer
	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.MemoryRequirements{}, gpu.Result(ret)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buf, &req)
	return d.add(buf), memoryRequirements(req), gpu.Success
}

func (d *Driver) DestroyBuffer(buf gpu.Handle) {
	vk.DestroyBuffer(d.device, get[vk.Buffer](d, buf), nil)
	d.remove(buf)
}

func (d *Driver) AllocateMemory(size uint64, memoryType uint32) (gpu.Handle, gpu.Result) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryType,
	}, nil, &mem)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	h := d.add(mem)
	d.memSizes[h] = size
	return h, gpu.Success
}

func (d *Driver) FreeMemory(mem gpu.Handle) {
	vk.FreeMemory(d.device, get[vk.DeviceMemory](d, mem), nil)
	d.remove(mem)
	delete(d.memSizes, mem)
}

func (d *Driver) BindBufferMemory(buf, mem gpu.Handle, offset uint64) gpu.Result {
	return gpu.Result(vk.BindBufferMemory(d.device, get[vk.Buffer](d, buf),
		get[vk.DeviceMemory](d, mem), vk.DeviceSize(offset)))
}

func (d *Driver) MapMemory(mem gpu.Handle, offset, size uint64) ([]byte, gpu.Result) {
	var ptr unsafe.Pointer
	ret := vk.MapMemory(d.device, get[vk.DeviceMemory](d, mem), vk.DeviceSize(offset),
		vk.DeviceSize(size), 0, &ptr)
	if ret != vk.Success {
		return nil, gpu.Result(ret)
	}
	n := size
	if size == gpu.WholeSize {
		n = d.memSizes[mem] - offset
	}
	return unsafe.Slice((*byte)(ptr), n), gpu.Success
}

func (d *Driver) UnmapMemory(mem gpu.Handle) {
	vk.UnmapMemory(d.device, get[vk.DeviceMemory](d, mem))
}

func (d *Driver) mappedRange(mem gpu.Handle, offset, size uint64) []vk.MappedMemoryRange {
	return []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: get[vk.DeviceMemory](d, mem),
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}}
}

func (d *Driver) FlushMemory(mem gpu.Handle, offset, size uint64) gpu.Result {
	return gpu.Result(vk.FlushMappedMemoryRanges(d.device, 1, d.mappedRange(mem, offset, size)))
}

func (d *Driver) InvalidateMemory(mem gpu.Handle, offset, size uint64) gpu.Result {
	return gpu.Result(vk.InvalidateMappedMemoryRanges(d.device, 1, d.mappedRange(mem, offset, size)))
}

////////  Images

func (d *Driver) CreateImage(cfg gpu.ImageConfig) (gpu.Handle, gpu.MemoryRequirements, gpu.Result) {
	var img vk.Image
	ret := vk.CreateImage(d.device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType(cfg.Type),
		Format:    vk.Format(cfg.Format),
		Extent: vk.Extent3D{
			Width:  cfg.Extent.Width,
			Height: cfg.Extent.Height,
			Depth:  cfg.Extent.Depth,
		},
		MipLevels:     cfg.MipLevels,
		ArrayLayers:   cfg.ArrayLayers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTiling(cfg.Tiling),
		Usage:         vk.ImageUsageFlags(cfg.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.MemoryRequirements{}, gpu.Result(ret)
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img, &req)
	return d.add(img), memoryRequirements(req), gpu.Success
}

func (d *Driver) DestroyImage(img gpu.Handle) {
	vk.DestroyImage(d.device, get[vk.Image](d, img), nil)
	d.remove(img)
}

func (d *Driver) BindImageMemory(img, mem gpu.Handle) gpu.Result {
	return gpu.Result(vk.BindImageMemory(d.device, get[vk.Image](d, img),
		get[vk.DeviceMemory](d, mem), 0))
}

func (d *Driver) CreateImageView(img gpu.Handle, cfg gpu.ViewConfig) (gpu.Handle, gpu.Result) {
	var view vk.ImageView
	ret := vk.CreateImageView(d.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    get[vk.Image](d, img),
		ViewType: vk.ImageViewType(cfg.Type),
		Format:   vk.Format(cfg.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(cfg.Aspect),
			LevelCount: cfg.MipLevels,
			LayerCount: cfg.LayerCount,
		},
	}, nil, &view)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(view), gpu.Success
}

func (d *Driver) DestroyImageView(view gpu.Handle) {
	vk.DestroyImageView(d.device, get[vk.ImageView](d, view), nil)
	d.remove(view)
}

func (d *Driver) CreateSampler(cfg gpu.SamplerConfig) (gpu.Handle, gpu.Result) {
	var samp vk.Sampler
	ret := vk.CreateSampler(d.device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(cfg.MagFilter),
		MinFilter:               vk.Filter(cfg.MinFilter),
		MipmapMode:              vk.SamplerMipmapMode(cfg.Mipmap),
		AddressModeU:            vk.SamplerAddressMode(cfg.AddressU),
		AddressModeV:            vk.SamplerAddressMode(cfg.AddressV),
		AddressModeW:            vk.SamplerAddressMode(cfg.AddressW),
		AnisotropyEnable:        bool32(cfg.Anisotropy > 0),
		MaxAnisotropy:           cfg.Anisotropy,
		BorderColor:             vk.BorderColor(cfg.Border),
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
	}, nil, &samp)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(samp), gpu.Success
}

func (d *Driver) DestroySampler(sampler gpu.Handle) {
	vk.DestroySampler(d.device, get[vk.Sampler](d, sampler), nil)
	d.remove(sampler)
}

////////  Render passes

// CreateRenderPass creates a single subpass pass that clears a color
// attachment for presenting and, if DepthFormat is set, a depth attachment.
func (d *Driver) CreateRenderPass(cfg gpu.RenderPassConfig) (gpu.Handle, gpu.Result) {
	attachments := []vk.AttachmentDescription{{
		Format:         vk.Format(cfg.ColorFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}
	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	access := vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	if cfg.DepthFormat != gpu.FormatUndefined {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vk.Format(cfg.DepthFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		stages |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		access |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}
	var rp vk.RenderPass
	ret := vk.CreateRenderPass(d.device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies: []vk.SubpassDependency{{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  stages,
			DstStageMask:  stages,
			DstAccessMask: access,
		}},
	}, nil, &rp)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(rp), gpu.Success
}

func (d *Driver) DestroyRenderPass(rp gpu.Handle) {
	vk.DestroyRenderPass(d.device, get[vk.RenderPass](d, rp), nil)
	d.remove(rp)
}

func (d *Driver) CreateFramebuffer(rp gpu.Handle, attachments []gpu.Handle, extent gpu.Extent2D) (gpu.Handle, gpu.Result) {
	views := handles[vk.ImageView](d, attachments)
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(d.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      get[vk.RenderPass](d, rp),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}, nil, &fb)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(fb), gpu.Success
}

func (d *Driver) DestroyFramebuffer(fb gpu.Handle) {
	vk.DestroyFramebuffer(d.device, get[vk.Framebuffer](d, fb), nil)
	d.remove(fb)
}

////////  Descriptors

func (d *Driver) CreateDescriptorPool(maxSets, uniformDescriptors uint32) (gpu.Handle, gpu.Result) {
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(d.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: uniformDescriptors,
		}},
	}, nil, &pool)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	return d.add(pool), gpu.Success
}

// DestroyDescriptorPool also frees the sets allocated from the pool.
func (d *Driver) DestroyDescriptorPool(pool gpu.Handle) {
	vk.DestroyDescriptorPool(d.device, get[vk.DescriptorPool](d, pool), nil)
	d.remove(pool)
	for h, owner := range d.setPools {
		if owner == pool {
			d.remove(h)
			delete(d.setPools, h)
		}
	}
}

func (d *Driver) AllocateDescriptorSet(pool, layout gpu.Handle) (gpu.Handle, gpu.Result) {
	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(d.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     get[vk.DescriptorPool](d, pool),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{get[vk.DescriptorSetLayout](d, layout)},
	}, &set)
	if ret != vk.Success {
		return gpu.NullHandle, gpu.Result(ret)
	}
	h := d.add(set)
	d.setPools[h] = pool
	return h, gpu.Success
}

func (d *Driver) UpdateUniformDescriptor(set gpu.Handle, binding uint32, info gpu.DescriptorBufferInfo) {
	vk.UpdateDescriptorSets(d.device, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          get[vk.DescriptorSet](d, set),
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: get[vk.Buffer](d, info.Buffer),
			Offset: vk.DeviceSize(info.Offset),
			Range:  vk.DeviceSize(info.Range),
		}},
	}}, 0, nil)
}
