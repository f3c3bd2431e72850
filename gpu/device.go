// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"log/slog"
	"strings"

	"cogentcore.org/vframe/base/errors"
)

// SwapchainExtension is the device extension needed for presentation.
const SwapchainExtension = "VK_KHR_swapchain"

// Requirements are what an adapter must support to be selected.
type Requirements struct {
	Graphics          bool
	Compute           bool
	Transfer          bool
	Present           bool
	SamplerAnisotropy bool
	DiscreteGPU       bool
	Extensions        []string
}

// DefaultRequirements returns the requirements of the frame renderer:
// all queue kinds, anisotropic sampling and the swapchain extension.
func DefaultRequirements() Requirements {
	return Requirements{
		Graphics:          true,
		Compute:           true,
		Transfer:          true,
		Present:           true,
		SamplerAnisotropy: true,
		Extensions:        []string{SwapchainExtension},
	}
}

// QueueFamilyIndices are the queue families selected on an adapter.
// An index is only valid when the matching Has field is true.
type QueueFamilyIndices struct {
	Graphics, Compute, Transfer, Present             uint32
	HasGraphics, HasCompute, HasTransfer, HasPresent bool
}

// Unique returns the distinct selected families, graphics first.
func (qi *QueueFamilyIndices) Unique() []uint32 {
	var fams []uint32
	add := func(has bool, f uint32) {
		if !has {
			return
		}
		for _, e := range fams {
			if e == f {
				return
			}
		}
		fams = append(fams, f)
	}
	add(qi.HasGraphics, qi.Graphics)
	add(qi.HasPresent, qi.Present)
	add(qi.HasCompute, qi.Compute)
	add(qi.HasTransfer, qi.Transfer)
	return fams
}

// FindQueueFamilies selects queue families on the adapter.
// Graphics prefers a family that also does compute and present.
// Compute and present prefer the graphics family when it is capable.
// Transfer takes the family with the fewest other capabilities
// (graphics, compute), so a dedicated transfer family wins when there
// is one; later families win ties.
func FindQueueFamilies(drv Driver, adapter int, families []QueueFamily) QueueFamilyIndices {
	var qi QueueFamilyIndices
	present := make([]bool, len(families))
	for i, f := range families {
		if f.Count == 0 {
			continue
		}
		present[i] = drv.SurfaceSupport(adapter, uint32(i))
	}
	gfxFull := -1
	gfxAny := -1
	minTransfer := 255
	for i, f := range families {
		if f.Count == 0 {
			continue
		}
		fi := uint32(i)
		score := 0
		if f.Flags&QueueGraphics != 0 {
			score++
			if gfxAny < 0 {
				gfxAny = i
			}
			if gfxFull < 0 && f.Flags&QueueCompute != 0 && present[i] {
				gfxFull = i
			}
		}
		if f.Flags&QueueCompute != 0 {
			score++
			if !qi.HasCompute {
				qi.Compute, qi.HasCompute = fi, true
			}
		}
		if f.Flags&(QueueTransfer|QueueGraphics|QueueCompute) != 0 && score <= minTransfer {
			minTransfer = score
			qi.Transfer, qi.HasTransfer = fi, true
		}
		if present[i] && !qi.HasPresent {
			qi.Present, qi.HasPresent = fi, true
		}
	}
	switch {
	case gfxFull >= 0:
		qi.Graphics, qi.HasGraphics = uint32(gfxFull), true
	case gfxAny >= 0:
		qi.Graphics, qi.HasGraphics = uint32(gfxAny), true
	}
	if qi.HasGraphics {
		g := families[qi.Graphics]
		if g.Flags&QueueCompute != 0 {
			qi.Compute, qi.HasCompute = qi.Graphics, true
		}
		if present[qi.Graphics] {
			qi.Present, qi.HasPresent = qi.Graphics, true
		}
	}
	return qi
}

// Suitable returns whether the adapter meets the requirements,
// and if not, the reason.
func (req *Requirements) Suitable(drv Driver, adapter int, info *AdapterInfo, qi *QueueFamilyIndices) (bool, string) {
	switch {
	case req.Graphics && !qi.HasGraphics:
		return false, "no graphics queue family"
	case req.Compute && !qi.HasCompute:
		return false, "no compute queue family"
	case req.Transfer && !qi.HasTransfer:
		return false, "no transfer queue family"
	case req.Present && !qi.HasPresent:
		return false, "no present queue family"
	case req.SamplerAnisotropy && !info.Features.SamplerAnisotropy:
		return false, "no sampler anisotropy"
	case req.DiscreteGPU && info.Type != DeviceTypeDiscreteGPU:
		return false, "not a discrete GPU"
	}
	for _, ext := range req.Extensions {
		if !info.HasExtension(ext) {
			return false, "missing extension " + ext
		}
	}
	if req.Present {
		if len(drv.SurfaceFormats(adapter)) == 0 || len(drv.PresentModes(adapter)) == 0 {
			return false, "no surface formats or present modes"
		}
	}
	return true, ""
}

// Score ranks suitable adapters; higher is better.
func Score(info *AdapterInfo) int {
	score := int(info.Limits.MaxImageDimension2D / 1024)
	switch info.Type {
	case DeviceTypeDiscreteGPU:
		score += 1000
	case DeviceTypeIntegratedGPU:
		score += 100
	case DeviceTypeVirtualGPU:
		score += 10
	}
	return score
}

// VersionString formats a packed Vulkan-style version number.
func VersionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}

// Device is the one logical GPU connection, with its queues, the
// command pool used for all command buffers, and the [Registry] of
// all objects created on it.
type Device struct {

	// Driver is the low-level API.
	Driver Driver

	// Adapter is the index of the selected physical device.
	Adapter int

	// Info describes the selected physical device.
	Info AdapterInfo

	// Families are the selected queue families.
	Families QueueFamilyIndices

	GraphicsQueue Handle
	ComputeQueue  Handle
	TransferQueue Handle
	PresentQueue  Handle

	// CommandPool is on the graphics family, so all command
	// buffers are submitted to GraphicsQueue.
	CommandPool Handle

	// Registry holds every object created on the device.
	Registry *Registry

	depthFormat Format
}

// NewDevice selects the best adapter meeting the requirements and
// opens a logical device on it. Failure here is unrecoverable:
// the engine cannot start.
func NewDevice(drv Driver, req Requirements) (*Device, error) {
	adapters, err := drv.Adapters()
	if err != nil {
		return nil, errors.Wrap(err, "gpu: enumerating adapters")
	}
	if len(adapters) == 0 {
		return nil, errors.New("gpu: failed to find GPUs with Vulkan support")
	}
	best := -1
	bestScore := -1
	var bestFam QueueFamilyIndices
	for i := range adapters {
		info := &adapters[i]
		qi := FindQueueFamilies(drv, i, info.QueueFamilies)
		ok, reason := req.Suitable(drv, i, info, &qi)
		if !ok {
			slog.Info("gpu: adapter not suitable", "name", info.Name, "reason", reason)
			continue
		}
		if sc := Score(info); sc > bestScore {
			best, bestScore, bestFam = i, sc, qi
		}
	}
	if best < 0 {
		return nil, errors.New("gpu: failed to find a suitable GPU")
	}
	dv := &Device{Driver: drv, Adapter: best, Info: adapters[best], Families: bestFam}
	dv.logInfo()

	cfg := DeviceConfig{Extensions: req.Extensions}
	cfg.Features.SamplerAnisotropy = req.SamplerAnisotropy
	for _, f := range bestFam.Unique() {
		n := uint32(1)
		if f == bestFam.Graphics && dv.Info.QueueFamilies[f].Count >= 2 {
			n = 2
		}
		cfg.Queues = append(cfg.Queues, DeviceQueueConfig{Family: f, Count: n})
	}
	if r := drv.OpenDevice(best, cfg); r != Success {
		return nil, errors.Wrap(r.Err(), "gpu: creating logical device")
	}
	qi := &dv.Families
	if qi.HasGraphics {
		dv.GraphicsQueue = drv.Queue(qi.Graphics, 0)
	}
	if qi.HasCompute {
		dv.ComputeQueue = drv.Queue(qi.Compute, 0)
	}
	if qi.HasTransfer {
		dv.TransferQueue = drv.Queue(qi.Transfer, 0)
	}
	if qi.HasPresent {
		dv.PresentQueue = drv.Queue(qi.Present, 0)
	}
	pool, r := drv.CreateCommandPool(qi.Graphics)
	if r != Success {
		drv.Destroy()
		return nil, errors.Wrap(r.Err(), "gpu: creating command pool")
	}
	dv.CommandPool = pool
	dv.Registry = newRegistry(drv)
	dv.Registry.cmdPool = pool
	return dv, nil
}

func (dv *Device) logInfo() {
	info := &dv.Info
	slog.Info("gpu: selected adapter", "name", info.Name, "type", info.Type,
		"driver", VersionString(info.DriverVersion), "api", VersionString(info.APIVersion))
	for i, h := range info.Heaps {
		slog.Info("gpu: memory heap", "index", i, "MiB", h.Size/(1024*1024), "deviceLocal", h.DeviceLocal)
	}
	qi := &dv.Families
	slog.Info("gpu: queue families", "graphics", qi.Graphics, "compute", qi.Compute,
		"transfer", qi.Transfer, "present", qi.Present)
}

// WaitIdle blocks until all work on the device has retired, then
// destroys all released objects. It is cheap when nothing is pending.
func (dv *Device) WaitIdle() {
	if r := dv.Driver.DeviceWaitIdle(); r != Success {
		slog.Error("gpu.Device.WaitIdle", "result", r)
		return
	}
	dv.Registry.retire()
}

// register adds a newly created object to the registry.
func (dv *Device) register(kind ResourceKind, h Handle) {
	dv.Registry.Add(kind, h)
}

// release queues the object for destruction at the next WaitIdle.
func (dv *Device) release(h Handle) {
	if h.IsNull() {
		return
	}
	dv.Registry.Release(h)
}

// FindMemoryType returns the first memory type allowed by typeMask
// that has all the given properties, or [MemoryTypeNotFound].
func (dv *Device) FindMemoryType(typeMask uint32, props MemoryProperty) uint32 {
	for i, mt := range dv.Info.MemoryTypes {
		if typeMask&(1<<uint(i)) != 0 && mt.Properties&props == props {
			return uint32(i)
		}
	}
	slog.Warn("gpu.Device.FindMemoryType: no suitable memory type", "typeMask", typeMask, "properties", props)
	return MemoryTypeNotFound
}

// FindSupportedFormat returns the first candidate format that supports
// the features with the given tiling.
func (dv *Device) FindSupportedFormat(candidates []Format, tiling ImageTiling, features FormatFeature) (Format, error) {
	for _, f := range candidates {
		props := dv.Driver.FormatProperties(dv.Adapter, f)
		switch {
		case tiling == ImageTilingLinear && props.LinearTiling&features == features:
			return f, nil
		case tiling == ImageTilingOptimal && props.OptimalTiling&features == features:
			return f, nil
		}
	}
	names := make([]string, len(candidates))
	for i, f := range candidates {
		names[i] = f.String()
	}
	return FormatUndefined, errors.Newf("gpu: failed to find supported format among %s", strings.Join(names, ", "))
}

// DepthFormats are the depth formats in order of preference.
var DepthFormats = []Format{FormatD32Sfloat, FormatD32SfloatS8Uint, FormatD24UnormS8Uint}

// DepthFormat returns the preferred depth format supported for optimal
// tiling depth attachments. It is resolved once and cached.
func (dv *Device) DepthFormat() (Format, error) {
	if dv.depthFormat != FormatUndefined {
		return dv.depthFormat, nil
	}
	f, err := dv.FindSupportedFormat(DepthFormats, ImageTilingOptimal, FormatFeatureDepthStencilAttachment)
	if err != nil {
		return f, err
	}
	dv.depthFormat = f
	return f, nil
}

// Alignment returns the minimum offset alignment for instances in a
// buffer with the given usage, or 1 when the usage has none.
func (dv *Device) Alignment(usage BufferUsage) uint64 {
	lim := &dv.Info.Limits
	var al uint64
	switch {
	case usage&BufferUsageUniform != 0:
		al = lim.MinUniformBufferOffsetAlignment
	case usage&BufferUsageStorage != 0:
		al = lim.MinStorageBufferOffsetAlignment
	}
	if al == 0 {
		al = 1
	}
	return al
}

// CreateBuffer creates a buffer and allocates memory with the given
// properties for it, binding the memory when bind is true.
func (dv *Device) CreateBuffer(size uint64, usage BufferUsage, props MemoryProperty, bind bool) (buf, mem Handle, err error) {
	drv := dv.Driver
	buf, req, r := drv.CreateBuffer(size, usage)
	if r != Success {
		return NullHandle, NullHandle, errors.Wrapf(r.Err(), "gpu: creating buffer of %d bytes", size)
	}
	dv.register(KindBuffer, buf)
	mt := dv.FindMemoryType(req.TypeBits, props)
	if mt == MemoryTypeNotFound {
		dv.release(buf)
		return NullHandle, NullHandle, errors.Newf("gpu: no memory type for buffer with properties %#x", uint32(props))
	}
	mem, r = drv.AllocateMemory(req.Size, mt)
	if r != Success {
		dv.release(buf)
		return NullHandle, NullHandle, errors.Wrapf(r.Err(), "gpu: allocating %d bytes of buffer memory", req.Size)
	}
	dv.register(KindMemory, mem)
	if bind {
		if r := drv.BindBufferMemory(buf, mem, 0); r != Success {
			dv.release(buf)
			dv.release(mem)
			return NullHandle, NullHandle, errors.Wrap(r.Err(), "gpu: binding buffer memory")
		}
	}
	return buf, mem, nil
}

// CopyBuffer copies a region between buffers on the graphics queue,
// using a short-lived command buffer. With a nil fence it blocks until
// the copy is done; otherwise it returns immediately and the caller
// must wait on the fence before using dst.
func (dv *Device) CopyBuffer(src, dst Handle, region BufferCopy, fence *Fence) error {
	cb, err := dv.beginTransfer()
	if err != nil {
		return err
	}
	cb.CopyBuffer(src, dst, region)
	return dv.endTransfer(cb, fence)
}

// CopyBufferToImage copies the whole of a tightly packed buffer into
// mip 0 of an image in the transfer destination layout.
func (dv *Device) CopyBufferToImage(buf, img Handle, width, height, layers uint32, fence *Fence) error {
	cb, err := dv.beginTransfer()
	if err != nil {
		return err
	}
	cb.CopyBufferToImage(buf, img, BufferImageCopy{
		Aspect:     ImageAspectColor,
		LayerCount: layers,
		Extent:     Extent3D{Width: width, Height: height, Depth: 1},
	})
	return dv.endTransfer(cb, fence)
}

func (dv *Device) beginTransfer() (*CommandBuffer, error) {
	cb, err := NewCommandBuffer(dv, true)
	if err != nil {
		return nil, err
	}
	if err := cb.BeginRecording(true, false, false); err != nil {
		cb.Free()
		return nil, err
	}
	return cb, nil
}

func (dv *Device) endTransfer(cb *CommandBuffer, fence *Fence) error {
	if err := cb.EndRecording(); err != nil {
		cb.Free()
		return err
	}
	err := cb.Submit(dv.GraphicsQueue, SubmitOptions{Fence: fence, ResetFence: true})
	if fence == nil {
		cb.Free()
	} else {
		// still executing: freed at the next retire pass
		dv.release(cb.Handle)
		cb.state = NotAllocated
	}
	return err
}

// Destroy waits for the device to be idle, destroys everything still
// registered, and then the device itself.
func (dv *Device) Destroy() {
	if dv.Driver == nil {
		return
	}
	dv.WaitIdle()
	dv.Registry.releaseAll()
	dv.Registry.retire()
	dv.Driver.DestroyCommandPool(dv.CommandPool)
	dv.Driver.Destroy()
	dv.Driver = nil
}
