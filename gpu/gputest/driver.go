// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gputest provides a simulated GPU implementing [gpu.Driver],
// so that device, swapchain and frame logic can be tested without
// a GPU or a display.
package gputest

import (
	"fmt"
	"log/slog"
	"slices"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/gpu"
)

// Driver is a simulated GPU. Work submitted to a queue stays pending
// until a fence wait or an idle wait completes it, in submission order,
// so that code which skips a wait is observable. Misuse that a real
// driver would only catch with validation layers, such as resetting a
// command buffer that is still pending, is recorded in Violations.
type Driver struct {

	// AdapterInfos are the simulated physical devices.
	AdapterInfos []gpu.AdapterInfo

	// PresentFamilies are the queue families that can present to the
	// surface. nil means every graphics family.
	PresentFamilies map[uint32]bool

	// Caps are the surface capabilities. Change CurrentExtent with
	// SetExtent to simulate a window resize.
	Caps gpu.SurfaceCapabilities

	Formats []gpu.SurfaceFormat
	Modes   []gpu.PresentMode

	// UnsupportedFormats have no format features.
	UnsupportedFormats map[gpu.Format]bool

	// Fail makes the named driver method return the given result.
	Fail map[string]gpu.Result

	// AcquireResults are returned, first to last, by AcquireNextImage
	// before it falls back on its normal behavior. Error results do not
	// acquire an image.
	AcquireResults []gpu.Result

	// PresentResults are returned, first to last, by QueuePresent
	// before it falls back on its normal behavior.
	PresentResults []gpu.Result

	// NextImages are the image indexes returned, first to last, by
	// AcquireNextImage before it falls back on round robin order.
	NextImages []uint32

	// Violations are the recorded misuses.
	Violations []string

	FenceWaits        int
	IdleWaits         int
	Submits           int
	Acquires          int
	Presents          int
	SwapchainsCreated int

	// ReuseWaits has an entry for each reset of a command buffer whose
	// last submission had a fence: the number of driver waits on the
	// fence for that submission.
	ReuseWaits []int

	// Presented are the presented image indexes, in order.
	Presented []uint32

	// Submissions are all queue submissions, in order.
	Submissions []*Submission

	// DeviceConfig is the config passed to OpenDevice.
	DeviceConfig gpu.DeviceConfig

	// OpenedAdapter is the adapter passed to OpenDevice, or -1.
	OpenedAdapter int

	// DescriptorWrites are all the uniform descriptor updates.
	DescriptorWrites []DescriptorWrite

	next      gpu.Handle
	live      map[gpu.Handle]string
	queues    map[[2]uint32]gpu.Handle
	fences    map[gpu.Handle]*fence
	sems      map[gpu.Handle]*semaphore
	cmds      map[gpu.Handle]*cmdBuffer
	buffers   map[gpu.Handle]*buffer
	memory    map[gpu.Handle]*memory
	images    map[gpu.Handle]*image
	views     map[gpu.Handle]gpu.Handle
	samplers  map[gpu.Handle]gpu.SamplerConfig
	passes    map[gpu.Handle]gpu.RenderPassConfig
	fbs       map[gpu.Handle]*framebuffer
	chains    map[gpu.Handle]*swapchain
	descPools map[gpu.Handle][]gpu.Handle
	pending   []*Submission
	destroyed bool
}

// DescriptorWrite is one uniform descriptor update.
type DescriptorWrite struct {
	Set     gpu.Handle
	Binding uint32
	Info    gpu.DescriptorBufferInfo
}

// DefaultAdapter returns a discrete GPU with a combined graphics,
// compute and transfer family of two queues, a dedicated transfer
// family, and device local, host visible and shared memory types.
func DefaultAdapter() gpu.AdapterInfo {
	return gpu.AdapterInfo{
		Name:          "Simulated GPU",
		Type:          gpu.DeviceTypeDiscreteGPU,
		VendorID:      0x10de,
		DeviceID:      1,
		DriverVersion: 1<<22 | 2<<12,
		APIVersion:    1<<22 | 3<<12,
		Limits: gpu.Limits{
			MinUniformBufferOffsetAlignment: 256,
			MinStorageBufferOffsetAlignment: 64,
			NonCoherentAtomSize:             64,
			MaxSamplerAnisotropy:            16,
			MaxImageDimension2D:             16384,
		},
		Features:   gpu.Features{SamplerAnisotropy: true},
		Extensions: []string{gpu.SwapchainExtension},
		Heaps: []gpu.MemoryHeap{
			{Size: 8 << 30, DeviceLocal: true},
			{Size: 16 << 30},
		},
		MemoryTypes: []gpu.MemoryType{
			{Properties: gpu.MemoryPropertyDeviceLocal, HeapIndex: 0},
			{Properties: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, HeapIndex: 1},
			{Properties: gpu.MemoryPropertyDeviceLocal | gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, HeapIndex: 0},
		},
		QueueFamilies: []gpu.QueueFamily{
			{Flags: gpu.QueueGraphics | gpu.QueueCompute | gpu.QueueTransfer, Count: 2},
			{Flags: gpu.QueueTransfer, Count: 1},
		},
	}
}

// NewDriver returns a driver with the [DefaultAdapter] and a 1280x720
// surface allowing 2 to 8 images.
func NewDriver() *Driver {
	d := &Driver{
		AdapterInfos: []gpu.AdapterInfo{DefaultAdapter()},
		Caps: gpu.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  gpu.Extent2D{Width: 1280, Height: 720},
			MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: gpu.Extent2D{Width: 16384, Height: 16384},
		},
		Formats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
		},
		Modes:         []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox, gpu.PresentModeImmediate},
		OpenedAdapter: -1,
	}
	d.init()
	return d
}

func (d *Driver) init() {
	d.live = make(map[gpu.Handle]string)
	d.queues = make(map[[2]uint32]gpu.Handle)
	d.fences = make(map[gpu.Handle]*fence)
	d.sems = make(map[gpu.Handle]*semaphore)
	d.cmds = make(map[gpu.Handle]*cmdBuffer)
	d.buffers = make(map[gpu.Handle]*buffer)
	d.memory = make(map[gpu.Handle]*memory)
	d.images = make(map[gpu.Handle]*image)
	d.views = make(map[gpu.Handle]gpu.Handle)
	d.samplers = make(map[gpu.Handle]gpu.SamplerConfig)
	d.passes = make(map[gpu.Handle]gpu.RenderPassConfig)
	d.fbs = make(map[gpu.Handle]*framebuffer)
	d.chains = make(map[gpu.Handle]*swapchain)
	d.descPools = make(map[gpu.Handle][]gpu.Handle)
}

// SetExtent sets the current surface extent, as a window resize does.
func (d *Driver) SetExtent(width, height uint32) {
	d.Caps.CurrentExtent = gpu.Extent2D{Width: width, Height: height}
}

// violation records a misuse.
func (d *Driver) violation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Error("gputest: violation", "msg", msg)
	d.Violations = append(d.Violations, msg)
}

// fail returns the configured failure for the method, or Success.
func (d *Driver) fail(method string) gpu.Result {
	if r, ok := d.Fail[method]; ok {
		return r
	}
	return gpu.Success
}

func (d *Driver) newHandle(kind string) gpu.Handle {
	d.next++
	if kind != "" {
		d.live[d.next] = kind
	}
	return d.next
}

// destroy removes a live object, recording destruction of unknown
// objects and of objects still referenced by pending work.
func (d *Driver) destroy(kind string, h gpu.Handle) bool {
	if h.IsNull() {
		return false
	}
	if k, ok := d.live[h]; !ok || k != kind {
		d.violation("destroy of unknown %s %d", kind, h)
		return false
	}
	if d.inUse(h) {
		d.violation("destroy of %s %d in use by pending work", kind, h)
	}
	delete(d.live, h)
	return true
}

// LiveObjects returns the number of objects not yet destroyed,
// not counting queues, command pools and swapchain images.
func (d *Driver) LiveObjects() int { return len(d.live) }

// LiveOf returns the number of live objects of the kind, which is
// the name of the Vulkan object type, as in "Fence" or "ImageView".
func (d *Driver) LiveOf(kind string) int {
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// Pending returns the number of submissions not yet completed.
func (d *Driver) Pending() int { return len(d.pending) }

// LastSubmission returns the most recent submission, or nil.
func (d *Driver) LastSubmission() *Submission {
	if len(d.Submissions) == 0 {
		return nil
	}
	return d.Submissions[len(d.Submissions)-1]
}

////////  Adapter level

func (d *Driver) Adapters() ([]gpu.AdapterInfo, error) {
	if r := d.fail("Adapters"); r != gpu.Success {
		return nil, errors.Wrap(r.Err(), "gputest: enumerating adapters")
	}
	return slices.Clone(d.AdapterInfos), nil
}

func (d *Driver) SurfaceSupport(adapter int, family uint32) bool {
	if d.PresentFamilies != nil {
		return d.PresentFamilies[family]
	}
	fams := d.AdapterInfos[adapter].QueueFamilies
	return int(family) < len(fams) && fams[family].Flags&gpu.QueueGraphics != 0
}

func (d *Driver) SurfaceCapabilities(adapter int) (gpu.SurfaceCapabilities, gpu.Result) {
	if r := d.fail("SurfaceCapabilities"); r != gpu.Success {
		return gpu.SurfaceCapabilities{}, r
	}
	return d.Caps, gpu.Success
}

func (d *Driver) SurfaceFormats(adapter int) []gpu.SurfaceFormat {
	return slices.Clone(d.Formats)
}

func (d *Driver) PresentModes(adapter int) []gpu.PresentMode {
	return slices.Clone(d.Modes)
}

func (d *Driver) FormatProperties(adapter int, format gpu.Format) gpu.FormatProperties {
	if d.UnsupportedFormats[format] {
		return gpu.FormatProperties{}
	}
	if format.IsDepth() {
		return gpu.FormatProperties{OptimalTiling: gpu.FormatFeatureDepthStencilAttachment | gpu.FormatFeatureSampledImage}
	}
	all := gpu.FormatFeatureSampledImage | gpu.FormatFeatureColorAttachment |
		gpu.FormatFeatureTransferSrc | gpu.FormatFeatureTransferDst
	return gpu.FormatProperties{LinearTiling: all, OptimalTiling: all}
}

func (d *Driver) OpenDevice(adapter int, cfg gpu.DeviceConfig) gpu.Result {
	if r := d.fail("OpenDevice"); r != gpu.Success {
		return r
	}
	info := &d.AdapterInfos[adapter]
	for _, q := range cfg.Queues {
		if int(q.Family) >= len(info.QueueFamilies) || q.Count > info.QueueFamilies[q.Family].Count {
			d.violation("OpenDevice: family %d cannot provide %d queues", q.Family, q.Count)
		}
	}
	for _, ext := range cfg.Extensions {
		if !info.HasExtension(ext) {
			d.violation("OpenDevice: unsupported extension %s", ext)
			return gpu.ErrorInitializationFailed
		}
	}
	d.OpenedAdapter = adapter
	d.DeviceConfig = cfg
	return gpu.Success
}

func (d *Driver) Queue(family, index uint32) gpu.Handle {
	key := [2]uint32{family, index}
	if q, ok := d.queues[key]; ok {
		return q
	}
	q := d.newHandle("")
	d.queues[key] = q
	return q
}

// Destroy destroys the device. Objects still live are violations.
func (d *Driver) Destroy() {
	if d.destroyed {
		d.violation("device destroyed twice")
		return
	}
	d.completeAll()
	for h, k := range d.live {
		d.violation("%s %d live at device destroy", k, h)
	}
	d.destroyed = true
}
