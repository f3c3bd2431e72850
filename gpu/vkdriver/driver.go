// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vkdriver implements [gpu.Driver] on Vulkan, using
// github.com/goki/vulkan. [Init] must be called on the main thread
// before [New].
package vkdriver

import (
	"log/slog"
	"slices"
	"strings"
	"unsafe"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/gpu"
	vk "github.com/goki/vulkan"
)

// ValidationLayer is the Khronos validation layer, enabled when
// [Options.Validation] is set and the layer is installed.
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

var _ gpu.Driver = (*Driver)(nil)

// Options configure the Vulkan instance and window surface.
type Options struct {
	// AppName is reported to the driver.
	AppName string

	// Validation enables the validation layer and routes its
	// reports to slog.
	Validation bool

	// InstanceExtensions are the extensions the window system needs.
	InstanceExtensions []string

	// Surface creates the window surface for the instance, returning
	// the surface handle as a pointer value.
	Surface func(instance any) (uintptr, error)
}

// Driver is the Vulkan [gpu.Driver]. Vulkan objects are kept in a
// handle table, as their Go types are not integers.
type Driver struct {
	opts Options

	instance vk.Instance
	surface  vk.Surface
	debug    vk.DebugReportCallback
	layers   []string

	physical []vk.PhysicalDevice
	adapters []gpu.AdapterInfo
	adapter  int
	device   vk.Device

	objects  map[gpu.Handle]any
	memSizes map[gpu.Handle]uint64
	setPools map[gpu.Handle]gpu.Handle
	queues   map[[2]uint32]gpu.Handle
	next     gpu.Handle

	// swapchain images, owned by their swapchain
	swapImages map[gpu.Handle][]gpu.Handle
}

// New creates the instance, the window surface, and reads the info
// of all the physical devices.
func New(opts Options) (*Driver, error) {
	d := &Driver{
		opts:       opts,
		adapter:    -1,
		objects:    make(map[gpu.Handle]any),
		memSizes:   make(map[gpu.Handle]uint64),
		setPools:   make(map[gpu.Handle]gpu.Handle),
		queues:     make(map[[2]uint32]gpu.Handle),
		swapImages: make(map[gpu.Handle][]gpu.Handle),
	}
	if err := d.initInstance(); err != nil {
		return nil, err
	}
	if opts.Surface != nil {
		ptr, err := opts.Surface(d.instance)
		if err != nil {
			d.Destroy()
			return nil, errors.Wrap(err, "vkdriver: creating window surface")
		}
		d.surface = vk.SurfaceFromPointer(ptr)
	}
	if err := d.initAdapters(); err != nil {
		d.Destroy()
		return nil, err
	}
	return d, nil
}

func (d *Driver) initInstance() error {
	exts := slices.Clone(d.opts.InstanceExtensions)
	exts = append(exts, platformInstanceExtensions...)
	if d.opts.Validation {
		have, err := instanceLayers()
		if err != nil {
			return err
		}
		if slices.Contains(have, ValidationLayer) {
			d.layers = []string{ValidationLayer}
			exts = append(exts, vk.ExtDebugReportExtensionName)
		} else {
			slog.Warn("vkdriver: validation layer not available", "layer", ValidationLayer)
		}
	}
	slog.Info("vkdriver: creating instance", "extensions", exts, "layers", d.layers)

	var inst vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         vk.MakeVersion(1, 2, 0),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PApplicationName:   cstring(d.opts.AppName),
			PEngineName:        cstring("vframe"),
		},
		Flags:                   platformInstanceFlags,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: cstrings(exts),
		EnabledLayerCount:       uint32(len(d.layers)),
		PpEnabledLayerNames:     cstrings(d.layers),
	}, nil, &inst)
	if err := check(ret, "creating instance"); err != nil {
		return err
	}
	d.instance = inst
	vk.InitInstance(inst)

	if len(d.layers) > 0 {
		var dbg vk.DebugReportCallback
		ret := vk.CreateDebugReportCallback(inst, &vk.DebugReportCallbackCreateInfo{
			SType: vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
				vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}, nil, &dbg)
		if err := check(ret, "creating debug report callback"); err != nil {
			slog.Warn("vkdriver: validation messages disabled", "err", err)
		} else {
			d.debug = dbg
		}
	}
	return nil
}

// debugReport routes validation layer messages to slog.
func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	attrs := []any{"layer", pLayerPrefix, "code", messageCode}
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		slog.Error(pMessage, attrs...)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		slog.Warn(pMessage, attrs...)
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		slog.Info(pMessage, attrs...)
	default:
		slog.Debug(pMessage, attrs...)
	}
	return vk.Bool32(vk.False)
}

func instanceLayers() ([]string, error) {
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), "enumerating layers"); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	if err := check(vk.EnumerateInstanceLayerProperties(&count, list), "enumerating layers"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, l := range list {
		l.Deref()
		names = append(names, vk.ToString(l.LayerName[:]))
	}
	return names, nil
}

func deviceExtensions(pd vk.PhysicalDevice) []string {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil) != vk.Success {
		return nil
	}
	list := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, list) != vk.Success {
		return nil
	}
	names := make([]string, 0, count)
	for _, e := range list {
		e.Deref()
		names = append(names, vk.ToString(e.ExtensionName[:]))
	}
	return names
}

func (d *Driver) initAdapters() error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "enumerating physical devices"); err != nil {
		return err
	}
	d.physical = make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, d.physical), "enumerating physical devices"); err != nil {
		return err
	}
	d.adapters = make([]gpu.AdapterInfo, count)
	for i, pd := range d.physical {
		d.adapters[i] = adapterInfo(pd)
	}
	return nil
}

func adapterInfo(pd vk.PhysicalDevice) gpu.AdapterInfo {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	props.Limits.Deref()
	var feats vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &feats)
	feats.Deref()
	var mem vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &mem)
	mem.Deref()

	lim := &props.Limits
	info := gpu.AdapterInfo{
		Name:          vk.ToString(props.DeviceName[:]),
		Type:          gpu.DeviceType(props.DeviceType),
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		DriverVersion: props.DriverVersion,
		APIVersion:    props.ApiVersion,
		Limits: gpu.Limits{
			MinUniformBufferOffsetAlignment: uint64(lim.MinUniformBufferOffsetAlignment),
			MinStorageBufferOffsetAlignment: uint64(lim.MinStorageBufferOffsetAlignment),
			NonCoherentAtomSize:             uint64(lim.NonCoherentAtomSize),
			MaxSamplerAnisotropy:            lim.MaxSamplerAnisotropy,
			MaxImageDimension2D:             lim.MaxImageDimension2D,
		},
		Features:   gpu.Features{SamplerAnisotropy: feats.SamplerAnisotropy == vk.True},
		Extensions: deviceExtensions(pd),
	}
	for i := range mem.MemoryHeapCount {
		h := mem.MemoryHeaps[i]
		h.Deref()
		info.Heaps = append(info.Heaps, gpu.MemoryHeap{
			Size:        uint64(h.Size),
			DeviceLocal: h.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0,
		})
	}
	for i := range mem.MemoryTypeCount {
		t := mem.MemoryTypes[i]
		t.Deref()
		info.MemoryTypes = append(info.MemoryTypes, gpu.MemoryType{
			Properties: gpu.MemoryProperty(t.PropertyFlags),
			HeapIndex:  t.HeapIndex,
		})
	}
	var qcount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &qcount, nil)
	qprops := make([]vk.QueueFamilyProperties, qcount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &qcount, qprops)
	for _, q := range qprops {
		q.Deref()
		info.QueueFamilies = append(info.QueueFamilies, gpu.QueueFamily{
			Flags: gpu.QueueFlags(q.QueueFlags),
			Count: q.QueueCount,
		})
	}
	return info
}

func (d *Driver) Adapters() ([]gpu.AdapterInfo, error) {
	return d.adapters, nil
}

func (d *Driver) SurfaceSupport(adapter int, family uint32) bool {
	if d.surface == nil {
		return false
	}
	var ok vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(d.physical[adapter], family, d.surface, &ok)
	return ok.B()
}

func (d *Driver) SurfaceCapabilities(adapter int) (gpu.SurfaceCapabilities, gpu.Result) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(d.physical[adapter], d.surface, &caps)
	if ret != vk.Success {
		return gpu.SurfaceCapabilities{}, gpu.Result(ret)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return gpu.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  extent2D(caps.CurrentExtent),
		MinImageExtent: extent2D(caps.MinImageExtent),
		MaxImageExtent: extent2D(caps.MaxImageExtent),
	}, gpu.Success
}

func (d *Driver) SurfaceFormats(adapter int) []gpu.SurfaceFormat {
	if d.surface == nil {
		return nil
	}
	pd := d.physical[adapter]
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, d.surface, &count, nil)
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(pd, d.surface, &count, formats)
	out := make([]gpu.SurfaceFormat, 0, count)
	for _, f := range formats {
		f.Deref()
		out = append(out, gpu.SurfaceFormat{Format: gpu.Format(f.Format), ColorSpace: gpu.ColorSpace(f.ColorSpace)})
	}
	return out
}

func (d *Driver) PresentModes(adapter int) []gpu.PresentMode {
	if d.surface == nil {
		return nil
	}
	pd := d.physical[adapter]
	var count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(pd, d.surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(pd, d.surface, &count, modes)
	out := make([]gpu.PresentMode, len(modes))
	for i, m := range modes {
		out[i] = gpu.PresentMode(m)
	}
	return out
}

func (d *Driver) FormatProperties(adapter int, format gpu.Format) gpu.FormatProperties {
	var fp vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physical[adapter], vk.Format(format), &fp)
	fp.Deref()
	return gpu.FormatProperties{
		LinearTiling:  gpu.FormatFeature(fp.LinearTilingFeatures),
		OptimalTiling: gpu.FormatFeature(fp.OptimalTilingFeatures),
	}
}

// portabilitySubset must be enabled on devices that list it.
const portabilitySubset = "VK_KHR_portability_subset"

func (d *Driver) OpenDevice(adapter int, cfg gpu.DeviceConfig) gpu.Result {
	exts := slices.Clone(cfg.Extensions)
	if d.adapters[adapter].HasExtension(portabilitySubset) {
		exts = append(exts, portabilitySubset)
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(cfg.Queues))
	for i, q := range cfg.Queues {
		prio := make([]float32, q.Count)
		for j := range prio {
			prio[j] = 1
		}
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Family,
			QueueCount:       q.Count,
			PQueuePriorities: prio,
		}
	}
	var device vk.Device
	ret := vk.CreateDevice(d.physical[adapter], &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: cstrings(exts),
		EnabledLayerCount:       uint32(len(d.layers)),
		PpEnabledLayerNames:     cstrings(d.layers),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: bool32(cfg.Features.SamplerAnisotropy),
		}},
	}, nil, &device)
	if ret != vk.Success {
		return gpu.Result(ret)
	}
	d.device = device
	d.adapter = adapter
	return gpu.Success
}

func (d *Driver) Queue(family, index uint32) gpu.Handle {
	key := [2]uint32{family, index}
	if h, ok := d.queues[key]; ok {
		return h
	}
	var q vk.Queue
	vk.GetDeviceQueue(d.device, family, index, &q)
	h := d.add(q)
	d.queues[key] = h
	return h
}

func (d *Driver) DeviceWaitIdle() gpu.Result {
	return gpu.Result(vk.DeviceWaitIdle(d.device))
}

func (d *Driver) QueueWaitIdle(queue gpu.Handle) gpu.Result {
	return gpu.Result(vk.QueueWaitIdle(get[vk.Queue](d, queue)))
}

// Destroy destroys the device, debug callback, surface and instance.
func (d *Driver) Destroy() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.instance == nil {
		return
	}
	if d.debug != nil {
		vk.DestroyDebugReportCallback(d.instance, d.debug, nil)
		d.debug = nil
	}
	if d.surface != nil {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = nil
	}
	vk.DestroyInstance(d.instance, nil)
	d.instance = nil
}

////////  Handle table

// Device returns the logical device, for creating the objects the
// driver does not, such as pipelines and their layouts.
func (d *Driver) Device() vk.Device { return d.device }

// Import registers an object created on [Driver.Device], returning the
// handle to use for it. Objects are not destroyed by the driver;
// call [Driver.Forget] after destroying them.
func (d *Driver) Import(obj any) gpu.Handle {
	return d.add(obj)
}

// Forget removes an imported handle.
func (d *Driver) Forget(h gpu.Handle) {
	d.remove(h)
}

// Lookup returns the object registered for the handle, or the zero
// value if there is none or it has a different type.
func Lookup[T any](d *Driver, h gpu.Handle) T {
	return get[T](d, h)
}

func (d *Driver) add(obj any) gpu.Handle {
	d.next++
	d.objects[d.next] = obj
	return d.next
}

func (d *Driver) remove(h gpu.Handle) {
	delete(d.objects, h)
}

// get returns the object for the handle, or the zero (null) value.
func get[T any](d *Driver, h gpu.Handle) T {
	v, _ := d.objects[h].(T)
	return v
}

func handles[T any](d *Driver, hs []gpu.Handle) []T {
	if len(hs) == 0 {
		return nil
	}
	out := make([]T, len(hs))
	for i, h := range hs {
		out[i] = get[T](d, h)
	}
	return out
}

////////  Conversions

func check(ret vk.Result, op string) error {
	if ret == vk.Success {
		return nil
	}
	return errors.Wrapf(gpu.Result(ret).Err(), "vkdriver: %s", op)
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// cstring null-terminates s for the C API.
func cstring(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func cstrings(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = cstring(s)
	}
	return out
}

func extent2D(e vk.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}
