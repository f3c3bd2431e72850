// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

// Handle is an opaque reference to a driver object (buffer, image,
// fence, swapchain, ...). The zero Handle is the null handle.
// Handles are only meaningful to the [Driver] that issued them.
type Handle uint64

// NullHandle is the zero Handle.
const NullHandle Handle = 0

// IsNull returns whether the handle is the null handle.
func (h Handle) IsNull() bool { return h == NullHandle }

// Note: the numeric values of all the enums and flag bits below
// match Vulkan, so a Vulkan driver can convert them with a cast.

// Format is a pixel format.
type Format int32

const (
	FormatUndefined       Format = 0
	FormatR8Unorm         Format = 9
	FormatR8G8Unorm       Format = 16
	FormatR8G8B8Unorm     Format = 23
	FormatR8G8B8A8Unorm   Format = 37
	FormatR8G8B8A8Srgb    Format = 43
	FormatB8G8R8A8Unorm   Format = 44
	FormatB8G8R8A8Srgb    Format = 50
	FormatD32Sfloat       Format = 126
	FormatD24UnormS8Uint  Format = 129
	FormatD32SfloatS8Uint Format = 130
)

// HasStencil returns whether the depth format has a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

// IsDepth returns whether this is a depth (or depth + stencil) format.
func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f.HasStencil()
}

// ColorSpace is a presentation color space.
type ColorSpace int32

const (
	ColorSpaceSrgbNonlinear ColorSpace = 0
)

// PresentMode is the swapchain presentation mode.
type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

// ImageLayout is the memory layout of an image.
type ImageLayout int32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

// DeviceType is the physical device type.
type DeviceType int32

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

// ImageTiling is the tiling arrangement of image data.
type ImageTiling int32

const (
	ImageTilingOptimal ImageTiling = 0
	ImageTilingLinear  ImageTiling = 1
)

// ImageType is the dimensionality of an image.
type ImageType int32

const (
	ImageType1D ImageType = iota
	ImageType2D
	ImageType3D
)

// ImageViewType is the dimensionality of an image view.
type ImageViewType int32

const (
	ImageViewType1D ImageViewType = iota
	ImageViewType2D
	ImageViewType3D
	ImageViewTypeCube
)

// ViewType returns the default view type for the image type.
func (it ImageType) ViewType() ImageViewType {
	switch it {
	case ImageType1D:
		return ImageViewType1D
	case ImageType3D:
		return ImageViewType3D
	}
	return ImageViewType2D
}

// Filter is a texture lookup filter.
type Filter int32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

// MipmapMode is the mipmap filter.
type MipmapMode int32

const (
	MipmapModeNearest MipmapMode = 0
	MipmapModeLinear  MipmapMode = 1
)

// AddressMode is the texture wrap mode.
type AddressMode int32

const (
	AddressModeRepeat         AddressMode = 0
	AddressModeMirroredRepeat AddressMode = 1
	AddressModeClampToEdge    AddressMode = 2
	AddressModeClampToBorder  AddressMode = 3
)

// BorderColor is the color used outside a clamp-to-border texture.
type BorderColor int32

const (
	BorderColorFloatTransparentBlack BorderColor = iota
	BorderColorIntTransparentBlack
	BorderColorFloatOpaqueBlack
	BorderColorIntOpaqueBlack
	BorderColorFloatOpaqueWhite
	BorderColorIntOpaqueWhite
)

// BufferUsage flags
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x1
	BufferUsageTransferDst BufferUsage = 0x2
	BufferUsageUniform     BufferUsage = 0x10
	BufferUsageStorage     BufferUsage = 0x20
	BufferUsageIndex       BufferUsage = 0x40
	BufferUsageVertex      BufferUsage = 0x80
)

// MemoryProperty flags
type MemoryProperty uint32

const (
	MemoryPropertyDeviceLocal  MemoryProperty = 0x1
	MemoryPropertyHostVisible  MemoryProperty = 0x2
	MemoryPropertyHostCoherent MemoryProperty = 0x4
	MemoryPropertyHostCached   MemoryProperty = 0x8
)

// ImageUsage flags
type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x1
	ImageUsageTransferDst            ImageUsage = 0x2
	ImageUsageSampled                ImageUsage = 0x4
	ImageUsageStorage                ImageUsage = 0x8
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

// QueueFlags are the capabilities of a queue family.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

// FormatFeature flags
type FormatFeature uint32

const (
	FormatFeatureSampledImage           FormatFeature = 0x1
	FormatFeatureColorAttachment        FormatFeature = 0x80
	FormatFeatureDepthStencilAttachment FormatFeature = 0x200
	FormatFeatureTransferSrc            FormatFeature = 0x4000
	FormatFeatureTransferDst            FormatFeature = 0x8000
)

// PipelineStage flags
type PipelineStage uint32

const (
	PipelineStageTopOfPipe             PipelineStage = 0x1
	PipelineStageVertexShader          PipelineStage = 0x8
	PipelineStageFragmentShader        PipelineStage = 0x80
	PipelineStageEarlyFragmentTests    PipelineStage = 0x100
	PipelineStageColorAttachmentOutput PipelineStage = 0x400
	PipelineStageTransfer              PipelineStage = 0x1000
	PipelineStageBottomOfPipe          PipelineStage = 0x2000
)

// Access flags
type Access uint32

const (
	AccessShaderRead                  Access = 0x20
	AccessColorAttachmentWrite        Access = 0x100
	AccessDepthStencilAttachmentWrite Access = 0x400
	AccessTransferWrite               Access = 0x1000
)

// ImageAspect flags
type ImageAspect uint32

const (
	ImageAspectColor   ImageAspect = 0x1
	ImageAspectDepth   ImageAspect = 0x2
	ImageAspectStencil ImageAspect = 0x4
)

// ShaderStage flags
type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x1
	ShaderStageFragment ShaderStage = 0x10
)

// CommandBufferUsage flags
type CommandBufferUsage uint32

const (
	CommandBufferUsageOneTimeSubmit      CommandBufferUsage = 0x1
	CommandBufferUsageRenderPassContinue CommandBufferUsage = 0x2
	CommandBufferUsageSimultaneousUse    CommandBufferUsage = 0x4
)

// WholeSize means the whole remaining range of a buffer or memory.
const WholeSize = ^uint64(0)

// MaxTimeout is an effectively unbounded wait timeout, in nanoseconds.
const MaxTimeout = ^uint64(0)

// MemoryTypeNotFound is returned by [Device.FindMemoryType] when no
// memory type matches. Callers must treat it as fatal.
const MemoryTypeNotFound = ^uint32(0)

// UndefinedExtent is the surface current extent value meaning
// the surface size is determined by the swapchain extent.
const UndefinedExtent = ^uint32(0)

// Extent2D is a width and height in pixels.
type Extent2D struct {
	Width, Height uint32
}

// IsZero returns whether either dimension is zero.
func (e Extent2D) IsZero() bool { return e.Width == 0 || e.Height == 0 }

// Extent3D is a width, height and depth.
type Extent3D struct {
	Width, Height, Depth uint32
}

// Rect2D is an integer rectangle.
type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

// Viewport is a viewport transform.
type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

// ClearValues are the clear values for a color + depth/stencil render pass.
type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// SurfaceFormat is a format + color space pair supported by the surface.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SurfaceCapabilities are the swapchain limits of a surface.
type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32 // 0 = no limit
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

// Limits are the device limits used by this package.
type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	MinStorageBufferOffsetAlignment uint64
	NonCoherentAtomSize             uint64
	MaxSamplerAnisotropy            float32
	MaxImageDimension2D             uint32
}

// Features are the optional device features used by this package.
type Features struct {
	SamplerAnisotropy bool
}

// MemoryHeap is one device memory heap.
type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

// MemoryType is one device memory type.
type MemoryType struct {
	Properties MemoryProperty
	HeapIndex  uint32
}

// QueueFamily describes one queue family of an adapter.
type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

// AdapterInfo describes a physical device.
type AdapterInfo struct {
	Name          string
	Type          DeviceType
	VendorID      uint32
	DeviceID      uint32
	DriverVersion uint32
	APIVersion    uint32
	Limits        Limits
	Features      Features
	Extensions    []string
	Heaps         []MemoryHeap
	MemoryTypes   []MemoryType
	QueueFamilies []QueueFamily
}

// HasExtension returns whether the adapter supports the named extension.
func (ai *AdapterInfo) HasExtension(name string) bool {
	for _, e := range ai.Extensions {
		if e == name {
			return true
		}
	}
	return false
}

// FormatProperties are the features supported for a format.
type FormatProperties struct {
	LinearTiling  FormatFeature
	OptimalTiling FormatFeature
}

// MemoryRequirements are the memory requirements of a buffer or image.
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

// DeviceQueueConfig requests queues from one family.
type DeviceQueueConfig struct {
	Family uint32
	Count  uint32
}

// DeviceConfig is passed to [Driver.OpenDevice].
type DeviceConfig struct {
	Queues     []DeviceQueueConfig
	Features   Features
	Extensions []string
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	CommandBuffers   []Handle
	WaitSemaphores   []Handle
	WaitStages       []PipelineStage
	SignalSemaphores []Handle
}

// BufferCopy is a buffer to buffer copy region.
type BufferCopy struct {
	SrcOffset, DstOffset, Size uint64
}

// BufferImageCopy is a buffer to image copy region, at mip 0.
type BufferImageCopy struct {
	BufferOffset uint64
	Aspect       ImageAspect
	LayerCount   uint32
	Extent       Extent3D
}

// ImageBarrier is an image layout transition barrier.
type ImageBarrier struct {
	Image                 Handle
	OldLayout, NewLayout  ImageLayout
	SrcAccess, DstAccess  Access
	SrcStage, DstStage    PipelineStage
	Aspect                ImageAspect
	MipLevels, LayerCount uint32
}

// ImageConfig describes an image to create.
type ImageConfig struct {
	Type        ImageType
	Format      Format
	Extent      Extent3D
	MipLevels   uint32
	ArrayLayers uint32
	Tiling      ImageTiling
	Usage       ImageUsage
	Properties  MemoryProperty
}

// ViewConfig describes an image view to create.
type ViewConfig struct {
	Type       ImageViewType
	Format     Format
	Aspect     ImageAspect
	MipLevels  uint32
	LayerCount uint32
}

// SamplerConfig describes a sampler to create.
type SamplerConfig struct {
	MagFilter, MinFilter Filter
	Mipmap               MipmapMode
	AddressU             AddressMode
	AddressV             AddressMode
	AddressW             AddressMode
	Border               BorderColor
	Anisotropy           float32 // 0 = disabled
}

// SwapchainCreateInfo is passed to [Driver.CreateSwapchain].
type SwapchainCreateInfo struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
	QueueFamilies []uint32 // more than one distinct family = concurrent sharing
	Old           Handle
}

// RenderPassConfig describes the main color + depth render pass.
type RenderPassConfig struct {
	ColorFormat Format
	DepthFormat Format
}

// DescriptorBufferInfo is a buffer range bound to a descriptor.
type DescriptorBufferInfo struct {
	Buffer Handle
	Offset uint64
	Range  uint64
}
