// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"log/slog"

	"cogentcore.org/vframe/base/errors"
)

// ErrZeroExtent is returned when a swapchain would have zero area,
// as it does while the window is minimized.
var ErrZeroExtent = errors.New("gpu: swapchain extent has zero area")

// SwapchainConfig configures a [Swapchain].
type SwapchainConfig struct {

	// Extent is the requested size, used when the surface leaves the
	// size to the swapchain.
	Extent Extent2D

	// VSync selects FIFO presentation. Without it, mailbox is
	// preferred, then immediate.
	VSync bool

	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32

	// ImageCount is the requested number of images; 0 means one more
	// than the surface minimum.
	ImageCount uint32

	// FramesInFlight is the number of frame slots; 0 means one less
	// than the image count. It is limited to the image count.
	FramesInFlight int

	// Old is the swapchain being replaced, if any. It is handed to the
	// driver so in-flight presentation can finish, and remains valid
	// until the caller destroys it after the new one is made.
	Old *Swapchain
}

// Swapchain is the set of presentable images for the window surface,
// each with a depth image and a framebuffer for the shared render pass.
type Swapchain struct {
	Device *Device
	Handle Handle

	Format      SurfaceFormat
	DepthFormat Format
	PresentMode PresentMode
	Extent      Extent2D

	// Images are owned by the swapchain, and destroyed with it.
	Images       []Handle
	ImageViews   []Handle
	DepthImages  []*Image
	Framebuffers []*Framebuffer
	RenderPass   *RenderPass

	framesInFlight int
	currentFrame   int
}

// ChooseSurfaceFormat prefers B8G8R8A8 sRGB with the sRGB nonlinear
// color space, falling back on the first format.
func ChooseSurfaceFormat(formats []SurfaceFormat) SurfaceFormat {
	for _, f := range formats {
		if f.Format == FormatB8G8R8A8Srgb && f.ColorSpace == ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 0 {
		return SurfaceFormat{Format: FormatB8G8R8A8Srgb, ColorSpace: ColorSpaceSrgbNonlinear}
	}
	return formats[0]
}

// ChoosePresentMode returns FIFO with vsync. Otherwise it prefers
// mailbox, then immediate, and falls back on FIFO, which is always
// supported.
func ChoosePresentMode(modes []PresentMode, vsync bool) PresentMode {
	if vsync {
		return PresentModeFifo
	}
	has := func(m PresentMode) bool {
		for _, e := range modes {
			if e == m {
				return true
			}
		}
		return false
	}
	switch {
	case has(PresentModeMailbox):
		return PresentModeMailbox
	case has(PresentModeImmediate):
		return PresentModeImmediate
	}
	return PresentModeFifo
}

// ChooseExtent returns the surface's current extent, or when that is
// undefined, the requested extent clamped to the supported range.
func ChooseExtent(caps SurfaceCapabilities, want Extent2D) Extent2D {
	if caps.CurrentExtent.Width != UndefinedExtent {
		return caps.CurrentExtent
	}
	clamp := func(v, lo, hi uint32) uint32 {
		return max(lo, min(hi, v))
	}
	return Extent2D{
		Width:  clamp(want.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(want.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount returns the requested count, or one more than the
// minimum when requested is 0, within the surface limits.
func ChooseImageCount(caps SurfaceCapabilities, requested uint32) uint32 {
	n := caps.MinImageCount + 1
	if requested > 0 {
		n = max(requested, caps.MinImageCount)
	}
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// NewSwapchain creates the swapchain with its render pass, image views,
// depth images and framebuffers. It returns [ErrZeroExtent] rather than
// create a swapchain with no area.
func NewSwapchain(dv *Device, cfg SwapchainConfig) (*Swapchain, error) {
	drv := dv.Driver
	caps, r := drv.SurfaceCapabilities(dv.Adapter)
	if r != Success {
		return nil, errors.Wrap(r.Err(), "gpu: getting surface capabilities")
	}
	extent := ChooseExtent(caps, cfg.Extent)
	if extent.IsZero() {
		return nil, ErrZeroExtent
	}
	sc := &Swapchain{
		Device:         dv,
		Format:         ChooseSurfaceFormat(drv.SurfaceFormats(dv.Adapter)),
		PresentMode:    ChoosePresentMode(drv.PresentModes(dv.Adapter), cfg.VSync),
		Extent:         extent,
		framesInFlight: cfg.FramesInFlight,
	}
	info := SwapchainCreateInfo{
		MinImageCount: ChooseImageCount(caps, cfg.ImageCount),
		Format:        sc.Format,
		Extent:        extent,
		PresentMode:   sc.PresentMode,
		QueueFamilies: []uint32{dv.Families.Graphics},
	}
	if dv.Families.Present != dv.Families.Graphics {
		info.QueueFamilies = append(info.QueueFamilies, dv.Families.Present)
	}
	if cfg.Old != nil {
		info.Old = cfg.Old.Handle
	}
	h, r := drv.CreateSwapchain(info)
	if r != Success {
		return nil, errors.Wrap(r.Err(), "gpu: creating swapchain")
	}
	dv.register(KindSwapchain, h)
	sc.Handle = h

	if err := sc.createResources(cfg); err != nil {
		sc.Destroy()
		return nil, err
	}
	slog.Info("gpu: swapchain created", "width", extent.Width, "height", extent.Height,
		"images", len(sc.Images), "format", sc.Format.Format, "presentMode", sc.PresentMode)
	return sc, nil
}

func (sc *Swapchain) createResources(cfg SwapchainConfig) error {
	dv := sc.Device
	drv := dv.Driver
	imgs, r := drv.SwapchainImages(sc.Handle)
	if r != Success {
		return errors.Wrap(r.Err(), "gpu: getting swapchain images")
	}
	sc.Images = imgs
	for _, img := range imgs {
		v, r := drv.CreateImageView(img, ViewConfig{
			Type:       ImageViewType2D,
			Format:     sc.Format.Format,
			Aspect:     ImageAspectColor,
			MipLevels:  1,
			LayerCount: 1,
		})
		if r != Success {
			return errors.Wrap(r.Err(), "gpu: creating swapchain image view")
		}
		dv.register(KindImageView, v)
		sc.ImageViews = append(sc.ImageViews, v)
	}

	df, err := dv.DepthFormat()
	if err != nil {
		return err
	}
	sc.DepthFormat = df
	cv := ClearValues{Color: cfg.ClearColor, Depth: cfg.ClearDepth, Stencil: cfg.ClearStencil}
	sc.RenderPass, err = NewRenderPass(dv, sc.Format.Format, df, cv)
	if err != nil {
		return err
	}

	for i := range imgs {
		dimg, err := NewImage(dv, ImageConfig{
			Type:       ImageType2D,
			Format:     df,
			Extent:     Extent3D{Width: sc.Extent.Width, Height: sc.Extent.Height, Depth: 1},
			Tiling:     ImageTilingOptimal,
			Usage:      ImageUsageDepthStencilAttachment,
			Properties: MemoryPropertyDeviceLocal,
		}, true)
		if err != nil {
			return err
		}
		sc.DepthImages = append(sc.DepthImages, dimg)
		fb, err := NewFramebuffer(sc.RenderPass, sc.ImageViews[i], dimg.View, sc.Extent)
		if err != nil {
			return err
		}
		sc.Framebuffers = append(sc.Framebuffers, fb)
	}
	return nil
}

// ImageCount returns the number of swapchain images.
func (sc *Swapchain) ImageCount() int { return len(sc.Images) }

// MaxFramesInFlight is the number of frame slots: by default one less
// than the image count, and at least 1.
func (sc *Swapchain) MaxFramesInFlight() int {
	if sc.framesInFlight > 0 {
		return min(sc.framesInFlight, len(sc.Images))
	}
	return max(1, len(sc.Images)-1)
}

// CurrentFrame returns the current frame slot, advanced by PresentImage.
func (sc *Swapchain) CurrentFrame() int { return sc.currentFrame }

// AspectRatio returns width / height.
func (sc *Swapchain) AspectRatio() float32 {
	return float32(sc.Extent.Width) / float32(sc.Extent.Height)
}

// AcquireNextImage waits on the fence, if any, and then acquires the
// next image, signaling sem when it is ready for rendering. Out of date
// and suboptimal results are returned to the caller to handle.
func (sc *Swapchain) AcquireNextImage(sem *Semaphore, fence *Fence, timeout uint64) (uint32, Result) {
	if fence != nil && !fence.Wait(timeout) {
		return 0, Timeout
	}
	return sc.Device.Driver.AcquireNextImage(sc.Handle, timeout, sem.Handle)
}

// PresentImage queues the image for presentation once sem is signaled,
// and advances the current frame.
func (sc *Swapchain) PresentImage(imageIndex uint32, sem *Semaphore) Result {
	var wait []Handle
	if sem != nil {
		wait = []Handle{sem.Handle}
	}
	r := sc.Device.Driver.QueuePresent(sc.Device.PresentQueue, sc.Handle, imageIndex, wait)
	sc.currentFrame = (sc.currentFrame + 1) % sc.MaxFramesInFlight()
	return r
}

// CompareFormats returns whether the other swapchain has the same color
// format, color space and depth format, so that render passes and
// pipelines made for one work with the other.
func (sc *Swapchain) CompareFormats(other *Swapchain) bool {
	return sc.Format == other.Format && sc.DepthFormat == other.DepthFormat
}

// Destroy waits for the device to be idle, then destroys everything
// the swapchain made, and the swapchain itself.
func (sc *Swapchain) Destroy() {
	if sc == nil || sc.Handle.IsNull() {
		return
	}
	dv := sc.Device
	dv.WaitIdle()
	for _, fb := range sc.Framebuffers {
		fb.Destroy()
	}
	for _, im := range sc.DepthImages {
		im.Destroy()
	}
	for _, v := range sc.ImageViews {
		dv.release(v)
	}
	sc.RenderPass.Destroy()
	dv.release(sc.Handle)
	dv.WaitIdle()
	sc.Framebuffers, sc.DepthImages, sc.ImageViews, sc.Images = nil, nil, nil, nil
	sc.Handle = NullHandle
}
