// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"cogentcore.org/vframe/base/errors"
)

// Image is GPU resident pixel data with its memory and an optional view.
type Image struct {
	Device *Device

	Handle Handle
	Memory Handle

	// View is the image view, if one has been created.
	View Handle

	Config ImageConfig
}

// NewImage creates an image, allocates and binds its memory, and
// creates a default view covering the whole image when createView
// is true.
func NewImage(dv *Device, cfg ImageConfig, createView bool) (*Image, error) {
	if cfg.MipLevels == 0 {
		cfg.MipLevels = 1
	}
	if cfg.ArrayLayers == 0 {
		cfg.ArrayLayers = 1
	}
	if cfg.Extent.Depth == 0 {
		cfg.Extent.Depth = 1
	}
	drv := dv.Driver
	h, req, r := drv.CreateImage(cfg)
	if r != Success {
		return nil, errors.Wrapf(r.Err(), "gpu: creating %dx%d image", cfg.Extent.Width, cfg.Extent.Height)
	}
	dv.register(KindImage, h)
	im := &Image{Device: dv, Handle: h, Config: cfg}
	mt := dv.FindMemoryType(req.TypeBits, cfg.Properties)
	if mt == MemoryTypeNotFound {
		im.Destroy()
		return nil, errors.Newf("gpu: no memory type for image with properties %#x", uint32(cfg.Properties))
	}
	mem, r := drv.AllocateMemory(req.Size, mt)
	if r != Success {
		im.Destroy()
		return nil, errors.Wrapf(r.Err(), "gpu: allocating %d bytes of image memory", req.Size)
	}
	dv.register(KindMemory, mem)
	im.Memory = mem
	if r := drv.BindImageMemory(h, mem); r != Success {
		im.Destroy()
		return nil, errors.Wrap(r.Err(), "gpu: binding image memory")
	}
	if createView {
		if err := im.CreateView(im.DefaultView()); err != nil {
			im.Destroy()
			return nil, err
		}
	}
	return im, nil
}

// DefaultView returns the view config covering the whole image, with
// the depth aspect for depth formats and color otherwise.
func (im *Image) DefaultView() ViewConfig {
	aspect := ImageAspectColor
	if im.Config.Format.IsDepth() {
		aspect = ImageAspectDepth
	}
	return ViewConfig{
		Type:       im.Config.Type.ViewType(),
		Format:     im.Config.Format,
		Aspect:     aspect,
		MipLevels:  im.Config.MipLevels,
		LayerCount: im.Config.ArrayLayers,
	}
}

// CreateView creates the image view. An image has at most one view.
func (im *Image) CreateView(cfg ViewConfig) error {
	errors.Assert(im.View.IsNull(), "gpu.Image.CreateView: image already has a view")
	v, r := im.Device.Driver.CreateImageView(im.Handle, cfg)
	if r != Success {
		return errors.Wrap(r.Err(), "gpu: creating image view")
	}
	im.Device.register(KindImageView, v)
	im.View = v
	return nil
}

// TransitionLayout records a barrier moving the image from oldLayout,
// which must be its actual current layout, to newLayout. The supported
// transitions are undefined to transfer destination, for uploads, and
// transfer destination to shader read only, after uploads.
func (im *Image) TransitionLayout(cb *CommandBuffer, oldLayout, newLayout ImageLayout) {
	b := ImageBarrier{
		Image:      im.Handle,
		OldLayout:  oldLayout,
		NewLayout:  newLayout,
		Aspect:     ImageAspectColor,
		MipLevels:  im.Config.MipLevels,
		LayerCount: im.Config.ArrayLayers,
	}
	switch {
	case oldLayout == ImageLayoutUndefined && newLayout == ImageLayoutTransferDstOptimal:
		b.DstAccess = AccessTransferWrite
		b.SrcStage = PipelineStageTopOfPipe
		b.DstStage = PipelineStageTransfer
	case oldLayout == ImageLayoutTransferDstOptimal && newLayout == ImageLayoutShaderReadOnlyOptimal:
		b.SrcAccess = AccessTransferWrite
		b.DstAccess = AccessShaderRead
		b.SrcStage = PipelineStageTransfer
		b.DstStage = PipelineStageFragmentShader
	default:
		errors.Assert(false, "gpu.Image.TransitionLayout: unsupported transition %s to %s", oldLayout, newLayout)
		return
	}
	cb.PipelineBarrier(b)
}

// CopyFromBuffer records a copy of the buffer into the full extent of
// mip 0, layer 0. The image must be in the transfer destination layout.
func (im *Image) CopyFromBuffer(cb *CommandBuffer, buf Handle) {
	cb.CopyBufferToImage(buf, im.Handle, BufferImageCopy{
		Aspect:     ImageAspectColor,
		LayerCount: 1,
		Extent:     im.Config.Extent,
	})
}

// Destroy releases the view, image and memory.
func (im *Image) Destroy() {
	if im == nil || im.Handle.IsNull() {
		return
	}
	dv := im.Device
	dv.release(im.View)
	dv.release(im.Handle)
	dv.release(im.Memory)
	im.View, im.Handle, im.Memory = NullHandle, NullHandle, NullHandle
}
