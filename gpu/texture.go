// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"image"

	"cogentcore.org/vframe/base/errors"
	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"
)

// DefaultAnisotropy is the anisotropy requested by [DefaultSamplerSpec].
const DefaultAnisotropy = 16

// SamplerSpec specifies how a texture is sampled.
type SamplerSpec struct {
	MinFilter Filter
	MagFilter Filter
	Mipmap    MipmapMode

	// wrap modes along U (horizontal), V and W
	AddressU AddressMode
	AddressV AddressMode
	AddressW AddressMode

	// Border is used by the clamp to border wrap mode.
	Border BorderColor

	// Anisotropy is the requested max anisotropy, clamped to the device
	// limit. 0 disables anisotropic filtering.
	Anisotropy float32
}

// DefaultSamplerSpec returns linear filtering, repeat wrapping in all
// directions and [DefaultAnisotropy].
func DefaultSamplerSpec() SamplerSpec {
	return SamplerSpec{
		MinFilter:  FilterLinear,
		MagFilter:  FilterLinear,
		Mipmap:     MipmapModeLinear,
		AddressU:   AddressModeRepeat,
		AddressV:   AddressModeRepeat,
		AddressW:   AddressModeRepeat,
		Border:     BorderColorFloatTransparentBlack,
		Anisotropy: DefaultAnisotropy,
	}
}

// Sampler is a texture sampler.
type Sampler struct {
	Device *Device
	Handle Handle
	Spec   SamplerSpec
}

// NewSampler creates a sampler. Anisotropy is disabled if
// the device lacks the feature.
func NewSampler(dv *Device, spec SamplerSpec) (*Sampler, error) {
	aniso := spec.Anisotropy
	if !dv.Info.Features.SamplerAnisotropy {
		aniso = 0
	} else if lim := dv.Info.Limits.MaxSamplerAnisotropy; aniso > lim {
		aniso = lim
	}
	h, r := dv.Driver.CreateSampler(SamplerConfig{
		MagFilter:  spec.MagFilter,
		MinFilter:  spec.MinFilter,
		Mipmap:     spec.Mipmap,
		AddressU:   spec.AddressU,
		AddressV:   spec.AddressV,
		AddressW:   spec.AddressW,
		Border:     spec.Border,
		Anisotropy: aniso,
	})
	if r != Success {
		return nil, errors.Wrap(r.Err(), "gpu: creating sampler")
	}
	dv.register(KindSampler, h)
	spec.Anisotropy = aniso
	return &Sampler{Device: dv, Handle: h, Spec: spec}, nil
}

func (sm *Sampler) Destroy() {
	if sm == nil || sm.Handle.IsNull() {
		return
	}
	sm.Device.release(sm.Handle)
	sm.Handle = NullHandle
}

// ChannelFormat returns the 8 bit unorm format with the given number
// of channels, 1 to 4.
func ChannelFormat(channels int) (Format, error) {
	switch channels {
	case 1:
		return FormatR8Unorm, nil
	case 2:
		return FormatR8G8Unorm, nil
	case 3:
		return FormatR8G8B8Unorm, nil
	case 4:
		return FormatR8G8B8A8Unorm, nil
	}
	return FormatUndefined, errors.Newf("gpu: unsupported texture channel count %d", channels)
}

// Texture2D is a sampled 2D image on the device.
type Texture2D struct {
	Image   *Image
	Sampler *Sampler

	Width, Height int
	Channels      int
}

// ImageToRGBA returns the image as an [image.RGBA], converting it if needed.
func ImageToRGBA(img image.Image) *image.RGBA {
	if rg, ok := img.(*image.RGBA); ok && rg.Rect.Min == (image.Point{}) {
		return rg
	}
	b := img.Bounds()
	rg := image.NewRGBA(image.Rectangle{Max: b.Size()})
	draw.Draw(rg, rg.Bounds(), img, b.Min, draw.Src)
	return rg
}

// FitImage returns the image scaled down with linear filtering to be at
// most limit pixels on each side, keeping its aspect ratio. An image that
// already fits, or a limit of 0, is returned as is.
func FitImage(img image.Image, limit int) image.Image {
	sz := img.Bounds().Size()
	if limit <= 0 || (sz.X <= limit && sz.Y <= limit) {
		return img
	}
	w, h := limit, limit
	if sz.X >= sz.Y {
		h = max(1, sz.Y*limit/sz.X)
	} else {
		w = max(1, sz.X*limit/sz.Y)
	}
	return transform.Resize(img, w, h, transform.Linear)
}

// NewTexture2DFromImage uploads a Go image as an RGBA texture. Images
// larger than the device's 2D image limit are scaled down to fit.
func NewTexture2DFromImage(dv *Device, img image.Image, spec SamplerSpec) (*Texture2D, error) {
	img = FitImage(img, int(dv.Info.Limits.MaxImageDimension2D))
	rg := ImageToRGBA(img)
	sz := rg.Rect.Size()
	pix := rg.Pix
	if rg.Stride != 4*sz.X {
		pix = make([]byte, 0, 4*sz.X*sz.Y)
		for y := 0; y < sz.Y; y++ {
			pix = append(pix, rg.Pix[y*rg.Stride:y*rg.Stride+4*sz.X]...)
		}
	}
	return NewTexture2D(dv, pix, sz.X, sz.Y, 4, spec)
}

// NewTexture2D uploads tightly packed pixels with 1 to 4 channels of
// 8 bits each. The pixels go through a host visible staging buffer and
// are copied on the graphics queue; it blocks until the upload is done.
func NewTexture2D(dv *Device, pixels []byte, width, height, channels int, spec SamplerSpec) (*Texture2D, error) {
	format, err := ChannelFormat(channels)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Newf("gpu: invalid texture size %dx%d", width, height)
	}
	size := width * height * channels
	if len(pixels) != size {
		return nil, errors.Newf("gpu: texture %dx%dx%d needs %d bytes, got %d", width, height, channels, size, len(pixels))
	}

	staging, err := NewMemBuffer(dv, uint64(size), 1, BufferUsageTransferSrc,
		MemoryPropertyHostVisible|MemoryPropertyHostCoherent, 1)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.Map(WholeSize, 0); err != nil {
		return nil, err
	}
	staging.WriteTo(pixels, 0)
	staging.Unmap()

	im, err := NewImage(dv, ImageConfig{
		Type:       ImageType2D,
		Format:     format,
		Extent:     Extent3D{Width: uint32(width), Height: uint32(height), Depth: 1},
		Tiling:     ImageTilingOptimal,
		Usage:      ImageUsageTransferDst | ImageUsageSampled,
		Properties: MemoryPropertyDeviceLocal,
	}, true)
	if err != nil {
		return nil, err
	}

	cb, err := NewDiscardableCommandBuffer(dv)
	if err != nil {
		im.Destroy()
		return nil, err
	}
	im.TransitionLayout(cb.CommandBuffer, ImageLayoutUndefined, ImageLayoutTransferDstOptimal)
	im.CopyFromBuffer(cb.CommandBuffer, staging.Buffer)
	im.TransitionLayout(cb.CommandBuffer, ImageLayoutTransferDstOptimal, ImageLayoutShaderReadOnlyOptimal)
	if err := cb.End(); err != nil {
		im.Destroy()
		return nil, err
	}

	sm, err := NewSampler(dv, spec)
	if err != nil {
		im.Destroy()
		return nil, err
	}
	return &Texture2D{Image: im, Sampler: sm, Width: width, Height: height, Channels: channels}, nil
}

// Destroy releases the sampler and image.
func (tx *Texture2D) Destroy() {
	tx.Sampler.Destroy()
	tx.Image.Destroy()
}
