// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"image"
	"image/color"
	"testing"

	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTexture2D(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	pixels := make([]byte, 4*3*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	tx, err := gpu.NewTexture2D(dv, pixels, 4, 3, 4, gpu.DefaultSamplerSpec())
	require.NoError(t, err)

	assert.Equal(t, gpu.FormatR8G8B8A8Unorm, tx.Image.Config.Format)
	assert.Equal(t, pixels, drv.ImageData(tx.Image.Handle))
	assert.Equal(t, gpu.ImageLayoutShaderReadOnlyOptimal, drv.ImageLayout(tx.Image.Handle))
	assert.False(t, tx.Image.View.IsNull())

	sub := drv.LastSubmission()
	require.NotNil(t, sub)
	assert.Len(t, sub.Find("PipelineBarrier"), 2)
	assert.Len(t, sub.Find("CopyBufferToImage"), 1)
	assert.Zero(t, drv.Pending())

	// staging buffer is gone after the next retire pass
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("Buffer"))

	tx.Destroy()
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("Image"))
	assert.Zero(t, drv.LiveOf("Sampler"))
	assert.Zero(t, drv.LiveOf("Memory"))
	assert.Empty(t, drv.Violations)
}

func TestNewTexture2DErrors(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	_, err := gpu.NewTexture2D(dv, make([]byte, 10), 2, 2, 4, gpu.DefaultSamplerSpec())
	assert.Error(t, err)
	_, err = gpu.NewTexture2D(dv, nil, 0, 2, 4, gpu.DefaultSamplerSpec())
	assert.Error(t, err)
	_, err = gpu.NewTexture2D(dv, make([]byte, 20), 2, 2, 5, gpu.DefaultSamplerSpec())
	assert.Error(t, err)
	assert.Zero(t, drv.LiveOf("Image"))
}

func TestChannelFormat(t *testing.T) {
	want := map[int]gpu.Format{
		1: gpu.FormatR8Unorm,
		2: gpu.FormatR8G8Unorm,
		3: gpu.FormatR8G8B8Unorm,
		4: gpu.FormatR8G8B8A8Unorm,
	}
	for ch, f := range want {
		got, err := gpu.ChannelFormat(ch)
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	for _, ch := range []int{0, 5, -1} {
		_, err := gpu.ChannelFormat(ch)
		assert.Error(t, err, "channels %d", ch)
	}
}

func TestTextureFromImage(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	img := image.NewNRGBA(image.Rect(10, 10, 13, 12))
	img.Set(10, 10, color.NRGBA{R: 255, A: 255})
	img.Set(12, 11, color.NRGBA{B: 255, A: 255})
	tx, err := gpu.NewTexture2DFromImage(dv, img, gpu.DefaultSamplerSpec())
	require.NoError(t, err)
	defer tx.Destroy()
	assert.Equal(t, 3, tx.Width)
	assert.Equal(t, 2, tx.Height)
	data := drv.ImageData(tx.Image.Handle)
	require.Len(t, data, 3*2*4)
	assert.Equal(t, []byte{255, 0, 0, 255}, data[:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, data[20:24])
}

func TestTextureFromLargeImage(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	dv.Info.Limits.MaxImageDimension2D = 16
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	tx, err := gpu.NewTexture2DFromImage(dv, img, gpu.DefaultSamplerSpec())
	require.NoError(t, err)
	defer tx.Destroy()
	assert.Equal(t, 16, tx.Width)
	assert.Equal(t, 8, tx.Height)
	data := drv.ImageData(tx.Image.Handle)
	require.Len(t, data, 16*8*4)
	for _, v := range data[:4] {
		assert.InDelta(t, 255, v, 1)
	}
}

func TestFitImage(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 8, 4))
	assert.Same(t, small, gpu.FitImage(small, 8))
	assert.Same(t, small, gpu.FitImage(small, 0))

	tall := image.NewGray(image.Rect(0, 0, 30, 120))
	assert.Equal(t, image.Pt(10, 40), gpu.FitImage(tall, 40).Bounds().Size())

	thin := image.NewGray(image.Rect(0, 0, 1000, 2))
	assert.Equal(t, image.Pt(100, 1), gpu.FitImage(thin, 100).Bounds().Size())
}

func TestImageToRGBA(t *testing.T) {
	rg := image.NewRGBA(image.Rect(0, 0, 2, 2))
	assert.Same(t, rg, gpu.ImageToRGBA(rg))
	gray := image.NewGray(image.Rect(1, 1, 3, 3))
	gray.Pix[0] = 200
	out := gpu.ImageToRGBA(gray)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.Rect)
	assert.Equal(t, []byte{200, 200, 200, 255}, out.Pix[:4])
}

func TestSamplerAnisotropy(t *testing.T) {
	drv, dv := newDevice(t)
	spec := gpu.DefaultSamplerSpec()
	spec.Anisotropy = 32
	sm, err := gpu.NewSampler(dv, spec)
	require.NoError(t, err)
	assert.Equal(t, float32(16), sm.Spec.Anisotropy)
	assert.Equal(t, float32(16), drv.SamplerConfig(sm.Handle).Anisotropy)
	assert.Equal(t, gpu.AddressModeRepeat, drv.SamplerConfig(sm.Handle).AddressU)
	sm.Destroy()
	dv.Destroy()

	drv = gputest.NewDriver()
	drv.AdapterInfos[0].Features.SamplerAnisotropy = false
	dv, err = gpu.NewDevice(drv, gpu.Requirements{})
	require.NoError(t, err)
	defer dv.Destroy()
	sm, err = gpu.NewSampler(dv, spec)
	require.NoError(t, err)
	assert.Zero(t, sm.Spec.Anisotropy)
	assert.Zero(t, drv.SamplerConfig(sm.Handle).Anisotropy)
}

func TestUnsupportedTransition(t *testing.T) {
	skipWithoutAsserts(t)
	_, dv := newDevice(t)
	defer dv.Destroy()
	im, err := gpu.NewImage(dv, gpu.ImageConfig{
		Type:       gpu.ImageType2D,
		Format:     gpu.FormatR8G8B8A8Unorm,
		Extent:     gpu.Extent3D{Width: 2, Height: 2},
		Usage:      gpu.ImageUsageSampled,
		Properties: gpu.MemoryPropertyDeviceLocal,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), im.Config.MipLevels)
	assert.Equal(t, uint32(1), im.Config.Extent.Depth)
	cb, err := gpu.NewDiscardableCommandBuffer(dv)
	require.NoError(t, err)
	assert.Panics(t, func() {
		im.TransitionLayout(cb.CommandBuffer, gpu.ImageLayoutShaderReadOnlyOptimal, gpu.ImageLayoutTransferDstOptimal)
	})
	cb.Discard()
	require.NoError(t, im.CreateView(im.DefaultView()))
	assert.Panics(t, func() { im.CreateView(im.DefaultView()) })
	im.Destroy()
}
