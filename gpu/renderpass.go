// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"cogentcore.org/vframe/base/errors"
)

// RenderPass is the main render pass: one color attachment that is
// cleared, stored, and ends in the present layout, and one depth
// attachment that is cleared and not stored.
type RenderPass struct {
	Device *Device
	Handle Handle

	ColorFormat Format
	DepthFormat Format

	// Clear are the values the attachments are cleared to.
	Clear ClearValues
}

// NewRenderPass creates the render pass for the formats.
func NewRenderPass(dv *Device, colorFormat, depthFormat Format, clear ClearValues) (*RenderPass, error) {
	h, r := dv.Driver.CreateRenderPass(RenderPassConfig{ColorFormat: colorFormat, DepthFormat: depthFormat})
	if r != Success {
		return nil, errors.Wrap(r.Err(), "gpu: creating render pass")
	}
	dv.register(KindRenderPass, h)
	return &RenderPass{Device: dv, Handle: h, ColorFormat: colorFormat, DepthFormat: depthFormat, Clear: clear}, nil
}

func (rp *RenderPass) Destroy() {
	if rp == nil || rp.Handle.IsNull() {
		return
	}
	rp.Device.release(rp.Handle)
	rp.Handle = NullHandle
}

// Framebuffer binds a color view and a depth view to a [RenderPass].
type Framebuffer struct {
	Device *Device
	Handle Handle
	Extent Extent2D
}

// NewFramebuffer creates a framebuffer for the render pass with the
// given color and depth attachment views.
func NewFramebuffer(rp *RenderPass, color, depth Handle, extent Extent2D) (*Framebuffer, error) {
	dv := rp.Device
	h, r := dv.Driver.CreateFramebuffer(rp.Handle, []Handle{color, depth}, extent)
	if r != Success {
		return nil, errors.Wrapf(r.Err(), "gpu: creating %dx%d framebuffer", extent.Width, extent.Height)
	}
	dv.register(KindFramebuffer, h)
	return &Framebuffer{Device: dv, Handle: h, Extent: extent}, nil
}

func (fb *Framebuffer) Destroy() {
	if fb == nil || fb.Handle.IsNull() {
		return
	}
	fb.Device.release(fb.Handle)
	fb.Handle = NullHandle
}
