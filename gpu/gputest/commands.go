// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gputest

import (
	"slices"

	"cogentcore.org/vframe/gpu"
)

// Command is one recorded command. Op is the Vulkan command name
// without the Cmd prefix, and Args are the arguments after the
// command buffer, as passed to the driver.
type Command struct {
	Op   string
	Args []any
}

// record appends a command, checking the buffer is recording and is
// inside or outside a render pass as the command requires.
func (d *Driver) record(h gpu.Handle, inPass, outPass bool, op string, args ...any) *cmdBuffer {
	cb := d.cmdBuffer(h, op)
	if cb == nil {
		return nil
	}
	switch {
	case !cb.recording:
		d.violation("%s: command buffer %d is not recording", op, h)
	case inPass && !cb.inPass:
		d.violation("%s: command buffer %d is not in a render pass", op, h)
	case outPass && cb.inPass:
		d.violation("%s: command buffer %d is in a render pass", op, h)
	}
	cb.commands = append(cb.commands, Command{Op: op, Args: args})
	return cb
}

func (d *Driver) CmdBeginRenderPass(cmd, rp, fb gpu.Handle, area gpu.Rect2D, clear gpu.ClearValues) {
	cb := d.record(cmd, false, true, "BeginRenderPass", rp, fb, area, clear)
	if cb == nil {
		return
	}
	if f, ok := d.fbs[fb]; !ok {
		d.violation("BeginRenderPass: unknown framebuffer %d", fb)
	} else if f.pass != rp {
		d.violation("BeginRenderPass: framebuffer %d made for another render pass", fb)
	} else if area.Extent != f.extent {
		d.violation("BeginRenderPass: area %v does not match framebuffer extent %v", area.Extent, f.extent)
	}
	cb.inPass = true
}

func (d *Driver) CmdEndRenderPass(cmd gpu.Handle) {
	if cb := d.record(cmd, true, false, "EndRenderPass"); cb != nil {
		cb.inPass = false
	}
}

func (d *Driver) CmdSetViewport(cmd gpu.Handle, vp gpu.Viewport) {
	d.record(cmd, false, false, "SetViewport", vp)
}

func (d *Driver) CmdSetScissor(cmd gpu.Handle, scissor gpu.Rect2D) {
	d.record(cmd, false, false, "SetScissor", scissor)
}

func (d *Driver) CmdBindPipeline(cmd, pipeline gpu.Handle) {
	d.record(cmd, true, false, "BindPipeline", pipeline)
}

func (d *Driver) CmdBindDescriptorSet(cmd, layout, set gpu.Handle) {
	d.record(cmd, true, false, "BindDescriptorSets", layout, set)
}

func (d *Driver) CmdBindVertexBuffer(cmd, buf gpu.Handle, offset uint64) {
	d.record(cmd, true, false, "BindVertexBuffers", buf, offset)
}

func (d *Driver) CmdBindIndexBuffer(cmd, buf gpu.Handle, offset uint64) {
	d.record(cmd, true, false, "BindIndexBuffer", buf, offset)
}

func (d *Driver) CmdPushConstants(cmd, layout gpu.Handle, stages gpu.ShaderStage, offset uint32, data []byte) {
	d.record(cmd, true, false, "PushConstants", layout, stages, offset, slices.Clone(data))
}

func (d *Driver) CmdDrawIndexed(cmd gpu.Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(cmd, true, false, "DrawIndexed", indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (d *Driver) CmdCopyBuffer(cmd, src, dst gpu.Handle, region gpu.BufferCopy) {
	d.record(cmd, false, true, "CopyBuffer", src, dst, region)
}

func (d *Driver) CmdCopyBufferToImage(cmd, buf, img gpu.Handle, layout gpu.ImageLayout, region gpu.BufferImageCopy) {
	d.record(cmd, false, true, "CopyBufferToImage", buf, img, layout, region)
}

func (d *Driver) CmdPipelineBarrier(cmd gpu.Handle, barrier gpu.ImageBarrier) {
	d.record(cmd, false, true, "PipelineBarrier", barrier.Image, barrier)
}

// execute runs a command at submission: copies move bytes, and
// barriers check and change image layouts.
func (d *Driver) execute(c Command) {
	switch c.Op {
	case "CopyBuffer":
		src, dst, region := c.Args[0].(gpu.Handle), c.Args[1].(gpu.Handle), c.Args[2].(gpu.BufferCopy)
		sb, db := d.BufferData(src), d.BufferData(dst)
		if region.SrcOffset+region.Size > uint64(len(sb)) || region.DstOffset+region.Size > uint64(len(db)) {
			d.violation("CopyBuffer: region %+v out of range", region)
			return
		}
		if d.BufferUsage(src)&gpu.BufferUsageTransferSrc == 0 || d.BufferUsage(dst)&gpu.BufferUsageTransferDst == 0 {
			d.violation("CopyBuffer: buffers lack transfer usage")
		}
		copy(db[region.DstOffset:region.DstOffset+region.Size], sb[region.SrcOffset:region.SrcOffset+region.Size])
	case "CopyBufferToImage":
		buf, img, region := c.Args[0].(gpu.Handle), c.Args[1].(gpu.Handle), c.Args[3].(gpu.BufferImageCopy)
		im, ok := d.images[img]
		if !ok {
			d.violation("CopyBufferToImage: unknown image %d", img)
			return
		}
		if im.layout != gpu.ImageLayoutTransferDstOptimal {
			d.violation("CopyBufferToImage: image %d is in layout %s", img, im.layout)
		}
		e := region.Extent
		n := uint64(e.Width) * uint64(e.Height) * uint64(max(e.Depth, 1)) * uint64(max(region.LayerCount, 1)) * BytesPerPixel(im.cfg.Format)
		src := d.BufferData(buf)
		dst := d.ImageData(img)
		if region.BufferOffset+n > uint64(len(src)) || n > uint64(len(dst)) {
			d.violation("CopyBufferToImage: %d bytes out of range", n)
			return
		}
		copy(dst, src[region.BufferOffset:region.BufferOffset+n])
	case "PipelineBarrier":
		b := c.Args[1].(gpu.ImageBarrier)
		im, ok := d.images[b.Image]
		if !ok {
			d.violation("PipelineBarrier: unknown image %d", b.Image)
			return
		}
		if b.OldLayout != gpu.ImageLayoutUndefined && b.OldLayout != im.layout {
			d.violation("PipelineBarrier: image %d is in layout %s, not %s", b.Image, im.layout, b.OldLayout)
		}
		im.layout = b.NewLayout
	}
}
