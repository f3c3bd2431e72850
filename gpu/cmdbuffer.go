// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"cogentcore.org/vframe/base/errors"
)

// CommandBufferState is the lifecycle state of a [CommandBuffer].
type CommandBufferState int32

const (
	NotAllocated CommandBufferState = iota
	Ready
	Recording
	InRenderPass
	RecordingEnded
	Submitted
)

var cmdStateNames = [...]string{"NotAllocated", "Ready", "Recording", "InRenderPass", "RecordingEnded", "Submitted"}

func (s CommandBufferState) String() string {
	if s >= 0 && int(s) < len(cmdStateNames) {
		return cmdStateNames[s]
	}
	return fmt.Sprintf("CommandBufferState(%d)", int32(s))
}

// SubmitOptions are the synchronization options for [CommandBuffer.Submit].
type SubmitOptions struct {
	WaitSemaphores   []*Semaphore
	WaitStage        PipelineStage
	SignalSemaphores []*Semaphore

	// Fence is signaled when the work completes. If nil, Submit
	// blocks until the queue is idle.
	Fence *Fence

	// ResetFence resets Fence before submitting.
	ResetFence bool
}

// CommandBuffer is a recordable, submittable unit of GPU work, with
// an explicit state machine: NotAllocated, Ready, Recording,
// InRenderPass, RecordingEnded, Submitted. Calling a method in the
// wrong state is a contract violation.
type CommandBuffer struct {
	Device  *Device
	Handle  Handle
	Primary bool

	state CommandBufferState

	// completed is set when a blocking Submit has returned, so the
	// buffer is known not to be executing.
	completed bool
}

// NewCommandBuffer allocates a command buffer from the device pool.
func NewCommandBuffer(dv *Device, primary bool) (*CommandBuffer, error) {
	cbs, err := NewCommandBuffers(dv, 1, primary)
	if err != nil {
		return nil, err
	}
	return cbs[0], nil
}

// NewCommandBuffers allocates n command buffers in one call.
func NewCommandBuffers(dv *Device, n int, primary bool) ([]*CommandBuffer, error) {
	hs, r := dv.Driver.AllocateCommandBuffers(dv.CommandPool, n, primary)
	if r != Success {
		return nil, errors.Wrapf(r.Err(), "gpu: allocating %d command buffers", n)
	}
	cbs := make([]*CommandBuffer, n)
	for i, h := range hs {
		dv.register(KindCommandBuffer, h)
		cbs[i] = &CommandBuffer{Device: dv, Handle: h, Primary: primary, state: Ready}
	}
	return cbs, nil
}

// State returns the current state.
func (cb *CommandBuffer) State() CommandBufferState { return cb.state }

// BeginRecording starts recording. Valid only when Ready.
func (cb *CommandBuffer) BeginRecording(oneTimeSubmit, renderPassContinue, simultaneousUse bool) error {
	errors.Assert(cb.state == Ready, "gpu.CommandBuffer.BeginRecording: state is %s, not Ready", cb.state)
	var usage CommandBufferUsage
	if oneTimeSubmit {
		usage |= CommandBufferUsageOneTimeSubmit
	}
	if renderPassContinue {
		usage |= CommandBufferUsageRenderPassContinue
	}
	if simultaneousUse {
		usage |= CommandBufferUsageSimultaneousUse
	}
	if r := cb.Device.Driver.BeginCommandBuffer(cb.Handle, usage); r != Success {
		return errors.Wrap(r.Err(), "gpu: beginning command buffer")
	}
	cb.state = Recording
	cb.completed = false
	return nil
}

// BeginRenderPass begins the render pass on the framebuffer, covering
// its whole extent, with the clear values of the render pass.
func (cb *CommandBuffer) BeginRenderPass(rp *RenderPass, fb *Framebuffer) {
	errors.Assert(cb.state == Recording, "gpu.CommandBuffer.BeginRenderPass: state is %s, not Recording", cb.state)
	cb.Device.Driver.CmdBeginRenderPass(cb.Handle, rp.Handle, fb.Handle, Rect2D{Extent: fb.Extent}, rp.Clear)
	cb.state = InRenderPass
}

// EndRenderPass ends the current render pass.
func (cb *CommandBuffer) EndRenderPass() {
	errors.Assert(cb.state == InRenderPass, "gpu.CommandBuffer.EndRenderPass: state is %s, not InRenderPass", cb.state)
	cb.Device.Driver.CmdEndRenderPass(cb.Handle)
	cb.state = Recording
}

// EndRecording finishes recording, ending an open render pass first.
// Valid from Recording or InRenderPass.
func (cb *CommandBuffer) EndRecording() error {
	errors.Assert(cb.state == Recording || cb.state == InRenderPass,
		"gpu.CommandBuffer.EndRecording: state is %s, not Recording", cb.state)
	if cb.state == InRenderPass {
		cb.EndRenderPass()
	}
	if r := cb.Device.Driver.EndCommandBuffer(cb.Handle); r != Success {
		return errors.Wrap(r.Err(), "gpu: ending command buffer")
	}
	cb.state = RecordingEnded
	return nil
}

// Submit submits the recorded work to the queue. Valid only when
// RecordingEnded. With a fence it returns immediately, and the fence
// signals completion; without one it blocks until the queue is idle.
func (cb *CommandBuffer) Submit(queue Handle, opts SubmitOptions) error {
	errors.Assert(cb.state == RecordingEnded, "gpu.CommandBuffer.Submit: state is %s, not RecordingEnded", cb.state)
	drv := cb.Device.Driver
	fence := NullHandle
	if opts.Fence != nil {
		if opts.ResetFence {
			if err := opts.Fence.Reset(); err != nil {
				return err
			}
		}
		opts.Fence.signaled = false
		fence = opts.Fence.Handle
	}
	info := SubmitInfo{
		CommandBuffers:   []Handle{cb.Handle},
		WaitSemaphores:   semaphoreHandles(opts.WaitSemaphores),
		SignalSemaphores: semaphoreHandles(opts.SignalSemaphores),
	}
	for range info.WaitSemaphores {
		info.WaitStages = append(info.WaitStages, opts.WaitStage)
	}
	if r := drv.QueueSubmit(queue, info, fence); r != Success {
		return errors.Wrap(r.Err(), "gpu: submitting command buffer")
	}
	cb.state = Submitted
	if opts.Fence == nil {
		if r := drv.QueueWaitIdle(queue); r != Success {
			return errors.Wrap(r.Err(), "gpu: waiting for queue")
		}
		cb.completed = true
	}
	return nil
}

// Reset returns the buffer to Ready. It is a no-op when already Ready,
// and otherwise valid from RecordingEnded or Submitted. A Submitted
// buffer must have retired: the caller waits on its fence first.
func (cb *CommandBuffer) Reset(releaseResources bool) error {
	if cb.state == Ready {
		return nil
	}
	errors.Assert(cb.state == RecordingEnded || cb.state == Submitted,
		"gpu.CommandBuffer.Reset: state is %s, not RecordingEnded or Submitted", cb.state)
	if r := cb.Device.Driver.ResetCommandBuffer(cb.Handle, releaseResources); r != Success {
		return errors.Wrap(r.Err(), "gpu: resetting command buffer")
	}
	cb.state = Ready
	return nil
}

// Free frees the command buffer. Recording is ended first if needed,
// and a Submitted buffer that may still be executing waits for the
// device to be idle.
func (cb *CommandBuffer) Free() {
	switch cb.state {
	case NotAllocated:
		return
	case Recording, InRenderPass:
		errors.Log(cb.EndRecording())
	case Submitted:
		if !cb.completed {
			cb.Device.WaitIdle()
		}
	}
	cb.Device.release(cb.Handle)
	cb.state = NotAllocated
	cb.Handle = NullHandle
}

func (cb *CommandBuffer) assertRecording(op string) {
	errors.Assert(cb.state == Recording, "gpu.CommandBuffer.%s: state is %s, not Recording", op, cb.state)
}

func (cb *CommandBuffer) assertInRenderPass(op string) {
	errors.Assert(cb.state == InRenderPass, "gpu.CommandBuffer.%s: state is %s, not InRenderPass", op, cb.state)
}

// SetViewport sets the dynamic viewport.
func (cb *CommandBuffer) SetViewport(vp Viewport) {
	errors.Assert(cb.state == Recording || cb.state == InRenderPass, "gpu.CommandBuffer.SetViewport: not recording")
	cb.Device.Driver.CmdSetViewport(cb.Handle, vp)
}

// SetScissor sets the dynamic scissor rectangle.
func (cb *CommandBuffer) SetScissor(sc Rect2D) {
	errors.Assert(cb.state == Recording || cb.state == InRenderPass, "gpu.CommandBuffer.SetScissor: not recording")
	cb.Device.Driver.CmdSetScissor(cb.Handle, sc)
}

func (cb *CommandBuffer) BindPipeline(pipeline Handle) {
	cb.assertInRenderPass("BindPipeline")
	cb.Device.Driver.CmdBindPipeline(cb.Handle, pipeline)
}

func (cb *CommandBuffer) BindDescriptorSet(layout, set Handle) {
	cb.assertInRenderPass("BindDescriptorSet")
	cb.Device.Driver.CmdBindDescriptorSet(cb.Handle, layout, set)
}

func (cb *CommandBuffer) BindVertexBuffer(buf Handle, offset uint64) {
	cb.assertInRenderPass("BindVertexBuffer")
	cb.Device.Driver.CmdBindVertexBuffer(cb.Handle, buf, offset)
}

// BindIndexBuffer binds a buffer of uint32 indexes.
func (cb *CommandBuffer) BindIndexBuffer(buf Handle, offset uint64) {
	cb.assertInRenderPass("BindIndexBuffer")
	cb.Device.Driver.CmdBindIndexBuffer(cb.Handle, buf, offset)
}

func (cb *CommandBuffer) PushConstants(layout Handle, stages ShaderStage, offset uint32, data []byte) {
	cb.assertInRenderPass("PushConstants")
	cb.Device.Driver.CmdPushConstants(cb.Handle, layout, stages, offset, data)
}

func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.assertInRenderPass("DrawIndexed")
	cb.Device.Driver.CmdDrawIndexed(cb.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (cb *CommandBuffer) CopyBuffer(src, dst Handle, region BufferCopy) {
	cb.assertRecording("CopyBuffer")
	cb.Device.Driver.CmdCopyBuffer(cb.Handle, src, dst, region)
}

// CopyBufferToImage copies into an image in the transfer destination layout.
func (cb *CommandBuffer) CopyBufferToImage(buf, img Handle, region BufferImageCopy) {
	cb.assertRecording("CopyBufferToImage")
	cb.Device.Driver.CmdCopyBufferToImage(cb.Handle, buf, img, ImageLayoutTransferDstOptimal, region)
}

func (cb *CommandBuffer) PipelineBarrier(b ImageBarrier) {
	cb.assertRecording("PipelineBarrier")
	cb.Device.Driver.CmdPipelineBarrier(cb.Handle, b)
}

// DiscardableCommandBuffer is a single-time command buffer for short
// setup work such as uploads. It is recording from construction, and
// End submits it, blocks until done, and frees it.
type DiscardableCommandBuffer struct {
	*CommandBuffer
}

// NewDiscardableCommandBuffer allocates a command buffer and begins
// recording it for one-time submission.
func NewDiscardableCommandBuffer(dv *Device) (*DiscardableCommandBuffer, error) {
	cb, err := NewCommandBuffer(dv, true)
	if err != nil {
		return nil, err
	}
	if err := cb.BeginRecording(true, false, false); err != nil {
		cb.Free()
		return nil, err
	}
	return &DiscardableCommandBuffer{CommandBuffer: cb}, nil
}

// End ends recording, submits to the graphics queue, waits for the
// queue to be idle, and frees the buffer.
func (dc *DiscardableCommandBuffer) End() error {
	defer dc.Free()
	if err := dc.EndRecording(); err != nil {
		return err
	}
	return dc.Submit(dc.Device.GraphicsQueue, SubmitOptions{})
}

// Discard frees the buffer without submitting it.
func (dc *DiscardableCommandBuffer) Discard() {
	dc.Free()
}
