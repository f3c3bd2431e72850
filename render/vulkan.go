// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"log/slog"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/pools"
)

// frameSlot is the per-frame-in-flight state. A slot is reused only
// after its fence shows the GPU is done with its last frame.
type frameSlot struct {
	cmd            *gpu.CommandBuffer
	imageAvailable *gpu.Semaphore
	renderFinished *gpu.Semaphore
	inFlight       *gpu.Fence

	// descriptorSet binds the slot's [GlobalUbo] instance.
	descriptorSet gpu.Handle
}

func (s *frameSlot) destroy() {
	if s.cmd != nil {
		s.cmd.Free()
	}
	if s.imageAvailable != nil {
		s.imageAvailable.Destroy()
	}
	if s.renderFinished != nil {
		s.renderFinished.Destroy()
	}
	if s.inFlight != nil {
		s.inFlight.Destroy()
	}
}

// VulkanRenderer is the frame orchestrator for the Vulkan backend.
// It owns the swapchain and F frame slots, and uses slot
// currentFrame for the frame being built, which is independent of
// the swapchain image it renders to.
type VulkanRenderer struct {
	Device    *gpu.Device
	Swapchain *gpu.Swapchain
	Options   Options

	slots []*frameSlot

	// imagesInFlight is the fence of the slot that last rendered to
	// each swapchain image, or nil.
	imagesInFlight []*gpu.Fence

	currentFrame  int
	imageIndex    uint32
	state         State
	needsRecreate bool

	globals     *UniformBuffer[GlobalUbo]
	descriptors *gpu.DescriptorPool
	pipeline    *Pipeline
	camera      Camera
	objects     []DrawObject
	frameInfo   FrameInfo

	// shared object buffers, and the number of vertices and indices
	// uploaded to them
	vertices    *gpu.MemBuffer
	indices     *gpu.MemBuffer
	vertexCount uint64
	indexCount  uint64
}

var _ Renderer = (*VulkanRenderer)(nil)

// NewVulkanRenderer creates the swapchain, frame slots and shared
// object buffers.
func NewVulkanRenderer(dv *gpu.Device, opts Options) (*VulkanRenderer, error) {
	if opts.Pools == nil {
		opts.Pools = pools.NewManager()
	}
	if opts.ClearColor == ([4]float32{}) {
		opts.ClearColor = DefaultClearColor
	}
	r := &VulkanRenderer{Device: dv, Options: opts}
	r.frameInfo.Global = IdentityUbo()
	if err := r.recreateSwapchain(); err != nil {
		return nil, err
	}
	if err := r.createSlots(); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := r.createObjectBuffers(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *VulkanRenderer) createSlots() error {
	dv := r.Device
	n := r.Swapchain.MaxFramesInFlight()
	cmds, err := gpu.NewCommandBuffers(dv, n, true)
	if err != nil {
		return errors.Wrap(err, "render: allocating frame command buffers")
	}
	r.slots = make([]*frameSlot, n)
	for i := range r.slots {
		s := &frameSlot{cmd: cmds[i]}
		r.slots[i] = s
		if s.imageAvailable, err = gpu.NewSemaphore(dv); err != nil {
			return errors.Wrap(err, "render: creating frame slot")
		}
		if s.renderFinished, err = gpu.NewSemaphore(dv); err != nil {
			return errors.Wrap(err, "render: creating frame slot")
		}
		// signaled, so the first wait on each slot returns at once
		if s.inFlight, err = gpu.NewFence(dv, true); err != nil {
			return errors.Wrap(err, "render: creating frame slot")
		}
	}
	if r.globals, err = NewUniformBuffer[GlobalUbo](dv, n); err != nil {
		return err
	}
	return r.allocateDescriptors()
}

func (r *VulkanRenderer) destroySlots() {
	for _, s := range r.slots {
		s.destroy()
	}
	r.slots = nil
	r.descriptors.Destroy()
	r.descriptors = nil
	r.globals.Destroy()
	r.globals = nil
}

// allocateDescriptors allocates a descriptor set per slot for the
// pipeline, pointing at the slot's uniform buffer instance.
func (r *VulkanRenderer) allocateDescriptors() error {
	r.descriptors.Destroy()
	r.descriptors = nil
	if r.pipeline == nil || len(r.slots) == 0 {
		return nil
	}
	dp, err := gpu.NewDescriptorPool(r.Device, uint32(len(r.slots)))
	if err != nil {
		return err
	}
	r.descriptors = dp
	for i, s := range r.slots {
		set, err := dp.Allocate(r.pipeline.DescriptorSetLayout)
		if err != nil {
			return err
		}
		dp.WriteUniform(set, 0, r.globals.DescriptorInfo(i))
		s.descriptorSet = set
	}
	return nil
}

// recreateSwapchain makes a new swapchain for the current window size,
// first waiting for the window to have a non-zero size.
func (r *VulkanRenderer) recreateSwapchain() error {
	var want gpu.Extent2D
	if win := r.Options.Window; win != nil {
		w, h := win.Size()
		for w <= 0 || h <= 0 {
			win.WaitEvents()
			w, h = win.Size()
		}
		want = gpu.Extent2D{Width: uint32(w), Height: uint32(h)}
	}
	r.Device.WaitIdle()
	old := r.Swapchain
	sc, err := gpu.NewSwapchain(r.Device, gpu.SwapchainConfig{
		Extent:         want,
		VSync:          r.Options.VSync,
		ClearColor:     r.Options.ClearColor,
		ClearDepth:     1,
		ImageCount:     uint32(max(r.Options.ImageCount, 0)),
		FramesInFlight: r.Options.FramesInFlight,
		Old:            old,
	})
	if err != nil {
		return errors.Wrap(err, "render: creating swapchain")
	}
	if old != nil {
		errors.Assert(sc.CompareFormats(old), "render: swapchain image or depth format changed")
		old.Destroy()
	}
	r.Swapchain = sc
	r.imagesInFlight = make([]*gpu.Fence, sc.ImageCount())
	if r.camera != nil {
		r.camera.SetViewportSize(int(sc.Extent.Width), int(sc.Extent.Height))
	}
	slog.Info("render: swapchain created", "width", sc.Extent.Width, "height", sc.Extent.Height,
		"images", sc.ImageCount(), "framesInFlight", sc.MaxFramesInFlight(), "presentMode", sc.PresentMode)
	return nil
}

// recreate replaces the swapchain and the slot command buffers,
// rebuilding the slots if the number of frames in flight changed.
func (r *VulkanRenderer) recreate() error {
	if err := r.recreateSwapchain(); err != nil {
		return err
	}
	if r.Swapchain.MaxFramesInFlight() != len(r.slots) {
		r.destroySlots()
		r.currentFrame = 0
		if err := r.createSlots(); err != nil {
			r.destroySlots()
			return err
		}
		return nil
	}
	for _, s := range r.slots {
		s.cmd.Free()
		cb, err := gpu.NewCommandBuffer(r.Device, true)
		if err != nil {
			r.destroySlots()
			return errors.Wrap(err, "render: allocating frame command buffer")
		}
		s.cmd = cb
	}
	return nil
}

// BeginFrame acquires the next swapchain image and begins recording
// the current slot's command buffer in the main render pass, drawing
// the objects if a pipeline is set. It returns false when the
// swapchain was, or must be, recreated; the caller then skips the
// frame and does not call EndFrame.
func (r *VulkanRenderer) BeginFrame() bool {
	errors.Assert(r.state == Idle, "render.VulkanRenderer.BeginFrame: frame already started (state %s)", r.state)
	if r.state != Idle {
		return false
	}
	if r.needsRecreate || len(r.slots) == 0 {
		if err := r.recreate(); err != nil {
			slog.Error("render: failed to recreate swapchain", "err", err)
		}
		r.needsRecreate = false
		return false
	}
	slot := r.slots[r.currentFrame]
	idx, res := r.Swapchain.AcquireNextImage(slot.imageAvailable, slot.inFlight, gpu.MaxTimeout)
	switch res {
	case gpu.Success, gpu.Suboptimal:
	case gpu.ErrorOutOfDate:
		r.needsRecreate = true
		return false
	case gpu.Timeout, gpu.NotReady:
		// the slot is still busy; try it again next frame
		slog.Warn("render: frame slot not ready", "slot", r.currentFrame, "result", res)
		return false
	default:
		errors.Assert(false, "render.VulkanRenderer.BeginFrame: failed to acquire swapchain image: %s", res)
		slog.Error("render: failed to acquire swapchain image", "result", res)
		return false
	}
	r.imageIndex = idx
	r.state = FrameAcquired

	cb := slot.cmd
	if err := cb.Reset(false); err != nil {
		return r.abandonFrame(err)
	}
	if err := cb.BeginRecording(false, false, false); err != nil {
		return r.abandonFrame(err)
	}
	r.state = Recording

	ext := r.Swapchain.Extent
	w, h := float32(ext.Width), float32(ext.Height)
	// flipped, so that y is up
	cb.SetViewport(gpu.Viewport{X: 0, Y: h, Width: w, Height: -h, MinDepth: 0, MaxDepth: 1})
	cb.SetScissor(gpu.Rect2D{Extent: ext})
	cb.BeginRenderPass(r.Swapchain.RenderPass, r.Swapchain.Framebuffers[idx])

	if r.camera != nil {
		r.frameInfo.Global = r.camera.GlobalUbo()
	}
	errors.Log(r.globals.Update(r.currentFrame, r.frameInfo.Global))
	r.draw(cb, slot)
	return true
}

// abandonFrame gives up on a frame whose image was acquired; the image
// is only released by recreating the swapchain.
func (r *VulkanRenderer) abandonFrame(err error) bool {
	slog.Error("render: failed to begin frame", "err", err)
	r.replaceImageAvailable(r.slots[r.currentFrame])
	r.needsRecreate = true
	r.state = Idle
	return false
}

func (r *VulkanRenderer) draw(cb *gpu.CommandBuffer, slot *frameSlot) {
	pl := r.pipeline
	if pl == nil {
		return
	}
	cb.BindPipeline(pl.Pipeline)
	cb.BindDescriptorSet(pl.Layout, slot.descriptorSet)
	cb.BindVertexBuffer(r.vertices.Buffer, 0)
	cb.BindIndexBuffer(r.indices.Buffer, 0)
	stages := pl.pushStages()
	for i := range r.objects {
		ob := &r.objects[i]
		cb.PushConstants(pl.Layout, stages, 0, bytesOf(&ob.Model))
		cb.DrawIndexed(ob.Mesh.IndexCount, 1, ob.Mesh.FirstIndex, ob.Mesh.VertexOffset, 0)
	}
}

// EndFrame ends recording, submits the slot's command buffer and
// presents the image. It returns false if submission or presentation
// failed. Out of date and suboptimal presentation only mark the
// swapchain for recreation at the next BeginFrame.
func (r *VulkanRenderer) EndFrame() bool {
	errors.Assert(r.state == Recording, "render.VulkanRenderer.EndFrame: frame not started (state %s)", r.state)
	if r.state != Recording {
		return false
	}
	slot := r.slots[r.currentFrame]
	slot.cmd.EndRenderPass()
	if err := slot.cmd.EndRecording(); err != nil {
		slog.Error("render: failed to end frame", "err", err)
		r.replaceImageAvailable(slot)
		r.needsRecreate = true
		return r.finishFrame(false)
	}

	// the image may still be in use by another slot's frame
	if f := r.imagesInFlight[r.imageIndex]; f != nil {
		f.Wait(gpu.MaxTimeout)
	}
	r.imagesInFlight[r.imageIndex] = slot.inFlight

	err := slot.cmd.Submit(r.Device.GraphicsQueue, gpu.SubmitOptions{
		WaitSemaphores:   []*gpu.Semaphore{slot.imageAvailable},
		WaitStage:        gpu.PipelineStageColorAttachmentOutput,
		SignalSemaphores: []*gpu.Semaphore{slot.renderFinished},
		Fence:            slot.inFlight,
		ResetFence:       true,
	})
	if err != nil {
		slog.Error("render: failed to submit frame", "err", err)
		r.replaceFence(slot)
		r.replaceImageAvailable(slot)
		r.needsRecreate = true
		return r.finishFrame(false)
	}
	r.state = Submitted

	ok := true
	switch res := r.Swapchain.PresentImage(r.imageIndex, slot.renderFinished); res {
	case gpu.Success:
	case gpu.ErrorOutOfDate, gpu.Suboptimal:
		r.needsRecreate = true
	default:
		slog.Error("render: failed to present swapchain image", "result", res)
		ok = false
	}
	return r.finishFrame(ok)
}

func (r *VulkanRenderer) finishFrame(ok bool) bool {
	r.currentFrame = (r.currentFrame + 1) % len(r.slots)
	r.state = Idle
	return ok
}

// replaceFence gives the slot a new signaled fence after a failed
// submission, which may have reset the old one with nothing to signal it.
func (r *VulkanRenderer) replaceFence(slot *frameSlot) {
	fc, err := gpu.NewFence(r.Device, true)
	if errors.Log(err) != nil {
		return
	}
	for i, f := range r.imagesInFlight {
		if f == slot.inFlight {
			r.imagesInFlight[i] = nil
		}
	}
	slot.inFlight.Destroy()
	slot.inFlight = fc
}

// replaceImageAvailable gives the slot a new image available semaphore
// when the frame's submission, which would have waited on the old one,
// did not happen. The old semaphore stays signaled by the acquire.
func (r *VulkanRenderer) replaceImageAvailable(slot *frameSlot) {
	sem, err := gpu.NewSemaphore(r.Device)
	if errors.Log(err) != nil {
		return
	}
	slot.imageAvailable.Destroy()
	slot.imageAvailable = sem
}

// OnResize marks the swapchain for recreation at the next BeginFrame.
func (r *VulkanRenderer) OnResize(width, height int) {
	slog.Debug("render: resize", "width", width, "height", height)
	r.needsRecreate = true
}

// SetPipeline sets the pipeline used to draw the objects, allocating
// a descriptor set for each frame slot. nil stops drawing.
func (r *VulkanRenderer) SetPipeline(pl *Pipeline) error {
	errors.Assert(r.state == Idle, "render.VulkanRenderer.SetPipeline: frame in progress")
	if r.descriptors != nil {
		// sets may be in use by frames in flight
		r.Device.WaitIdle()
	}
	r.pipeline = pl
	return r.allocateDescriptors()
}

// SetCamera sets the camera giving each frame's [GlobalUbo], and sets
// its viewport to the swapchain extent.
func (r *VulkanRenderer) SetCamera(c Camera) {
	r.camera = c
	if c != nil && r.Swapchain != nil {
		c.SetViewportSize(int(r.Swapchain.Extent.Width), int(r.Swapchain.Extent.Height))
	}
}

// SetObjects sets the objects drawn each frame, in order.
func (r *VulkanRenderer) SetObjects(objs []DrawObject) { r.objects = objs }

// Objects returns the objects drawn each frame.
func (r *VulkanRenderer) Objects() []DrawObject { return r.objects }

// SetFrameInfo sets the input of the next frame. Its global uniforms
// are used when there is no camera.
func (r *VulkanRenderer) SetFrameInfo(fi FrameInfo) { r.frameInfo = fi }

// FrameInfo returns the input of the current or next frame.
func (r *VulkanRenderer) FrameInfo() FrameInfo { return r.frameInfo }

// CurrentFrame returns the current frame slot.
func (r *VulkanRenderer) CurrentFrame() int { return r.currentFrame }

// ImageIndex returns the swapchain image of the current frame.
func (r *VulkanRenderer) ImageIndex() uint32 { return r.imageIndex }

// FramesInFlight returns the number of frame slots.
func (r *VulkanRenderer) FramesInFlight() int { return len(r.slots) }

// NeedsRecreate returns whether the swapchain will be recreated at the
// next BeginFrame.
func (r *VulkanRenderer) NeedsRecreate() bool { return r.needsRecreate }

func (r *VulkanRenderer) State() State { return r.state }

// CommandBuffer returns the command buffer of the current frame slot,
// which is in the main render pass between BeginFrame and EndFrame.
func (r *VulkanRenderer) CommandBuffer() *gpu.CommandBuffer {
	if len(r.slots) == 0 {
		return nil
	}
	return r.slots[r.currentFrame].cmd
}

// WaitIdle blocks until the device is idle.
func (r *VulkanRenderer) WaitIdle() { r.Device.WaitIdle() }

// Destroy waits for the device, then destroys the slots, object
// buffers and swapchain, and returns the object buffer reservations
// to the pools.
func (r *VulkanRenderer) Destroy() {
	r.Device.WaitIdle()
	r.destroySlots()
	r.vertices.Destroy()
	r.indices.Destroy()
	r.vertices, r.indices = nil, nil
	if p := r.Options.Pools.Get(pools.RendererVertices); p != nil && r.vertexCount > 0 {
		p.Empty(r.vertexCount)
	}
	if p := r.Options.Pools.Get(pools.RendererIndices); p != nil && r.indexCount > 0 {
		p.Empty(r.indexCount)
	}
	r.vertexCount, r.indexCount = 0, 0
	r.Swapchain.Destroy()
	r.Swapchain = nil
	r.imagesInFlight = nil
	r.Device.WaitIdle()
}
