// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gputest

import (
	"slices"

	"cogentcore.org/vframe/gpu"
)

// Submission is one queue submission.
type Submission struct {
	Queue          gpu.Handle
	CommandBuffers []gpu.Handle

	// Commands are the commands of all the command buffers, in order.
	Commands []Command

	Wait   []gpu.Handle
	Signal []gpu.Handle
	Fence  gpu.Handle

	// Done is set when the work has completed.
	Done bool

	// waits counts driver waits on Fence for this submission.
	waits int

	refs map[gpu.Handle]bool
}

// Find returns the commands with the given op.
func (s *Submission) Find(op string) []Command {
	var cs []Command
	for _, c := range s.Commands {
		if c.Op == op {
			cs = append(cs, c)
		}
	}
	return cs
}

type cmdBuffer struct {
	recording bool
	ended     bool
	inPass    bool
	commands  []Command

	// pending is the submission executing the buffer, until done.
	pending *Submission

	// lastSub is the last submission of the buffer since it was reset.
	lastSub *Submission
}

type swapchain struct {
	info     gpu.SwapchainCreateInfo
	images   []gpu.Handle
	next     uint32
	acquired map[uint32]bool

	// retired is set when the swapchain is passed as the old swapchain
	// to a new one.
	retired bool
}

////////  Command buffers

func (d *Driver) CreateCommandPool(family uint32) (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateCommandPool"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	return d.newHandle(""), gpu.Success
}

func (d *Driver) DestroyCommandPool(pool gpu.Handle) {
	for h := range d.cmds {
		d.violation("command buffer %d not freed before its pool", h)
	}
}

func (d *Driver) AllocateCommandBuffers(pool gpu.Handle, count int, primary bool) ([]gpu.Handle, gpu.Result) {
	if r := d.fail("AllocateCommandBuffers"); r != gpu.Success {
		return nil, r
	}
	hs := make([]gpu.Handle, count)
	for i := range hs {
		hs[i] = d.newHandle("CommandBuffer")
		d.cmds[hs[i]] = &cmdBuffer{}
	}
	return hs, gpu.Success
}

func (d *Driver) FreeCommandBuffers(pool gpu.Handle, cmds []gpu.Handle) {
	for _, h := range cmds {
		if cb, ok := d.cmds[h]; ok && cb.pending != nil {
			d.violation("free of command buffer %d while pending", h)
		}
		if d.destroy("CommandBuffer", h) {
			delete(d.cmds, h)
		}
	}
}

func (d *Driver) cmdBuffer(h gpu.Handle, op string) *cmdBuffer {
	cb, ok := d.cmds[h]
	if !ok {
		d.violation("%s: unknown command buffer %d", op, h)
	}
	return cb
}

// reset clears the buffer, noting the fence waits of its last submission.
func (d *Driver) reset(h gpu.Handle, cb *cmdBuffer, op string) {
	if cb.pending != nil {
		d.violation("%s: command buffer %d is pending", op, h)
	}
	if cb.lastSub != nil && !cb.lastSub.Fence.IsNull() {
		d.ReuseWaits = append(d.ReuseWaits, cb.lastSub.waits)
	}
	cb.lastSub = nil
	cb.commands = nil
	cb.recording, cb.ended, cb.inPass = false, false, false
}

func (d *Driver) BeginCommandBuffer(h gpu.Handle, usage gpu.CommandBufferUsage) gpu.Result {
	cb := d.cmdBuffer(h, "BeginCommandBuffer")
	if cb == nil {
		return gpu.ErrorUnknown
	}
	if r := d.fail("BeginCommandBuffer"); r != gpu.Success {
		return r
	}
	if cb.recording {
		d.violation("BeginCommandBuffer: command buffer %d is already recording", h)
	}
	d.reset(h, cb, "BeginCommandBuffer")
	cb.recording = true
	return gpu.Success
}

func (d *Driver) EndCommandBuffer(h gpu.Handle) gpu.Result {
	cb := d.cmdBuffer(h, "EndCommandBuffer")
	if cb == nil {
		return gpu.ErrorUnknown
	}
	if !cb.recording {
		d.violation("EndCommandBuffer: command buffer %d is not recording", h)
	}
	if cb.inPass {
		d.violation("EndCommandBuffer: command buffer %d has an open render pass", h)
	}
	cb.recording, cb.ended = false, true
	return gpu.Success
}

func (d *Driver) ResetCommandBuffer(h gpu.Handle, releaseResources bool) gpu.Result {
	cb := d.cmdBuffer(h, "ResetCommandBuffer")
	if cb == nil {
		return gpu.ErrorUnknown
	}
	d.reset(h, cb, "ResetCommandBuffer")
	return gpu.Success
}

// Commands returns the commands recorded in the command buffer.
func (d *Driver) Commands(h gpu.Handle) []Command {
	if cb, ok := d.cmds[h]; ok {
		return cb.commands
	}
	return nil
}

////////  Queues

// QueueSubmit validates the submission and executes its transfer
// commands. The work stays pending until waited on.
func (d *Driver) QueueSubmit(queue gpu.Handle, info gpu.SubmitInfo, fenceH gpu.Handle) gpu.Result {
	if r := d.fail("QueueSubmit"); r != gpu.Success {
		return r
	}
	d.Submits++
	if len(info.WaitStages) != len(info.WaitSemaphores) {
		d.violation("QueueSubmit: %d wait stages for %d wait semaphores", len(info.WaitStages), len(info.WaitSemaphores))
	}
	sub := &Submission{
		Queue:          queue,
		CommandBuffers: slices.Clone(info.CommandBuffers),
		Wait:           slices.Clone(info.WaitSemaphores),
		Signal:         slices.Clone(info.SignalSemaphores),
		Fence:          fenceH,
		refs:           make(map[gpu.Handle]bool),
	}
	for _, s := range info.WaitSemaphores {
		d.wait(s, "QueueSubmit")
		sub.refs[s] = true
	}
	for _, h := range info.CommandBuffers {
		cb := d.cmdBuffer(h, "QueueSubmit")
		if cb == nil {
			continue
		}
		if !cb.ended {
			d.violation("QueueSubmit: command buffer %d has not ended recording", h)
		}
		if cb.pending != nil {
			d.violation("QueueSubmit: command buffer %d is already pending", h)
		}
		cb.pending = sub
		cb.lastSub = sub
		sub.refs[h] = true
		for _, c := range cb.commands {
			d.execute(c)
			for _, a := range c.Args {
				if ah, ok := a.(gpu.Handle); ok {
					sub.refs[ah] = true
				}
			}
		}
		sub.Commands = append(sub.Commands, cb.commands...)
	}
	for _, s := range info.SignalSemaphores {
		d.signal(s, "QueueSubmit")
		sub.refs[s] = true
	}
	if !fenceH.IsNull() {
		f, ok := d.fences[fenceH]
		switch {
		case !ok:
			d.violation("QueueSubmit: unknown fence %d", fenceH)
		case f.signaled:
			d.violation("QueueSubmit: fence %d is signaled", fenceH)
		case f.sub != nil && !f.sub.Done:
			d.violation("QueueSubmit: fence %d is already pending", fenceH)
		}
		if ok {
			f.sub = sub
		}
		sub.refs[fenceH] = true
	}
	d.pending = append(d.pending, sub)
	d.Submissions = append(d.Submissions, sub)
	return gpu.Success
}

// complete finishes pending submissions in order, through sub.
func (d *Driver) complete(sub *Submission) {
	for len(d.pending) > 0 {
		s := d.pending[0]
		d.pending = d.pending[1:]
		d.finish(s)
		if s == sub {
			return
		}
	}
}

func (d *Driver) completeAll() {
	for _, s := range d.pending {
		d.finish(s)
	}
	d.pending = nil
}

func (d *Driver) finish(s *Submission) {
	s.Done = true
	for _, h := range s.CommandBuffers {
		if cb, ok := d.cmds[h]; ok && cb.pending == s {
			cb.pending = nil
		}
	}
	if f, ok := d.fences[s.Fence]; ok && f.sub == s {
		f.signaled = true
	}
}

func (d *Driver) inUse(h gpu.Handle) bool {
	for _, s := range d.pending {
		if s.refs[h] {
			return true
		}
	}
	return false
}

func (d *Driver) DeviceWaitIdle() gpu.Result {
	if r := d.fail("DeviceWaitIdle"); r != gpu.Success {
		return r
	}
	d.IdleWaits++
	d.completeAll()
	return gpu.Success
}

func (d *Driver) QueueWaitIdle(queue gpu.Handle) gpu.Result {
	d.completeAll()
	return gpu.Success
}

////////  Swapchain

func (d *Driver) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Handle, gpu.Result) {
	if r := d.fail("CreateSwapchain"); r != gpu.Success {
		return gpu.NullHandle, r
	}
	if info.Extent.IsZero() {
		d.violation("CreateSwapchain: zero extent %dx%d", info.Extent.Width, info.Extent.Height)
		return gpu.NullHandle, gpu.ErrorInitializationFailed
	}
	if info.MinImageCount < d.Caps.MinImageCount || (d.Caps.MaxImageCount > 0 && info.MinImageCount > d.Caps.MaxImageCount) {
		d.violation("CreateSwapchain: image count %d outside surface limits", info.MinImageCount)
	}
	if !info.Old.IsNull() {
		old, ok := d.chains[info.Old]
		if !ok {
			d.violation("CreateSwapchain: unknown old swapchain %d", info.Old)
		} else {
			old.retired = true
		}
	}
	d.SwapchainsCreated++
	h := d.newHandle("Swapchain")
	sc := &swapchain{info: info, acquired: make(map[uint32]bool)}
	for range info.MinImageCount {
		ih := d.newHandle("")
		d.images[ih] = &image{
			cfg: gpu.ImageConfig{
				Type:   gpu.ImageType2D,
				Format: info.Format.Format,
				Extent: gpu.Extent3D{Width: info.Extent.Width, Height: info.Extent.Height, Depth: 1},
			},
			swapchain: h,
		}
		sc.images = append(sc.images, ih)
	}
	d.chains[h] = sc
	return h, gpu.Success
}

func (d *Driver) DestroySwapchain(h gpu.Handle) {
	sc, ok := d.chains[h]
	if !d.destroy("Swapchain", h) {
		return
	}
	if ok {
		for _, ih := range sc.images {
			for vh, img := range d.views {
				if img == ih {
					d.violation("swapchain %d destroyed before view %d of its image", h, vh)
				}
			}
			delete(d.images, ih)
		}
	}
	delete(d.chains, h)
}

func (d *Driver) SwapchainImages(h gpu.Handle) ([]gpu.Handle, gpu.Result) {
	sc, ok := d.chains[h]
	if !ok {
		d.violation("SwapchainImages: unknown swapchain %d", h)
		return nil, gpu.ErrorUnknown
	}
	return slices.Clone(sc.images), gpu.Success
}

// SwapchainInfo returns the create info of the swapchain.
func (d *Driver) SwapchainInfo(h gpu.Handle) gpu.SwapchainCreateInfo {
	if sc, ok := d.chains[h]; ok {
		return sc.info
	}
	return gpu.SwapchainCreateInfo{}
}

// outOfDate is whether the swapchain no longer matches the surface.
func (d *Driver) outOfDate(sc *swapchain) bool {
	cur := d.Caps.CurrentExtent
	return sc.retired || (cur.Width != gpu.UndefinedExtent && cur != sc.info.Extent)
}

func popResult(rs *[]gpu.Result) (gpu.Result, bool) {
	if len(*rs) == 0 {
		return gpu.Success, false
	}
	r := (*rs)[0]
	*rs = (*rs)[1:]
	return r, true
}

func (d *Driver) AcquireNextImage(h gpu.Handle, timeout uint64, sem gpu.Handle) (uint32, gpu.Result) {
	d.Acquires++
	sc, ok := d.chains[h]
	if !ok {
		d.violation("AcquireNextImage: unknown swapchain %d", h)
		return 0, gpu.ErrorUnknown
	}
	result := gpu.Success
	if r, ok := popResult(&d.AcquireResults); ok {
		if r != gpu.Success && r != gpu.Suboptimal {
			return 0, r
		}
		result = r
	} else if d.outOfDate(sc) {
		return 0, gpu.ErrorOutOfDate
	}
	idx := sc.next
	if len(d.NextImages) > 0 {
		idx = d.NextImages[0]
		d.NextImages = d.NextImages[1:]
	}
	sc.next = (idx + 1) % uint32(len(sc.images))
	if sc.acquired[idx] {
		d.violation("AcquireNextImage: image %d acquired again before present", idx)
	}
	sc.acquired[idx] = true
	d.signal(sem, "AcquireNextImage")
	return idx, result
}

func (d *Driver) QueuePresent(queue, h gpu.Handle, imageIndex uint32, wait []gpu.Handle) gpu.Result {
	d.Presents++
	sc, ok := d.chains[h]
	if !ok {
		d.violation("QueuePresent: unknown swapchain %d", h)
		return gpu.ErrorUnknown
	}
	for _, s := range wait {
		d.wait(s, "QueuePresent")
	}
	if !sc.acquired[imageIndex] {
		d.violation("QueuePresent: image %d was not acquired", imageIndex)
	}
	delete(sc.acquired, imageIndex)
	d.Presented = append(d.Presented, imageIndex)
	if r, ok := popResult(&d.PresentResults); ok {
		return r
	}
	if d.outOfDate(sc) {
		return gpu.ErrorOutOfDate
	}
	return gpu.Success
}
