// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
)

// ResourceKind is the kind of driver object a registry entry holds.
type ResourceKind int32

const (
	KindBuffer ResourceKind = iota
	KindMemory
	KindImage
	KindImageView
	KindSampler
	KindFence
	KindSemaphore
	KindCommandBuffer
	KindRenderPass
	KindFramebuffer
	KindSwapchain
	KindDescriptorPool
)

var kindNames = [...]string{"Buffer", "Memory", "Image", "ImageView", "Sampler", "Fence",
	"Semaphore", "CommandBuffer", "RenderPass", "Framebuffer", "Swapchain", "DescriptorPool"}

func (k ResourceKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ResourceKind(%d)", int32(k))
}

type resource struct {
	kind   ResourceKind
	handle Handle
}

// Registry tracks every driver object created through a [Device].
// Releasing an object does not destroy it: it is queued, and destroyed
// by the retire pass that runs after [Device.WaitIdle], when the GPU can
// no longer be using it.
type Registry struct {
	drv     Driver
	cmdPool Handle

	live    map[Handle]ResourceKind
	retired []resource
}

func newRegistry(drv Driver) *Registry {
	return &Registry{drv: drv, live: make(map[Handle]ResourceKind)}
}

// Add registers a newly created object.
func (rg *Registry) Add(kind ResourceKind, h Handle) {
	if h.IsNull() {
		return
	}
	rg.live[h] = kind
}

// Release queues the object for destruction at the next retire pass.
// Releasing a null or unknown handle does nothing.
func (rg *Registry) Release(h Handle) {
	kind, ok := rg.live[h]
	if !ok {
		return
	}
	delete(rg.live, h)
	rg.retired = append(rg.retired, resource{kind: kind, handle: h})
}

// Live returns the number of registered objects not yet released.
func (rg *Registry) Live() int { return len(rg.live) }

// Pending returns the number of released objects awaiting retirement.
func (rg *Registry) Pending() int { return len(rg.retired) }

// LiveOf returns the number of live objects of the given kind.
func (rg *Registry) LiveOf(kind ResourceKind) int {
	n := 0
	for _, k := range rg.live {
		if k == kind {
			n++
		}
	}
	return n
}

// retire destroys all released objects. Must only be called when the
// device is idle. Objects are destroyed in release order, except memory,
// which goes last so that buffers and images bound to it are gone first.
func (rg *Registry) retire() int {
	n := len(rg.retired)
	var mems []Handle
	for _, r := range rg.retired {
		if r.kind == KindMemory {
			mems = append(mems, r.handle)
			continue
		}
		rg.destroy(r)
	}
	for _, m := range mems {
		rg.drv.FreeMemory(m)
	}
	rg.retired = rg.retired[:0]
	return n
}

// teardownOrder is the order kinds are released in at shutdown, so
// that objects go before the objects they reference.
var teardownOrder = [...]int{
	KindFramebuffer:    0,
	KindRenderPass:     1,
	KindImageView:      2,
	KindSampler:        3,
	KindImage:          4,
	KindSwapchain:      5,
	KindBuffer:         6,
	KindCommandBuffer:  7,
	KindDescriptorPool: 8,
	KindFence:          9,
	KindSemaphore:      10,
	KindMemory:         11,
}

// releaseAll releases all live objects, warning about each one, for
// use at device shutdown.
func (rg *Registry) releaseAll() {
	hs := make([]Handle, 0, len(rg.live))
	for h := range rg.live {
		hs = append(hs, h)
	}
	slices.SortFunc(hs, func(a, b Handle) int {
		if c := cmp.Compare(teardownOrder[rg.live[a]], teardownOrder[rg.live[b]]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, h := range hs {
		slog.Warn("gpu.Registry: object still live at device destroy", "kind", rg.live[h], "handle", uint64(h))
		rg.Release(h)
	}
}

func (rg *Registry) destroy(r resource) {
	d := rg.drv
	switch r.kind {
	case KindBuffer:
		d.DestroyBuffer(r.handle)
	case KindMemory:
		d.FreeMemory(r.handle)
	case KindImage:
		d.DestroyImage(r.handle)
	case KindImageView:
		d.DestroyImageView(r.handle)
	case KindSampler:
		d.DestroySampler(r.handle)
	case KindFence:
		d.DestroyFence(r.handle)
	case KindSemaphore:
		d.DestroySemaphore(r.handle)
	case KindCommandBuffer:
		d.FreeCommandBuffers(rg.cmdPool, []Handle{r.handle})
	case KindRenderPass:
		d.DestroyRenderPass(r.handle)
	case KindFramebuffer:
		d.DestroyFramebuffer(r.handle)
	case KindSwapchain:
		d.DestroySwapchain(r.handle)
	case KindDescriptorPool:
		d.DestroyDescriptorPool(r.handle)
	}
}
