// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"log/slog"

	"cogentcore.org/vframe/base/errors"
)

// Fence is a GPU to CPU signal that host code can wait on.
type Fence struct {
	Device *Device
	Handle Handle

	// signaled is true when the fence is known to be signaled:
	// created signaled, or a Wait succeeded, with no Reset since.
	signaled bool
}

// NewFence creates a fence, optionally already signaled.
func NewFence(dv *Device, signaled bool) (*Fence, error) {
	h, r := dv.Driver.CreateFence(signaled)
	if r != Success {
		return nil, errors.Wrap(r.Err(), "gpu: creating fence")
	}
	dv.register(KindFence, h)
	return &Fence{Device: dv, Handle: h, signaled: signaled}, nil
}

// Wait blocks until the fence is signaled or the timeout (in
// nanoseconds) expires, returning whether it was signaled. A fence
// already known to be signaled returns immediately. A timeout is
// logged as a warning; device lost and out of memory as errors.
func (fc *Fence) Wait(timeout uint64) bool {
	if fc.signaled {
		return true
	}
	r := fc.Device.Driver.WaitForFence(fc.Handle, timeout)
	switch r {
	case Success:
		fc.signaled = true
		return true
	case Timeout:
		slog.Warn("gpu.Fence.Wait: timed out", "timeout", timeout)
	case ErrorDeviceLost:
		slog.Error("gpu.Fence.Wait: device lost")
	case ErrorOutOfHostMemory, ErrorOutOfDeviceMemory:
		slog.Error("gpu.Fence.Wait: out of memory", "result", r)
	default:
		slog.Error("gpu.Fence.Wait: unexpected result", "result", r)
	}
	return false
}

// Reset returns the fence to the unsignaled state, so it can be passed
// to a submission again. It must not be pending on the GPU.
func (fc *Fence) Reset() error {
	if r := fc.Device.Driver.ResetFence(fc.Handle); r != Success {
		return errors.Wrap(r.Err(), "gpu: resetting fence")
	}
	fc.signaled = false
	return nil
}

// Signaled returns whether the fence is known to be signaled.
func (fc *Fence) Signaled() bool { return fc.signaled }

// Destroy releases the fence.
func (fc *Fence) Destroy() {
	if fc == nil || fc.Handle.IsNull() {
		return
	}
	fc.Device.release(fc.Handle)
	fc.Handle = NullHandle
}

// Semaphore is a GPU to GPU signal, only used by queue operations.
type Semaphore struct {
	Device *Device
	Handle Handle
}

// NewSemaphore creates a semaphore.
func NewSemaphore(dv *Device) (*Semaphore, error) {
	h, r := dv.Driver.CreateSemaphore()
	if r != Success {
		return nil, errors.Wrap(r.Err(), "gpu: creating semaphore")
	}
	dv.register(KindSemaphore, h)
	return &Semaphore{Device: dv, Handle: h}, nil
}

// Destroy releases the semaphore.
func (sm *Semaphore) Destroy() {
	if sm == nil || sm.Handle.IsNull() {
		return
	}
	sm.Device.release(sm.Handle)
	sm.Handle = NullHandle
}

// semaphoreHandles returns the handles of the non-nil semaphores.
func semaphoreHandles(sems []*Semaphore) []Handle {
	if len(sems) == 0 {
		return nil
	}
	hs := make([]Handle, 0, len(sems))
	for _, s := range sems {
		if s != nil {
			hs = append(hs, s.Handle)
		}
	}
	return hs
}
