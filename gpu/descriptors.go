// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"cogentcore.org/vframe/base/errors"
)

// DescriptorPool allocates uniform buffer descriptor sets.
// Sets are freed when the pool is destroyed.
type DescriptorPool struct {
	Device *Device
	Handle Handle

	// MaxSets is the number of sets that can be allocated.
	MaxSets uint32

	// Sets are the allocated sets.
	Sets []Handle
}

// NewDescriptorPool creates a pool for maxSets sets of one uniform
// buffer descriptor each.
func NewDescriptorPool(dv *Device, maxSets uint32) (*DescriptorPool, error) {
	h, r := dv.Driver.CreateDescriptorPool(maxSets, maxSets)
	if r != Success {
		return nil, errors.Wrap(r.Err(), "gpu: creating descriptor pool")
	}
	dv.register(KindDescriptorPool, h)
	return &DescriptorPool{Device: dv, Handle: h, MaxSets: maxSets}, nil
}

// Allocate allocates a set with the given layout.
func (dp *DescriptorPool) Allocate(layout Handle) (Handle, error) {
	errors.Assert(!dp.Handle.IsNull(), "gpu.DescriptorPool.Allocate: pool is destroyed")
	set, r := dp.Device.Driver.AllocateDescriptorSet(dp.Handle, layout)
	if r != Success {
		return NullHandle, errors.Wrapf(r.Err(), "gpu: allocating descriptor set %d of %d", len(dp.Sets)+1, dp.MaxSets)
	}
	dp.Sets = append(dp.Sets, set)
	return set, nil
}

// WriteUniform points the binding of the set at the buffer range.
func (dp *DescriptorPool) WriteUniform(set Handle, binding uint32, info DescriptorBufferInfo) {
	dp.Device.Driver.UpdateUniformDescriptor(set, binding, info)
}

func (dp *DescriptorPool) Destroy() {
	if dp == nil || dp.Handle.IsNull() {
		return
	}
	dp.Device.release(dp.Handle)
	dp.Handle = NullHandle
	dp.Sets = nil
}
