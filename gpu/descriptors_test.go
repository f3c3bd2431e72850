// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"cogentcore.org/vframe/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorPool(t *testing.T) {
	drv, dv := newDevice(t)
	defer dv.Destroy()
	ub, err := gpu.NewMemBuffer(dv, 64, 2, gpu.BufferUsageUniform, hostProps, 0)
	require.NoError(t, err)
	defer ub.Destroy()

	dp, err := gpu.NewDescriptorPool(dv, 2)
	require.NoError(t, err)
	const layout = gpu.Handle(9000)
	for i := range 2 {
		set, err := dp.Allocate(layout)
		require.NoError(t, err)
		dp.WriteUniform(set, 0, ub.DescriptorInfoForIndex(i))
	}
	_, err = dp.Allocate(layout)
	assert.Error(t, err)
	assert.Len(t, dp.Sets, 2)

	require.Len(t, drv.DescriptorWrites, 2)
	assert.Equal(t, uint64(256), drv.DescriptorWrites[1].Info.Offset)
	assert.Equal(t, dp.Sets[1], drv.DescriptorWrites[1].Set)

	dp.Destroy()
	dp.Destroy()
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("DescriptorPool"))
	assert.Empty(t, drv.Violations)
}
