// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render_test

import (
	"encoding/binary"
	"testing"

	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/gpu/gputest"
	"cogentcore.org/vframe/pools"
	"cogentcore.org/vframe/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	A, B uint32
}

func TestUniformBuffer(t *testing.T) {
	drv := gputest.NewDriver()
	dv, err := gpu.NewDevice(drv, gpu.DefaultRequirements())
	require.NoError(t, err)
	defer dv.Destroy()

	ub, err := render.NewUniformBuffer[params](dv, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, ub.Frames())
	assert.Equal(t, uint64(8), ub.Buffer.InstanceSize)
	assert.Equal(t, uint64(256), ub.Buffer.AlignmentSize)
	assert.True(t, ub.Buffer.IsMapped())

	require.NoError(t, ub.Update(1, params{A: 7, B: 9}))
	data := drv.BufferData(ub.Buffer.Buffer)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[256:]))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(data[260:]))
	// other instances are untouched
	assert.Zero(t, binary.LittleEndian.Uint32(data[0:]))
	assert.Zero(t, binary.LittleEndian.Uint32(data[512:]))

	info := ub.DescriptorInfo(2)
	assert.Equal(t, gpu.DescriptorBufferInfo{Buffer: ub.Buffer.Buffer, Offset: 512, Range: 256}, info)
	ub.Destroy()
	dv.WaitIdle()
	assert.Zero(t, drv.LiveOf("Buffer"))
}

func TestUploadMesh(t *testing.T) {
	pm := pools.NewManager()
	require.NoError(t, pm.LoadBytes([]byte("pools:\n  - name: RENDERER_VERTICES\n    size: 30\n  - name: RENDERER_INDICES\n    size: 50\n")))
	drv, _, r := newRenderer(t, render.Options{Pools: pm})
	assert.Equal(t, uint64(30), r.VertexBuffer().InstanceCount)

	objs, err := r.DefaultScene()
	require.NoError(t, err)
	assert.Equal(t, render.Mesh{FirstIndex: 36, IndexCount: 6, VertexOffset: 24}, objs[0].Mesh)
	assert.Equal(t, render.Mesh{FirstIndex: 0, IndexCount: 36, VertexOffset: 0}, objs[1].Mesh)
	assert.Equal(t, render.PlaneModel, objs[0].Model)
	vp := pm.Get("RENDERER_VERTICES")
	ip := pm.Get("RENDERER_INDICES")
	assert.Equal(t, uint64(28), vp.Used())
	assert.Equal(t, uint64(42), ip.Used())

	verts := drv.BufferData(r.VertexBuffer().Buffer)
	// the plane's first vertex z, after 24 cube vertices of 24 bytes
	assert.Equal(t, uint32(0xbf000000), binary.LittleEndian.Uint32(verts[24*24+8:]))
	idx := drv.BufferData(r.IndexBuffer().Buffer)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(idx[0:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(idx[(36+5)*4:]))

	// does not fit: nothing is reserved
	_, err = r.UploadMesh(render.PlaneVertices(), render.PlaneIndices())
	assert.Error(t, err)
	assert.Equal(t, uint64(28), vp.Used())
	assert.Equal(t, uint64(42), ip.Used())
	_, err = r.UploadMesh(nil, nil)
	assert.Error(t, err)

	// a larger pool grows the buffer, keeping its contents
	require.NoError(t, pm.LoadBytes([]byte("pools:\n  - name: RENDERER_VERTICES\n    size: 100\n")))
	m, err := r.UploadMesh(render.PlaneVertices(), render.PlaneIndices())
	require.NoError(t, err)
	assert.Equal(t, render.Mesh{FirstIndex: 42, IndexCount: 6, VertexOffset: 28}, m)
	assert.Equal(t, uint64(32), r.VertexBuffer().InstanceCount)
	verts = drv.BufferData(r.VertexBuffer().Buffer)
	assert.Equal(t, uint32(0xbf000000), binary.LittleEndian.Uint32(verts[24*24+8:]))
	assert.Equal(t, uint64(32), vp.Used())
	assert.Empty(t, drv.Violations)
}
