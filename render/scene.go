// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"log/slog"
	"unsafe"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/pools"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	vertexSize = uint64(unsafe.Sizeof(Vertex{}))
	indexSize  = uint64(unsafe.Sizeof(uint32(0)))
)

// createObjectBuffers creates the shared vertex and index buffers,
// sized to the capacity of their pools.
func (r *VulkanRenderer) createObjectBuffers() error {
	vp, ip, err := r.objectPools()
	if err != nil {
		return err
	}
	usage := gpu.BufferUsageTransferSrc | gpu.BufferUsageTransferDst
	r.vertices, err = gpu.NewMemBuffer(r.Device, vertexSize, max(vp.Size(), 1), gpu.BufferUsageVertex|usage, gpu.MemoryPropertyDeviceLocal, 0)
	if err != nil {
		return errors.Wrap(err, "render: creating vertex buffer")
	}
	r.indices, err = gpu.NewMemBuffer(r.Device, indexSize, max(ip.Size(), 1), gpu.BufferUsageIndex|usage, gpu.MemoryPropertyDeviceLocal, 0)
	if err != nil {
		return errors.Wrap(err, "render: creating index buffer")
	}
	return nil
}

func (r *VulkanRenderer) objectPools() (vertices, indices *pools.Pool, err error) {
	vertices = r.Options.Pools.Get(pools.RendererVertices)
	indices = r.Options.Pools.Get(pools.RendererIndices)
	if vertices == nil || indices == nil {
		return nil, nil, errors.Newf("render: pools %s and %s are required", pools.RendererVertices, pools.RendererIndices)
	}
	return vertices, indices, nil
}

// VertexBuffer returns the shared vertex buffer.
func (r *VulkanRenderer) VertexBuffer() *gpu.MemBuffer { return r.vertices }

// IndexBuffer returns the shared index buffer.
func (r *VulkanRenderer) IndexBuffer() *gpu.MemBuffer { return r.indices }

// UploadMesh appends the vertices and indices to the shared object
// buffers through a staging buffer, reserving them from the
// RENDERER_VERTICES and RENDERER_INDICES pools. Indices are relative
// to the mesh's first vertex. It blocks until the copy is done, and
// must be called between frames.
func (r *VulkanRenderer) UploadMesh(vertices []Vertex, indices []uint32) (Mesh, error) {
	errors.Assert(r.state == Idle, "render.VulkanRenderer.UploadMesh: frame in progress")
	if len(vertices) == 0 || len(indices) == 0 {
		return Mesh{}, errors.New("render: mesh has no vertices or no indices")
	}
	vp, ip, err := r.objectPools()
	if err != nil {
		return Mesh{}, err
	}
	nv, ni := uint64(len(vertices)), uint64(len(indices))
	if vp.Used()+nv > vp.Size() {
		return Mesh{}, errors.Newf("render: %d vertices do not fit in pool %s (%d of %d used)", nv, vp.Name, vp.Used(), vp.Size())
	}
	if ip.Used()+ni > ip.Size() {
		return Mesh{}, errors.Newf("render: %d indices do not fit in pool %s (%d of %d used)", ni, ip.Name, ip.Used(), ip.Size())
	}
	if err := growBuffer(r.vertices, r.vertexCount+nv); err != nil {
		return Mesh{}, err
	}
	if err := growBuffer(r.indices, r.indexCount+ni); err != nil {
		return Mesh{}, err
	}
	if err := r.upload(r.vertices, sliceBytes(vertices), r.vertexCount*vertexSize); err != nil {
		return Mesh{}, err
	}
	if err := r.upload(r.indices, sliceBytes(indices), r.indexCount*indexSize); err != nil {
		return Mesh{}, err
	}
	vp.Fill(nv)
	ip.Fill(ni)
	m := Mesh{FirstIndex: uint32(r.indexCount), IndexCount: uint32(ni), VertexOffset: int32(r.vertexCount)}
	r.vertexCount += nv
	r.indexCount += ni
	slog.Debug("render: uploaded mesh", "vertices", nv, "indices", ni, "firstIndex", m.FirstIndex, "vertexOffset", m.VertexOffset)
	return m, nil
}

// growBuffer resizes an object buffer to hold n instances, after its
// pool was enlarged by a reload.
func growBuffer(mb *gpu.MemBuffer, n uint64) error {
	if n <= mb.InstanceCount {
		return nil
	}
	_, err := mb.Resize(n * mb.AlignmentSize)
	return errors.Wrap(err, "render: growing object buffer")
}

// upload copies data into dst at offset through a host visible
// staging buffer, blocking until the copy is done.
func (r *VulkanRenderer) upload(dst *gpu.MemBuffer, data []byte, offset uint64) error {
	staging, err := gpu.NewMemBuffer(r.Device, uint64(len(data)), 1, gpu.BufferUsageTransferSrc,
		gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent, 0)
	if err != nil {
		return errors.Wrap(err, "render: creating staging buffer")
	}
	defer staging.Destroy()
	if err := staging.Map(gpu.WholeSize, 0); err != nil {
		return err
	}
	staging.WriteTo(data, 0)
	staging.Unmap()
	err = r.Device.CopyBuffer(staging.Buffer, dst.Buffer, gpu.BufferCopy{DstOffset: offset, Size: uint64(len(data))}, nil)
	return errors.Wrap(err, "render: copying to object buffer")
}

// PlaneModel is the model matrix of the plane of [VulkanRenderer.DefaultScene].
var PlaneModel = mgl32.Translate3D(0, -5, 0).Mul4(mgl32.Scale3D(20, 1, 20))

// DefaultScene uploads a unit cube and a unit plane, and sets the
// objects to the plane, scaled into a floor below the origin, and the
// cube at the origin.
func (r *VulkanRenderer) DefaultScene() ([]DrawObject, error) {
	cube, err := r.UploadMesh(CubeVertices(), CubeIndices())
	if err != nil {
		return nil, err
	}
	plane, err := r.UploadMesh(PlaneVertices(), PlaneIndices())
	if err != nil {
		return nil, err
	}
	objs := []DrawObject{
		{Mesh: plane, Model: PlaneModel},
		{Mesh: cube, Model: mgl32.Ident4()},
	}
	r.SetObjects(objs)
	return objs, nil
}

// CubeVertices returns the 24 vertices of a unit cube centered on the
// origin, four per face, each face a solid color.
func CubeVertices() []Vertex {
	white := mgl32.Vec3{.9, .9, .9}
	yellow := mgl32.Vec3{.8, .8, .1}
	orange := mgl32.Vec3{.9, .6, .1}
	red := mgl32.Vec3{.8, .1, .1}
	blue := mgl32.Vec3{.1, .1, .8}
	green := mgl32.Vec3{.1, .8, .1}
	return []Vertex{
		// -x
		{mgl32.Vec3{-.5, -.5, -.5}, white},
		{mgl32.Vec3{-.5, .5, .5}, white},
		{mgl32.Vec3{-.5, -.5, .5}, white},
		{mgl32.Vec3{-.5, .5, -.5}, white},

		// +x
		{mgl32.Vec3{.5, -.5, -.5}, yellow},
		{mgl32.Vec3{.5, .5, .5}, yellow},
		{mgl32.Vec3{.5, -.5, .5}, yellow},
		{mgl32.Vec3{.5, .5, -.5}, yellow},

		// -y
		{mgl32.Vec3{-.5, -.5, -.5}, orange},
		{mgl32.Vec3{.5, -.5, .5}, orange},
		{mgl32.Vec3{-.5, -.5, .5}, orange},
		{mgl32.Vec3{.5, -.5, -.5}, orange},

		// +y
		{mgl32.Vec3{-.5, .5, -.5}, red},
		{mgl32.Vec3{.5, .5, .5}, red},
		{mgl32.Vec3{-.5, .5, .5}, red},
		{mgl32.Vec3{.5, .5, -.5}, red},

		// +z
		{mgl32.Vec3{-.5, -.5, .5}, blue},
		{mgl32.Vec3{.5, .5, .5}, blue},
		{mgl32.Vec3{-.5, .5, .5}, blue},
		{mgl32.Vec3{.5, -.5, .5}, blue},

		// -z
		{mgl32.Vec3{-.5, -.5, -.5}, green},
		{mgl32.Vec3{.5, .5, -.5}, green},
		{mgl32.Vec3{-.5, .5, -.5}, green},
		{mgl32.Vec3{.5, -.5, -.5}, green},
	}
}

// CubeIndices returns the 36 indices of the two triangles per face of
// [CubeVertices].
func CubeIndices() []uint32 {
	return []uint32{
		2, 1, 0, 1, 3, 0,
		4, 5, 6, 4, 7, 5,
		8, 9, 10, 8, 11, 9,
		14, 13, 12, 13, 15, 12,
		16, 17, 18, 16, 19, 17,
		22, 21, 20, 21, 23, 20,
	}
}

// PlaneVertices returns a unit square in the xz plane.
func PlaneVertices() []Vertex {
	white := mgl32.Vec3{.9, .9, .9}
	return []Vertex{
		{mgl32.Vec3{-.5, 0, -.5}, white},
		{mgl32.Vec3{-.5, 0, .5}, white},
		{mgl32.Vec3{.5, 0, -.5}, white},
		{mgl32.Vec3{.5, 0, .5}, white},
	}
}

func PlaneIndices() []uint32 { return []uint32{0, 1, 2, 2, 1, 3} }
