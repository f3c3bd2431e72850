// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"cogentcore.org/vframe/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// GlobalUbo is the per-frame uniform block shared by all draws.
// Its layout matches std140 for four mat4 members.
type GlobalUbo struct {
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	ProjectionView mgl32.Mat4
	InverseView    mgl32.Mat4
}

// IdentityUbo returns a GlobalUbo with every matrix the identity.
func IdentityUbo() GlobalUbo {
	id := mgl32.Ident4()
	return GlobalUbo{View: id, Projection: id, ProjectionView: id, InverseView: id}
}

// FrameInfo is the per-frame input from the application.
type FrameInfo struct {

	// DeltaTime is the time since the last frame, in seconds.
	DeltaTime float32

	Global GlobalUbo
}

// Vertex is the vertex layout of the shared vertex buffer.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

// Mesh is a range of the shared vertex and index buffers.
type Mesh struct {
	FirstIndex uint32
	IndexCount uint32

	// VertexOffset is added to each index.
	VertexOffset int32
}

// DrawObject is a mesh drawn with a model matrix, passed as a push
// constant at offset 0.
type DrawObject struct {
	Mesh  Mesh
	Model mgl32.Mat4
}

// Pipeline holds the handles of a graphics pipeline made by the
// pipeline layer for the main render pass. The descriptor set layout
// has the [GlobalUbo] uniform buffer at binding 0.
type Pipeline struct {
	Pipeline            gpu.Handle
	Layout              gpu.Handle
	DescriptorSetLayout gpu.Handle

	// PushConstantStages are the stages of the model matrix push
	// constant; 0 means the vertex stage.
	PushConstantStages gpu.ShaderStage
}

func (pl *Pipeline) pushStages() gpu.ShaderStage {
	if pl.PushConstantStages == 0 {
		return gpu.ShaderStageVertex
	}
	return pl.PushConstantStages
}
