// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package camera provides a perspective or orthographic camera that
// produces the per-frame view and projection matrices.
package camera

import (
	"fmt"

	"cogentcore.org/vframe/render"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Projection is the projection type of a [Camera].
type Projection int32

const (
	Perspective Projection = iota
	Orthographic
)

func (p Projection) String() string {
	switch p {
	case Perspective:
		return "Perspective"
	case Orthographic:
		return "Orthographic"
	}
	return fmt.Sprintf("Projection(%d)", int32(p))
}

// Defaults for a new [Camera].
const (
	DefaultFov       = 45 // degrees
	DefaultNear      = 0.01
	DefaultFar       = 1000
	DefaultOrthoSize = 10
	DefaultOrthoNear = -1
	DefaultOrthoFar  = 1
)

// Camera holds a projection and a view. The projection is recomputed
// whenever one of its parameters or the viewport aspect ratio changes.
type Camera struct {
	projectionType Projection

	// fov is the vertical field of view, in radians
	fov, near, far float32

	orthoSize, orthoNear, orthoFar float32

	width, height int
	aspect        float32

	projection mgl32.Mat4
	view       mgl32.Mat4
	inverse    mgl32.Mat4
}

var _ render.Camera = (*Camera)(nil)

// New returns a perspective camera with the default parameters, an
// aspect ratio of 1 until the viewport size is set, and an identity view.
func New() *Camera {
	c := &Camera{
		projectionType: Perspective,
		fov:            mgl32.DegToRad(DefaultFov),
		near:           DefaultNear,
		far:            DefaultFar,
		orthoSize:      DefaultOrthoSize,
		orthoNear:      DefaultOrthoNear,
		orthoFar:       DefaultOrthoFar,
		aspect:         1,
		view:           mgl32.Ident4(),
		inverse:        mgl32.Ident4(),
	}
	c.computeProjection()
	return c
}

// SetPerspective switches to a perspective projection with the
// vertical field of view fov, in radians.
func (c *Camera) SetPerspective(fov, near, far float32) {
	c.projectionType = Perspective
	c.fov, c.near, c.far = fov, near, far
	c.computeProjection()
}

// SetOrthographic switches to an orthographic projection size units high.
func (c *Camera) SetOrthographic(size, near, far float32) {
	c.projectionType = Orthographic
	c.orthoSize, c.orthoNear, c.orthoFar = size, near, far
	c.computeProjection()
}

// SetProjectionType switches the projection, keeping the parameters
// of each type.
func (c *Camera) SetProjectionType(p Projection) {
	c.projectionType = p
	c.computeProjection()
}

func (c *Camera) ProjectionType() Projection { return c.projectionType }

// SetViewportSize sets the aspect ratio from the viewport size.
// Unchanged and zero-height sizes are ignored.
func (c *Camera) SetViewportSize(width, height int) {
	if (width == c.width && height == c.height) || height <= 0 {
		return
	}
	c.width, c.height = width, height
	c.aspect = float32(width) / float32(height)
	c.computeProjection()
}

// ViewportSize returns the last viewport size set.
func (c *Camera) ViewportSize() (width, height int) { return c.width, c.height }

func (c *Camera) AspectRatio() float32 { return c.aspect }

// SetAspectRatio sets the aspect ratio directly.
func (c *Camera) SetAspectRatio(aspect float32) {
	if aspect == c.aspect {
		return
	}
	c.aspect = aspect
	c.computeProjection()
}

func (c *Camera) computeProjection() {
	switch c.projectionType {
	case Perspective:
		c.projection = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	case Orthographic:
		w := c.orthoSize * c.aspect * 0.5
		h := c.orthoSize * 0.5
		c.projection = mgl32.Ortho(-w, w, -h, h, c.orthoNear, c.orthoFar)
	}
}

// Projection returns the projection matrix.
func (c *Camera) Projection() mgl32.Mat4 { return c.projection }

// View returns the view matrix.
func (c *Camera) View() mgl32.Mat4 { return c.view }

// SetView sets the view matrix.
func (c *Camera) SetView(view mgl32.Mat4) {
	c.view = view
	c.inverse = view.Inv()
}

// LookAt points the camera from eye at target.
func (c *Camera) LookAt(eye, target, up mgl32.Vec3) {
	c.SetView(mgl32.LookAtV(eye, target, up))
}

// SetViewYXZ sets the view from a position and a rotation in radians,
// applied in Y (yaw), X (pitch), Z (roll) order.
func (c *Camera) SetViewYXZ(position, rotation mgl32.Vec3) {
	c3, s3 := math32.Cos(rotation.Z()), math32.Sin(rotation.Z())
	c2, s2 := math32.Cos(rotation.X()), math32.Sin(rotation.X())
	c1, s1 := math32.Cos(rotation.Y()), math32.Sin(rotation.Y())
	u := mgl32.Vec3{c1*c3 + s1*s2*s3, c2 * s3, c1*s2*s3 - c3*s1}
	v := mgl32.Vec3{c3*s1*s2 - c1*s3, c2 * c3, c1*c3*s2 + s1*s3}
	w := mgl32.Vec3{c2 * s1, -s2, c1 * c2}
	view := mgl32.Ident4()
	view.SetRow(0, u.Vec4(-u.Dot(position)))
	view.SetRow(1, v.Vec4(-v.Dot(position)))
	view.SetRow(2, w.Vec4(-w.Dot(position)))
	c.SetView(view)
}

// GlobalUbo returns the matrices of the current frame.
func (c *Camera) GlobalUbo() render.GlobalUbo {
	return render.GlobalUbo{
		View:           c.view,
		Projection:     c.projection,
		ProjectionView: c.projection.Mul4(c.view),
		InverseView:    c.inverse,
	}
}
