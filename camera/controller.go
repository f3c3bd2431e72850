// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Input is the movement requested for one update, each component
// in -1..1.
type Input struct {

	// Look is the rotation: X pitches up, Y yaws left.
	Look mgl32.Vec3

	// Move is the translation: X right, Y up, Z forward.
	Move mgl32.Vec3

	// Fast doubles the move speed; Slow halves it.
	Fast, Slow bool
}

// Controller moves a camera as a free flying viewer.
type Controller struct {
	Position mgl32.Vec3

	// Rotation is pitch, yaw and roll in radians.
	Rotation mgl32.Vec3

	// MoveSpeed is in units per second.
	MoveSpeed float32

	// LookSpeed is in radians per second.
	LookSpeed float32
}

// NewController returns a controller 5 units behind the origin.
func NewController() *Controller {
	return &Controller{Position: mgl32.Vec3{0, 0, 5}, MoveSpeed: 3, LookSpeed: 1.5}
}

// Update applies the input over dt seconds and sets the camera view.
// Pitch is limited to a quarter turn either way.
func (ct *Controller) Update(c *Camera, dt float32, in Input) {
	if in.Look.Dot(in.Look) > mgl32.Epsilon {
		ct.Rotation = ct.Rotation.Add(in.Look.Normalize().Mul(ct.LookSpeed * dt))
		ct.Rotation[0] = mgl32.Clamp(ct.Rotation[0], -math32.Pi/4, math32.Pi/4)
		ct.Rotation[1] = math32.Mod(ct.Rotation[1], 2*math32.Pi)
	}
	inv := c.inverse
	forward := inv.Col(2).Vec3().Normalize().Mul(-1)
	right := inv.Col(0).Vec3().Normalize()
	up := mgl32.Vec3{0, 1, 0}
	move := right.Mul(in.Move.X()).Add(up.Mul(in.Move.Y())).Add(forward.Mul(in.Move.Z()))
	if move.Dot(move) > mgl32.Epsilon {
		speed := ct.MoveSpeed
		switch {
		case in.Fast:
			speed *= 2
		case in.Slow:
			speed *= 0.5
		}
		ct.Position = ct.Position.Add(move.Normalize().Mul(speed * dt))
	}
	c.SetViewYXZ(ct.Position, ct.Rotation)
}
