// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

package window

import (
	"cogentcore.org/vframe/camera"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// CameraInput returns the camera movement for the keys held down:
// arrows look, WASD moves, Q/Space rise, E falls, Shift is fast and
// Control is slow.
func (w *Window) CameraInput() camera.Input {
	return cameraInput(w.KeyPressed)
}

func cameraInput(pressed func(glfw.Key) bool) camera.Input {
	var in camera.Input
	axis := func(pos, neg glfw.Key) float32 {
		var v float32
		if pressed(pos) {
			v++
		}
		if pressed(neg) {
			v--
		}
		return v
	}
	in.Look[0] = axis(glfw.KeyUp, glfw.KeyDown)
	in.Look[1] = axis(glfw.KeyLeft, glfw.KeyRight)
	in.Move[0] = axis(glfw.KeyD, glfw.KeyA)
	in.Move[1] = axis(glfw.KeyQ, glfw.KeyE)
	if pressed(glfw.KeySpace) {
		in.Move[1]++
	}
	in.Move[2] = axis(glfw.KeyW, glfw.KeyS)
	in.Fast = pressed(glfw.KeyLeftShift)
	in.Slow = !in.Fast && pressed(glfw.KeyLeftControl)
	return in
}
