// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

package window

import (
	"testing"

	"cogentcore.org/vframe/camera"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func held(keys ...glfw.Key) func(glfw.Key) bool {
	return func(k glfw.Key) bool {
		for _, h := range keys {
			if h == k {
				return true
			}
		}
		return false
	}
}

func TestCameraInput(t *testing.T) {
	tests := []struct {
		name string
		keys []glfw.Key
		want camera.Input
	}{
		{"none", nil, camera.Input{}},
		{"forward", []glfw.Key{glfw.KeyW}, camera.Input{Move: mgl32.Vec3{0, 0, 1}}},
		{"opposite", []glfw.Key{glfw.KeyW, glfw.KeyS}, camera.Input{}},
		{"strafe up fast", []glfw.Key{glfw.KeyA, glfw.KeySpace, glfw.KeyLeftShift}, camera.Input{Move: mgl32.Vec3{-1, 1, 0}, Fast: true}},
		{"look", []glfw.Key{glfw.KeyUp, glfw.KeyRight, glfw.KeyLeftControl}, camera.Input{Look: mgl32.Vec3{1, -1, 0}, Slow: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cameraInput(held(tt.keys...)))
		})
	}
}
