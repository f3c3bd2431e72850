// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

// Package window provides a glfw window for Vulkan rendering: its
// framebuffer size, resize and close notifications, event waiting and
// surface creation.
package window

import (
	"log/slog"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/render"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Options configure a new [Window].
type Options struct {
	Title         string
	Width, Height int

	// Fixed disables resizing by the user.
	Fixed bool
}

// Window is a glfw window without a client API. glfw must have been
// initialized on the main thread, as vkdriver.Init does, and all
// methods must be called on that thread.
type Window struct {
	Glw *glfw.Window

	onResize func(width, height int)
	onClose  func()
}

var _ render.Window = (*Window)(nil)

// New creates and shows a window.
func New(opts Options) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	resizable := glfw.True
	if opts.Fixed {
		resizable = glfw.False
	}
	glfw.WindowHint(glfw.Resizable, resizable)
	glw, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "window: creating window")
	}
	w := &Window{Glw: glw}
	glw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		slog.Debug("window: resized", "width", width, "height", height)
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
	glw.SetCloseCallback(func(_ *glfw.Window) {
		if w.onClose != nil {
			w.onClose()
		}
	})
	return w, nil
}

// Size returns the framebuffer size in pixels, which is zero while
// the window is minimized.
func (w *Window) Size() (width, height int) {
	return w.Glw.GetFramebufferSize()
}

// WaitEvents blocks until an event arrives and processes it.
func (w *Window) WaitEvents() { glfw.WaitEvents() }

// PollEvents processes pending events without blocking.
func (w *Window) PollEvents() { glfw.PollEvents() }

func (w *Window) ShouldClose() bool { return w.Glw.ShouldClose() }

func (w *Window) SetShouldClose(close bool) { w.Glw.SetShouldClose(close) }

// SetResizeCallback sets the function called with the new framebuffer
// size when it changes.
func (w *Window) SetResizeCallback(fn func(width, height int)) { w.onResize = fn }

// SetCloseCallback sets the function called when the user asks to
// close the window.
func (w *Window) SetCloseCallback(fn func()) { w.onClose = fn }

func (w *Window) SetTitle(title string) { w.Glw.SetTitle(title) }

// RequiredInstanceExtensions returns the Vulkan instance extensions
// needed to present to the window.
func (w *Window) RequiredInstanceExtensions() []string {
	return w.Glw.GetRequiredInstanceExtensions()
}

// CreateSurface creates a Vulkan surface for the window on the instance,
// returning the surface handle.
func (w *Window) CreateSurface(instance any) (uintptr, error) {
	s, err := w.Glw.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "window: creating surface")
	}
	return s, nil
}

// KeyPressed returns whether the key is held down.
func (w *Window) KeyPressed(key glfw.Key) bool {
	return w.Glw.GetKey(key) == glfw.Press
}

func (w *Window) Destroy() {
	if w.Glw == nil {
		return
	}
	w.Glw.Destroy()
	w.Glw = nil
}
