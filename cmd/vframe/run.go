// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

package main

import (
	"log/slog"
	"time"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/camera"
	"cogentcore.org/vframe/config"
	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/gpu/vkdriver"
	"cogentcore.org/vframe/pools"
	"cogentcore.org/vframe/render"
	"cogentcore.org/vframe/window"
	"github.com/spf13/cobra"
)

func newRunCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open a window and render the default scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f.cfg)
		},
	}
}

func loadPools(cfg config.Pools) (*pools.Manager, error) {
	if cfg.File == "" {
		return pools.NewManager(), nil
	}
	file, err := config.ExpandPath(cfg.File)
	if err != nil {
		return nil, err
	}
	pm, err := pools.Load(file)
	if err != nil {
		return nil, err
	}
	if cfg.Watch {
		err := pm.Watch(func(err error) {
			if err != nil {
				slog.Error("vframe: reloading pool sizes", "err", err)
			}
		})
		errors.Log(err)
	}
	return pm, nil
}

func run(cfg config.Config) error {
	if err := vkdriver.Init(); err != nil {
		return err
	}
	defer vkdriver.Terminate()

	win, err := window.New(window.Options{Title: cfg.Window.Title, Width: cfg.Window.Width, Height: cfg.Window.Height})
	if err != nil {
		return err
	}
	defer win.Destroy()

	drv, err := vkdriver.New(vkdriver.Options{
		AppName:            cfg.Window.Title,
		Validation:         cfg.Render.Validation,
		InstanceExtensions: win.RequiredInstanceExtensions(),
		Surface:            win.CreateSurface,
	})
	if err != nil {
		return err
	}
	defer drv.Destroy()

	dv, err := gpu.NewDevice(drv, cfg.Requirements())
	if err != nil {
		return err
	}
	defer dv.Destroy()

	pm, err := loadPools(cfg.Pools)
	if err != nil {
		return err
	}
	defer pm.Close()

	opts := cfg.RenderOptions()
	opts.Window = win
	opts.Pools = pm
	r, err := render.NewVulkanRenderer(dv, opts)
	if err != nil {
		return err
	}
	defer r.Destroy()
	win.SetResizeCallback(r.OnResize)

	if _, err := r.DefaultScene(); err != nil {
		return err
	}
	cam := camera.New()
	r.SetCamera(cam)
	ctl := camera.NewController()

	slog.Info("vframe: rendering", "frames-in-flight", r.FramesInFlight(), "images", r.Swapchain.ImageCount())
	frames := 0
	start := time.Now()
	last := start
	for !win.ShouldClose() {
		win.PollEvents()
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		ctl.Update(cam, dt, win.CameraInput())
		r.SetFrameInfo(render.FrameInfo{DeltaTime: dt})
		if !r.BeginFrame() {
			continue
		}
		if r.EndFrame() {
			frames++
		}
	}
	r.WaitIdle()
	if secs := time.Since(start).Seconds(); secs > 0 {
		slog.Info("vframe: done", "frames", frames, "fps", float64(frames)/secs)
	}
	return nil
}
