// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

// Command vframe opens a window and renders the default scene with the
// Vulkan frame renderer. It can also list the GPUs and print the
// configuration in effect.
package main

import (
	"log/slog"
	"os"
	"runtime"

	"cogentcore.org/vframe/base/logx"
	"cogentcore.org/vframe/config"
	"github.com/spf13/cobra"
)

func init() {
	// glfw and the Vulkan surface calls must stay on the main thread
	runtime.LockOSThread()
}

// flags holds the command line settings shared by all commands.
type flags struct {
	file                        string
	veryVerbose, verbose, quiet bool
	noVSync                     bool

	// over holds the settings given on the command line.
	over config.Config

	// cfg is the configuration in effect, set before any command runs.
	cfg config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("vframe", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "vframe",
		Short:         "Vulkan frame renderer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return f.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&f.file, "config", "c", config.DefaultFile, "config file")
	pf.BoolVar(&f.veryVerbose, "vv", false, "debug output")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&f.quiet, "quiet", "q", false, "only print errors")
	pf.IntVar(&f.over.Window.Width, "width", 0, "window width")
	pf.IntVar(&f.over.Window.Height, "height", 0, "window height")
	pf.IntVar(&f.over.Render.FramesInFlight, "frames", 0, "frames in flight")
	pf.IntVar(&f.over.Render.ImageCount, "images", 0, "swapchain image count")
	pf.BoolVar(&f.noVSync, "no-vsync", false, "present without waiting for vertical blank")
	pf.BoolVar(&f.over.Render.Validation, "validation", false, "enable the Vulkan validation layer")
	pf.BoolVar(&f.over.Render.DiscreteGPU, "discrete", false, "require a discrete GPU")
	pf.StringVar(&f.over.Pools.File, "pools", "", "pool sizes file")

	root.AddCommand(newRunCmd(f), newDevicesCmd(f), newConfigCmd(f))
	root.RunE = newRunCmd(f).RunE
	return root
}

// load reads the config file, applies the command line overrides and
// sets up logging.
func (f *flags) load(cmd *cobra.Command) error {
	explicit := cmd.Flags().Changed("config")
	if !explicit {
		if p := config.Find(config.DefaultFile, config.SearchPaths()...); p != "" {
			f.file = p
		}
	}
	cfg, err := config.Load(f.file, explicit)
	if err != nil {
		return err
	}
	if err := cfg.Merge(f.over); err != nil {
		return err
	}
	if f.noVSync {
		cfg.Render.VSync = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.cfg = cfg

	logx.UserLevel, _ = logx.LevelFromString(cfg.Log.Level)
	if f.veryVerbose || f.verbose || f.quiet {
		logx.UserLevel = logx.LevelFromFlags(f.veryVerbose, f.verbose, f.quiet)
	}
	logx.SetDefaultLogger()
	slog.Debug("vframe: config loaded", "file", f.file, "build", logx.BuildMode)
	return nil
}

func newConfigCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the configuration in effect as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := f.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
