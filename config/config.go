// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config contains the engine configuration, read from a TOML
// file such as:
//
//	[window]
//	title = "vframe"
//	width = 1280
//	height = 720
//
//	[render]
//	vsync = true
//	frames_in_flight = 2
//
//	[pools]
//	file = "pool_sizes.yaml"
//	watch = true
//
//	[log]
//	level = "info"
//
// Settings missing from the file keep their defaults.
package config

import (
	"io/fs"
	"os"
	"path/filepath"

	"cogentcore.org/vframe/base/errors"
	"cogentcore.org/vframe/base/logx"
	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/render"
	"github.com/jinzhu/copier"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the config file read when none is given.
const DefaultFile = "vframe.toml"

// Config is the engine configuration.
type Config struct {
	Window Window `toml:"window"`
	Render Render `toml:"render"`
	Pools  Pools  `toml:"pools"`
	Log    Log    `toml:"log"`
}

type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type Render struct {
	VSync bool `toml:"vsync"`

	// FramesInFlight is the number of frame slots; 0 for one less
	// than the image count.
	FramesInFlight int `toml:"frames_in_flight"`

	// ImageCount is the requested swapchain image count; 0 for the
	// surface minimum plus one.
	ImageCount int `toml:"image_count"`

	ClearColor [4]float32 `toml:"clear_color"`

	// Validation enables the Vulkan validation layer.
	Validation bool `toml:"validation"`

	// DiscreteGPU only accepts a discrete adapter.
	DiscreteGPU bool `toml:"discrete_gpu"`
}

type Pools struct {
	// File is the YAML file of pool capacities; empty for the defaults.
	File string `toml:"file"`

	// Watch reloads File when it changes.
	Watch bool `toml:"watch"`
}

type Log struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Window: Window{Title: "vframe", Width: 1280, Height: 720},
		Render: Render{VSync: true, FramesInFlight: 2, ClearColor: render.DefaultClearColor},
		Log:    Log{Level: "info"},
	}
}

// SearchPaths returns the directories searched for [DefaultFile] when no
// file is given: the current directory, then ~/.config/vframe.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := homedir.Dir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vframe"))
	}
	return paths
}

// Find returns the first of the dirs holding the named file, joined
// with the name, or "" if none of them has it.
func Find(name string, dirs ...string) string {
	for _, d := range dirs {
		d, err := ExpandPath(d)
		if err != nil {
			continue
		}
		p := filepath.Join(d, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// ExpandPath replaces a leading ~ in the path with the home directory.
func ExpandPath(path string) (string, error) {
	p, err := homedir.Expand(path)
	return p, errors.Wrapf(err, "config: expanding %s", path)
}

// Load reads the file over the defaults. A missing file is only an
// error when mustExist is set. The path may start with ~.
func Load(path string, mustExist bool) (Config, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, errors.Wrapf(err, "config: reading %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: %s", path)
	}
	return c, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "config: decoding")
	}
	return c, c.Validate()
}

// Merge copies the non-zero settings of over into c, as used for
// command line overrides.
func (c *Config) Merge(over Config) error {
	return errors.Wrap(copier.CopyWithOption(c, &over, copier.Option{IgnoreEmpty: true, DeepCopy: true}), "config: merging")
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return errors.Newf("config: window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	case c.Render.FramesInFlight < 0:
		return errors.Newf("config: frames_in_flight %d is negative", c.Render.FramesInFlight)
	case c.Render.ImageCount < 0:
		return errors.Newf("config: image_count %d is negative", c.Render.ImageCount)
	}
	for _, v := range c.Render.ClearColor {
		if v < 0 || v > 1 {
			return errors.Newf("config: clear_color %v is outside 0..1", c.Render.ClearColor)
		}
	}
	if _, ok := logx.LevelFromString(c.Log.Level); !ok {
		return errors.Newf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}

// Marshal encodes the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	b, err := toml.Marshal(c)
	return b, errors.Wrap(err, "config: encoding")
}

// Requirements returns the adapter requirements for the settings.
func (c *Config) Requirements() gpu.Requirements {
	req := gpu.DefaultRequirements()
	req.DiscreteGPU = c.Render.DiscreteGPU
	return req
}

// RenderOptions returns the renderer options for the settings.
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		VSync:          c.Render.VSync,
		ImageCount:     c.Render.ImageCount,
		FramesInFlight: c.Render.FramesInFlight,
		ClearColor:     c.Render.ClearColor,
	}
}
