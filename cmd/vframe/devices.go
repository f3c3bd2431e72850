// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

package main

import (
	"fmt"
	"io"

	"cogentcore.org/vframe/gpu"
	"cogentcore.org/vframe/gpu/vkdriver"
	"github.com/spf13/cobra"
)

func newDevicesCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the GPUs and whether each meets the requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := vkdriver.Init(); err != nil {
				return err
			}
			defer vkdriver.Terminate()
			drv, err := vkdriver.New(vkdriver.Options{AppName: f.cfg.Window.Title, Validation: f.cfg.Render.Validation})
			if err != nil {
				return err
			}
			defer drv.Destroy()
			adapters, err := drv.Adapters()
			if err != nil {
				return err
			}
			req := f.cfg.Requirements()
			// no surface, so presentation is not checked
			req.Present = false
			printAdapters(cmd.OutOrStdout(), drv, adapters, req)
			return nil
		},
	}
}

func printAdapters(w io.Writer, drv gpu.Driver, adapters []gpu.AdapterInfo, req gpu.Requirements) {
	for i := range adapters {
		info := &adapters[i]
		qi := gpu.FindQueueFamilies(drv, i, info.QueueFamilies)
		ok, reason := req.Suitable(drv, i, info, &qi)
		status := "suitable"
		if !ok {
			status = "unsuitable: " + reason
		}
		fmt.Fprintf(w, "%d: %s (%v) api %s driver %s, %s\n", i, info.Name, info.Type,
			gpu.VersionString(info.APIVersion), gpu.VersionString(info.DriverVersion), status)
	}
}
