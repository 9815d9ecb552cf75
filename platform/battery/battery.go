/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package battery implements mesh.BatteryReader by reading the Linux sysfs
// power-supply tree. gopsutil (already part of the ambient stack, see
// meshstats.HostUptimeSeconds) has no battery sensor API, so this one
// concern falls back to direct sysfs access; see DESIGN.md.
package battery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsRoot is the power-supply tree root, overridable in tests.
var SysfsRoot = "/sys/class/power_supply"

// Reader implements mesh.BatteryReader over sysfs.
type Reader struct {
	root string
}

// NewReader builds a Reader rooted at SysfsRoot.
func NewReader() *Reader {
	return &Reader{root: SysfsRoot}
}

// Level reads the first battery power supply's capacity, 0..100. On
// desktops/servers with no battery, it returns 100 so relay scoring treats
// the node as always-available rather than disqualifying it.
func (r *Reader) Level(_ context.Context) (int, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 100, nil
		}
		return 0, fmt.Errorf("battery: read %s: %w", r.root, err)
	}

	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "BAT") {
			continue
		}
		capPath := filepath.Join(r.root, e.Name(), "capacity")
		raw, err := os.ReadFile(capPath)
		if err != nil {
			continue
		}
		level, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		if level < 0 {
			level = 0
		}
		if level > 100 {
			level = 100
		}
		return level, nil
	}
	return 100, nil
}
