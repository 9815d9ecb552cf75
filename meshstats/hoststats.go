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

package meshstats

import (
	"github.com/shirou/gopsutil/host"
	log "github.com/sirupsen/logrus"
)

// HostUptimeSeconds reports how long the underlying OS has been running,
// the same system-health signal the teacher's sysstats.go collects via
// gopsutil. 0 is returned (and logged) if gopsutil cannot read it, e.g.
// inside a restricted container.
func HostUptimeSeconds() uint64 {
	uptime, err := host.Uptime()
	if err != nil {
		log.Debugf("meshstats: host uptime unavailable: %v", err)
		return 0
	}
	return uptime
}
