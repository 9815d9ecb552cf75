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

package coordinator

import (
	"strconv"

	"github.com/fieldrelay/mesh"
)

// DefaultSignalDBm is the fallback signal strength advertised when a
// neighbor's TXT record omits the "sig" key.
const DefaultSignalDBm = -70

// ToTXTRecord packs a NodeInfo into the compact-key metadata map broadcast
// over DNS-SD, per spec.md §6.
func ToTXTRecord(info mesh.NodeInfo) map[string]string {
	m := map[string]string{
		"id":  info.ID,
		"bat": strconv.Itoa(info.BatteryLevel),
		"net": boolFlag(info.HasInternet),
		"lat": strconv.FormatFloat(info.Latitude, 'f', -1, 64),
		"lng": strconv.FormatFloat(info.Longitude, 'f', -1, 64),
		"sig": strconv.Itoa(info.SignalStrength),
		"tri": triageCode(info.TriageLevel),
		"rol": roleCode(info.Role),
		"rel": boolFlag(info.AvailableForRelay),
	}
	return m
}

// FromTXTRecord unpacks a DNS-SD TXT record into a NodeInfo. Missing keys
// fall back to their documented defaults.
func FromTXTRecord(m map[string]string) mesh.NodeInfo {
	info := mesh.NodeInfo{
		ID:             m["id"],
		HasInternet:    m["net"] == "1",
		SignalStrength: DefaultSignalDBm,
	}
	if v, err := strconv.Atoi(m["bat"]); err == nil {
		info.BatteryLevel = v
	}
	if v, err := strconv.ParseFloat(m["lat"], 64); err == nil {
		info.Latitude = v
	}
	if v, err := strconv.ParseFloat(m["lng"], 64); err == nil {
		info.Longitude = v
	}
	if v, err := strconv.Atoi(m["sig"]); err == nil {
		info.SignalStrength = v
	}
	info.TriageLevel = triageFromCode(m["tri"])
	info.Role = roleFromCode(m["rol"])
	info.AvailableForRelay = m["rel"] == "1"
	return info
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func triageCode(t mesh.TriageLevel) string {
	switch t {
	case mesh.TriageGreen:
		return "g"
	case mesh.TriageYellow:
		return "y"
	case mesh.TriageRed:
		return "r"
	default:
		return "n"
	}
}

func triageFromCode(code string) mesh.TriageLevel {
	switch code {
	case "g":
		return mesh.TriageGreen
	case "y":
		return mesh.TriageYellow
	case "r":
		return mesh.TriageRed
	default:
		return mesh.TriageNone
	}
}

func roleCode(r mesh.NodeRole) string {
	switch r {
	case mesh.RoleSender:
		return "s"
	case mesh.RoleRelay:
		return "r"
	case mesh.RoleGoal:
		return "g"
	default:
		return "i"
	}
}

func roleFromCode(code string) mesh.NodeRole {
	switch code {
	case "s":
		return mesh.RoleSender
	case "r":
		return mesh.RoleRelay
	case "g":
		return mesh.RoleGoal
	default:
		return mesh.RoleIdle
	}
}
