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

package mesh

import "context"

// Transport is the platform-native link layer (Wi-Fi Direct group
// negotiation, DNS-SD discovery, socket server). It lives outside the core
// and is reached only through this interface; see platform/devtransport for
// a loopback-TCP stand-in used by tests and the CLI demo.
type Transport interface {
	// StartMeshNode brings up the native transport and begins advertising
	// the given metadata under nodeID.
	StartMeshNode(ctx context.Context, nodeID string, metadata map[string]string) error
	// UpdateMetadata re-broadcasts the node's advertised metadata.
	UpdateMetadata(ctx context.Context, metadata map[string]string) error
	// ConnectAndSend performs one connect+send round trip to deviceAddress.
	// May block up to the caller's deadline.
	ConnectAndSend(ctx context.Context, deviceAddress string, payload []byte) (*TransmissionResult, error)
	// Neighbors delivers neighbor-table snapshots as they change.
	Neighbors() <-chan []NodeInfo
	// PacketsReceived delivers raw inbound packet bytes.
	PacketsReceived() <-chan []byte
	// Stop tears the transport down.
	Stop(ctx context.Context) error
}

// ConnectivityProbe reports whether this node currently has Internet access.
type ConnectivityProbe interface {
	HasInternet(ctx context.Context) bool
	Subscribe() <-chan bool
}

// CloudUploader delivers a packet to the cloud endpoint once this node has
// Internet access. Callers MUST re-verify connectivity immediately before
// calling Upload; a stale HasInternet()==true must not cause silent loss.
type CloudUploader interface {
	Upload(ctx context.Context, packet Packet) error
}

// BatteryReader reports the local device's battery level, 0..100.
type BatteryReader interface {
	Level(ctx context.Context) (int, error)
}

// LocationProvider reports the local device's last known position.
type LocationProvider interface {
	Current(ctx context.Context) (lat, lon, accuracy float64, ok bool, err error)
}

// Clock abstracts wall-clock time so tests can control it.
type Clock interface {
	Now() int64 // epoch milliseconds
}

// SystemClock is the real Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() int64 { return systemNowMillis() }
