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

// Package connectivity implements mesh.ConnectivityProbe by periodically
// dialing a well-known reachability target.
package connectivity

import (
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// ProbeInterval is how often connectivity is re-checked.
const ProbeInterval = 15 * time.Second

// DialTimeout bounds a single probe attempt.
const DialTimeout = 3 * time.Second

// Probe implements mesh.ConnectivityProbe via periodic TCP dial.
type Probe struct {
	Target string // host:port reachable only when the uplink is up

	subs []chan bool
	last bool
}

// NewProbe builds a Probe targeting target (e.g. "1.1.1.1:443").
func NewProbe(target string) *Probe {
	return &Probe{Target: target}
}

// HasInternet dials Target once and reports whether it succeeded.
func (p *Probe) HasInternet(ctx context.Context) bool {
	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", p.Target)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Subscribe returns a channel receiving connectivity transitions. Run must
// be running for it to ever fire.
func (p *Probe) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	p.subs = append(p.subs, ch)
	return ch
}

// Run polls HasInternet every ProbeInterval and publishes transitions to
// subscribers. Blocks until ctx is cancelled.
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := p.HasInternet(ctx)
			if cur == p.last {
				continue
			}
			p.last = cur
			log.Infof("connectivity: transitioned to has_internet=%v", cur)
			for _, ch := range p.subs {
				select {
				case ch <- cur:
				default:
				}
			}
		}
	}
}
