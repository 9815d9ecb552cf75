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

package cmd

import (
	"fmt"

	"github.com/fieldrelay/mesh/coordinator"
	"github.com/fieldrelay/mesh/meshconfig"
	"github.com/fieldrelay/mesh/outbox"
	"github.com/fieldrelay/mesh/platform/cloud"
	"github.com/fieldrelay/mesh/platform/connectivity"
	"github.com/fieldrelay/mesh/platform/devtransport"
	"github.com/fieldrelay/mesh/scorer"
)

func loadConfig() (*meshconfig.Config, error) {
	if configFlag == "" {
		return meshconfig.DefaultConfig(), nil
	}
	cfg, err := meshconfig.ReadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("reading config from %q: %w", configFlag, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildCoordinator wires the devtransport loopback transport, a connectivity
// probe, an HTTP cloud uploader, and (when configured) a durable bbolt
// outbox into a coordinator.Coordinator, mirroring prepareConfig's role in
// cmd/sptp/main.go.
func buildCoordinator(cfg *meshconfig.Config, listenAddr string, peers []string, cloudEndpoint string) (*coordinator.Coordinator, error) {
	transport := devtransport.New(listenAddr, 4)
	for _, p := range peers {
		transport.AddPeer(p)
	}

	var ob outbox.Outbox
	if cfg.Outbox.DataDir != "" {
		dbPath := fmt.Sprintf("%s/outbox.db", cfg.Outbox.DataDir)
		b, recovered, err := outbox.OpenBolt(dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening durable outbox at %q: %w", dbPath, err)
		}
		if recovered > 0 {
			fmt.Printf("recovered %d in-flight packets from a previous crash\n", recovered)
		}
		ob = b
	}

	formula, err := scorer.NewFormula(cfg.Scorer.Formula)
	if err != nil {
		return nil, fmt.Errorf("invalid scorer formula: %w", err)
	}

	deps := coordinator.Deps{
		Transport:     transport,
		Connectivity:  connectivity.NewProbe("1.1.1.1:443"),
		Uploader:      cloud.NewUploader(cloudEndpoint),
		Outbox:        ob,
		Formula:       formula,
		SeenCacheSize: cfg.Outbox.SeenCacheSize,
	}

	return coordinator.New(cfg.NodeID, deps), nil
}
