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
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fieldrelay/mesh"
	"github.com/fieldrelay/mesh/coordinator"
	"github.com/fieldrelay/mesh/meshstats"
	"github.com/fieldrelay/mesh/platform/battery"
)

// MetadataRefreshInterval is how often run refreshes and re-broadcasts this
// node's own battery/connectivity metadata.
const MetadataRefreshInterval = 30 * time.Second

var (
	runListenFlag    string
	runPeersFlag     []string
	runCloudFlag     string
	runMetricsFlag   string
	runNodeRoleFlag  string
	runAvailableFlag bool
)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runListenFlag, "listen", "127.0.0.1:0", "address to listen on for mesh traffic")
	runCmd.Flags().StringArrayVar(&runPeersFlag, "peer", nil, "peer address to announce to, repeat for multiple")
	runCmd.Flags().StringVar(&runCloudFlag, "cloud-endpoint", "http://localhost:8080/ingest", "HTTP endpoint to deliver SOS packets to once online")
	runCmd.Flags().StringVar(&runMetricsFlag, "metrics-listen", "", "address to serve Prometheus metrics on, disabled if empty")
	runCmd.Flags().StringVar(&runNodeRoleFlag, "role", "relay", "this node's role: sender, relay, or goal")
	runCmd.Flags().BoolVar(&runAvailableFlag, "available-for-relay", true, "advertise this node as willing to relay for others")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start a mesh relay node and block until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.NodeID == "" {
			return cmdUsageError("--config must set node_id, or pass one via a config file")
		}

		co, err := buildCoordinator(cfg, runListenFlag, runPeersFlag, runCloudFlag)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := co.Initialize(ctx, map[string]string{"role": runNodeRoleFlag}); err != nil {
			return err
		}
		co.Start(ctx)
		defer co.Stop()

		batteryReader := battery.NewReader()
		refreshMetadata(ctx, co, batteryReader)
		go func() {
			ticker := time.NewTicker(MetadataRefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					refreshMetadata(ctx, co, batteryReader)
				}
			}
		}()

		if runMetricsFlag != "" {
			exporter := meshstats.NewPrometheusExporter(co.Counters(), runMetricsFlag, 15*time.Second)
			go func() {
				if err := exporter.Run(ctx); err != nil {
					log.Errorf("metrics exporter stopped: %v", err)
				}
			}()
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		log.Infof("meshnode %s running, listening on %s", cfg.NodeID, runListenFlag)
		<-sigCh
		log.Info("shutting down")
		return nil
	},
}

func refreshMetadata(ctx context.Context, co *coordinator.Coordinator, reader *battery.Reader) {
	level, err := reader.Level(ctx)
	if err != nil {
		log.Warnf("run: battery read failed: %v", err)
		level = 100
	}
	info := mesh.NodeInfo{
		BatteryLevel:      level,
		HasInternet:       co.HasInternet(),
		Role:              roleFromFlag(runNodeRoleFlag),
		AvailableForRelay: runAvailableFlag,
	}
	if err := co.UpdateMetadata(info); err != nil {
		log.Warnf("run: metadata update failed: %v", err)
	}
}

func roleFromFlag(role string) mesh.NodeRole {
	switch role {
	case "sender":
		return mesh.RoleSender
	case "goal":
		return mesh.RoleGoal
	default:
		return mesh.RoleRelay
	}
}

type cmdUsageError string

func (e cmdUsageError) Error() string { return string(e) }
