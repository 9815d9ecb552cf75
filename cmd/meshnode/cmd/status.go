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
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fieldrelay/mesh"
	"github.com/fieldrelay/mesh/coordinator"
)

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&runListenFlag, "listen", "127.0.0.1:0", "address this node listens on")
	statusCmd.Flags().StringArrayVar(&runPeersFlag, "peer", nil, "peer address to query, repeat for multiple")
	statusCmd.Flags().StringVar(&runCloudFlag, "cloud-endpoint", "http://localhost:8080/ingest", "HTTP endpoint for cloud delivery")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print engine stats and pending outbox entries for a transient node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		co, err := buildCoordinator(cfg, runListenFlag, runPeersFlag, runCloudFlag)
		if err != nil {
			return err
		}

		stats := co.Stats()
		printStatsTable(stats)

		pending, err := co.PendingPackets()
		if err != nil {
			return err
		}
		printPendingTable(pending)
		return nil
	},
}

func printStatsTable(stats coordinator.Stats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"metric", "value"})
	pausedStr := "no"
	if stats.Paused {
		pausedStr = color.RedString("yes")
	}
	rows := [][]string{
		{"packets sent", fmt.Sprintf("%d", stats.PacketsSent)},
		{"packets failed", fmt.Sprintf("%d", stats.PacketsFailed)},
		{"permanent drops", fmt.Sprintf("%d", stats.PermanentDrops)},
		{"pending", fmt.Sprintf("%d", stats.Pending)},
		{"consecutive failures", fmt.Sprintf("%d", stats.ConsecutiveFailures)},
		{"paused", pausedStr},
	}
	for _, r := range rows {
		table.Append(r)
	}
	table.Render()
}

func printPendingTable(entries []mesh.OutboxEntry) {
	if len(entries) == 0 {
		fmt.Println("no pending packets")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"id", "type", "priority", "status", "retries", "added"})
	for _, e := range entries {
		table.Append([]string{
			e.Packet.ID,
			string(e.Packet.Type),
			fmt.Sprintf("%d", e.Packet.Priority),
			string(e.Status),
			fmt.Sprintf("%d", e.RetryCount),
			e.AddedAt.Format("15:04:05"),
		})
	}
	table.Render()
}
