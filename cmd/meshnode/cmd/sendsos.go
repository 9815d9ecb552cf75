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

	"github.com/spf13/cobra"
)

var sendSOSMessageFlag string

func init() {
	RootCmd.AddCommand(sendSOSCmd)
	sendSOSCmd.Flags().StringVar(&runListenFlag, "listen", "127.0.0.1:0", "address this node listens on")
	sendSOSCmd.Flags().StringArrayVar(&runPeersFlag, "peer", nil, "peer address to relay through, repeat for multiple")
	sendSOSCmd.Flags().StringVar(&runCloudFlag, "cloud-endpoint", "http://localhost:8080/ingest", "HTTP endpoint for cloud delivery")
	sendSOSCmd.Flags().StringVar(&sendSOSMessageFlag, "message", "", "SOS payload text")
	if err := sendSOSCmd.MarkFlagRequired("message"); err != nil {
		panic(err)
	}
}

var sendSOSCmd = &cobra.Command{
	Use:   "send-sos",
	Short: "enqueue an SOS packet originated by this node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		co, err := buildCoordinator(cfg, runListenFlag, runPeersFlag, runCloudFlag)
		if err != nil {
			return err
		}

		id, err := co.SendSOS([]byte(sendSOSMessageFlag))
		if err != nil {
			return err
		}
		fmt.Printf("enqueued SOS packet %s\n", id)
		return nil
	},
}
