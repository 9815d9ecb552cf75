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

// Package cmd implements the meshnode CLI, grounded on the teacher's
// calnex/cmd RootCmd-plus-init()-registered-subcommands convention.
package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the CLI entry point.
var RootCmd = &cobra.Command{
	Use:   "meshnode",
	Short: "offline peer-to-peer emergency mesh relay node",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetLevel(log.InfoLevel)
		if verboseFlag {
			log.SetLevel(log.DebugLevel)
		}
	},
}

var (
	configFlag  string
	verboseFlag bool
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to meshnode config (defaults if empty)")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose logging")
}

// Execute is the CLI's main entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
