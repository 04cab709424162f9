/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main runs a standalone agora trading agent.
package main

import (
	"github.com/spf13/cobra"

	"github.com/agoralab/agora-framework-go/cmd/agora-agent/startcmd"
	"github.com/agoralab/agora-framework-go/pkg/common/log"
)

var logger = log.New("agora-agent")

func main() {
	rootCmd := &cobra.Command{
		Use: "agora-agent",
	}

	rootCmd.AddCommand(startcmd.GetStartCmd(&startcmd.HTTPServer{}))

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("failed to run agora-agent: %s", err)
	}
}
