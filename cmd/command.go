// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "s3gw",
	Short: "Carrier S3 gateway",
	Long: `s3gw is an S3-compatible object storage gateway for Carrier projects.
It fronts a MinIO/S3 backend with per-project bucket isolation, signature v4
authentication backed by project-scoped access keys, and session-based
credential management.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
