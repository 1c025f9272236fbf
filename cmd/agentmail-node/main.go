// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir   string
	environment string
)

var rootCmd = &cobra.Command{
	Use:   "agentmail-node",
	Short: "agentmail node: a per-agent encrypted mailbox service",
	Long: `agentmail-node runs a single agent's mailbox: it accepts inbound
envelopes over HTTP, sends outbound mail directly to peers or through a
relay, discovers peers on the local network over mDNS, and persists
everything in an embedded SQLite mailbox.`,
	RunE: runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVar(&configDir, "config-dir", "config", "directory to load node.yaml / default.yaml from")
	rootCmd.Flags().StringVar(&environment, "environment", "", "environment name, overrides auto-detection")
}
