// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:           "plaid",
	Short:         "plai session ledger daemon",
	Version:       version + " (commit " + commit + ")",
	SilenceUsage:  true,
	SilenceErrors: false,
}
