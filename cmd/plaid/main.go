// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// plaid runs the plai session ledger and reward agent behind JSON-RPC and
// provides the key and attestation tooling verifiers use with it.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
