// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Spielworks/plai/config"
	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/crypto"
)

var genesisOut string

func init() {
	genesisInitCmd.Flags().StringVarP(&genesisOut, "out", "o", "", "Write the template to a file instead of stdout")
	genesisCmd.AddCommand(genesisInitCmd, genesisCheckCmd)
	rootCmd.AddCommand(genesisCmd)
}

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Create or check genesis documents",
}

var genesisInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a genesis template with fresh principal keys",
	Long: `Generates keys for the governor, orchestrator, ledger, agent and agent
operator, writes a genesis template using their addresses and prints the
private keys to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		roles := []string{"governor", "orchestrator", "ledger", "agent", "agent_operator", "credit"}
		addrs := make(map[string]core.Address, len(roles))
		for _, role := range roles {
			id, err := crypto.GenerateIdentity()
			if err != nil {
				return err
			}
			addrs[role] = id.Address
			fmt.Fprintf(cmd.ErrOrStderr(), "%-15s %s %s\n", role, id.Address, id.PrivateKeyHex())
		}

		g := &config.Genesis{
			Governor:      addrs["governor"],
			Orchestrator:  addrs["orchestrator"],
			Ledger:        addrs["ledger"],
			Agent:         addrs["agent"],
			AgentOperator: addrs["agent_operator"],
			Credit: config.CreditGenesis{
				Address: addrs["credit"],
				Symbol:  "PLAI",
				Minter:  addrs["governor"],
			},
		}
		if err := g.Validate(); err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if genesisOut != "" {
			f, err := os.OpenFile(genesisOut, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return g.Write(w)
	},
}

var genesisCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a genesis file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := config.LoadGenesis(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %d identities, %d publishers, %d games, %d balances\n",
			len(g.Identities), len(g.Publishers), len(g.Games), len(g.Balances))
		return nil
	},
}
