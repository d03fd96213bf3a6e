// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"

	grjson "github.com/gorilla/rpc/v2/json"
	"github.com/spf13/cobra"

	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/crypto"
	"github.com/Spielworks/plai/protocol"
	"github.com/Spielworks/plai/vm"
)

var (
	attestKey         string
	attestRPC         string
	attestSession     uint64
	attestSubmit      bool
	attestOwner       string
	attestStartedAt   uint64
	attestEndedAt     uint64
	attestPayloadRef  string
	attestPayloadHash string
)

func init() {
	f := attestCmd.Flags()
	f.StringVar(&attestKey, "key", "", "Verifier private key hex (default $PLAI_VERIFIER_KEY)")
	f.StringVar(&attestRPC, "rpc", "", "plaid URL to fetch the session from, e.g. http://localhost:9652")
	f.Uint64Var(&attestSession, "session", 0, "Session id to fetch with --rpc")
	f.BoolVar(&attestSubmit, "submit", false, "Submit the signature with VerifySession (requires --rpc)")
	f.StringVar(&attestOwner, "owner", "", "Session owner address (offline mode)")
	f.Uint64Var(&attestStartedAt, "started-at", 0, "Session start, unix seconds (offline mode)")
	f.Uint64Var(&attestEndedAt, "ended-at", 0, "Session end, unix seconds (offline mode)")
	f.StringVar(&attestPayloadRef, "payload-ref", "", "Payload reference (offline mode)")
	f.StringVar(&attestPayloadHash, "payload-hash", "", "Payload hash, 32 bytes hex (offline mode)")
	rootCmd.AddCommand(attestCmd)
}

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Sign a closed session as its verifier",
	Long: `Signs the attested fields of a session with the verifier key and prints
the 65-byte signature.

With --rpc and --session the fields are fetched from a running plaid;
otherwise they are taken from the --owner, --started-at, --ended-at,
--payload-ref and --payload-hash flags.`,
	Args: cobra.NoArgs,
	RunE: runAttest,
}

func runAttest(cmd *cobra.Command, args []string) error {
	key := attestKey
	if key == "" {
		key = os.Getenv("PLAI_VERIFIER_KEY")
	}
	if key == "" {
		return fmt.Errorf("verifier key required (--key or PLAI_VERIFIER_KEY)")
	}
	verifier, err := crypto.IdentityFromHex(key)
	if err != nil {
		return err
	}

	var a protocol.Attestation
	if attestRPC != "" {
		var reply vm.GetSessionReply
		if err := rpcCall(attestRPC, "GetSession", &vm.GetSessionArgs{SessionID: attestSession}, &reply); err != nil {
			return err
		}
		if reply.Session.Verifier != verifier.Address {
			return fmt.Errorf("session %d expects verifier %s, key is %s", attestSession, reply.Session.Verifier, verifier.Address)
		}
		a = protocol.AttestationFor(reply.Session)
	} else {
		if attestSubmit {
			return fmt.Errorf("--submit requires --rpc")
		}
		owner, err := core.HexToAddress(attestOwner)
		if err != nil {
			return fmt.Errorf("invalid --owner: %w", err)
		}
		hash, err := core.HexToHash(attestPayloadHash)
		if err != nil {
			return fmt.Errorf("invalid --payload-hash: %w", err)
		}
		a = protocol.Attestation{
			Owner:       owner,
			StartedAt:   attestStartedAt,
			EndedAt:     attestEndedAt,
			PayloadRef:  attestPayloadRef,
			PayloadHash: hash,
		}
	}

	sig := core.HexBytes(a.Sign(verifier))
	fmt.Fprintln(cmd.OutOrStdout(), sig)

	if !attestSubmit {
		return nil
	}
	var reply vm.TxReply
	if err := rpcCall(attestRPC, "VerifySession", &vm.VerifySessionArgs{SessionID: attestSession, Signature: sig}, &reply); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "verified in %s\n", reply.TxID)
	return nil
}

func rpcCall(url, method string, args, reply interface{}) error {
	body, err := grjson.EncodeClientRequest(vm.Name+"."+method, args)
	if err != nil {
		return err
	}
	resp, err := http.Post(url+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if err := grjson.DecodeClientResponse(resp.Body, reply); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}
