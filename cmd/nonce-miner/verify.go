package main

import (
	"errors"
	"strings"

	minerpkg "github.com/screa/nonce-miner/pkg/miner"
	"github.com/screa/nonce-miner/pkg/types"
	"github.com/spf13/cobra"
)

var errVerifyArgs = errors.New("verify needs --timestamp and --hash-hex")

func newVerifyCmd() *cobra.Command {
	var sol types.Solution

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute a solution's hash and check it against the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Timestamp == 0 || sol.Hash == "" {
				return errVerifyArgs
			}
			sol.Timestamp = cfg.Timestamp
			sol.Hash = strings.ToLower(sol.Hash)

			miner, err := minerpkg.NewMiner(cfg, logger)
			if err != nil {
				return err
			}
			if err := miner.Verify(sol); err != nil {
				return err
			}
			logger.Printf("Valid: nonce %d at timestamp %d hashes to %s", sol.Nonce, sol.Timestamp, sol.Hash)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&sol.Nonce, "nonce", 0, "Nonce to check")
	cmd.Flags().StringVar(&sol.Hash, "hash-hex", "", "Expected hash (hex)")
	return cmd
}
