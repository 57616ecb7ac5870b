package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetassign/infra/logger"
)

var scoreCmd = &cobra.Command{
	Use:   "score ORDER VEHICLE",
	Short: "Explain the score of a vehicle for an order",
	Args:  cobra.ExactArgs(2),
	RunE:  runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := newService(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("score-command").Errorf("service close: %v", err)
		}
	}()
	rep, err := svc.Manager.Score(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
