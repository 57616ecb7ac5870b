package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetassign/core/dispatch"
	"github.com/kilianp07/fleetassign/infra/logger"
)

var (
	assignOrders   []string
	assignStrategy string
	assignActor    string
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Run one batch assignment and print the outcomes",
	RunE:  runAssign,
}

func init() {
	assignCmd.Flags().StringSliceVar(&assignOrders, "orders", nil, "order ids to assign (default: every pending order)")
	assignCmd.Flags().StringVar(&assignStrategy, "strategy", "", "nearest, best_capacity_fit or load_balanced")
	assignCmd.Flags().StringVar(&assignActor, "actor", "cli", "actor recorded in the tracking log")
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("assign-command").Errorf("service close: %v", err)
		}
	}()
	res, err := svc.Manager.RunBatch(ctx, dispatch.BatchRequest{
		OrderIDs: assignOrders,
		Strategy: assignStrategy,
		Trigger:  dispatch.TriggerCLI,
		Actor:    assignActor,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
