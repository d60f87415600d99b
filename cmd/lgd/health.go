package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/client"
	"github.com/alfredjeanlab/lgates/internal/server"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the lgates server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		status, err := checkHealth(ctx, grpcAddr)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", status)
		}

		if status != "ok" && status != "SERVING" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

// checkHealth asks the gRPC health service when grpcAddr is set and the
// REST endpoint otherwise.
func checkHealth(ctx context.Context, grpcAddr string) (string, error) {
	if grpcAddr == "" {
		return gatesClient.Health(ctx)
	}
	hc, err := client.NewHealthChecker(grpcAddr)
	if err != nil {
		return "", err
	}
	defer hc.Close()
	return hc.Check(ctx, server.ServiceName)
}

func init() {
	healthCmd.Flags().String("grpc", "", "check the gRPC health service at this address instead")
	healthCmd.Flags().Duration("timeout", 5*time.Second, "give up after this long")
}
