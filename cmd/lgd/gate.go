package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/model"
)

// parseGateArg lets users type gates in any case; the API only accepts
// the canonical L0-L6 names.
func parseGateArg(s string) (model.Gate, error) {
	return model.ParseGate(strings.ToUpper(strings.TrimSpace(s)))
}

var gateCmd = &cobra.Command{
	Use:     "gate",
	Short:   "Inspect gate definitions",
	GroupID: "portfolio",
}

var gateRequirementsCmd = &cobra.Command{
	Use:   "requirements <gate>",
	Short: "Show the checklist a form must complete before submission",
	Long:  "Show the checklist a form must complete before submission. Required items are marked with *.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gate, err := parseGateArg(args[0])
		if err != nil {
			return err
		}
		reqs, err := gatesClient.GetRequirements(context.Background(), gate)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), reqs)
		}
		printRequirements(cmd.OutOrStdout(), reqs)
		return nil
	},
}

func init() {
	gateCmd.AddCommand(gateRequirementsCmd)
}
