package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/access"
	"github.com/alfredjeanlab/lgates/internal/model"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Read and set initiative RAG status",
	GroupID: "portfolio",
}

var statusShowCmd = &cobra.Command{
	Use:   "show <initiative-id>",
	Short: "Show the cost, benefit, timeline and scope indicators",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := gatesClient.GetStatus(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

// statusAxes maps flag names to the patch field they set.
var statusAxes = []struct {
	flag  string
	field func(*model.StatusPatch) **model.RAG
}{
	{"cost", func(p *model.StatusPatch) **model.RAG { return &p.CostStatus }},
	{"benefit", func(p *model.StatusPatch) **model.RAG { return &p.BenefitStatus }},
	{"timeline", func(p *model.StatusPatch) **model.RAG { return &p.TimelineStatus }},
	{"scope", func(p *model.StatusPatch) **model.RAG { return &p.ScopeStatus }},
}

func statusPatchFromFlags(cmd *cobra.Command) (model.StatusPatch, error) {
	var patch model.StatusPatch
	for _, axis := range statusAxes {
		if !cmd.Flags().Changed(axis.flag) {
			continue
		}
		v, _ := cmd.Flags().GetString(axis.flag)
		rag := model.RAG(v)
		if !rag.IsValid() {
			return patch, fmt.Errorf("--%s must be green, yellow or red", axis.flag)
		}
		*axis.field(&patch) = &rag
	}
	if patch.IsEmpty() {
		return patch, errors.New("set at least one of --cost, --benefit, --timeline, --scope")
	}
	return patch, nil
}

var statusSetCmd = &cobra.Command{
	Use:   "set <initiative-id>",
	Short: "Change one or more indicators (control_tower, sto)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		patch, err := statusPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		role, err := callerRole(ctx)
		if err != nil {
			return err
		}
		if !access.CanSetStatus(role) {
			return fmt.Errorf("role %s cannot set initiative status", role)
		}
		st, err := gatesClient.SetStatus(ctx, args[0], patch)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

func init() {
	for _, axis := range statusAxes {
		statusSetCmd.Flags().String(axis.flag, "", axis.flag+" indicator (green, yellow, red)")
	}
	statusCmd.AddCommand(statusShowCmd)
	statusCmd.AddCommand(statusSetCmd)
}
