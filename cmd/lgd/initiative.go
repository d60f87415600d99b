package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/access"
	"github.com/alfredjeanlab/lgates/internal/client"
	"github.com/alfredjeanlab/lgates/internal/model"
)

// callerRole returns the role the server holds for the current user.
func callerRole(ctx context.Context) (model.Role, error) {
	me, err := gatesClient.MyRole(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving your role: %w", err)
	}
	return me.Role, nil
}

// requireAdmin fails locally when the caller is not control_tower.
func requireAdmin(ctx context.Context, what string) error {
	role, err := callerRole(ctx)
	if err != nil {
		return err
	}
	if !access.CanAdminister(role) {
		return fmt.Errorf("role %s cannot %s", role, what)
	}
	return nil
}

var initiativeCmd = &cobra.Command{
	Use:     "initiative",
	Aliases: []string{"init", "i"},
	Short:   "Manage initiatives",
	GroupID: "portfolio",
}

var initiativeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List initiatives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.ListInitiativesRequest{}
		req.ValueStream, _ = cmd.Flags().GetString("value-stream")
		req.Search, _ = cmd.Flags().GetString("search")
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Offset, _ = cmd.Flags().GetInt("offset")

		resp, err := gatesClient.ListInitiatives(context.Background(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printInitiativeTable(cmd.OutOrStdout(), resp.Initiatives, resp.Total)
		return nil
	},
}

var initiativeCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an initiative (control_tower)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if err := requireAdmin(ctx, "create initiatives"); err != nil {
			return err
		}
		req := &client.CreateInitiativeRequest{Name: args[0]}
		req.ID, _ = cmd.Flags().GetString("id")
		req.Description, _ = cmd.Flags().GetString("description")
		req.ValueStream, _ = cmd.Flags().GetString("value-stream")
		req.Owner, _ = cmd.Flags().GetString("owner")

		in, err := gatesClient.CreateInitiative(ctx, req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), in)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created initiative %s\n", in.ID)
		return nil
	},
}

var initiativeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an initiative with its status and gate forms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		in, err := gatesClient.GetInitiative(ctx, args[0])
		if err != nil {
			return err
		}
		st, err := gatesClient.GetStatus(ctx, in.ID)
		if err != nil {
			return err
		}
		forms, err := gatesClient.ListForms(ctx, in.ID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"initiative": in,
				"status":     st,
				"forms":      forms,
			})
		}
		w := cmd.OutOrStdout()
		printInitiative(w, in)
		fmt.Fprintln(w)
		printStatus(w, st)
		fmt.Fprintln(w)
		printFormTable(w, forms)
		return nil
	},
}

var initiativeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an initiative and everything under it (control_tower)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if err := requireAdmin(ctx, "delete initiatives"); err != nil {
			return err
		}
		if err := gatesClient.DeleteInitiative(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted initiative %s\n", args[0])
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:     "events <initiative-id>",
	Short:   "Show the audit trail of an initiative",
	Args:    cobra.ExactArgs(1),
	GroupID: "portfolio",
	RunE: func(cmd *cobra.Command, args []string) error {
		evts, err := gatesClient.GetEvents(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), evts)
		}
		printEventTable(cmd.OutOrStdout(), evts)
		return nil
	},
}

func init() {
	initiativeListCmd.Flags().String("value-stream", "", "filter by value stream")
	initiativeListCmd.Flags().String("search", "", "match name or description")
	initiativeListCmd.Flags().Int("limit", 0, "maximum number of results")
	initiativeListCmd.Flags().Int("offset", 0, "number of results to skip")

	initiativeCreateCmd.Flags().String("id", "", "initiative id (generated when empty)")
	initiativeCreateCmd.Flags().String("description", "", "description")
	initiativeCreateCmd.Flags().String("value-stream", "", "value stream")
	initiativeCreateCmd.Flags().String("owner", "", "accountable owner")

	initiativeCmd.AddCommand(initiativeListCmd)
	initiativeCmd.AddCommand(initiativeCreateCmd)
	initiativeCmd.AddCommand(initiativeShowCmd)
	initiativeCmd.AddCommand(initiativeDeleteCmd)
}
