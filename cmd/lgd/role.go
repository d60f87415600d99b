package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/client"
	"github.com/alfredjeanlab/lgates/internal/model"
)

var roleCmd = &cobra.Command{
	Use:     "role",
	Short:   "Show and assign user roles",
	GroupID: "admin",
}

var roleWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show your own role",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		me, err := gatesClient.MyRole(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), me)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", me.UserID, me.Role)
		return nil
	},
}

var roleSetCmd = &cobra.Command{
	Use:   "set <user-id> <control_tower|sto|slt>",
	Short: "Assign a role to a user (control_tower)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		role := model.Role(args[1])
		if !role.IsValid() {
			return fmt.Errorf("invalid role %q (must be control_tower, sto or slt)", args[1])
		}
		if err := requireAdmin(ctx, "assign roles"); err != nil {
			return err
		}
		vs, _ := cmd.Flags().GetString("value-stream")
		ur, err := gatesClient.SetUserRole(ctx, args[0], &client.SetRoleRequest{Role: role, ValueStream: vs})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ur)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", ur.UserID, ur.Role)
		return nil
	},
}

var roleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users and their roles (control_tower)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := gatesClient.ListUsers(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), users)
		}
		printRoleTable(cmd.OutOrStdout(), users)
		return nil
	},
}

func init() {
	roleSetCmd.Flags().String("value-stream", "", "value stream the user works in")

	roleCmd.AddCommand(roleWhoamiCmd)
	roleCmd.AddCommand(roleSetCmd)
	roleCmd.AddCommand(roleListCmd)
}
