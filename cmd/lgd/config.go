package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage server configs (gate checklists)",
	GroupID: "admin",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Create or update a config (control_tower)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		value := json.RawMessage(args[1])
		if !json.Valid(value) {
			return errors.New("value must be valid JSON")
		}
		if err := requireAdmin(ctx, "change configs"); err != nil {
			return err
		}
		cfg, err := gatesClient.SetConfig(ctx, args[0], value)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cfg)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config by key (built-in defaults included)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := gatesClient.GetConfig(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), cfg)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list [namespace]",
	Short: "List configs, optionally in one namespace (e.g. gate)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace := ""
		if len(args) > 0 {
			namespace = args[0]
		}
		configs, err := gatesClient.ListConfigs(context.Background(), namespace)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), configs)
		}
		if len(configs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No configs found.")
			return nil
		}
		for _, c := range configs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Key, c.Value)
		}
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a config, restoring any built-in default (control_tower)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if err := requireAdmin(ctx, "change configs"); err != nil {
			return err
		}
		if err := gatesClient.DeleteConfig(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted config %q\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configDeleteCmd)
}
