package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/client"
	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

var formCmd = &cobra.Command{
	Use:     "form",
	Short:   "Read and move gate forms through review",
	GroupID: "portfolio",
}

// prepareTransition reads the form, checks locally that the caller may take
// action on it, and returns it with the version to send. An explicit
// --version overrides the one just read.
func prepareTransition(ctx context.Context, cmd *cobra.Command, action workflow.Action, id, gateArg string) (*workflow.View, model.Gate, int64, error) {
	gate, err := parseGateArg(gateArg)
	if err != nil {
		return nil, "", 0, err
	}
	v, err := gatesClient.GetForm(ctx, id, gate)
	if err != nil {
		return nil, "", 0, err
	}
	role, err := callerRole(ctx)
	if err != nil {
		return nil, "", 0, err
	}
	if err := workflow.Check(action, role, v.Status); err != nil {
		return nil, "", 0, err
	}
	version := v.Version
	if cmd.Flags().Changed("version") {
		version, _ = cmd.Flags().GetInt64("version")
	}
	return v, gate, version, nil
}

// formDataFromFlags builds the new form content from --data/--file and
// --set. It returns nil when none were given, keeping the stored content.
func formDataFromFlags(cmd *cobra.Command, current json.RawMessage) (json.RawMessage, error) {
	data, _ := cmd.Flags().GetString("data")
	file, _ := cmd.Flags().GetString("file")
	sets, _ := cmd.Flags().GetStringArray("set")

	if data != "" && file != "" {
		return nil, errors.New("--data and --file are mutually exclusive")
	}
	if file != "" {
		var (
			b   []byte
			err error
		)
		if file == "-" {
			b, err = io.ReadAll(cmd.InOrStdin())
		} else {
			b, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("reading form data: %w", err)
		}
		data = string(b)
	}
	if data == "" && len(sets) == 0 {
		return nil, nil
	}

	base := current
	if data != "" {
		base = json.RawMessage(data)
	}
	fields := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("form data must be a JSON object: %w", err)
		}
	}
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", s)
		}
		if json.Valid([]byte(v)) {
			fields[k] = json.RawMessage(v)
			continue
		}
		quoted, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fields[k] = quoted
	}
	return json.Marshal(fields)
}

func printView(cmd *cobra.Command, v *workflow.View, verb string) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), v)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (now %s, version %d)\n", verb, v.InitiativeID, v.Gate, v.Status, v.Version)
	return nil
}

var formListCmd = &cobra.Command{
	Use:   "list <initiative-id>",
	Short: "List the seven gate forms of an initiative",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		views, err := gatesClient.ListForms(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), views)
		}
		printFormTable(cmd.OutOrStdout(), views)
		return nil
	},
}

var formShowCmd = &cobra.Command{
	Use:   "show <initiative-id> <gate>",
	Short: "Show a gate form and what you may do with it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gate, err := parseGateArg(args[1])
		if err != nil {
			return err
		}
		v, err := gatesClient.GetForm(context.Background(), args[0], gate)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), v)
		}
		printForm(cmd.OutOrStdout(), v)
		return nil
	},
}

func saveRunE(action workflow.Action, status model.FormStatus, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		v, gate, version, err := prepareTransition(ctx, cmd, action, args[0], args[1])
		if err != nil {
			return err
		}
		data, err := formDataFromFlags(cmd, v.FormData)
		if err != nil {
			return err
		}
		next, err := gatesClient.SaveForm(ctx, args[0], gate, &client.SaveFormRequest{
			FormData: data,
			Status:   status,
			Version:  version,
		})
		if err != nil {
			return err
		}
		return printView(cmd, next, verb)
	}
}

var formSaveCmd = &cobra.Command{
	Use:   "save <initiative-id> <gate>",
	Short: "Save a draft of a gate form",
	Args:  cobra.ExactArgs(2),
	RunE:  saveRunE(workflow.ActionSaveDraft, model.FormDraft, "Saved"),
}

var formSubmitCmd = &cobra.Command{
	Use:   "submit <initiative-id> <gate>",
	Short: "Submit a gate form for review",
	Args:  cobra.ExactArgs(2),
	RunE:  saveRunE(workflow.ActionSubmit, model.FormSubmitted, "Submitted"),
}

func reviewRunE(action workflow.Action, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		reason, _ := cmd.Flags().GetString("reason")
		if action != workflow.ActionApprove && strings.TrimSpace(reason) == "" {
			return errors.New("--reason is required")
		}
		_, gate, version, err := prepareTransition(ctx, cmd, action, args[0], args[1])
		if err != nil {
			return err
		}
		req := &client.ReviewRequest{Reason: reason, Version: &version}

		var next *workflow.View
		switch action {
		case workflow.ActionApprove:
			next, err = gatesClient.Approve(ctx, args[0], gate, req)
		case workflow.ActionReject:
			next, err = gatesClient.Reject(ctx, args[0], gate, req)
		default:
			next, err = gatesClient.RequestChange(ctx, args[0], gate, req)
		}
		if err != nil {
			return err
		}
		return printView(cmd, next, verb)
	}
}

var formApproveCmd = &cobra.Command{
	Use:   "approve <initiative-id> <gate>",
	Short: "Approve a submitted gate form (control_tower)",
	Args:  cobra.ExactArgs(2),
	RunE:  reviewRunE(workflow.ActionApprove, "Approved"),
}

var formRejectCmd = &cobra.Command{
	Use:   "reject <initiative-id> <gate>",
	Short: "Reject a submitted gate form (control_tower)",
	Args:  cobra.ExactArgs(2),
	RunE:  reviewRunE(workflow.ActionReject, "Rejected"),
}

var formRequestChangeCmd = &cobra.Command{
	Use:   "request-change <initiative-id> <gate>",
	Short: "Reopen an approved gate form",
	Args:  cobra.ExactArgs(2),
	RunE:  reviewRunE(workflow.ActionRequestChange, "Reopened"),
}

func init() {
	for _, c := range []*cobra.Command{formSaveCmd, formSubmitCmd} {
		c.Flags().String("data", "", "form content as a JSON object (replaces the stored content)")
		c.Flags().String("file", "", "read form content from a file (- for stdin)")
		c.Flags().StringArray("set", nil, "set one field as key=value (repeatable)")
	}
	for _, c := range []*cobra.Command{formSaveCmd, formSubmitCmd, formApproveCmd, formRejectCmd, formRequestChangeCmd} {
		c.Flags().Int64("version", 0, "expected form version (defaults to the version just read)")
	}
	formRejectCmd.Flags().String("reason", "", "why the form is rejected")
	formRequestChangeCmd.Flags().String("reason", "", "why the approved form is reopened")
	formApproveCmd.Flags().String("reason", "", "optional note")

	formCmd.AddCommand(formListCmd)
	formCmd.AddCommand(formShowCmd)
	formCmd.AddCommand(formSaveCmd)
	formCmd.AddCommand(formSubmitCmd)
	formCmd.AddCommand(formApproveCmd)
	formCmd.AddCommand(formRejectCmd)
	formCmd.AddCommand(formRequestChangeCmd)
}
