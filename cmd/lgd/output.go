package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/ui"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

const timeLayout = "2006-01-02 15:04"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printInitiative(w io.Writer, in *model.Initiative) {
	fmt.Fprintf(w, "ID:           %s\n", in.ID)
	fmt.Fprintf(w, "Name:         %s\n", in.Name)
	if in.ValueStream != "" {
		fmt.Fprintf(w, "Value stream: %s\n", in.ValueStream)
	}
	if in.Owner != "" {
		fmt.Fprintf(w, "Owner:        %s\n", in.Owner)
	}
	if in.Description != "" {
		fmt.Fprintf(w, "Description:  %s\n", in.Description)
	}
	if in.CreatedBy != "" {
		fmt.Fprintf(w, "Created by:   %s\n", in.CreatedBy)
	}
	if !in.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created at:   %s\n", formatTime(&in.CreatedAt))
	}
}

func printInitiativeTable(w io.Writer, list []*model.Initiative, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVALUE STREAM\tOWNER")
	for _, in := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", in.ID, truncate(in.Name, 50), in.ValueStream, in.Owner)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d initiatives (%d total)\n", len(list), total)
}

func printForm(w io.Writer, v *workflow.View) {
	fmt.Fprintf(w, "Initiative: %s\n", v.InitiativeID)
	fmt.Fprintf(w, "Gate:       %s\n", v.Gate)
	fmt.Fprintf(w, "Status:     %s\n", ui.RenderFormStatus(v.Status))
	fmt.Fprintf(w, "Version:    %d\n", v.Version)
	if v.SubmittedBy != "" {
		fmt.Fprintf(w, "Submitted:  %s by %s\n", formatTime(v.SubmittedAt), v.SubmittedBy)
	}
	if v.ApprovedBy != "" {
		fmt.Fprintf(w, "Approved:   %s by %s\n", formatTime(v.ApprovedAt), v.ApprovedBy)
	}
	if v.RejectedBy != "" {
		fmt.Fprintf(w, "Rejected:   %s by %s: %s\n", formatTime(v.RejectedAt), v.RejectedBy, v.RejectionReason)
	}
	if v.ChangeRequestedBy != "" {
		fmt.Fprintf(w, "Reopened:   %s by %s: %s\n", formatTime(v.ChangeRequestedAt), v.ChangeRequestedBy, v.ChangeRequestReason)
	}
	actions := make([]string, len(v.Actions))
	for i, a := range v.Actions {
		actions[i] = string(a)
	}
	if len(actions) == 0 {
		actions = []string{"none"}
	}
	fmt.Fprintf(w, "You can:    %s\n", ui.RenderMuted(strings.Join(actions, ", ")))

	data, err := json.MarshalIndent(v.FormData, "", "  ")
	if err != nil || string(data) == "{}" {
		return
	}
	fmt.Fprintf(w, "\n%s\n", data)
}

func printFormTable(w io.Writer, views []workflow.View) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GATE\tSTATUS\tVERSION\tUPDATED\tBY")
	for _, v := range views {
		updated := ""
		if v.Version > 0 {
			updated = formatTime(&v.UpdatedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", v.Gate, ui.RenderFormStatus(v.Status), v.Version, updated, v.UpdatedBy)
	}
	tw.Flush()
}

func printStatus(w io.Writer, st *model.InitiativeStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Cost:\t%s\n", ui.RenderRAG(st.CostStatus))
	fmt.Fprintf(tw, "Benefit:\t%s\n", ui.RenderRAG(st.BenefitStatus))
	fmt.Fprintf(tw, "Timeline:\t%s\n", ui.RenderRAG(st.TimelineStatus))
	fmt.Fprintf(tw, "Scope:\t%s\n", ui.RenderRAG(st.ScopeStatus))
	if st.UpdatedBy != "" {
		fmt.Fprintf(tw, "Updated:\t%s by %s\n", formatTime(&st.UpdatedAt), st.UpdatedBy)
	}
	tw.Flush()
}

func printRoleTable(w io.Writer, users []*model.UserRole) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tROLE\tVALUE STREAM\tASSIGNED BY")
	for _, ur := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ur.UserID, ur.Role, ur.ValueStream, ur.AssignedBy)
	}
	tw.Flush()
}

func printRequirements(w io.Writer, reqs *model.GateRequirements) {
	fmt.Fprintf(w, "%s  %s\n", ui.RenderAccent(string(reqs.Gate)), reqs.Title)
	for _, f := range reqs.Fields {
		mark := " "
		if f.Required {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %-20s %s\n", mark, f.Key, f.Label)
	}
}

func printEventTable(w io.Writer, evts []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOPIC\tGATE\tACTOR")
	for _, e := range evts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatTime(&e.CreatedAt), e.Topic, e.Gate, e.Actor)
	}
	tw.Flush()
}
