package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alfredjeanlab/lgates/internal/client"
	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/server"
	"github.com/alfredjeanlab/lgates/internal/store/memory"
	"github.com/alfredjeanlab/lgates/internal/ui"
)

// startServer runs an in-memory lgates server seeded with alice
// (control_tower), sam (sto), lee (slt) and initiative INIT-1.
func startServer(t *testing.T) string {
	t.Helper()
	ui.SetColor(false)
	t.Cleanup(func() {
		ui.SetColor(true)
		gatesClient = nil
		jsonOutput = false
	})

	ms := memory.New()
	ctx := context.Background()
	for uid, role := range map[string]model.Role{
		"alice": model.RoleControlTower,
		"sam":   model.RoleSTO,
		"lee":   model.RoleSLT,
	} {
		if err := ms.SetUserRole(ctx, &model.UserRole{UserID: uid, Role: role}); err != nil {
			t.Fatalf("seed role: %v", err)
		}
	}
	if err := ms.CreateInitiative(ctx, &model.Initiative{ID: "INIT-1", Name: "Claims portal", ValueStream: "claims"}); err != nil {
		t.Fatalf("seed initiative: %v", err)
	}

	srv := httptest.NewServer(server.NewGatesServer(ms, nil, nil).NewHTTPHandler(server.NewAuthenticator("", "")))
	t.Cleanup(srv.Close)
	return srv.URL
}

func as(base, user string) {
	gatesClient = client.NewHTTPClient(base, client.WithUser(user))
}

// runCmd sets flags given as name, value pairs, runs cmd and returns its
// output. Flags are reset afterwards.
func runCmd(t *testing.T, cmd *cobra.Command, args []string, flags ...string) (string, error) {
	t.Helper()
	defer resetFlags(cmd)
	for i := 0; i+1 < len(flags); i += 2 {
		if err := cmd.Flags().Set(flags[i], flags[i+1]); err != nil {
			t.Fatalf("set --%s: %v", flags[i], err)
		}
	}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func mustContain(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

func TestFormCommands_Lifecycle(t *testing.T) {
	base := startServer(t)

	as(base, "sam")
	out, err := runCmd(t, formSaveCmd, []string{"INIT-1", "l0"},
		"set", "problemStatement=claims take 9 days",
		"set", "sponsor=cfo")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	mustContain(t, out, "Saved INIT-1 L0 (now draft, version 1)")

	out, err = runCmd(t, formSubmitCmd, []string{"INIT-1", "L0"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	mustContain(t, out, "now submitted, version 2")

	// The shared decision table stops sto before any request is sent.
	if _, err := runCmd(t, formApproveCmd, []string{"INIT-1", "L0"}); err == nil || !strings.Contains(err.Error(), "cannot approve") {
		t.Fatalf("sto approve: expected local forbidden error, got %v", err)
	}

	as(base, "alice")
	if _, err := runCmd(t, formRejectCmd, []string{"INIT-1", "L0"}); err == nil || err.Error() != "--reason is required" {
		t.Fatalf("reject without reason: got %v", err)
	}
	out, err = runCmd(t, formApproveCmd, []string{"INIT-1", "L0"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	mustContain(t, out, "Approved INIT-1 L0 (now approved, version 3)")

	as(base, "sam")
	if _, err := runCmd(t, formSaveCmd, []string{"INIT-1", "L0"}, "set", "sponsor=coo"); err == nil || !strings.Contains(err.Error(), "locked") {
		t.Fatalf("save approved form: expected locked error, got %v", err)
	}
	out, err = runCmd(t, formRequestChangeCmd, []string{"INIT-1", "L0"}, "reason", "sponsor moved on")
	if err != nil {
		t.Fatalf("request change: %v", err)
	}
	mustContain(t, out, "now change_requested")

	as(base, "lee")
	out, err = runCmd(t, formShowCmd, []string{"INIT-1", "L0"})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	mustContain(t, out, "Status:     change requested")
	mustContain(t, out, "You can:    none")
	mustContain(t, out, `"sponsor": "cfo"`)

	out, err = runCmd(t, formListCmd, []string{"INIT-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	mustContain(t, out, "L6")
	mustContain(t, out, "not started")

	out, err = runCmd(t, eventsCmd, []string{"INIT-1"})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	mustContain(t, out, "lgates.form.change_requested")
}

func TestFormCommands_StaleVersion(t *testing.T) {
	base := startServer(t)
	as(base, "sam")

	if _, err := runCmd(t, formSaveCmd, []string{"INIT-1", "L1"}, "data", `{"objectives":"x"}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, err := runCmd(t, formSaveCmd, []string{"INIT-1", "L1"}, "data", `{"objectives":"y"}`, "version", "0")
	if !client.IsStatus(err, 409) {
		t.Fatalf("expected 409 for a stale version, got %v", err)
	}
}

func TestFormCommands_BadGate(t *testing.T) {
	base := startServer(t)
	as(base, "sam")
	if _, err := runCmd(t, formShowCmd, []string{"INIT-1", "L9"}); err == nil {
		t.Fatal("expected invalid gate error")
	}
}

func TestParseGateArg(t *testing.T) {
	for in, want := range map[string]model.Gate{"l3": model.GateL3, " L0 ": model.GateL0, "L6": model.GateL6} {
		got, err := parseGateArg(in)
		if err != nil || got != want {
			t.Errorf("parseGateArg(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseGateArg("l9"); err == nil {
		t.Error("parseGateArg(l9): expected error")
	}
}

func TestFormDataFromFlags(t *testing.T) {
	current := []byte(`{"objectives":"grow","budget":10}`)

	for _, tc := range []struct {
		name    string
		flags   []string
		stdin   string
		want    string
		wantErr string
	}{
		{name: "nothing keeps content", want: ""},
		{name: "set merges", flags: []string{"set", "budget=12", "set", "owner=kim"}, want: `{"budget":12,"objectives":"grow","owner":"kim"}`},
		{name: "data replaces", flags: []string{"data", `{"risks":["fx"]}`}, want: `{"risks":["fx"]}`},
		{name: "data then set", flags: []string{"data", `{"a":1}`, "set", "b=true"}, want: `{"a":1,"b":true}`},
		{name: "stdin", flags: []string{"file", "-"}, stdin: `{"from":"stdin"}`, want: `{"from":"stdin"}`},
		{name: "bad set", flags: []string{"set", "novalue"}, wantErr: "want key=value"},
		{name: "not an object", flags: []string{"data", `[1,2]`}, wantErr: "JSON object"},
		{name: "both sources", flags: []string{"data", "{}", "file", "x.json"}, wantErr: "mutually exclusive"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer resetFlags(formSaveCmd)
			for i := 0; i+1 < len(tc.flags); i += 2 {
				if err := formSaveCmd.Flags().Set(tc.flags[i], tc.flags[i+1]); err != nil {
					t.Fatal(err)
				}
			}
			formSaveCmd.SetIn(strings.NewReader(tc.stdin))

			got, err := formDataFromFlags(formSaveCmd, current)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestStatusCommands(t *testing.T) {
	base := startServer(t)

	as(base, "sam")
	if _, err := runCmd(t, statusSetCmd, []string{"INIT-1"}); err == nil {
		t.Fatal("expected an error without any axis")
	}
	if _, err := runCmd(t, statusSetCmd, []string{"INIT-1"}, "cost", "amber"); err == nil || !strings.Contains(err.Error(), "--cost") {
		t.Fatalf("expected invalid value error, got %v", err)
	}
	out, err := runCmd(t, statusSetCmd, []string{"INIT-1"}, "cost", "red", "timeline", "yellow")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	mustContain(t, out, "red")
	mustContain(t, out, "yellow")

	as(base, "lee")
	if _, err := runCmd(t, statusSetCmd, []string{"INIT-1"}, "scope", "red"); err == nil || !strings.Contains(err.Error(), "cannot set") {
		t.Fatalf("slt set: expected local forbidden error, got %v", err)
	}
	out, err = runCmd(t, statusShowCmd, []string{"INIT-1"})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	mustContain(t, out, "Updated:")
	mustContain(t, out, "by sam")
}

func TestInitiativeCommands(t *testing.T) {
	base := startServer(t)

	as(base, "sam")
	if _, err := runCmd(t, initiativeCreateCmd, []string{"Warehouse"}); err == nil || !strings.Contains(err.Error(), "cannot create") {
		t.Fatalf("sto create: expected local forbidden error, got %v", err)
	}

	as(base, "alice")
	out, err := runCmd(t, initiativeCreateCmd, []string{"Warehouse automation"}, "id", "INIT-7", "value-stream", "ops")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mustContain(t, out, "Created initiative INIT-7")

	out, err = runCmd(t, initiativeListCmd, nil, "value-stream", "ops")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	mustContain(t, out, "INIT-7")
	mustContain(t, out, "1 initiatives (1 total)")

	out, err = runCmd(t, initiativeShowCmd, []string{"INIT-7"})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	mustContain(t, out, "Value stream: ops")
	mustContain(t, out, "Cost:")

	if _, err := runCmd(t, initiativeDeleteCmd, []string{"INIT-7"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := runCmd(t, initiativeShowCmd, []string{"INIT-7"}); !client.IsStatus(err, 404) {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestRoleAndConfigCommands(t *testing.T) {
	base := startServer(t)

	as(base, "sam")
	out, err := runCmd(t, roleWhoamiCmd, nil)
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	mustContain(t, out, "sam: sto")
	if _, err := runCmd(t, roleSetCmd, []string{"kim", "sto"}); err == nil {
		t.Fatal("sto set role: expected error")
	}
	if _, err := runCmd(t, configSetCmd, []string{"gate:L3", `{}`}); err == nil {
		t.Fatal("sto set config: expected error")
	}

	as(base, "alice")
	if _, err := runCmd(t, roleSetCmd, []string{"kim", "boss"}); err == nil {
		t.Fatal("expected invalid role error")
	}
	out, err = runCmd(t, roleSetCmd, []string{"kim", "sto"}, "value-stream", "claims")
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	mustContain(t, out, "kim is now sto")
	out, err = runCmd(t, roleListCmd, nil)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	mustContain(t, out, "kim")

	if _, err := runCmd(t, configSetCmd, []string{"gate:L3", `not json`}); err == nil {
		t.Fatal("expected invalid JSON error")
	}
	if _, err := runCmd(t, configSetCmd, []string{"gate:L3", `{"fields":[{"key":"budget","label":"Budget","required":true}]}`}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	out, err = runCmd(t, gateRequirementsCmd, []string{"l3"})
	if err != nil {
		t.Fatalf("requirements: %v", err)
	}
	mustContain(t, out, "* budget")

	out, err = runCmd(t, configListCmd, []string{"gate"})
	if err != nil {
		t.Fatalf("list configs: %v", err)
	}
	mustContain(t, out, "gate:L6")

	if _, err := runCmd(t, configDeleteCmd, []string{"gate:L3"}); err != nil {
		t.Fatalf("delete config: %v", err)
	}
	out, err = runCmd(t, gateRequirementsCmd, []string{"L3"})
	if err != nil {
		t.Fatalf("requirements after delete: %v", err)
	}
	mustContain(t, out, "* objectives")
}

func TestHealthCommand(t *testing.T) {
	base := startServer(t)
	as(base, "")

	jsonOutput = true
	out, err := runCmd(t, healthCmd, nil)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	mustContain(t, out, `"status": "ok"`)
}

func TestColorizeHelp(t *testing.T) {
	ui.SetColor(true)
	t.Cleanup(func() { ui.SetColor(true) })

	in := "Portfolio:\n  form        Read and move gate forms\n\nFlags:\n      --http-url string   server URL (default \"http://localhost:8080\")\n"
	out := colorizeHelp(in)
	mustContain(t, out, ui.RenderAccent("Portfolio:"))
	mustContain(t, out, "  "+ui.RenderCommand("form")+"  ")
	mustContain(t, out, "--http-url "+ui.RenderMuted("string"))
	mustContain(t, out, ui.RenderMuted(`(default "http://localhost:8080")`))

	ui.SetColor(false)
	if got := colorizeHelp(in); got != in {
		t.Fatalf("plain help changed:\n%s", got)
	}
}
