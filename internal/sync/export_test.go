package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store/memory"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// seededStore returns a memory store holding two initiatives (inserted out of
// ID order), one L3 form, one status, two roles and one config.
func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	ms := memory.New()
	ms.SetClock(func() time.Time { return testNow })

	for _, in := range []*model.Initiative{
		{ID: "INIT-2", Name: "Warehouse automation", ValueStream: "ops"},
		{ID: "INIT-1", Name: "Claims portal", ValueStream: "digital"},
	} {
		if err := ms.CreateInitiative(ctx, in); err != nil {
			t.Fatalf("create %s: %v", in.ID, err)
		}
	}
	if err := ms.EnsureGateForm(ctx, "INIT-1", model.GateL3); err != nil {
		t.Fatalf("ensure form: %v", err)
	}
	if err := ms.SetInitiativeStatus(ctx, &model.InitiativeStatus{
		InitiativeID:   "INIT-1",
		CostStatus:     model.RAGRed,
		BenefitStatus:  model.RAGGreen,
		TimelineStatus: model.RAGYellow,
		ScopeStatus:    model.RAGGreen,
		UpdatedBy:      "alice",
	}); err != nil {
		t.Fatalf("set status: %v", err)
	}
	for _, ur := range []*model.UserRole{
		{UserID: "sam", Role: model.RoleSTO},
		{UserID: "alice", Role: model.RoleControlTower},
	} {
		if err := ms.SetUserRole(ctx, ur); err != nil {
			t.Fatalf("set role %s: %v", ur.UserID, err)
		}
	}
	if err := ms.SetConfig(ctx, &model.Config{Key: "gate:L3", Value: json.RawMessage(`{"fields":[]}`)}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	return ms
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), memory.New(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	want := header{Version: "1", Type: "header"}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestExportJSONL_Snapshot(t *testing.T) {
	ms := seededStore(t)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 initiatives + 2 roles + 1 config
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	want := header{Version: "1", Type: "header", AsOf: testNow, InitiativeCount: 2, RoleCount: 2, ConfigCount: 1}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}

	var types []string
	for _, line := range lines[1:] {
		var r struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		types = append(types, r.Type)
	}
	if diff := cmp.Diff([]string{"initiative", "initiative", "role", "role", "config"}, types); diff != "" {
		t.Fatalf("record order mismatch (-want +got):\n%s", diff)
	}

	var first struct {
		Data struct {
			Initiative model.Initiative        `json:"initiative"`
			Status     *model.InitiativeStatus `json:"status"`
			Forms      []model.GateForm        `json:"forms"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
		t.Fatalf("unmarshal initiative: %v", err)
	}
	if first.Data.Initiative.ID != "INIT-1" {
		t.Fatalf("expected INIT-1 first, got %s", first.Data.Initiative.ID)
	}
	if first.Data.Status == nil || first.Data.Status.CostStatus != model.RAGRed {
		t.Fatalf("expected embedded red cost status, got %+v", first.Data.Status)
	}
	if len(first.Data.Forms) != 1 || first.Data.Forms[0].Gate != model.GateL3 {
		t.Fatalf("expected one L3 form, got %+v", first.Data.Forms)
	}

	// INIT-2 has no status and no forms.
	if !strings.Contains(lines[2], `"forms":[]`) || strings.Contains(lines[2], `"status"`) {
		t.Fatalf("unexpected INIT-2 record: %s", lines[2])
	}
	if !strings.Contains(lines[3], `"userId":"alice"`) {
		t.Fatalf("expected alice first among roles: %s", lines[3])
	}
}

func TestExportJSONL_Deterministic(t *testing.T) {
	ms := seededStore(t)

	var a, b bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &a); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if err := ExportJSONL(context.Background(), ms, &b); err != nil {
		t.Fatalf("second export: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("exports differ:\n%s\n---\n%s", a.String(), b.String())
	}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
