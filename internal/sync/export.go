// Package sync exports the governance state as JSONL and ships it to backup
// destinations on a schedule.
package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

// header is the first line of every export.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	AsOf            time.Time `json:"asOf"` // newest change in the export, not wall-clock time
	InitiativeCount int       `json:"initiativeCount"`
	RoleCount       int       `json:"roleCount"`
	ConfigCount     int       `json:"configCount"`
}

type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// initiativeRecord bundles an initiative with the rows that cascade with it.
type initiativeRecord struct {
	Initiative *model.Initiative       `json:"initiative"`
	Status     *model.InitiativeStatus `json:"status,omitempty"`
	Forms      []*model.GateForm       `json:"forms"`
}

// ExportJSONL writes a snapshot of the store to w: a header line, then one
// line per initiative, role and config, each group sorted by key. Equal
// state always produces identical bytes.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	var (
		inits   []initiativeRecord
		roles   []*model.UserRole
		configs []*model.Config
		asOf    time.Time
	)
	newer := func(t time.Time) {
		if t.After(asOf) {
			asOf = t
		}
	}

	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		list, _, err := tx.ListInitiatives(ctx, model.InitiativeFilter{})
		if err != nil {
			return fmt.Errorf("list initiatives: %w", err)
		}
		for _, in := range list {
			rec := initiativeRecord{Initiative: in}
			newer(in.UpdatedAt)

			st, err := tx.GetInitiativeStatus(ctx, in.ID)
			switch {
			case err == nil:
				rec.Status = st
				newer(st.UpdatedAt)
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("get status for %s: %w", in.ID, err)
			}

			if rec.Forms, err = tx.ListGateForms(ctx, in.ID); err != nil {
				return fmt.Errorf("list forms for %s: %w", in.ID, err)
			}
			if rec.Forms == nil {
				rec.Forms = []*model.GateForm{}
			}
			for _, f := range rec.Forms {
				newer(f.UpdatedAt)
			}
			inits = append(inits, rec)
		}

		if roles, err = tx.ListUserRoles(ctx); err != nil {
			return fmt.Errorf("list roles: %w", err)
		}
		for _, r := range roles {
			newer(r.UpdatedAt)
		}

		if configs, err = tx.ListAllConfigs(ctx); err != nil {
			return fmt.Errorf("list configs: %w", err)
		}
		for _, c := range configs {
			newer(c.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(inits, func(i, j int) bool { return inits[i].Initiative.ID < inits[j].Initiative.ID })
	sort.Slice(roles, func(i, j int) bool { return roles[i].UserID < roles[j].UserID })
	sort.Slice(configs, func(i, j int) bool { return configs[i].Key < configs[j].Key })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            "header",
		AsOf:            asOf.UTC(),
		InitiativeCount: len(inits),
		RoleCount:       len(roles),
		ConfigCount:     len(configs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, rec := range inits {
		if err := enc.Encode(record{Type: "initiative", Data: rec}); err != nil {
			return fmt.Errorf("encode initiative %s: %w", rec.Initiative.ID, err)
		}
	}
	for _, r := range roles {
		if err := enc.Encode(record{Type: "role", Data: r}); err != nil {
			return fmt.Errorf("encode role %s: %w", r.UserID, err)
		}
	}
	for _, c := range configs {
		if err := enc.Encode(record{Type: "config", Data: c}); err != nil {
			return fmt.Errorf("encode config %s: %w", c.Key, err)
		}
	}

	return nil
}
