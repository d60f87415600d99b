package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

// initiativeColumns is the column list used for SELECT statements on the initiatives table.
const initiativeColumns = `id, name, description, value_stream, owner, created_at, created_by, updated_at`

// gateFormColumns is the column list used for SELECT statements on the gate_forms table.
const gateFormColumns = `initiative_id, gate, status, form_data, version,
	submitted_by, submitted_at, approved_by, approved_at,
	rejection_reason, rejected_by, rejected_at,
	change_request_reason, change_requested_by, change_requested_at,
	created_at, updated_at, updated_by`

const statusColumns = `initiative_id, cost_status, benefit_status, timeline_status, scope_status, updated_at, updated_by`

const userRoleColumns = `user_id, role, value_stream, assigned_by, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres error codes translated into store sentinels.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translateError maps constraint violations onto the store's sentinel
// errors: a duplicate key is store.ErrAlreadyExists and a dangling
// initiative reference is sql.ErrNoRows.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return fmt.Errorf("%w: %s", store.ErrAlreadyExists, pqErr.Detail)
	case pqForeignKeyViolation:
		return sql.ErrNoRows
	}
	return err
}

func queryCreateInitiative(ctx context.Context, db executor, in *model.Initiative) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO initiatives (id, name, description, value_stream, owner, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		in.ID, in.Name, in.Description, in.ValueStream, in.Owner, in.CreatedBy,
	).Scan(&in.CreatedAt, &in.UpdatedAt)
	return translateError(err)
}

func queryGetInitiative(ctx context.Context, db executor, id string) (*model.Initiative, error) {
	row := db.QueryRowContext(ctx, `SELECT `+initiativeColumns+` FROM initiatives WHERE id = $1`, id)
	return scanInitiative(row)
}

func queryListInitiatives(ctx context.Context, db executor, filter model.InitiativeFilter) ([]*model.Initiative, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ValueStream != "" {
		whereClauses = append(whereClauses, "value_stream = "+nextArg())
		args = append(args, filter.ValueStream)
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(name ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + initiativeColumns + " FROM initiatives" + whereSQL + " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list initiatives: %w", err)
	}
	defer rows.Close()

	var out []*model.Initiative
	var total int
	for rows.Next() {
		in, t, err := scanInitiativeWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan initiatives: %w", err)
		}
		total = t
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list initiatives rows: %w", err)
	}
	return out, total, nil
}

func queryDeleteInitiative(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM initiatives WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryEnsureGateForm(ctx context.Context, db executor, initiativeID string, gate model.Gate) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO gate_forms (initiative_id, gate)
		VALUES ($1, $2)
		ON CONFLICT (initiative_id, gate) DO NOTHING`,
		initiativeID, string(gate),
	)
	return translateError(err)
}

func queryGetGateForm(ctx context.Context, db executor, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+gateFormColumns+` FROM gate_forms
		WHERE initiative_id = $1 AND gate = $2`,
		initiativeID, string(gate))
	return scanGateForm(row)
}

func queryLockGateForm(ctx context.Context, db executor, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+gateFormColumns+` FROM gate_forms
		WHERE initiative_id = $1 AND gate = $2
		FOR UPDATE`,
		initiativeID, string(gate))
	return scanGateForm(row)
}

func queryListGateForms(ctx context.Context, db executor, initiativeID string) ([]*model.GateForm, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+gateFormColumns+` FROM gate_forms
		WHERE initiative_id = $1
		ORDER BY gate`,
		initiativeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGateForms(rows)
}

// queryUpdateGateForm writes every mutable column of f if the stored version
// still equals expected, bumping the version. A missing row yields
// sql.ErrNoRows and a stale version store.ErrVersionConflict.
func queryUpdateGateForm(ctx context.Context, db executor, f *model.GateForm, expected int64) error {
	err := db.QueryRowContext(ctx, `
		UPDATE gate_forms SET
			status = $3, form_data = $4, version = version + 1,
			submitted_by = $5, submitted_at = $6,
			approved_by = $7, approved_at = $8,
			rejection_reason = $9, rejected_by = $10, rejected_at = $11,
			change_request_reason = $12, change_requested_by = $13, change_requested_at = $14,
			updated_at = $15, updated_by = $16
		WHERE initiative_id = $1 AND gate = $2 AND version = $17
		RETURNING version, updated_at`,
		f.InitiativeID,
		string(f.Gate),
		string(f.Status),
		jsonbBytes(formData(f)),
		nullString(f.SubmittedBy),
		nullTimePtr(f.SubmittedAt),
		nullString(f.ApprovedBy),
		nullTimePtr(f.ApprovedAt),
		nullString(f.RejectionReason),
		nullString(f.RejectedBy),
		nullTimePtr(f.RejectedAt),
		nullString(f.ChangeRequestReason),
		nullString(f.ChangeRequestedBy),
		nullTimePtr(f.ChangeRequestedAt),
		f.UpdatedAt,
		nullString(f.UpdatedBy),
		expected,
	).Scan(&f.Version, &f.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var current int64
	err = db.QueryRowContext(ctx, `
		SELECT version FROM gate_forms WHERE initiative_id = $1 AND gate = $2`,
		f.InitiativeID, string(f.Gate)).Scan(&current)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w (have %d, stored %d)", store.ErrVersionConflict, expected, current)
}

func formData(f *model.GateForm) []byte {
	if len(f.FormData) == 0 {
		return model.EmptyFormData
	}
	return f.FormData
}

func queryGetInitiativeStatus(ctx context.Context, db executor, initiativeID string) (*model.InitiativeStatus, error) {
	row := db.QueryRowContext(ctx, `SELECT `+statusColumns+` FROM initiative_statuses WHERE initiative_id = $1`, initiativeID)
	return scanInitiativeStatus(row)
}

func querySetInitiativeStatus(ctx context.Context, db executor, s *model.InitiativeStatus) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO initiative_statuses (initiative_id, cost_status, benefit_status, timeline_status, scope_status, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (initiative_id) DO UPDATE SET
			cost_status = $2, benefit_status = $3, timeline_status = $4, scope_status = $5,
			updated_by = $6, updated_at = NOW()
		RETURNING updated_at`,
		s.InitiativeID,
		string(s.CostStatus),
		string(s.BenefitStatus),
		string(s.TimelineStatus),
		string(s.ScopeStatus),
		nullString(s.UpdatedBy),
	).Scan(&s.UpdatedAt)
	return translateError(err)
}

func queryGetUserRole(ctx context.Context, db executor, userID string) (*model.UserRole, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userRoleColumns+` FROM user_roles WHERE user_id = $1`, userID)
	return scanUserRole(row)
}

// queryEnsureUserRole provisions userID under a table lock so that of two
// concurrent first users only one becomes control_tower. db must be a
// transaction for the lock to be held across both statements.
func queryEnsureUserRole(ctx context.Context, db executor, userID string) (*model.UserRole, error) {
	if err := lockUserRoles(ctx, db); err != nil {
		return nil, err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role)
		SELECT $1, CASE WHEN EXISTS (SELECT 1 FROM user_roles) THEN 'slt' ELSE 'control_tower' END
		ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("provision user role: %w", err)
	}
	return queryGetUserRole(ctx, db, userID)
}

// lockUserRoles serializes role writers until the transaction ends. Plain
// reads are not blocked.
func lockUserRoles(ctx context.Context, db executor) error {
	if _, err := db.ExecContext(ctx, `LOCK TABLE user_roles IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock user_roles: %w", err)
	}
	return nil
}

func querySetUserRole(ctx context.Context, db executor, ur *model.UserRole) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO user_roles (user_id, role, value_stream, assigned_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			role = $2, value_stream = $3, assigned_by = $4, updated_at = NOW()
		RETURNING created_at, updated_at`,
		ur.UserID, string(ur.Role), nullString(ur.ValueStream), nullString(ur.AssignedBy),
	).Scan(&ur.CreatedAt, &ur.UpdatedAt)
}

func queryListUserRoles(ctx context.Context, db executor) ([]*model.UserRole, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userRoleColumns+` FROM user_roles ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUserRoles(rows)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, initiative_id, gate, actor, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.Topic, nullString(e.InitiativeID), nullString(string(e.Gate)), nullString(e.Actor), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, initiativeID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, initiative_id, gate, actor, payload, created_at
		FROM events
		WHERE initiative_id = $1
		ORDER BY id ASC`,
		initiativeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func querySetConfig(ctx context.Context, db executor, c *model.Config) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO configs (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
		RETURNING created_at, updated_at`,
		c.Key, []byte(c.Value),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func queryGetConfig(ctx context.Context, db executor, key string) (*model.Config, error) {
	row := db.QueryRowContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs WHERE key = $1`, key)
	return scanConfig(row)
}

func queryListConfigs(ctx context.Context, db executor, namespace string) ([]*model.Config, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs WHERE key LIKE $1 || ':%'
		ORDER BY key`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConfigs(rows)
}

func queryListAllConfigs(ctx context.Context, db executor) ([]*model.Config, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConfigs(rows)
}

func queryDeleteConfig(ctx context.Context, db executor, key string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM configs WHERE key = $1`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
