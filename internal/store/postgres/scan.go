package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/lgates/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanInitiative scans a single row into a model.Initiative.
// The row must contain columns in the order defined by initiativeColumns.
func scanInitiative(row scannable) (*model.Initiative, error) {
	var in model.Initiative
	err := row.Scan(
		&in.ID,
		&in.Name,
		&in.Description,
		&in.ValueStream,
		&in.Owner,
		&in.CreatedAt,
		&in.CreatedBy,
		&in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// scanInitiativeWithTotal scans a row that has a leading total_count column
// followed by the initiative columns.
func scanInitiativeWithTotal(row scannable) (*model.Initiative, int, error) {
	var total int
	var in model.Initiative
	err := row.Scan(
		&total,
		&in.ID,
		&in.Name,
		&in.Description,
		&in.ValueStream,
		&in.Owner,
		&in.CreatedAt,
		&in.CreatedBy,
		&in.UpdatedAt,
	)
	if err != nil {
		return nil, 0, err
	}
	return &in, total, nil
}

// scanGateForm scans a single row into a model.GateForm.
// The row must contain columns in the order defined by gateFormColumns.
func scanGateForm(row scannable) (*model.GateForm, error) {
	var f model.GateForm
	var (
		data                []byte
		submittedBy         sql.NullString
		submittedAt         sql.NullTime
		approvedBy          sql.NullString
		approvedAt          sql.NullTime
		rejectionReason     sql.NullString
		rejectedBy          sql.NullString
		rejectedAt          sql.NullTime
		changeRequestReason sql.NullString
		changeRequestedBy   sql.NullString
		changeRequestedAt   sql.NullTime
		updatedBy           sql.NullString
	)

	err := row.Scan(
		&f.InitiativeID,
		&f.Gate,
		&f.Status,
		&data,
		&f.Version,
		&submittedBy,
		&submittedAt,
		&approvedBy,
		&approvedAt,
		&rejectionReason,
		&rejectedBy,
		&rejectedAt,
		&changeRequestReason,
		&changeRequestedBy,
		&changeRequestedAt,
		&f.CreatedAt,
		&f.UpdatedAt,
		&updatedBy,
	)
	if err != nil {
		return nil, err
	}

	f.FormData = json.RawMessage(data)
	if len(f.FormData) == 0 {
		f.FormData = json.RawMessage(`{}`)
	}
	f.SubmittedBy = submittedBy.String
	f.SubmittedAt = timePtr(submittedAt)
	f.ApprovedBy = approvedBy.String
	f.ApprovedAt = timePtr(approvedAt)
	f.RejectionReason = rejectionReason.String
	f.RejectedBy = rejectedBy.String
	f.RejectedAt = timePtr(rejectedAt)
	f.ChangeRequestReason = changeRequestReason.String
	f.ChangeRequestedBy = changeRequestedBy.String
	f.ChangeRequestedAt = timePtr(changeRequestedAt)
	f.UpdatedBy = updatedBy.String

	return &f, nil
}

// scanGateForms scans multiple rows into a slice of model.GateForm pointers.
func scanGateForms(rows *sql.Rows) ([]*model.GateForm, error) {
	var forms []*model.GateForm
	for rows.Next() {
		f, err := scanGateForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return forms, nil
}

// scanInitiativeStatus scans a single row into a model.InitiativeStatus.
func scanInitiativeStatus(row scannable) (*model.InitiativeStatus, error) {
	var s model.InitiativeStatus
	var updatedBy sql.NullString
	err := row.Scan(
		&s.InitiativeID,
		&s.CostStatus,
		&s.BenefitStatus,
		&s.TimelineStatus,
		&s.ScopeStatus,
		&s.UpdatedAt,
		&updatedBy,
	)
	if err != nil {
		return nil, err
	}
	s.UpdatedBy = updatedBy.String
	return &s, nil
}

// scanUserRole scans a single row into a model.UserRole.
func scanUserRole(row scannable) (*model.UserRole, error) {
	var ur model.UserRole
	var (
		valueStream sql.NullString
		assignedBy  sql.NullString
	)
	err := row.Scan(&ur.UserID, &ur.Role, &valueStream, &assignedBy, &ur.CreatedAt, &ur.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ur.ValueStream = valueStream.String
	ur.AssignedBy = assignedBy.String
	return &ur, nil
}

// scanUserRoles scans multiple rows into a slice of model.UserRole pointers.
func scanUserRoles(rows *sql.Rows) ([]*model.UserRole, error) {
	var roles []*model.UserRole
	for rows.Next() {
		ur, err := scanUserRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, ur)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		initiativeID sql.NullString
		gate         sql.NullString
		actor        sql.NullString
		payload      []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &initiativeID, &gate, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.InitiativeID = initiativeID.String
	e.Gate = model.Gate(gate.String)
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// scanConfig scans a single row into a model.Config.
func scanConfig(row scannable) (*model.Config, error) {
	var c model.Config
	var value []byte
	err := row.Scan(&c.Key, &value, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Value = json.RawMessage(value)
	return &c, nil
}

// scanConfigs scans multiple rows into a slice of model.Config pointers.
func scanConfigs(rows *sql.Rows) ([]*model.Config, error) {
	var configs []*model.Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

// timePtr converts a sql.NullTime to a *time.Time; null is nil.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
