package memory

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

type formKey struct {
	initiativeID string
	gate         model.Gate
}

// state holds every table. It is not safe for concurrent use; Store
// serializes access to it.
type state struct {
	initiatives map[string]*model.Initiative
	forms       map[formKey]*model.GateForm
	statuses    map[string]*model.InitiativeStatus
	roles       map[string]*model.UserRole
	events      []*model.Event
	nextEventID int64
	configs     map[string]*model.Config
}

func newState() *state {
	return &state{
		initiatives: make(map[string]*model.Initiative),
		forms:       make(map[formKey]*model.GateForm),
		statuses:    make(map[string]*model.InitiativeStatus),
		roles:       make(map[string]*model.UserRole),
		configs:     make(map[string]*model.Config),
	}
}

// clone returns a deep copy used to roll back a failed transaction.
func (st *state) clone() *state {
	out := newState()
	for k, v := range st.initiatives {
		c := *v
		out.initiatives[k] = &c
	}
	for k, v := range st.forms {
		out.forms[k] = v.Clone()
	}
	for k, v := range st.statuses {
		c := *v
		out.statuses[k] = &c
	}
	for k, v := range st.roles {
		c := *v
		out.roles[k] = &c
	}
	out.events = append([]*model.Event(nil), st.events...)
	out.nextEventID = st.nextEventID
	for k, v := range st.configs {
		out.configs[k] = cloneConfig(v)
	}
	return out
}

func (st *state) createInitiative(in *model.Initiative, now time.Time) error {
	if _, ok := st.initiatives[in.ID]; ok {
		return fmt.Errorf("%w: initiative %s", store.ErrAlreadyExists, in.ID)
	}
	in.CreatedAt = now
	in.UpdatedAt = now
	c := *in
	st.initiatives[in.ID] = &c
	return nil
}

func (st *state) getInitiative(id string) (*model.Initiative, error) {
	in, ok := st.initiatives[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *in
	return &c, nil
}

func (st *state) listInitiatives(filter model.InitiativeFilter) ([]*model.Initiative, int, error) {
	search := strings.ToLower(filter.Search)
	var matched []*model.Initiative
	for _, in := range st.initiatives {
		if filter.ValueStream != "" && in.ValueStream != filter.ValueStream {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(in.Name), search) &&
			!strings.Contains(strings.ToLower(in.Description), search) {
			continue
		}
		c := *in
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (st *state) deleteInitiative(id string) error {
	if _, ok := st.initiatives[id]; !ok {
		return sql.ErrNoRows
	}
	delete(st.initiatives, id)
	delete(st.statuses, id)
	for k := range st.forms {
		if k.initiativeID == id {
			delete(st.forms, k)
		}
	}
	return nil
}

func (st *state) ensureGateForm(initiativeID string, gate model.Gate, now time.Time) error {
	if _, ok := st.initiatives[initiativeID]; !ok {
		return sql.ErrNoRows
	}
	k := formKey{initiativeID, gate}
	if _, ok := st.forms[k]; !ok {
		st.forms[k] = model.NewGateForm(initiativeID, gate, now)
	}
	return nil
}

func (st *state) getGateForm(initiativeID string, gate model.Gate) (*model.GateForm, error) {
	f, ok := st.forms[formKey{initiativeID, gate}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f.Clone(), nil
}

func (st *state) listGateForms(initiativeID string) ([]*model.GateForm, error) {
	var out []*model.GateForm
	for _, g := range model.Gates {
		if f, ok := st.forms[formKey{initiativeID, g}]; ok {
			out = append(out, f.Clone())
		}
	}
	return out, nil
}

func (st *state) updateGateForm(f *model.GateForm, expected int64) error {
	k := formKey{f.InitiativeID, f.Gate}
	cur, ok := st.forms[k]
	if !ok {
		return sql.ErrNoRows
	}
	if cur.Version != expected {
		return fmt.Errorf("%w (have %d, stored %d)", store.ErrVersionConflict, expected, cur.Version)
	}
	f.Version = expected + 1
	f.CreatedAt = cur.CreatedAt
	st.forms[k] = f.Clone()
	return nil
}

func (st *state) getInitiativeStatus(initiativeID string) (*model.InitiativeStatus, error) {
	s, ok := st.statuses[initiativeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *s
	return &c, nil
}

func (st *state) setInitiativeStatus(s *model.InitiativeStatus, now time.Time) error {
	if _, ok := st.initiatives[s.InitiativeID]; !ok {
		return sql.ErrNoRows
	}
	s.UpdatedAt = now
	c := *s
	st.statuses[s.InitiativeID] = &c
	return nil
}

func (st *state) getUserRole(userID string) (*model.UserRole, error) {
	ur, ok := st.roles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *ur
	return &c, nil
}

func (st *state) ensureUserRole(userID string, now time.Time) (*model.UserRole, error) {
	if ur, ok := st.roles[userID]; ok {
		c := *ur
		return &c, nil
	}
	role := model.RoleSLT
	if len(st.roles) == 0 {
		role = model.RoleControlTower
	}
	ur := &model.UserRole{UserID: userID, Role: role, CreatedAt: now, UpdatedAt: now}
	st.roles[userID] = ur
	c := *ur
	return &c, nil
}

func (st *state) setUserRole(ur *model.UserRole, now time.Time) error {
	ur.CreatedAt = now
	if cur, ok := st.roles[ur.UserID]; ok {
		ur.CreatedAt = cur.CreatedAt
	}
	ur.UpdatedAt = now
	c := *ur
	st.roles[ur.UserID] = &c
	return nil
}

func (st *state) listUserRoles() ([]*model.UserRole, error) {
	out := make([]*model.UserRole, 0, len(st.roles))
	for _, ur := range st.roles {
		c := *ur
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (st *state) recordEvent(e *model.Event, now time.Time) error {
	st.nextEventID++
	e.ID = st.nextEventID
	e.CreatedAt = now
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	st.events = append(st.events, &c)
	return nil
}

func (st *state) getEvents(initiativeID string) ([]*model.Event, error) {
	var out []*model.Event
	for _, e := range st.events {
		if e.InitiativeID == initiativeID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (st *state) setConfig(c *model.Config, now time.Time) error {
	c.CreatedAt = now
	if cur, ok := st.configs[c.Key]; ok {
		c.CreatedAt = cur.CreatedAt
	}
	c.UpdatedAt = now
	st.configs[c.Key] = cloneConfig(c)
	return nil
}

func (st *state) getConfig(key string) (*model.Config, error) {
	c, ok := st.configs[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneConfig(c), nil
}

func (st *state) listConfigs(namespace string) ([]*model.Config, error) {
	prefix := namespace + ":"
	var out []*model.Config
	for k, c := range st.configs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, cloneConfig(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (st *state) listAllConfigs() ([]*model.Config, error) {
	out := make([]*model.Config, 0, len(st.configs))
	for _, c := range st.configs {
		out = append(out, cloneConfig(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (st *state) deleteConfig(key string) error {
	if _, ok := st.configs[key]; !ok {
		return sql.ErrNoRows
	}
	delete(st.configs, key)
	return nil
}

func cloneConfig(c *model.Config) *model.Config {
	out := *c
	out.Value = append([]byte(nil), c.Value...)
	return &out
}
