package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

// builtinConfigs provides default config values that are returned when no
// user-defined config exists for a key. Every gate's default checklist is
// exposed as "gate:Lx" so operators can fetch it, edit it and PUT it back.
var builtinConfigs = func() map[string]*model.Config {
	m := make(map[string]*model.Config, len(model.Gates))
	for _, g := range model.Gates {
		raw, err := json.Marshal(model.DefaultRequirements(g))
		if err != nil {
			panic(fmt.Sprintf("marshal default requirements for %s: %v", g, err))
		}
		key := model.RequirementsConfigKey(g)
		m[key] = &model.Config{Key: key, Value: raw}
	}
	return m
}()

var builtinConfigsByNamespace = func() map[string][]*model.Config {
	m := map[string][]*model.Config{}
	for key, cfg := range builtinConfigs {
		if i := strings.Index(key, ":"); i > 0 {
			ns := key[:i]
			m[ns] = append(m[ns], cfg)
		}
	}
	return m
}()

// resolveRequirements returns the checklist for gate: the config override
// if one is stored, otherwise the built-in default.
func resolveRequirements(ctx context.Context, r store.Store, gate model.Gate) (*model.GateRequirements, error) {
	c, err := r.GetConfig(ctx, model.RequirementsConfigKey(gate))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultRequirements(gate), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load requirements for %s: %w", gate, err)
	}
	return model.ParseRequirements(gate, c.Value)
}

// validateConfig rejects values the server itself would fail to read back.
func validateConfig(c *model.Config) error {
	if len(c.Value) == 0 || !json.Valid(c.Value) {
		return inputError("value must be valid JSON")
	}
	ns, name, ok := strings.Cut(c.Key, ":")
	if !ok || ns == "" || name == "" {
		return inputError(`key must have the form "namespace:name"`)
	}
	if ns == "gate" {
		g, err := model.ParseGate(name)
		if err != nil || string(g) != name {
			return inputError(fmt.Sprintf("unknown gate %q in key %q", name, c.Key))
		}
		if _, err := model.ParseRequirements(g, c.Value); err != nil {
			return inputError(err.Error())
		}
	}
	return nil
}

// getConfig returns a stored config or its builtin default.
func (s *GatesServer) getConfig(ctx context.Context, key string) (*model.Config, error) {
	c, err := s.store.GetConfig(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		if builtin, ok := builtinConfigs[key]; ok {
			return builtin, nil
		}
	}
	return c, err
}

// listConfigsWithBuiltins returns configs in namespace (all configs when
// namespace is empty), merging in any builtin defaults that haven't been
// overridden by user-defined configs.
func (s *GatesServer) listConfigsWithBuiltins(ctx context.Context, namespace string) ([]*model.Config, error) {
	var (
		configs  []*model.Config
		builtins []*model.Config
		err      error
	)
	if namespace == "" {
		configs, err = s.store.ListAllConfigs(ctx)
		for _, b := range builtinConfigs {
			builtins = append(builtins, b)
		}
	} else {
		configs, err = s.store.ListConfigs(ctx, namespace)
		builtins = builtinConfigsByNamespace[namespace]
	}
	if err != nil {
		return nil, err
	}

	stored := make(map[string]struct{}, len(configs))
	for _, c := range configs {
		stored[c.Key] = struct{}{}
	}
	for _, b := range builtins {
		if _, ok := stored[b.Key]; !ok {
			configs = append(configs, b)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Key < configs[j].Key })
	return configs, nil
}
