package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":  {URL: "https://lgates.example.com", Token: "tok_abc", NATSURL: "nats://prod:4222"},
			"local": {URL: "http://localhost:8080"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" {
		t.Errorf("Active = %q, want %q", got.Active, "prod")
	}
	if prod := got.Remotes["prod"]; prod != in.Remotes["prod"] {
		t.Errorf("prod remote = %+v", prod)
	}
}

func TestLoadRemotesConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || len(cfg.Remotes) != 0 || cfg.Remotes == nil {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadRemotesConfig_Corrupt(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path, err := remoteConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("active = ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRemotesConfig(); err == nil || !strings.Contains(err.Error(), "remotes.toml") {
		t.Fatalf("expected a parse error naming the file, got %v", err)
	}
}

func TestSaveRemotesConfig_Permissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, _ := remoteConfigPath()
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
}

func TestRemoteLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := runCmd(t, remoteAddCmd, []string{"local", "http://localhost:8080"}); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, remoteAddCmd, []string{"prod", "https://lgates.example.com"}, "token", "tok_verylongsecret", "nats", "nats://prod:4222"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, remoteUseCmd, []string{"prod"}); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, remoteListCmd, nil)
	if err != nil {
		t.Fatal(err)
	}
	mustContain(t, out, "* prod")
	mustContain(t, out, "tok_very**********")
	if strings.Contains(out, "tok_verylongsecret") {
		t.Error("full token must not appear in list output")
	}
	if strings.Index(out, "local") > strings.Index(out, "prod") {
		t.Errorf("remotes not sorted:\n%s", out)
	}

	if _, err := runCmd(t, remoteRemoveCmd, []string{"prod"}); err != nil {
		t.Fatal(err)
	}
	cfg, _ := loadRemotesConfig()
	if _, ok := cfg.Remotes["prod"]; ok || cfg.Active != "" {
		t.Errorf("prod should be gone and inactive, got %+v", cfg)
	}
}

func TestRemoteErrorCases(t *testing.T) {
	for _, tc := range []struct {
		name string
		fn   func() error
	}{
		{"use unknown", func() error { _, err := runCmd(t, remoteUseCmd, []string{"ghost"}); return err }},
		{"remove unknown", func() error { _, err := runCmd(t, remoteRemoveCmd, []string{"ghost"}); return err }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if err := tc.fn(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
