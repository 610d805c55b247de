package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	in := &Config{
		Host:  "127.0.0.1",
		Port:  9000,
		Shell: "/bin/zsh",
		Token: "abc123",
		Planner: PlannerConfig{
			APIKey:  "sk-test",
			Model:   "gpt-4o-mini",
			BaseURL: "http://localhost:1234/v1",
		},
	}
	if err := in.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	out := &Config{}
	if err := out.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if *out != *in {
		t.Errorf("round trip changed config:\n got %+v\nwant %+v", out, in)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600 (it holds the token)", info.Mode().Perm())
	}
}

func TestLoadFromFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "port: 9999\nplanner:\n  api_key: from-file\n"
	if err := os.WriteFile(path, []byte(partial), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &Config{Host: "0.0.0.0", Port: 8765, Shell: "/bin/bash"}
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("port = %d, want 9999 from the file", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" || cfg.Shell != "/bin/bash" {
		t.Errorf("defaults lost on partial file: %+v", cfg)
	}
	if cfg.Planner.APIKey != "from-file" {
		t.Errorf("planner api key = %q", cfg.Planner.APIKey)
	}
}

func TestLoadFromFileMissingFile(t *testing.T) {
	cfg := &Config{}
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("err = %v, want a not-exist error", err)
	}
}

func TestLoadFromFileRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [not a port"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &Config{}
	err := cfg.LoadFromFile(path)
	if err == nil {
		t.Fatal("invalid YAML accepted")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("error does not name the file: %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("token length = %d, want 32 hex chars", len(a))
	}
	b, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}
	if a == b {
		t.Error("two generated tokens are identical")
	}
}
