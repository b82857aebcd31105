package hooks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureCodexNotifyHookCreatesExecutableScript(t *testing.T) {
	p := testPaths(t)
	if err := EnsureCodexNotifyHook(p); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(p.CodexNotifyHook())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o111 == 0 {
		t.Fatalf("hook script should be executable, mode %o", info.Mode())
	}
	content, _ := os.ReadFile(p.CodexNotifyHook())
	if !strings.Contains(string(content), "agent-turn-complete") {
		t.Fatalf("script missing event handling: %s", content)
	}
}

func TestEnsureCodexConfigCreatesMissingFile(t *testing.T) {
	p := testPaths(t)
	if err := EnsureCodexConfig(p); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(p.CodexConfig)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "notify = [") || !strings.Contains(string(data), "codex-notify") {
		t.Fatalf("config missing notify entry: %s", data)
	}
}

func TestEnsureCodexConfigPatchesEmptyFile(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(p.CodexConfig), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.CodexConfig, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureCodexConfig(p); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(p.CodexConfig)
	if !strings.Contains(string(data), "notify = [") {
		t.Fatalf("empty config should be patched: %s", data)
	}
}

func TestEnsureCodexConfigRespectsUserNotify(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(p.CodexConfig), 0o755); err != nil {
		t.Fatal(err)
	}
	existing := `notify = ["/usr/local/bin/my-notifier"]` + "\n"
	if err := os.WriteFile(p.CodexConfig, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureCodexConfig(p); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(p.CodexConfig)
	if string(data) != existing {
		t.Fatalf("user-configured notify should not be touched, got: %s", data)
	}
}

func TestEnsureCodexConfigPreservesOtherSettings(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(p.CodexConfig), 0o755); err != nil {
		t.Fatal(err)
	}
	existing := "model = \"o3\"\n"
	if err := os.WriteFile(p.CodexConfig, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureCodexConfig(p); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(p.CodexConfig)
	if !strings.Contains(string(data), "model = \"o3\"") {
		t.Fatalf("existing settings dropped: %s", data)
	}
	if !strings.Contains(string(data), "notify = [") {
		t.Fatalf("notify not appended: %s", data)
	}
}
