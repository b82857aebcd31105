package hooks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kild-dev/kild/internal/kildpaths"
)

func testPaths(t *testing.T) *kildpaths.Paths {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	p, err := kildpaths.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEnsureClaudeStatusHookCreatesExecutableScript(t *testing.T) {
	p := testPaths(t)
	if err := EnsureClaudeStatusHook(p); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(p.ClaudeStatusHook())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o111 == 0 {
		t.Fatalf("hook script should be executable, mode %o", info.Mode())
	}
	content, err := os.ReadFile(p.ClaudeStatusHook())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"#!/bin/sh", "hook_event_name", "permission_prompt", "idle_prompt", "branch == \"brain\""} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("script missing %q", want)
		}
	}
}

func TestEnsureClaudeStatusHookAlwaysOverwrites(t *testing.T) {
	p := testPaths(t)
	if err := EnsureClaudeStatusHook(p); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(p.ClaudeStatusHook())
	if err := os.WriteFile(p.ClaudeStatusHook(), []byte("#!/bin/sh\n# user edit\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := EnsureClaudeStatusHook(p); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(p.ClaudeStatusHook())
	if string(first) != string(second) {
		t.Fatalf("an edited hook script should be overwritten with the template")
	}
}

func TestEnsureClaudeSettingsCreatesNewConfig(t *testing.T) {
	p := testPaths(t)
	if err := EnsureClaudeSettings(p); err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	data, err := os.ReadFile(p.ClaudeSettings)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	hooks := parsed["hooks"].(map[string]any)
	for _, event := range []string{"Stop", "Notification", "SubagentStop", "TeammateIdle", "TaskCompleted"} {
		if _, ok := hooks[event]; !ok {
			t.Fatalf("missing %s hook entry", event)
		}
	}
	notif := hooks["Notification"].([]any)[0].(map[string]any)
	if notif["matcher"] != "permission_prompt|idle_prompt" {
		t.Fatalf("Notification matcher = %v", notif["matcher"])
	}
}

func TestEnsureClaudeSettingsPreservesExistingFields(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(p.ClaudeSettings), 0o755); err != nil {
		t.Fatal(err)
	}
	existing := `{"permissions": {"allow": ["Bash(*)"]}, "enabledPlugins": ["my-plugin"]}`
	if err := os.WriteFile(p.ClaudeSettings, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureClaudeSettings(p); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(p.ClaudeSettings)
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	perms := parsed["permissions"].(map[string]any)
	if perms["allow"].([]any)[0] != "Bash(*)" {
		t.Fatalf("existing permissions not preserved: %v", parsed)
	}
	if parsed["enabledPlugins"].([]any)[0] != "my-plugin" {
		t.Fatalf("existing enabledPlugins not preserved: %v", parsed)
	}
	if _, ok := parsed["hooks"].(map[string]any)["Stop"]; !ok {
		t.Fatalf("Stop hook not added")
	}
}

func TestEnsureClaudeSettingsPreservesExistingUserHooks(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(p.ClaudeSettings), 0o755); err != nil {
		t.Fatal(err)
	}
	existing := `{"hooks":{"PreToolUse":[{"matcher":"Bash","hooks":[{"type":"command","command":"/usr/local/bin/my-linter"}]}]}}`
	if err := os.WriteFile(p.ClaudeSettings, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureClaudeSettings(p); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(p.ClaudeSettings)
	if !strings.Contains(string(data), "my-linter") {
		t.Fatalf("existing PreToolUse hook dropped: %s", data)
	}
}

func TestEnsureClaudeSettingsIdempotent(t *testing.T) {
	p := testPaths(t)
	if err := EnsureClaudeSettings(p); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(p.ClaudeSettings)
	if err := EnsureClaudeSettings(p); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(p.ClaudeSettings)
	if string(first) != string(second) {
		t.Fatalf("second call should be a no-op:\n%s\nvs\n%s", first, second)
	}
}

func TestEnsureClaudeSettingsPartialIdempotency(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(p.ClaudeSettings), 0o755); err != nil {
		t.Fatal(err)
	}
	existing := `{"hooks":{"Stop":[{"hooks":[{"type":"command","command":"` + p.ClaudeStatusHook() + `","timeout":5}]}]}}`
	if err := os.WriteFile(p.ClaudeSettings, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureClaudeSettings(p); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(p.ClaudeSettings)
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	hooks := parsed["hooks"].(map[string]any)
	if len(hooks["Stop"].([]any)) != 1 {
		t.Fatalf("Stop hook should not be duplicated: %v", hooks["Stop"])
	}
	for _, event := range []string{"SubagentStop", "TeammateIdle", "TaskCompleted", "Notification"} {
		if _, ok := hooks[event]; !ok {
			t.Fatalf("missing event %s should have been added", event)
		}
	}
}

func TestEnsureClaudeSettingsMalformedJSONFails(t *testing.T) {
	p := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(p.ClaudeSettings), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.ClaudeSettings, []byte("{invalid json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureClaudeSettings(p); err == nil {
		t.Fatalf("expected parse error on malformed settings.json")
	}
	data, _ := os.ReadFile(p.ClaudeSettings)
	if string(data) != "{invalid json\n" {
		t.Fatalf("malformed file must not be modified, got: %s", data)
	}
}
