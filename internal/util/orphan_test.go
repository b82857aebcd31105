//go:build !windows

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseEtime(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		// MM:SS format
		{"00:30", 30, false},
		{"01:00", 60, false},
		{"01:23", 83, false},
		{"59:59", 3599, false},

		// HH:MM:SS format
		{"00:01:00", 60, false},
		{"01:00:00", 3600, false},
		{"01:02:03", 3723, false},
		{"23:59:59", 86399, false},

		// DD-HH:MM:SS format
		{"1-00:00:00", 86400, false},
		{"2-01:02:03", 176523, false},
		{"7-12:30:45", 649845, false},

		// Edge cases
		{"00:00", 0, false},
		{"0-00:00:00", 0, false},

		{"garbage", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseEtime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseEtime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("parseEtime(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindOrphanedClaudeProcesses(t *testing.T) {
	// Live test against the current process table. Should not fail — just
	// report whatever orphans exist (likely none in CI, since CI has no
	// kild worktrees).
	orphans, err := FindOrphanedClaudeProcesses()
	if err != nil {
		t.Fatalf("FindOrphanedClaudeProcesses() error = %v", err)
	}

	t.Logf("found %d orphaned agent process(es)", len(orphans))
	for _, o := range orphans {
		t.Logf("  PID %d (%s): %s", o.PID, o.Agent, o.Cmd)
	}
}

func TestGetProcessCwd(t *testing.T) {
	cwd := getProcessCwd(os.Getpid())
	if cwd == "" {
		t.Fatal("getProcessCwd(self) returned empty string")
	}
	expected, err := os.Getwd()
	if err != nil {
		t.Fatalf("os.Getwd() error: %v", err)
	}
	if cwd != expected {
		t.Errorf("getProcessCwd(self) = %q, want %q", cwd, expected)
	}
}

func TestIsInKildWorktree(t *testing.T) {
	// NOTE: this test calls os.Chdir on the process-global cwd. Do NOT add
	// t.Parallel() here or to any test in this file — concurrent tests
	// sharing one process would race on the working directory.

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	worktreeDir := filepath.Join(tmpDir, ".kild-worktrees", "feat_login")
	if err := os.MkdirAll(worktreeDir, 0o755); err != nil {
		t.Fatal(err)
	}

	nonWorktreeDir := t.TempDir()
	if err := os.Chdir(nonWorktreeDir); err != nil {
		t.Fatal(err)
	}
	if isInKildWorktree(os.Getpid()) {
		t.Error("isInKildWorktree(self) = true, want false (not inside a kild worktree)")
	}

	if err := os.Chdir(worktreeDir); err != nil {
		t.Fatal(err)
	}
	if !isInKildWorktree(os.Getpid()) {
		t.Error("isInKildWorktree(self) = false, want true (at worktree root)")
	}

	subDir := filepath.Join(worktreeDir, "src", "nested")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(subDir); err != nil {
		t.Fatal(err)
	}
	if !isInKildWorktree(os.Getpid()) {
		t.Error("isInKildWorktree(self) = false, want true (in worktree subdirectory)")
	}
}

func TestFindOrphanedClaudeProcesses_IgnoresShimAndWrapperProcesses(t *testing.T) {
	cases := []struct {
		args string
		want bool
	}{
		{"tmux attach -t kild-foo", true},
		{"/home/user/.kild/bin/tmux send-keys", true},
		{"/Applications/Claude.app/Contents/MacOS/Claude", true},
		{"claude --session-id abc123", false},
	}
	for _, tc := range cases {
		if got := isShimOrWrapperProcess(tc.args); got != tc.want {
			t.Errorf("isShimOrWrapperProcess(%q) = %v, want %v", tc.args, got, tc.want)
		}
	}
}
