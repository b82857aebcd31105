package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProjectIDStableAcrossCase(t *testing.T) {
	if !caseInsensitiveFS() {
		t.Skip("case-insensitive aliasing only applies on darwin/windows")
	}
	dir := t.TempDir()
	lower, err := CanonicalizePath(dir)
	if err != nil {
		t.Fatalf("CanonicalizePath: %v", err)
	}
	upper, err := CanonicalizePath(strings.ToUpper(dir))
	if err != nil {
		t.Fatalf("CanonicalizePath (upper): %v", err)
	}
	if ProjectID(lower) != ProjectID(upper) {
		t.Fatalf("ProjectID mismatch across case: %q vs %q", lower, upper)
	}
}

func TestProjectIDDeterministic(t *testing.T) {
	a := ProjectID("/home/dev/project")
	b := ProjectID("/home/dev/project")
	if a != b {
		t.Fatalf("ProjectID not deterministic: %q vs %q", a, b)
	}
	if ProjectID("/home/dev/project") == ProjectID("/home/dev/other") {
		t.Fatalf("ProjectID collided for distinct paths")
	}
}

func TestKildID(t *testing.T) {
	got := KildID("abc123", "feat/login")
	want := "abc123_feat_login"
	if got != want {
		t.Fatalf("KildID = %q, want %q", got, want)
	}
}

func TestSanitizeBranch(t *testing.T) {
	if got := SanitizeBranch("a/b/c"); got != "a_b_c" {
		t.Fatalf("SanitizeBranch = %q", got)
	}
}

func TestCanonicalizePathResolvesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	viaLink, err := CanonicalizePath(link)
	if err != nil {
		t.Fatal(err)
	}
	viaReal, err := CanonicalizePath(target)
	if err != nil {
		t.Fatal(err)
	}
	if viaLink != viaReal {
		t.Fatalf("canonicalized paths differ: %q vs %q", viaLink, viaReal)
	}
}
