package tmuxshim

import (
	"reflect"
	"testing"
)

func TestParseVersion(t *testing.T) {
	cmd, err := Parse([]string{"-V"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.Kind != KindVersion {
		t.Errorf("Kind = %v, want %v", cmd.Kind, KindVersion)
	}
}

func TestParseStripsSocketFlagRegardlessOfPosition(t *testing.T) {
	cases := [][]string{
		{"-L", "kild", "has-session", "-t", "%0"},
		{"has-session", "-L", "kild", "-t", "%0"},
	}
	for _, args := range cases {
		cmd, err := Parse(args)
		if err != nil {
			t.Fatalf("Parse(%v) error = %v", args, err)
		}
		if cmd.Kind != KindHasSession || cmd.Target != "%0" {
			t.Errorf("Parse(%v) = %+v, want has-session targeting %%0", args, cmd)
		}
	}
}

func TestParseAliases(t *testing.T) {
	cases := map[string]Kind{
		"new":      KindNewSession,
		"neww":     KindNewWindow,
		"lsw":      KindListWindows,
		"splitw":   KindSplitWindow,
		"lsp":      KindListPanes,
		"send":     KindSendKeys,
		"selectp":  KindSelectPane,
		"killp":    KindKillPane,
		"set":      KindSetOption,
		"selectl":  KindSelectLayout,
		"resizep":  KindResizePane,
		"breakp":   KindBreakPane,
		"joinp":    KindJoinPane,
		"display":  KindDisplayMessage,
		"capturep": KindCapturePane,
	}
	for alias, want := range cases {
		cmd, err := Parse([]string{alias})
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", alias, err)
		}
		if cmd.Kind != want {
			t.Errorf("Parse(%q).Kind = %v, want %v", alias, cmd.Kind, want)
		}
	}
}

func TestParseUnknownCommandDoesNotError(t *testing.T) {
	cmd, err := Parse([]string{"swap-pane", "-t", "%1"})
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil (unknown commands are tagged, not rejected)", err)
	}
	if cmd.Kind != KindUnknown {
		t.Errorf("Kind = %v, want %v", cmd.Kind, KindUnknown)
	}
}

func TestParseSendKeysTranslatesTargetAndTokens(t *testing.T) {
	cmd, err := Parse([]string{"send-keys", "-t", "%1", "hello", "Enter"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.Target != "%1" {
		t.Errorf("Target = %q, want %%1", cmd.Target)
	}
	if want := []string{"hello", "Enter"}; !reflect.DeepEqual(cmd.Argv, want) {
		t.Errorf("Argv = %v, want %v", cmd.Argv, want)
	}
}

func TestParseSetOptionJoinsTrailingArgsWithSingleSpace(t *testing.T) {
	cmd, err := Parse([]string{"set-option", "key", "foo", "bar"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.Key != "key" || cmd.Value != "foo bar" {
		t.Errorf("Key/Value = %q/%q, want key/\"foo bar\"", cmd.Key, cmd.Value)
	}
}

func TestParseCapturePaneHonoursStartLine(t *testing.T) {
	cmd, err := Parse([]string{"capture-pane", "-t", "%0", "-S", "-10", "-p"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.StartLine != -10 {
		t.Errorf("StartLine = %d, want -10", cmd.StartLine)
	}
}

func TestParseNewSessionSplitsArgvAfterDoubleDash(t *testing.T) {
	cmd, err := Parse([]string{"new-session", "-d", "-s", "main", "--", "claude", "--resume"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !cmd.Detached {
		t.Error("Detached = false, want true")
	}
	if cmd.Target != "main" {
		t.Errorf("Target = %q, want main", cmd.Target)
	}
	if want := []string{"claude", "--resume"}; !reflect.DeepEqual(cmd.Argv, want) {
		t.Errorf("Argv = %v, want %v", cmd.Argv, want)
	}
}
