package promptio

import (
	"testing"

	"github.com/shellsage/shellsage/internal/shellerr"
)

func TestParseCommand_WholeJSON(t *testing.T) {
	cmd, err := ParseCommand(`{"cmd":"ls -la"}`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd != "ls -la" {
		t.Fatalf("cmd=%q want %q", cmd, "ls -la")
	}
}

func TestParseCommand_FencedJSON(t *testing.T) {
	raw := "Here you go:\n```json\n{\"cmd\": \"df -h\"}\n```\n"
	cmd, err := ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd != "df -h" {
		t.Fatalf("cmd=%q want %q", cmd, "df -h")
	}
}

func TestParseCommand_BalancedBraces(t *testing.T) {
	raw := `Sure! {"cmd": "du -sh ."} is the command you want.`
	cmd, err := ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd != "du -sh ." {
		t.Fatalf("cmd=%q want %q", cmd, "du -sh .")
	}
}

func TestParseCommand_BacktickFallback(t *testing.T) {
	raw := "You should run `echo hello` in your terminal."
	cmd, err := ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd != "echo hello" {
		t.Fatalf("cmd=%q want %q", cmd, "echo hello")
	}
}

func TestParseCommand_PlainLineLastResort(t *testing.T) {
	raw := "\n\nls -la\n"
	cmd, err := ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd != "ls -la" {
		t.Fatalf("cmd=%q want %q", cmd, "ls -la")
	}
}

func TestParseCommand_EmptyIsUnparseable(t *testing.T) {
	_, err := ParseCommand("")
	if !shellerr.Of(err, shellerr.ResponseUnparseable) {
		t.Fatalf("expected ResponseUnparseable, got %v", err)
	}
}

func TestParseCommand_MultilineJSONCmdIsRejected(t *testing.T) {
	_, err := ParseCommand(`{"cmd": "ls -la\nrm -rf /"}`)
	if !shellerr.Of(err, shellerr.ResponseUnparseable) {
		t.Fatalf("expected ResponseUnparseable for multi-line command, got %v", err)
	}
}

func TestParseCommand_BackslashContinuationAccepted(t *testing.T) {
	cmd, err := ParseCommand("{\"cmd\": \"echo hello \\\\\\nworld\"}")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd == "" {
		t.Fatalf("expected non-empty command")
	}
}

func TestParseCommand_NeverReturnsEmptyOrMultiline(t *testing.T) {
	inputs := []string{
		`{"cmd":"ls"}`,
		"```json\n{\"cmd\":\"ls -la\"}\n```",
		"noise {\"cmd\":\"pwd\"} noise",
		"`whoami`",
		"just a plain line",
		"not json at all { unbalanced",
		"",
	}
	for _, in := range inputs {
		cmd, err := ParseCommand(in)
		if err != nil {
			continue
		}
		if cmd == "" {
			t.Fatalf("input %q: got empty command with no error", in)
		}
		for _, r := range cmd {
			if r == '\n' || r == '\r' {
				t.Fatalf("input %q: got multi-line command %q", in, cmd)
			}
		}
	}
}
