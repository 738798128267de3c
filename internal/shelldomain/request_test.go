package shelldomain

import "testing"

func TestNewRequestContext_FiltersSecrets(t *testing.T) {
	raw := []string{
		"PATH=/usr/bin",
		"AWS_SECRET_ACCESS_KEY=abc123",
		"API_TOKEN=xyz",
		"DB_PASSWORD=hunter2",
		"HOME=/home/user",
		"my_key=val",
		"malformed",
	}
	ctx := NewRequestContext("/home/user", Linux, Bash, raw, "host", "user")

	if _, ok := ctx.Env["AWS_SECRET_ACCESS_KEY"]; ok {
		t.Fatalf("expected AWS_SECRET_ACCESS_KEY to be filtered")
	}
	if _, ok := ctx.Env["API_TOKEN"]; ok {
		t.Fatalf("expected API_TOKEN to be filtered")
	}
	if _, ok := ctx.Env["DB_PASSWORD"]; ok {
		t.Fatalf("expected DB_PASSWORD to be filtered")
	}
	if _, ok := ctx.Env["my_key"]; ok {
		t.Fatalf("expected my_key to be filtered case-insensitively")
	}
	if v, ok := ctx.Env["PATH"]; !ok || v != "/usr/bin" {
		t.Fatalf("expected PATH to survive, got %q ok=%v", v, ok)
	}
	if _, ok := ctx.Env["HOME"]; !ok {
		t.Fatalf("expected HOME to survive")
	}
}

func TestNewRequest_TrimsAndValidates(t *testing.T) {
	ctx := RequestContext{}
	if _, err := NewRequest("   ", Bash, Moderate, ctx); err == nil {
		t.Fatalf("expected error for empty user text")
	}
	req, err := NewRequest("  list files  ", Bash, Moderate, ctx)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.UserText != "list files" {
		t.Fatalf("UserText=%q want trimmed", req.UserText)
	}
}

func TestRiskOrdering(t *testing.T) {
	if !(Safe.Less(RiskModerate) && RiskModerate.Less(High) && High.Less(Critical)) {
		t.Fatalf("expected Safe < Moderate < High < Critical")
	}
	if Safe.Max(Critical) != Critical {
		t.Fatalf("Max should return the higher risk")
	}
}
