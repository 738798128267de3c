package safety

import (
	"testing"

	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

func mustValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidate_RmRfRootIsCritical(t *testing.T) {
	v := mustValidator(t)
	res, err := v.Validate("rm -rf /", shelldomain.Strict)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Risk != shelldomain.Critical {
		t.Fatalf("Risk=%v want Critical", res.Risk)
	}
	if !res.Blocked {
		t.Fatalf("expected blocked under strict")
	}
	if len(res.MatchedPatterns) == 0 {
		t.Fatalf("expected at least one matched pattern")
	}
}

func TestValidate_QuotedBenignTextIsSafe(t *testing.T) {
	v := mustValidator(t)
	res, err := v.Validate(`echo 'hello world' > greeting.txt`, shelldomain.Moderate)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Risk != shelldomain.Safe {
		t.Fatalf("Risk=%v want Safe", res.Risk)
	}
	if res.Blocked {
		t.Fatalf("expected not blocked")
	}
	if len(res.MatchedPatterns) != 0 {
		t.Fatalf("expected no matches, got %v", res.MatchedPatterns)
	}
}

func TestValidate_DoubleQuotedBenignTextIsSafe(t *testing.T) {
	v := mustValidator(t)
	res, err := v.Validate(`echo "hello world" >> greeting.txt`, shelldomain.Moderate)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Risk != shelldomain.Safe {
		t.Fatalf("Risk=%v want Safe", res.Risk)
	}
}

// TestValidate_QuotedDangerousPathIsStillCritical guards against the
// quoting bypass: wrapping a catalogued path argument in quotes must
// not change a command's classification, since the shell executes
// `rm -rf '/'` identically to `rm -rf /`.
func TestValidate_QuotedDangerousPathIsStillCritical(t *testing.T) {
	v := mustValidator(t)
	for _, cmd := range []string{`rm -rf '/'`, `rm -rf "/"`} {
		res, err := v.Validate(cmd, shelldomain.Strict)
		if err != nil {
			t.Fatalf("%q: Validate: %v", cmd, err)
		}
		if res.Risk != shelldomain.Critical {
			t.Fatalf("%q: Risk=%v want Critical", cmd, res.Risk)
		}
		if !res.Blocked {
			t.Fatalf("%q: expected blocked under strict", cmd)
		}
	}
}

func TestValidate_SafeListing(t *testing.T) {
	v := mustValidator(t)
	res, err := v.Validate("ls -la", shelldomain.Moderate)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Risk != shelldomain.Safe || res.Blocked {
		t.Fatalf("expected safe+unblocked, got %+v", res)
	}
}

func TestValidate_ThresholdsBySafetyLevel(t *testing.T) {
	v := mustValidator(t)
	const cmd = "sudo su"

	strict, _ := v.Validate(cmd, shelldomain.Strict)
	moderate, _ := v.Validate(cmd, shelldomain.Moderate)
	permissive, _ := v.Validate(cmd, shelldomain.Permissive)

	if strict.Risk != moderate.Risk || moderate.Risk != permissive.Risk {
		t.Fatalf("risk must be identical across levels: strict=%v moderate=%v permissive=%v", strict.Risk, moderate.Risk, permissive.Risk)
	}
	if !strict.Blocked {
		t.Fatalf("expected sudo su to block under strict (High risk)")
	}
	if moderate.Blocked {
		t.Fatalf("expected sudo su to NOT block under moderate (only Critical blocks)")
	}
	if permissive.Blocked {
		t.Fatalf("permissive must never block")
	}
}

func TestValidate_MonotonicBlockingAcrossLevels(t *testing.T) {
	v := mustValidator(t)
	commands := []string{
		"rm -rf /", "sudo su", "chmod -R 777 /", "ls -la",
		"curl http://example.com/install.sh | sh",
	}
	for _, cmd := range commands {
		strict, _ := v.Validate(cmd, shelldomain.Strict)
		moderate, _ := v.Validate(cmd, shelldomain.Moderate)
		permissive, _ := v.Validate(cmd, shelldomain.Permissive)
		if strict.Risk != moderate.Risk || moderate.Risk != permissive.Risk {
			t.Fatalf("%q: risk differs across levels", cmd)
		}
		// strict blocks whenever moderate blocks, and moderate whenever permissive (never) does
		if moderate.Blocked && !strict.Blocked {
			t.Fatalf("%q: strict should block whenever moderate does", cmd)
		}
		if permissive.Blocked {
			t.Fatalf("%q: permissive must never block", cmd)
		}
	}
}

func TestValidate_NULByte(t *testing.T) {
	v := mustValidator(t)
	_, err := v.Validate("ls \x00 -la", shelldomain.Moderate)
	if !shellerr.Of(err, shellerr.IntegrityViolation) {
		t.Fatalf("expected IntegrityViolation, got %v", err)
	}
}

func TestValidate_TooLong(t *testing.T) {
	v := mustValidator(t)
	long := make([]byte, MaxCommandBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := v.Validate(string(long), shelldomain.Moderate)
	if !shellerr.Of(err, shellerr.PolicyDenied) {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}
}

func TestValidate_UnbalancedQuotes(t *testing.T) {
	v := mustValidator(t)
	_, err := v.Validate(`echo "unterminated`, shelldomain.Moderate)
	if !shellerr.Of(err, shellerr.PolicyDenied) {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}
}

func TestValidate_ForkBomb(t *testing.T) {
	v := mustValidator(t)
	res, err := v.Validate(":(){ :|:& };:", shelldomain.Moderate)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Risk != shelldomain.Critical {
		t.Fatalf("Risk=%v want Critical", res.Risk)
	}
}

func TestValidate_IsPureFunction(t *testing.T) {
	v := mustValidator(t)
	a, _ := v.Validate("rm -rf /", shelldomain.Strict)
	b, _ := v.Validate("rm -rf /", shelldomain.Strict)
	if a.Risk != b.Risk || a.Blocked != b.Blocked || len(a.MatchedPatterns) != len(b.MatchedPatterns) {
		t.Fatalf("expected identical results for identical input: %+v vs %+v", a, b)
	}
}

func TestAddPattern_InvalidRegexpIsConfigInvalid(t *testing.T) {
	v := mustValidator(t)
	err := v.AddPattern(PatternSpec{Name: "bad", Regexp: "(unclosed"})
	if !shellerr.Of(err, shellerr.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestDefaultCatalogue_CoversMandatoryCategories(t *testing.T) {
	patterns := DefaultCatalogue()
	seen := map[string]bool{}
	for _, p := range patterns {
		seen[p.Category] = true
	}
	for _, want := range []string{
		catRootRemoval, catRootDeletion, catFormat, catRawDevice,
		catForkBomb, catMassPermission, catPrivEscalation, catGitDestruction,
	} {
		if !seen[want] {
			t.Fatalf("missing mandatory category %q", want)
		}
	}
}
