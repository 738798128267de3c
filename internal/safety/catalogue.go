package safety

import (
	"regexp"

	"github.com/shellsage/shellsage/internal/shelldomain"
)

// PatternSpec is the caller-facing description of a custom rule, as
// accepted by AddPattern / NewValidator's extra argument. Regexp is a
// Go regexp source string, compiled as written (a rule that should
// ignore case carries its own (?i) flag, as the default rules do) and
// matched against the command text with quote delimiters stripped but quoted content
// intact, so a rule's own optional-quote groups can still catch a
// quoted dangerous argument.
type PatternSpec struct {
	Name        string
	Regexp      string
	Risk        shelldomain.Risk
	Category    string
	Description string
}

// Pattern is a PatternSpec with its regular expression pre-compiled.
type Pattern struct {
	Name        string
	Regexp      *regexp.Regexp
	Risk        shelldomain.Risk
	Category    string
	Description string
}

const (
	catRootRemoval    = "recursive-root-removal"
	catRootDeletion   = "root-path-deletion"
	catFormat         = "filesystem-format"
	catRawDevice      = "raw-device-write"
	catForkBomb       = "fork-bomb"
	catMassPermission = "mass-permission-widening"
	catPrivEscalation = "privilege-escalation"
	catGitDestruction = "git-history-destruction"
)

// rootPaths are the user-significant filesystem roots whose recursive
// deletion is treated as at least as dangerous as `rm -rf /` itself.
var rootPaths = []struct {
	name string
	re   string
}{
	{"root", `/`},
	{"root-glob", `/\*`},
	{"home-tilde", `~`},
	{"home-env", `\$HOME`},
	{"etc", `/etc`},
	{"usr", `/usr`},
	{"bin", `/bin`},
	{"var", `/var`},
	{"system", `/System`},
}

// rawDeviceTargets are raw block-device paths that dd/redirection must
// never write to without explicit operator intent outside this tool.
var rawDeviceTargets = []string{
	`/dev/sd[a-z][0-9]*`,
	`/dev/nvme\d+n\d+p?\d*`,
	`/dev/disk\d+`,
	`/dev/hd[a-z][0-9]*`,
	`/dev/xvd[a-z][0-9]*`,
}

// DefaultCatalogue builds the closed set of rules mandated by every
// category the core must cover. It panics only if a literal pattern
// fails to compile, which would be a programmer error caught by tests.
func DefaultCatalogue() []Pattern {
	specs := defaultSpecs()
	out := make([]Pattern, 0, len(specs))
	for _, s := range specs {
		out = append(out, Pattern{
			Name:        s.Name,
			Regexp:      regexp.MustCompile(s.Regexp),
			Risk:        s.Risk,
			Category:    s.Category,
			Description: s.Description,
		})
	}
	return out
}

func defaultSpecs() []PatternSpec {
	var specs []PatternSpec

	// Recursive root removal: rm -rf / and rm -rf /*, arbitrary whitespace.
	specs = append(specs,
		PatternSpec{
			Name:        "rm-rf-root",
			Regexp:      `(?i)\brm\s+(-[a-z-]*[rf][a-z-]*[rf]?[a-z-]*|--recursive\s+--force|--force\s+--recursive)\s+/(\s|$)`,
			Risk:        shelldomain.Critical,
			Category:    catRootRemoval,
			Description: "recursive, forced removal of the filesystem root",
		},
		PatternSpec{
			Name:        "rm-rf-root-glob",
			Regexp:      `(?i)\brm\s+(-[a-z-]*[rf][a-z-]*[rf]?[a-z-]*)\s+/\*(\s|$)`,
			Risk:        shelldomain.Critical,
			Category:    catRootRemoval,
			Description: "recursive, forced removal of every top-level entry under /",
		},
	)

	// Recursive deletion of user-significant roots (one named rule per path).
	for _, rp := range rootPaths {
		specs = append(specs, PatternSpec{
			Name:        "rm-rf-" + rp.name,
			Regexp:      `(?i)\brm\s+(-[a-z-]*[rf][a-z-]*[rf]?[a-z-]*)\s+(['"]?)` + rp.re + `(['"]?)(\s|$)`,
			Risk:        shelldomain.Critical,
			Category:    catRootDeletion,
			Description: "recursive, forced removal of a user-significant root (" + rp.name + ")",
		})
	}

	// Filesystem formatting.
	specs = append(specs,
		PatternSpec{
			Name:        "mkfs-any",
			Regexp:      `(?i)\bmkfs(\.[a-z0-9]+)?\s+`,
			Risk:        shelldomain.Critical,
			Category:    catFormat,
			Description: "formats a filesystem, destroying its contents",
		},
		PatternSpec{
			Name:        "mkswap",
			Regexp:      `(?i)\bmkswap\s+`,
			Risk:        shelldomain.Critical,
			Category:    catFormat,
			Description: "reinitializes a device as swap space",
		},
	)

	// Raw device writes.
	specs = append(specs,
		PatternSpec{
			Name:        "dd-of-dev",
			Regexp:      `(?i)\bdd\b[^\n]*\bof=/dev/\S+`,
			Risk:        shelldomain.Critical,
			Category:    catRawDevice,
			Description: "dd writing directly to a raw device",
		},
	)
	for i, dev := range rawDeviceTargets {
		specs = append(specs, PatternSpec{
			Name:        rawDeviceRuleName(i),
			Regexp:      `(?i)>\s*` + dev,
			Risk:        shelldomain.Critical,
			Category:    catRawDevice,
			Description: "shell redirection writing directly to a raw block device",
		})
	}

	// Fork bombs: the canonical form and common syntactic variants.
	specs = append(specs,
		PatternSpec{
			Name:        "fork-bomb-classic",
			Regexp:      `:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`,
			Risk:        shelldomain.Critical,
			Category:    catForkBomb,
			Description: "classic bash fork bomb",
		},
		PatternSpec{
			Name:        "fork-bomb-named",
			Regexp:      `(?i)\b[a-z_][a-z0-9_]*\s*\(\s*\)\s*\{\s*[a-z_][a-z0-9_]*\s*\|\s*[a-z_][a-z0-9_]*\s*&\s*\}\s*;`,
			Risk:        shelldomain.Critical,
			Category:    catForkBomb,
			Description: "named-function fork bomb variant",
		},
		PatternSpec{
			Name:        "fork-bomb-perl",
			Regexp:      `(?i)\bperl\s+-e\s*['"]?\s*fork\s*while\s*1`,
			Risk:        shelldomain.Critical,
			Category:    catForkBomb,
			Description: "perl one-liner fork bomb",
		},
	)

	// Mass permission widening.
	for _, rp := range []struct{ name, re string }{
		{"root", `/`}, {"usr", `/usr`}, {"etc", `/etc`}, {"bin", `/bin`},
	} {
		specs = append(specs, PatternSpec{
			Name:        "chmod-777-" + rp.name,
			Regexp:      `(?i)\bchmod\s+(-r\s+|--recursive\s+)?0?777\s+(['"]?)` + rp.re + `(['"]?)(\s|$)`,
			Risk:        shelldomain.High,
			Category:    catMassPermission,
			Description: "recursively widens permissions to world-writable on " + rp.name,
		})
	}
	specs = append(specs, PatternSpec{
		Name:        "chown-r-root",
		Regexp:      `(?i)\bchown\s+-R\s+\S+\s+/(\s|$)`,
		Risk:        shelldomain.High,
		Category:    catMassPermission,
		Description: "recursively changes ownership from the filesystem root",
	})

	// Privilege escalation chains beyond a single sudo, and curl-to-shell.
	specs = append(specs,
		PatternSpec{
			Name:        "sudo-su",
			Regexp:      `(?i)\bsudo\s+su\b`,
			Risk:        shelldomain.High,
			Category:    catPrivEscalation,
			Description: "escalates to an interactive root shell via sudo su",
		},
		PatternSpec{
			Name:        "sudo-dash-i",
			Regexp:      `(?i)\bsudo\s+-i\b`,
			Risk:        shelldomain.High,
			Category:    catPrivEscalation,
			Description: "escalates to an interactive root login shell",
		},
		PatternSpec{
			Name:        "sudo-bash-c",
			Regexp:      `(?i)\bsudo\s+(bash|sh|zsh)\s+-c\b`,
			Risk:        shelldomain.High,
			Category:    catPrivEscalation,
			Description: "runs an arbitrary shell as root via sudo",
		},
		PatternSpec{
			Name:        "curl-pipe-shell",
			Regexp:      `(?i)\b(curl|wget)\b[^|\n]*\|\s*(sudo\s+)?(bash|sh|zsh)\b`,
			Risk:        shelldomain.High,
			Category:    catPrivEscalation,
			Description: "pipes a remote download directly into a shell interpreter",
		},
		PatternSpec{
			Name:        "chmod-s-setuid",
			Regexp:      `(?i)\bchmod\s+([ug]\+s|4[0-7][0-7][0-7])\s+`,
			Risk:        shelldomain.High,
			Category:    catPrivEscalation,
			Description: "sets the setuid/setgid bit on a binary",
		},
	)

	// Git history destruction on root-equivalent targets.
	specs = append(specs,
		PatternSpec{
			Name:        "git-push-force-root",
			Regexp:      `(?i)\bgit\s+push\s+(--force|-f)\b[^\n]*\b(main|master)\b`,
			Risk:        shelldomain.High,
			Category:    catGitDestruction,
			Description: "force-pushes over a protected branch's history",
		},
		PatternSpec{
			Name:        "git-reflog-expire-all",
			Regexp:      `(?i)\bgit\s+reflog\s+expire\s+--expire=now\s+--all\b`,
			Risk:        shelldomain.High,
			Category:    catGitDestruction,
			Description: "immediately expires all reflog entries, disabling recovery",
		},
		PatternSpec{
			Name:        "git-gc-prune-now",
			Regexp:      `(?i)\bgit\s+gc\s+--prune=now\b`,
			Risk:        shelldomain.High,
			Category:    catGitDestruction,
			Description: "immediately garbage-collects unreachable objects",
		},
		PatternSpec{
			Name:        "git-filter-branch-root",
			Regexp:      `(?i)\bgit\s+filter-branch\b[^\n]*--all\b`,
			Risk:        shelldomain.High,
			Category:    catGitDestruction,
			Description: "rewrites the entire repository's commit history",
		},
		PatternSpec{
			Name:        "rm-rf-dot-git",
			Regexp:      `(?i)\brm\s+(-[a-z-]*[rf][a-z-]*[rf]?[a-z-]*)\s+(['"]?)\.git(['"]?)(\s|$)`,
			Risk:        shelldomain.High,
			Category:    catGitDestruction,
			Description: "recursively deletes a repository's .git directory",
		},
	)

	// Further destructive patterns: device shredding/truncation, find and
	// rsync deletion from /, and macOS/Windows disk or drive erasure, each
	// at High or Critical risk like the rules above.
	specs = append(specs,
		PatternSpec{
			Name:        "shred-device",
			Regexp:      `(?i)\bshred\b[^\n]*\s/dev/\S+`,
			Risk:        shelldomain.Critical,
			Category:    catRawDevice,
			Description: "securely overwrites a raw device, destroying its contents",
		},
		PatternSpec{
			Name:        "truncate-dev",
			Regexp:      `(?i)\btruncate\s+-s\s*0\s+/dev/\S+`,
			Risk:        shelldomain.High,
			Category:    catRawDevice,
			Description: "truncates a device node",
		},
		PatternSpec{
			Name:        "find-delete-root",
			Regexp:      `(?i)\bfind\s+/\s+[^\n]*-delete\b`,
			Risk:        shelldomain.High,
			Category:    catRootDeletion,
			Description: "recursively deletes files found from the filesystem root",
		},
		PatternSpec{
			Name:        "rsync-delete-root",
			Regexp:      `(?i)\brsync\b[^\n]*--delete\b[^\n]*\s/(\s|$)`,
			Risk:        shelldomain.High,
			Category:    catRootDeletion,
			Description: "rsync with --delete mirrored onto the filesystem root",
		},
		PatternSpec{
			Name:        "diskutil-erase",
			Regexp:      `(?i)\bdiskutil\s+(erase|reformat)\b`,
			Risk:        shelldomain.Critical,
			Category:    catFormat,
			Description: "erases or reformats a macOS disk/volume",
		},
		PatternSpec{
			Name:        "format-windows-drive",
			Regexp:      `(?i)\bformat\s+[a-z]:\s*`,
			Risk:        shelldomain.Critical,
			Category:    catFormat,
			Description: "formats a Windows drive letter",
		},
		PatternSpec{
			Name:        "del-s-windows-root",
			Regexp:      `(?i)\bdel\s+/s\s+/q\s+[a-z]:\\\\?\s*$`,
			Risk:        shelldomain.Critical,
			Category:    catRootRemoval,
			Description: "recursively, silently deletes an entire Windows drive",
		},
		PatternSpec{
			Name:        "remove-item-recurse-root",
			Regexp:      `(?i)\bremove-item\b[^\n]*-recurse\b[^\n]*\s[a-z]:\\\\?\s*(-force\b)?`,
			Risk:        shelldomain.High,
			Category:    catRootRemoval,
			Description: "PowerShell recursive removal rooted at a drive letter",
		},
	)

	return specs
}

func rawDeviceRuleName(i int) string {
	names := []string{"redirect-dev-sd", "redirect-dev-nvme", "redirect-dev-disk", "redirect-dev-hd", "redirect-dev-xvd"}
	if i < len(names) {
		return names[i]
	}
	return "redirect-dev-other"
}
