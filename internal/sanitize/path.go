// Package sanitize normalises project paths, derives on-disk transcript
// folder names, validates identifiers, and escapes user input before it
// reaches a LIKE or FTS MATCH expression.
package sanitize

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kittclouds/memctl/internal/errs"
)

// systemPrefixes are directories that must never be treated as a project
// root; a path sanitised into one of these is rejected outright.
var systemPrefixes = []string{
	"/etc", "/sys", "/proc",
	`C:\Windows`, `C:\Program Files`, `C:\ProgramData`, `C:\System`,
}

// SanitizeProjectPath validates and canonicalises a user- or transcript-
// supplied project path. It rejects `..` traversal and system-directory
// prefixes before any side effect, per the Validation error kind.
func SanitizeProjectPath(p string) (string, error) {
	if p == "" {
		return "", errs.New(errs.Validation, "SanitizeProjectPath", "empty path")
	}
	if strings.Contains(p, "..") {
		return "", errs.New(errs.Validation, "SanitizeProjectPath", "path traversal rejected: "+p)
	}

	clean := filepath.Clean(p)
	for _, prefix := range systemPrefixes {
		if clean == prefix || strings.HasPrefix(clean, prefix+string(os.PathSeparator)) || strings.HasPrefix(clean, prefix+"/") {
			return "", errs.New(errs.Validation, "SanitizeProjectPath", "system directory rejected: "+clean)
		}
	}
	return clean, nil
}

// PathToFolderName derives the on-disk Claude-Code transcript folder name
// from a canonical project path: path separators become `-`, and a Windows
// drive-letter colon is stripped.
func PathToFolderName(canonicalPath string) string {
	s := strings.ReplaceAll(canonicalPath, "\\", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, ":", "")
	return s
}

// FolderNameToPath reverses PathToFolderName on a best-effort basis: it
// cannot distinguish a literal dash in a folder name from an encoded path
// separator, and it restores an elided drive-letter colon only by guessing
// from a single leading letter followed by a dash, so round-tripping
// through PathToFolderName . FolderNameToPath is exact only when the
// original path contains no dashes of its own (spec §8's acknowledged
// ambiguity).
func FolderNameToPath(folderName string) string {
	if folderName == "" {
		return folderName
	}
	s := folderName
	if !strings.HasPrefix(s, "-") {
		// Best-effort: a leading segment before the first dash that looks like
		// a single uppercase letter is treated as a reconstructed drive letter.
		if len(s) >= 2 && s[1] == '-' && isASCIILetter(s[0]) {
			s = string(s[0]) + ":" + s[1:]
		}
	}
	return strings.ReplaceAll(s, "-", string(os.PathSeparator))
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ValidateIdentifier rejects empty strings and anything containing path
// separators or NUL, for use on external_id-style fields before they are
// used to build a file path.
func ValidateIdentifier(id string) error {
	if id == "" {
		return errs.New(errs.Validation, "ValidateIdentifier", "empty identifier")
	}
	if strings.ContainsAny(id, "/\\\x00") {
		return errs.New(errs.Validation, "ValidateIdentifier", "identifier contains path separator or NUL: "+id)
	}
	return nil
}

// ResolveGitWorktreeRoot walks up from dir looking for a `.git` entry. If
// `.git` is a regular file (a worktree redirect of the form
// "gitdir: <path>"), it follows the redirect and returns the main
// repository's common directory's parent instead of the worktree's own
// directory. Supplements project-path derivation for checkouts created with
// `git worktree add`, per SPEC_FULL.md's feature supplement from the
// Claude-Code parser reference.
func ResolveGitWorktreeRoot(dir string) (string, bool) {
	cur := dir
	for {
		gitPath := filepath.Join(cur, ".git")
		info, err := os.Stat(gitPath)
		if err == nil {
			if info.IsDir() {
				return cur, true
			}
			if target, ok := parseGitdirFile(gitPath); ok {
				root := stripWorktreeSuffix(target)
				return root, true
			}
			return cur, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		cur = parent
	}
}

func parseGitdirFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}

// stripWorktreeSuffix turns ".../repo/.git/worktrees/<name>" into
// ".../repo" so callers land on the main checkout, not the worktree
// metadata directory.
func stripWorktreeSuffix(gitdir string) string {
	const marker = string(os.PathSeparator) + "worktrees" + string(os.PathSeparator)
	if idx := strings.Index(gitdir, marker); idx >= 0 {
		dotGit := gitdir[:idx]
		return filepath.Dir(dotGit)
	}
	return filepath.Dir(gitdir)
}
