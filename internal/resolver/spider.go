package resolver

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// findProjectRoot walks upward from start until a directory containing the
// root marker file is found. Returns false when the filesystem root is reached
// without a match.
func (r *Resolver) findProjectRoot(start string) (string, bool) {
	dir := filepath.Clean(start)
	for {
		if _, err := os.Stat(filepath.Join(dir, r.RootMarker)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// findSpiderSource scans source files under root for a class deriving from the
// framework's spider base type that declares name = "<name>". First match
// wins. The walk is bounded by ScanTimeout; hitting the deadline counts as
// not found.
func (r *Resolver) findSpiderSource(root, name string) (string, bool) {
	pattern, err := spiderPattern(name)
	if err != nil {
		slog.Error("Bad spider name for pattern", "name", name, "error", err)
		return "", false
	}
	deadline := time.Time{}
	if r.ScanTimeout > 0 {
		deadline = time.Now().Add(r.ScanTimeout)
	}
	var found string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entry: skip it, keep scanning the rest.
			slog.Warn("Skipping unreadable entry during spider scan", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			slog.Warn("Spider scan deadline exceeded", "root", root, "spider", name)
			return fs.SkipAll
		}
		if d.IsDir() || !strings.HasSuffix(path, r.SourceExt) {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Cannot read source file during spider scan", "path", path, "error", err)
			return nil
		}
		if pattern.Match(b) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		slog.Warn("Spider scan aborted", "root", root, "error", walkErr)
		return "", false
	}
	return found, found != ""
}

// spiderPattern builds the best-effort structural match for a spider class
// declaring the given name. This is pattern matching over loosely formatted
// source, not a parser: it requires a class header mentioning the framework
// base type followed somewhere in the file by a matching name attribute.
func spiderPattern(name string) (*regexp.Regexp, error) {
	return regexp.Compile(
		`class\s+\w+[^\n]*scrapy\.Spider[^\n]*:[\s\S]*?name\s*=\s*['"]` +
			regexp.QuoteMeta(name) + `['"]`)
}
