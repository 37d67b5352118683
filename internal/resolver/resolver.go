package resolver

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies the outcome of resolving a process command line.
type Kind int

const (
	// Resolved means Path holds the script the process is executing.
	Resolved Kind = iota
	// Unresolved means no script could be determined. Reason may carry a
	// human-readable explanation (e.g. spider lookup failures) or be empty.
	Unresolved
	// Interactive marks an interpreter session with no script argument.
	Interactive
)

// Result is the outcome of one resolution. Expected "not found" branches are
// represented here as values, never as errors.
type Result struct {
	Kind   Kind
	Path   string
	Reason string
}

func resolved(path string) Result      { return Result{Kind: Resolved, Path: path} }
func unresolved(reason string) Result  { return Result{Kind: Unresolved, Reason: reason} }
func interactive() Result              { return Result{Kind: Interactive} }
func (r Result) IsResolved() bool      { return r.Kind == Resolved }
func (r Result) String() string {
	switch r.Kind {
	case Resolved:
		return r.Path
	case Interactive:
		return "<interactive>"
	default:
		if r.Reason != "" {
			return r.Reason
		}
		return "<unresolved>"
	}
}

// Resolver maps a process command line plus working directory to a script
// identity. The zero value is not usable; call New for defaults.
type Resolver struct {
	// RootMarker is the file that identifies a crawler project root.
	RootMarker string
	// SourceExt is the script source extension including the dot.
	SourceExt string
	// Interpreter is the runtime executable name suffix (e.g. "python").
	Interpreter string
	// ModuleName and SubCommand identify a crawl-style invocation:
	// <interpreter> -m <ModuleName> <SubCommand> <job>.
	ModuleName string
	SubCommand string
	// ScanTimeout bounds the source-tree walk for a spider lookup.
	ScanTimeout time.Duration
}

// New returns a Resolver configured for Scrapy projects.
func New() *Resolver {
	return &Resolver{
		RootMarker:  "scrapy.cfg",
		SourceExt:   ".py",
		Interpreter: "python",
		ModuleName:  "scrapy",
		SubCommand:  "crawl",
		ScanTimeout: 10 * time.Second,
	}
}

// Resolve determines the script identity for a process.
// Resolution order, first match wins:
//  1. crawl-style framework invocation (spider name lookup under the project root)
//  2. absolute path argument with the source extension
//  3. relative script as second argument to the interpreter
//  4. interactive session
//
// Anything else is Unresolved.
func (r *Resolver) Resolve(cmdline []string, cwd string) Result {
	if res, ok := r.resolveSpider(cmdline, cwd); ok {
		return res
	}
	for _, arg := range cmdline {
		if strings.HasSuffix(arg, r.SourceExt) && filepath.IsAbs(arg) {
			return resolved(filepath.Clean(arg))
		}
	}
	if len(cmdline) > 1 && strings.HasSuffix(cmdline[0], r.Interpreter) &&
		strings.HasSuffix(cmdline[1], r.SourceExt) {
		return resolved(filepath.Join(cwd, cmdline[1]))
	}
	if r.isInteractive(cmdline) {
		return interactive()
	}
	return unresolved("")
}

// isInteractive reports whether the command line denotes an interpreter
// session without a script: either the -i flag is present or no argument
// carries the source extension.
func (r *Resolver) isInteractive(cmdline []string) bool {
	for _, arg := range cmdline {
		if arg == "-i" {
			return true
		}
	}
	for _, arg := range cmdline {
		if strings.HasSuffix(arg, r.SourceExt) {
			return false
		}
	}
	return true
}

// resolveSpider handles "<interpreter> -m scrapy crawl <name>" invocations.
// The second return value is false when the command line is not a crawl-style
// invocation at all, letting the caller fall through to the next rule.
func (r *Resolver) resolveSpider(cmdline []string, cwd string) (Result, bool) {
	if !contains(cmdline, "-m") || !contains(cmdline, r.ModuleName) {
		return Result{}, false
	}
	idx := index(cmdline, r.SubCommand)
	if idx < 0 {
		return Result{}, false
	}
	if idx+1 >= len(cmdline) {
		return unresolved("crawl invocation without a spider name"), true
	}
	name := cmdline[idx+1]

	root, ok := r.findProjectRoot(cwd)
	if !ok {
		return unresolved("spider " + name + ": project root not found"), true
	}
	if path, ok := r.findSpiderSource(root, name); ok {
		return resolved(path), true
	}
	return unresolved("spider " + name + ": not found under " + root), true
}

func contains(args []string, s string) bool { return index(args, s) >= 0 }

func index(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}
