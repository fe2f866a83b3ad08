// Completion: 100% - Amalgamation module complete
package amalgam

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xyproto/mervebuild/internal/diag"
)

// amalgam.go - Single translation unit generation
//
// Local includes (#include "name") are inlined recursively, each file at
// most once per Visited set. System includes (#include <name>) and local
// includes that can not be found in any search path are copied through.

var includeDirective = regexp.MustCompile(`^\s*#\s*include\s+"([^"]+)"`)

// Visited is the ordered set of include names that have been inlined.
// It is keyed by the name exactly as written between the quotes, so two
// different files that share a name are treated as the same file.
type Visited struct {
	names []string
	seen  map[string]struct{}
}

// NewVisited returns an empty set, optionally pre-seeded with names
func NewVisited(names ...string) *Visited {
	v := &Visited{seen: make(map[string]struct{})}
	for _, name := range names {
		v.Add(name)
	}
	return v
}

// Has reports whether name has been added
func (v *Visited) Has(name string) bool {
	_, ok := v.seen[name]
	return ok
}

// Add inserts name. Adding a name twice keeps its first position.
func (v *Visited) Add(name string) {
	if v.Has(name) {
		return
	}
	v.seen[name] = struct{}{}
	v.names = append(v.names, name)
}

// Names returns the names in insertion order
func (v *Visited) Names() []string {
	return append([]string(nil), v.names...)
}

// Len returns the number of names in the set
func (v *Visited) Len() int {
	return len(v.names)
}

// Amalgamator inlines local includes against an ordered list of search
// directories. Several root files may be processed with one Amalgamator (or
// several Amalgamators sharing a Visited set); names inlined for an earlier
// root are then skipped for later ones.
type Amalgamator struct {
	searchPaths []string
	visited     *Visited
	sources     []string
}

// New creates an Amalgamator. A nil visited set starts a fresh one.
func New(searchPaths []string, visited *Visited) *Amalgamator {
	if visited == nil {
		visited = NewVisited()
	}
	return &Amalgamator{
		searchPaths: searchPaths,
		visited:     visited,
	}
}

// Visited returns the dedup set used by this Amalgamator
func (a *Amalgamator) Visited() *Visited {
	return a.visited
}

// Sources returns the path of every file read so far, in the order read.
// These are the files that the generated output depends on.
func (a *Amalgamator) Sources() []string {
	return append([]string(nil), a.sources...)
}

// Inline reads the file at root and returns its contents with all local
// includes expanded. Only a root that can not be read is an error.
func (a *Amalgamator) Inline(root string) (string, error) {
	var sb strings.Builder
	if err := a.inlineFile(&sb, root, filepath.Base(root)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// InlineTo is like Inline, but appends to sb. On error, sb may hold a
// partial result that must not be used.
func (a *Amalgamator) InlineTo(sb *strings.Builder, root string) error {
	return a.inlineFile(sb, root, filepath.Base(root))
}

// Resolve returns the first search path candidate for name that exists, or
// "" if there is none
func (a *Amalgamator) Resolve(name string) string {
	for _, dir := range a.searchPaths {
		candidate := filepath.Join(dir, filepath.FromSlash(name))
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func (a *Amalgamator) inlineFile(sb *strings.Builder, path, name string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return diag.Wrap(diag.KindMissingFile, path, err, "cannot read "+name)
	}
	a.sources = append(a.sources, path)

	fmt.Fprintf(sb, "/* begin file %s */\n", name)

	for _, line := range splitLines(string(content)) {
		m := includeDirective.FindStringSubmatch(line)
		if m == nil {
			sb.WriteString(line)
			sb.WriteByte('\n')
			continue
		}

		includeName := m[1]
		if a.visited.Has(includeName) {
			// Already inlined, here or under an earlier root
			continue
		}

		resolved := a.Resolve(includeName)
		if resolved == "" {
			// Not ours, keep the directive for the compiler
			sb.WriteString(line)
			sb.WriteByte('\n')
			continue
		}

		a.visited.Add(includeName)
		if err := a.inlineFile(sb, resolved, includeName); err != nil {
			return err
		}
	}

	fmt.Fprintf(sb, "/* end file %s */\n", name)
	return nil
}

// splitLines splits text into lines without their terminators. A trailing
// newline does not produce an empty last line, and "\r\n" counts as one
// terminator.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
