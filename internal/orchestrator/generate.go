package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/mervebuild/internal/amalgam"
	"github.com/xyproto/mervebuild/internal/config"
	"github.com/xyproto/mervebuild/internal/diag"
)

// generate.go - Source mode: write the artifact directory from the source tree

// Mode is how the artifacts are obtained
type Mode int

const (
	// ModeArtifact uses the deps/ directory as shipped
	ModeArtifact Mode = iota
	// ModeSource regenerates deps/ from the source tree on every run
	ModeSource
)

func (m Mode) String() string {
	if m == ModeSource {
		return "source"
	}
	return "artifact"
}

// MarshalYAML writes the mode by name
func (m Mode) MarshalYAML() (any, error) {
	return m.String(), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DetectMode returns ModeSource when every source file and the umbrella
// header of the layout exist below the project root
func DetectMode(layout config.Layout, paths config.Paths) Mode {
	for _, src := range layout.Sources {
		if !fileExists(filepath.Join(paths.SourceDir, src)) {
			return ModeArtifact
		}
	}
	if !fileExists(filepath.Join(paths.IncludeDir, layout.UmbrellaHeader)) {
		return ModeArtifact
	}
	return ModeSource
}

// Generated lists what one source mode run wrote and read
type Generated struct {
	// Artifacts are the files written to the artifact directory
	Artifacts []string
	// Triggers are the files the artifacts were made from
	Triggers []string
	// Inlined are the include names, in the order they were inlined
	Inlined []string
}

// Generate wipes the artifact directory and writes the amalgamated header,
// the amalgamated source and a copy of the standalone header. The header
// pass and the source pass share one dedup set, so a header inlined into
// the umbrella header is not inlined again into the source.
func Generate(layout config.Layout, paths config.Paths) (*Generated, error) {
	if err := os.RemoveAll(paths.Deps); err != nil {
		return nil, fmt.Errorf("removing stale %s: %w", paths.Deps, err)
	}
	if err := os.MkdirAll(paths.Deps, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", paths.Deps, err)
	}

	gen := &Generated{}
	visited := amalgam.NewVisited()
	searchPaths := []string{paths.IncludeDir, paths.SourceDir}

	// Header pass
	headers := amalgam.New(searchPaths, visited)
	header, err := headers.Inline(filepath.Join(paths.IncludeDir, layout.UmbrellaHeader))
	if err != nil {
		return nil, err
	}
	headerOut := filepath.Join(paths.Deps, layout.UmbrellaHeader)
	if err := os.WriteFile(headerOut, []byte(header), 0o644); err != nil {
		return nil, err
	}
	gen.Artifacts = append(gen.Artifacts, headerOut)
	gen.Triggers = appendPaths(gen.Triggers, headers.Sources()...)

	// Source pass
	sources := amalgam.New(searchPaths, visited)
	var sb strings.Builder
	fmt.Fprintf(&sb, "#include %q\n\n", layout.UmbrellaHeader)
	for _, src := range layout.Sources {
		if err := sources.InlineTo(&sb, filepath.Join(paths.SourceDir, src)); err != nil {
			return nil, err
		}
	}
	sourceOut := filepath.Join(paths.Deps, layout.AmalgamatedSource())
	if err := os.WriteFile(sourceOut, []byte(sb.String()), 0o644); err != nil {
		return nil, err
	}
	gen.Artifacts = append(gen.Artifacts, sourceOut)
	gen.Triggers = appendPaths(gen.Triggers, sources.Sources()...)

	// Standalone header, verbatim
	if layout.StandaloneHeader != "" {
		src := filepath.Join(paths.IncludeDir, layout.StandaloneHeader)
		dst := filepath.Join(paths.Deps, layout.StandaloneHeader)
		if err := copyFile(src, dst); err != nil {
			return nil, diag.Wrap(diag.KindMissingFile, src, err, "cannot copy the standalone header")
		}
		gen.Artifacts = append(gen.Artifacts, dst)
		gen.Triggers = appendPaths(gen.Triggers, src)
	}

	gen.Inlined = visited.Names()
	return gen, nil
}

// ExistingArtifacts lists the artifact files present in artifact mode
func ExistingArtifacts(layout config.Layout, paths config.Paths) []string {
	var found []string
	for _, name := range []string{layout.UmbrellaHeader, layout.AmalgamatedSource(), layout.StandaloneHeader} {
		if name == "" {
			continue
		}
		if p := filepath.Join(paths.Deps, name); fileExists(p) {
			found = append(found, p)
		}
	}
	return found
}

func appendPaths(list []string, paths ...string) []string {
	for _, p := range paths {
		dup := false
		for _, existing := range list {
			if existing == p {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, p)
		}
	}
	return list
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
