// Completion: 100% - Project layout configuration complete
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// layout.go - Where the native sources live and what gets generated
//
// Every binding starts from DefaultLayout. A mervebuild.toml file in the
// binding directory may override any field:
//
//	name = "merve"
//	project_root = ".."
//	sources = ["parser.cpp", "merve_c.cpp"]

// FileName is the optional per-binding configuration file
const FileName = "mervebuild.toml"

// Layout describes the source tree and the artifacts made from it
type Layout struct {
	// Name of the library. Gives deps/<name>.cpp and lib<name>.a
	Name string `toml:"name"`
	Std  string `toml:"std"`

	// DepsDir is the artifact directory, relative to the binding directory
	DepsDir string `toml:"deps_dir"`

	// ProjectRoot holds IncludeDir and SourceDir in source mode, relative to
	// the binding directory
	ProjectRoot string `toml:"project_root"`
	IncludeDir  string `toml:"include_dir"`
	SourceDir   string `toml:"source_dir"`

	UmbrellaHeader   string   `toml:"umbrella_header"`
	Sources          []string `toml:"sources"`
	StandaloneHeader string   `toml:"standalone_header"`

	ErrorLocationDefine string `toml:"error_location_define"`
	WASIAdaptor         string `toml:"wasi_adaptor"`
	ABIPrefix           string `toml:"abi_prefix"`
}

// DefaultLayout returns the layout of the merve lexer
func DefaultLayout() Layout {
	return Layout{
		Name:                "merve",
		Std:                 "c++20",
		DepsDir:             "deps",
		ProjectRoot:         "..",
		IncludeDir:          "include",
		SourceDir:           "src",
		UmbrellaHeader:      "merve.h",
		Sources:             []string{"parser.cpp", "merve_c.cpp"},
		StandaloneHeader:    "merve_c.h",
		ErrorLocationDefine: "MERVE_ENABLE_ERROR_LOCATION",
		WASIAdaptor:         "wasi_to_unknown.cpp",
		ABIPrefix:           "merve",
	}
}

// LoadLayout reads <bindingDir>/mervebuild.toml over the defaults. A missing
// file is not an error.
func LoadLayout(bindingDir string) (Layout, error) {
	layout := DefaultLayout()
	path := filepath.Join(bindingDir, FileName)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return layout, nil
		}
		return layout, err
	}

	md, err := toml.DecodeFile(path, &layout)
	if err != nil {
		return layout, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return layout, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := layout.Validate(); err != nil {
		return layout, fmt.Errorf("%s: %w", path, err)
	}
	return layout, nil
}

// Validate rejects layouts that cannot produce an artifact
func (l Layout) Validate() error {
	switch {
	case l.Name == "":
		return errors.New("name must not be empty")
	case l.DepsDir == "":
		return errors.New("deps_dir must not be empty")
	case l.UmbrellaHeader == "":
		return errors.New("umbrella_header must not be empty")
	case len(l.Sources) == 0:
		return errors.New("sources must list at least one file")
	}
	for _, s := range l.Sources {
		if s == "" {
			return errors.New("sources must not contain empty names")
		}
	}
	return nil
}

// AmalgamatedSource is the file name of the single translation unit
func (l Layout) AmalgamatedSource() string {
	return l.Name + ".cpp"
}

// Paths resolves the layout against a binding directory
func (l Layout) Paths(bindingDir string) Paths {
	root := filepath.Join(bindingDir, l.ProjectRoot)
	if filepath.IsAbs(l.ProjectRoot) {
		root = l.ProjectRoot
	}
	return Paths{
		Binding:    bindingDir,
		Deps:       filepath.Join(bindingDir, l.DepsDir),
		Root:       root,
		IncludeDir: filepath.Join(root, l.IncludeDir),
		SourceDir:  filepath.Join(root, l.SourceDir),
	}
}

// Paths are the concrete directories for one binding
type Paths struct {
	Binding    string
	Deps       string
	Root       string
	IncludeDir string
	SourceDir  string
}
