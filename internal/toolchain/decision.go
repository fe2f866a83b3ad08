// Completion: 100% - Toolchain selection complete
package toolchain

import (
	"strings"

	"github.com/xyproto/mervebuild/internal/cc"
	"github.com/xyproto/mervebuild/internal/target"
)

// decision.go - Per-target compiler configuration
//
// Resolve is a pure function of its Input and the Probe:
// - android targets get NDK sysroot flags (legacy or unified layout)
// - wasm targets outside emscripten get the WASI SDK compiler and sysroot
// - everything that is not android then gets the MSVC / clang adjustments
// No environment variables are read here; see config.Snapshot.

// Input is everything the decision depends on
type Input struct {
	Target target.Descriptor

	// HostOS is the GOOS of the machine running the build
	HostOS string

	// Compile target facts, as reported by the build environment
	Arch     string
	OS       string
	Features []string

	AndroidNDK  string
	WASISDK     string
	WASIAdaptor string
	BindingDir  string

	// LibCpp asks clang-like compilers to use libc++
	LibCpp bool

	// Compiler is the compiler chosen before any per-target override
	Compiler string
}

// Decision is the compiler configuration for one target
type Decision struct {
	Compiler     string    `yaml:"compiler,omitempty"`
	Archiver     string    `yaml:"archiver,omitempty"`
	Family       cc.Family `yaml:"family"`
	Target       string    `yaml:"target,omitempty"`
	Flags        []string  `yaml:"flags,omitempty"`
	LinkSearch   []string  `yaml:"link_search,omitempty"`
	LinkLibs     []string  `yaml:"link_libs,omitempty"`
	LinkArgs     []string  `yaml:"link_args,omitempty"`
	ExtraSources []string  `yaml:"extra_sources,omitempty"`
	StaticCRT    bool      `yaml:"static_crt,omitempty"`
	Stdlib       string    `yaml:"stdlib,omitempty"`
	RuntimeLib   string    `yaml:"runtime_lib,omitempty"`
	NDK          *NDK      `yaml:"ndk,omitempty"`
	WASI         *WASI     `yaml:"wasi,omitempty"`
}

// Resolve decides how to compile for in.Target. Any missing NDK, WASI SDK,
// or version descriptor is an error; nothing falls back silently.
func Resolve(in Input, probe Probe) (Decision, error) {
	if probe == nil {
		probe = OSProbe{}
	}

	d := Decision{Compiler: in.Compiler}

	if in.Target.IsAndroid() {
		if err := resolveAndroid(&d, in, probe); err != nil {
			return Decision{}, err
		}
		d.Family = cc.DetectFamily(d.Compiler)
		if d.Family.IsClang() && !targetPrefixed(d.Compiler, in.Target) {
			d.Target = AndroidClangTarget(in.Target)
		}
	} else {
		if isWASI(in) {
			if err := resolveWASI(&d, in, probe); err != nil {
				return Decision{}, err
			}
		}
		d.Family = cc.DetectFamily(d.Compiler)
		if d.Family.IsMSVC() {
			d.StaticCRT = true
			d.LinkArgs = append(d.LinkArgs, "/NODEFAULTLIB:libcmt.lib")
		} else if d.Family.IsClang() && in.LibCpp {
			d.setStdlib("c++")
		}
	}

	if d.Stdlib == "" {
		d.RuntimeLib = defaultRuntimeLib(in, d.Family)
		if d.RuntimeLib != "" {
			d.LinkLibs = appendUnique(d.LinkLibs, d.RuntimeLib)
		}
	}

	return d, nil
}

// setStdlib selects the C++ standard library implementation, for example
// "c++" for libc++
func (d *Decision) setStdlib(name string) {
	d.Stdlib = name
	d.Flags = appendUnique(d.Flags, "-stdlib=lib"+name)
	d.LinkLibs = appendUnique(d.LinkLibs, name)
}

// defaultRuntimeLib is the C++ runtime that has to be linked when no
// standard library was chosen explicitly
func defaultRuntimeLib(in Input, family cc.Family) string {
	switch {
	case family.IsMSVC():
		return ""
	case strings.HasPrefix(in.Arch, "wasm") || strings.HasPrefix(in.Target.Architecture, "wasm"):
		return ""
	case in.Target.IsAndroid():
		return "c++_shared"
	case in.Target.IsApple():
		return "c++"
	}
	switch in.OS {
	case "macos", "ios", "freebsd", "openbsd", "netbsd":
		return "c++"
	}
	return "stdc++"
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
