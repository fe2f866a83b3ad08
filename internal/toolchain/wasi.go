package toolchain

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/xyproto/mervebuild/internal/diag"
)

const (
	// DefaultWASISDK is used when no WASI SDK root is configured
	DefaultWASISDK = "/opt/wasi-sdk"

	// DefaultWASIAdaptor bridges wasm32-unknown-unknown entry points to the
	// wasip1 runtime conventions
	DefaultWASIAdaptor = "wasi_to_unknown.cpp"

	wasiSysrootLib        = "wasm32-wasip1"
	wasiThreadsSysrootLib = "wasm32-wasip1-threads"
)

// WASI records the WASI SDK selection
type WASI struct {
	Root         string `yaml:"root"`
	SysrootLib   string `yaml:"sysroot_lib"`
	Threads      bool   `yaml:"threads,omitempty"`
	Freestanding bool   `yaml:"freestanding,omitempty"`
}

// isWASI is true for wasm targets that are not built by emscripten
func isWASI(in Input) bool {
	return strings.HasPrefix(in.Arch, "wasm") && in.OS != "emscripten"
}

// hasFeature checks a comma separated target feature list
func hasFeature(features []string, name string) bool {
	for _, f := range features {
		if strings.TrimSpace(f) == name {
			return true
		}
	}
	return false
}

func resolveWASI(d *Decision, in Input, probe Probe) error {
	root := in.WASISDK
	if root == "" {
		root = DefaultWASISDK
	}
	if !probe.Exists(root) {
		return diag.New(diag.KindMissingToolchainRoot, root, "WASI SDK not found").
			WithHelp("install wasi-sdk or set WASI_SDK to its root")
	}

	w := &WASI{Root: root, SysrootLib: wasiSysrootLib}
	if hasFeature(in.Features, "atomics") {
		w.SysrootLib = wasiThreadsSysrootLib
		w.Threads = true
	}

	d.Compiler = path.Join(root, "bin", "clang++")
	d.Archiver = path.Join(root, "bin", "llvm-ar")
	d.LinkSearch = append(d.LinkSearch, path.Join(root, "share/wasi-sysroot/lib", w.SysrootLib))
	d.Flags = append(d.Flags, "-fno-exceptions")
	d.setStdlib("c++")
	d.LinkLibs = appendUnique(d.LinkLibs, "c++abi")

	d.Target = in.Target.String()
	if in.OS == "unknown" {
		w.Freestanding = true
		d.Target = wasiSysrootLib
		d.LinkLibs = appendUnique(d.LinkLibs, "c")
		adaptor := in.WASIAdaptor
		if adaptor == "" {
			adaptor = DefaultWASIAdaptor
		}
		d.ExtraSources = append(d.ExtraSources, filepath.Join(in.BindingDir, adaptor))
	}

	d.WASI = w
	return nil
}
