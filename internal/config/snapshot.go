package config

import (
	"runtime"
	"strings"

	"github.com/xyproto/env/v2"
	"github.com/xyproto/mervebuild/internal/target"
	"github.com/xyproto/mervebuild/internal/toolchain"
)

// snapshot.go - Everything read from the build environment, read once

// Source is where environment values come from
type Source interface {
	Has(name string) bool
	Str(name string, optionalDefault ...string) string
	Bool(name string) bool
}

// Environ reads the process environment
type Environ struct{}

func (Environ) Has(name string) bool { return env.Has(name) }

func (Environ) Str(name string, optionalDefault ...string) string {
	return env.Str(name, optionalDefault...)
}

func (Environ) Bool(name string) bool { return env.Bool(name) }

// Map is a fixed environment, for tests and for replaying a manifest
type Map map[string]string

// Has matches env.Has: a variable set to "" counts as unset
func (m Map) Has(name string) bool {
	return m[name] != ""
}

func (m Map) Str(name string, optionalDefault ...string) string {
	if v, ok := m[name]; ok && v != "" {
		return v
	}
	if len(optionalDefault) > 0 {
		return optionalDefault[0]
	}
	return ""
}

func (m Map) Bool(name string) bool {
	switch strings.ToLower(m[name]) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Snapshot is the environment of one build
type Snapshot struct {
	Target   string   `yaml:"target"`
	Host     string   `yaml:"host"`
	Arch     string   `yaml:"arch"`
	OS       string   `yaml:"os"`
	Features []string `yaml:"features,omitempty"`

	AndroidNDK string `yaml:"android_ndk,omitempty"`
	WASISDK    string `yaml:"wasi_sdk,omitempty"`

	ErrorLocation bool `yaml:"error_location"`
	LibCpp        bool `yaml:"libcpp"`

	Compiler string `yaml:"compiler"`
	Archiver string `yaml:"archiver,omitempty"`
	OptLevel string `yaml:"opt_level,omitempty"`
	Debug    bool   `yaml:"debug"`
	OutDir   string `yaml:"out_dir,omitempty"`
}

// Read takes a snapshot of src. When no target is set the host is assumed.
func Read(src Source) Snapshot {
	s := Snapshot{
		Target:        src.Str("TARGET"),
		Host:          runtime.GOOS,
		Arch:          src.Str("CARGO_CFG_TARGET_ARCH"),
		OS:            src.Str("CARGO_CFG_TARGET_OS"),
		AndroidNDK:    src.Str("ANDROID_NDK"),
		WASISDK:       src.Str("WASI_SDK", toolchain.DefaultWASISDK),
		ErrorLocation: src.Has("CARGO_FEATURE_ERROR_LOCATION"),
		LibCpp:        src.Has("CARGO_FEATURE_LIBCPP"),
		OptLevel:      src.Str("OPT_LEVEL"),
		Debug:         src.Bool("DEBUG"),
		OutDir:        src.Str("OUT_DIR"),
	}
	if features := src.Str("CARGO_CFG_TARGET_FEATURE"); features != "" {
		s.Features = strings.Split(features, ",")
	}
	if s.Target == "" {
		s.Target = HostTriple()
	}
	s.Compiler = perTarget(src, "CXX", s.Target)
	s.Archiver = perTarget(src, "AR", s.Target)
	return s
}

// perTarget looks up NAME_<target>, NAME_<target_with_underscores>, then NAME
func perTarget(src Source, name, triple string) string {
	for _, key := range []string{
		name + "_" + triple,
		name + "_" + strings.ReplaceAll(triple, "-", "_"),
		name,
	} {
		if v := src.Str(key); v != "" {
			return v
		}
	}
	return ""
}

// Complete fills in what the environment left out, using the parsed triple
func (s *Snapshot) Complete(d target.Descriptor) {
	if s.Arch == "" {
		s.Arch = d.Architecture
	}
	if s.OS == "" {
		s.OS = d.OS()
	}
	if s.Compiler == "" {
		s.Compiler = DefaultCompiler(d)
	}
}

// DefaultCompiler is the C++ compiler used when CXX is not set
func DefaultCompiler(d target.Descriptor) string {
	switch {
	case d.IsMSVC():
		return "cl.exe"
	case d.IsAndroid(), d.IsApple():
		return "clang++"
	}
	return "c++"
}

// ToolchainInput turns the snapshot into resolver input
func (s Snapshot) ToolchainInput(d target.Descriptor, layout Layout, bindingDir string) toolchain.Input {
	return toolchain.Input{
		Target:      d,
		HostOS:      s.Host,
		Arch:        s.Arch,
		OS:          s.OS,
		Features:    s.Features,
		AndroidNDK:  s.AndroidNDK,
		WASISDK:     s.WASISDK,
		WASIAdaptor: layout.WASIAdaptor,
		BindingDir:  bindingDir,
		LibCpp:      s.LibCpp,
		Compiler:    s.Compiler,
	}
}

// HostTriple names the machine running the build
func HostTriple() string {
	arch := map[string]string{
		"amd64":   "x86_64",
		"386":     "i686",
		"arm64":   "aarch64",
		"arm":     "armv7",
		"riscv64": "riscv64gc",
	}[runtime.GOARCH]
	if arch == "" {
		arch = runtime.GOARCH
	}
	switch runtime.GOOS {
	case "linux":
		return arch + "-unknown-linux-gnu"
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	}
	return arch + "-unknown-" + runtime.GOOS
}
