package config

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/xyproto/mervebuild/internal/target"
	"github.com/xyproto/mervebuild/internal/toolchain"
)

func TestLoadLayoutDefaults(t *testing.T) {
	layout, err := LoadLayout(t.TempDir())
	if err != nil {
		t.Fatalf("LoadLayout() error = %v", err)
	}
	if !reflect.DeepEqual(layout, DefaultLayout()) {
		t.Errorf("LoadLayout() = %+v, want defaults", layout)
	}
	if layout.AmalgamatedSource() != "merve.cpp" {
		t.Errorf("AmalgamatedSource() = %s", layout.AmalgamatedSource())
	}
}

func TestLoadLayoutOverrides(t *testing.T) {
	dir := t.TempDir()
	data := `name = "lexer"
project_root = "/src/lexer"
sources = ["a.cpp", "b.cpp", "c.cpp"]
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	layout, err := LoadLayout(dir)
	if err != nil {
		t.Fatalf("LoadLayout() error = %v", err)
	}
	if layout.Name != "lexer" || len(layout.Sources) != 3 {
		t.Errorf("LoadLayout() = %+v", layout)
	}
	if layout.Std != "c++20" || layout.UmbrellaHeader != "merve.h" {
		t.Errorf("unset keys lost their defaults: %+v", layout)
	}

	paths := layout.Paths(dir)
	if paths.Root != "/src/lexer" || paths.SourceDir != filepath.Join("/src/lexer", "src") {
		t.Errorf("Paths() = %+v", paths)
	}
	if paths.Deps != filepath.Join(dir, "deps") {
		t.Errorf("Paths().Deps = %s", paths.Deps)
	}
}

func TestLoadLayoutRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":   "colour = \"red\"\n",
		"empty sources": "sources = []\n",
		"empty name":    "name = \"\"\n",
		"bad syntax":    "name = \n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadLayout(dir); err == nil {
				t.Errorf("LoadLayout() accepted %q", data)
			}
		})
	}
}

func TestReadSnapshot(t *testing.T) {
	src := Map{
		"TARGET":                       "wasm32-wasip1-threads",
		"CARGO_CFG_TARGET_ARCH":        "wasm32",
		"CARGO_CFG_TARGET_OS":          "wasi",
		"CARGO_CFG_TARGET_FEATURE":     "atomics,bulk-memory",
		"CARGO_FEATURE_ERROR_LOCATION": "1",
		"CXX_wasm32_wasip1_threads":    "my-clang++",
		"CXX":                          "c++",
		"OPT_LEVEL":                    "3",
		"DEBUG":                        "false",
	}
	s := Read(src)
	if s.Target != "wasm32-wasip1-threads" || s.Arch != "wasm32" || s.OS != "wasi" {
		t.Errorf("Read() = %+v", s)
	}
	if !reflect.DeepEqual(s.Features, []string{"atomics", "bulk-memory"}) {
		t.Errorf("Features = %v", s.Features)
	}
	if !s.ErrorLocation || s.LibCpp || s.Debug {
		t.Errorf("feature flags = %v %v %v", s.ErrorLocation, s.LibCpp, s.Debug)
	}
	if s.Compiler != "my-clang++" {
		t.Errorf("Compiler = %s, the per-target CXX should win", s.Compiler)
	}
	if s.WASISDK != toolchain.DefaultWASISDK {
		t.Errorf("WASISDK = %s", s.WASISDK)
	}
	if s.Host != runtime.GOOS {
		t.Errorf("Host = %s", s.Host)
	}
}

func TestEmptyFeatureVariablesAreUnset(t *testing.T) {
	s := Read(Map{
		"CARGO_FEATURE_ERROR_LOCATION": "",
		"CARGO_FEATURE_LIBCPP":         "",
	})
	if s.ErrorLocation || s.LibCpp {
		t.Errorf("feature flags = %v %v, empty variables should not enable features", s.ErrorLocation, s.LibCpp)
	}
	if (Map{"X": ""}).Has("X") || !(Map{"X": "1"}).Has("X") {
		t.Error("Map.Has should only report non-empty variables")
	}
}

func TestSnapshotComplete(t *testing.T) {
	s := Read(Map{"TARGET": "x86_64-pc-windows-msvc"})
	d := target.MustParse(s.Target)
	s.Complete(d)
	if s.Arch != "x86_64" || s.OS != "windows" || s.Compiler != "cl.exe" {
		t.Errorf("Complete() = %+v", s)
	}

	in := s.ToolchainInput(d, DefaultLayout(), "/binding")
	if in.Compiler != "cl.exe" || in.WASIAdaptor != "wasi_to_unknown.cpp" || in.BindingDir != "/binding" {
		t.Errorf("ToolchainInput() = %+v", in)
	}
}

func TestDefaultCompiler(t *testing.T) {
	for triple, want := range map[string]string{
		"x86_64-unknown-linux-gnu": "c++",
		"aarch64-linux-android":    "clang++",
		"aarch64-apple-darwin":     "clang++",
		"i686-pc-windows-msvc":     "cl.exe",
	} {
		if got := DefaultCompiler(target.MustParse(triple)); got != want {
			t.Errorf("DefaultCompiler(%s) = %s, want %s", triple, got, want)
		}
	}
}

func TestHostTriple(t *testing.T) {
	triple := HostTriple()
	if _, err := target.Parse(triple); err != nil {
		t.Errorf("HostTriple() = %q does not parse: %v", triple, err)
	}
	if runtime.GOOS == "linux" && !strings.HasSuffix(triple, "-linux-gnu") {
		t.Errorf("HostTriple() = %s", triple)
	}
}
