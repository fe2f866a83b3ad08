package toolchain

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xyproto/mervebuild/internal/cc"
	"github.com/xyproto/mervebuild/internal/diag"
	"github.com/xyproto/mervebuild/internal/target"
)

// mapProbe is a fake filesystem: directories map to nil, files to contents
type mapProbe map[string][]byte

func (m mapProbe) Exists(path string) bool {
	_, ok := m[path]
	return ok
}

func (m mapProbe) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok || data == nil {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return data, nil
}

func ndkProbe(root, revision string) mapProbe {
	return mapProbe{
		root:                        nil,
		root + "/source.properties": []byte("Pkg.Desc = Android NDK\nPkg.Revision = " + revision + "\n"),
	}
}

func androidInput(ndk string) Input {
	return Input{
		Target:     target.MustParse("aarch64-linux-android"),
		HostOS:     "linux",
		Arch:       "aarch64",
		OS:         "android",
		AndroidNDK: ndk,
		Compiler:   "aarch64-linux-android21-clang++",
	}
}

func TestParseRevision(t *testing.T) {
	v, err := ParseRevision([]byte("Pkg.Desc = Android NDK\r\nPkg.Revision = 25.2.9519653\r\n"))
	if err != nil {
		t.Fatalf("ParseRevision() error = %v", err)
	}
	if v != (Version{25, 2, 9519653}) {
		t.Errorf("ParseRevision() = %v", v)
	}
	if v.String() != "25.2.9519653" {
		t.Errorf("String() = %s", v.String())
	}

	for _, bad := range []string{"", "Pkg.Revision = 25", "Pkg.Revision=25.2.1", "Revision = 25.2.1"} {
		if _, err := ParseRevision([]byte(bad)); err == nil {
			t.Errorf("ParseRevision(%q) succeeded", bad)
		}
	}
}

func TestAndroidLayoutBoundary(t *testing.T) {
	tests := []struct {
		revision string
		layout   string
		flags    []string
	}{
		{
			revision: "21.4.7075529",
			layout:   "legacy",
			flags: []string{
				"--sysroot=/ndk/sysroot",
				"-isystem/ndk/sources/cxx-stl/llvm-libc++/include",
			},
		},
		{
			revision: "22.0.7026061",
			layout:   "unified",
			flags:    []string{"--sysroot=/ndk/toolchains/llvm/prebuilt/linux-x86_64/sysroot"},
		},
		{
			revision: "23.1.7779620",
			layout:   "unified",
			flags:    []string{"--sysroot=/ndk/toolchains/llvm/prebuilt/linux-x86_64/sysroot"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.revision, func(t *testing.T) {
			d, err := Resolve(androidInput("/ndk"), ndkProbe("/ndk", tt.revision))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if d.NDK == nil || d.NDK.Layout != tt.layout {
				t.Fatalf("NDK = %+v, want layout %s", d.NDK, tt.layout)
			}
			if !reflect.DeepEqual(d.Flags, tt.flags) {
				t.Errorf("Flags = %v, want %v", d.Flags, tt.flags)
			}
			if d.NDK.Arch != "arm64" {
				t.Errorf("NDK.Arch = %s, want arm64", d.NDK.Arch)
			}
			if d.Family != cc.FamilyClang {
				t.Errorf("Family = %v, want clang", d.Family)
			}
			if d.RuntimeLib != "c++_shared" {
				t.Errorf("RuntimeLib = %s, want c++_shared", d.RuntimeLib)
			}
			if d.StaticCRT {
				t.Error("android builds should not touch the CRT")
			}
		})
	}
}

func TestHostTag(t *testing.T) {
	for host, want := range map[string]string{
		"windows": "windows-x86_64",
		"linux":   "linux-x86_64",
		"darwin":  "darwin-x86_64",
	} {
		got, err := HostTag(host)
		if err != nil || got != want {
			t.Errorf("HostTag(%s) = %s, %v; want %s", host, got, err, want)
		}
	}

	_, err := HostTag("plan9")
	if !diag.Is(err, diag.KindUnsupportedHost) {
		t.Errorf("HostTag(plan9) error = %v, want KindUnsupportedHost", err)
	}
}

func TestUnifiedLayoutUsesHostTag(t *testing.T) {
	in := androidInput("/ndk")
	in.HostOS = "darwin"
	d, err := Resolve(in, ndkProbe("/ndk", "26.1.10909125"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "--sysroot=/ndk/toolchains/llvm/prebuilt/darwin-x86_64/sysroot"
	if d.Flags[0] != want {
		t.Errorf("Flags[0] = %s, want %s", d.Flags[0], want)
	}
	if d.Archiver != "/ndk/toolchains/llvm/prebuilt/darwin-x86_64/bin/llvm-ar" {
		t.Errorf("Archiver = %s", d.Archiver)
	}

	in.HostOS = "plan9"
	if _, err := Resolve(in, ndkProbe("/ndk", "26.1.10909125")); !diag.Is(err, diag.KindUnsupportedHost) {
		t.Errorf("Resolve() on plan9 error = %v, want KindUnsupportedHost", err)
	}
}

func TestLegacyLayoutIgnoresHost(t *testing.T) {
	in := androidInput("/ndk")
	in.HostOS = "plan9"
	if _, err := Resolve(in, ndkProbe("/ndk", "21.0.0")); err != nil {
		t.Errorf("Resolve() error = %v, legacy layout should not need a host tag", err)
	}
}

func TestAndroidCompilerAndTarget(t *testing.T) {
	tests := []struct {
		name     string
		triple   string
		host     string
		revision string
		compiler string
		want     string
		target   string
	}{
		{"ndk clang by default", "aarch64-linux-android", "linux", "26.1.10909125", "clang++",
			"/ndk/toolchains/llvm/prebuilt/linux-x86_64/bin/clang++", "aarch64-linux-android"},
		{"windows host", "x86_64-linux-android", "windows", "25.2.9519653", "",
			"/ndk/toolchains/llvm/prebuilt/windows-x86_64/bin/clang++.exe", "x86_64-linux-android"},
		{"armv7 spelling", "armv7-linux-androideabi", "linux", "26.1.10909125", "clang++",
			"/ndk/toolchains/llvm/prebuilt/linux-x86_64/bin/clang++", "armv7a-linux-androideabi"},
		{"wrapper already targets", "aarch64-linux-android", "linux", "26.1.10909125", "aarch64-linux-android21-clang++",
			"aarch64-linux-android21-clang++", ""},
		{"explicit clang keeps --target", "aarch64-linux-android", "linux", "26.1.10909125", "/usr/bin/clang++-18",
			"/usr/bin/clang++-18", "aarch64-linux-android"},
		{"legacy layout keeps the compiler", "aarch64-linux-android", "linux", "21.4.7075529", "clang++",
			"clang++", "aarch64-linux-android"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := target.MustParse(tt.triple)
			in := Input{
				Target:     desc,
				HostOS:     tt.host,
				Arch:       desc.Architecture,
				OS:         "android",
				AndroidNDK: "/ndk",
				Compiler:   tt.compiler,
			}
			d, err := Resolve(in, ndkProbe("/ndk", tt.revision))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if d.Compiler != tt.want {
				t.Errorf("Compiler = %s, want %s", d.Compiler, tt.want)
			}
			if d.Target != tt.target {
				t.Errorf("Target = %q, want %q", d.Target, tt.target)
			}
		})
	}
}

func TestAndroidFailures(t *testing.T) {
	_, err := Resolve(androidInput(""), mapProbe{})
	if !diag.Is(err, diag.KindMissingEnvironment) {
		t.Errorf("missing NDK: error = %v, want KindMissingEnvironment", err)
	}
	if err != nil && !strings.Contains(err.Error(), "ANDROID_NDK") {
		t.Errorf("missing NDK: error %q does not name ANDROID_NDK", err)
	}

	_, err = Resolve(androidInput("/ndk"), mapProbe{"/ndk": nil})
	if !diag.Is(err, diag.KindMissingFile) {
		t.Errorf("missing source.properties: error = %v, want KindMissingFile", err)
	}

	probe := mapProbe{"/ndk": nil, "/ndk/source.properties": []byte("Pkg.Desc = Android NDK\n")}
	_, err = Resolve(androidInput("/ndk"), probe)
	if !diag.Is(err, diag.KindMalformedVersionDescriptor) {
		t.Errorf("malformed descriptor: error = %v, want KindMalformedVersionDescriptor", err)
	}
}

func wasiInput(triple string, features ...string) Input {
	d := target.MustParse(triple)
	return Input{
		Target:     d,
		HostOS:     "linux",
		Arch:       d.Architecture,
		OS:         d.OS(),
		Features:   features,
		WASISDK:    "/wasi",
		BindingDir: "/binding",
		Compiler:   "c++",
	}
}

func TestWASISysroot(t *testing.T) {
	probe := mapProbe{"/wasi": nil}

	d, err := Resolve(wasiInput("wasm32-wasip1"), probe)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.Compiler != "/wasi/bin/clang++" {
		t.Errorf("Compiler = %s", d.Compiler)
	}
	if !reflect.DeepEqual(d.LinkSearch, []string{"/wasi/share/wasi-sysroot/lib/wasm32-wasip1"}) {
		t.Errorf("LinkSearch = %v", d.LinkSearch)
	}
	if !reflect.DeepEqual(d.Flags, []string{"-fno-exceptions", "-stdlib=libc++"}) {
		t.Errorf("Flags = %v", d.Flags)
	}
	if !reflect.DeepEqual(d.LinkLibs, []string{"c++", "c++abi"}) {
		t.Errorf("LinkLibs = %v", d.LinkLibs)
	}
	if d.Target != "wasm32-wasip1" {
		t.Errorf("Target = %q, want the triple itself", d.Target)
	}
	if d.WASI.Freestanding || len(d.ExtraSources) != 0 {
		t.Errorf("wasip1 should not be freestanding: extra %v", d.ExtraSources)
	}
	if d.RuntimeLib != "" {
		t.Errorf("RuntimeLib = %s, want none once libc++ is chosen", d.RuntimeLib)
	}

	d, err = Resolve(wasiInput("wasm32-wasip1-threads", "atomics", "bulk-memory"), probe)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(d.LinkSearch, []string{"/wasi/share/wasi-sysroot/lib/wasm32-wasip1-threads"}) {
		t.Errorf("atomics LinkSearch = %v", d.LinkSearch)
	}
	if !d.WASI.Threads {
		t.Error("atomics should select the threads sysroot")
	}
	if d.Target != "wasm32-wasip1-threads" {
		t.Errorf("atomics Target = %q, want wasm32-wasip1-threads", d.Target)
	}
}

func TestWASIFeatureMatchIsExact(t *testing.T) {
	d, err := Resolve(wasiInput("wasm32-wasip1", "no-atomics"), mapProbe{"/wasi": nil})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.WASI.Threads {
		t.Error("a feature named no-atomics should not select the threads sysroot")
	}
}

func TestWASIFreestanding(t *testing.T) {
	d, err := Resolve(wasiInput("wasm32-unknown-unknown"), mapProbe{"/wasi": nil})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.Target != "wasm32-wasip1" {
		t.Errorf("Target = %s, want wasm32-wasip1", d.Target)
	}
	if !reflect.DeepEqual(d.LinkLibs, []string{"c++", "c++abi", "c"}) {
		t.Errorf("LinkLibs = %v", d.LinkLibs)
	}
	want := []string{filepath.Join("/binding", "wasi_to_unknown.cpp")}
	if !reflect.DeepEqual(d.ExtraSources, want) {
		t.Errorf("ExtraSources = %v, want %v", d.ExtraSources, want)
	}
	if !d.WASI.Freestanding {
		t.Error("WASI.Freestanding = false")
	}
}

func TestWASIDefaultsAndFailures(t *testing.T) {
	in := wasiInput("wasm32-wasip1")
	in.WASISDK = ""
	d, err := Resolve(in, mapProbe{DefaultWASISDK: nil})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.WASI.Root != DefaultWASISDK {
		t.Errorf("WASI.Root = %s, want %s", d.WASI.Root, DefaultWASISDK)
	}

	_, err = Resolve(wasiInput("wasm32-wasip1"), mapProbe{})
	if !diag.Is(err, diag.KindMissingToolchainRoot) {
		t.Errorf("error = %v, want KindMissingToolchainRoot", err)
	}
}

func TestEmscriptenSkipsWASI(t *testing.T) {
	d, err := Resolve(wasiInput("wasm32-unknown-emscripten"), mapProbe{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.WASI != nil || d.Compiler != "c++" {
		t.Errorf("emscripten got a WASI decision: %+v", d)
	}
}

func TestMSVC(t *testing.T) {
	in := Input{
		Target:   target.MustParse("x86_64-pc-windows-msvc"),
		HostOS:   "windows",
		Arch:     "x86_64",
		OS:       "windows",
		Compiler: "cl.exe",
		LibCpp:   true,
	}
	d, err := Resolve(in, mapProbe{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !d.StaticCRT {
		t.Error("StaticCRT = false")
	}
	if !reflect.DeepEqual(d.LinkArgs, []string{"/NODEFAULTLIB:libcmt.lib"}) {
		t.Errorf("LinkArgs = %v", d.LinkArgs)
	}
	if d.Stdlib != "" || d.RuntimeLib != "" || len(d.LinkLibs) != 0 {
		t.Errorf("MSVC should link no C++ runtime explicitly: %+v", d)
	}
}

func TestClangLibCpp(t *testing.T) {
	in := Input{
		Target:   target.MustParse("x86_64-unknown-linux-gnu"),
		HostOS:   "linux",
		Arch:     "x86_64",
		OS:       "linux",
		Compiler: "clang++",
		LibCpp:   true,
	}
	d, err := Resolve(in, mapProbe{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.Stdlib != "c++" || !reflect.DeepEqual(d.Flags, []string{"-stdlib=libc++"}) {
		t.Errorf("Stdlib = %q, Flags = %v", d.Stdlib, d.Flags)
	}

	// libc++ only applies to clang
	in.Compiler = "g++"
	d, err = Resolve(in, mapProbe{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.Stdlib != "" || d.RuntimeLib != "stdc++" {
		t.Errorf("g++: Stdlib = %q, RuntimeLib = %q", d.Stdlib, d.RuntimeLib)
	}
}

func TestDefaultRuntimeLib(t *testing.T) {
	tests := []struct {
		triple   string
		compiler string
		want     string
	}{
		{"x86_64-unknown-linux-gnu", "c++", "stdc++"},
		{"aarch64-apple-darwin", "clang++", "c++"},
		{"x86_64-unknown-freebsd", "c++", "c++"},
		{"x86_64-pc-windows-gnu", "x86_64-w64-mingw32-g++", "stdc++"},
		{"x86_64-pc-windows-msvc", "clang-cl", ""},
	}
	for _, tt := range tests {
		d := target.MustParse(tt.triple)
		in := Input{Target: d, HostOS: "linux", Arch: d.Architecture, OS: d.OS(), Compiler: tt.compiler}
		got, err := Resolve(in, mapProbe{})
		if err != nil {
			t.Fatalf("%s: Resolve() error = %v", tt.triple, err)
		}
		if got.RuntimeLib != tt.want {
			t.Errorf("%s: RuntimeLib = %q, want %q", tt.triple, got.RuntimeLib, tt.want)
		}
	}
}
