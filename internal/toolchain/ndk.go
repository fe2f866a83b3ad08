package toolchain

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xyproto/mervebuild/internal/diag"
	"github.com/xyproto/mervebuild/internal/target"
)

// UnifiedLayoutMajor is the first NDK release with the host-tagged
// toolchains/llvm/prebuilt layout
const UnifiedLayoutMajor = 22

var revisionPattern = regexp.MustCompile(`Pkg\.Revision = (\d+)\.(\d+)\.(\d+)`)

// Version is an NDK revision
type Version struct {
	Major int `yaml:"major"`
	Minor int `yaml:"minor"`
	Patch int `yaml:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// NDK records what was found in the NDK root
type NDK struct {
	Root    string  `yaml:"root"`
	Version Version `yaml:"version"`
	Layout  string  `yaml:"layout"`
	HostTag string  `yaml:"host_tag,omitempty"`
	Arch    string  `yaml:"arch"`
}

// ParseRevision extracts the Pkg.Revision line from the contents of an
// NDK source.properties file
func ParseRevision(properties []byte) (Version, error) {
	m := revisionPattern.FindSubmatch(properties)
	if m == nil {
		return Version{}, fmt.Errorf("no Pkg.Revision = X.Y.Z line")
	}
	var nums [3]int
	for i := range nums {
		n, err := strconv.Atoi(string(m[i+1]))
		if err != nil {
			return Version{}, fmt.Errorf("revision component %q: %w", m[i+1], err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// ReadNDKVersion reads <ndk>/source.properties through the probe
func ReadNDKVersion(ndkRoot string, probe Probe) (Version, error) {
	propertiesPath := path.Join(ndkRoot, "source.properties")
	data, err := probe.ReadFile(propertiesPath)
	if err != nil {
		return Version{}, diag.Wrap(diag.KindMissingFile, propertiesPath, err,
			"could not read the NDK version descriptor")
	}
	v, err := ParseRevision(data)
	if err != nil {
		return Version{}, diag.Wrap(diag.KindMalformedVersionDescriptor, propertiesPath, err,
			"source.properties did not match the expected pattern")
	}
	return v, nil
}

// HostTag returns the prebuilt directory name for the machine running the
// build. It depends only on the host, never on the target.
func HostTag(hostOS string) (string, error) {
	switch hostOS {
	case "windows":
		return "windows-x86_64", nil
	case "linux":
		return "linux-x86_64", nil
	case "darwin":
		return "darwin-x86_64", nil
	default:
		return "", diag.New(diag.KindUnsupportedHost, hostOS, "host os is not supported").
			WithHelp("Android builds are supported from windows, linux and darwin hosts")
	}
}

// AndroidClangTarget is the --target clang expects for an Android triple.
// 32-bit ARM is spelled armv7a there.
func AndroidClangTarget(t target.Descriptor) string {
	switch t.Architecture {
	case "arm", "armv7", "thumbv7neon":
		t.Architecture = "armv7a"
	}
	return t.String()
}

// targetPrefixed is true for NDK wrapper scripts such as
// aarch64-linux-android21-clang++, which already select the target
func targetPrefixed(compiler string, t target.Descriptor) bool {
	base := filepath.Base(compiler)
	return strings.HasPrefix(base, t.String()) || strings.HasPrefix(base, AndroidClangTarget(t))
}

func resolveAndroid(d *Decision, in Input, probe Probe) error {
	ndkRoot := in.AndroidNDK
	if ndkRoot == "" {
		return diag.New(diag.KindMissingEnvironment, "ANDROID_NDK", "variable not set").
			WithHelp("set ANDROID_NDK to the root of an Android NDK to build for %s", in.Target)
	}

	version, err := ReadNDKVersion(ndkRoot, probe)
	if err != nil {
		return err
	}

	ndk := &NDK{
		Root:    ndkRoot,
		Version: version,
		Arch:    target.NormalizeArchitectureAlias(in.Target.Architecture),
	}

	if version.Major < UnifiedLayoutMajor {
		ndk.Layout = "legacy"
		d.Flags = append(d.Flags,
			"--sysroot="+path.Join(ndkRoot, "sysroot"),
			"-isystem"+path.Join(ndkRoot, "sources/cxx-stl/llvm-libc++/include"),
		)
	} else {
		hostTag, err := HostTag(in.HostOS)
		if err != nil {
			return err
		}
		ndk.Layout = "unified"
		ndk.HostTag = hostTag
		hostToolchain := path.Join(ndkRoot, "toolchains/llvm/prebuilt", hostTag)
		d.Flags = append(d.Flags, "--sysroot="+path.Join(hostToolchain, "sysroot"))
		d.Archiver = path.Join(hostToolchain, "bin", "llvm-ar")
		if in.Compiler == "" || in.Compiler == "clang++" {
			// a bare clang++ from PATH is not the NDK one
			clang := "clang++"
			if in.HostOS == "windows" {
				clang += ".exe"
			}
			d.Compiler = path.Join(hostToolchain, "bin", clang)
		}
	}

	d.NDK = ndk
	return nil
}
