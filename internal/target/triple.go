// Completion: 100% - Target triple parsing complete
package target

import (
	"fmt"
	"strings"

	"github.com/xyproto/mervebuild/internal/diag"
)

// Descriptor is a parsed target triple: architecture, vendor, and the
// optional system and ABI components.
//
// ARCHITECTURE NOTE: the Descriptor describes the platform being built for.
// The platform running the build (the host) is a separate input and is never
// derived from the Descriptor.
type Descriptor struct {
	Architecture string
	Vendor       string
	System       string
	ABI          string
	HasSystem    bool
	HasABI       bool
}

// Parse splits a dash-separated triple such as "aarch64-linux-android" or
// "x86_64-pc-windows-msvc". At least architecture and vendor are required.
// Components past the fourth stay part of the ABI, so that String() gives
// back exactly what was parsed.
func Parse(triple string) (Descriptor, error) {
	parts := strings.SplitN(triple, "-", 4)
	if len(parts) < 2 {
		return Descriptor{}, diag.New(diag.KindMalformedTriple, triple,
			"expected at least architecture and vendor").
			WithHelp("use a triple like x86_64-unknown-linux-gnu")
	}
	for _, part := range parts {
		if part == "" {
			return Descriptor{}, diag.New(diag.KindMalformedTriple, triple,
				"empty component")
		}
	}

	d := Descriptor{
		Architecture: parts[0],
		Vendor:       parts[1],
	}
	if len(parts) > 2 {
		d.System = parts[2]
		d.HasSystem = true
	}
	if len(parts) > 3 {
		d.ABI = parts[3]
		d.HasABI = true
	}
	return d, nil
}

// MustParse is like Parse but panics on a malformed triple
func MustParse(triple string) Descriptor {
	d, err := Parse(triple)
	if err != nil {
		panic(fmt.Sprintf("target.MustParse(%q): %v", triple, err))
	}
	return d
}

// String reconstructs the canonical triple from the present components
func (d Descriptor) String() string {
	s := d.Architecture + "-" + d.Vendor
	if d.HasSystem {
		s += "-" + d.System
	}
	if d.HasABI {
		s += "-" + d.ABI
	}
	return s
}

// IsAndroid returns true for the android and androideabi systems
func (d Descriptor) IsAndroid() bool {
	return d.HasSystem && (d.System == "android" || d.System == "androideabi")
}

// IsMSVC returns true if the triple names the msvc ABI
func (d Descriptor) IsMSVC() bool {
	return d.HasABI && d.ABI == "msvc"
}

// IsApple returns true for apple-vendored triples
func (d Descriptor) IsApple() bool {
	return d.Vendor == "apple"
}

// OS guesses the compile-target OS the way the build environment would
// report it, for use when the environment does not say.
// "wasm32-wasip1" -> "wasi", "x86_64-apple-darwin" -> "macos",
// "wasm32-unknown-unknown" -> "unknown".
func (d Descriptor) OS() string {
	if strings.HasPrefix(d.Vendor, "wasi") {
		return "wasi"
	}
	os := d.Vendor
	if d.HasSystem {
		os = d.System
	}
	switch {
	case strings.HasPrefix(os, "wasi"):
		return "wasi"
	case os == "darwin":
		return "macos"
	case os == "androideabi":
		return "android"
	}
	return os
}

// NormalizeArchitectureAlias maps the architecture spellings used in
// triples to the directory names used inside the Android NDK.
// Anything not in the table is returned unchanged.
func NormalizeArchitectureAlias(arch string) string {
	switch arch {
	case "armv7":
		return "arm"
	case "aarch64":
		return "arm64"
	case "i686":
		return "x86"
	default:
		return arch
	}
}
