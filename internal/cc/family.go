package cc

import (
	"path/filepath"
	"strings"
)

// Family is the command line dialect a compiler speaks
type Family int

const (
	FamilyGNU Family = iota
	FamilyClang
	FamilyMSVC
	// FamilyClangCl is clang-cl: MSVC style flags, clang underneath
	FamilyClangCl
)

func (f Family) String() string {
	switch f {
	case FamilyGNU:
		return "gnu"
	case FamilyClang:
		return "clang"
	case FamilyMSVC:
		return "msvc"
	case FamilyClangCl:
		return "clang-cl"
	default:
		return "unknown"
	}
}

// MarshalYAML writes the family by name
func (f Family) MarshalYAML() (any, error) {
	return f.String(), nil
}

// IsMSVC returns true if the compiler takes cl.exe style flags
func (f Family) IsMSVC() bool {
	return f == FamilyMSVC || f == FamilyClangCl
}

// IsClang returns true if the compiler is clang underneath
func (f Family) IsClang() bool {
	return f == FamilyClang || f == FamilyClangCl
}

// DetectFamily classifies a compiler by its executable name, so
// "/opt/wasi-sdk/bin/clang++", "aarch64-linux-android21-clang++" and
// "clang-cl.exe" are all recognized without running them.
func DetectFamily(compiler string) Family {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(compiler, "\\", "/")))
	base = strings.TrimSuffix(base, ".exe")
	switch {
	case base == "clang-cl":
		return FamilyClangCl
	case base == "cl":
		return FamilyMSVC
	case strings.Contains(base, "clang"):
		return FamilyClang
	default:
		return FamilyGNU
	}
}
