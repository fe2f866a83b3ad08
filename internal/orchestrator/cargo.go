package orchestrator

import (
	"strings"
)

// Directives returns the cargo: lines a Rust build script prints for this
// build: one rerun-if-changed per trigger, then where and what to link
func Directives(r *Result, name string) []string {
	var lines []string
	for _, t := range r.Triggers {
		lines = append(lines, "cargo:rerun-if-changed="+t.Path)
	}
	if r.OutDir != "" {
		lines = append(lines, "cargo:rustc-link-search=native="+r.OutDir)
	}
	lines = append(lines, "cargo:rustc-link-lib=static="+name)
	for _, dir := range r.Decision.LinkSearch {
		lines = append(lines, "cargo:rustc-link-search="+dir)
	}
	for _, lib := range r.Decision.LinkLibs {
		lines = append(lines, "cargo:rustc-link-lib="+lib)
	}
	for _, arg := range r.Decision.LinkArgs {
		lines = append(lines, "cargo:rustc-link-arg="+arg)
	}
	return lines
}

// FormatDirectives joins directives one per line
func FormatDirectives(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
