// Completion: 100% - C ABI surface check complete
package abi

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// abi.go - The handle based C interface the compiled library exposes
//
// The library is opaque to the build: a parse call returns a handle, the
// handle is queried by index, and must be freed. Check confirms that the
// standalone header still declares every entry point, so a renamed function
// is caught before the link step of a dependent crate.

// DeclKind tells functions from types
type DeclKind int

const (
	Function DeclKind = iota
	Type
)

func (k DeclKind) String() string {
	if k == Type {
		return "type"
	}
	return "function"
}

// Decl is one required declaration
type Decl struct {
	Name string
	Kind DeclKind
}

func (d Decl) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.Name)
}

// Surface returns the declarations expected for a prefix such as "merve".
// The error location payload type is only required when errorLocation is on.
func Surface(prefix string, errorLocation bool) []Decl {
	p := prefix + "_"
	decls := []Decl{
		{p + "string", Type},
		{p + "analysis", Type},
		{p + "version_components", Type},

		{p + "parse_commonjs", Function},
		{p + "is_valid", Function},
		{p + "free", Function},
		{p + "get_exports_count", Function},
		{p + "get_reexports_count", Function},
		{p + "get_export_name", Function},
		{p + "get_export_line", Function},
		{p + "get_reexport_name", Function},
		{p + "get_reexport_line", Function},
		{p + "get_last_error", Function},
		{p + "get_version", Function},
		{p + "get_version_components", Function},
	}
	if errorLocation {
		decls = append(decls, Decl{p + "error_loc", Type})
	}
	return decls
}

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`//[^\n]*`)
)

// stripComments removes C comments, so names mentioned in documentation do
// not count as declarations
func stripComments(header string) string {
	return lineComment.ReplaceAllString(blockComment.ReplaceAllString(header, " "), " ")
}

// Check returns the declarations from Surface that header lacks. A function
// counts as declared when its name is followed by "(", a type when its name
// ends a typedef with ";".
func Check(header, prefix string, errorLocation bool) []Decl {
	code := stripComments(header)
	var missing []Decl
	for _, d := range Surface(prefix, errorLocation) {
		var pattern string
		switch d.Kind {
		case Function:
			pattern = `\b` + regexp.QuoteMeta(d.Name) + `\s*\(`
		case Type:
			pattern = `\b` + regexp.QuoteMeta(d.Name) + `\s*;`
		}
		if !regexp.MustCompile(pattern).MatchString(code) {
			missing = append(missing, d)
		}
	}
	return missing
}

// CheckFile runs Check on a header file
func CheckFile(path, prefix string, errorLocation bool) ([]Decl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Check(string(data), prefix, errorLocation), nil
}

// Names joins declaration names, for messages
func Names(decls []Decl) string {
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	return strings.Join(names, ", ")
}
