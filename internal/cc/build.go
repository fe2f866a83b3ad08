// Completion: 100% - Compiler driver complete
package cc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/xyproto/mervebuild/internal/diag"
)

// build.go - Native compiler invocation
//
// A Build collects sources and settings, renders one compile command per
// source file and one archive command, and runs them in order to produce a
// static library.

// Define is a preprocessor definition. An empty Value defines the name
// without a value.
type Define struct {
	Name  string
	Value string
}

// Command is one compiler or archiver invocation
type Command struct {
	Dir    string
	Args   []string
	File   string
	Output string
}

// String returns the command line, for logs
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Runner executes a command and returns its combined output
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	if len(c.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	return cmd.CombinedOutput()
}

// Build is a native static library build
type Build struct {
	files       []string
	includeDirs []string
	defines     []Define
	flags       []string
	std         string
	warnings    bool
	cpp         bool
	compiler    string
	archiver    string
	target      string
	staticCRT   bool
	optLevel    string
	debug       bool
	pic         bool
	outDir      string
}

// New returns an empty Build with warnings enabled and PIC on
func New() *Build {
	return &Build{warnings: true, pic: true}
}

func (b *Build) File(path string) *Build {
	b.files = append(b.files, path)
	return b
}

func (b *Build) Include(dir string) *Build {
	b.includeDirs = append(b.includeDirs, dir)
	return b
}

func (b *Build) Define(name, value string) *Build {
	b.defines = append(b.defines, Define{Name: name, Value: value})
	return b
}

func (b *Build) Flag(flag string) *Build {
	b.flags = append(b.flags, flag)
	return b
}

func (b *Build) Cpp(on bool) *Build {
	b.cpp = on
	return b
}

func (b *Build) Std(std string) *Build {
	b.std = std
	return b
}

func (b *Build) Warnings(on bool) *Build {
	b.warnings = on
	return b
}

func (b *Build) Compiler(path string) *Build {
	b.compiler = path
	return b
}

func (b *Build) Archiver(path string) *Build {
	b.archiver = path
	return b
}

// Target passes --target to clang-like compilers
func (b *Build) Target(triple string) *Build {
	b.target = triple
	return b
}

// StaticCRT selects /MT over /MD for MSVC-like compilers
func (b *Build) StaticCRT(on bool) *Build {
	b.staticCRT = on
	return b
}

func (b *Build) OptLevel(level string) *Build {
	b.optLevel = level
	return b
}

func (b *Build) Debug(on bool) *Build {
	b.debug = on
	return b
}

func (b *Build) PIC(on bool) *Build {
	b.pic = on
	return b
}

func (b *Build) OutDir(dir string) *Build {
	b.outDir = dir
	return b
}

// Files returns the source files in the order they were added
func (b *Build) Files() []string {
	return append([]string(nil), b.files...)
}

// GetCompiler returns the compiler that will be run
func (b *Build) GetCompiler() string {
	if b.compiler != "" {
		return b.compiler
	}
	return "c++"
}

// Family returns the dialect of the configured compiler
func (b *Build) Family() Family {
	return DetectFamily(b.GetCompiler())
}

// LibraryName returns the file name of the static library for name
func (b *Build) LibraryName(name string) string {
	if b.Family().IsMSVC() {
		return name + ".lib"
	}
	return "lib" + name + ".a"
}

// Commands renders every compile command followed by the archive command.
// The library path is the Output of the last command.
func (b *Build) Commands(name string) ([]Command, error) {
	if len(b.files) == 0 {
		return nil, fmt.Errorf("no source files to compile for %s", name)
	}
	if b.outDir == "" {
		return nil, fmt.Errorf("no output directory for %s", name)
	}

	family := b.Family()
	objExt := ".o"
	if family.IsMSVC() {
		objExt = ".obj"
	}

	var commands []Command
	var objects []string
	used := make(map[string]int)
	for _, src := range b.files {
		stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		used[stem]++
		if n := used[stem]; n > 1 {
			stem = fmt.Sprintf("%s-%d", stem, n)
		}
		obj := filepath.Join(b.outDir, stem+objExt)
		objects = append(objects, obj)

		var args []string
		if family.IsMSVC() {
			args = b.msvcCompileArgs(src, obj)
		} else {
			args = b.gnuCompileArgs(src, obj)
		}
		commands = append(commands, Command{Dir: b.outDir, Args: args, File: src, Output: obj})
	}

	lib := filepath.Join(b.outDir, b.LibraryName(name))
	var args []string
	if family.IsMSVC() {
		archiver := b.archiver
		if archiver == "" {
			archiver = "lib.exe"
		}
		args = append([]string{archiver, "/nologo", "/OUT:" + lib}, objects...)
	} else {
		archiver := b.archiver
		if archiver == "" {
			archiver = "ar"
		}
		args = append([]string{archiver, "crs", lib}, objects...)
	}
	commands = append(commands, Command{Dir: b.outDir, Args: args, Output: lib})

	return commands, nil
}

func (b *Build) gnuCompileArgs(src, obj string) []string {
	args := []string{b.GetCompiler(), "-c"}
	if b.optLevel != "" {
		args = append(args, "-O"+b.optLevel)
	}
	if b.debug {
		args = append(args, "-g")
	}
	if b.pic && !strings.HasPrefix(b.target, "wasm") {
		args = append(args, "-fPIC")
	}
	args = append(args, "-ffunction-sections", "-fdata-sections")
	if b.target != "" {
		args = append(args, "--target="+b.target)
	}
	if b.std != "" {
		args = append(args, "-std="+b.std)
	}
	if !b.warnings {
		args = append(args, "-w")
	}
	for _, dir := range b.includeDirs {
		args = append(args, "-I"+dir)
	}
	for _, d := range b.defines {
		if d.Value == "" {
			args = append(args, "-D"+d.Name)
		} else {
			args = append(args, "-D"+d.Name+"="+d.Value)
		}
	}
	args = append(args, b.flags...)
	return append(args, "-o", obj, src)
}

func (b *Build) msvcCompileArgs(src, obj string) []string {
	args := []string{b.GetCompiler(), "/nologo", "/c"}
	if b.cpp {
		args = append(args, "/EHsc")
	}
	if b.staticCRT {
		args = append(args, "/MT")
	} else {
		args = append(args, "/MD")
	}
	if b.optLevel != "" && b.optLevel != "0" {
		args = append(args, "/O2")
	}
	if b.debug {
		args = append(args, "/Z7")
	}
	if b.target != "" && b.Family() == FamilyClangCl {
		args = append(args, "--target="+b.target)
	}
	if b.std != "" {
		args = append(args, "/std:"+b.std)
	}
	if !b.warnings {
		args = append(args, "/W0")
	}
	for _, dir := range b.includeDirs {
		args = append(args, "/I"+dir)
	}
	for _, d := range b.defines {
		if d.Value == "" {
			args = append(args, "/D"+d.Name)
		} else {
			args = append(args, "/D"+d.Name+"="+d.Value)
		}
	}
	args = append(args, b.flags...)
	return append(args, "/Fo"+obj, src)
}

// Compile runs every command in order and returns the library path. The
// first failing command stops the build.
func (b *Build) Compile(ctx context.Context, runner Runner, name string) (string, error) {
	commands, err := b.Commands(name)
	if err != nil {
		return "", err
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", b.outDir, err)
	}
	for _, c := range commands {
		out, err := runner.Run(ctx, c)
		if err != nil {
			msg := strings.TrimSpace(string(out))
			if msg == "" {
				msg = "command failed"
			}
			return "", diag.Wrap(diag.KindCompilerFailed, c.String(), err, msg)
		}
	}
	return commands[len(commands)-1].Output, nil
}
