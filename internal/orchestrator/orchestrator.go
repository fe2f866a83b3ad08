// Completion: 100% - Build orchestration complete
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xyproto/mervebuild/internal/cc"
	"github.com/xyproto/mervebuild/internal/config"
	"github.com/xyproto/mervebuild/internal/diag"
	"github.com/xyproto/mervebuild/internal/progress"
	"github.com/xyproto/mervebuild/internal/target"
	"github.com/xyproto/mervebuild/internal/toolchain"
	"github.com/xyproto/mervebuild/internal/watch"
)

// orchestrator.go - One build of the native library
//
// Run is called once per build invocation and does everything in order:
//  1. decide between source mode and artifact mode
//  2. in source mode, regenerate the artifact directory
//  3. check that the amalgamated source is there
//  4. parse the target, resolve the toolchain and configure the compiler
//  5. compile and archive, then write the manifest and compilation database
// Nothing runs concurrently and nothing is retried.

// Options configure one build
type Options struct {
	BindingDir string
	Layout     config.Layout
	Env        config.Snapshot

	// OutDir receives objects, the library and the manifest. Empty means
	// Env.OutDir, then <binding>/build/<target>.
	OutDir string

	// DryRun stops before the compiler runs and writes nothing to OutDir
	DryRun bool

	Runner   cc.Runner
	Probe    toolchain.Probe
	Logger   zerolog.Logger
	Progress progress.Reporter

	// Cargo receives cargo: directives when not nil
	Cargo io.Writer
}

// Trigger is a file the build depends on
type Trigger struct {
	Path        string `yaml:"path"`
	Fingerprint string `yaml:"blake2b,omitempty"`
}

// Result describes a finished (or, for a dry run, planned) build
type Result struct {
	BuildID   string
	Started   time.Time
	Mode      Mode
	Target    target.Descriptor
	Env       config.Snapshot
	Decision  toolchain.Decision
	OutDir    string
	Artifacts []string
	Triggers  []Trigger
	Inlined   []string
	Commands  []cc.Command
	Library   string

	ManifestPath  string
	CompileDBPath string
	Directives    []string
}

// TriggerMap returns the triggers as path to fingerprint
func (r *Result) TriggerMap() map[string]string {
	m := make(map[string]string, len(r.Triggers))
	for _, t := range r.Triggers {
		m[t.Path] = t.Fingerprint
	}
	return m
}

// OutDirFor returns the output directory Run would use. The result is
// absolute, since the compiler runs inside it.
func OutDirFor(opts Options, triple string) string {
	dir := filepath.Join(opts.BindingDir, "build", triple)
	switch {
	case opts.OutDir != "":
		dir = opts.OutDir
	case opts.Env.OutDir != "":
		dir = opts.Env.OutDir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// Run performs one build
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}

	res := &Result{
		BuildID: uuid.NewString(),
		Started: time.Now(),
		Env:     opts.Env,
	}
	layout := opts.Layout
	paths := layout.Paths(opts.BindingDir)

	// Mode
	res.Mode = DetectMode(layout, paths)
	logger.Info().Str("mode", res.Mode.String()).Str("root", paths.Root).Msg("build mode")

	var triggers []string
	if res.Mode == ModeSource {
		reporter.Begin("amalgamate", paths.Deps)
		gen, err := Generate(layout, paths)
		if err != nil {
			return nil, err
		}
		reporter.Finish("amalgamate")
		res.Artifacts = gen.Artifacts
		res.Inlined = gen.Inlined
		triggers = gen.Triggers
		logger.Debug().Strs("inlined", gen.Inlined).Msg("amalgamated")
	} else {
		res.Artifacts = ExistingArtifacts(layout, paths)
	}

	source := filepath.Join(paths.Deps, layout.AmalgamatedSource())
	if !fileExists(source) {
		return nil, diag.New(diag.KindMissingFile, source, "no amalgamated source").
			WithHelp("outside the source tree, %s must contain the amalgamated sources shipped with the package", paths.Deps)
	}

	// Toolchain
	reporter.Begin("resolve", opts.Env.Target)
	desc, err := target.Parse(opts.Env.Target)
	if err != nil {
		return nil, err
	}
	res.Target = desc
	res.Env.Complete(desc)

	decision, err := toolchain.Resolve(res.Env.ToolchainInput(desc, layout, opts.BindingDir), opts.Probe)
	if err != nil {
		return nil, err
	}
	res.Decision = decision
	reporter.Finish("resolve")
	logger.Info().
		Str("target", desc.String()).
		Str("compiler", decision.Compiler).
		Str("family", decision.Family.String()).
		Msg("toolchain resolved")

	res.OutDir = OutDirFor(opts, desc.String())
	build := configure(layout, paths, res.Env)
	apply(build, decision, res.Env)
	build.OutDir(res.OutDir)

	res.Commands, err = build.Commands(layout.Name)
	if err != nil {
		return nil, err
	}
	for _, c := range res.Commands {
		logger.Debug().Str("cmd", c.String()).Msg("planned")
	}

	for _, t := range triggers {
		fp, err := watch.Fingerprint(t)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting %s: %w", t, err)
		}
		res.Triggers = append(res.Triggers, Trigger{Path: t, Fingerprint: fp})
	}
	res.Library = res.Commands[len(res.Commands)-1].Output
	res.Directives = Directives(res, layout.Name)

	if opts.DryRun {
		return res, nil
	}

	// Compile
	reporter.Begin("compile", layout.AmalgamatedSource())
	if _, err := build.Compile(ctx, opts.Runner, layout.Name); err != nil {
		return nil, err
	}
	reporter.Finish("compile")
	logger.Info().Str("library", res.Library).Msg("compiled")

	reporter.Begin("manifest", res.OutDir)
	res.CompileDBPath = filepath.Join(res.OutDir, "compile_commands.json")
	if err := cc.WriteCompileDatabase(res.CompileDBPath, res.Commands); err != nil {
		return nil, err
	}
	res.ManifestPath = filepath.Join(res.OutDir, ManifestName)
	if err := WriteManifest(res.ManifestPath, res.Manifest()); err != nil {
		return nil, err
	}
	reporter.Finish("manifest")

	if opts.Cargo != nil {
		for _, d := range res.Directives {
			fmt.Fprintln(opts.Cargo, d)
		}
	}
	return res, nil
}

// configure sets up the compiler for the amalgamated source
func configure(layout config.Layout, paths config.Paths, env config.Snapshot) *cc.Build {
	build := cc.New().
		File(filepath.Join(paths.Deps, layout.AmalgamatedSource())).
		Include(paths.Deps).
		Cpp(true).
		Std(layout.Std).
		Warnings(false).
		OptLevel(env.OptLevel).
		Debug(env.Debug)
	if env.ErrorLocation {
		build.Define(layout.ErrorLocationDefine, "1")
	}
	return build
}

// apply turns a toolchain decision into compiler settings
func apply(build *cc.Build, d toolchain.Decision, env config.Snapshot) {
	if d.Compiler != "" {
		build.Compiler(d.Compiler)
	}
	switch {
	case d.Archiver != "":
		build.Archiver(d.Archiver)
	case env.Archiver != "":
		build.Archiver(env.Archiver)
	}
	if d.Target != "" {
		build.Target(d.Target)
	}
	for _, f := range d.Flags {
		build.Flag(f)
	}
	for _, f := range d.ExtraSources {
		build.File(f)
	}
	build.StaticCRT(d.StaticCRT)
	if strings.HasPrefix(env.Arch, "wasm") {
		build.PIC(false)
	}
}

// Clean removes the output directory and, in source mode, the generated
// artifact directory. Returns what was removed.
func Clean(layout config.Layout, bindingDir, outDir string) ([]string, error) {
	paths := layout.Paths(bindingDir)
	var removed []string
	targets := []string{outDir}
	if DetectMode(layout, paths) == ModeSource {
		targets = append(targets, paths.Deps)
	}
	for _, dir := range targets {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, err
		}
		removed = append(removed, dir)
	}
	return removed, nil
}
