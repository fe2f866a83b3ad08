// Completion: 100% - Subcommands complete, all flags wired
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/xyproto/mervebuild/internal/abi"
	"github.com/xyproto/mervebuild/internal/config"
	"github.com/xyproto/mervebuild/internal/diag"
	"github.com/xyproto/mervebuild/internal/orchestrator"
	"github.com/xyproto/mervebuild/internal/pack"
	"github.com/xyproto/mervebuild/internal/progress"
	"github.com/xyproto/mervebuild/internal/suggest"
	"github.com/xyproto/mervebuild/internal/target"
	"github.com/xyproto/mervebuild/internal/watch"
)

// cli.go - Subcommands
//
// - mervebuild build    (amalgamate in source mode, then compile)
// - mervebuild explain  (show the toolchain decision without compiling)
// - mervebuild watch    (build, then rebuild on every source change)
// - mervebuild verify   (check the C header against the expected ABI)
// - mervebuild pack / unpack <archive.tar.xz>
// - mervebuild clean

var commands = []string{"build", "explain", "watch", "verify", "pack", "unpack", "clean", "version", "help"}

// Settings are the global command line flags
type Settings struct {
	BindingDir    string
	Target        string
	OutDir        string
	ErrorLocation bool
	LibCpp        bool
	EmitCargo     bool
	Progress      bool
	Verbose       bool
	Logger        zerolog.Logger
}

// CommandContext holds the execution context for a CLI command
type CommandContext struct {
	Ctx      context.Context
	Settings Settings
	Layout   config.Layout
	Env      config.Snapshot
	Logger   zerolog.Logger
	Stdout   io.Writer
	Stderr   io.Writer
}

// newCommandContext loads the layout and the environment, then applies the
// command line flags on top
func newCommandContext(ctx context.Context, s Settings, src config.Source) (*CommandContext, error) {
	layout, err := config.LoadLayout(s.BindingDir)
	if err != nil {
		return nil, err
	}

	env := config.Read(src)
	if s.Target != "" && s.Target != env.Target {
		// CARGO_CFG_* describe $TARGET, not this one
		env.Target = s.Target
		env.Arch = ""
		env.OS = ""
		env.Features = nil
	}
	if s.ErrorLocation {
		env.ErrorLocation = true
	}
	if s.LibCpp {
		env.LibCpp = true
	}

	return &CommandContext{
		Ctx:      ctx,
		Settings: s,
		Layout:   layout,
		Env:      env,
		Logger:   s.Logger,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}, nil
}

// RunCLI runs one subcommand
func RunCLI(ctx context.Context, args []string, s Settings) error {
	if len(args) == 0 {
		printHelp(os.Stdout)
		return nil
	}

	subcmd := args[0]
	switch subcmd {
	case "help", "--help", "-h":
		printHelp(os.Stdout)
		return nil
	case "version", "--version", "-V":
		fmt.Println(versionString)
		return nil
	}

	c, err := newCommandContext(ctx, s, config.Environ{})
	if err != nil {
		return err
	}

	switch subcmd {
	case "build":
		return cmdBuild(c)
	case "explain":
		return cmdExplain(c)
	case "watch":
		return cmdWatch(c)
	case "verify":
		return cmdVerify(c)
	case "pack":
		return cmdPack(c, args[1:])
	case "unpack":
		return cmdUnpack(c, args[1:])
	case "clean":
		return cmdClean(c)
	}

	msg := fmt.Sprintf("unknown command: %s", subcmd)
	if similar := suggest.Similar(subcmd, commands, 3); len(similar) > 0 {
		msg += fmt.Sprintf(". Did you mean: %s?", strings.Join(similar, ", "))
	}
	return fmt.Errorf("%s\n\nRun 'mervebuild help' for usage information", msg)
}

func (c *CommandContext) options() orchestrator.Options {
	opts := orchestrator.Options{
		BindingDir: c.Settings.BindingDir,
		Layout:     c.Layout,
		Env:        c.Env,
		OutDir:     c.Settings.OutDir,
		Logger:     c.Logger,
	}
	if c.Settings.EmitCargo {
		opts.Cargo = c.Stdout
	}
	return opts
}

// outDir is where the current target is built, before any build has run
func (c *CommandContext) outDir() string {
	triple := c.Env.Target
	if d, err := target.Parse(triple); err == nil {
		triple = d.String()
	}
	return orchestrator.OutDirFor(c.options(), triple)
}

// logChanged tells which inputs changed since the previous build, if any
func (c *CommandContext) logChanged() {
	m, err := orchestrator.ReadManifest(filepath.Join(c.outDir(), orchestrator.ManifestName))
	if err != nil {
		return
	}
	changed := m.Changed()
	if len(changed) == 0 {
		c.Logger.Debug().Str("previous", m.BuildID).Msg("inputs unchanged since the previous build")
		return
	}
	c.Logger.Debug().Str("previous", m.BuildID).Strs("changed", changed).Msg("inputs changed")
}

// cmdBuild amalgamates (in source mode) and compiles the library
// Confidence that this function is working: 90%
func cmdBuild(c *CommandContext) error {
	c.logChanged()

	opts := c.options()
	var live *progress.Live
	if c.Settings.Progress {
		live = progress.NewLive(c.Stderr)
		live.Start()
		opts.Progress = live
	}

	res, err := orchestrator.Run(c.Ctx, opts)
	if live != nil {
		live.Stop(err == nil)
	}
	if err != nil {
		return err
	}

	green := color.New(color.FgHiGreen).SprintFunc()
	fmt.Fprintf(c.Stderr, "%s %s (%s, %s mode)\n", green("Built"), res.Library, res.Target, res.Mode)
	return nil
}

// cmdExplain prints what a build would do, as YAML
func cmdExplain(c *CommandContext) error {
	opts := c.options()
	opts.DryRun = true
	opts.Cargo = nil

	res, err := orchestrator.Run(c.Ctx, opts)
	if err != nil {
		return err
	}
	data, err := orchestrator.MarshalManifest(res.Manifest())
	if err != nil {
		return err
	}
	_, err = c.Stdout.Write(data)
	return err
}

// cmdWatch rebuilds whenever an input file changes, until interrupted
func cmdWatch(c *CommandContext) error {
	opts := c.options()
	opts.Cargo = nil

	rebuild := func(ctx context.Context) (map[string]string, error) {
		res, err := orchestrator.Run(ctx, opts)
		if err != nil {
			return nil, err
		}
		triggers := res.TriggerMap()
		if len(triggers) == 0 {
			// artifact mode: watch the shipped files instead
			for _, path := range res.Artifacts {
				if fp, err := watch.Fingerprint(path); err == nil {
					triggers[path] = fp
				}
			}
		}
		fmt.Fprintf(c.Stderr, "%s %s, watching %d files\n",
			color.New(color.FgHiGreen).Sprint("Built"), res.Library, len(triggers))
		return triggers, nil
	}

	err := watch.Loop(c.Ctx, c.Logger, rebuild)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// cmdVerify checks the standalone header against the C ABI
func cmdVerify(c *CommandContext) error {
	if c.Layout.StandaloneHeader == "" {
		return errors.New("the layout has no standalone header to verify")
	}
	paths := c.Layout.Paths(c.Settings.BindingDir)
	header := filepath.Join(paths.Deps, c.Layout.StandaloneHeader)
	if orchestrator.DetectMode(c.Layout, paths) == orchestrator.ModeSource {
		header = filepath.Join(paths.IncludeDir, c.Layout.StandaloneHeader)
	}

	missing, err := abi.CheckFile(header, c.Layout.ABIPrefix, c.Env.ErrorLocation)
	if err != nil {
		return diag.Wrap(diag.KindMissingFile, header, err, "cannot read the C header")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is missing %d declarations: %s", header, len(missing), abi.Names(missing))
	}

	fmt.Fprintf(c.Stderr, "%s %s declares all %d entries of the %s C ABI\n",
		color.New(color.FgHiGreen).Sprint("OK"), header,
		len(abi.Surface(c.Layout.ABIPrefix, c.Env.ErrorLocation)), c.Layout.ABIPrefix)
	return nil
}

// cmdPack writes the artifact directory to a .tar.xz archive. In source mode
// the artifacts are regenerated first.
func cmdPack(c *CommandContext, args []string) error {
	dest := c.Layout.Name + "-deps.tar.xz"
	if len(args) > 0 {
		dest = args[0]
	}

	paths := c.Layout.Paths(c.Settings.BindingDir)
	if orchestrator.DetectMode(c.Layout, paths) == orchestrator.ModeSource {
		if _, err := orchestrator.Generate(c.Layout, paths); err != nil {
			return err
		}
	}

	names, err := pack.Pack(paths.Deps, dest)
	if err != nil {
		return err
	}
	c.Logger.Debug().Strs("files", names).Msg("packed")
	fmt.Fprintf(c.Stderr, "Wrote %s (%d files)\n", dest, len(names))
	return nil
}

// cmdUnpack restores the artifact directory from an archive
func cmdUnpack(c *CommandContext, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: mervebuild unpack <archive.tar.xz>")
	}
	paths := c.Layout.Paths(c.Settings.BindingDir)
	names, err := pack.Unpack(args[0], paths.Deps)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Stderr, "Restored %d files into %s\n", len(names), paths.Deps)
	return nil
}

// cmdClean removes build output, and generated artifacts in source mode
func cmdClean(c *CommandContext) error {
	removed, err := orchestrator.Clean(c.Layout, c.Settings.BindingDir, c.outDir())
	if err != nil {
		return err
	}
	for _, dir := range removed {
		fmt.Fprintf(c.Stderr, "Removed %s\n", dir)
	}
	return nil
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, `%s - Native build orchestration for the merve lexer

USAGE:
    mervebuild [flags] <command> [arguments]

COMMANDS:
    build                 Amalgamate (in source mode) and compile the static library
    explain               Print the toolchain decision as YAML, without compiling
    watch                 Build, then rebuild whenever an input file changes
    verify                Check the standalone C header against the expected ABI
    pack [archive]        Write deps/ to a .tar.xz archive (default: merve-deps.tar.xz)
    unpack <archive>      Restore deps/ from a .tar.xz archive
    clean                 Remove the output directory, and deps/ in source mode
    help                  Show this help message
    version               Show version information

FLAGS (must come before the command):
    -C <dir>               Binding directory (default: .)
    -target <triple>       Target triple (default: $TARGET, then the host)
    -out-dir <dir>         Output directory (default: $OUT_DIR, then build/<target>)
    -error-location        Define MERVE_ENABLE_ERROR_LOCATION=1
    -libcpp                Use libc++ with clang compilers
    -emit-cargo            Print cargo: directives to stdout
    -progress              Show live build steps
    -v                     Verbose mode (same as -loglevel debug)
    -loglevel <level>      trace, debug, info, warn, error or none (default: info)

ENVIRONMENT:
    TARGET, CARGO_CFG_TARGET_ARCH, CARGO_CFG_TARGET_OS, CARGO_CFG_TARGET_FEATURE,
    CARGO_FEATURE_ERROR_LOCATION, CARGO_FEATURE_LIBCPP, ANDROID_NDK,
    WASI_SDK (default: /opt/wasi-sdk), CXX, AR, OPT_LEVEL, DEBUG, OUT_DIR

CONFIGURATION:
    An optional %s in the binding directory overrides the source layout.

EXAMPLES:
    # From a Rust build script
    mervebuild -emit-cargo build

    # Android, with an NDK
    ANDROID_NDK=$HOME/ndk/26.1.10909125 mervebuild -target aarch64-linux-android build

    # See what would happen for a WASI target
    mervebuild -target wasm32-wasip1-threads explain
`, versionString, config.FileName)
}
