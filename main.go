// Completion: 100% - CLI entry point complete
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/xyproto/mervebuild/internal/diag"
)

// Native build orchestration for the merve lexer: amalgamate the C++ sources
// into a single translation unit and compile it for any target triple

const versionString = "mervebuild 1.0.0"

// parseLogLevel maps a --loglevel value to a zerolog level
func parseLogLevel(lvl string) (zerolog.Level, error) {
	switch lvl {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "none":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q (trace, debug, info, warn, error, none)", lvl)
}

func newLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    color.NoColor,
	}).Level(level).With().Timestamp().Logger()
}

func main() {
	// NOTE: Go's flag package stops parsing at the first non-flag argument,
	// so global flags come before the command: mervebuild -target x build
	var dirFlag = flag.String("C", ".", "binding directory (the one holding deps/)")
	var targetFlag = flag.String("target", "", "target triple (default: $TARGET, then the host)")
	var outDirFlag = flag.String("out-dir", "", "output directory (default: $OUT_DIR, then build/<target>)")
	var errorLocationFlag = flag.Bool("error-location", false, "compile with error location support")
	var libcppFlag = flag.Bool("libcpp", false, "use libc++ with clang compilers")
	var emitCargoFlag = flag.Bool("emit-cargo", false, "print cargo: directives to stdout")
	var progressFlag = flag.Bool("progress", false, "show live build steps")
	var verbose = flag.Bool("v", false, "verbose mode (same as -loglevel debug)")
	var logLevelFlag = flag.String("loglevel", "info", "log level: trace, debug, info, warn, error, none")
	var versionFlag = flag.Bool("version", false, "print version information and exit")
	flag.Usage = func() { printHelp(os.Stderr) }
	flag.Parse()

	if *versionFlag {
		fmt.Println(versionString)
		os.Exit(0)
	}

	level, err := parseLogLevel(*logLevelFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	bindingDir, err := filepath.Abs(*dirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	settings := Settings{
		BindingDir:    bindingDir,
		Target:        *targetFlag,
		OutDir:        *outDirFlag,
		ErrorLocation: *errorLocationFlag,
		LibCpp:        *libcppFlag,
		EmitCargo:     *emitCargoFlag,
		Progress:      *progressFlag,
		Verbose:       *verbose,
		Logger:        newLogger(level),
	}

	// The compiler gets the same signals, through the context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = RunCLI(ctx, flag.Args(), settings)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, diag.FormatError(err, !color.NoColor))
		os.Exit(1)
	}
}
