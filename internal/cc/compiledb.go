package cc

import (
	"encoding/json"
	"os"
)

// Compile commands compilation database is a JSON file which consists
// of an array of command objects. Each command object specifies one way a
// translation unit is compiled in the project.
// https://clang.llvm.org/docs/JSONCompilationDatabase.html
type CompileCommandEntry struct {
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
	Output    string   `json:"output,omitempty"`
}

// CompileDatabase returns one entry per compiled source file. The archive
// command is not a translation unit and is left out.
func CompileDatabase(commands []Command) []CompileCommandEntry {
	entries := make([]CompileCommandEntry, 0, len(commands))
	for _, c := range commands {
		if c.File == "" {
			continue
		}
		entries = append(entries, CompileCommandEntry{
			Directory: c.Dir,
			Arguments: c.Args,
			File:      c.File,
			Output:    c.Output,
		})
	}
	return entries
}

// WriteCompileDatabase writes compile_commands.json style output to path
func WriteCompileDatabase(path string, commands []Command) error {
	data, err := json.MarshalIndent(CompileDatabase(commands), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
