package toolchain

import "os"

// Probe is the filesystem seen by the resolver. Tests substitute a map.
type Probe interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
}

// OSProbe looks at the real filesystem
type OSProbe struct{}

func (OSProbe) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSProbe) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
