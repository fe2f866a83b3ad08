package orchestrator

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/xyproto/mervebuild/internal/config"
	"github.com/xyproto/mervebuild/internal/toolchain"
	"github.com/xyproto/mervebuild/internal/watch"
	"gopkg.in/yaml.v3"
)

// ManifestName is written to the output directory after every build
const ManifestName = "build-manifest.yaml"

// Manifest records how a library was built
type Manifest struct {
	BuildID     string             `yaml:"build_id"`
	Started     time.Time          `yaml:"started"`
	Mode        Mode               `yaml:"mode"`
	Target      string             `yaml:"target"`
	Host        string             `yaml:"host"`
	Environment config.Snapshot    `yaml:"environment"`
	Decision    toolchain.Decision `yaml:"decision"`
	Inlined     []string           `yaml:"inlined,omitempty"`
	Triggers    []Trigger          `yaml:"triggers,omitempty"`
	Artifacts   []string           `yaml:"artifacts"`
	Commands    [][]string         `yaml:"commands"`
	Library     string             `yaml:"library"`
	Directives  []string           `yaml:"directives,omitempty"`
}

// Manifest collects the parts of the result worth keeping
func (r *Result) Manifest() Manifest {
	m := Manifest{
		BuildID:     r.BuildID,
		Started:     r.Started.UTC().Truncate(time.Second),
		Mode:        r.Mode,
		Target:      r.Target.String(),
		Host:        runtime.GOOS + "/" + runtime.GOARCH,
		Environment: r.Env,
		Decision:    r.Decision,
		Inlined:     r.Inlined,
		Triggers:    r.Triggers,
		Artifacts:   r.Artifacts,
		Library:     r.Library,
		Directives:  r.Directives,
	}
	for _, c := range r.Commands {
		m.Commands = append(m.Commands, c.Args)
	}
	return m
}

// MarshalManifest renders a manifest as YAML
func MarshalManifest(m Manifest) ([]byte, error) {
	return yaml.Marshal(m)
}

// WriteManifest writes a manifest as YAML
func WriteManifest(path string, m Manifest) error {
	data, err := MarshalManifest(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ManifestSummary is the decoding side of Manifest. Mode and the compiler
// family are written by name, so they are read back as strings.
type ManifestSummary struct {
	BuildID   string    `yaml:"build_id"`
	Mode      string    `yaml:"mode"`
	Target    string    `yaml:"target"`
	Triggers  []Trigger `yaml:"triggers"`
	Artifacts []string  `yaml:"artifacts"`
	Library   string    `yaml:"library"`
}

// ReadManifest loads the fields of a manifest needed to decide whether
// a previous build is still current
func ReadManifest(path string) (*ManifestSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m ManifestSummary
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// Changed returns the triggers of a previous build whose content is
// different now, or that are gone
func (m *ManifestSummary) Changed() []string {
	var changed []string
	for _, t := range m.Triggers {
		fp, err := watch.Fingerprint(t.Path)
		if err != nil || fp != t.Fingerprint {
			changed = append(changed, t.Path)
		}
	}
	return changed
}
