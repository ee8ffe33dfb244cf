// Package manifest handles spvm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/spvm/spvm/vm"
)

// Manifest represents an spvm.toml configuration. Command-line flags
// override anything set here.
type Manifest struct {
	Run    RunConfig    `toml:"run"`
	Debug  DebugConfig  `toml:"debug"`
	Output OutputConfig `toml:"output"`

	// Dir is the directory containing the spvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// RunConfig configures execution.
type RunConfig struct {
	Verbose bool `toml:"verbose"`
}

// DebugConfig configures the debug layer.
type DebugConfig struct {
	// Breakpoints are label names or decimal instruction addresses.
	Breakpoints []string `toml:"breakpoints"`
	// Sidecar enables writing/reading the .dbg debug-info file next to a
	// saved binary.
	Sidecar bool `toml:"sidecar"`
}

// OutputConfig configures binary output.
type OutputConfig struct {
	Binary string `toml:"binary"`
}

// Load parses an spvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "spvm.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find an spvm.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "spvm.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Apply folds the manifest's debug configuration into d: verbosity from
// [run] and breakpoints from [debug], resolved against the assembler's
// label table. A breakpoint entry that is neither a decimal address nor a
// known label is an error.
func (m *Manifest) Apply(d *vm.DebugInfo, labels map[string]vm.Value) error {
	if m.Run.Verbose {
		d.SetVerbose(true)
	}

	for _, entry := range m.Debug.Breakpoints {
		if addr, err := strconv.Atoi(entry); err == nil {
			d.AddBreakpoint(addr)
			continue
		}
		addr, ok := labels[entry]
		if !ok {
			return fmt.Errorf("unknown breakpoint label `%s` in %s", entry, filepath.Join(m.Dir, "spvm.toml"))
		}
		d.AddBreakpoint(int(addr))
	}
	return nil
}
