package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spvm/spvm/vm"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "spvm.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[run]
verbose = true

[debug]
breakpoints = ["loop", "7"]
sidecar = true

[output]
binary = "out.bin"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.Run.Verbose {
		t.Error("Run.Verbose = false")
	}
	if len(m.Debug.Breakpoints) != 2 || m.Debug.Breakpoints[0] != "loop" {
		t.Errorf("Debug.Breakpoints = %v", m.Debug.Breakpoints)
	}
	if !m.Debug.Sidecar {
		t.Error("Debug.Sidecar = false")
	}
	if m.Output.Binary != "out.bin" {
		t.Errorf("Output.Binary = %q", m.Output.Binary)
	}
	if m.Dir == "" {
		t.Error("Dir not set at load time")
	}
}

func TestLoadBadToml(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[run\nverbose =")
	if _, err := Load(dir); err == nil {
		t.Error("Load should fail on malformed toml")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load should fail when spvm.toml is absent")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[run]\nverbose = true\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad = nil, want manifest from ancestor dir")
	}
	if !m.Run.Verbose {
		t.Error("Run.Verbose = false")
	}
}

func TestFindAndLoadAbsent(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad = %+v, want nil", m)
	}
}

func TestApply(t *testing.T) {
	m := &Manifest{
		Run:   RunConfig{Verbose: true},
		Debug: DebugConfig{Breakpoints: []string{"loop", "7"}},
	}

	d := vm.NewDebugInfo()
	labels := map[string]vm.Value{"loop": 3}
	if err := m.Apply(d, labels); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !d.Verbose() {
		t.Error("verbosity not applied")
	}
	if !d.BreakpointAt(3) {
		t.Error("label breakpoint not resolved to address 3")
	}
	if !d.BreakpointAt(7) {
		t.Error("numeric breakpoint not applied")
	}
}

func TestApplyUnknownLabel(t *testing.T) {
	m := &Manifest{Debug: DebugConfig{Breakpoints: []string{"ghost"}}}

	err := m.Apply(vm.NewDebugInfo(), nil)
	if err == nil {
		t.Fatal("Apply should fail on an unknown breakpoint label")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("err %q does not name the label", err)
	}
}

func TestApplyDoesNotDisableVerbose(t *testing.T) {
	// A manifest without [run] verbose must not clear a flag-enabled one.
	d := vm.NewDebugInfo()
	d.SetVerbose(true)
	if err := (&Manifest{}).Apply(d, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !d.Verbose() {
		t.Error("Apply cleared verbosity")
	}
}
