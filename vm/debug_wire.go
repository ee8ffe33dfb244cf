package vm

import (
	"fmt"
	"os"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Debug metadata does not survive the bytecode container (see binary.go),
// but it can ride alongside it: the CLI writes the assembler's DebugInfo to
// a sidecar file next to the binary and reloads it before a run, so
// breakpoints and label annotations work on persisted programs too.

// cborEncMode uses canonical options for deterministic sidecar bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// debugInfoWire is the sidecar file schema.
type debugInfoWire struct {
	Breakpoints []int          `cbor:"breakpoints"`
	Labels      map[int]string `cbor:"labels"`
	Verbose     bool           `cbor:"verbose"`
}

// MarshalDebugInfo serializes a DebugInfo to CBOR bytes.
func MarshalDebugInfo(d *DebugInfo) ([]byte, error) {
	breakpoints := make([]int, 0, len(d.breakpoints))
	for addr := range d.breakpoints {
		breakpoints = append(breakpoints, addr)
	}
	sort.Ints(breakpoints)

	return cborEncMode.Marshal(&debugInfoWire{
		Breakpoints: breakpoints,
		Labels:      d.labels,
		Verbose:     d.verbose,
	})
}

// UnmarshalDebugInfo deserializes a DebugInfo from CBOR bytes.
func UnmarshalDebugInfo(data []byte) (*DebugInfo, error) {
	var w debugInfoWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("vm: unmarshal debug info: %w", err)
	}

	d := NewDebugInfo()
	for _, addr := range w.Breakpoints {
		d.AddBreakpoint(addr)
	}
	for addr, label := range w.Labels {
		d.AddLabel(addr, label)
	}
	d.SetVerbose(w.Verbose)
	return d, nil
}

// SaveFile writes the DebugInfo sidecar to the named file.
func (d *DebugInfo) SaveFile(path string) error {
	data, err := MarshalDebugInfo(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDebugFile reads a DebugInfo sidecar from the named file.
func LoadDebugFile(path string) (*DebugInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	d, err := UnmarshalDebugInfo(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
