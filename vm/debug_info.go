package vm

// DebugInfo carries the assembly-time metadata the stack machine consults
// while running: breakpoint addresses, label annotations for disassembly,
// and the verbosity flag gating both. The assembler writes it, the machine
// reads it; it has no behavior of its own beyond these lookups.
//
// A program loaded from a binary container starts with an empty DebugInfo:
// labels and breakpoints do not survive the container format. They can be
// carried separately through the sidecar wire format (see debug_wire.go).
type DebugInfo struct {
	breakpoints map[int]bool
	labels      map[int]string
	verbose     bool
}

// NewDebugInfo returns an empty DebugInfo.
func NewDebugInfo() *DebugInfo {
	return &DebugInfo{
		breakpoints: make(map[int]bool),
		labels:      make(map[int]string),
	}
}

// AddBreakpoint registers a breakpoint at the given instruction address.
func (d *DebugInfo) AddBreakpoint(addr int) {
	d.breakpoints[addr] = true
}

// BreakpointAt reports whether a breakpoint is registered at addr.
func (d *DebugInfo) BreakpointAt(addr int) bool {
	return d.breakpoints[addr]
}

// AddLabel records the label name defined at the given address.
func (d *DebugInfo) AddLabel(addr int, label string) {
	d.labels[addr] = label
}

// LabelAt returns the label defined at addr, if any.
func (d *DebugInfo) LabelAt(addr int) (string, bool) {
	label, ok := d.labels[addr]
	return label, ok
}

// Verbose reports whether verbose mode (disassembly, interactive
// breakpoints) is enabled.
func (d *DebugInfo) Verbose() bool {
	return d.verbose
}

// SetVerbose enables or disables verbose mode.
func (d *DebugInfo) SetVerbose(verbose bool) {
	d.verbose = verbose
}
