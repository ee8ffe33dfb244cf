package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns an address-annotated listing of the program. Label
// annotations come from debug; the instruction at ip is marked with ">>"
// (pass -1 for no marker).
func Disassemble(instructions []Instruction, debug *DebugInfo, ip int) string {
	var sb strings.Builder
	for addr, in := range instructions {
		if label, ok := debug.LabelAt(addr); ok {
			fmt.Fprintf(&sb, "%s:\n", label)
		}
		marker := "  "
		if addr == ip {
			marker = ">>"
		}
		fmt.Fprintf(&sb, "%04x %s %s\n", addr, marker, in)
	}
	return sb.String()
}
