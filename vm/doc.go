// Package vm implements the SPVM virtual machine.
//
// This package contains:
//   - Instruction model: opcodes, mnemonics, binary encode/decode
//   - Binary container format for persisting instruction sequences
//   - Stack-machine interpreter with a single operand stack
//   - Debug metadata: breakpoints, label annotations, sidecar persistence
package vm
