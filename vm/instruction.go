package vm

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Value is the machine word: every stack slot, operand, and address is one
// of these. Addresses are 0-based positions in the instruction sequence.
type Value = int64

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies a single instruction kind. The numeric value is the
// stable id used in the binary encoding; it never appears in assembly text.
type Opcode uint16

const (
	OpPush     Opcode = 0  // push immediate operand
	OpPop      Opcode = 1  // discard top of stack
	OpDup      Opcode = 2  // duplicate top of stack
	OpSwap     Opcode = 3  // swap the top two entries
	OpJz       Opcode = 4  // pop target, pop cond, jump if cond == 0
	OpJnz      Opcode = 5  // pop target, pop cond, jump if cond != 0
	OpJmp      Opcode = 6  // pop target, jump
	OpAdd      Opcode = 7  // pop a, pop b, push a + b
	OpSub      Opcode = 8  // pop a, pop b, push a - b
	OpMul      Opcode = 9  // pop a, pop b, push a * b
	OpDiv      Opcode = 10 // pop a, pop b, push a / b
	OpExit     Opcode = 11 // pop exit code (0 if stack is empty) and halt
	OpPrintout Opcode = 12 // pop value, write its decimal form
	OpCall     Opcode = 13 // pop target, push return address, jump
	OpPrintstr Opcode = 14 // pop and write characters until a 0 is popped
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name       string // assembly mnemonic
	HasOperand bool   // true if an 8-byte operand follows the id in the encoding
}

// opcodeTable maps opcodes to their metadata. Push is the only opcode
// carrying an operand; control transfers take their targets from the stack.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpPush:     {"PUSH", true},
	OpPop:      {"POP", false},
	OpDup:      {"DUP", false},
	OpSwap:     {"SWAP", false},
	OpJz:       {"JZ", false},
	OpJnz:      {"JNZ", false},
	OpJmp:      {"JMP", false},
	OpAdd:      {"ADD", false},
	OpSub:      {"SUB", false},
	OpMul:      {"MUL", false},
	OpDiv:      {"DIV", false},
	OpExit:     {"EXIT", false},
	OpPrintout: {"PRINTOUT", false},
	OpCall:     {"CALL", false},
	OpPrintstr: {"PRINTSTR", false},
}

// mnemonicTable is the reverse of opcodeTable, built once at init.
var mnemonicTable = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.Name] = op
	}
	return m
}()

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%d", uint16(op))}
}

// Name returns the assembly mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// HasOperand reports whether the opcode encodes an inline operand.
func (op Opcode) HasOperand() bool {
	return op.Info().HasOperand
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// OpcodeForMnemonic looks up an opcode by its assembly mnemonic.
func OpcodeForMnemonic(name string) (Opcode, bool) {
	op, ok := mnemonicTable[name]
	return op, ok
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one decoded machine instruction. Arg is meaningful only
// when Op is OpPush; it is zero for every other opcode.
type Instruction struct {
	Op  Opcode
	Arg Value
}

// Push constructs a PUSH instruction with the given operand.
func Push(v Value) Instruction {
	return Instruction{Op: OpPush, Arg: v}
}

// Inst constructs an operand-less instruction.
func Inst(op Opcode) Instruction {
	return Instruction{Op: op}
}

// SetArg replaces the operand of a PUSH instruction. On any other opcode it
// is a silent no-op; label relocation relies on this being the only way an
// emitted instruction is ever mutated.
func (in *Instruction) SetArg(v Value) {
	if in.Op == OpPush {
		in.Arg = v
	}
}

// String renders the instruction in assembly form.
func (in Instruction) String() string {
	if in.Op.HasOperand() {
		return fmt.Sprintf("%-10s%d", in.Op.Name(), in.Arg)
	}
	return in.Op.Name()
}

// ---------------------------------------------------------------------------
// Binary encoding
// ---------------------------------------------------------------------------

// Instruction record layout: a 2-byte little-endian opcode id, followed by
// an 8-byte little-endian two's-complement operand for PUSH only.
const (
	opcodeSize  = 2
	operandSize = 8
)

// Encode returns the exact byte encoding of the instruction.
func (in Instruction) Encode() []byte {
	buf := make([]byte, opcodeSize, opcodeSize+operandSize)
	binary.LittleEndian.PutUint16(buf, uint16(in.Op))
	if in.Op.HasOperand() {
		var arg [operandSize]byte
		binary.LittleEndian.PutUint64(arg[:], uint64(in.Arg))
		buf = append(buf, arg[:]...)
	}
	return buf
}

// ReadInstruction decodes one instruction record from r. A short read
// surfaces as io.EOF or io.ErrUnexpectedEOF; an id outside the opcode table
// is an ErrUnknownOpcode.
func ReadInstruction(r io.Reader) (Instruction, error) {
	var idBytes [opcodeSize]byte
	if _, err := io.ReadFull(r, idBytes[:]); err != nil {
		return Instruction{}, err
	}

	op := Opcode(binary.LittleEndian.Uint16(idBytes[:]))
	if _, ok := opcodeTable[op]; !ok {
		return Instruction{}, fmt.Errorf("%w %d", ErrUnknownOpcode, uint16(op))
	}

	in := Instruction{Op: op}
	if op.HasOperand() {
		var argBytes [operandSize]byte
		if _, err := io.ReadFull(r, argBytes[:]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Instruction{}, err
		}
		in.Arg = Value(binary.LittleEndian.Uint64(argBytes[:]))
	}
	return in, nil
}
