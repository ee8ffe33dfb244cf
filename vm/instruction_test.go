package vm

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op         Opcode
		name       string
		hasOperand bool
	}{
		{OpPush, "PUSH", true},
		{OpPop, "POP", false},
		{OpDup, "DUP", false},
		{OpSwap, "SWAP", false},
		{OpJz, "JZ", false},
		{OpJnz, "JNZ", false},
		{OpJmp, "JMP", false},
		{OpAdd, "ADD", false},
		{OpSub, "SUB", false},
		{OpMul, "MUL", false},
		{OpDiv, "DIV", false},
		{OpExit, "EXIT", false},
		{OpPrintout, "PRINTOUT", false},
		{OpCall, "CALL", false},
		{OpPrintstr, "PRINTSTR", false},
	}

	for _, tt := range tests {
		if got := tt.op.Name(); got != tt.name {
			t.Errorf("%d: Name = %q, want %q", tt.op, got, tt.name)
		}
		if got := tt.op.HasOperand(); got != tt.hasOperand {
			t.Errorf("%s: HasOperand = %v, want %v", tt.name, got, tt.hasOperand)
		}
	}
}

func TestOpcodeIDsAreStable(t *testing.T) {
	// The binary format depends on these exact numeric values.
	ids := []struct {
		op Opcode
		id uint16
	}{
		{OpPush, 0}, {OpPop, 1}, {OpDup, 2}, {OpSwap, 3}, {OpJz, 4},
		{OpJnz, 5}, {OpJmp, 6}, {OpAdd, 7}, {OpSub, 8}, {OpMul, 9},
		{OpDiv, 10}, {OpExit, 11}, {OpPrintout, 12}, {OpCall, 13}, {OpPrintstr, 14},
	}
	for _, tt := range ids {
		if uint16(tt.op) != tt.id {
			t.Errorf("%s: id = %d, want %d", tt.op, uint16(tt.op), tt.id)
		}
	}
}

func TestOpcodeForMnemonic(t *testing.T) {
	op, ok := OpcodeForMnemonic("PUSH")
	if !ok || op != OpPush {
		t.Errorf("OpcodeForMnemonic(PUSH) = %v, %v", op, ok)
	}
	if _, ok := OpcodeForMnemonic("NOPE"); ok {
		t.Error("OpcodeForMnemonic(NOPE) should fail")
	}
	if _, ok := OpcodeForMnemonic("push"); ok {
		t.Error("mnemonics are case-sensitive")
	}
}

func TestUnknownOpcodeName(t *testing.T) {
	if got := Opcode(99).Name(); got != "UNKNOWN_99" {
		t.Errorf("Name = %q, want UNKNOWN_99", got)
	}
}

// ---------------------------------------------------------------------------
// Instruction tests
// ---------------------------------------------------------------------------

func TestSetArgOnlyMutatesPush(t *testing.T) {
	push := Push(1)
	push.SetArg(42)
	if push.Arg != 42 {
		t.Errorf("Push arg = %d, want 42", push.Arg)
	}

	for _, op := range []Opcode{OpPop, OpJmp, OpCall, OpExit} {
		in := Inst(op)
		in.SetArg(42)
		if in.Arg != 0 {
			t.Errorf("SetArg on %s mutated arg to %d", op, in.Arg)
		}
	}
}

func TestInstructionString(t *testing.T) {
	if got := Push(-7).String(); got != "PUSH      -7" {
		t.Errorf("String = %q", got)
	}
	if got := Inst(OpAdd).String(); got != "ADD" {
		t.Errorf("String = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Encoding tests
// ---------------------------------------------------------------------------

func TestEncode(t *testing.T) {
	tests := []struct {
		in   Instruction
		want []byte
	}{
		{Inst(OpPop), []byte{1, 0}},
		{Inst(OpPrintstr), []byte{14, 0}},
		{Push(1), []byte{0, 0, 1, 0, 0, 0, 0, 0, 0, 0}},
		{Push(-1), []byte{0, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{Push(0x0102030405060708), []byte{0, 0, 8, 7, 6, 5, 4, 3, 2, 1}},
	}

	for _, tt := range tests {
		got := tt.in.Encode()
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: Encode = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadInstructionRoundTrip(t *testing.T) {
	program := []Instruction{
		Push(-42),
		Inst(OpDup),
		Inst(OpMul),
		Inst(OpPrintout),
		Inst(OpExit),
	}

	var buf bytes.Buffer
	for _, in := range program {
		buf.Write(in.Encode())
	}

	for i, want := range program {
		got, err := ReadInstruction(&buf)
		if err != nil {
			t.Fatalf("instruction %d: %v", i, err)
		}
		if got != want {
			t.Errorf("instruction %d = %v, want %v", i, got, want)
		}
	}
	if _, err := ReadInstruction(&buf); err != io.EOF {
		t.Errorf("expected EOF after last instruction, got %v", err)
	}
}

func TestReadInstructionUnknownOpcode(t *testing.T) {
	_, err := ReadInstruction(bytes.NewReader([]byte{0xff, 0x00}))
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("err = %v, want ErrUnknownOpcode", err)
	}
}

func TestReadInstructionTruncatedOperand(t *testing.T) {
	_, err := ReadInstruction(bytes.NewReader([]byte{0, 0, 1, 2}))
	if err != io.ErrUnexpectedEOF {
		t.Errorf("err = %v, want ErrUnexpectedEOF", err)
	}
}
