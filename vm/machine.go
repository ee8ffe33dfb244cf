package vm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// FaultExitCode is the sentinel exit code set when execution faults.
const FaultExitCode = 255

// ---------------------------------------------------------------------------
// Execution faults
// ---------------------------------------------------------------------------

// ExecError is an execution fault: the machine stopped at Addr for the
// stated cause. The machine is left halted with FaultExitCode.
type ExecError struct {
	Addr  int
	Cause string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execution fault at 0x%04x: %s", e.Addr, e.Cause)
}

// ---------------------------------------------------------------------------
// StackMachine: fetch-eval interpreter
// ---------------------------------------------------------------------------

// StackMachine executes an instruction sequence over a single operand
// stack. It is running while no exit code is set and the instruction
// pointer is in bounds; Exit halts it. There is no other state.
type StackMachine struct {
	ip    int
	stack []Value

	exitCode int
	halted   bool

	debug *DebugInfo

	out io.Writer     // program output sink
	in  *bufio.Reader // breakpoint confirmation input
}

// NewStackMachine creates a machine consulting the given debug metadata.
// Output goes to stdout and breakpoint prompts read stdin until replaced
// with SetOutput/SetInput.
func NewStackMachine(debug *DebugInfo) *StackMachine {
	if debug == nil {
		debug = NewDebugInfo()
	}
	return &StackMachine{
		debug: debug,
		out:   os.Stdout,
		in:    bufio.NewReader(os.Stdin),
	}
}

// SetOutput redirects the program output sink.
func (m *StackMachine) SetOutput(w io.Writer) {
	m.out = w
}

// SetInput redirects the breakpoint confirmation input.
func (m *StackMachine) SetInput(r io.Reader) {
	m.in = bufio.NewReader(r)
}

// Stack returns the current operand stack, bottom first.
func (m *StackMachine) Stack() []Value {
	return m.stack
}

// Run executes the program to completion and returns its exit code. A
// non-nil error is an execution fault; the returned code is then
// FaultExitCode. Running off the end of the program is a fault, not a
// silent success.
func (m *StackMachine) Run(instructions []Instruction) (int, error) {
	if m.debug.Verbose() {
		m.dumpState(instructions)
	}

	for !m.halted && m.ip >= 0 && m.ip < len(instructions) {
		if err := m.step(instructions); err != nil {
			return m.exitCode, err
		}
	}

	if !m.halted {
		m.exitCode = FaultExitCode
		m.halted = true
		return m.exitCode, &ExecError{Addr: m.ip, Cause: "no instruction left"}
	}
	return m.exitCode, nil
}

// ---------------------------------------------------------------------------
// Stack primitives
// ---------------------------------------------------------------------------

func (m *StackMachine) push(v Value) {
	m.stack = append(m.stack, v)
}

func (m *StackMachine) pop() (Value, bool) {
	if len(m.stack) == 0 {
		return 0, false
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, true
}

// popFor pops for the given opcode, faulting on underflow.
func (m *StackMachine) popFor(op Opcode) (Value, error) {
	v, ok := m.pop()
	if !ok {
		return 0, m.fault("not enough values on stack for `%s`", op)
	}
	return v, nil
}

// fault halts the machine with the sentinel exit code and returns the
// ExecError describing what went wrong at the current instruction.
func (m *StackMachine) fault(format string, args ...any) error {
	m.halted = true
	m.exitCode = FaultExitCode
	return &ExecError{Addr: m.ip, Cause: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

func (m *StackMachine) step(instructions []Instruction) error {
	if m.debug.Verbose() && m.debug.BreakpointAt(m.ip) {
		if err := m.confirmBreakpoint(instructions); err != nil {
			return err
		}
	}

	in := instructions[m.ip]
	switch in.Op {
	case OpPush:
		m.push(in.Arg)

	case OpPop:
		if _, err := m.popFor(in.Op); err != nil {
			return err
		}

	case OpDup:
		v, err := m.popFor(in.Op)
		if err != nil {
			return err
		}
		m.push(v)
		m.push(v)

	case OpSwap:
		a, err := m.popFor(in.Op)
		if err != nil {
			return err
		}
		b, err := m.popFor(in.Op)
		if err != nil {
			return err
		}
		m.push(a)
		m.push(b)

	case OpAdd, OpSub, OpMul, OpDiv:
		return m.binop(in.Op)

	case OpJz, OpJnz:
		target, err := m.popFor(in.Op)
		if err != nil {
			return err
		}
		cond, err := m.popFor(in.Op)
		if err != nil {
			return err
		}
		taken := cond == 0
		if in.Op == OpJnz {
			taken = !taken
		}
		if taken {
			m.ip = int(target)
		} else {
			m.ip++
		}
		return nil

	case OpJmp:
		target, err := m.popFor(in.Op)
		if err != nil {
			return err
		}
		m.ip = int(target)
		return nil

	case OpCall:
		target, err := m.popFor(in.Op)
		if err != nil {
			return err
		}
		m.push(Value(m.ip + 1))
		m.ip = int(target)
		return nil

	case OpPrintout:
		v, err := m.popFor(in.Op)
		if err != nil {
			return err
		}
		fmt.Fprintln(m.out, v)

	case OpPrintstr:
		for {
			v, err := m.popFor(in.Op)
			if err != nil {
				return err
			}
			if v == 0 {
				break
			}
			fmt.Fprintf(m.out, "%c", rune(v))
		}

	case OpExit:
		// The one pop that tolerates an empty stack.
		code, ok := m.pop()
		if !ok {
			code = 0
		}
		m.exitCode = int(code)
		m.halted = true

	default:
		return m.fault("unreachable opcode `%s`", in.Op)
	}

	m.ip++
	return nil
}

// binop pops a (top) and b (beneath it) and pushes a OP b, so SUB computes
// top-minus-second.
func (m *StackMachine) binop(op Opcode) error {
	a, err := m.popFor(op)
	if err != nil {
		return err
	}
	b, err := m.popFor(op)
	if err != nil {
		return err
	}

	var result Value
	switch op {
	case OpAdd:
		result = a + b
	case OpSub:
		result = a - b
	case OpMul:
		result = a * b
	case OpDiv:
		if b == 0 {
			return m.fault("division by zero in `%s`", op)
		}
		if a == math.MinInt64 && b == -1 {
			// Quotient overflows; wrap like the other arithmetic ops
			// instead of letting the runtime panic.
			result = math.MinInt64
		} else {
			result = a / b
		}
	}

	m.push(result)
	m.ip++
	return nil
}

// ---------------------------------------------------------------------------
// Interactive breakpoints
// ---------------------------------------------------------------------------

// confirmBreakpoint renders the machine state and blocks on one line of
// input. Answering "n" aborts the run with a fault; anything else,
// including end of input, continues.
func (m *StackMachine) confirmBreakpoint(instructions []Instruction) error {
	m.dumpState(instructions)
	fmt.Fprintf(m.out, "breakpoint at 0x%04x, continue? [y/n] ", m.ip)

	line, _ := m.in.ReadString('\n')
	if strings.TrimSpace(line) == "n" {
		return m.fault("aborted at breakpoint")
	}
	return nil
}

// dumpState writes the annotated disassembly and a stack snapshot.
func (m *StackMachine) dumpState(instructions []Instruction) {
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "instructions:")
	fmt.Fprint(m.out, Disassemble(instructions, m.debug, m.ip))
	fmt.Fprintln(m.out, "stack:")
	if len(m.stack) == 0 {
		fmt.Fprintln(m.out, "  <no entries>")
	}
	for i, v := range m.stack {
		fmt.Fprintf(m.out, "  %04x  %d\n", i, v)
	}
	fmt.Fprintln(m.out)
}
