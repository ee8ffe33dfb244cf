// Package asm translates SPVM assembly text into an instruction sequence.
//
// Assembly happens in a single linear pass with an explicit relocation
// table: a PUSH whose operand names a not-yet-defined label is emitted with
// a provisional 0 and patched in place when the label definition arrives.
// Any name still pending at end of input is an assembly error.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spvm/spvm/vm"
)

// ---------------------------------------------------------------------------
// Parse errors
// ---------------------------------------------------------------------------

// ParseError is an assembly failure at a specific source line.
type ParseError struct {
	File string
	Line int // 1-based
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parser assembles one source file. Zero value is not usable; construct
// with NewParser.
type Parser struct {
	filepath string
	lineno   int

	labels map[string]vm.Value // label name -> resolved address
	relocs map[string][]int    // pending label name -> referencing PUSH addresses

	program []vm.Instruction
	debug   *vm.DebugInfo
}

// NewParser creates a parser for the named source file. The name is used
// in error messages; the actual input may come from any reader.
func NewParser(filepath string) *Parser {
	return &Parser{
		filepath: filepath,
		labels:   make(map[string]vm.Value),
		relocs:   make(map[string][]int),
		debug:    vm.NewDebugInfo(),
	}
}

// DebugInfo returns the debug metadata accumulated during assembly:
// breakpoints from @Break and label annotations for disassembly.
func (p *Parser) DebugInfo() *vm.DebugInfo {
	return p.debug
}

// Labels returns the resolved label table. Only meaningful after a
// successful Assemble.
func (p *Parser) Labels() map[string]vm.Value {
	return p.labels
}

// AssembleFile opens the parser's file and assembles it.
func (p *Parser) AssembleFile() ([]vm.Instruction, error) {
	f, err := os.Open(p.filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Assemble(f)
}

// Assemble consumes source text line by line and produces the program.
// On failure the partial program is discarded.
func (p *Parser) Assemble(r io.Reader) ([]vm.Instruction, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.lineno++
		if err := p.parseLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.relocs) > 0 {
		return nil, p.errorf("could not resolve labels: %s", p.describeRelocs())
	}
	return p.program, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{
		File: p.filepath,
		Line: p.lineno,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// describeRelocs renders the pending relocation table for the unresolved-
// label error, deterministically ordered.
func (p *Parser) describeRelocs() string {
	names := make([]string, 0, len(p.relocs))
	for name := range p.relocs {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		addrs := make([]string, 0, len(p.relocs[name]))
		for _, addr := range p.relocs[name] {
			addrs = append(addrs, fmt.Sprintf("0x%04x", addr))
		}
		parts = append(parts, fmt.Sprintf("`%s` (referenced at %s)", name, strings.Join(addrs, ", ")))
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Line grammar
// ---------------------------------------------------------------------------

// parseLine handles one source line: blank/comment, label definition,
// metainstruction, or instruction, checked in that order.
func (p *Parser) parseLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ";") {
		return nil
	}

	tokens := strings.Fields(line)

	if name, ok := strings.CutSuffix(tokens[0], ":"); ok {
		return p.defineLabel(name, tokens[1:])
	}

	if strings.HasPrefix(tokens[0], "@") {
		return p.expandMacro(tokens)
	}

	return p.parseInstruction(tokens)
}

// defineLabel assigns the current address to name, patching every PUSH
// that referenced it ahead of its definition.
func (p *Parser) defineLabel(name string, rest []string) error {
	if len(rest) > 0 && !strings.HasPrefix(rest[0], ";") {
		return p.errorf("too many arguments: `%s`", rest[0])
	}
	if _, dup := p.labels[name]; dup {
		return p.errorf("label `%s` redefined", name)
	}

	addr := vm.Value(len(p.program))
	for _, ref := range p.relocs[name] {
		p.program[ref].SetArg(addr)
	}
	delete(p.relocs, name)

	p.labels[name] = addr
	p.debug.AddLabel(int(addr), name)
	return nil
}

// parseInstruction handles a real instruction line: mnemonic plus, for
// PUSH only, one operand. A trailing `;` comment is ignored.
func (p *Parser) parseInstruction(tokens []string) error {
	mnemonic := tokens[0]
	op, ok := vm.OpcodeForMnemonic(mnemonic)
	if !ok {
		return p.errorf("no such mnemonic `%s`", mnemonic)
	}

	var arg string
	if len(tokens) > 1 && !strings.HasPrefix(tokens[1], ";") {
		arg = tokens[1]
		if len(tokens) > 2 && !strings.HasPrefix(tokens[2], ";") {
			return p.errorf("too many arguments: `%s`", tokens[2])
		}
	}

	if op != vm.OpPush {
		if arg != "" {
			return p.errorf("`%s` takes no argument", mnemonic)
		}
		p.program = append(p.program, vm.Inst(op))
		return nil
	}

	if arg == "" {
		return p.errorf("`PUSH` expects one argument")
	}
	p.program = append(p.program, vm.Push(p.operandValue(arg)))
	return nil
}

// operandValue resolves a PUSH operand token: a literal integer, a
// resolved label's address, or 0 with a pending relocation entry. The
// relocation entry records the address the PUSH is about to occupy.
func (p *Parser) operandValue(arg string) vm.Value {
	if v, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return v
	}
	if addr, ok := p.labels[arg]; ok {
		return addr
	}
	p.relocs[arg] = append(p.relocs[arg], len(p.program))
	return 0
}
