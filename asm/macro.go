package asm

import (
	"fmt"
	"strings"

	"github.com/spvm/spvm/vm"
)

// Metainstructions expand at assembly time to zero or more instructions.
// `@Break` registers a breakpoint at the current address and emits nothing;
// `@PushStr "<text>"` emits the literal's characters plus a NUL terminator
// as PUSH instructions in reverse order, so that popping at run time yields
// the characters forward, terminator last.

// expandMacro dispatches a metainstruction line. tokens[0] carries the
// leading "@".
func (p *Parser) expandMacro(tokens []string) error {
	switch tokens[0] {
	case "@Break":
		if len(tokens) > 1 && !strings.HasPrefix(tokens[1], ";") {
			return p.errorf("`@Break` takes no argument")
		}
		p.debug.AddBreakpoint(len(p.program))
		return nil

	case "@PushStr":
		return p.expandPushStr(tokens[1:])

	default:
		return p.errorf("no such metainstruction `%s`", tokens[0])
	}
}

// expandPushStr parses the quoted literal and emits its PUSH sequence.
func (p *Parser) expandPushStr(tokens []string) error {
	raw, rest, err := p.joinStringLiteral(tokens)
	if err != nil {
		return err
	}
	if len(rest) > 0 && !strings.HasPrefix(rest[0], ";") {
		return p.errorf("too many arguments: `%s`", rest[0])
	}

	text, err := p.unescape(raw[1 : len(raw)-1])
	if err != nil {
		return err
	}

	// NUL-terminate, then emit back to front.
	chars := append([]byte(text), 0)
	for i := len(chars) - 1; i >= 0; i-- {
		p.program = append(p.program, vm.Push(vm.Value(chars[i])))
	}
	return nil
}

// joinStringLiteral re-assembles a quoted literal that whitespace
// splitting may have broken apart: tokens are re-joined with a single
// space until one ends with the closing quote. Returns the literal
// (quotes included) and any tokens after it.
func (p *Parser) joinStringLiteral(tokens []string) (string, []string, error) {
	if len(tokens) == 0 || !strings.HasPrefix(tokens[0], `"`) {
		return "", nil, p.errorf("`@PushStr` expects a string literal")
	}

	raw := tokens[0]
	i := 1
	for len(raw) < 2 || !strings.HasSuffix(raw, `"`) {
		if i >= len(tokens) {
			return "", nil, p.errorf("unterminated string literal")
		}
		raw += " " + tokens[i]
		i++
	}
	return raw, tokens[i:], nil
}

// unescape processes the recognized escapes inside a string literal.
func (p *Parser) unescape(body string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", p.errorf("dangling `\\` in string literal")
		}
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '0':
			sb.WriteByte(0)
		case '\\':
			sb.WriteByte('\\')
		default:
			return "", p.errorf("unknown escape `%s` in string literal", fmt.Sprintf("\\%c", body[i]))
		}
	}
	return sb.String(), nil
}
