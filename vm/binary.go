package vm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// Container format
// ---------------------------------------------------------------------------

// BinaryMagic is the tag identifying an SPVM bytecode file.
var BinaryMagic = [5]byte{'.', 'S', 'P', 'V', 'M'}

// The header after the magic is a single fixed-width field: the instruction
// count as an 8-byte little-endian unsigned integer. Fixed width keeps the
// format identical across host word sizes and endianness.
const headerCountSize = 8

var (
	ErrBadMagic      = errors.New("wrong file format: bad magic")
	ErrTruncated     = errors.New("truncated bytecode stream")
	ErrUnknownOpcode = errors.New("no such opcode")
)

// ---------------------------------------------------------------------------
// Binary: a persistable instruction sequence
// ---------------------------------------------------------------------------

// Binary wraps an instruction sequence for persistence. The container holds
// instructions only; debug metadata never enters it.
type Binary struct {
	instructions []Instruction
}

// NewBinary creates a container around the given instruction sequence.
func NewBinary(instructions []Instruction) *Binary {
	return &Binary{instructions: instructions}
}

// Instructions returns the contained instruction sequence.
func (b *Binary) Instructions() []Instruction {
	return b.instructions
}

// Save writes the container to w: magic, instruction count, then each
// instruction record back-to-back in program order. The write is buffered
// and fully flushed before Save returns success.
func (b *Binary) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(BinaryMagic[:]); err != nil {
		return err
	}

	var count [headerCountSize]byte
	binary.LittleEndian.PutUint64(count[:], uint64(len(b.instructions)))
	if _, err := bw.Write(count[:]); err != nil {
		return err
	}

	for _, in := range b.instructions {
		if _, err := bw.Write(in.Encode()); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// SaveFile writes the container to the named file.
func (b *Binary) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := b.Save(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// LoadBinary reads a container from r. The magic is checked first; then
// exactly the declared number of instruction records is decoded. A short
// stream or an unrecognized opcode id fails the load.
func LoadBinary(r io.Reader) (*Binary, error) {
	br := bufio.NewReader(r)

	var magic [len(BinaryMagic)]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if magic != BinaryMagic {
		return nil, ErrBadMagic
	}

	var count [headerCountSize]byte
	if _, err := io.ReadFull(br, count[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	numInstructions := binary.LittleEndian.Uint64(count[:])

	b := &Binary{}
	for i := uint64(0); i < numInstructions; i++ {
		in, err := ReadInstruction(br)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%w: %d of %d instructions", ErrTruncated, i, numInstructions)
			}
			return nil, err
		}
		b.instructions = append(b.instructions, in)
	}

	return b, nil
}

// LoadBinaryFile reads a container from the named file.
func LoadBinaryFile(path string) (*Binary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := LoadBinary(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
