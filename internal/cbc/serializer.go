package cbc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// On-disk bytecode file format (.cbc), grounded on the teacher's
// internal/bytecode/serializer.go .dwc format: spec.md is silent on
// persistence (it stops at the in-memory CompiledCode blob, §1's stated
// scope), so this is a supplemented feature rather than something the
// distilled spec names.
//
// Header (8 bytes):
//   - Magic number: "CBC\x00" (4 bytes)
//   - Version major/minor/patch: uint8 each (3 bytes)
//   - Reserved: uint8 (1 byte)
//
// Body: one serialized CompiledCode (see Marshal), recursively for every
// LiteralFunction entry in the literal pool.
const (
	MagicNumber = "CBC\x00"

	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// Marshal serializes code to the on-disk format. It never fails on a
// well-formed CompiledCode (every field is a fixed-width or length-
// prefixed value), so it returns only the bytes, with no error.
func Marshal(code *CompiledCode) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(MagicNumber)
	buf.WriteByte(VersionMajor)
	buf.WriteByte(VersionMinor)
	buf.WriteByte(VersionPatch)
	buf.WriteByte(0) // reserved

	writeChunk(buf, code)
	return buf.Bytes()
}

// Unmarshal parses the on-disk format back into a CompiledCode.
func Unmarshal(data []byte) (*CompiledCode, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("cbc: truncated header: %w", err)
	}
	if string(magic) != MagicNumber {
		return nil, fmt.Errorf("cbc: bad magic number %q", magic)
	}

	var version [4]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, fmt.Errorf("cbc: truncated header: %w", err)
	}
	if version[0] != VersionMajor {
		return nil, fmt.Errorf("cbc: incompatible format version %d.%d.%d", version[0], version[1], version[2])
	}

	return readChunk(r)
}

func writeChunk(buf *bytes.Buffer, code *CompiledCode) {
	writeString(buf, code.Name)
	writeUint16(buf, uint16(code.StatusFlags))
	writeUint16(buf, code.ArgumentEnd)
	writeUint16(buf, code.RegisterEnd)
	writeUint16(buf, code.IdentEnd)
	writeUint16(buf, code.LiteralEnd)

	writeUint32(buf, uint32(len(code.Code)))
	buf.Write(code.Code)

	writeUint32(buf, uint32(len(code.Lines)))
	for _, l := range code.Lines {
		writeUint32(buf, uint32(l.Offset))
		writeUint32(buf, uint32(l.Line))
	}

	writeUint32(buf, uint32(len(code.Literals)))
	for _, lit := range code.Literals {
		buf.WriteByte(byte(lit.Type))
		switch lit.Type {
		case LiteralString, LiteralRegex:
			writeString(buf, lit.String)
		case LiteralNumber:
			writeUint64(buf, math.Float64bits(lit.Number))
		case LiteralFunction:
			writeChunk(buf, lit.Function)
		}
	}
}

func readChunk(r *bytes.Reader) (*CompiledCode, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	status, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	argEnd, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	regEnd, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	identEnd, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	litEnd, err := readUint16(r)
	if err != nil {
		return nil, err
	}

	codeLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, fmt.Errorf("cbc: truncated code stream: %w", err)
	}

	lineCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	lines := make([]LineEntry, lineCount)
	for i := range lines {
		offset, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		line, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		lines[i] = LineEntry{Offset: int(offset), Line: int(line)}
	}

	litCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	literals := make([]Literal, litCount)
	for i := range literals {
		typeByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("cbc: truncated literal pool: %w", err)
		}
		lit := Literal{Type: LiteralType(typeByte)}
		switch lit.Type {
		case LiteralString, LiteralRegex:
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			lit.String = s
		case LiteralNumber:
			bits, err := readUint64(r)
			if err != nil {
				return nil, err
			}
			lit.Number = math.Float64frombits(bits)
		case LiteralFunction:
			fn, err := readChunk(r)
			if err != nil {
				return nil, err
			}
			lit.Function = fn
		}
		literals[i] = lit
	}

	return &CompiledCode{
		Name:        name,
		Code:        code,
		Literals:    literals,
		Lines:       lines,
		StatusFlags: StatusFlags(status),
		ArgumentEnd: argEnd,
		RegisterEnd: regEnd,
		IdentEnd:    identEnd,
		LiteralEnd:  litEnd,
	}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("cbc: truncated string: %w", err)
	}
	return string(b), nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("cbc: truncated uint16: %w", err)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("cbc: truncated uint32: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("cbc: truncated uint64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
