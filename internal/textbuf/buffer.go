// Package textbuf maps between line numbers and byte offsets of a text buffer.
package textbuf

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrLineOutOfRange is returned when a line number does not exist in the buffer.
	ErrLineOutOfRange = errors.New("line out of range")
	// ErrInvalidRange is returned for inverted or out-of-bounds ranges.
	ErrInvalidRange = errors.New("invalid range")
)

// Buffer is an immutable byte buffer with a line-start index.
// Lines are 0-based. A line includes its trailing "\n".
type Buffer struct {
	text       []byte
	lineStarts []int
}

// New indexes text. The slice is copied.
func New(text []byte) *Buffer {
	b := &Buffer{text: append([]byte(nil), text...)}
	b.index()
	return b
}

// NewString is New for strings.
func NewString(text string) *Buffer {
	return New([]byte(text))
}

func (b *Buffer) index() {
	b.lineStarts = make([]int, 1, bytes.Count(b.text, []byte{'\n'})+1)
	for i, c := range b.text {
		if c == '\n' {
			b.lineStarts = append(b.lineStarts, i+1)
		}
	}
}

// Bytes returns the buffer contents. Callers must not modify the result.
func (b *Buffer) Bytes() []byte {
	return b.text
}

// String returns the buffer contents as a string.
func (b *Buffer) String() string {
	return string(b.text)
}

// Len returns the size in bytes.
func (b *Buffer) Len() int {
	return len(b.text)
}

// LineCount returns the number of lines. An empty buffer has one (empty) line,
// and a buffer ending in "\n" has an empty last line.
func (b *Buffer) LineCount() int {
	return len(b.lineStarts)
}

// LineStart returns the byte offset of the first byte of line. LineCount() is
// accepted and maps to the end of the buffer.
func (b *Buffer) LineStart(line int) (int, error) {
	switch {
	case line < 0 || line > len(b.lineStarts):
		return 0, fmt.Errorf("%w: %d (buffer has %d lines)", ErrLineOutOfRange, line, len(b.lineStarts))
	case line == len(b.lineStarts):
		return len(b.text), nil
	default:
		return b.lineStarts[line], nil
	}
}

// Line returns the contents of line without its terminator.
func (b *Buffer) Line(line int) ([]byte, error) {
	start, err := b.LineStart(line)
	if err != nil {
		return nil, err
	}
	if line == len(b.lineStarts) {
		return nil, fmt.Errorf("%w: %d (buffer has %d lines)", ErrLineOutOfRange, line, len(b.lineStarts))
	}
	end := len(b.text)
	if line+1 < len(b.lineStarts) {
		end = b.lineStarts[line+1] - 1
	}
	return b.text[start:end], nil
}

// LineOf returns the line containing offset. Offsets past the end map to the
// last line.
func (b *Buffer) LineOf(offset int) int {
	if offset <= 0 {
		return 0
	}
	return sort.SearchInts(b.lineStarts, offset+1) - 1
}

// Span converts the half-open line range [startLine, endLineExclusive) into a
// byte offset and length.
func (b *Buffer) Span(startLine, endLineExclusive int) (offset, length int, err error) {
	if endLineExclusive < startLine {
		return 0, 0, fmt.Errorf("%w: lines %d..%d", ErrInvalidRange, startLine, endLineExclusive)
	}
	start, err := b.LineStart(startLine)
	if err != nil {
		return 0, 0, err
	}
	end, err := b.LineStart(endLineExclusive)
	if err != nil {
		return 0, 0, err
	}
	return start, end - start, nil
}

// Replace returns a new buffer with length bytes at offset replaced by text.
func (b *Buffer) Replace(offset, length int, text []byte) (*Buffer, error) {
	if offset < 0 || length < 0 || offset+length > len(b.text) {
		return nil, fmt.Errorf("%w: offset %d length %d in %d bytes", ErrInvalidRange, offset, length, len(b.text))
	}
	out := make([]byte, 0, len(b.text)-length+len(text))
	out = append(out, b.text[:offset]...)
	out = append(out, text...)
	out = append(out, b.text[offset+length:]...)
	nb := &Buffer{text: out}
	nb.index()
	return nb, nil
}

// Point returns the row and byte column of offset.
func (b *Buffer) Point(offset int) Point {
	line := b.LineOf(offset)
	return Point{Row: line, Column: offset - b.lineStarts[line]}
}
