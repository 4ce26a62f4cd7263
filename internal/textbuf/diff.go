package textbuf

// Point is a row/byte-column position.
type Point struct {
	Row    int
	Column int
}

// Edit describes one contiguous replacement turning an old text into a new one,
// in the shape incremental parsers expect.
type Edit struct {
	StartByte   int
	OldEndByte  int
	NewEndByte  int
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Empty reports whether the edit changes nothing.
func (e Edit) Empty() bool {
	return e.OldEndByte == e.StartByte && e.NewEndByte == e.StartByte
}

// Diff computes the smallest single replacement that turns old into new by
// trimming their common prefix and suffix.
//
// A pure insertion or deletion of repeated text can sit at several offsets:
// removing one of three identical lines matches any of them. Such edits are
// anchored at the earliest line start they can occupy.
func Diff(old, new []byte) Edit {
	prefix := 0
	for prefix < len(old) && prefix < len(new) && old[prefix] == new[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(new)-prefix &&
		old[len(old)-1-suffix] == new[len(new)-1-suffix] {
		suffix++
	}

	start := prefix
	oldLen, newLen := len(old)-suffix-prefix, len(new)-suffix-prefix
	switch {
	case oldLen > 0 && newLen == 0:
		start = slide(old, start, oldLen)
	case newLen > 0 && oldLen == 0:
		start = slide(new, start, newLen)
	}

	e := Edit{
		StartByte:  start,
		OldEndByte: start + oldLen,
		NewEndByte: start + newLen,
	}
	e.StartPoint = pointAt(old, e.StartByte)
	e.OldEndPoint = pointAt(old, e.OldEndByte)
	e.NewEndPoint = pointAt(new, e.NewEndByte)
	return e
}

// slide moves the n-byte span of text at start as far left as it can go
// without changing the result, and returns the lowest line start it passed.
// If it passed none, start is returned.
func slide(text []byte, start, n int) int {
	best := start
	for pos := start; pos > 0 && text[pos-1] == text[pos+n-1]; {
		pos--
		if pos == 0 || text[pos-1] == '\n' {
			best = pos
		}
	}
	return best
}

func pointAt(text []byte, offset int) Point {
	var p Point
	lineStart := 0
	for i := 0; i < offset && i < len(text); i++ {
		if text[i] == '\n' {
			p.Row++
			lineStart = i + 1
		}
	}
	p.Column = offset - lineStart
	return p
}
